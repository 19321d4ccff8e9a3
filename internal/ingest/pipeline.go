// Package ingest merges scraped postings into the posting store and keeps
// the scrape audit ledger.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"jobmate/jobhunt/internal/events"
	"jobmate/jobhunt/internal/model"
	"jobmate/jobhunt/internal/scraper"
)

const (
	defaultFetchTimeout = 5 * time.Minute
	auditWriteTimeout   = 10 * time.Second
)

// Store is the part of the storage layer the pipeline writes to.
type Store interface {
	UpsertPosting(ctx context.Context, raw model.RawPosting, scrapedAt time.Time) (inserted bool, err error)
	AppendAudit(ctx context.Context, a model.ScrapeAudit) error
}

// Pipeline upserts raw postings one by one and appends exactly one audit
// record per run, whatever the outcome.
type Pipeline struct {
	store    Store
	producer scraper.Producer
	events   events.Publisher
	logger   *slog.Logger
	now      func() time.Time
	newRunID func() string
	timeout  time.Duration
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// WithFetchTimeout bounds each producer call made by Run.
func WithFetchTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithEvents sets the publisher for run outcome events.
func WithEvents(pub events.Publisher) Option { return func(p *Pipeline) { p.events = pub } }

// WithRunID replaces the uuid run id generator.
func WithRunID(gen func() string) Option { return func(p *Pipeline) { p.newRunID = gen } }

// New returns a Pipeline. producer may be nil when only Ingest is used.
func New(store Store, producer scraper.Producer, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		store:    store,
		producer: producer,
		events:   events.Nop{},
		logger:   logger.With("component", "ingest"),
		now:      time.Now,
		newRunID: uuid.NewString,
		timeout:  defaultFetchTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run is the zero-argument trigger: fetch a batch from the producer under
// the fetch timeout, then ingest it. Producer failures wrap
// model.ErrUpstreamUnavailable and are audited as failed runs.
func (p *Pipeline) Run(ctx context.Context) (model.IngestResult, error) {
	return p.execute(ctx, p.fetch)
}

// Ingest upserts raws in order. It always appends one audit record.
func (p *Pipeline) Ingest(ctx context.Context, raws []model.RawPosting) (model.IngestResult, error) {
	return p.execute(ctx, func(context.Context) ([]model.RawPosting, error) { return raws, nil })
}

func (p *Pipeline) fetch(ctx context.Context) ([]model.RawPosting, error) {
	if p.producer == nil {
		return nil, fmt.Errorf("%w: no producer configured", model.ErrUpstreamUnavailable)
	}
	fctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	raws, err := p.producer.Fetch(fctx)
	if err != nil {
		if !errors.Is(err, model.ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %w", model.ErrUpstreamUnavailable, err)
		}
		return nil, err
	}
	return raws, nil
}

func (p *Pipeline) execute(ctx context.Context, fetch func(context.Context) ([]model.RawPosting, error)) (res model.IngestResult, err error) {
	res.RunID = p.newRunID()
	started := p.now().UTC()
	logger := p.logger.With("run_id", res.RunID)
	logger.Info("ingestion started")

	defer func() {
		if r := recover(); r != nil {
			p.finish(ctx, logger, started, model.IngestResult{RunID: res.RunID}, fmt.Errorf("ingestion panicked: %v", r))
			panic(r)
		}
		if err != nil {
			res = model.IngestResult{RunID: res.RunID}
		}
		p.finish(ctx, logger, started, res, err)
	}()

	raws, err := fetch(ctx)
	if err != nil {
		return res, err
	}
	res.Found = len(raws)

	var lastErr error
	for i, raw := range raws {
		if cerr := ctx.Err(); cerr != nil {
			return res, fmt.Errorf("ingestion interrupted after %d of %d records: %w", i, len(raws), cerr)
		}

		inserted, uerr := p.store.UpsertPosting(ctx, raw, p.now().UTC())
		if uerr != nil {
			if cerr := ctx.Err(); cerr != nil {
				return res, fmt.Errorf("ingestion interrupted after %d of %d records: %w", i, len(raws), cerr)
			}
			logger.Error("upsert failed, skipping record", "external_id", raw.ExternalID, "err", uerr)
			res.Failed++
			lastErr = uerr
			continue
		}
		if inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
	}

	if res.Found > 0 && res.Failed == res.Found {
		return res, fmt.Errorf("every record failed to upsert: %w", lastErr)
	}
	return res, nil
}

// finish appends the audit record and publishes the outcome. Both are
// best-effort and detached from the caller's cancellation.
func (p *Pipeline) finish(ctx context.Context, logger *slog.Logger, started time.Time, res model.IngestResult, runErr error) {
	audit := model.ScrapeAudit{
		RunID:        res.RunID,
		JobsFound:    res.Found,
		JobsInserted: res.Inserted,
		JobsUpdated:  res.Updated,
		JobsFailed:   res.Failed,
		Status:       model.AuditSuccess,
		StartedAt:    started,
		CompletedAt:  p.now().UTC(),
	}
	if runErr != nil {
		msg := runErr.Error()
		audit.Status = model.AuditFailed
		audit.ErrorMessage = &msg
	}

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if err := p.store.AppendAudit(actx, audit); err != nil {
		logger.Error("audit write failed", "status", audit.Status, "err", err)
	}

	payload := map[string]any{
		"runId":        res.RunID,
		"jobsFound":    res.Found,
		"jobsInserted": res.Inserted,
		"jobsUpdated":  res.Updated,
		"jobsFailed":   res.Failed,
	}
	if runErr != nil {
		logger.Error("ingestion failed", "err", runErr, "duration", audit.CompletedAt.Sub(started))
		payload["error"] = runErr.Error()
		p.events.Publish(actx, events.ScrapeFailed, payload)
		return
	}
	logger.Info("ingestion finished",
		"found", res.Found, "inserted", res.Inserted, "updated", res.Updated, "failed", res.Failed,
		"duration", audit.CompletedAt.Sub(started))
	p.events.Publish(actx, events.ScrapeCompleted, payload)
}
