package tracking

import (
	"context"
	"log/slog"
	"time"

	"jobmate/jobhunt/internal/events"
	"jobmate/jobhunt/internal/model"
)

// Store runs a read-modify-write on a tracking record. Implementations
// create the default record on first touch, atomically per posting, and
// write nothing when apply fails. A missing posting is model.ErrNotFound.
type Store interface {
	MutateTracking(ctx context.Context, postingID int64, apply func(*model.TrackingRecord) error) (model.TrackingRecord, error)
}

// Mutator is transport-agnostic: used by both the REST handler and the gRPC
// server.
type Mutator struct {
	store  Store
	events events.Publisher
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Mutator.
type Option func(*Mutator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(m *Mutator) { m.now = now } }

// WithEvents sets the publisher for EVENT_TRACKING_UPDATED.
func WithEvents(pub events.Publisher) Option { return func(m *Mutator) { m.events = pub } }

// NewMutator returns a configured Mutator.
func NewMutator(store Store, logger *slog.Logger, opts ...Option) *Mutator {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Mutator{
		store:  store,
		events: events.Nop{},
		logger: logger.With("component", "tracking"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ToggleFavorite flips is_favorite. A posting without a record ends up
// favorited with status new.
func (m *Mutator) ToggleFavorite(ctx context.Context, postingID int64) (model.TrackingRecord, error) {
	return m.mutate(ctx, postingID, "favorite", func(r *model.TrackingRecord) {
		ToggleFavorite(r)
	})
}

// SetStatus validates status before touching storage, so an unknown value
// never materialises a record.
func (m *Mutator) SetStatus(ctx context.Context, postingID int64, status string) (model.TrackingRecord, error) {
	st, err := model.ParseStatus(status)
	if err != nil {
		return model.TrackingRecord{}, err
	}
	return m.mutate(ctx, postingID, "status", func(r *model.TrackingRecord) {
		ApplyStatus(r, st, m.now())
	})
}

// SetNotes replaces notes verbatim, empty string included.
func (m *Mutator) SetNotes(ctx context.Context, postingID int64, notes string) (model.TrackingRecord, error) {
	return m.mutate(ctx, postingID, "notes", func(r *model.TrackingRecord) {
		r.Notes = notes
	})
}

func (m *Mutator) mutate(ctx context.Context, postingID int64, action string, change func(*model.TrackingRecord)) (model.TrackingRecord, error) {
	rec, err := m.store.MutateTracking(ctx, postingID, func(r *model.TrackingRecord) error {
		change(r)
		now := m.now().UTC()
		r.UpdatedAt = &now
		return nil
	})
	if err != nil {
		return model.TrackingRecord{}, err
	}

	m.events.Publish(ctx, events.TrackingUpdated, map[string]any{
		"postingId":  postingID,
		"action":     action,
		"status":     string(rec.Status),
		"isFavorite": rec.IsFavorite,
	})
	m.logger.Debug("tracking updated", "posting_id", postingID, "action", action, "status", rec.Status)
	return rec, nil
}
