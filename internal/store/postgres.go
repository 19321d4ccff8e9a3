// Package store persists postings, tracking records and the scrape audit
// ledger in PostgreSQL.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobmate/jobhunt/internal/model"
)

// Postgres implements the posting store, tracking store and audit ledger.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres returns a store backed by pool.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// ─── Postings ────────────────────────────────────────────────────────────────

const upsertPostingSQL = `
	INSERT INTO postings (external_id, title, company, location, description, url,
	                      salary_min, salary_max, source, search_location, date_posted, date_scraped)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	ON CONFLICT (external_id) DO UPDATE
	SET title        = EXCLUDED.title,
	    company      = EXCLUDED.company,
	    location     = EXCLUDED.location,
	    description  = EXCLUDED.description,
	    url          = EXCLUDED.url,
	    salary_min   = EXCLUDED.salary_min,
	    salary_max   = EXCLUDED.salary_max,
	    source       = EXCLUDED.source,
	    date_posted  = EXCLUDED.date_posted,
	    date_scraped = EXCLUDED.date_scraped
	RETURNING (xmax = 0) AS inserted`

// UpsertPosting inserts raw or refreshes the existing row with the same
// external_id. search_location is only written on insert.
func (s *Postgres) UpsertPosting(ctx context.Context, raw model.RawPosting, scrapedAt time.Time) (bool, error) {
	var inserted bool
	err := s.pool.QueryRow(ctx, upsertPostingSQL,
		raw.ExternalID, raw.Title, raw.Company, raw.Location, raw.Description, raw.URL,
		raw.SalaryMin, raw.SalaryMax, raw.Source, raw.SearchLocation, raw.DatePosted, scrapedAt,
	).Scan(&inserted)
	if err != nil {
		return false, &model.StorageError{Op: "upsert posting " + raw.ExternalID, Err: err}
	}
	return inserted, nil
}

// CountPostings counts the postings matching f.
func (s *Postgres) CountPostings(ctx context.Context, f model.PostingFilter) (int, error) {
	query, args, err := buildCountQuery(f)
	if err != nil {
		return 0, &model.StorageError{Op: "build count query", Err: err}
	}
	var total int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, &model.StorageError{Op: "count postings", Err: err}
	}
	return total, nil
}

// ListPostings returns one page of postings joined with their tracking state.
func (s *Postgres) ListPostings(ctx context.Context, f model.PostingFilter, limit, offset int) ([]model.PostingView, error) {
	query, args, err := buildListQuery(f, limit, offset)
	if err != nil {
		return nil, &model.StorageError{Op: "build list query", Err: err}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, &model.StorageError{Op: "list postings", Err: err}
	}
	defer rows.Close()

	views := make([]model.PostingView, 0, limit)
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, &model.StorageError{Op: "scan posting", Err: err}
		}
		views = append(views, v)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.StorageError{Op: "list postings", Err: err}
	}
	return views, nil
}

// GetPosting returns a single posting with its tracking state.
func (s *Postgres) GetPosting(ctx context.Context, id int64) (model.PostingView, error) {
	query, args, err := buildGetQuery(id)
	if err != nil {
		return model.PostingView{}, &model.StorageError{Op: "build get query", Err: err}
	}
	v, err := scanView(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.PostingView{}, model.ErrNotFound
	}
	if err != nil {
		return model.PostingView{}, &model.StorageError{Op: "get posting", Err: err}
	}
	return v, nil
}

func scanView(row pgx.Row) (model.PostingView, error) {
	var (
		v           model.PostingView
		trackID     *int64
		isFavorite  *bool
		status      *string
		notes       *string
		appliedDate *time.Time
		updatedAt   *time.Time
	)
	err := row.Scan(
		&v.ID, &v.ExternalID, &v.Title, &v.Company, &v.Location,
		&v.Description, &v.URL, &v.SalaryMin, &v.SalaryMax, &v.Source,
		&v.SearchLocation, &v.DatePosted, &v.DateScraped,
		&trackID, &isFavorite, &status, &notes, &appliedDate, &updatedAt,
	)
	if err != nil {
		return model.PostingView{}, err
	}

	v.Tracking = model.DefaultTracking(v.ID)
	if trackID != nil {
		v.Tracking.ID = *trackID
		v.Tracking.IsFavorite = isFavorite != nil && *isFavorite
		if status != nil {
			v.Tracking.Status = model.Status(*status)
		}
		if notes != nil {
			v.Tracking.Notes = *notes
		}
		v.Tracking.AppliedDate = appliedDate
		v.Tracking.UpdatedAt = updatedAt
	}
	return v, nil
}

// ─── Tracking ────────────────────────────────────────────────────────────────

// MutateTracking runs apply against the tracking record of postingID inside a
// single transaction. The record is created with default values when missing
// and held under a row lock while apply runs, so concurrent first touches
// cannot produce two rows. If apply fails nothing is written.
func (s *Postgres) MutateTracking(ctx context.Context, postingID int64, apply func(*model.TrackingRecord) error) (model.TrackingRecord, error) {
	var rec model.TrackingRecord

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var exists int64
		err := tx.QueryRow(ctx, `SELECT id FROM postings WHERE id = $1 FOR KEY SHARE`, postingID).Scan(&exists)
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrNotFound
		}
		if err != nil {
			return &model.StorageError{Op: "lock posting", Err: err}
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO posting_tracking (posting_id) VALUES ($1) ON CONFLICT (posting_id) DO NOTHING`,
			postingID,
		); err != nil {
			return &model.StorageError{Op: "ensure tracking", Err: err}
		}

		var (
			status    string
			updatedAt time.Time
		)
		err = tx.QueryRow(ctx,
			`SELECT id, posting_id, is_favorite, status::text, notes, applied_date, updated_at
			 FROM posting_tracking
			 WHERE posting_id = $1
			 FOR UPDATE`,
			postingID,
		).Scan(&rec.ID, &rec.PostingID, &rec.IsFavorite, &status, &rec.Notes, &rec.AppliedDate, &updatedAt)
		if err != nil {
			return &model.StorageError{Op: "load tracking", Err: err}
		}
		rec.Status = model.Status(status)
		rec.UpdatedAt = &updatedAt

		if err := apply(&rec); err != nil {
			return err
		}

		_, err = tx.Exec(ctx,
			`UPDATE posting_tracking
			 SET is_favorite  = $2,
			     status       = $3::tracking_status,
			     notes        = $4,
			     applied_date = $5,
			     updated_at   = COALESCE($6, NOW())
			 WHERE id = $1`,
			rec.ID, rec.IsFavorite, string(rec.Status), rec.Notes, rec.AppliedDate, rec.UpdatedAt,
		)
		if err != nil {
			return &model.StorageError{Op: "update tracking", Err: err}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, model.ErrNotFound) || model.IsStorage(err) || model.IsValidation(err) {
			return model.TrackingRecord{}, err
		}
		return model.TrackingRecord{}, &model.StorageError{Op: "tracking transaction", Err: err}
	}
	return rec, nil
}

// ─── Audit ledger ────────────────────────────────────────────────────────────

// AppendAudit inserts one scrape_audit row. Rows are never updated.
func (s *Postgres) AppendAudit(ctx context.Context, a model.ScrapeAudit) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO scrape_audit (run_id, jobs_found, jobs_inserted, jobs_updated, jobs_failed,
		                           status, error_message, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6::scrape_status, $7, $8, $9)`,
		a.RunID, a.JobsFound, a.JobsInserted, a.JobsUpdated, a.JobsFailed,
		string(a.Status), a.ErrorMessage, a.StartedAt, a.CompletedAt,
	)
	if err != nil {
		return &model.StorageError{Op: "append audit", Err: err}
	}
	return nil
}

// LatestAudit returns the most recently completed run, or nil when ingestion
// has never run.
func (s *Postgres) LatestAudit(ctx context.Context) (*model.ScrapeAudit, error) {
	var (
		a      model.ScrapeAudit
		status string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, run_id::text, jobs_found, jobs_inserted, jobs_updated, jobs_failed,
		        status::text, error_message, started_at, completed_at
		 FROM scrape_audit
		 ORDER BY completed_at DESC, id DESC
		 LIMIT 1`,
	).Scan(&a.ID, &a.RunID, &a.JobsFound, &a.JobsInserted, &a.JobsUpdated, &a.JobsFailed,
		&status, &a.ErrorMessage, &a.StartedAt, &a.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &model.StorageError{Op: "latest audit", Err: err}
	}
	a.Status = model.AuditStatus(status)
	return &a, nil
}
