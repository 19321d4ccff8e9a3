// Package memstore is an in-memory implementation of the posting store,
// tracking store and audit ledger. It follows the same contracts as
// store.Postgres and is used by service and transport tests.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"jobmate/jobhunt/internal/model"
)

// Store keeps everything in maps guarded by a single mutex.
type Store struct {
	mu       sync.Mutex
	nextID   int64
	postings map[int64]model.Posting
	byExtID  map[string]int64
	tracking map[int64]model.TrackingRecord // keyed by posting id
	audits   []model.ScrapeAudit

	// UpsertErr, when set, is consulted before every upsert. A non-nil
	// return fails that record only.
	UpsertErr func(raw model.RawPosting) error
	// AuditErr, when non-nil, fails every AppendAudit.
	AuditErr error
}

// New returns an empty store.
func New() *Store {
	return &Store{
		postings: map[int64]model.Posting{},
		byExtID:  map[string]int64{},
		tracking: map[int64]model.TrackingRecord{},
	}
}

func (s *Store) newID() int64 {
	s.nextID++
	return s.nextID
}

// UpsertPosting mirrors the ON CONFLICT (external_id) rule of store.Postgres.
func (s *Store) UpsertPosting(_ context.Context, raw model.RawPosting, scrapedAt time.Time) (bool, error) {
	if s.UpsertErr != nil {
		if err := s.UpsertErr(raw); err != nil {
			return false, &model.StorageError{Op: "upsert posting " + raw.ExternalID, Err: err}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byExtID[raw.ExternalID]; ok {
		p := s.postings[id]
		p.Title = raw.Title
		p.Company = raw.Company
		p.Location = raw.Location
		p.Description = raw.Description
		p.URL = raw.URL
		p.SalaryMin = raw.SalaryMin
		p.SalaryMax = raw.SalaryMax
		p.Source = raw.Source
		p.DatePosted = raw.DatePosted
		p.DateScraped = scrapedAt
		s.postings[id] = p
		return false, nil
	}

	id := s.newID()
	s.postings[id] = model.Posting{
		ID:             id,
		ExternalID:     raw.ExternalID,
		Title:          raw.Title,
		Company:        raw.Company,
		Location:       raw.Location,
		Description:    raw.Description,
		URL:            raw.URL,
		SalaryMin:      raw.SalaryMin,
		SalaryMax:      raw.SalaryMax,
		Source:         raw.Source,
		SearchLocation: raw.SearchLocation,
		DatePosted:     raw.DatePosted,
		DateScraped:    scrapedAt,
	}
	s.byExtID[raw.ExternalID] = id
	return true, nil
}

// PostingCount returns the number of stored postings.
func (s *Store) PostingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.postings)
}

// TrackingCount returns the number of materialised tracking records.
func (s *Store) TrackingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tracking)
}

// PostingByExternalID looks a posting up by its natural key.
func (s *Store) PostingByExternalID(extID string) (model.Posting, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byExtID[extID]
	if !ok {
		return model.Posting{}, false
	}
	return s.postings[id], true
}

func (s *Store) view(p model.Posting) model.PostingView {
	t, ok := s.tracking[p.ID]
	if !ok {
		t = model.DefaultTracking(p.ID)
	}
	return model.PostingView{Posting: p, Tracking: t}
}

func matches(v model.PostingView, f model.PostingFilter) bool {
	if f.Location != "" && v.SearchLocation != f.Location {
		return false
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(v.Title), needle) &&
			!strings.Contains(strings.ToLower(v.Company), needle) &&
			!strings.Contains(strings.ToLower(v.Description), needle) {
			return false
		}
	}
	if f.Status != "" && v.Tracking.Status != f.Status {
		return false
	}
	if f.FavoriteOnly && !v.Tracking.IsFavorite {
		return false
	}
	return true
}

func (s *Store) filtered(f model.PostingFilter) []model.PostingView {
	out := make([]model.PostingView, 0, len(s.postings))
	for _, p := range s.postings {
		if v := s.view(p); matches(v, f) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].DatePosted, out[j].DatePosted
		switch {
		case a == nil && b == nil:
		case a == nil:
			return false
		case b == nil:
			return true
		case !a.Equal(*b):
			return a.After(*b)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// CountPostings counts the postings matching f.
func (s *Store) CountPostings(_ context.Context, f model.PostingFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.filtered(f)), nil
}

// ListPostings returns one page of postings matching f.
func (s *Store) ListPostings(_ context.Context, f model.PostingFilter, limit, offset int) ([]model.PostingView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit < 1 || offset < 0 {
		return nil, &model.StorageError{Op: "list postings", Err: fmt.Errorf("invalid limit %d / offset %d", limit, offset)}
	}
	all := s.filtered(f)
	if offset >= len(all) {
		return []model.PostingView{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// GetPosting returns a posting with its tracking state.
func (s *Store) GetPosting(_ context.Context, id int64) (model.PostingView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.postings[id]
	if !ok {
		return model.PostingView{}, model.ErrNotFound
	}
	return s.view(p), nil
}

// MutateTracking applies fn to a copy of the record and only stores it when
// fn succeeds, so a rejected mutation leaves no row behind.
func (s *Store) MutateTracking(_ context.Context, postingID int64, apply func(*model.TrackingRecord) error) (model.TrackingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.postings[postingID]; !ok {
		return model.TrackingRecord{}, model.ErrNotFound
	}

	rec, ok := s.tracking[postingID]
	if !ok {
		rec = model.DefaultTracking(postingID)
		rec.ID = s.newID()
	}
	if err := apply(&rec); err != nil {
		return model.TrackingRecord{}, err
	}
	if rec.UpdatedAt == nil {
		now := time.Now().UTC()
		rec.UpdatedAt = &now
	}
	s.tracking[postingID] = rec
	return rec, nil
}

// AppendAudit appends one audit record.
func (s *Store) AppendAudit(_ context.Context, a model.ScrapeAudit) error {
	if s.AuditErr != nil {
		return &model.StorageError{Op: "append audit", Err: s.AuditErr}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a.ID = int64(len(s.audits) + 1)
	s.audits = append(s.audits, a)
	return nil
}

// LatestAudit returns the most recently completed record.
func (s *Store) LatestAudit(_ context.Context) (*model.ScrapeAudit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.audits) == 0 {
		return nil, nil
	}
	latest := s.audits[0]
	for _, a := range s.audits[1:] {
		if !a.CompletedAt.Before(latest.CompletedAt) {
			latest = a
		}
	}
	return &latest, nil
}

// Audits returns a copy of every appended record, oldest first.
func (s *Store) Audits() []model.ScrapeAudit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ScrapeAudit(nil), s.audits...)
}

// ErrInjected is a convenience error for failure-injection in tests.
var ErrInjected = errors.New("injected failure")
