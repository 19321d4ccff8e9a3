// Package query answers read requests: filtered, paginated posting lists
// joined with tracking state, single-posting lookups and the latest audit.
package query

import (
	"context"
	"fmt"
	"math"

	"jobmate/jobhunt/internal/model"
)

// CountMode decides where the status and favorite filters are applied.
type CountMode string

const (
	// CountPostFilter counts and pages over location/search only, then
	// narrows the fetched page by status/favorite. Total and TotalPages may
	// overstate the matches and a page may come back short or empty.
	CountPostFilter CountMode = "post-filter"
	// CountExact pushes status/favorite into the same query, so Total is
	// the true number of matching postings.
	CountExact CountMode = "exact"
)

// ParseCountMode maps a configuration value to a CountMode.
func ParseCountMode(s string) (CountMode, error) {
	switch m := CountMode(s); m {
	case CountPostFilter, CountExact:
		return m, nil
	}
	return "", fmt.Errorf("unknown count mode %q", s)
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Store is the read side of the storage layer.
type Store interface {
	CountPostings(ctx context.Context, f model.PostingFilter) (int, error)
	ListPostings(ctx context.Context, f model.PostingFilter, limit, offset int) ([]model.PostingView, error)
	GetPosting(ctx context.Context, id int64) (model.PostingView, error)
	LatestAudit(ctx context.Context) (*model.ScrapeAudit, error)
}

// ListFilter holds the optional, conjunctive list filters. Status is the
// raw value from the caller; empty means no status filter.
type ListFilter struct {
	Location string
	Search   string
	Status   string
	Favorite bool
}

// Result is one page of postings.
type Result struct {
	Items      []model.PostingView `json:"jobs"`
	Total      int                 `json:"total"`
	TotalPages int                 `json:"totalPages"`
	Page       int                 `json:"page"`
	PageSize   int                 `json:"pageSize"`
}

// Service implements the query operations on top of a Store.
type Service struct {
	store           Store
	mode            CountMode
	defaultPageSize int
	maxPageSize     int
}

// Option configures a Service.
type Option func(*Service)

// WithPageSizes overrides the default and maximum page sizes.
func WithPageSizes(def, maxSize int) Option {
	return func(s *Service) {
		if def > 0 {
			s.defaultPageSize = def
		}
		if maxSize > 0 {
			s.maxPageSize = maxSize
		}
	}
}

// NewService returns a Service. An empty mode means CountPostFilter.
func NewService(store Store, mode CountMode, opts ...Option) *Service {
	if mode == "" {
		mode = CountPostFilter
	}
	s := &Service{
		store:           store,
		mode:            mode,
		defaultPageSize: DefaultPageSize,
		maxPageSize:     MaxPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mode reports the configured CountMode.
func (s *Service) Mode() CountMode { return s.mode }

// ListPostings returns page `page` (1-indexed) of the postings matching f,
// newest date_posted first with undated postings last. A zero page or
// pageSize selects the default; pageSize is capped at the maximum.
func (s *Service) ListPostings(ctx context.Context, f ListFilter, page, pageSize int) (Result, error) {
	if page < 0 {
		return Result{}, &model.ValidationError{Msg: "page must be >= 1"}
	}
	if pageSize < 0 {
		return Result{}, &model.ValidationError{Msg: "pageSize must be >= 1"}
	}
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = s.defaultPageSize
	}
	if pageSize > s.maxPageSize {
		pageSize = s.maxPageSize
	}

	var status model.Status
	if f.Status != "" {
		st, err := model.ParseStatus(f.Status)
		if err != nil {
			return Result{}, err
		}
		status = st
	}

	storage := model.PostingFilter{Location: f.Location, Search: f.Search}
	if s.mode == CountExact {
		storage.Status = status
		storage.FavoriteOnly = f.Favorite
	}

	total, err := s.store.CountPostings(ctx, storage)
	if err != nil {
		return Result{}, err
	}

	items := []model.PostingView{}
	if offset, ok := pageOffset(page, pageSize); ok && offset < total {
		items, err = s.store.ListPostings(ctx, storage, pageSize, offset)
		if err != nil {
			return Result{}, err
		}
	}

	if s.mode == CountPostFilter {
		items = narrow(items, status, f.Favorite)
	}

	return Result{
		Items:      items,
		Total:      total,
		TotalPages: totalPages(total, pageSize),
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// narrow keeps the views matching status and favorite. Views without a
// record carry the implicit default state, so they count as new and not
// favorite.
func narrow(items []model.PostingView, status model.Status, favorite bool) []model.PostingView {
	if status == "" && !favorite {
		return items
	}
	out := make([]model.PostingView, 0, len(items))
	for _, v := range items {
		if status != "" && v.Tracking.Status != status {
			continue
		}
		if favorite && !v.Tracking.IsFavorite {
			continue
		}
		out = append(out, v)
	}
	return out
}

// pageOffset returns the row offset of page. ok is false when the offset
// overflows int; such a page lies past the end of any table.
func pageOffset(page, pageSize int) (offset int, ok bool) {
	if page-1 > math.MaxInt/pageSize {
		return 0, false
	}
	return (page - 1) * pageSize, true
}

func totalPages(total, pageSize int) int {
	if total <= 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

// GetPosting returns one posting with its tracking state, the implicit
// default when none was recorded yet.
func (s *Service) GetPosting(ctx context.Context, id int64) (model.PostingView, error) {
	if id <= 0 {
		return model.PostingView{}, model.ErrNotFound
	}
	return s.store.GetPosting(ctx, id)
}

// LatestAudit returns the most recently completed ingestion run, or nil
// when ingestion never ran.
func (s *Service) LatestAudit(ctx context.Context) (*model.ScrapeAudit, error) {
	return s.store.LatestAudit(ctx)
}
