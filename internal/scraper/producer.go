// Package scraper implements the scrape producers that feed the ingestion
// pipeline: the remote scraper service and the Adzuna public API.
package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"jobmate/jobhunt/internal/config"
	"jobmate/jobhunt/internal/model"
)

// Producer yields one batch of raw postings. Every failure to reach the
// upstream wraps model.ErrUpstreamUnavailable.
type Producer interface {
	Fetch(ctx context.Context) ([]model.RawPosting, error)
}

// ProducerFunc adapts a function to Producer.
type ProducerFunc func(ctx context.Context) ([]model.RawPosting, error)

func (f ProducerFunc) Fetch(ctx context.Context) ([]model.RawPosting, error) { return f(ctx) }

// New builds the producer selected by cfg.Producer, wrapped with the shared
// normalisation step.
func New(cfg *config.Config, logger *slog.Logger) (Producer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scraper")

	var inner Producer
	switch cfg.Producer {
	case config.ProducerRemote:
		inner = NewRemoteProducer(cfg.ScraperURL)
	case config.ProducerAdzuna:
		inner = NewAdzunaFetcher(cfg.AdzunaAppID, cfg.AdzunaAppKey, cfg.AdzunaCountry, cfg.Search, logger)
	default:
		return nil, fmt.Errorf("unknown scrape producer %q", cfg.Producer)
	}
	return NewNormalizer(inner, cfg.Search.ExcludedTitles, logger), nil
}

// parseDate accepts "2006-01-02" or any timestamp whose first ten
// characters are a calendar date. Anything else yields nil.
func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if len(s) < 10 {
		return nil
	}
	d, err := time.Parse("2006-01-02", s[:10])
	if err != nil {
		return nil
	}
	return &d
}

func intPtr(f *float64) *int {
	if f == nil || *f <= 0 {
		return nil
	}
	v := int(*f)
	return &v
}
