package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"jobmate/jobhunt/internal/config"
	"jobmate/jobhunt/internal/model"
)

const (
	adzunaBaseURL  = "https://api.adzuna.com/v1/api/jobs"
	adzunaPageSize = 50
	httpTimeout    = 15 * time.Second
	adzunaSource   = "adzuna"
)

// AdzunaFetcher pulls postings from the Adzuna public API for every
// (location × search term) pair of the search profile.
type AdzunaFetcher struct {
	AppID   string
	AppKey  string
	Country string // "us", "gb", …
	// BaseURL defaults to the public API; overridden in tests.
	BaseURL string

	profile config.SearchProfile
	client  *http.Client
	logger  *slog.Logger
}

var _ Producer = (*AdzunaFetcher)(nil)

// NewAdzunaFetcher constructs a fetcher with a shared HTTP client.
func NewAdzunaFetcher(appID, appKey, country string, profile config.SearchProfile, logger *slog.Logger) *AdzunaFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdzunaFetcher{
		AppID:   appID,
		AppKey:  appKey,
		Country: country,
		BaseURL: adzunaBaseURL,
		profile: profile,
		client:  &http.Client{Timeout: httpTimeout},
		logger:  logger,
	}
}

// adzunaResponse mirrors the top-level Adzuna JSON response.
type adzunaResponse struct {
	Results []adzunaResult `json:"results"`
	Count   int            `json:"count"`
}

type adzunaResult struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Company     adzunaCompany  `json:"company"`
	Location    adzunaLocation `json:"location"`
	SalaryMin   *float64       `json:"salary_min"`
	SalaryMax   *float64       `json:"salary_max"`
	RedirectURL string         `json:"redirect_url"`
	Created     string         `json:"created"`
}

type adzunaCompany struct {
	DisplayName string `json:"display_name"`
}

type adzunaLocation struct {
	DisplayName string `json:"display_name"`
}

// Fetch walks every location and search term. A failing pair is logged and
// skipped; the fetch only fails when no pair could be fetched at all.
func (f *AdzunaFetcher) Fetch(ctx context.Context) ([]model.RawPosting, error) {
	if f.AppID == "" || f.AppKey == "" {
		return nil, fmt.Errorf("%w: ADZUNA_APP_ID / ADZUNA_APP_KEY not set", model.ErrUpstreamUnavailable)
	}

	var (
		results  []model.RawPosting
		pairs    int
		failures int
		lastErr  error
	)
	for _, location := range f.profile.Locations {
		for _, term := range f.profile.SearchTerms {
			pairs++
			batch, err := f.fetchPair(ctx, term, location)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, fmt.Errorf("%w: %w", model.ErrUpstreamUnavailable, ctxErr)
				}
				f.logger.Warn("adzuna fetch failed, continuing", "term", term, "location", location, "err", err)
				failures++
				lastErr = err
				continue
			}
			f.logger.Debug("adzuna fetch", "term", term, "location", location, "found", len(batch))
			results = append(results, batch...)
		}
	}

	if pairs > 0 && failures == pairs {
		return nil, fmt.Errorf("%w: every adzuna request failed: %w", model.ErrUpstreamUnavailable, lastErr)
	}
	return results, nil
}

// fetchPair pages through one (term, location) query until the search
// profile's ResultsWanted is reached or a short page signals the end.
func (f *AdzunaFetcher) fetchPair(ctx context.Context, term, location string) ([]model.RawPosting, error) {
	wanted := f.profile.ResultsWanted
	if wanted <= 0 {
		wanted = adzunaPageSize
	}
	maxPages := (wanted + adzunaPageSize - 1) / adzunaPageSize

	var out []model.RawPosting
	for page := 1; page <= maxPages; page++ {
		batch, err := f.fetchPage(ctx, term, location, page)
		if err != nil {
			return out, fmt.Errorf("page %d: %w", page, err)
		}
		out = append(out, batch...)
		if len(batch) < adzunaPageSize {
			break
		}
	}
	if len(out) > wanted {
		out = out[:wanted]
	}
	return out, nil
}

var errAdzunaStatus = errors.New("adzuna returned non-200")

func (f *AdzunaFetcher) fetchPage(ctx context.Context, term, location string, page int) ([]model.RawPosting, error) {
	endpoint := fmt.Sprintf("%s/%s/search/%d", f.BaseURL, f.Country, page)

	params := url.Values{}
	params.Set("app_id", f.AppID)
	params.Set("app_key", f.AppKey)
	params.Set("results_per_page", strconv.Itoa(adzunaPageSize))
	params.Set("what", term)
	params.Set("where", location)
	params.Set("content-type", "application/json")
	params.Set("sort_by", "date")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d: %s", errAdzunaStatus, resp.StatusCode, string(body))
	}

	var apiResp adzunaResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("json unmarshal: %w", err)
	}

	raws := make([]model.RawPosting, 0, len(apiResp.Results))
	for _, r := range apiResp.Results {
		raws = append(raws, model.RawPosting{
			ExternalID:     externalIDFor(r.ID),
			Title:          r.Title,
			Company:        r.Company.DisplayName,
			Location:       r.Location.DisplayName,
			Description:    r.Description,
			URL:            r.RedirectURL,
			SalaryMin:      intPtr(r.SalaryMin),
			SalaryMax:      intPtr(r.SalaryMax),
			DatePosted:     parseDate(r.Created),
			Source:         adzunaSource,
			SearchLocation: location,
		})
	}
	return raws, nil
}

// externalIDFor namespaces Adzuna ids so they cannot collide with ids from
// other sources. Empty ids stay empty and are derived later.
func externalIDFor(id string) string {
	if id == "" {
		return ""
	}
	return adzunaSource + ":" + id
}
