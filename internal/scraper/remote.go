package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"jobmate/jobhunt/internal/model"
)

// DefaultMaxResponseBytes bounds the scraper service's response body.
const DefaultMaxResponseBytes = 32 << 20

// RemoteProducer asks the scraper service for a fresh batch with
// POST {baseURL}/scrape. The call is bounded by the caller's context.
type RemoteProducer struct {
	baseURL  string
	client   *http.Client
	maxBytes int64
}

var _ Producer = (*RemoteProducer)(nil)

// NewRemoteProducer returns a producer for the scraper service at baseURL.
func NewRemoteProducer(baseURL string) *RemoteProducer {
	return &RemoteProducer{baseURL: baseURL, client: &http.Client{}, maxBytes: DefaultMaxResponseBytes}
}

// WithMaxResponseBytes overrides the response size limit.
func (p *RemoteProducer) WithMaxResponseBytes(n int64) *RemoteProducer {
	p.maxBytes = n
	return p
}

// scrapeResponse mirrors the scraper service's JSON envelope.
type scrapeResponse struct {
	Success bool        `json:"success"`
	Jobs    []remoteJob `json:"jobs"`
	Count   int         `json:"count"`
	Error   string      `json:"error"`
}

type remoteJob struct {
	ExternalID     string   `json:"external_id"`
	Title          *string  `json:"title"`
	Company        *string  `json:"company"`
	Location       *string  `json:"location"`
	Description    *string  `json:"description"`
	URL            *string  `json:"url"`
	SalaryMin      *float64 `json:"salary_min"`
	SalaryMax      *float64 `json:"salary_max"`
	DatePosted     *string  `json:"date_posted"`
	Source         *string  `json:"source"`
	SearchLocation string   `json:"search_location"`
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func (j remoteJob) raw() model.RawPosting {
	r := model.RawPosting{
		ExternalID:     j.ExternalID,
		Title:          str(j.Title),
		Company:        str(j.Company),
		Location:       str(j.Location),
		Description:    str(j.Description),
		URL:            str(j.URL),
		SalaryMin:      intPtr(j.SalaryMin),
		SalaryMax:      intPtr(j.SalaryMax),
		Source:         str(j.Source),
		SearchLocation: j.SearchLocation,
	}
	if j.DatePosted != nil {
		r.DatePosted = parseDate(*j.DatePosted)
	}
	return r
}

// Fetch runs one remote scrape.
func (p *RemoteProducer) Fetch(ctx context.Context) ([]model.RawPosting, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/scrape", bytes.NewReader([]byte("{}")))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrUpstreamUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", model.ErrUpstreamUnavailable, err)
	}
	if int64(len(body)) > p.maxBytes {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", model.ErrUpstreamUnavailable, p.maxBytes)
	}

	var out scrapeResponse
	decodeErr := json.Unmarshal(body, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(body)
		if decodeErr == nil && out.Error != "" {
			msg = out.Error
		}
		return nil, fmt.Errorf("%w: scraper returned %d: %s", model.ErrUpstreamUnavailable, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decode response: %w", model.ErrUpstreamUnavailable, decodeErr)
	}
	if !out.Success {
		return nil, fmt.Errorf("%w: scraper reported failure: %s", model.ErrUpstreamUnavailable, out.Error)
	}

	raws := make([]model.RawPosting, 0, len(out.Jobs))
	for _, j := range out.Jobs {
		raws = append(raws, j.raw())
	}
	return raws, nil
}
