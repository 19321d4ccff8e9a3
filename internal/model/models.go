// Package model defines the data structures shared by the ingestion, query and
// tracking components.
package model

import "time"

// RawPosting is one record handed over by a scrape producer. It is the unit
// the ingestion pipeline upserts into the postings table.
type RawPosting struct {
	ExternalID     string     `json:"external_id"`
	Title          string     `json:"title"`
	Company        string     `json:"company"`
	Location       string     `json:"location"`
	Description    string     `json:"description"`
	URL            string     `json:"url"`
	SalaryMin      *int       `json:"salary_min,omitempty"`
	SalaryMax      *int       `json:"salary_max,omitempty"`
	DatePosted     *time.Time `json:"date_posted,omitempty"`
	Source         string     `json:"source"`
	SearchLocation string     `json:"search_location"`
}

// Posting mirrors a postings row.
type Posting struct {
	ID             int64      `json:"id"`
	ExternalID     string     `json:"external_id"`
	Title          string     `json:"title"`
	Company        string     `json:"company"`
	Location       string     `json:"location"`
	Description    string     `json:"description"`
	URL            string     `json:"url"`
	SalaryMin      *int       `json:"salary_min"`
	SalaryMax      *int       `json:"salary_max"`
	Source         string     `json:"source"`
	SearchLocation string     `json:"search_location"`
	DatePosted     *time.Time `json:"date_posted"`
	DateScraped    time.Time  `json:"date_scraped"`
}

// TrackingRecord is the user's workflow state against one posting.
// A zero ID means the row has not been materialised yet and the values are
// the implicit defaults.
type TrackingRecord struct {
	ID          int64      `json:"id,omitempty"`
	PostingID   int64      `json:"posting_id"`
	IsFavorite  bool       `json:"is_favorite"`
	Status      Status     `json:"status"`
	Notes       string     `json:"notes"`
	AppliedDate *time.Time `json:"applied_date"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// DefaultTracking returns the implicit state of a posting nobody touched yet.
func DefaultTracking(postingID int64) TrackingRecord {
	return TrackingRecord{PostingID: postingID, Status: StatusNew}
}

// Materialized reports whether the record exists in storage.
func (t TrackingRecord) Materialized() bool { return t.ID != 0 }

// PostingView joins a posting with its (possibly implicit) tracking state.
type PostingView struct {
	Posting
	Tracking TrackingRecord `json:"tracking"`
}

// PostingFilter is the storage-level filter for listing postings.
// Status and FavoriteOnly are only set when they are pushed into SQL.
type PostingFilter struct {
	Location     string
	Search       string
	Status       Status
	FavoriteOnly bool
}

// AuditStatus is the outcome of one ingestion run.
type AuditStatus string

const (
	AuditSuccess AuditStatus = "success"
	AuditFailed  AuditStatus = "failed"
)

// ScrapeAudit is one append-only scrape_audit row.
type ScrapeAudit struct {
	ID           int64       `json:"id,omitempty"`
	RunID        string      `json:"run_id"`
	JobsFound    int         `json:"jobs_found"`
	JobsInserted int         `json:"jobs_inserted"`
	JobsUpdated  int         `json:"jobs_updated"`
	JobsFailed   int         `json:"jobs_failed"`
	Status       AuditStatus `json:"status"`
	ErrorMessage *string     `json:"error_message,omitempty"`
	StartedAt    time.Time   `json:"started_at"`
	CompletedAt  time.Time   `json:"completed_at"`
}

// IngestResult carries the counters of one ingestion run.
type IngestResult struct {
	RunID    string `json:"run_id"`
	Found    int    `json:"jobs_found"`
	Inserted int    `json:"jobs_inserted"`
	Updated  int    `json:"jobs_updated"`
	Failed   int    `json:"jobs_failed"`
}
