package model

import "fmt"

// Status values mirror the tracking_status enum in PostgreSQL.
//
//	new ──► applied ──► interviewing ──► offer
//	  └──────────┴────────────┴────────────┴──► rejected
//
// The graph is advisory: any status may be set from any other. Only the
// first entry into applied has a side effect (applied_date).
type Status string

const (
	StatusNew          Status = "new"
	StatusApplied      Status = "applied"
	StatusInterviewing Status = "interviewing"
	StatusOffer        Status = "offer"
	StatusRejected     Status = "rejected"
)

// Statuses lists every recognised status in workflow order.
var Statuses = []Status{StatusNew, StatusApplied, StatusInterviewing, StatusOffer, StatusRejected}

// ParseStatus converts a raw string to a Status. Matching is exact and
// case-sensitive; anything else is a *ValidationError.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	switch st {
	case StatusNew, StatusApplied, StatusInterviewing, StatusOffer, StatusRejected:
		return st, nil
	}
	return "", &ValidationError{Msg: fmt.Sprintf("unknown tracking status %q", s)}
}
