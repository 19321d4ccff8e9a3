// Package tracking applies the user's workflow changes (favorite, status,
// notes) to a posting's tracking record.
//
// Status graph:
//
//	new ──► applied ──► interviewing ──► offer
//	  │         │              │            │
//	  └─────────┴──────────────┴────────────┴──► rejected
//
// The graph is advisory: any recognised status may be set from any other.
// Entering applied for the first time stamps applied_date, which is never
// cleared or moved afterwards.
package tracking

import (
	"time"

	"jobmate/jobhunt/internal/model"
)

// ToggleFavorite flips the favorite flag.
func ToggleFavorite(r *model.TrackingRecord) {
	r.IsFavorite = !r.IsFavorite
}

// ApplyStatus sets the status and applies the applied_date rule.
func ApplyStatus(r *model.TrackingRecord, s model.Status, now time.Time) {
	r.Status = s
	if s == model.StatusApplied && r.AppliedDate == nil {
		d := CalendarDate(now)
		r.AppliedDate = &d
	}
}

// CalendarDate truncates t to midnight of its UTC date.
func CalendarDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
