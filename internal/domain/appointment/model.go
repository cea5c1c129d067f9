// Package appointment schedules patient visits. Appointments live in the
// tenant schema and reference patients by serial id and clinicians by
// principal id.
package appointment

import (
	"time"

	"github.com/google/uuid"
)

// Appointment statuses.
const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

// Recurrence rules. An empty rule means a one-off appointment.
const (
	RecurWeekly   = "weekly"
	RecurBiweekly = "biweekly"
	RecurMonthly  = "monthly"
)

// maxOccurrences caps how many rows a recurring series may expand into.
const maxOccurrences = 52

// Appointment maps to the tenant-schema appointment table.
type Appointment struct {
	ID                int64      `db:"id" json:"id"`
	PatientID         int64      `db:"patient_id" json:"patient_id"`
	ClinicianID       uuid.UUID  `db:"clinician_id" json:"clinician_id"`
	StartTime         time.Time  `db:"start_time" json:"start_time"`
	EndTime           time.Time  `db:"end_time" json:"end_time"`
	Type              string     `db:"type" json:"type"`
	Status            string     `db:"status" json:"status"`
	Location          *string    `db:"location" json:"location,omitempty"`
	RecurrenceRule    string     `db:"recurrence_rule" json:"recurrence_rule,omitempty"`
	RecurrenceEndDate *time.Time `db:"recurrence_end_date" json:"recurrence_end_date,omitempty"`
	SeriesID          *int64     `db:"series_id" json:"series_id,omitempty"`
	CancelReason      *string    `db:"cancel_reason" json:"cancel_reason,omitempty"`
	Notes             *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// Filter narrows List results. Zero values are ignored.
type Filter struct {
	PatientID   int64
	ClinicianID uuid.UUID
	From        time.Time
	To          time.Time
	Status      string
}

func validStatus(s string) bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

func validRecurrence(r string) bool {
	switch r {
	case "", RecurWeekly, RecurBiweekly, RecurMonthly:
		return true
	}
	return false
}

// nextOccurrence advances a start time by one recurrence interval.
func nextOccurrence(rule string, t time.Time) time.Time {
	switch rule {
	case RecurWeekly:
		return t.AddDate(0, 0, 7)
	case RecurBiweekly:
		return t.AddDate(0, 0, 14)
	case RecurMonthly:
		return t.AddDate(0, 1, 0)
	}
	return t
}
