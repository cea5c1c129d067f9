// Package route plans a clinician's day of home visits as an ordered stop
// list over their scheduled appointments. The planner uses fixed travel
// estimates; a mapping provider would replace those numbers, not the shape.
package route

import (
	"time"

	"github.com/google/uuid"
)

// Route statuses.
const (
	StatusPlanned    = "planned"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Stop statuses.
const (
	StopPending   = "pending"
	StopArrived   = "arrived"
	StopCompleted = "completed"
	StopSkipped   = "skipped"
)

// Planner travel estimates between consecutive stops.
const (
	travelMinutesBetweenStops = 15
	travelMilesBetweenStops   = 5.0
)

// Route is one clinician's planned day. Stops are loaded alongside it,
// ordered by StopOrder.
type Route struct {
	ID                int64     `db:"id" json:"id"`
	ClinicianID       uuid.UUID `db:"clinician_id" json:"clinician_id"`
	RouteDate         time.Time `db:"route_date" json:"route_date"`
	TotalDistance     float64   `db:"total_distance" json:"total_distance"`
	EstimatedDuration int       `db:"estimated_duration" json:"estimated_duration"` // minutes
	Status            string    `db:"status" json:"status"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`

	Stops []*Stop `db:"-" json:"stops,omitempty"`
}

// Stop links one appointment into a route's visit order.
type Stop struct {
	ID            int64      `db:"id" json:"id"`
	RouteID       int64      `db:"route_id" json:"route_id"`
	AppointmentID int64      `db:"appointment_id" json:"appointment_id"`
	StopOrder     int        `db:"stop_order" json:"stop_order"`
	VisitNotes    *string    `db:"visit_notes" json:"visit_notes,omitempty"`
	ArrivalTime   *time.Time `db:"arrival_time" json:"arrival_time,omitempty"`
	DepartureTime *time.Time `db:"departure_time" json:"departure_time,omitempty"`
	Status        string     `db:"status" json:"status"`
}

func validStopStatus(s string) bool {
	switch s {
	case StopPending, StopArrived, StopCompleted, StopSkipped:
		return true
	}
	return false
}

// settled reports whether the stop needs no further visit.
func (s *Stop) settled() bool {
	return s.Status == StopCompleted || s.Status == StopSkipped
}
