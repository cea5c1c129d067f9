// Package note stores clinical notes attached to appointments, plus the
// reusable templates clinicians write them from. Only the authoring
// clinician or a tenant admin may change a note once written.
package note

import (
	"time"

	"github.com/google/uuid"
)

// Note types relative to the visit.
const (
	TypePreVisit  = "pre_visit"
	TypeVisit     = "visit"
	TypePostVisit = "post_visit"
)

// Note maps to the tenant-schema note table.
type Note struct {
	ID            int64     `db:"id" json:"id"`
	AppointmentID int64     `db:"appointment_id" json:"appointment_id"`
	ClinicianID   uuid.UUID `db:"clinician_id" json:"clinician_id"`
	Content       string    `db:"content" json:"content"`
	NoteType      string    `db:"note_type" json:"note_type"`
	TemplateID    *int64    `db:"template_id" json:"template_id,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Template is a reusable note skeleton (assessment, treatment, progress).
type Template struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Content   string    `db:"content" json:"content"`
	Category  string    `db:"category" json:"category,omitempty"`
	CreatedBy uuid.UUID `db:"created_by" json:"created_by"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

func validType(t string) bool {
	switch t {
	case TypePreVisit, TypeVisit, TypePostVisit:
		return true
	}
	return false
}
