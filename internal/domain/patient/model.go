// Package patient manages the practice's patient roster. All records live
// in the tenant schema and are only reachable through a routed connection.
package patient

import "time"

// Patient statuses.
const (
	StatusActive     = "active"
	StatusWaitlist   = "waitlist"
	StatusDischarged = "discharged"
)

// Patient maps to the tenant-schema patient table.
type Patient struct {
	ID                    int64      `db:"id" json:"id"`
	FirstName             string     `db:"first_name" json:"first_name"`
	LastName              string     `db:"last_name" json:"last_name"`
	DateOfBirth           *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Gender                *string    `db:"gender" json:"gender,omitempty"`
	Phone                 *string    `db:"phone" json:"phone,omitempty"`
	Email                 *string    `db:"email" json:"email,omitempty"`
	AddressLine1          *string    `db:"address_line1" json:"address_line1,omitempty"`
	AddressLine2          *string    `db:"address_line2" json:"address_line2,omitempty"`
	City                  *string    `db:"city" json:"city,omitempty"`
	State                 *string    `db:"state" json:"state,omitempty"`
	PostalCode            *string    `db:"postal_code" json:"postal_code,omitempty"`
	EmergencyContactName  *string    `db:"emergency_contact_name" json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone *string    `db:"emergency_contact_phone" json:"emergency_contact_phone,omitempty"`
	InsuranceProvider     *string    `db:"insurance_provider" json:"insurance_provider,omitempty"`
	InsuranceMemberID     *string    `db:"insurance_member_id" json:"insurance_member_id,omitempty"`
	Diagnosis             *string    `db:"diagnosis" json:"diagnosis,omitempty"`
	TherapyType           *string    `db:"therapy_type" json:"therapy_type,omitempty"`
	AuthorizedVisits      int        `db:"authorized_visits" json:"authorized_visits"`
	CompletedVisits       int        `db:"completed_visits" json:"completed_visits"`
	Status                string     `db:"status" json:"status"`
	Notes                 *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time  `db:"updated_at" json:"updated_at"`
}

// VisitsRemaining reports how many authorized visits are left, or -1 when
// no authorization cap is set.
func (p *Patient) VisitsRemaining() int {
	if p.AuthorizedVisits <= 0 {
		return -1
	}
	remaining := p.AuthorizedVisits - p.CompletedVisits
	if remaining < 0 {
		return 0
	}
	return remaining
}

// SearchFilter narrows List results.
type SearchFilter struct {
	Name   string
	Status string
}

func validStatus(s string) bool {
	switch s {
	case StatusActive, StatusWaitlist, StatusDischarged:
		return true
	}
	return false
}
