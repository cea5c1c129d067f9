// Package profile keeps each member's tenant-local settings: professional
// credentials, scheduling preferences, and notification choices. The row is
// keyed by principal id; identity itself lives in the shared namespace.
package profile

import (
	"time"

	"github.com/google/uuid"
)

// Profile maps to the tenant-schema profile table.
type Profile struct {
	ID          int64     `db:"id" json:"id"`
	PrincipalID uuid.UUID `db:"principal_id" json:"principal_id"`

	Title         *string    `db:"title" json:"title,omitempty"` // Dr., PT, PTA
	LicenseNumber *string    `db:"license_number" json:"license_number,omitempty"`
	LicenseState  *string    `db:"license_state" json:"license_state,omitempty"`
	LicenseExpiry *time.Time `db:"license_expiry" json:"license_expiry,omitempty"`

	Specializations []string `db:"specializations" json:"specializations,omitempty"`
	Certifications  []string `db:"certifications" json:"certifications,omitempty"`

	DefaultAppointmentMinutes int      `db:"default_appointment_minutes" json:"default_appointment_minutes"`
	MaxDailyAppointments      int      `db:"max_daily_appointments" json:"max_daily_appointments"`
	WorkingDays               []string `db:"working_days" json:"working_days,omitempty"`

	EmailNotifications bool `db:"email_notifications" json:"email_notifications"`
	SMSNotifications   bool `db:"sms_notifications" json:"sms_notifications"`

	Theme    string `db:"theme" json:"theme"`
	Language string `db:"language" json:"language"`
	Timezone string `db:"timezone" json:"timezone,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Licensed reports whether the profile carries an unexpired license.
func (p *Profile) Licensed(now time.Time) bool {
	if p.LicenseNumber == nil || *p.LicenseNumber == "" {
		return false
	}
	return p.LicenseExpiry == nil || p.LicenseExpiry.After(now)
}

// defaults fills unset preference fields for a new profile.
func (p *Profile) defaults() {
	if p.DefaultAppointmentMinutes == 0 {
		p.DefaultAppointmentMinutes = 60
	}
	if p.MaxDailyAppointments == 0 {
		p.MaxDailyAppointments = 8
	}
	if p.Theme == "" {
		p.Theme = "light"
	}
	if p.Language == "" {
		p.Language = "en"
	}
}
