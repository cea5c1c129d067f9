package profile

import "github.com/therapyhub/therapyhub/internal/platform/tenant"

// DDL returns the profile table applied to every new tenant schema at
// provisioning time.
func DDL() tenant.Entity {
	return tenant.Entity{
		Name: "profile",
		Statements: []string{
			`CREATE TABLE profile (
				id BIGSERIAL PRIMARY KEY,
				principal_id UUID NOT NULL UNIQUE,
				title VARCHAR(50),
				license_number VARCHAR(50),
				license_state VARCHAR(50),
				license_expiry DATE,
				specializations TEXT[] NOT NULL DEFAULT '{}',
				certifications TEXT[] NOT NULL DEFAULT '{}',
				default_appointment_minutes INTEGER NOT NULL DEFAULT 60,
				max_daily_appointments INTEGER NOT NULL DEFAULT 8,
				working_days TEXT[] NOT NULL DEFAULT '{}',
				email_notifications BOOLEAN NOT NULL DEFAULT TRUE,
				sms_notifications BOOLEAN NOT NULL DEFAULT FALSE,
				theme VARCHAR(20) NOT NULL DEFAULT 'light',
				language VARCHAR(10) NOT NULL DEFAULT 'en',
				timezone VARCHAR(50) NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
		},
	}
}
