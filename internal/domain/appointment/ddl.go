package appointment

import "github.com/therapyhub/therapyhub/internal/platform/tenant"

// DDL returns the appointment table definition applied to every new tenant
// schema at provisioning time. It must be registered after the patient
// entity because of the foreign key.
func DDL() tenant.Entity {
	return tenant.Entity{
		Name: "appointment",
		Statements: []string{
			`CREATE TABLE appointment (
				id BIGSERIAL PRIMARY KEY,
				patient_id BIGINT NOT NULL REFERENCES patient (id),
				clinician_id UUID NOT NULL,
				start_time TIMESTAMPTZ NOT NULL,
				end_time TIMESTAMPTZ NOT NULL,
				type VARCHAR(50) NOT NULL DEFAULT 'session',
				status VARCHAR(20) NOT NULL DEFAULT 'scheduled',
				location VARCHAR(255),
				recurrence_rule VARCHAR(20) NOT NULL DEFAULT '',
				recurrence_end_date DATE,
				series_id BIGINT,
				cancel_reason TEXT,
				notes TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE INDEX idx_appointment_patient ON appointment (patient_id, start_time)`,
			`CREATE INDEX idx_appointment_clinician ON appointment (clinician_id, start_time)`,
			`CREATE INDEX idx_appointment_status ON appointment (status)`,
		},
	}
}
