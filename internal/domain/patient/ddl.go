package patient

import "github.com/therapyhub/therapyhub/internal/platform/tenant"

// DDL returns the patient table definition applied to every new tenant
// schema at provisioning time.
func DDL() tenant.Entity {
	return tenant.Entity{
		Name: "patient",
		Statements: []string{
			`CREATE TABLE patient (
				id BIGSERIAL PRIMARY KEY,
				first_name VARCHAR(100) NOT NULL,
				last_name VARCHAR(100) NOT NULL,
				date_of_birth DATE,
				gender VARCHAR(20),
				phone VARCHAR(30),
				email VARCHAR(255),
				address_line1 VARCHAR(255),
				address_line2 VARCHAR(255),
				city VARCHAR(100),
				state VARCHAR(100),
				postal_code VARCHAR(20),
				emergency_contact_name VARCHAR(200),
				emergency_contact_phone VARCHAR(30),
				insurance_provider VARCHAR(200),
				insurance_member_id VARCHAR(100),
				diagnosis TEXT,
				therapy_type VARCHAR(100),
				authorized_visits INTEGER NOT NULL DEFAULT 0,
				completed_visits INTEGER NOT NULL DEFAULT 0,
				status VARCHAR(20) NOT NULL DEFAULT 'active',
				notes TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE INDEX idx_patient_name ON patient (last_name, first_name)`,
			`CREATE INDEX idx_patient_status ON patient (status)`,
		},
	}
}
