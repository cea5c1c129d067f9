package note

import "github.com/therapyhub/therapyhub/internal/platform/tenant"

// DDL returns the note tables applied to every new tenant schema at
// provisioning time. It must be registered after the appointment entity
// because of the foreign key.
func DDL() tenant.Entity {
	return tenant.Entity{
		Name: "note",
		Statements: []string{
			`CREATE TABLE note_template (
				id BIGSERIAL PRIMARY KEY,
				name VARCHAR(100) NOT NULL,
				content TEXT NOT NULL,
				category VARCHAR(50) NOT NULL DEFAULT '',
				created_by UUID NOT NULL,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE note (
				id BIGSERIAL PRIMARY KEY,
				appointment_id BIGINT NOT NULL REFERENCES appointment (id),
				clinician_id UUID NOT NULL,
				content TEXT NOT NULL,
				note_type VARCHAR(20) NOT NULL DEFAULT 'visit',
				template_id BIGINT REFERENCES note_template (id),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE INDEX idx_note_appointment ON note (appointment_id, created_at)`,
			`CREATE INDEX idx_note_clinician ON note (clinician_id)`,
		},
	}
}
