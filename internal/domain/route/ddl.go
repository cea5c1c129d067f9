package route

import "github.com/therapyhub/therapyhub/internal/platform/tenant"

// DDL returns the route tables applied to every new tenant schema at
// provisioning time. It must be registered after the appointment entity
// because of the foreign key.
func DDL() tenant.Entity {
	return tenant.Entity{
		Name: "route",
		Statements: []string{
			`CREATE TABLE route (
				id BIGSERIAL PRIMARY KEY,
				clinician_id UUID NOT NULL,
				route_date DATE NOT NULL,
				total_distance DOUBLE PRECISION NOT NULL DEFAULT 0,
				estimated_duration INTEGER NOT NULL DEFAULT 0,
				status VARCHAR(20) NOT NULL DEFAULT 'planned',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT route_clinician_date_key UNIQUE (clinician_id, route_date)
			)`,
			`CREATE TABLE route_stop (
				id BIGSERIAL PRIMARY KEY,
				route_id BIGINT NOT NULL REFERENCES route (id),
				appointment_id BIGINT NOT NULL REFERENCES appointment (id),
				stop_order INTEGER NOT NULL,
				visit_notes TEXT,
				arrival_time TIMESTAMPTZ,
				departure_time TIMESTAMPTZ,
				status VARCHAR(20) NOT NULL DEFAULT 'pending'
			)`,
			`CREATE INDEX idx_route_date ON route (route_date)`,
			`CREATE INDEX idx_route_stop_route ON route_stop (route_id, stop_order)`,
		},
	}
}
