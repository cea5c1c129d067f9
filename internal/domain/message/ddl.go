package message

import "github.com/therapyhub/therapyhub/internal/platform/tenant"

// DDL returns the message tables applied to every new tenant schema at
// provisioning time.
func DDL() tenant.Entity {
	return tenant.Entity{
		Name: "message",
		Statements: []string{
			`CREATE TABLE message_template (
				id BIGSERIAL PRIMARY KEY,
				name VARCHAR(100) NOT NULL,
				content TEXT NOT NULL,
				category VARCHAR(50) NOT NULL DEFAULT '',
				created_by UUID NOT NULL,
				active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE TABLE message (
				id BIGSERIAL PRIMARY KEY,
				sender_id UUID NOT NULL,
				recipient_id UUID,
				recipient_phone VARCHAR(20),
				type VARCHAR(10) NOT NULL,
				content TEXT NOT NULL,
				status VARCHAR(20) NOT NULL DEFAULT 'pending',
				template_id BIGINT REFERENCES message_template (id),
				scheduled_at TIMESTAMPTZ,
				sent_at TIMESTAMPTZ,
				failure_reason TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CONSTRAINT message_recipient_check CHECK (recipient_id IS NOT NULL OR recipient_phone IS NOT NULL)
			)`,
			`CREATE INDEX idx_message_created_at ON message (created_at DESC)`,
			`CREATE INDEX idx_message_due ON message (scheduled_at) WHERE status = 'pending' AND scheduled_at IS NOT NULL`,
		},
	}
}
