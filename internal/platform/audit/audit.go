// Package audit writes append-only action logs into the currently routed
// tenant namespace. Entries are best-effort: a failed write is logged and
// swallowed, never failing the business operation that triggered it.
// Dropping a tenant destroys its audit history with it; that locality is a
// deliberate tradeoff, documented with the schema design.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/therapyhub/therapyhub/internal/platform/db"
	"github.com/therapyhub/therapyhub/internal/platform/tenant"
)

// Entry is one audit record.
type Entry struct {
	ID           int64           `db:"id" json:"id"`
	PrincipalID  uuid.UUID       `db:"principal_id" json:"principal_id"`
	Action       string          `db:"action" json:"action"`
	ResourceType string          `db:"resource_type" json:"resource_type"`
	ResourceID   *int64          `db:"resource_id" json:"resource_id,omitempty"`
	Description  *string         `db:"description" json:"description,omitempty"`
	OldValues    json.RawMessage `db:"old_values" json:"old_values,omitempty"`
	NewValues    json.RawMessage `db:"new_values" json:"new_values,omitempty"`
	IPAddress    *string         `db:"ip_address" json:"ip_address,omitempty"`
	UserAgent    *string         `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// Common action verbs.
const (
	ActionAccess = "access"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionLogin  = "login"
)

// Sink appends entries through the scoped connection in the context, so a
// record lands in whichever namespace the request is routed to.
type Sink struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

func NewSink(pool *pgxpool.Pool, log zerolog.Logger) *Sink {
	return &Sink{pool: pool, log: log}
}

func (s *Sink) conn(ctx context.Context) executor {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return s.pool
}

// Record appends one entry. Failures never propagate.
func (s *Sink) Record(ctx context.Context, e Entry) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.PrincipalID == uuid.Nil {
		e.PrincipalID = tenant.CurrentPrincipalID(ctx)
	}

	_, err := s.conn(ctx).Exec(ctx, `
		INSERT INTO audit_log (
			principal_id, action, resource_type, resource_id, description,
			old_values, new_values, ip_address, user_agent, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		e.PrincipalID, e.Action, e.ResourceType, e.ResourceID, e.Description,
		e.OldValues, e.NewValues, e.IPAddress, e.UserAgent, e.CreatedAt,
	)
	if err != nil {
		s.log.Error().Err(err).
			Str("action", e.Action).
			Str("resource_type", e.ResourceType).
			Str("principal_id", e.PrincipalID.String()).
			Msg("audit write failed")
		return
	}

	s.log.Debug().
		Str("action", e.Action).
		Str("resource_type", e.ResourceType).
		Str("principal_id", e.PrincipalID.String()).
		Msg("audit entry recorded")
}

// RecordAccess implements tenant.AccessRecorder: one entry per validated
// tenant request, written inside the routed scope.
func (s *Sink) RecordAccess(ctx context.Context, method, path, ip, userAgent string) {
	entry := Entry{
		PrincipalID:  tenant.CurrentPrincipalID(ctx),
		Action:       ActionAccess,
		ResourceType: "tenant",
		Description:  strPtr(method + " " + path),
	}
	if ip != "" {
		entry.IPAddress = &ip
	}
	if userAgent != "" {
		entry.UserAgent = &userAgent
	}
	s.Record(ctx, entry)
}

// List returns the newest entries in the current namespace.
func (s *Sink) List(ctx context.Context, limit, offset int) ([]*Entry, int, error) {
	var total int
	if err := s.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM audit_log`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.conn(ctx).Query(ctx, `
		SELECT id, principal_id, action, resource_type, resource_id, description,
		       old_values, new_values, ip_address, user_agent, created_at
		FROM audit_log ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(
			&e.ID, &e.PrincipalID, &e.Action, &e.ResourceType, &e.ResourceID, &e.Description,
			&e.OldValues, &e.NewValues, &e.IPAddress, &e.UserAgent, &e.CreatedAt,
		); err != nil {
			return nil, 0, err
		}
		entries = append(entries, &e)
	}
	return entries, total, nil
}

func strPtr(s string) *string { return &s }

// DDL returns the audit table definition registered with the tenant
// provisioner so every namespace carries its own log.
func DDL() tenant.Entity {
	return tenant.Entity{
		Name: "audit_log",
		Statements: []string{`
			CREATE TABLE IF NOT EXISTS audit_log (
				id BIGSERIAL PRIMARY KEY,
				principal_id UUID NOT NULL,
				action VARCHAR(50) NOT NULL,
				resource_type VARCHAR(100) NOT NULL,
				resource_id BIGINT,
				description TEXT,
				old_values JSONB,
				new_values JSONB,
				ip_address VARCHAR(45),
				user_agent TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`,
			`CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log (created_at DESC)`,
			`CREATE INDEX IF NOT EXISTS idx_audit_log_principal ON audit_log (principal_id)`,
		},
	}
}
