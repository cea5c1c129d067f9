package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/therapyhub/therapyhub/internal/platform/db"
	"github.com/therapyhub/therapyhub/internal/platform/tenant"
)

// queryable abstracts pgxpool.Pool, pgxpool.Conn, and pgx.Tx.
type queryable interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// All directory tables live in the public schema, so these repos always
// qualify table names and never depend on the connection's search path.

// -- Tenant Repository --

type tenantRepoPG struct {
	pool *pgxpool.Pool
}

func NewTenantRepo(pool *pgxpool.Pool) TenantRepository {
	return &tenantRepoPG{pool: pool}
}

func (r *tenantRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const tenantColumns = `id, slug, name, contact_email, contact_phone, timezone, plan, logo_url, active, created_at, updated_at`

func (r *tenantRepoPG) Create(ctx context.Context, t *Tenant) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO public.tenant (id, slug, name, contact_email, contact_phone, timezone, plan, logo_url, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.Slug, t.Name, t.ContactEmail, t.ContactPhone, t.Timezone, t.Plan, t.LogoURL, t.Active,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("tenant slug %q: %w", t.Slug, ErrSlugTaken)
	}
	return err
}

func (r *tenantRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return r.scanTenant(r.conn(ctx).QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM public.tenant WHERE id = $1`, id))
}

func (r *tenantRepoPG) GetBySlug(ctx context.Context, slug string) (*Tenant, error) {
	return r.scanTenant(r.conn(ctx).QueryRow(ctx,
		`SELECT `+tenantColumns+` FROM public.tenant WHERE slug = $1`, slug))
}

func (r *tenantRepoPG) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM public.tenant WHERE slug = $1)`, slug).Scan(&exists)
	return exists, err
}

func (r *tenantRepoPG) Update(ctx context.Context, t *Tenant) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE public.tenant SET
			name = $2, contact_email = $3, contact_phone = $4, timezone = $5,
			plan = $6, logo_url = $7, updated_at = NOW()
		WHERE id = $1`,
		t.ID, t.Name, t.ContactEmail, t.ContactPhone, t.Timezone, t.Plan, t.LogoURL,
	)
	return err
}

func (r *tenantRepoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE public.tenant SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tenant.ErrTenantNotFound
	}
	return nil
}

func (r *tenantRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM public.tenant WHERE id = $1`, id)
	return err
}

func (r *tenantRepoPG) List(ctx context.Context, limit, offset int) ([]*Tenant, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM public.tenant`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+tenantColumns+` FROM public.tenant ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tenants []*Tenant
	for rows.Next() {
		t := &Tenant{}
		if err := rows.Scan(&t.ID, &t.Slug, &t.Name, &t.ContactEmail, &t.ContactPhone,
			&t.Timezone, &t.Plan, &t.LogoURL, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, 0, err
		}
		tenants = append(tenants, t)
	}
	return tenants, total, rows.Err()
}

func (r *tenantRepoPG) scanTenant(row pgx.Row) (*Tenant, error) {
	t := &Tenant{}
	err := row.Scan(&t.ID, &t.Slug, &t.Name, &t.ContactEmail, &t.ContactPhone,
		&t.Timezone, &t.Plan, &t.LogoURL, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tenant.ErrTenantNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// -- Principal Repository --

type principalRepoPG struct {
	pool *pgxpool.Pool
}

func NewPrincipalRepo(pool *pgxpool.Pool) PrincipalRepository {
	return &principalRepoPG{pool: pool}
}

func (r *principalRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const principalColumns = `id, username, email, password_hash, full_name, active, email_verified, failed_login_attempts, locked_until, created_at, updated_at`

func (r *principalRepoPG) Create(ctx context.Context, p *Principal) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO public.principal (id, username, email, password_hash, full_name, active, email_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.Username, p.Email, p.PasswordHash, p.FullName, p.Active, p.EmailVerified,
	)
	if pgErr := pgError(err); pgErr != nil && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "principal_username_key":
			return ErrUsernameTaken
		case "principal_email_key":
			return ErrEmailTaken
		}
		return ErrUsernameTaken
	}
	return err
}

func (r *principalRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Principal, error) {
	return r.scanPrincipal(r.conn(ctx).QueryRow(ctx,
		`SELECT `+principalColumns+` FROM public.principal WHERE id = $1`, id))
}

func (r *principalRepoPG) GetByUsername(ctx context.Context, username string) (*Principal, error) {
	return r.scanPrincipal(r.conn(ctx).QueryRow(ctx,
		`SELECT `+principalColumns+` FROM public.principal WHERE username = $1`, username))
}

func (r *principalRepoPG) GetByEmail(ctx context.Context, email string) (*Principal, error) {
	return r.scanPrincipal(r.conn(ctx).QueryRow(ctx,
		`SELECT `+principalColumns+` FROM public.principal WHERE email = $1`, email))
}

func (r *principalRepoPG) Update(ctx context.Context, p *Principal) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE public.principal SET
			email = $2, full_name = $3, password_hash = $4, active = $5,
			email_verified = $6, updated_at = NOW()
		WHERE id = $1`,
		p.ID, p.Email, p.FullName, p.PasswordHash, p.Active, p.EmailVerified,
	)
	return err
}

func (r *principalRepoPG) RecordLoginFailure(ctx context.Context, id uuid.UUID, attempts int, lockedUntil *time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE public.principal SET
			failed_login_attempts = $2, locked_until = $3, updated_at = NOW()
		WHERE id = $1`,
		id, attempts, lockedUntil,
	)
	return err
}

func (r *principalRepoPG) RecordLoginSuccess(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE public.principal SET
			failed_login_attempts = 0, locked_until = NULL, updated_at = NOW()
		WHERE id = $1`,
		id,
	)
	return err
}

func (r *principalRepoPG) scanPrincipal(row pgx.Row) (*Principal, error) {
	p := &Principal{}
	err := row.Scan(&p.ID, &p.Username, &p.Email, &p.PasswordHash, &p.FullName,
		&p.Active, &p.EmailVerified, &p.FailedLoginAttempts, &p.LockedUntil,
		&p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPrincipalNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// -- Membership Repository --

type membershipRepoPG struct {
	pool *pgxpool.Pool
}

func NewMembershipRepo(pool *pgxpool.Pool) MembershipRepository {
	return &membershipRepoPG{pool: pool}
}

func (r *membershipRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const membershipColumns = `id, tenant_id, principal_id, role, permission_overrides, active, invited_at, joined_at, last_access_at`

func (r *membershipRepoPG) Create(ctx context.Context, m *Membership) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	overrides, err := marshalOverrides(m.PermissionOverrides)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO public.membership (id, tenant_id, principal_id, role, permission_overrides, active, joined_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		m.ID, m.TenantID, m.PrincipalID, m.Role, overrides, m.Active, m.JoinedAt,
	)
	if isUniqueViolation(err) {
		return ErrMembershipExists
	}
	return err
}

func (r *membershipRepoPG) GetActive(ctx context.Context, tenantID, principalID uuid.UUID) (*Membership, error) {
	return r.scanMembership(r.conn(ctx).QueryRow(ctx, `
		SELECT `+membershipColumns+` FROM public.membership
		WHERE tenant_id = $1 AND principal_id = $2 AND active`,
		tenantID, principalID))
}

func (r *membershipRepoPG) ListByTenant(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]*Membership, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM public.membership WHERE tenant_id = $1`, tenantID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+membershipColumns+` FROM public.membership
		WHERE tenant_id = $1 ORDER BY invited_at LIMIT $2 OFFSET $3`,
		tenantID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	memberships, err := r.collectMemberships(rows)
	if err != nil {
		return nil, 0, err
	}
	return memberships, total, nil
}

func (r *membershipRepoPG) ListByPrincipal(ctx context.Context, principalID uuid.UUID) ([]*Membership, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+membershipColumns+` FROM public.membership
		WHERE principal_id = $1 AND active ORDER BY invited_at`,
		principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return r.collectMemberships(rows)
}

func (r *membershipRepoPG) Update(ctx context.Context, m *Membership) error {
	overrides, err := marshalOverrides(m.PermissionOverrides)
	if err != nil {
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE public.membership SET role = $2, permission_overrides = $3, active = $4
		WHERE id = $1`,
		m.ID, m.Role, overrides, m.Active,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

func (r *membershipRepoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE public.membership SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

func (r *membershipRepoPG) TouchLastAccess(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE public.membership SET last_access_at = NOW() WHERE id = $1`, id)
	return err
}

func (r *membershipRepoPG) collectMemberships(rows pgx.Rows) ([]*Membership, error) {
	var memberships []*Membership
	for rows.Next() {
		m := &Membership{}
		var overrides []byte
		if err := rows.Scan(&m.ID, &m.TenantID, &m.PrincipalID, &m.Role, &overrides,
			&m.Active, &m.InvitedAt, &m.JoinedAt, &m.LastAccessAt); err != nil {
			return nil, err
		}
		if err := unmarshalOverrides(overrides, m); err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}

func (r *membershipRepoPG) scanMembership(row pgx.Row) (*Membership, error) {
	m := &Membership{}
	var overrides []byte
	err := row.Scan(&m.ID, &m.TenantID, &m.PrincipalID, &m.Role, &overrides,
		&m.Active, &m.InvitedAt, &m.JoinedAt, &m.LastAccessAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMembershipNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := unmarshalOverrides(overrides, m); err != nil {
		return nil, err
	}
	return m, nil
}

func marshalOverrides(overrides map[string]bool) ([]byte, error) {
	if overrides == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(overrides)
}

func unmarshalOverrides(raw []byte, m *Membership) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, &m.PermissionOverrides)
}

func pgError(err error) *pgconn.PgError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr
	}
	return nil
}

func isUniqueViolation(err error) bool {
	pgErr := pgError(err)
	return pgErr != nil && pgErr.Code == "23505"
}
