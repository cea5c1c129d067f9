package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres error codes surfaced by schema DDL.
const (
	pgDuplicateSchema = "42P06"
	pgInvalidSchema   = "3F000"
)

// Registry manages tenant schemas in the database catalog. It does not
// authorize: destructive operations must be gated by the caller.
type Registry struct {
	pool *pgxpool.Pool
}

func NewRegistry(pool *pgxpool.Pool) *Registry {
	return &Registry{pool: pool}
}

// CreateSchema creates the namespace for slug. Fails with ErrSchemaExists
// when one is already present and ErrInvalidIdentifier when the slug fails
// the grammar (checked before touching storage).
func (r *Registry) CreateSchema(ctx context.Context, slug string) error {
	if !ValidSlug(slug) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, slug)
	}

	_, err := r.pool.Exec(ctx, fmt.Sprintf("CREATE SCHEMA %s", pgx.Identifier{slug}.Sanitize()))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgDuplicateSchema {
			return fmt.Errorf("%w: %s", ErrSchemaExists, slug)
		}
		return fmt.Errorf("create schema %s: %w", slug, err)
	}
	return nil
}

// DropSchema irreversibly deletes the namespace and all contained data.
// Fails with ErrSchemaNotFound when the schema is absent.
func (r *Registry) DropSchema(ctx context.Context, slug string) error {
	if !ValidSlug(slug) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, slug)
	}

	exists, err := r.SchemaExists(ctx, slug)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrSchemaNotFound, slug)
	}

	_, err = r.pool.Exec(ctx, fmt.Sprintf("DROP SCHEMA %s CASCADE", pgx.Identifier{slug}.Sanitize()))
	if err != nil {
		// The existence check above races with concurrent drops; when the
		// schema vanished in between, report NotFound rather than a raw
		// driver error.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgInvalidSchema {
			return fmt.Errorf("%w: %s", ErrSchemaNotFound, slug)
		}
		return fmt.Errorf("drop schema %s: %w", slug, err)
	}
	return nil
}

// SchemaExists queries the live catalog. Never cached: staleness would let
// a request route to a dropped schema.
func (r *Registry) SchemaExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`,
		slug,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check schema %s: %w", slug, err)
	}
	return exists, nil
}

// ListSchemas returns all provisioned tenant namespaces, excluding
// engine-reserved namespaces and the shared public schema.
func (r *Registry) ListSchemas(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT schema_name FROM information_schema.schemata
		WHERE schema_name NOT LIKE 'pg\_%'
		  AND schema_name NOT IN ('information_schema', 'public')
		ORDER BY schema_name`)
	if err != nil {
		return nil, fmt.Errorf("list schemas: %w", err)
	}
	defer rows.Close()

	var schemas []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan schema name: %w", err)
		}
		schemas = append(schemas, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schemas: %w", err)
	}
	return schemas, nil
}
