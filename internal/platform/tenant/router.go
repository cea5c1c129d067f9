package tenant

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/therapyhub/therapyhub/internal/platform/db"
)

// execer is the slice of a connection the routing logic needs.
type execer interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// Router hands out routed connection scopes. Routing state is never global:
// each request gets its own Scope whose search_path is set on checkout and
// reset on every exit path before the connection returns to the pool.
type Router struct {
	pool   *pgxpool.Pool
	exists SlugExistsFunc
	log    zerolog.Logger
}

// NewRouter creates a Router over the shared pool. The existence check is
// consulted before every switch so that a dropped schema cannot be routed
// to; pass registry.SchemaExists.
func NewRouter(pool *pgxpool.Pool, exists SlugExistsFunc, log zerolog.Logger) *Router {
	return &Router{pool: pool, exists: exists, log: log}
}

// Begin checks a connection out of the pool wrapped in a Scope. The caller
// owns the Scope and must Close it; Close resets the search_path and, if the
// reset fails, destroys the underlying connection so the pool can never
// re-issue a mis-routed one.
func (r *Router) Begin(ctx context.Context) (*Scope, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	return &Scope{
		conn:   conn,
		sess:   conn,
		exists: r.exists,
		log:    r.log,
		release: func(destroy bool) {
			if destroy {
				// Closing the underlying pgx connection before Release makes
				// the pool discard it instead of reusing it.
				_ = conn.Conn().Close(context.Background())
			}
			conn.Release()
		},
	}, nil
}

// ScopedRouting routes a fresh scope to slug, runs fn with the scoped
// connection injected into the context, and resets the scope on every exit
// path, panics included.
func (r *Router) ScopedRouting(ctx context.Context, slug string, fn func(ctx context.Context) error) (err error) {
	scope, err := r.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := scope.Close(context.Background()); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err = scope.RouteTo(ctx, slug); err != nil {
		return err
	}
	return fn(db.WithConn(ctx, scope.Conn()))
}

// Scope is one checked-out connection plus its current routing target.
// Not safe for concurrent use; a Scope belongs to exactly one request.
type Scope struct {
	conn    *pgxpool.Conn
	sess    execer
	exists  SlugExistsFunc
	log     zerolog.Logger
	release func(destroy bool)
	current string // routed schema, "" when at the shared namespace
	closed  bool
}

// Conn exposes the underlying pooled connection for context injection.
func (s *Scope) Conn() *pgxpool.Conn { return s.conn }

// Current returns the schema the scope is routed to, or "" for shared.
func (s *Scope) Current() string { return s.current }

// RouteTo points subsequent queries on this connection at the named tenant
// schema, falling back to public for shared definitions. Idempotent:
// routing to the schema the scope is already at is a no-op.
func (s *Scope) RouteTo(ctx context.Context, slug string) error {
	if s.closed {
		return fmt.Errorf("routing on closed scope")
	}
	if !ValidSlug(slug) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, slug)
	}
	if s.current == slug {
		return nil
	}

	if s.exists != nil {
		ok, err := s.exists(ctx, slug)
		if err != nil {
			return &RoutingError{Schema: slug, Op: "route", Err: err}
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrSchemaNotFound, slug)
		}
	}

	stmt := fmt.Sprintf("SET search_path TO %s, public", pgx.Identifier{slug}.Sanitize())
	if _, err := s.sess.Exec(ctx, stmt); err != nil {
		return &RoutingError{Schema: slug, Op: "route", Err: err}
	}
	s.current = slug
	return nil
}

// RouteToShared resets the connection to the shared namespace only.
func (s *Scope) RouteToShared(ctx context.Context) error {
	if s.closed {
		return fmt.Errorf("routing on closed scope")
	}
	if s.current == "" {
		return nil
	}
	if _, err := s.sess.Exec(ctx, "SET search_path TO public"); err != nil {
		return &RoutingError{Schema: "public", Op: "reset", Err: err}
	}
	s.current = ""
	return nil
}

// Close returns the connection to the pool. A routed scope is reset first;
// if the reset fails the connection is destroyed rather than reused, since
// a pooled connection with unknown routing state is a cross-tenant leak.
func (s *Scope) Close(ctx context.Context) error {
	if s.closed {
		return nil
	}
	s.closed = true

	if s.current == "" {
		if s.release != nil {
			s.release(false)
		}
		return nil
	}

	if _, err := s.sess.Exec(ctx, "SET search_path TO public"); err != nil {
		s.log.Error().Err(err).Str("schema", s.current).
			Msg("search_path reset failed, destroying connection")
		if s.release != nil {
			s.release(true)
		}
		return &RoutingError{Schema: s.current, Op: "reset", Err: err}
	}

	s.current = ""
	if s.release != nil {
		s.release(false)
	}
	return nil
}
