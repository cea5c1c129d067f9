package tenant

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidIdentifier is returned for identifiers that fail the slug
	// grammar. Rejection happens before any storage is touched.
	ErrInvalidIdentifier = errors.New("invalid tenant identifier")

	// ErrSchemaExists is returned when creating a schema that already exists.
	ErrSchemaExists = errors.New("tenant schema already exists")

	// ErrSchemaNotFound is returned when dropping or routing to a schema
	// that does not exist.
	ErrSchemaNotFound = errors.New("tenant schema not found")

	// ErrTenantNotFound is returned when the resolved tenant has no record.
	// Tenant existence is intentionally revealed to authenticated callers so
	// that "no such tenant" and "no access" stay distinguishable.
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrTenantInactive is returned when the tenant record exists but has
	// been deactivated.
	ErrTenantInactive = errors.New("tenant is deactivated")

	// ErrAccessDenied is returned when the principal has no active
	// membership in the resolved tenant.
	ErrAccessDenied = errors.New("no active membership in tenant")

	// ErrNoTenant is returned when a request carries no tenant identifier
	// in any of the resolver locations.
	ErrNoTenant = errors.New("no tenant identifier in request")
)

// RoutingError wraps a storage-engine failure to switch the search path.
// It is fatal for the request: continuing would execute queries against an
// unknown namespace.
type RoutingError struct {
	Schema string
	Op     string // "route", "reset"
	Err    error
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing %s (%s): %v", e.Schema, e.Op, e.Err)
}

func (e *RoutingError) Unwrap() error { return e.Err }

// ProvisionError aggregates a provisioning failure with the outcome of the
// best-effort rollback that followed it.
type ProvisionError struct {
	Slug        string
	Stage       string // "schema", "tables", "seed"
	Err         error
	RollbackErr error // nil when rollback succeeded or was not needed
}

func (e *ProvisionError) Error() string {
	if e.RollbackErr != nil {
		return fmt.Sprintf("provision tenant %s at stage %s: %v (rollback also failed: %v)",
			e.Slug, e.Stage, e.Err, e.RollbackErr)
	}
	return fmt.Sprintf("provision tenant %s at stage %s: %v", e.Slug, e.Stage, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }
