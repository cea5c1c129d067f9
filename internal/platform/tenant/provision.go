package tenant

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/therapyhub/therapyhub/internal/platform/db"
)

// Entity is one tenant-scoped table set contributed by a domain package.
// Statements create the tables, Seed inserts idempotent defaults (both run
// inside the freshly routed namespace).
type Entity struct {
	Name       string
	Statements []string
	Seed       []string
}

// DDLRegistry collects the tenant-scoped entity definitions so provisioning
// never hard-codes the entity list. Domain packages register themselves at
// wiring time.
type DDLRegistry struct {
	entities []Entity
}

func NewDDLRegistry() *DDLRegistry {
	return &DDLRegistry{}
}

func (r *DDLRegistry) Register(e Entity) {
	r.entities = append(r.entities, e)
}

func (r *DDLRegistry) Entities() []Entity {
	return r.entities
}

// SchemaStore is the slice of Registry the provisioner needs.
type SchemaStore interface {
	CreateSchema(ctx context.Context, slug string) error
	DropSchema(ctx context.Context, slug string) error
}

// Provisioner runs the provisioning workflow for a new tenant namespace:
// create schema, create the registered entity tables inside it, seed
// defaults. Any failure after schema creation triggers a best-effort
// dropSchema so a half-provisioned namespace is not left behind.
type Provisioner struct {
	registry SchemaStore
	router   ScopedRouter
	ddl      *DDLRegistry
	log      zerolog.Logger
}

func NewProvisioner(registry SchemaStore, router ScopedRouter, ddl *DDLRegistry, log zerolog.Logger) *Provisioner {
	return &Provisioner{registry: registry, router: router, ddl: ddl, log: log}
}

// Provision creates and populates the namespace for slug. The tenant record
// itself is owned by the directory service; this covers the storage side.
func (p *Provisioner) Provision(ctx context.Context, slug string) error {
	if err := p.registry.CreateSchema(ctx, slug); err != nil {
		return &ProvisionError{Slug: slug, Stage: "schema", Err: err}
	}

	if err := p.apply(ctx, slug); err != nil {
		return p.rollback(ctx, slug, err)
	}

	p.log.Info().Str("tenant", slug).Int("entities", len(p.ddl.Entities())).
		Msg("tenant schema provisioned")
	return nil
}

func (p *Provisioner) apply(ctx context.Context, slug string) error {
	return p.router.ScopedRouting(ctx, slug, func(scopedCtx context.Context) error {
		conn := db.ConnFromContext(scopedCtx)

		for _, e := range p.ddl.Entities() {
			for _, stmt := range e.Statements {
				if _, err := conn.Exec(scopedCtx, stmt); err != nil {
					return &ProvisionError{Slug: slug, Stage: "tables",
						Err: fmt.Errorf("create tables for %s: %w", e.Name, err)}
				}
			}
		}

		for _, e := range p.ddl.Entities() {
			for _, stmt := range e.Seed {
				if _, err := conn.Exec(scopedCtx, stmt); err != nil {
					return &ProvisionError{Slug: slug, Stage: "seed",
						Err: fmt.Errorf("seed defaults for %s: %w", e.Name, err)}
				}
			}
		}

		return nil
	})
}

func (p *Provisioner) rollback(ctx context.Context, slug string, cause error) error {
	perr, ok := cause.(*ProvisionError)
	if !ok {
		perr = &ProvisionError{Slug: slug, Stage: "tables", Err: cause}
	}

	if err := p.registry.DropSchema(ctx, slug); err != nil {
		p.log.Error().Err(err).Str("tenant", slug).
			Msg("rollback of half-provisioned schema failed")
		perr.RollbackErr = err
	} else {
		p.log.Warn().Str("tenant", slug).Str("stage", perr.Stage).
			Msg("provisioning failed, schema rolled back")
	}
	return perr
}

// Deprovision drops the tenant namespace and everything in it. Destructive;
// the caller gates authorization. Audit history stored inside the namespace
// is destroyed with it.
func (p *Provisioner) Deprovision(ctx context.Context, slug string) error {
	return p.registry.DropSchema(ctx, slug)
}
