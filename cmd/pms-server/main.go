package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/therapyhub/therapyhub/internal/config"
	"github.com/therapyhub/therapyhub/internal/domain/appointment"
	"github.com/therapyhub/therapyhub/internal/domain/directory"
	"github.com/therapyhub/therapyhub/internal/domain/message"
	"github.com/therapyhub/therapyhub/internal/domain/note"
	"github.com/therapyhub/therapyhub/internal/domain/patient"
	"github.com/therapyhub/therapyhub/internal/domain/profile"
	"github.com/therapyhub/therapyhub/internal/domain/route"
	"github.com/therapyhub/therapyhub/internal/platform/audit"
	"github.com/therapyhub/therapyhub/internal/platform/auth"
	"github.com/therapyhub/therapyhub/internal/platform/db"
	"github.com/therapyhub/therapyhub/internal/platform/metrics"
	"github.com/therapyhub/therapyhub/internal/platform/middleware"
	"github.com/therapyhub/therapyhub/internal/platform/tenant"
)

// devPrincipalID is the fixed identity DevMiddleware injects when the server
// runs with ENV=development and a request carries no token.
var devPrincipalID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

func main() {
	rootCmd := &cobra.Command{
		Use:   "pms-server",
		Short: "Multi-tenant practice management API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(tenantCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "public", "Target schema for migrations")
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", "public", "Target schema for migrations")
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Restore the schema from a backup or write a forward migration instead.")
			return nil
		},
	})

	return cmd
}

func tenantCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Manage tenant schemas",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Provision a tenant schema with all domain tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			slug, _ := cmd.Flags().GetString("slug")
			if !tenant.ValidSlug(slug) {
				return fmt.Errorf("--slug is required and must be a valid tenant identifier")
			}

			_, logger, pool, err := cliBootstrap()
			if err != nil {
				return err
			}
			defer pool.Close()

			ctx := context.Background()
			registry := tenant.NewRegistry(pool)
			router := tenant.NewRouter(pool, registry.SchemaExists, logger)
			provisioner := tenant.NewProvisioner(registry, router, buildDDLRegistry(), logger)

			fmt.Printf("Provisioning tenant schema: %s\n", slug)
			if err := provisioner.Provision(ctx, slug); err != nil {
				return err
			}
			fmt.Println("Tenant schema provisioned. Register the tenant record through the API to grant access.")
			return nil
		},
	}
	createCmd.Flags().String("slug", "", "Tenant identifier (lowercase alphanumeric and hyphens)")
	cmd.AddCommand(createCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List provisioned tenant schemas",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, pool, err := cliBootstrap()
			if err != nil {
				return err
			}
			defer pool.Close()

			registry := tenant.NewRegistry(pool)
			slugs, err := registry.ListSchemas(context.Background())
			if err != nil {
				return err
			}
			for _, s := range slugs {
				fmt.Println(s)
			}
			return nil
		},
	})

	dropCmd := &cobra.Command{
		Use:   "drop",
		Short: "Drop a tenant schema and all of its data",
		RunE: func(cmd *cobra.Command, args []string) error {
			slug, _ := cmd.Flags().GetString("slug")
			confirm, _ := cmd.Flags().GetBool("yes")
			if !tenant.ValidSlug(slug) {
				return fmt.Errorf("--slug is required and must be a valid tenant identifier")
			}
			if !confirm {
				return fmt.Errorf("dropping a schema is irreversible; pass --yes to confirm")
			}

			_, logger, pool, err := cliBootstrap()
			if err != nil {
				return err
			}
			defer pool.Close()

			registry := tenant.NewRegistry(pool)
			router := tenant.NewRouter(pool, registry.SchemaExists, logger)
			provisioner := tenant.NewProvisioner(registry, router, buildDDLRegistry(), logger)

			fmt.Printf("Dropping tenant schema: %s\n", slug)
			if err := provisioner.Deprovision(context.Background(), slug); err != nil {
				return err
			}
			fmt.Println("Tenant schema dropped.")
			return nil
		},
	}
	dropCmd.Flags().String("slug", "", "Tenant identifier")
	dropCmd.Flags().Bool("yes", false, "Confirm the destructive drop")
	cmd.AddCommand(dropCmd)

	return cmd
}

// cliBootstrap loads configuration and opens the shared pool for one-shot
// commands.
func cliBootstrap() (*config.Config, zerolog.Logger, *pgxpool.Pool, error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		return nil, logger, nil, err
	}

	pool, err := db.NewPool(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, logger, nil, err
	}
	return cfg, logger, pool, nil
}

// buildDDLRegistry collects the per-domain table definitions in dependency
// order: appointments reference patients, notes and route stops reference
// appointments, messages reference templates defined alongside them.
func buildDDLRegistry() *tenant.DDLRegistry {
	reg := tenant.NewDDLRegistry()
	reg.Register(patient.DDL())
	reg.Register(appointment.DDL())
	reg.Register(note.DDL())
	reg.Register(route.DDL())
	reg.Register(message.DDL())
	reg.Register(profile.DDL())
	reg.Register(audit.DDL())
	return reg
}

// meteredProvisioner wraps the schema provisioner so every provision attempt
// lands in the Prometheus histogram, whichever caller triggered it.
type meteredProvisioner struct {
	inner   *tenant.Provisioner
	metrics *metrics.HTTPMetrics
}

func (p *meteredProvisioner) Provision(ctx context.Context, slug string) error {
	start := time.Now()
	err := p.inner.Provision(ctx, slug)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	p.metrics.ObserveProvision(outcome, time.Since(start))
	return err
}

func (p *meteredProvisioner) Deprovision(ctx context.Context, slug string) error {
	return p.inner.Deprovision(ctx, slug)
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Shared platform pieces
	httpMetrics := metrics.NewHTTPMetrics("pms-server")
	issuer := auth.NewTokenIssuer([]byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTTTL())
	sink := audit.NewSink(pool, logger)

	registry := tenant.NewRegistry(pool)
	router := tenant.NewRouter(pool, registry.SchemaExists, logger)
	provisioner := &meteredProvisioner{
		inner:   tenant.NewProvisioner(registry, router, buildDDLRegistry(), logger),
		metrics: httpMetrics,
	}

	// Directory: tenants, principals, memberships, auth
	dirSvc := directory.NewService(
		directory.NewTenantRepo(pool),
		directory.NewPrincipalRepo(pool),
		directory.NewMembershipRepo(pool),
		provisioner,
		issuer,
		directory.LockoutPolicy{MaxAttempts: cfg.LoginMaxAttempts, Duration: cfg.LoginLockout()},
		logger,
	)
	dirHandler := directory.NewHandler(dirSvc)

	// Tenant-scoped domain services. All repos resolve their connection from
	// the routed scope on the request context.
	patientSvc := patient.NewService(patient.NewRepo(), sink)
	apptSvc := appointment.NewService(appointment.NewRepo(), patientSvc, sink)
	noteSvc := note.NewService(note.NewRepo(), note.NewTemplateRepo(), sink)
	routeSvc := route.NewService(route.NewRepo(), apptSvc, sink)
	msgSvc := message.NewService(message.NewRepo(), message.NewTemplateRepo(), message.NewLogGateway(logger), sink)
	profileSvc := profile.NewService(profile.NewRepo(), sink)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit(cfg.MaxBodySize))
	e.Use(middleware.SanitizeWithLogger(logger))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout()))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID", tenant.HeaderSlug},
	}))
	e.Use(httpMetrics.Middleware())

	// Operational endpoints stay outside the authenticated groups.
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.GET("/metrics", echo.WrapHandler(httpMetrics.Handler()))

	apiV1 := e.Group("/api/v1")

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	authn := auth.Middleware(issuer)
	if cfg.IsDev() {
		logger.Warn().Stringer("principal", devPrincipalID).
			Msg("development auth active, unauthenticated requests get the dev principal")
		authn = auth.DevMiddleware(devPrincipalID, "")
	}

	// Login and registration are the only unauthenticated endpoints.
	public := apiV1.Group("")
	authed := apiV1.Group("", authn)
	dirHandler.RegisterAuthRoutes(public, authed)
	dirHandler.RegisterLifecycleRoutes(authed)

	// Everything tenant-scoped runs behind membership validation and routed
	// connection scoping.
	scoped := apiV1.Group("/tenants/:tenant_slug", authn, tenant.Require(router, dirSvc, sink, logger))
	dirHandler.RegisterTenantRoutes(scoped)
	patient.NewHandler(patientSvc).RegisterRoutes(scoped)
	appointment.NewHandler(apptSvc).RegisterRoutes(scoped)
	note.NewHandler(noteSvc).RegisterRoutes(scoped)
	route.NewHandler(routeSvc).RegisterRoutes(scoped)
	message.NewHandler(msgSvc).RegisterRoutes(scoped)
	profile.NewHandler(profileSvc).RegisterRoutes(scoped)
	audit.NewHandler(sink).RegisterRoutes(scoped)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")

		var err error
		if cfg.TLSEnabled {
			err = e.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = e.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
