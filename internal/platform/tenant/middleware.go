package tenant

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/therapyhub/therapyhub/internal/platform/auth"
)

// AccessRecorder records a validated tenant access, best-effort. It runs
// inside the routed scope so entries land in the tenant's own namespace.
type AccessRecorder interface {
	RecordAccess(ctx context.Context, method, path, ip, userAgent string)
}

// ScopedRouter is the slice of Router the middleware needs.
type ScopedRouter interface {
	ScopedRouting(ctx context.Context, slug string, fn func(ctx context.Context) error) error
}

// Require guards a route group with the full tenant control flow: resolve
// the identifier, validate the caller's membership against the shared
// namespace, then run the handler inside a routed scope that is reset on
// every exit path. Downstream handlers read the outcome through
// CurrentSlug/CurrentAccess and never touch the Router directly.
func Require(router ScopedRouter, validator AccessValidator, recorder AccessRecorder, log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			slug, source := Resolve(c)
			if slug == "" {
				return echo.NewHTTPError(http.StatusBadRequest, ErrNoTenant.Error())
			}
			if !ValidSlug(slug) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid tenant identifier")
			}

			// A lower-priority identifier that disagrees with the winner is
			// ignored by design, but worth a trace in the log.
			if source == SourcePath {
				if h := c.Request().Header.Get(HeaderSlug); h != "" && h != slug {
					log.Warn().Str("path_tenant", slug).Str("header_tenant", h).
						Msg("tenant header disagrees with path, path wins")
				}
			}

			ctx := c.Request().Context()
			principalID := auth.PrincipalIDFromContext(ctx)
			if principalID == uuid.Nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}

			access, err := validator.ValidateAccess(ctx, principalID, slug)
			if err != nil {
				switch {
				case errors.Is(err, ErrTenantNotFound):
					return echo.NewHTTPError(http.StatusNotFound, ErrTenantNotFound.Error())
				case errors.Is(err, ErrTenantInactive):
					return echo.NewHTTPError(http.StatusForbidden, ErrTenantInactive.Error())
				case errors.Is(err, ErrAccessDenied):
					return echo.NewHTTPError(http.StatusForbidden, ErrAccessDenied.Error())
				default:
					log.Error().Err(err).Str("tenant", slug).Msg("access validation failed")
					return echo.NewHTTPError(http.StatusInternalServerError, "access validation failed")
				}
			}

			err = router.ScopedRouting(ctx, slug, func(scopedCtx context.Context) error {
				scopedCtx = WithCurrent(scopedCtx, slug, access)
				c.SetRequest(c.Request().WithContext(scopedCtx))
				c.Set("tenant_slug", slug)

				if recorder != nil {
					req := c.Request()
					recorder.RecordAccess(scopedCtx, req.Method, req.URL.Path, c.RealIP(), req.UserAgent())
				}

				return next(c)
			})

			var routeErr *RoutingError
			switch {
			case err == nil:
				return nil
			case errors.Is(err, ErrSchemaNotFound):
				// Record exists but the namespace does not (lazy provisioning
				// in flight, or a drop raced the request).
				return echo.NewHTTPError(http.StatusNotFound, "tenant schema not provisioned")
			case errors.As(err, &routeErr):
				log.Error().Err(err).Str("tenant", slug).Msg("tenant routing failed")
				return echo.NewHTTPError(http.StatusServiceUnavailable, "tenant routing failed")
			default:
				return err
			}
		}
	}
}

// RequireAdmin passes only memberships with a tenant-administration role.
// Composes after Require.
func RequireAdmin() echo.MiddlewareFunc {
	return RequireRole(RoleOwner, RoleAdmin)
}

// RequireRole passes memberships holding any of the given roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			access := CurrentAccess(c.Request().Context())
			if access == nil {
				return echo.NewHTTPError(http.StatusForbidden, ErrAccessDenied.Error())
			}
			for _, role := range roles {
				if access.Role == role {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
		}
	}
}

// RequirePermission passes memberships whose effective permission set grants
// the named permission. Owner and admin roles pass unconditionally.
func RequirePermission(permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			access := CurrentAccess(c.Request().Context())
			if access == nil {
				return echo.NewHTTPError(http.StatusForbidden, ErrAccessDenied.Error())
			}
			if access.Role == RoleOwner || access.Role == RoleAdmin || access.Can(permission) {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden, "missing permission: "+permission)
		}
	}
}
