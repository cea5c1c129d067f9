package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	PrincipalIDKey contextKey = "principal_id"
	ClaimsKey      contextKey = "claims"
)

// Middleware parses and validates the bearer token on every request and
// stashes the principal id, the full claims, and the token's tenant claim
// (for the tenant resolver) on the context. Requests without a token are
// rejected; route the public endpoints (login, register, health) outside
// the group this middleware guards.
func Middleware(issuer *TokenIssuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}

			claims, err := issuer.Parse(parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			principalID, err := uuid.Parse(claims.Subject)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token subject")
			}

			// The tenant resolver reads the claim off the echo context.
			c.Set("jwt_tenant_slug", claims.TenantSlug)

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, PrincipalIDKey, principalID)
			ctx = context.WithValue(ctx, ClaimsKey, claims)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// DevMiddleware admits unauthenticated requests with a fixed development
// principal. Never enabled outside ENV=development.
func DevMiddleware(devPrincipalID uuid.UUID, tenantSlug string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if c.Request().Header.Get("Authorization") != "" {
				return next(c)
			}

			c.Set("jwt_tenant_slug", tenantSlug)
			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, PrincipalIDKey, devPrincipalID)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// PrincipalIDFromContext returns the authenticated principal, or uuid.Nil.
func PrincipalIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(PrincipalIDKey).(uuid.UUID)
	return id
}

// ClaimsFromContext returns the parsed token claims, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(ClaimsKey).(*Claims)
	return claims
}
