package tenant

import (
	"github.com/labstack/echo/v4"
)

// Where a tenant identifier may appear in a request, in priority order.
const (
	SourcePath   = "path"
	SourceClaim  = "claim"
	SourceHeader = "header"
	SourceQuery  = "query"
	SourceNone   = ""

	// HeaderSlug is the dedicated tenant header.
	HeaderSlug = "X-Tenant-Slug"
	// claimKey is where the auth middleware stashes the token's tenant claim.
	claimKey = "jwt_tenant_slug"
)

// Resolve extracts the candidate tenant identifier from a request. Strict
// priority: path parameter, then token claim, then header, then query
// parameter. First non-empty value wins; a header or query value that
// disagrees with the path is ignored, not rejected. No I/O, no side effects.
func Resolve(c echo.Context) (slug, source string) {
	if s := c.Param("tenant_slug"); s != "" {
		return s, SourcePath
	}
	if s, ok := c.Get(claimKey).(string); ok && s != "" {
		return s, SourceClaim
	}
	if s := c.Request().Header.Get(HeaderSlug); s != "" {
		return s, SourceHeader
	}
	if s := c.QueryParam("tenant"); s != "" {
		return s, SourceQuery
	}
	return "", SourceNone
}
