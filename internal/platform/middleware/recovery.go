package middleware

import (
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Recovery converts handler panics into 500 responses. The log line carries
// the request id and, when the request was tenant-routed, the tenant slug,
// so a panic can be traced back to the schema it ran against.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}

				var stack [4096]byte
				n := runtime.Stack(stack[:], false)

				evt := logger.Error().
					Str("method", c.Request().Method).
					Str("path", c.Request().URL.Path).
					Interface("panic", r).
					Str("stack", string(stack[:n]))
				if rid, ok := c.Get("request_id").(string); ok && rid != "" {
					evt = evt.Str("request_id", rid)
				}
				if slug, ok := c.Get("tenant_slug").(string); ok && slug != "" {
					evt = evt.Str("tenant_slug", slug)
				}
				evt.Msg("panic recovered")

				err = echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
			}()
			return next(c)
		}
	}
}
