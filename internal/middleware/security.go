package middleware

import (
	"github.com/labstack/echo/v4"
)

// hopByHopHeaders apply to a single connection and are never forwarded.
var hopByHopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"TE",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// localResponseHeaders are set on responses the service produces itself.
// Relayed responses carry only their CORS set and content type.
var localResponseHeaders = [][2]string{
	{echo.HeaderXContentTypeOptions, "nosniff"},
	{echo.HeaderXFrameOptions, "DENY"},
	{echo.HeaderCacheControl, "no-store"},
}

// StripHopByHop removes hop-by-hop headers from inbound requests.
func StripHopByHop() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, h := range hopByHopHeaders {
				c.Request().Header.Del(h)
			}
			return next(c)
		}
	}
}

// SecurityHeaders sets the fixed response headers for local routes such as
// health and metrics.
func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			for _, kv := range localResponseHeaders {
				h.Set(kv[0], kv[1])
			}
			return next(c)
		}
	}
}
