package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/sleem5482/elgazaly-platform-sub001/internal/config"
)

// ErrorHandler wraps echo's default error handler so errors raised outside
// the handlers (body limit, unknown route, recovered panic) carry the origin
// grant, like forwarding failures do.
func ErrorHandler(e *echo.Echo, cors config.CORSConfig) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if !c.Response().Committed {
			c.Response().Header().Set(echo.HeaderAccessControlAllowOrigin, cors.AllowOrigin)
		}
		e.DefaultHTTPErrorHandler(err, c)
	}
}
