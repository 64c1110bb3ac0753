package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sleem5482/elgazaly-platform-sub001/internal/config"
)

// CORS is the fixed header set one handler attaches to its responses.
type CORS struct {
	AllowOrigin  string
	AllowMethods string
	AllowHeaders string
	MaxAge       string
}

// NewCORS builds the header set for a handler allowing methods and headers.
func NewCORS(cfg config.CORSConfig, methods, headers []string) CORS {
	return CORS{
		AllowOrigin:  cfg.AllowOrigin,
		AllowMethods: strings.Join(methods, ", "),
		AllowHeaders: strings.Join(headers, ", "),
		MaxAge:       strconv.Itoa(cfg.MaxAgeSeconds),
	}
}

// Preflight answers an OPTIONS request: 200, empty body, full header set.
func (c CORS) Preflight(ec echo.Context) error {
	h := ec.Response().Header()
	c.Apply(h)
	h.Set(echo.HeaderAccessControlMaxAge, c.MaxAge)
	return ec.NoContent(http.StatusOK)
}

// Apply sets the origin, methods and headers grants on h.
func (c CORS) Apply(h http.Header) {
	c.ApplyOrigin(h)
	h.Set(echo.HeaderAccessControlAllowMethods, c.AllowMethods)
	h.Set(echo.HeaderAccessControlAllowHeaders, c.AllowHeaders)
}

// ApplyOrigin sets only the origin grant; error responses carry nothing else.
func (c CORS) ApplyOrigin(h http.Header) {
	h.Set(echo.HeaderAccessControlAllowOrigin, c.AllowOrigin)
}
