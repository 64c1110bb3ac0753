package handler

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sleem5482/elgazaly-platform-sub001/internal/config"
	"github.com/sleem5482/elgazaly-platform-sub001/internal/metrics"
	"github.com/sleem5482/elgazaly-platform-sub001/internal/middleware"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, m *metrics.Metrics, proxy *ProxyHandler, resources []*ResourceHandler, health *HealthHandler) {
	e.HTTPErrorHandler = ErrorHandler(e, cfg.CORS)

	local := middleware.SecurityHeaders()
	e.GET("/healthz", health.Healthz, local)
	e.GET("/status", health.Status, local)

	if cfg.Metrics.Enabled {
		e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})), local)
	}

	for _, mount := range proxy.Mounts() {
		e.Any(mount, proxy.Handle)
		e.Any(mount+"/*", proxy.Handle)
	}

	for _, r := range resources {
		for _, mount := range r.Route().Mounts {
			e.Any(mount, r.Handle)
			e.Any(mount+"/*", r.Handle)
		}
	}
}
