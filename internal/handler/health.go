package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sleem5482/elgazaly-platform-sub001/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// statusResponse is the body of the status endpoint.
type statusResponse struct {
	Status      string   `json:"status"`
	Version     string   `json:"version"`
	UpstreamURL string   `json:"upstream_url"`
	Resources   []string `json:"resources"`
}

// Status returns proxy status information.
func (h *HealthHandler) Status(c echo.Context) error {
	resources := make([]string, 0, len(h.cfg.Resources))
	for _, r := range h.cfg.Resources {
		resources = append(resources, r.Name)
	}

	return c.JSON(http.StatusOK, statusResponse{
		Status:      "ok",
		Version:     string(h.version),
		UpstreamURL: h.cfg.Upstream.BaseURL + h.cfg.Upstream.APIPrefix,
		Resources:   resources,
	})
}
