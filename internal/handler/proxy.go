package handler

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sleem5482/elgazaly-platform-sub001/internal/config"
	"github.com/sleem5482/elgazaly-platform-sub001/internal/resolver"
	"github.com/sleem5482/elgazaly-platform-sub001/internal/service"
)

// ProxyHandler forwards POST requests on any path below its mounts to the
// same path under the upstream API prefix.
type ProxyHandler struct {
	forwarder
	mounts []string
	paths  resolver.Chain
}

// NewProxyHandler creates a ProxyHandler.
func NewProxyHandler(svc *service.ProxyService, cfg *config.Config, logger *slog.Logger) *ProxyHandler {
	mounts := append([]string(nil), cfg.Proxy.Mounts...)
	// Longest first so nested mounts strip fully.
	sort.Slice(mounts, func(i, j int) bool { return len(mounts[i]) > len(mounts[j]) })

	return &ProxyHandler{
		forwarder: forwarder{
			service: svc,
			cors:    NewCORS(cfg.CORS, cfg.Proxy.AllowMethods, cfg.Proxy.AllowHeaders),
			logger:  logger.With("component", "proxy_handler"),
		},
		mounts: mounts,
		paths:  resolver.ProxyChain(),
	}
}

// Mounts returns the path prefixes the handler serves.
func (h *ProxyHandler) Mounts() []string {
	return h.mounts
}

// Handle answers preflights, rejects non-POST methods and forwards the rest.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	switch req.Method {
	case http.MethodOptions:
		return h.cors.Preflight(c)
	case http.MethodPost:
	default:
		h.cors.Apply(c.Response().Header())
		return c.JSON(http.StatusMethodNotAllowed, map[string]string{
			"error": "Method not allowed",
		})
	}

	rest := h.stripMount(h.paths.Resolve(req))
	target := h.service.ProxyURL(rest, req.URL.RawQuery)

	h.logger.Debug("proxying request",
		"path", req.URL.Path,
		"target", target,
	)

	return h.forward(c, http.MethodPost, target)
}

// stripMount removes the first mount prefix path falls under. Paths outside
// every mount are already API-relative (e.g. from an override header).
func (h *ProxyHandler) stripMount(path string) string {
	for _, m := range h.mounts {
		if path == m || strings.HasPrefix(path, m+"/") || strings.HasPrefix(path, m+"?") {
			return path[len(m):]
		}
	}
	return path
}
