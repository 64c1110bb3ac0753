package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sleem5482/elgazaly-platform-sub001/internal/config"
	"github.com/sleem5482/elgazaly-platform-sub001/internal/model"
	"github.com/sleem5482/elgazaly-platform-sub001/internal/resolver"
	"github.com/sleem5482/elgazaly-platform-sub001/internal/service"
)

// ResourceHandler forwards any verb to one upstream resource collection,
// addressing a single item when an ID can be recovered from the request.
type ResourceHandler struct {
	forwarder
	route model.Route
	paths resolver.Chain
	ids   *resolver.IDExtractor
}

// NewResourceHandler creates a ResourceHandler for route.
func NewResourceHandler(route model.Route, svc *service.ProxyService, cors config.CORSConfig, logger *slog.Logger) *ResourceHandler {
	return &ResourceHandler{
		forwarder: forwarder{
			service: svc,
			cors:    NewCORS(cors, route.AllowMethods, route.AllowHeaders),
			logger:  logger.With("component", "resource_handler", "resource", route.Name),
		},
		route: route,
		paths: resolver.ResourceChain(),
		ids:   resolver.NewIDExtractor(route.Name),
	}
}

// NewResourceHandlers creates one ResourceHandler per configured resource.
func NewResourceHandlers(svc *service.ProxyService, cfg *config.Config, logger *slog.Logger) []*ResourceHandler {
	handlers := make([]*ResourceHandler, 0, len(cfg.Resources))
	for _, r := range cfg.Resources {
		route := model.Route{
			Name:         r.Name,
			Mounts:       r.Mounts,
			UpstreamPath: r.UpstreamPath,
			AllowMethods: r.AllowMethods,
			AllowHeaders: r.AllowHeaders,
		}
		handlers = append(handlers, NewResourceHandler(route, svc, cfg.CORS, logger))
	}
	return handlers
}

// Route returns the route the handler serves.
func (h *ResourceHandler) Route() model.Route {
	return h.route
}

// Handle answers preflights and forwards everything else.
func (h *ResourceHandler) Handle(c echo.Context) error {
	req := c.Request()

	if req.Method == http.MethodOptions {
		return h.cors.Preflight(c)
	}

	path := h.paths.Resolve(req)
	id := h.ids.Extract(req, path)
	target := h.service.ResourceURL(h.route.UpstreamPath, id)

	h.logger.Debug("routing request",
		"method", req.Method,
		"resolved_path", path,
		"id", id,
		"target", target,
	)

	return h.forward(c, req.Method, target)
}
