// Package service builds upstream URLs and forwards requests to the upstream API.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/sleem5482/elgazaly-platform-sub001/internal/config"
	"github.com/sleem5482/elgazaly-platform-sub001/internal/model"
)

const (
	jsonContentType = "application/json"
	userAgent       = "elghazaly-proxy/1.0"
)

// Upstream executes a single outbound request.
type Upstream interface {
	DoStream(ctx context.Context, method, url string, header http.Header, body io.Reader) (*model.ProxyResponse, error)
}

// UpstreamError marks the boundary of the upstream call: Err is exactly what
// the Upstream returned.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return "forward to upstream: " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// ProxyService derives upstream URLs and forwards requests.
type ProxyService struct {
	upstream Upstream
	logger   *slog.Logger
	apiBase  string // origin + API prefix, no trailing slash
}

// NewProxyService creates a ProxyService targeting the configured upstream.
func NewProxyService(up Upstream, cfg *config.Config, logger *slog.Logger) (*ProxyService, error) {
	u, err := url.Parse(cfg.Upstream.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base_url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("upstream base_url %q is not absolute", cfg.Upstream.BaseURL)
	}

	return &ProxyService{
		upstream: up,
		logger:   logger.With("component", "proxy_service"),
		apiBase:  u.Scheme + "://" + u.Host + strings.TrimSuffix(cfg.Upstream.APIPrefix, "/"),
	}, nil
}

// ResourceURL returns the upstream URL for a resource collection, or for one
// of its items when id is non-empty.
func (s *ProxyService) ResourceURL(resourcePath, id string) string {
	u := s.apiBase + resourcePath
	if id != "" {
		u += "/" + normalizeID(id)
	}
	return u
}

// normalizeID returns id as a single escaped path segment. IDs read from
// headers arrive percent-encoded and IDs from the request path arrive
// decoded; both yield the same segment.
func normalizeID(id string) string {
	if decoded, err := url.PathUnescape(id); err == nil {
		id = decoded
	}
	return url.PathEscape(id)
}

// ProxyURL returns the upstream URL for an arbitrary API path. rest is the
// inbound path with its mount prefix removed; it may carry its own query.
// rawQuery is appended only when rest has none.
func (s *ProxyService) ProxyURL(rest, rawQuery string) string {
	if rest != "" && !strings.HasPrefix(rest, "/") {
		rest = "/" + rest
	}
	u := s.apiBase + rest
	if rawQuery != "" && !strings.Contains(rest, "?") {
		u += "?" + rawQuery
	}
	return u
}

// Forward sends pr upstream and returns the response.
// The caller is responsible for closing the response body.
func (s *ProxyService) Forward(pr *model.ProxyRequest) (*model.ProxyResponse, error) {
	s.logger.Debug("forwarding request",
		"method", pr.Method,
		"url", pr.URL,
	)

	resp, err := s.upstream.DoStream(pr.Ctx, pr.Method, pr.URL, outboundHeaders(pr.Header), pr.Body)
	if err != nil {
		return nil, &UpstreamError{Err: err}
	}
	return resp, nil
}

// outboundHeaders builds the upstream request headers. Only the
// Authorization header is taken from the inbound request.
func outboundHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	dst.Set("Content-Type", jsonContentType)
	dst.Set("Accept", jsonContentType)
	dst.Set("User-Agent", userAgent)
	if v := src.Get("Authorization"); v != "" {
		dst.Set("Authorization", v)
	}
	return dst
}
