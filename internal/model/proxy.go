// Package model defines shared types for the proxy.
package model

import (
	"context"
	"io"
	"net/http"
)

// ProxyRequest is an inbound request after its upstream target has been derived.
type ProxyRequest struct {
	Ctx    context.Context
	Method string
	URL    string
	Header http.Header
	Body   io.Reader
}

// ProxyResponse represents the upstream response to be streamed back.
type ProxyResponse struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// Route describes one resource router: the collection token it extracts IDs
// for, the inbound prefixes it is mounted on and the upstream path it targets.
type Route struct {
	Name         string
	Mounts       []string
	UpstreamPath string
	AllowMethods []string
	AllowHeaders []string
}
