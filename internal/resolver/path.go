// Package resolver recovers the original request path and resource IDs from
// requests whose path may have been rewritten or hidden by the hosting gateway.
package resolver

import (
	"net/http"
	"strings"
)

// Header names consulted when the platform path cannot be trusted.
const (
	HeaderOriginalPath = "X-Original-Path"
	HeaderForwardedURI = "X-Forwarded-Uri"
	HeaderOriginalURI  = "X-Original-Uri"
	HeaderReferer      = "Referer"
)

// Source extracts one candidate path from a request. It reports false when
// the candidate is absent or empty.
type Source func(r *http.Request) (string, bool)

// Chain is an ordered list of sources; the first one to yield a value wins.
type Chain []Source

// Resolve returns the first candidate produced by the chain, or "".
func (c Chain) Resolve(r *http.Request) string {
	for _, src := range c {
		if v, ok := src(r); ok {
			return v
		}
	}
	return ""
}

// FromHeader reads a header verbatim.
func FromHeader(name string) Source {
	return func(r *http.Request) (string, bool) {
		v := r.Header.Get(name)
		return v, v != ""
	}
}

// FromReferer reads the Referer header with its query string removed.
func FromReferer() Source {
	return func(r *http.Request) (string, bool) {
		v, _, _ := strings.Cut(r.Header.Get(HeaderReferer), "?")
		return v, v != ""
	}
}

// FromRawPath reads the path the platform delivered the request on.
func FromRawPath() Source {
	return func(r *http.Request) (string, bool) {
		if r.URL == nil {
			return "", false
		}
		return r.URL.Path, r.URL.Path != ""
	}
}

// ResourceChain is used by the resource routers: override header, forwarded
// URI, referer, then the platform path.
func ResourceChain() Chain {
	return Chain{
		FromHeader(HeaderOriginalPath),
		FromHeader(HeaderForwardedURI),
		FromReferer(),
		FromRawPath(),
	}
}

// ProxyChain is used by the generic proxy. The referer names the browser page,
// not an API path, so it is not consulted.
func ProxyChain() Chain {
	return Chain{
		FromHeader(HeaderOriginalPath),
		FromHeader(HeaderForwardedURI),
		FromRawPath(),
	}
}
