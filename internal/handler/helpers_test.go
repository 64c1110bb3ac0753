package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sleem5482/elgazaly-platform-sub001/internal/client"
	"github.com/sleem5482/elgazaly-platform-sub001/internal/config"
	"github.com/sleem5482/elgazaly-platform-sub001/internal/model"
	"github.com/sleem5482/elgazaly-platform-sub001/internal/service"
)

var (
	resourceMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	resourceHeaders = []string{"Content-Type", "Authorization", "X-Original-Path"}
)

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Upstream: config.UpstreamConfig{
			BaseURL:         baseURL,
			APIPrefix:       "/api",
			TimeoutSeconds:  10,
			IdleConnections: 10,
		},
		CORS: config.CORSConfig{AllowOrigin: "*", MaxAgeSeconds: 86400},
		Proxy: config.ProxyConfig{
			Mounts:       []string{"/api/proxy", "/.netlify/functions/proxy"},
			AllowMethods: []string{"POST", "OPTIONS"},
			AllowHeaders: []string{"Content-Type", "Authorization"},
		},
		Resources: []config.ResourceConfig{
			{
				Name:         "grades",
				Mounts:       []string{"/api/grades", "/.netlify/functions/grades"},
				UpstreamPath: "/Admin/grades",
				AllowMethods: resourceMethods,
				AllowHeaders: resourceHeaders,
			},
			{
				Name:         "sections",
				Mounts:       []string{"/api/sections", "/.netlify/functions/sections"},
				UpstreamPath: "/Admin/sections",
				AllowMethods: resourceMethods,
				AllowHeaders: resourceHeaders,
			},
		},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// capturedRequest is what the fake upstream saw.
type capturedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

// newRecordingUpstream starts an upstream that records each request and
// answers with status and body.
func newRecordingUpstream(t *testing.T, status int, body string) (*httptest.Server, <-chan capturedRequest) {
	t.Helper()
	seen := make(chan capturedRequest, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen <- capturedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   string(b),
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Set-Cookie", "session=abc")
		w.Header().Set("X-Upstream", "1")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func newTestService(t *testing.T, cfg *config.Config, up service.Upstream) *service.ProxyService {
	t.Helper()
	if up == nil {
		up = client.NewUpstreamClient(cfg, discardLogger(), nil)
	}
	svc, err := service.NewProxyService(up, cfg, discardLogger())
	if err != nil {
		t.Fatalf("NewProxyService: %v", err)
	}
	return svc
}

// failingUpstream simulates a network failure.
type failingUpstream struct{ err error }

func (f failingUpstream) DoStream(context.Context, string, string, http.Header, io.Reader) (*model.ProxyResponse, error) {
	return nil, f.err
}
