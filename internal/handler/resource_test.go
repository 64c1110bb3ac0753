package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/sleem5482/elgazaly-platform-sub001/internal/model"
	"github.com/sleem5482/elgazaly-platform-sub001/internal/service"
)

func gradesRoute() model.Route {
	return model.Route{
		Name:         "grades",
		Mounts:       []string{"/api/grades"},
		UpstreamPath: "/Admin/grades",
		AllowMethods: resourceMethods,
		AllowHeaders: resourceHeaders,
	}
}

func sectionsRoute() model.Route {
	return model.Route{
		Name:         "sections",
		Mounts:       []string{"/api/sections"},
		UpstreamPath: "/Admin/sections",
		AllowMethods: resourceMethods,
		AllowHeaders: resourceHeaders,
	}
}

func TestResourceHandler_Handle_Preflight(t *testing.T) {
	cfg := testConfig("https://elghazaly.runasp.net")
	svc := newTestService(t, cfg, failingUpstream{err: errors.New("must not be called")})
	h := NewResourceHandler(gradesRoute(), svc, cfg.CORS, discardLogger())

	e := echo.New()
	req := httptest.NewRequest(http.MethodOptions, "/api/grades/5", http.NoBody)
	req.Header.Set("Authorization", "Bearer x")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
	if got := rec.Header().Get("Access-Control-Allow-Methods"); got != "GET, POST, PUT, DELETE, OPTIONS" {
		t.Errorf("Access-Control-Allow-Methods = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got != "Content-Type, Authorization, X-Original-Path" {
		t.Errorf("Access-Control-Allow-Headers = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Max-Age"); got != "86400" {
		t.Errorf("Access-Control-Max-Age = %q, want %q", got, "86400")
	}
}

func TestResourceHandler_Handle_Routing(t *testing.T) {
	tests := []struct {
		name     string
		route    model.Route
		method   string
		target   string
		headers  map[string]string
		wantPath string
	}{
		{
			name:     "id from path",
			route:    gradesRoute(),
			method:   http.MethodGet,
			target:   "/api/grades/42",
			wantPath: "/api/Admin/grades/42",
		},
		{
			name:     "collection",
			route:    gradesRoute(),
			method:   http.MethodPost,
			target:   "/api/grades",
			wantPath: "/api/Admin/grades",
		},
		{
			name:     "id from query",
			route:    gradesRoute(),
			method:   http.MethodPut,
			target:   "/api/grades?id=7",
			wantPath: "/api/Admin/grades/7",
		},
		{
			name:     "id from override header",
			route:    sectionsRoute(),
			method:   http.MethodGet,
			target:   "/.netlify/functions/sections",
			headers:  map[string]string{"X-Original-Path": "/api/sections/12"},
			wantPath: "/api/Admin/sections/12",
		},
		{
			name:   "delete regex fallback",
			route:  sectionsRoute(),
			method: http.MethodDelete,
			target: "/.netlify/functions/sections",
			headers: map[string]string{
				"Referer":        "https://app.example.com/admin/section-list",
				"X-Original-Uri": "/api/sections/99",
			},
			wantPath: "/api/Admin/sections/99",
		},
		{
			name:     "encoded id from override header",
			route:    gradesRoute(),
			method:   http.MethodGet,
			target:   "/.netlify/functions/grades",
			headers:  map[string]string{"X-Original-Path": "/grades/%D8%B7%D8%A7"},
			wantPath: "/api/Admin/grades/طا",
		},
		{
			name:     "encoded id from request path",
			route:    gradesRoute(),
			method:   http.MethodGet,
			target:   "/api/grades/%D8%B7%D8%A7",
			wantPath: "/api/Admin/grades/طا",
		},
		{
			name:   "encoded id from referer on delete",
			route:  sectionsRoute(),
			method: http.MethodDelete,
			target: "/.netlify/functions/sections",
			headers: map[string]string{
				"Referer": "https://app.example.com/sections/a%20b",
			},
			wantPath: "/api/Admin/sections/a b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upstream, seen := newRecordingUpstream(t, http.StatusOK, `[]`)
			cfg := testConfig(upstream.URL)
			h := NewResourceHandler(tt.route, newTestService(t, cfg, nil), cfg.CORS, discardLogger())

			e := echo.New()
			req := httptest.NewRequest(tt.method, tt.target, http.NoBody)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			if err := h.Handle(c); err != nil {
				t.Fatalf("Handle() error = %v", err)
			}

			got := <-seen
			if got.Method != tt.method {
				t.Errorf("upstream method = %q, want %q", got.Method, tt.method)
			}
			if got.Path != tt.wantPath {
				t.Errorf("upstream path = %q, want %q", got.Path, tt.wantPath)
			}
		})
	}
}

func TestResourceHandler_Handle_RelaysResponse(t *testing.T) {
	upstream, seen := newRecordingUpstream(t, http.StatusNotFound, "grade not found")
	cfg := testConfig(upstream.URL)
	h := NewResourceHandler(gradesRoute(), newTestService(t, cfg, nil), cfg.CORS, discardLogger())

	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/api/grades/5", strings.NewReader(`{"value":"A+"}`))
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := <-seen
	if got.Body != `{"value":"A+"}` {
		t.Errorf("upstream body = %q, want raw passthrough", got.Body)
	}
	if got.Header.Get("Authorization") != "Bearer tok" {
		t.Errorf("upstream Authorization = %q, want %q", got.Header.Get("Authorization"), "Bearer tok")
	}
	if got.Header.Get("Accept") != "application/json" {
		t.Errorf("upstream Accept = %q, want application/json", got.Header.Get("Accept"))
	}

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if rec.Body.String() != "grade not found" {
		t.Errorf("body = %q, want %q", rec.Body.String(), "grade not found")
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json regardless of upstream", ct)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", rec.Header().Get("Access-Control-Allow-Origin"), "*")
	}
	if rec.Header().Get("Set-Cookie") != "" || rec.Header().Get("X-Upstream") != "" {
		t.Error("upstream response headers must not be propagated")
	}
}

func TestResourceHandler_Handle_NoAuthorization(t *testing.T) {
	upstream, seen := newRecordingUpstream(t, http.StatusOK, `[]`)
	cfg := testConfig(upstream.URL)
	h := NewResourceHandler(gradesRoute(), newTestService(t, cfg, nil), cfg.CORS, discardLogger())

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/grades", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if got := <-seen; len(got.Header.Values("Authorization")) != 0 {
		t.Errorf("upstream Authorization = %v, want none", got.Header.Values("Authorization"))
	}
}

func TestResourceHandler_Handle_NetworkFailure(t *testing.T) {
	cfg := testConfig("https://elghazaly.runasp.net")
	cause := errors.New("getaddrinfo ENOTFOUND elghazaly.runasp.net")
	svc := newTestService(t, cfg, failingUpstream{err: cause})
	h := NewResourceHandler(gradesRoute(), svc, cfg.CORS, discardLogger())

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/grades/5", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["error"] != cause.Error() {
		t.Errorf("error = %q, want %q", body["error"], cause.Error())
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", rec.Header().Get("Access-Control-Allow-Origin"), "*")
	}
	if rec.Header().Get("Access-Control-Allow-Methods") != "" {
		t.Error("failure responses carry only the origin grant")
	}
}

func TestErrorMessage(t *testing.T) {
	refused := errors.New("connect: connection refused")
	dial := &net.OpError{Op: "dial", Net: "tcp", Err: refused}
	urlErr := &url.Error{Op: "Get", URL: "https://elghazaly.runasp.net/api/Admin/grades", Err: dial}

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"upstream error keeps transport context", &service.UpstreamError{Err: urlErr}, urlErr.Error()},
		{"wrapped upstream error", fmt.Errorf("relay: %w", &service.UpstreamError{Err: refused}), "connect: connection refused"},
		{"local error", fmt.Errorf("read request body: %w", refused), "read request body: connect: connection refused"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorMessage(tt.err); got != tt.want {
				t.Errorf("errorMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResourceHandler_Handle_RealConnectionFailure(t *testing.T) {
	// Nothing listens on port 1.
	cfg := testConfig("http://127.0.0.1:1")
	svc := newTestService(t, cfg, nil)
	h := NewResourceHandler(gradesRoute(), svc, cfg.CORS, discardLogger())

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/grades", http.NoBody)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Handle(c); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !strings.Contains(body["error"], "dial tcp 127.0.0.1:1") {
		t.Errorf("error = %q, want the dial context", body["error"])
	}
}
