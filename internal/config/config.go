// Package config handles TOML configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	toml "github.com/pelletier/go-toml/v2"
)

// DefaultUpstreamURL is the origin of the REST API every handler forwards to.
const DefaultUpstreamURL = "https://elghazaly.runasp.net"

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/elghazaly-proxy/config.toml",
	"configs/config.toml",
}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config      string           `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host        string           `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port        int              `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	UpstreamURL string           `kong:"name='upstream-url',help='Upstream API origin (overrides config).',env='UPSTREAM_URL'"`
	LogLevel    string           `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
	Lambda      bool             `kong:"help='Serve API Gateway events through the AWS Lambda runtime.',env='PROXY_LAMBDA'"`
	Version     kong.VersionFlag `kong:"help='Print version and exit.'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig     `toml:"server"`
	Upstream  UpstreamConfig   `toml:"upstream"`
	CORS      CORSConfig       `toml:"cors"`
	Proxy     ProxyConfig      `toml:"proxy"`
	Resources []ResourceConfig `toml:"resources"`
	Log       LogConfig        `toml:"log"`
	Metrics   MetricsConfig    `toml:"metrics"`
	Lambda    LambdaConfig     `toml:"lambda"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"` // 0 means "use default" (8000); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64  `toml:"body_max_bytes"`
}

// UpstreamConfig holds upstream connection settings.
type UpstreamConfig struct {
	BaseURL         string `toml:"base_url"`
	APIPrefix       string `toml:"api_prefix"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
	IdleConnections int    `toml:"idle_connections"`
}

// CORSConfig holds the response headers shared by every handler.
type CORSConfig struct {
	AllowOrigin   string `toml:"allow_origin"`
	MaxAgeSeconds int    `toml:"max_age_seconds"`
}

// ProxyConfig configures the generic POST proxy.
type ProxyConfig struct {
	Mounts       []string `toml:"mounts"`
	AllowMethods []string `toml:"allow_methods"`
	AllowHeaders []string `toml:"allow_headers"`
}

// ResourceConfig configures one resource router.
type ResourceConfig struct {
	Name         string   `toml:"name"`
	Mounts       []string `toml:"mounts"`
	UpstreamPath string   `toml:"upstream_path"`
	AllowMethods []string `toml:"allow_methods"`
	AllowHeaders []string `toml:"allow_headers"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// LambdaConfig selects the API Gateway payload format used in lambda mode.
type LambdaConfig struct {
	Payload string `toml:"payload"`
}

// Load reads the TOML config file and applies CLI overrides.
// An explicit path (via --config or CONFIG_PATH) must exist. Otherwise the
// search paths are tried and, if none exists, defaults are used; serverless
// bundles usually ship without a config file.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)
	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.UpstreamURL != "" {
		c.Upstream.BaseURL = cli.UpstreamURL
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil {
		return fmt.Errorf("upstream.base_url is not a valid URL: %w", err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("upstream.base_url must use HTTPS; got %q", c.Upstream.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("upstream.base_url has no host; got %q", c.Upstream.BaseURL)
	}
	if u.Path != "" && u.Path != "/" {
		return fmt.Errorf("upstream.base_url must be an origin without a path; got %q", c.Upstream.BaseURL)
	}
	if !strings.HasPrefix(c.Upstream.APIPrefix, "/") {
		return fmt.Errorf("upstream.api_prefix must start with '/'; got %q", c.Upstream.APIPrefix)
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}
	if c.CORS.MaxAgeSeconds < 0 {
		return fmt.Errorf("cors.max_age_seconds must be non-negative; got %d", c.CORS.MaxAgeSeconds)
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	switch c.Lambda.Payload {
	case "v1", "v2":
	default:
		return fmt.Errorf("lambda.payload must be one of: v1, v2; got %q", c.Lambda.Payload)
	}

	if err := validateMounts("proxy.mounts", c.Proxy.Mounts); err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Resources))
	for i, r := range c.Resources {
		if r.Name == "" || strings.Contains(r.Name, "/") {
			return fmt.Errorf("resources[%d].name must be a non-empty path segment; got %q", i, r.Name)
		}
		if seen[r.Name] {
			return fmt.Errorf("resources[%d].name %q is duplicated", i, r.Name)
		}
		seen[r.Name] = true
		if !strings.HasPrefix(r.UpstreamPath, "/") {
			return fmt.Errorf("resources[%d].upstream_path must start with '/'; got %q", i, r.UpstreamPath)
		}
		if err := validateMounts(fmt.Sprintf("resources[%d].mounts", i), r.Mounts); err != nil {
			return err
		}
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range c.ReservedPaths() {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

func validateMounts(field string, mounts []string) error {
	if len(mounts) == 0 {
		return fmt.Errorf("%s must not be empty", field)
	}
	for _, m := range mounts {
		if !strings.HasPrefix(m, "/") || strings.HasSuffix(m, "/") {
			return fmt.Errorf("%s entries must start and not end with '/'; got %q", field, m)
		}
	}
	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, BodyMaxBytes, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultUpstreamURL
	}
	c.Upstream.BaseURL = strings.TrimSuffix(c.Upstream.BaseURL, "/")
	if c.Upstream.APIPrefix == "" {
		c.Upstream.APIPrefix = "/api"
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 30
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.CORS.AllowOrigin == "" {
		c.CORS.AllowOrigin = "*"
	}
	if c.CORS.MaxAgeSeconds == 0 {
		c.CORS.MaxAgeSeconds = 86400
	}
	if len(c.Proxy.Mounts) == 0 {
		c.Proxy.Mounts = []string{"/api/proxy", "/.netlify/functions/proxy"}
	}
	if len(c.Proxy.AllowMethods) == 0 {
		c.Proxy.AllowMethods = []string{"POST", "OPTIONS"}
	}
	if len(c.Proxy.AllowHeaders) == 0 {
		c.Proxy.AllowHeaders = []string{"Content-Type", "Authorization"}
	}
	if len(c.Resources) == 0 {
		c.Resources = []ResourceConfig{
			{Name: "grades", UpstreamPath: "/Admin/grades"},
			{Name: "sections", UpstreamPath: "/Admin/sections"},
		}
	}
	for i := range c.Resources {
		r := &c.Resources[i]
		if r.Name == "" {
			continue // rejected by validate
		}
		if len(r.Mounts) == 0 {
			r.Mounts = []string{"/api/" + r.Name, "/.netlify/functions/" + r.Name}
		}
		if r.UpstreamPath == "" {
			r.UpstreamPath = "/Admin/" + r.Name
		}
		if len(r.AllowMethods) == 0 {
			r.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
		}
		if len(r.AllowHeaders) == 0 {
			r.AllowHeaders = []string{"Content-Type", "Authorization", "X-Original-Path"}
		}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Lambda.Payload == "" {
		c.Lambda.Payload = "v2"
	}
}

// ReservedPaths returns every route prefix owned by a handler.
func (c *Config) ReservedPaths() []string {
	paths := []string{"/healthz", "/status"}
	paths = append(paths, c.Proxy.Mounts...)
	for _, r := range c.Resources {
		paths = append(paths, r.Mounts...)
	}
	return paths
}

// FilePath returns the config file that was loaded, or empty when defaults were used.
func (c *Config) FilePath() string {
	return c.filePath
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		} else if !errors.Is(err, fs.ErrNotExist) {
			// Unreadable but present: let Load report the real error.
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
