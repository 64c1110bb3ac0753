package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/fx"

	"github.com/sleem5482/elgazaly-platform-sub001/internal/client"
	"github.com/sleem5482/elgazaly-platform-sub001/internal/config"
	"github.com/sleem5482/elgazaly-platform-sub001/internal/handler"
	"github.com/sleem5482/elgazaly-platform-sub001/internal/metrics"
	"github.com/sleem5482/elgazaly-platform-sub001/internal/middleware"
	"github.com/sleem5482/elgazaly-platform-sub001/internal/serverless"
	"github.com/sleem5482/elgazaly-platform-sub001/internal/service"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var cli config.CLI
	kong.Parse(&cli,
		kong.Name("elghazaly-proxy"),
		kong.Description("CORS-enabled forwarding proxy for the Elghazaly platform API."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	fx.New(
		fx.Provide(
			func() *config.CLI { return &cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			newLogger,
			newMetrics,
			newEcho,
			fx.Annotate(client.NewUpstreamClient, fx.As(new(service.Upstream))),
			service.NewProxyService,
			handler.NewProxyHandler,
			handler.NewResourceHandlers,
			handler.NewHealthHandler,
		),
		fx.Invoke(handler.RegisterRoutes, start),
	).Run()
}

func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(os.Stdout, opts)
	default:
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(h)
}

func newMetrics(cfg *config.Config) *metrics.Metrics {
	return metrics.New(cfg.ReservedPaths())
}

func newEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Server.ReadTimeout = 30 * time.Second
	// The upstream client timeout bounds each response.
	e.Server.WriteTimeout = 0
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	e.Use(middleware.MetricsMiddleware(m))
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Server.BodyMaxBytes)))
	e.Use(middleware.StripHopByHop())

	return e
}

// lambdaMode reports whether requests arrive as API Gateway events.
func lambdaMode(cli *config.CLI) bool {
	return cli.Lambda || lambdacontext.FunctionName != ""
}

func start(lc fx.Lifecycle, cli *config.CLI, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	if lambdaMode(cli) {
		startLambda(lc, e, cfg, logger)
		return
	}
	startServer(lc, e, cfg, logger)
}

func startLambda(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	adapter := serverless.NewAdapter(e, logger)
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			logger.Info("starting lambda runtime",
				"payload", cfg.Lambda.Payload,
				"function_name", lambdacontext.FunctionName,
				"upstream", cfg.Upstream.BaseURL,
			)
			// lambda.Start blocks for the life of the execution environment.
			if cfg.Lambda.Payload == "v1" {
				go lambda.Start(adapter.HandleV1)
			} else {
				go lambda.Start(adapter.HandleV2)
			}
			return nil
		},
	})
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting server", "addr", addr, "upstream", cfg.Upstream.BaseURL)
			if path := cfg.FilePath(); path != "" {
				logger.Info("loaded config", "path", path)
			}
			go func() {
				if err := e.Server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return e.Shutdown(ctx)
		},
	})
}
