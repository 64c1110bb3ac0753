package serverless

import (
	"context"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	echoadapter "github.com/awslabs/aws-lambda-go-api-proxy/echo"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// Adapter serves API Gateway events with an echo router.
type Adapter struct {
	v1     *echoadapter.EchoLambda
	v2     *echoadapter.EchoLambdaV2
	logger *slog.Logger
}

// NewAdapter returns an Adapter serving events with e.
func NewAdapter(e *echo.Echo, logger *slog.Logger) *Adapter {
	return &Adapter{
		v1:     echoadapter.New(e),
		v2:     echoadapter.NewV2(e),
		logger: logger.With("component", "lambda_adapter"),
	}
}

// HandleV2 serves an HTTP API (payload format 2.0) event.
func (a *Adapter) HandleV2(ctx context.Context, event events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	path := event.RawPath
	if path == "" {
		path = event.RequestContext.HTTP.Path
	}
	logger := a.invocationLogger(ctx)
	logger.Debug("invocation",
		"method", event.RequestContext.HTTP.Method,
		"path", path,
	)

	resp, err := a.v2.ProxyWithContext(ctx, event)
	if err != nil {
		return resp, errors.Wrap(err, "failed proxying http api event")
	}

	logger.Debug("invocation complete",
		"status", resp.StatusCode,
		"bytes_out", len(resp.Body),
	)
	return resp, nil
}

// HandleV1 serves a REST API (payload format 1.0) event.
func (a *Adapter) HandleV1(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	logger := a.invocationLogger(ctx)
	logger.Debug("invocation",
		"method", event.HTTPMethod,
		"path", event.Path,
	)

	resp, err := a.v1.ProxyWithContext(ctx, event)
	if err != nil {
		return resp, errors.Wrap(err, "failed proxying rest api event")
	}

	logger.Debug("invocation complete",
		"status", resp.StatusCode,
		"bytes_out", len(resp.Body),
	)
	return resp, nil
}

func (a *Adapter) invocationLogger(ctx context.Context) *slog.Logger {
	logger := a.logger.With("function_name", lambdacontext.FunctionName)
	if lc, ok := lambdacontext.FromContext(ctx); ok {
		logger = logger.With("aws_request_id", lc.AwsRequestID)
	}
	return logger
}
