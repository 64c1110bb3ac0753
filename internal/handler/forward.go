package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sleem5482/elgazaly-platform-sub001/internal/model"
	"github.com/sleem5482/elgazaly-platform-sub001/internal/service"
)

// forwarder relays one request upstream and writes the response with a fixed
// CORS header set. It is shared by the generic proxy and the resource routers.
type forwarder struct {
	service *service.ProxyService
	cors    CORS
	logger  *slog.Logger
}

func (f *forwarder) forward(c echo.Context, method, target string) error {
	req := c.Request()

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return f.fail(c, fmt.Errorf("read request body: %w", err))
	}

	var upstreamBody io.Reader
	if len(body) > 0 {
		upstreamBody = bytes.NewReader(body)
	}

	resp, err := f.service.Forward(&model.ProxyRequest{
		// The upstream call runs to completion even if the caller goes away;
		// the client timeout bounds it.
		Ctx:    context.WithoutCancel(req.Context()),
		Method: method,
		URL:    target,
		Header: req.Header,
		Body:   upstreamBody,
	})
	if err != nil {
		return f.fail(c, err)
	}
	defer func() { _ = resp.Body.Close() }()

	h := c.Response().Header()
	f.cors.Apply(h)
	h.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	c.Response().WriteHeader(resp.StatusCode)

	// The status is already sent; a copy failure leaves the client with a
	// truncated body, so it is only logged.
	if _, err := io.Copy(c.Response(), resp.Body); err != nil {
		f.logger.Error("streaming response body",
			"err", err,
			"path", req.URL.Path,
		)
	}
	return nil
}

// fail writes the 500 response for a forwarding error. The body carries the
// message the upstream call produced.
func (f *forwarder) fail(c echo.Context, err error) error {
	f.logger.Error("proxy error",
		"err", err,
		"path", c.Request().URL.Path,
	)

	f.cors.ApplyOrigin(c.Response().Header())
	return c.JSON(http.StatusInternalServerError, map[string]string{
		"error": errorMessage(err),
	})
}

// errorMessage returns the upstream call's own error message when err came
// from it, and err's full message otherwise.
func errorMessage(err error) string {
	var ue *service.UpstreamError
	if errors.As(err, &ue) {
		return ue.Err.Error()
	}
	return err.Error()
}
