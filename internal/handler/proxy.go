package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"

	"analytics-proxy/internal/metrics"
	"analytics-proxy/internal/model"
	"analytics-proxy/internal/service"
)

// credentialPattern matches key-like query parameters in URLs embedded in error messages.
var credentialPattern = regexp.MustCompile(`(?i)((?:api[_-]?key|access[_-]?key|token|secret)=)[^&\s"]+`)

// ProxyHandler serves POST /api/proxy.
type ProxyHandler struct {
	service *service.ProxyService
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewProxyHandler creates a ProxyHandler. The metrics parameter is optional.
func NewProxyHandler(svc *service.ProxyService, logger *slog.Logger, m *metrics.Metrics) *ProxyHandler {
	return &ProxyHandler{
		service: svc,
		logger:  logger.With("component", "proxy_handler"),
		metrics: m,
	}
}

// Handle decodes {"url": ...}, forwards it upstream and relays the JSON body.
// Every failure is answered with the same generic 500 body.
func (h *ProxyHandler) Handle(c echo.Context) error {
	req := c.Request()

	// The body limit reports overflow together with the bytes read; read to
	// the end so the error is never skipped.
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return h.mapError(c, &service.ForwardError{
			Reason: requestReason(err),
			Err:    fmt.Errorf("read request body: %w", err),
		})
	}

	var pr model.ProxyRequest
	if err := json.Unmarshal(data, &pr); err != nil {
		return h.mapError(c, &service.ForwardError{
			Reason: service.ReasonInvalidRequest,
			Err:    fmt.Errorf("decode request body: %w", err),
		})
	}

	body, err := h.service.Forward(req.Context(), &pr)
	if err != nil {
		return h.mapError(c, err)
	}

	return c.JSONBlob(http.StatusOK, body)
}

// GenericFailure renders any error left uncommitted by the rest of the route
// chain, such as the body limit's 413, as the generic failure body.
func (h *ProxyHandler) GenericFailure(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		if err == nil || c.Response().Committed {
			return err
		}
		return h.mapError(c, &service.ForwardError{Reason: requestReason(err), Err: err})
	}
}

func requestReason(err error) service.Reason {
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code == http.StatusRequestEntityTooLarge {
		return service.ReasonRequestTooLarge
	}
	return service.ReasonInvalidRequest
}

func (h *ProxyHandler) mapError(c echo.Context, err error) error {
	reason := service.ReasonOf(err)

	attrs := []any{
		"err", h.sanitizeError(err),
		"reason", string(reason),
		"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
	}
	var fe *service.ForwardError
	if errors.As(err, &fe) && fe.StatusCode != 0 {
		attrs = append(attrs, "upstream_status", fe.StatusCode)
	}
	h.logger.Error("proxy error", attrs...)

	if h.metrics != nil {
		h.metrics.ForwardFailures.WithLabelValues(string(reason)).Inc()
	}

	return c.JSON(http.StatusInternalServerError, model.GenericError())
}

// sanitizeError redacts the configured API key and key-like query parameters from err.
func (h *ProxyHandler) sanitizeError(err error) string {
	msg := credentialPattern.ReplaceAllString(err.Error(), "${1}[REDACTED]")
	if h.service != nil {
		msg = h.service.Redact(msg)
	}
	return msg
}
