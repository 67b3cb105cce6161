package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"analytics-proxy/internal/config"
	"analytics-proxy/internal/service"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	service *service.ProxyService
	version Version
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, svc *service.ProxyService, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, service: svc, version: v}
}

// Healthz returns a simple OK response for liveness probes.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns proxy status information. The credential is never included.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":           "ok",
		"version":          string(h.version),
		"host_restriction": onOff(h.service.HostRestricted()),
		"tracing":          onOff(h.cfg.Tracing.Endpoint != ""),
	})
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
