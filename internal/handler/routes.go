package handler

import (
	"fmt"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"analytics-proxy/internal/config"
)

// RegisterRoutes wires all route handlers onto the Echo instance.
// The body limit sits on the proxy route, inside GenericFailure, so an
// oversized request gets the same failure body as any other.
func RegisterRoutes(e *echo.Echo, cfg *config.Config, proxy *ProxyHandler, health *HealthHandler) {
	e.GET("/healthz", health.Healthz)
	e.GET("/proxy/status", health.Status)

	proxyMW := []echo.MiddlewareFunc{proxy.GenericFailure}
	if cfg.Server.BodyMaxBytes > 0 {
		proxyMW = append(proxyMW, echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Server.BodyMaxBytes)))
	}
	e.POST("/api/proxy", proxy.Handle, proxyMW...)
}
