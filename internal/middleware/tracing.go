package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Tracing returns a middleware that opens a server span per request using the
// global tracer provider. Spans are named "<method> <route>".
func Tracing(service string) echo.MiddlewareFunc {
	return echo.WrapMiddleware(otelhttp.NewMiddleware(service,
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	))
}
