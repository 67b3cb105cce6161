// Package metrics holds the Prometheus collectors for the analytics proxy:
// dashboard-facing traffic, calls made with the injected key, and the reasons
// behind generic failures.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// latencyBuckets spans cached quote lookups (a few ms) up to slow chart and
// prediction queries; the last bucket equals the shutdown drain window.
var latencyBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// Metrics is registered on a private registry so tests can build as many as they need.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	UpstreamDuration  *prometheus.HistogramVec
	UpstreamResponses *prometheus.CounterVec
	ForwardFailures   *prometheus.CounterVec
}

// New creates Metrics with Go and process collectors alongside the proxy ones.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_proxy_http_requests_total",
			Help: "Dashboard requests received, by method, status and route.",
		}, []string{"method", "status_code", "path_prefix"}),

		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "analytics_proxy_http_request_duration_seconds",
			Help:    "End-to-end latency of dashboard requests in seconds, including the upstream fetch.",
			Buckets: latencyBuckets,
		}, []string{"method", "status_code", "path_prefix"}),

		RequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "analytics_proxy_http_requests_in_flight",
			Help: "Dashboard requests currently waiting on the proxy; drained on shutdown.",
		}),

		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "analytics_proxy_upstream_request_duration_seconds",
			Help:    "Latency of keyed calls to the analytics API in seconds; outcome is ok or error.",
			Buckets: latencyBuckets,
		}, []string{"outcome"}),

		UpstreamResponses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_proxy_upstream_responses_total",
			Help: "Analytics API responses by status code; non-2xx become generic failures.",
		}, []string{"status_code"}),

		ForwardFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "analytics_proxy_forward_failures_total",
			Help: "Requests answered with the generic error body, by internal reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.RequestsInFlight,
		m.UpstreamDuration,
		m.UpstreamResponses,
		m.ForwardFailures,
	)

	return m
}

// Handler serves the registry for scraping at metrics.path.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// knownMethods lists the allowed HTTP method label values (bounded cardinality).
var knownMethods = map[string]bool{
	"GET": true, "POST": true, "PUT": true, "DELETE": true,
	"PATCH": true, "HEAD": true, "OPTIONS": true,
}

// NormalizeMethod returns a bounded HTTP method label for Prometheus metrics.
// Non-standard methods are mapped to "other" to prevent cardinality explosion.
func NormalizeMethod(method string) string {
	if knownMethods[method] {
		return method
	}
	return "other"
}

// knownPrefixes are the routes the proxy serves; anything else is "other".
var knownPrefixes = []string{"/api/proxy", "/healthz", "/proxy/status", "/metrics"}

// NormalizePath returns a bounded path label for Prometheus metrics.
func NormalizePath(path string) string {
	for _, prefix := range knownPrefixes {
		if path == prefix || strings.HasPrefix(path, prefix+"/") || strings.HasPrefix(path, prefix+"?") {
			return prefix
		}
	}
	return "other"
}
