// Package metrics exposes Prometheus instrumentation for the HTTP server
// and the tenant provisioning workflow.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPMetrics collects per-request metrics for a named service. Each
// instance owns its registry so tests can create collectors without
// tripping duplicate-registration panics.
type HTTPMetrics struct {
	serviceName string
	registry    *prometheus.Registry

	requestCounter    *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	statusCategory    *prometheus.CounterVec
	provisionCounter  *prometheus.CounterVec
	provisionDuration prometheus.Histogram
}

// NewHTTPMetrics creates and registers the metric collectors.
func NewHTTPMetrics(serviceName string) *HTTPMetrics {
	m := &HTTPMetrics{
		serviceName: serviceName,
		registry:    prometheus.NewRegistry(),

		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"service", "method", "path", "status", "tenant"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service", "method", "path", "status"},
		),
		statusCategory: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_status_category_total",
				Help: "Total number of responses by status category (2xx, 4xx, 5xx)",
			},
			[]string{"service", "category", "method", "path"},
		),
		provisionCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tenant_provision_total",
				Help: "Total number of tenant provisioning attempts by outcome",
			},
			[]string{"outcome"},
		),
		provisionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tenant_provision_duration_seconds",
				Help:    "Duration of tenant provisioning in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
	}

	m.registry.MustRegister(
		m.requestCounter,
		m.requestDuration,
		m.statusCategory,
		m.provisionCounter,
		m.provisionDuration,
	)
	return m
}

// statusCategoryLabel maps a status code to its coarse category label.
func statusCategoryLabel(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500 && status < 600:
		return "5xx"
	}
	return ""
}

// Middleware returns an Echo middleware that records request metrics.
// The path label uses the route pattern (c.Path), not the raw URL, so
// per-record URLs do not explode cardinality.
func (m *HTTPMetrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			// When a handler returns an error the status is written by
			// echo's error handler after this middleware unwinds, so the
			// response object still reads 200 here. Take the status from
			// the error itself unless a handler already committed one.
			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				status = http.StatusInternalServerError
				var httpErr *echo.HTTPError
				if errors.As(err, &httpErr) {
					status = httpErr.Code
				}
			}
			method := c.Request().Method
			path := c.Path()
			statusStr := strconv.Itoa(status)

			tenant := "-"
			if slug, ok := c.Get("tenant_slug").(string); ok && slug != "" {
				tenant = slug
			}

			m.requestCounter.WithLabelValues(m.serviceName, method, path, statusStr, tenant).Inc()
			if category := statusCategoryLabel(status); category != "" {
				m.statusCategory.WithLabelValues(m.serviceName, category, method, path).Inc()
			}
			m.requestDuration.WithLabelValues(m.serviceName, method, path, statusStr).
				Observe(time.Since(start).Seconds())

			return err
		}
	}
}

// ObserveProvision records the outcome and duration of one tenant
// provisioning attempt. Outcome is "success", "failure", or "rollback_failed".
func (m *HTTPMetrics) ObserveProvision(outcome string, elapsed time.Duration) {
	m.provisionCounter.WithLabelValues(outcome).Inc()
	m.provisionDuration.Observe(elapsed.Seconds())
}

// Handler returns the HTTP handler serving this collector's registry.
func (m *HTTPMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
