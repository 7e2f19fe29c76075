package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTPMetrics tracks API traffic.
//
// Usage:
//
//	metrics := observability.NewHTTPMetrics()
//	metrics.RecordHTTPRequest("POST", "/api/sessions/{token}/shapes", "200", 0.012)
type HTTPMetrics struct {
	// RequestDuration measures HTTP API request latency.
	// Labels: method, route, status_code
	// Buckets: 0.001s, 0.005s, 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s
	RequestDuration *prometheus.HistogramVec

	// RequestCounter counts HTTP requests.
	// Labels: method, route, status_code
	RequestCounter *prometheus.CounterVec
}

var (
	httpMetricsOnce     sync.Once
	httpMetricsInstance *HTTPMetrics
)

// NewHTTPMetrics registers the HTTP metrics with the default registry. It is
// safe to call more than once; every call returns the same collectors.
func NewHTTPMetrics() *HTTPMetrics {
	httpMetricsOnce.Do(func() {
		httpMetricsInstance = &HTTPMetrics{
			RequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "whiteboard_http_request_duration_seconds",
					Help:    "Duration of HTTP requests in seconds",
					Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
				},
				[]string{"method", "route", "status_code"},
			),
			RequestCounter: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "whiteboard_http_requests_total",
					Help: "Total number of HTTP requests by method, route, and status code",
				},
				[]string{"method", "route", "status_code"},
			),
		}
	})
	return httpMetricsInstance
}

// RecordHTTPRequest records one completed request.
func (m *HTTPMetrics) RecordHTTPRequest(method, route, statusCode string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.RequestCounter.WithLabelValues(method, route, statusCode).Inc()
	m.RequestDuration.WithLabelValues(method, route, statusCode).Observe(durationSeconds)
}
