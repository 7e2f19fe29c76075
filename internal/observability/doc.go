// Package observability wires the whiteboard service's logging, tracing and
// HTTP metrics.
//
// # Logging
//
// NewLogger builds a log/slog logger with a JSON or text handler. Attributes
// named like credentials are redacted, and connection strings logged under
// "dsn" or "url" keys have their passwords masked:
//
//	logger := observability.NewLogger(observability.LogConfig{Level: "debug", Format: "text"})
//	logger.Info("store opened", "driver", "postgres", "dsn", dsn)
//
// # Tracing
//
// NewTracer installs an OTLP/gRPC exporter as the global OpenTelemetry
// provider when an endpoint is configured. Without one, spans go to the
// default no-op provider.
//
// # Metrics
//
// NewHTTPMetrics registers request counters and latency histograms with the
// default Prometheus registry, served by promhttp at /metrics.
package observability
