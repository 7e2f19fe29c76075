package web

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/haasonsaas/whiteboard/internal/observability"
)

func statusHandler(code int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(code)
	})
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	rec := httptest.NewRecorder()
	LoggingMiddleware(logger)(statusHandler(http.StatusCreated)).
		ServeHTTP(rec, httptest.NewRequest("POST", "/api/sessions", nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["method"] != "POST" || entry["path"] != "/api/sessions" || entry["status"] != float64(http.StatusCreated) {
		t.Fatalf("unexpected log entry %v", entry)
	}
	if _, ok := entry["trace_id"]; ok {
		t.Fatalf("trace_id logged without an active span: %v", entry)
	}

	// A nil logger still serves the request.
	rec = httptest.NewRecorder()
	LoggingMiddleware(nil)(statusHandler(http.StatusAccepted)).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		allowed    []string
		method     string
		origin     string
		wantOrigin string
		wantCode   int
	}{
		{"wildcard echoes origin", []string{"*"}, "GET", "http://localhost:5173", "http://localhost:5173", http.StatusOK},
		{"listed origin", []string{"http://board.test"}, "PUT", "http://board.test", "http://board.test", http.StatusOK},
		{"unlisted origin", []string{"http://board.test"}, "GET", "http://evil.test", "", http.StatusOK},
		{"no origin header", []string{"*"}, "GET", "", "", http.StatusOK},
		{"preflight short-circuits", []string{"*"}, "OPTIONS", "http://localhost:5173", "http://localhost:5173", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached := false
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { reached = true })

			req := httptest.NewRequest(tt.method, "/api/sessions", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rec := httptest.NewRecorder()
			CORSMiddleware(tt.allowed)(next).ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("allow origin = %q, want %q", got, tt.wantOrigin)
			}
			if rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if reached == (tt.method == http.MethodOptions) {
				t.Errorf("handler reached = %v for %s", reached, tt.method)
			}
		})
	}
}

func TestResponseWriterKeepsFirstStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := wrapResponseWriter(rec)

	if _, err := rw.Write([]byte("ok")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	rw.WriteHeader(http.StatusTeapot)
	if rw.status != http.StatusOK || rec.Code != http.StatusOK {
		t.Fatalf("late WriteHeader changed status: %d/%d", rw.status, rec.Code)
	}

	rw = wrapResponseWriter(httptest.NewRecorder())
	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusOK)
	if rw.status != http.StatusNotFound {
		t.Fatalf("status = %d, want first code", rw.status)
	}
}

func TestResponseWriterPassThrough(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := wrapResponseWriter(rec)

	if rw.Unwrap() != rec {
		t.Error("Unwrap should return the wrapped writer")
	}
	rw.Flush()
	if !rec.Flushed {
		t.Error("Flush should reach the recorder")
	}
	if _, _, err := rw.Hijack(); err == nil {
		t.Error("expected an error from a non-hijackable writer")
	}
}

func TestTracingMiddlewareNamesSpansByRoute(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = provider.Shutdown(context.Background())
	})

	tracer, err := observability.NewTracer(observability.TraceConfig{ServiceName: "whiteboard-test"})
	if err != nil {
		t.Fatalf("NewTracer: %v", err)
	}
	server, _ := newTestServer(t, func(cfg *Config) { cfg.Tracer = tracer })
	doJSON(t, server, "POST", "/api/sessions", `{"name":"traced"}`, nil)
	doJSON(t, server, "GET", "/api/sessions/traced/snapshot", nil, nil)

	names := map[string]bool{}
	for _, span := range exporter.GetSpans() {
		names[span.Name] = true
	}
	for _, want := range []string{"POST /api/sessions", "GET /api/sessions/{token}/snapshot"} {
		if !names[want] {
			t.Errorf("missing span %q in %v", want, names)
		}
	}

	// Without a tracer the middleware is a pass-through.
	rec := httptest.NewRecorder()
	TracingMiddleware(nil)(statusHandler(http.StatusBadGateway)).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	metrics := observability.NewHTTPMetrics()
	server, _ := newTestServer(t, func(cfg *Config) { cfg.HTTPMetrics = metrics })

	matched := metrics.RequestCounter.WithLabelValues("GET", "/api/sessions", "200")
	unmatched := metrics.RequestCounter.WithLabelValues("GET", "unmatched", "404")
	beforeMatched := testutil.ToFloat64(matched)
	beforeUnmatched := testutil.ToFloat64(unmatched)

	doJSON(t, server, "GET", "/api/sessions", nil, nil)
	doJSON(t, server, "GET", "/api/sessions", nil, nil)
	doJSON(t, server, "GET", "/nowhere", nil, nil)

	if got := testutil.ToFloat64(matched) - beforeMatched; got != 2 {
		t.Errorf("matched route count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(unmatched) - beforeUnmatched; got != 1 {
		t.Errorf("unmatched route count = %v, want 1", got)
	}
}
