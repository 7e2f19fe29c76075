package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewHTTPMetricsIsShared(t *testing.T) {
	if NewHTTPMetrics() != NewHTTPMetrics() {
		t.Fatal("expected NewHTTPMetrics to return the registered collectors")
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	metrics := NewHTTPMetrics()
	counter := metrics.RequestCounter.WithLabelValues("POST", "/api/sessions/{token}/shapes", "200")
	before := testutil.ToFloat64(counter)

	metrics.RecordHTTPRequest("POST", "/api/sessions/{token}/shapes", "200", 0.02)
	metrics.RecordHTTPRequest("POST", "/api/sessions/{token}/shapes", "200", 0.03)

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("expected 2 recorded requests, got %v", got)
	}
}

func TestRecordHTTPRequestNilSafe(t *testing.T) {
	var metrics *HTTPMetrics
	metrics.RecordHTTPRequest("GET", "/healthz", "200", 0.001)
}
