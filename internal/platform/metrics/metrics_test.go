package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersRecord(t *testing.T) {
	m := New()
	m.Transition("PACKED")
	m.Transition("PACKED")
	m.Confirmed()

	if got := testutil.ToFloat64(m.BatchTransitions.WithLabelValues("PACKED")); got != 2 {
		t.Fatalf("transitions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.Confirmations); got != 1 {
		t.Fatalf("confirmations = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Transition("PACKED")
	m.Confirmed()
	m.ObserveOperation("op", "ok", 0.1)
}

func TestHandlerExposesRegisteredSeries(t *testing.T) {
	m := New()
	m.ObserveHTTP("/health", "GET", "200", 0.01)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "delivery_http_requests_total") {
		t.Fatalf("metrics output missing http counter:\n%s", body)
	}
}
