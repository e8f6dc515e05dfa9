package observability_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/courier/observability"
)

func gather(t *testing.T, reg *prometheus.Registry) map[string][]float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	out := map[string][]float64{}
	for _, f := range families {
		for _, m := range f.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				out[f.GetName()] = append(out[f.GetName()], m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				out[f.GetName()] = append(out[f.GetName()], m.GetGauge().GetValue())
			case m.GetHistogram() != nil:
				out[f.GetName()] = append(out[f.GetName()], float64(m.GetHistogram().GetSampleCount()))
			}
		}
	}
	return out
}

func TestPrometheusSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := observability.NewPrometheus(reg)

	p.MessageReceived(512)
	p.MessageReceived(1024)
	p.MessageSent()
	p.MessageFailed()
	p.MessageSkipped()
	p.RetryAttempt()
	p.AttemptCompleted(200, 10*time.Millisecond)
	p.AttemptCompleted(503, 20*time.Millisecond)
	p.AttemptCompleted(503, 30*time.Millisecond)
	p.PendingMessages(7)
	p.ObserveLatency(observability.OpIngest, time.Millisecond)

	got := gather(t, reg)

	checks := map[string]float64{
		"courier_messages_received_total": 2,
		"courier_messages_sent_total":     1,
		"courier_messages_failed_total":   1,
		"courier_messages_skipped_total":  1,
		"courier_retry_attempts_total":    1,
		"courier_messages_pending":        7,
		"courier_payload_size_bytes":      2,
	}
	for name, want := range checks {
		vals, ok := got[name]
		if !ok || len(vals) != 1 {
			t.Errorf("%s: got %v", name, vals)
			continue
		}
		if vals[0] != want {
			t.Errorf("%s = %v, want %v", name, vals[0], want)
		}
	}

	// 200 and 503 label combinations.
	if n := len(got["courier_backend_response_status_total"]); n != 2 {
		t.Errorf("expected 2 status codes, got %d", n)
	}
	// attempt and ingest operations.
	if n := len(got["courier_processing_latency_seconds"]); n != 2 {
		t.Errorf("expected 2 operations, got %d", n)
	}
}

func TestPrometheusHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	observability.NewPrometheus(reg).MessageSent()

	rec := httptest.NewRecorder()
	observability.Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "courier_messages_sent_total 1") {
		t.Fatalf("metrics output missing counter:\n%s", body)
	}
}

func TestMultiFansOut(t *testing.T) {
	a, b := prometheus.NewRegistry(), prometheus.NewRegistry()
	m := observability.Multi{observability.NewPrometheus(a), observability.NewPrometheus(b), observability.Nop{}}

	m.MessageSent()

	for _, reg := range []*prometheus.Registry{a, b} {
		if v := gather(t, reg)["courier_messages_sent_total"]; len(v) != 1 || v[0] != 1 {
			t.Fatalf("sent = %v", v)
		}
	}
}
