package observability

import (
	"strconv"
	"time"

	gu "github.com/xraph/go-utils/metrics"
)

var _ Sink = (*Metrics)(nil)

// Metrics is a Sink backed by any go-utils MetricFactory (e.g. the
// forge-managed metrics system via fapp.Metrics()).
type Metrics struct {
	MessagesReceived gu.Counter
	MessagesSent     gu.Counter
	MessagesFailed   gu.Counter
	MessagesSkipped  gu.Counter
	BackendResponses gu.Counter
	RetryAttempts    gu.Counter
	PendingGauge     gu.Gauge
	PayloadSize      gu.Histogram
	IngestLatency    gu.Histogram
	ForwardLatency   gu.Histogram
	SweepLatency     gu.Histogram
	AttemptLatency   gu.Histogram
}

// NewMetrics creates courier instruments using the supplied factory.
func NewMetrics(factory gu.MetricFactory) *Metrics {
	return &Metrics{
		MessagesReceived: factory.Counter("courier_messages_received_total"),
		MessagesSent:     factory.Counter("courier_messages_sent_total"),
		MessagesFailed:   factory.Counter("courier_messages_failed_total"),
		MessagesSkipped:  factory.Counter("courier_messages_skipped_total"),
		BackendResponses: factory.Counter("courier_backend_response_status_total"),
		RetryAttempts:    factory.Counter("courier_retry_attempts_total"),
		PendingGauge:     factory.Gauge("courier_messages_pending"),
		PayloadSize:      factory.Histogram("courier_payload_size_bytes"),
		IngestLatency:    factory.Histogram("courier_ingest_latency_seconds"),
		ForwardLatency:   factory.Histogram("courier_forward_latency_seconds"),
		SweepLatency:     factory.Histogram("courier_sweep_latency_seconds"),
		AttemptLatency:   factory.Histogram("courier_attempt_latency_seconds"),
	}
}

func (m *Metrics) MessageReceived(size int) {
	m.MessagesReceived.Inc()
	m.PayloadSize.Observe(float64(size))
}

func (m *Metrics) MessageSent()    { m.MessagesSent.Inc() }
func (m *Metrics) MessageFailed()  { m.MessagesFailed.Inc() }
func (m *Metrics) MessageSkipped() { m.MessagesSkipped.Inc() }
func (m *Metrics) RetryAttempt()   { m.RetryAttempts.Inc() }

func (m *Metrics) AttemptCompleted(statusCode int, latency time.Duration) {
	m.BackendResponses.WithLabels(map[string]string{"status_code": strconv.Itoa(statusCode)}).Inc()
	m.AttemptLatency.Observe(latency.Seconds())
}

func (m *Metrics) PendingMessages(n int64) { m.PendingGauge.Set(float64(n)) }

func (m *Metrics) ObserveLatency(op string, d time.Duration) {
	switch op {
	case OpIngest:
		m.IngestLatency.Observe(d.Seconds())
	case OpForward:
		m.ForwardLatency.Observe(d.Seconds())
	case OpSweep:
		m.SweepLatency.Observe(d.Seconds())
	}
}
