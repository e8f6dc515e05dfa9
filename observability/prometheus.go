package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ Sink = (*Prometheus)(nil)

// Prometheus is a Sink that registers its collectors on a Prometheus
// registerer. It is used by the standalone daemon.
type Prometheus struct {
	received    prometheus.Counter
	sent        prometheus.Counter
	failed      prometheus.Counter
	skipped     prometheus.Counter
	retries     prometheus.Counter
	responses   *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	pending     prometheus.Gauge
	payloadSize prometheus.Histogram
}

// NewPrometheus registers the courier collectors on reg. It panics if they
// are already registered there.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	f := promauto.With(reg)
	return &Prometheus{
		received: f.NewCounter(prometheus.CounterOpts{
			Name: "courier_messages_received_total",
			Help: "Messages accepted and stored.",
		}),
		sent: f.NewCounter(prometheus.CounterOpts{
			Name: "courier_messages_sent_total",
			Help: "Messages acknowledged by the downstream.",
		}),
		failed: f.NewCounter(prometheus.CounterOpts{
			Name: "courier_messages_failed_total",
			Help: "Delivery cycles that ended with the message failed.",
		}),
		skipped: f.NewCounter(prometheus.CounterOpts{
			Name: "courier_messages_skipped_total",
			Help: "Messages left out of a sweep at the attempt ceiling.",
		}),
		retries: f.NewCounter(prometheus.CounterOpts{
			Name: "courier_retry_attempts_total",
			Help: "Transport calls after the first one in a cycle.",
		}),
		responses: f.NewCounterVec(prometheus.CounterOpts{
			Name: "courier_backend_response_status_total",
			Help: "Downstream responses by status code (0 when none arrived).",
		}, []string{"status_code"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "courier_processing_latency_seconds",
			Help:    "Latency of courier operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		pending: f.NewGauge(prometheus.GaugeOpts{
			Name: "courier_messages_pending",
			Help: "Messages currently pending.",
		}),
		payloadSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "courier_payload_size_bytes",
			Help:    "Size of accepted payloads.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8),
		}),
	}
}

func (p *Prometheus) MessageReceived(size int) {
	p.received.Inc()
	p.payloadSize.Observe(float64(size))
}

func (p *Prometheus) MessageSent()    { p.sent.Inc() }
func (p *Prometheus) MessageFailed()  { p.failed.Inc() }
func (p *Prometheus) MessageSkipped() { p.skipped.Inc() }
func (p *Prometheus) RetryAttempt()   { p.retries.Inc() }

func (p *Prometheus) AttemptCompleted(statusCode int, latency time.Duration) {
	p.responses.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	p.latency.WithLabelValues("attempt").Observe(latency.Seconds())
}

func (p *Prometheus) PendingMessages(n int64) { p.pending.Set(float64(n)) }

func (p *Prometheus) ObserveLatency(op string, d time.Duration) {
	p.latency.WithLabelValues(op).Observe(d.Seconds())
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
