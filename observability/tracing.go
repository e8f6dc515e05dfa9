package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/xraph/courier"

// Tracer provides OpenTelemetry tracing for delivery cycles.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global provider.
func NewTracer() *Tracer {
	return NewTracerFrom(otel.GetTracerProvider())
}

// NewTracerFrom creates a tracer from tp.
func NewTracerFrom(tp trace.TracerProvider) *Tracer {
	return &Tracer{tracer: tp.Tracer(tracerName)}
}

// StartCycleSpan starts a span covering one delivery cycle.
func (t *Tracer) StartCycleSpan(ctx context.Context, messageID string, attemptCount int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "courier.forward",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("courier.message_id", messageID),
			attribute.Int("courier.attempt_count", attemptCount),
		),
	)
}

// EndCycleSpan ends a cycle span with its result.
func (t *Tracer) EndCycleSpan(span trace.Span, attempts, statusCode int, outcome string, err error) {
	span.SetAttributes(
		attribute.Int("courier.attempts", attempts),
		attribute.Int("http.status_code", statusCode),
		attribute.String("courier.outcome", outcome),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// StartSweepSpan starts a span covering one sweep.
func (t *Tracer) StartSweepSpan(ctx context.Context, batchSize int) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "courier.sweep",
		trace.WithAttributes(attribute.Int("courier.batch_size", batchSize)),
	)
}

// EndSweepSpan ends a sweep span with its counts. A non-nil err marks the
// span failed.
func (t *Tracer) EndSweepSpan(span trace.Span, fetched, skipped, delivered, failed int, err error) {
	span.SetAttributes(
		attribute.Int("courier.fetched", fetched),
		attribute.Int("courier.skipped", skipped),
		attribute.Int("courier.delivered", delivered),
		attribute.Int("courier.failed", failed),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
