package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/message"
	"github.com/xraph/courier/observability"
	"github.com/xraph/courier/transport"
)

// StatusWriter is the part of the store a Forwarder writes to.
type StatusWriter interface {
	MarkSent(ctx context.Context, msgID id.ID) error
	MarkFailed(ctx context.Context, msgID id.ID, reason string, attemptCount int) error
}

// ForwarderConfig holds forwarder configuration.
type ForwarderConfig struct {
	Backoff Backoff
	Sink    observability.Sink
	Tracer  *observability.Tracer

	// Jitter turns a pre-jitter wait into the actual wait. Defaults to Jitter.
	Jitter func(time.Duration) time.Duration
}

// Forwarder runs delivery cycles. It holds no per-message state, so one
// Forwarder serves every concurrent cycle.
type Forwarder struct {
	store     StatusWriter
	transport transport.Transport
	backoff   Backoff
	schedule  []time.Duration
	jitter    func(time.Duration) time.Duration
	sink      observability.Sink
	tracer    *observability.Tracer
	logger    *slog.Logger
}

// NewForwarder creates a forwarder. An invalid backoff falls back to
// DefaultBackoff.
func NewForwarder(store StatusWriter, t transport.Transport, cfg ForwarderConfig, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Backoff.Validate(); err != nil {
		logger.Warn("invalid backoff, using defaults", "error", err)
		cfg.Backoff = DefaultBackoff()
	}
	if cfg.Sink == nil {
		cfg.Sink = observability.Nop{}
	}
	if cfg.Jitter == nil {
		cfg.Jitter = Jitter
	}
	return &Forwarder{
		store:     store,
		transport: t,
		backoff:   cfg.Backoff,
		schedule:  cfg.Backoff.Schedule(),
		jitter:    cfg.Jitter,
		sink:      cfg.Sink,
		tracer:    cfg.Tracer,
		logger:    logger,
	}
}

// Backoff returns the cycle bounds in use.
func (f *Forwarder) Backoff() Backoff { return f.backoff }

// Deliver runs one delivery cycle for m and records the result in the store.
//
// It returns nil once the message is sent. Otherwise the error wraps
// transport.ErrTerminal, ErrAttemptsExhausted or ErrStoreUnavailable. The
// cycle ignores cancellation of ctx: once started it runs to completion.
func (f *Forwarder) Deliver(ctx context.Context, m *message.Message) error {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	var span trace.Span
	if f.tracer != nil {
		ctx, span = f.tracer.StartCycleSpan(ctx, m.ID.String(), m.AttemptCount)
	}
	ctx = transport.WithMessageID(ctx, m.ID)

	var last transport.Outcome
	attempts := 0
	for attempts < f.backoff.MaxAttempts {
		if attempts > 0 {
			time.Sleep(f.jitter(f.schedule[attempts-1]))
			f.sink.RetryAttempt()
		}

		last = f.transport.Deliver(ctx, m.Payload)
		attempts++
		f.sink.AttemptCompleted(last.StatusCode, last.Latency)

		if last.Kind != transport.RetryableFailure {
			break
		}
		f.logger.DebugContext(ctx, "attempt failed",
			"message_id", m.ID, "attempt", attempts, "status", last.StatusCode, "detail", last.Detail)
	}

	err := f.finish(ctx, m, last, attempts)

	f.sink.ObserveLatency(observability.OpForward, time.Since(start))
	if span != nil {
		f.tracer.EndCycleSpan(span, attempts, last.StatusCode, last.Kind.String(), err)
	}
	return err
}

func (f *Forwarder) finish(ctx context.Context, m *message.Message, last transport.Outcome, attempts int) error {
	if last.Kind == transport.Success {
		if err := f.store.MarkSent(ctx, m.ID); err != nil {
			f.logger.ErrorContext(ctx, "mark sent failed",
				"message_id", m.ID, "error", err)
			return fmt.Errorf("%w: mark sent %s: %w", ErrStoreUnavailable, m.ID, err)
		}
		f.sink.MessageSent()
		f.logger.DebugContext(ctx, "message sent",
			"message_id", m.ID, "attempts", attempts, "status", last.StatusCode)
		return nil
	}

	var cause error
	if last.Kind == transport.NonRetryableFailure {
		cause = last.Err()
	} else {
		cause = fmt.Errorf("%w after %d attempts: %s", ErrAttemptsExhausted, attempts, last.Detail)
	}

	next := m.AttemptCount + 1
	if err := f.store.MarkFailed(ctx, m.ID, last.Detail, next); err != nil {
		f.logger.ErrorContext(ctx, "mark failed failed",
			"message_id", m.ID, "error", err)
		return errors.Join(cause, fmt.Errorf("%w: mark failed %s: %w", ErrStoreUnavailable, m.ID, err))
	}

	f.sink.MessageFailed()
	f.logger.WarnContext(ctx, "delivery cycle failed",
		"message_id", m.ID, "attempt_count", next, "attempts", attempts, "error", cause)
	return cause
}
