package delivery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/courier/message"
	"github.com/xraph/courier/observability"
)

// RetrySource is the part of the store a Sweeper reads from.
type RetrySource interface {
	FindRetryable(ctx context.Context, limit int) ([]*message.Message, error)
}

// Deliverer runs one delivery cycle. *Forwarder implements it.
type Deliverer interface {
	Deliver(ctx context.Context, m *message.Message) error
}

type pendingCounter interface {
	CountByStatus(ctx context.Context, status message.Status) (int64, error)
}

// SweeperConfig holds sweeper configuration.
type SweeperConfig struct {
	Interval           time.Duration
	BatchSize          int
	HardAttemptCeiling int

	// Concurrency caps cycles running at once within a sweep. Zero runs the
	// whole batch at once.
	Concurrency int

	// SweepOnStart runs the first sweep immediately instead of after Interval.
	SweepOnStart bool

	Sink   observability.Sink
	Tracer *observability.Tracer
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	Fetched   int `json:"fetched"`
	Skipped   int `json:"skipped"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
}

// Dispatched is the number of cycles the sweep ran.
func (r SweepReport) Dispatched() int { return r.Delivered + r.Failed }

// Sweeper periodically re-drives pending and failed messages.
type Sweeper struct {
	src    RetrySource
	fwd    Deliverer
	config SweeperConfig
	sink   observability.Sink
	logger *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSweeper creates a sweeper.
func NewSweeper(src RetrySource, fwd Deliverer, cfg SweeperConfig, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	sink := cfg.Sink
	if sink == nil {
		sink = observability.Nop{}
	}
	return &Sweeper{
		src:    src,
		fwd:    fwd,
		config: cfg,
		sink:   sink,
		logger: logger,
	}
}

// Start runs the sweep loop in the background until Stop is called or ctx
// is cancelled. Calling Start on a running sweeper does nothing.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run(ctx)
	}()
}

// Stop ends the loop and waits for the sweep in progress, if any, until ctx
// expires.
func (s *Sweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run sweeps on every tick until ctx is cancelled. A failed sweep is logged
// and the loop carries on.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "retry sweeper started",
		"interval", s.config.Interval, "batch_size", s.config.BatchSize, "ceiling", s.config.HardAttemptCeiling)

	if s.config.SweepOnStart {
		s.sweepAndLog(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "retry sweeper stopped")
			return
		case <-ticker.C:
			s.sweepAndLog(ctx)
		}
	}
}

func (s *Sweeper) sweepAndLog(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.ErrorContext(ctx, "retry sweep failed", "error", err)
	}
}

// Sweep runs one sweep: fetch a batch, skip messages at the ceiling, run a
// cycle for each of the rest concurrently and wait for all of them.
// Per-message failures are counted, never returned.
func (s *Sweeper) Sweep(ctx context.Context) (report SweepReport, err error) {
	start := time.Now()
	if s.config.Tracer != nil {
		var span trace.Span
		ctx, span = s.config.Tracer.StartSweepSpan(ctx, s.config.BatchSize)
		defer func() {
			s.config.Tracer.EndSweepSpan(span, report.Fetched, report.Skipped, report.Delivered, report.Failed, err)
		}()
	}

	batch, err := s.src.FindRetryable(ctx, s.config.BatchSize)
	if err != nil {
		return SweepReport{}, fmt.Errorf("%w: find retryable: %w", ErrStoreUnavailable, err)
	}

	report = SweepReport{Fetched: len(batch)}
	if len(batch) == 0 {
		s.logger.DebugContext(ctx, "retry sweep found nothing to do")
		return report, nil
	}

	eligible := make([]*message.Message, 0, len(batch))
	for _, m := range batch {
		if m.Exhausted(s.config.HardAttemptCeiling) {
			report.Skipped++
			s.sink.MessageSkipped()
			s.logger.WarnContext(ctx, "message reached attempt ceiling, skipping",
				"message_id", m.ID, "attempt_count", m.AttemptCount, "ceiling", s.config.HardAttemptCeiling)
			continue
		}
		eligible = append(eligible, m)
	}

	var delivered, failed atomic.Int64
	var g errgroup.Group
	if s.config.Concurrency > 0 {
		g.SetLimit(s.config.Concurrency)
	}
	for _, m := range eligible {
		g.Go(func() error {
			if err := s.fwd.Deliver(ctx, m); err != nil {
				failed.Add(1)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report.Delivered = int(delivered.Load())
	report.Failed = int(failed.Load())

	if c, ok := s.src.(pendingCounter); ok {
		if n, err := c.CountByStatus(ctx, message.StatusPending); err == nil {
			s.sink.PendingMessages(n)
		}
	}
	s.sink.ObserveLatency(observability.OpSweep, time.Since(start))

	s.logger.InfoContext(ctx, "retry sweep finished",
		"fetched", report.Fetched, "skipped", report.Skipped,
		"delivered", report.Delivered, "failed", report.Failed,
		"duration", time.Since(start))
	return report, nil
}
