package courier

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/courier/delivery"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/message"
	"github.com/xraph/courier/observability"
	"github.com/xraph/courier/store"
	"github.com/xraph/courier/transport"
)

// Courier accepts payloads, stores them and relays them downstream.
type Courier struct {
	config    Config
	store     store.Store
	transport transport.Transport
	httpOpts  []transport.HTTPOption
	forwarder *delivery.Forwarder
	sweeper   *delivery.Sweeper
	sink      observability.Sink
	tracer    *observability.Tracer
	logger    *slog.Logger

	inflight sync.WaitGroup
}

// Stats holds message counts per status.
type Stats struct {
	Pending int64 `json:"pending"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
}

// New creates a Courier with the given options. A store is required, and
// so is either a transport or a downstream URL.
func New(opts ...Option) (*Courier, error) {
	c := &Courier{
		config: DefaultConfig(),
		logger: slog.Default(),
		sink:   observability.Nop{},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.store == nil {
		return nil, ErrNoStore
	}
	if err := c.config.Validate(); err != nil {
		return nil, err
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.sink == nil {
		c.sink = observability.Nop{}
	}
	if c.transport == nil {
		if c.config.DownstreamURL == "" {
			return nil, ErrNoTransport
		}
		httpOpts := append([]transport.HTTPOption{transport.WithTimeout(c.config.RequestTimeout)}, c.httpOpts...)
		c.transport = transport.NewHTTP(c.config.DownstreamURL, httpOpts...)
	}
	c.wire()
	return c, nil
}

func (c *Courier) wire() {
	c.forwarder = delivery.NewForwarder(c.store, c.transport, delivery.ForwarderConfig{
		Backoff: c.config.Backoff(),
		Sink:    c.sink,
		Tracer:  c.tracer,
	}, c.logger)

	c.sweeper = delivery.NewSweeper(c.store, c.forwarder, delivery.SweeperConfig{
		Interval:           c.config.SweepInterval,
		BatchSize:          c.config.SweepBatchSize,
		HardAttemptCeiling: c.config.HardAttemptCeiling,
		Concurrency:        c.config.SweepConcurrency,
		SweepOnStart:       c.config.SweepOnStart,
		Sink:               c.sink,
		Tracer:             c.tracer,
	}, c.logger)
}

// Start begins the retry sweeper.
func (c *Courier) Start(ctx context.Context) {
	c.sweeper.Start(ctx)
}

// Stop shuts down the sweeper and waits for in-flight cycles, bounded by
// ctx and ShutdownTimeout. Cycles still running when it gives up finish in
// the background.
func (c *Courier) Stop(ctx context.Context) error {
	if c.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ShutdownTimeout)
		defer cancel()
	}

	if err := c.sweeper.Stop(ctx); err != nil {
		return fmt.Errorf("courier: stop sweeper: %w", err)
	}

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		c.logger.WarnContext(ctx, "shutdown timed out with deliveries in flight")
		return fmt.Errorf("courier: wait for in-flight deliveries: %w", ctx.Err())
	}
}

// Submit stores payload as a new pending message and starts delivering it
// in the background. The returned ID is only valid when err is nil; an
// error wrapping ErrStoreUnavailable means nothing was stored and no
// delivery was attempted.
func (c *Courier) Submit(ctx context.Context, payload []byte) (id.ID, error) {
	if len(payload) == 0 {
		return id.Nil, ErrEmptyPayload
	}

	start := time.Now()
	m := message.New(bytes.Clone(payload))

	if err := c.store.Insert(ctx, m); err != nil {
		c.logger.ErrorContext(ctx, "store message failed",
			"message_id", m.ID, "error", err)
		return id.Nil, fmt.Errorf("%w: insert: %w", ErrStoreUnavailable, err)
	}

	c.sink.MessageReceived(len(payload))
	c.sink.ObserveLatency(observability.OpIngest, time.Since(start))
	c.logger.DebugContext(ctx, "message accepted",
		"message_id", m.ID, "size", len(payload))

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		// Outcomes are persisted and logged by the forwarder.
		_ = c.forwarder.Deliver(context.WithoutCancel(ctx), m)
	}()

	return m.ID, nil
}

// Get returns a message by ID.
func (c *Courier) Get(ctx context.Context, msgID id.ID) (*message.Message, error) {
	return c.store.Get(ctx, msgID)
}

// CountByStatus returns the number of messages in status.
func (c *Courier) CountByStatus(ctx context.Context, status message.Status) (int64, error) {
	return c.store.CountByStatus(ctx, status)
}

// Stats returns message counts for every status and refreshes the pending
// gauge.
func (c *Courier) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	for _, status := range message.Statuses {
		n, err := c.store.CountByStatus(ctx, status)
		if err != nil {
			return Stats{}, fmt.Errorf("%w: count %s: %w", ErrStoreUnavailable, status, err)
		}
		switch status {
		case message.StatusPending:
			st.Pending = n
		case message.StatusSent:
			st.Sent = n
		case message.StatusFailed:
			st.Failed = n
		}
	}
	c.sink.PendingMessages(st.Pending)
	return st, nil
}

// Ping checks that the store is reachable.
func (c *Courier) Ping(ctx context.Context) error {
	if err := c.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Config returns the active configuration.
func (c *Courier) Config() Config { return c.config }

// Store returns the underlying store.
func (c *Courier) Store() store.Store { return c.store }

// Forwarder returns the delivery forwarder.
func (c *Courier) Forwarder() *delivery.Forwarder { return c.forwarder }

// Sweeper returns the retry sweeper.
func (c *Courier) Sweeper() *delivery.Sweeper { return c.sweeper }
