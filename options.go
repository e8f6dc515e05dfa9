package courier

import (
	"log/slog"
	"time"

	"github.com/xraph/courier/observability"
	"github.com/xraph/courier/store"
	"github.com/xraph/courier/transport"
)

// Option configures a Courier instance.
type Option func(*Courier) error

// WithStore sets the persistence backend.
func WithStore(s store.Store) Option {
	return func(c *Courier) error {
		c.store = s
		return nil
	}
}

// WithTransport sets the outbound transport. It takes precedence over
// WithDownstreamURL.
func WithTransport(t transport.Transport) Option {
	return func(c *Courier) error {
		c.transport = t
		return nil
	}
}

// WithHTTPOptions adds options for the HTTP transport built from the
// downstream URL.
func WithHTTPOptions(opts ...transport.HTTPOption) Option {
	return func(c *Courier) error {
		c.httpOpts = append(c.httpOpts, opts...)
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Courier) error {
		c.logger = logger
		return nil
	}
}

// WithSink sets the metrics sink.
func WithSink(s observability.Sink) Option {
	return func(c *Courier) error {
		c.sink = s
		return nil
	}
}

// WithTracer enables OpenTelemetry spans for cycles and sweeps.
func WithTracer(t *observability.Tracer) Option {
	return func(c *Courier) error {
		c.tracer = t
		return nil
	}
}

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(c *Courier) error {
		c.config = cfg
		return nil
	}
}

// WithDownstreamURL sets where payloads are posted.
func WithDownstreamURL(url string) Option {
	return func(c *Courier) error {
		c.config.DownstreamURL = url
		return nil
	}
}

// WithInitialBackoff sets the wait after the first failed attempt of a cycle.
func WithInitialBackoff(d time.Duration) Option {
	return func(c *Courier) error {
		c.config.InitialBackoff = d
		return nil
	}
}

// WithMaxBackoff caps every wait within a cycle.
func WithMaxBackoff(d time.Duration) Option {
	return func(c *Courier) error {
		c.config.MaxBackoff = d
		return nil
	}
}

// WithBackoffMultiplier sets the growth factor between waits.
func WithBackoffMultiplier(f float64) Option {
	return func(c *Courier) error {
		c.config.BackoffMultiplier = f
		return nil
	}
}

// WithMaxAttemptsPerCycle bounds transport calls in one cycle.
func WithMaxAttemptsPerCycle(n int) Option {
	return func(c *Courier) error {
		c.config.MaxAttemptsPerCycle = n
		return nil
	}
}

// WithSweepInterval sets how often the retry sweeper runs.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Courier) error {
		c.config.SweepInterval = d
		return nil
	}
}

// WithSweepBatchSize sets the maximum number of messages fetched per sweep.
func WithSweepBatchSize(n int) Option {
	return func(c *Courier) error {
		c.config.SweepBatchSize = n
		return nil
	}
}

// WithHardAttemptCeiling sets the failed-cycle count at which the sweep
// stops picking a message up.
func WithHardAttemptCeiling(n int) Option {
	return func(c *Courier) error {
		c.config.HardAttemptCeiling = n
		return nil
	}
}

// WithSweepConcurrency caps cycles running at once within a sweep.
func WithSweepConcurrency(n int) Option {
	return func(c *Courier) error {
		c.config.SweepConcurrency = n
		return nil
	}
}

// WithSweepOnStart controls whether Start sweeps immediately.
func WithSweepOnStart(b bool) Option {
	return func(c *Courier) error {
		c.config.SweepOnStart = b
		return nil
	}
}

// WithRequestTimeout bounds a single HTTP attempt.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Courier) error {
		c.config.RequestTimeout = d
		return nil
	}
}

// WithShutdownTimeout sets the maximum time Stop waits for in-flight cycles.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *Courier) error {
		c.config.ShutdownTimeout = d
		return nil
	}
}
