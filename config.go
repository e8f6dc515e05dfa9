package courier

import (
	"fmt"
	"time"

	"github.com/xraph/courier/delivery"
)

// Config holds the configuration for a Courier instance.
type Config struct {
	// InitialBackoff is the wait after the first failed attempt of a cycle.
	InitialBackoff time.Duration

	// MaxBackoff caps every wait within a cycle.
	MaxBackoff time.Duration

	// BackoffMultiplier grows the wait after each failed attempt.
	BackoffMultiplier float64

	// MaxAttemptsPerCycle bounds transport calls in one delivery cycle.
	MaxAttemptsPerCycle int

	// SweepInterval is how often the retry sweeper runs.
	SweepInterval time.Duration

	// SweepBatchSize is the maximum number of messages fetched per sweep.
	SweepBatchSize int

	// HardAttemptCeiling excludes messages with this many failed cycles
	// from further sweeps.
	HardAttemptCeiling int

	// SweepConcurrency caps cycles running at once within a sweep.
	// Zero runs the whole batch at once.
	SweepConcurrency int

	// SweepOnStart runs the first sweep as soon as Start is called.
	SweepOnStart bool

	// RequestTimeout bounds a single HTTP attempt.
	RequestTimeout time.Duration

	// ShutdownTimeout is the maximum time Stop waits for in-flight cycles.
	ShutdownTimeout time.Duration

	// DownstreamURL is where payloads are posted when no transport is set.
	DownstreamURL string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	b := delivery.DefaultBackoff()
	return Config{
		InitialBackoff:      b.InitialDelay,
		MaxBackoff:          b.MaxDelay,
		BackoffMultiplier:   b.Multiplier,
		MaxAttemptsPerCycle: b.MaxAttempts,
		SweepInterval:       60 * time.Second,
		SweepBatchSize:      100,
		HardAttemptCeiling:  10,
		SweepOnStart:        true,
		RequestTimeout:      30 * time.Second,
		ShutdownTimeout:     30 * time.Second,
	}
}

// Backoff returns the cycle bounds described by c.
func (c Config) Backoff() delivery.Backoff {
	return delivery.Backoff{
		InitialDelay: c.InitialBackoff,
		MaxDelay:     c.MaxBackoff,
		Multiplier:   c.BackoffMultiplier,
		MaxAttempts:  c.MaxAttemptsPerCycle,
	}
}

// Validate reports the first out-of-range value, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	if err := c.Backoff().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	switch {
	case c.SweepInterval <= 0:
		return fmt.Errorf("%w: sweep interval must be positive", ErrInvalidConfig)
	case c.SweepBatchSize < 1:
		return fmt.Errorf("%w: sweep batch size must be at least 1", ErrInvalidConfig)
	case c.HardAttemptCeiling < 1:
		return fmt.Errorf("%w: hard attempt ceiling must be at least 1", ErrInvalidConfig)
	case c.SweepConcurrency < 0:
		return fmt.Errorf("%w: sweep concurrency must not be negative", ErrInvalidConfig)
	}
	return nil
}
