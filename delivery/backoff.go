package delivery

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Backoff bounds the attempts of one delivery cycle.
//
// The wait before attempt n+1 (n counted from 0) is
// min(InitialDelay * Multiplier^n, MaxDelay), then jittered uniformly
// into [0, that delay].
type Backoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxAttempts  int
}

// DefaultBackoff returns the default cycle bounds.
func DefaultBackoff() Backoff {
	return Backoff{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     60 * time.Second,
		Multiplier:   2,
		MaxAttempts:  5,
	}
}

// Validate checks that the bounds describe a finite, growing schedule.
func (b Backoff) Validate() error {
	switch {
	case b.MaxAttempts < 1:
		return fmt.Errorf("max attempts must be at least 1, got %d", b.MaxAttempts)
	case b.InitialDelay <= 0:
		return fmt.Errorf("initial delay must be positive, got %s", b.InitialDelay)
	case b.MaxDelay < b.InitialDelay:
		return fmt.Errorf("max delay %s is below initial delay %s", b.MaxDelay, b.InitialDelay)
	case b.Multiplier < 1:
		return fmt.Errorf("multiplier must be at least 1, got %g", b.Multiplier)
	}
	return nil
}

// Schedule returns the pre-jitter waits between consecutive attempts. It has
// MaxAttempts-1 entries: no wait precedes the first attempt or follows the last.
func (b Backoff) Schedule() []time.Duration {
	n := b.MaxAttempts - 1
	if n <= 0 {
		return nil
	}

	eb := &backoff.ExponentialBackOff{
		InitialInterval:     b.InitialDelay,
		RandomizationFactor: 0,
		Multiplier:          b.Multiplier,
		MaxInterval:         b.MaxDelay,
	}
	eb.Reset()

	out := make([]time.Duration, n)
	for i := range out {
		out[i] = min(eb.NextBackOff(), b.MaxDelay)
	}
	return out
}

// Delay returns the pre-jitter wait after the n-th attempt (0-based).
func (b Backoff) Delay(n int) time.Duration {
	s := b.Schedule()
	switch {
	case len(s) == 0 || n < 0:
		return 0
	case n >= len(s):
		return s[len(s)-1]
	}
	return s[n]
}

// Jitter draws uniformly from [0, d].
func Jitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return rand.N(d + 1) //nolint:gosec // G404: jitter does not need a CSPRNG.
}
