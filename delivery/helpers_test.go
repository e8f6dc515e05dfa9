package delivery_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/courier/delivery"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/message"
	"github.com/xraph/courier/store/memory"
	"github.com/xraph/courier/transport"
)

func ctx() context.Context { return context.Background() }

// scripted replays outcomes in order and repeats the last one.
type scripted struct {
	mu       sync.Mutex
	outcomes []transport.Outcome
	calls    atomic.Int32
	ids      []id.ID
}

func script(outcomes ...transport.Outcome) *scripted {
	return &scripted{outcomes: outcomes}
}

func (s *scripted) Deliver(ctx context.Context, _ []byte) transport.Outcome {
	n := int(s.calls.Add(1)) - 1

	s.mu.Lock()
	defer s.mu.Unlock()
	if msgID, ok := transport.MessageIDFrom(ctx); ok {
		s.ids = append(s.ids, msgID)
	}
	if n >= len(s.outcomes) {
		n = len(s.outcomes) - 1
	}
	return s.outcomes[n]
}

// waits records every pre-jitter wait the forwarder asks for and does not
// actually jitter.
type waits struct {
	mu  sync.Mutex
	got []time.Duration
}

func (w *waits) jitter(d time.Duration) time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.got = append(w.got, d)
	return d
}

func (w *waits) list() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]time.Duration(nil), w.got...)
}

func fastBackoff(attempts int) delivery.Backoff {
	return delivery.Backoff{
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2,
		MaxAttempts:  attempts,
	}
}

func seed(t *testing.T, s *memory.Store, attemptCount int) *message.Message {
	t.Helper()
	m := message.New([]byte(`{"resourceType":"Patient"}`))
	if err := s.Insert(ctx(), m); err != nil {
		t.Fatal(err)
	}
	if attemptCount > 0 {
		if err := s.MarkFailed(ctx(), m.ID, "seeded", attemptCount); err != nil {
			t.Fatal(err)
		}
	}
	got, err := s.Get(ctx(), m.ID)
	if err != nil {
		t.Fatal(err)
	}
	return got
}

// countingStore wraps a store and counts writes.
type countingStore struct {
	*memory.Store
	writes atomic.Int32
}

func (c *countingStore) MarkSent(ctx context.Context, msgID id.ID) error {
	c.writes.Add(1)
	return c.Store.MarkSent(ctx, msgID)
}

func (c *countingStore) MarkFailed(ctx context.Context, msgID id.ID, reason string, n int) error {
	c.writes.Add(1)
	return c.Store.MarkFailed(ctx, msgID, reason, n)
}

var errDown = errors.New("connection refused")

// brokenWriter fails every status write.
type brokenWriter struct{}

func (brokenWriter) MarkSent(context.Context, id.ID) error { return errDown }

func (brokenWriter) MarkFailed(context.Context, id.ID, string, int) error { return errDown }

// brokenSource fails every fetch.
type brokenSource struct{}

func (brokenSource) FindRetryable(context.Context, int) ([]*message.Message, error) {
	return nil, errDown
}
