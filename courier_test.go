package courier_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/courier"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/message"
	"github.com/xraph/courier/store/memory"
	"github.com/xraph/courier/transport"
)

func ctx() context.Context { return context.Background() }

func fastOptions() []courier.Option {
	return []courier.Option{
		courier.WithInitialBackoff(time.Millisecond),
		courier.WithMaxBackoff(5 * time.Millisecond),
		courier.WithSweepOnStart(false),
	}
}

func setup(t *testing.T, tr transport.Transport, opts ...courier.Option) (*courier.Courier, *memory.Store) {
	t.Helper()
	s := memory.New()
	all := append([]courier.Option{courier.WithStore(s), courier.WithTransport(tr)}, fastOptions()...)
	c, err := courier.New(append(all, opts...)...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = c.Stop(ctx()) })
	return c, s
}

func waitForStatus(t *testing.T, c *courier.Courier, msgID id.ID, want message.Status) *message.Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		m, err := c.Get(ctx(), msgID)
		if err != nil {
			t.Fatal(err)
		}
		if m.Status == want {
			return m
		}
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for %s to become %s (status %s)", msgID, want, m.Status)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestNewRequiresStore(t *testing.T) {
	_, err := courier.New(courier.WithDownstreamURL("http://localhost"))
	if !errors.Is(err, courier.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}

func TestNewRequiresTransport(t *testing.T) {
	_, err := courier.New(courier.WithStore(memory.New()))
	if !errors.Is(err, courier.ErrNoTransport) {
		t.Fatalf("expected ErrNoTransport, got %v", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := courier.New(
		courier.WithStore(memory.New()),
		courier.WithDownstreamURL("http://localhost"),
		courier.WithMaxAttemptsPerCycle(0),
	)
	if !errors.Is(err, courier.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestSubmitStoresBeforeDelivering(t *testing.T) {
	var c *courier.Courier
	var storedFirst atomic.Bool
	ready := make(chan struct{})

	tr := transport.Func(func(dctx context.Context, _ []byte) transport.Outcome {
		<-ready
		msgID, _ := transport.MessageIDFrom(dctx)
		if m, err := c.Get(ctx(), msgID); err == nil && m.Status == message.StatusPending {
			storedFirst.Store(true)
		}
		return transport.Succeeded(200)
	})

	c, _ = setup(t, tr)
	close(ready)

	msgID, err := c.Submit(ctx(), []byte(`{"resourceType":"Patient"}`))
	if err != nil {
		t.Fatal(err)
	}
	m := waitForStatus(t, c, msgID, message.StatusSent)

	if !storedFirst.Load() {
		t.Fatal("transport ran before the message was stored")
	}
	if m.SentAt == nil || m.AttemptCount != 0 {
		t.Fatalf("sent_at = %v, attempt_count = %d", m.SentAt, m.AttemptCount)
	}
}

// rejectingStore fails every insert.
type rejectingStore struct{ *memory.Store }

func (rejectingStore) Insert(context.Context, *message.Message) error {
	return errors.New("disk full")
}

func TestSubmitStoreFailure(t *testing.T) {
	var calls atomic.Int32
	tr := transport.Func(func(context.Context, []byte) transport.Outcome {
		calls.Add(1)
		return transport.Succeeded(200)
	})

	c, err := courier.New(courier.WithStore(rejectingStore{memory.New()}), courier.WithTransport(tr))
	if err != nil {
		t.Fatal(err)
	}

	msgID, err := c.Submit(ctx(), []byte(`{}`))
	if !errors.Is(err, courier.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if !msgID.IsNil() {
		t.Fatalf("got id %s on failure", msgID)
	}
	if err := c.Stop(ctx()); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 0 {
		t.Fatalf("transport called %d times for an unstored message", calls.Load())
	}
}

func TestSubmitEmptyPayload(t *testing.T) {
	c, _ := setup(t, transport.Func(func(context.Context, []byte) transport.Outcome { return transport.Succeeded(200) }))
	if _, err := c.Submit(ctx(), nil); !errors.Is(err, courier.ErrEmptyPayload) {
		t.Fatalf("expected ErrEmptyPayload, got %v", err)
	}
}

func TestSentMessagesLeaveTheSweep(t *testing.T) {
	c, _ := setup(t, transport.Func(func(context.Context, []byte) transport.Outcome { return transport.Succeeded(200) }))

	msgID, err := c.Submit(ctx(), []byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	waitForStatus(t, c, msgID, message.StatusSent)

	report, err := c.Sweeper().Sweep(ctx())
	if err != nil {
		t.Fatal(err)
	}
	if report.Fetched != 0 {
		t.Fatalf("sweep fetched %d sent messages", report.Fetched)
	}
	if m, _ := c.Get(ctx(), msgID); m.Status != message.StatusSent {
		t.Fatalf("status = %q", m.Status)
	}
}

func TestAttemptCountGrowsPerCycle(t *testing.T) {
	var calls atomic.Int32
	tr := transport.Func(func(context.Context, []byte) transport.Outcome {
		calls.Add(1)
		return transport.Retryable("downstream returned 503")
	})
	c, _ := setup(t, tr, courier.WithMaxAttemptsPerCycle(2))

	msgID, err := c.Submit(ctx(), []byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	m := waitForStatus(t, c, msgID, message.StatusFailed)
	if m.AttemptCount != 1 {
		t.Fatalf("attempt_count after first cycle = %d", m.AttemptCount)
	}

	prev := m.AttemptCount
	for range 3 {
		if _, err := c.Sweeper().Sweep(ctx()); err != nil {
			t.Fatal(err)
		}
		m, _ = c.Get(ctx(), msgID)
		if m.AttemptCount != prev+1 {
			t.Fatalf("attempt_count = %d, want %d", m.AttemptCount, prev+1)
		}
		prev = m.AttemptCount
	}
	if calls.Load() != 8 {
		t.Fatalf("transport calls = %d, want 8 (4 cycles of 2)", calls.Load())
	}
}

func TestStats(t *testing.T) {
	tr := transport.Func(func(_ context.Context, p []byte) transport.Outcome {
		if string(p) == `"bad"` {
			return transport.NonRetryable("downstream returned 422")
		}
		return transport.Succeeded(200)
	})
	c, _ := setup(t, tr)

	good, _ := c.Submit(ctx(), []byte(`"good"`))
	bad, _ := c.Submit(ctx(), []byte(`"bad"`))
	waitForStatus(t, c, good, message.StatusSent)
	waitForStatus(t, c, bad, message.StatusFailed)

	st, err := c.Stats(ctx())
	if err != nil {
		t.Fatal(err)
	}
	if st != (courier.Stats{Pending: 0, Sent: 1, Failed: 1}) {
		t.Fatalf("stats = %+v", st)
	}
}

func TestStopWaitsForInflightDeliveries(t *testing.T) {
	tr := transport.Func(func(context.Context, []byte) transport.Outcome {
		time.Sleep(50 * time.Millisecond)
		return transport.Succeeded(200)
	})
	s := memory.New()
	c, err := courier.New(courier.WithStore(s), courier.WithTransport(tr))
	if err != nil {
		t.Fatal(err)
	}
	c.Start(ctx())

	msgID, err := c.Submit(ctx(), []byte(`{}`))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Stop(ctx()); err != nil {
		t.Fatal(err)
	}

	m, err := s.Get(ctx(), msgID)
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != message.StatusSent {
		t.Fatalf("status after Stop = %q", m.Status)
	}
}

func TestDownstreamURLBuildsHTTPTransport(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get(transport.HeaderMessageID) == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c, err := courier.New(append(fastOptions(),
		courier.WithStore(memory.New()),
		courier.WithDownstreamURL(srv.URL),
	)...)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Stop(ctx())

	msgID, err := c.Submit(ctx(), []byte(`{"resourceType":"Observation"}`))
	if err != nil {
		t.Fatal(err)
	}
	waitForStatus(t, c, msgID, message.StatusSent)
	if hits.Load() != 1 {
		t.Fatalf("hits = %d", hits.Load())
	}
}

func TestPing(t *testing.T) {
	c, s := setup(t, transport.Func(func(context.Context, []byte) transport.Outcome { return transport.Succeeded(200) }))
	if err := c.Ping(ctx()); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()
	if err := c.Ping(ctx()); !errors.Is(err, courier.ErrStoreUnavailable) || !errors.Is(err, courier.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreUnavailable wrapping ErrStoreClosed, got %v", err)
	}
}
