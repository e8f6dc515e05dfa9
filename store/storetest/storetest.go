// Package storetest is a conformance suite shared by every store backend.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/xraph/courier"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/message"
	"github.com/xraph/courier/store"
)

// Factory returns an empty, migrated store. The suite closes it.
type Factory func(t *testing.T) store.Store

// Run exercises s against the message.Store contract.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"InsertAndGet", testInsertAndGet},
		{"GetUnknown", testGetUnknown},
		{"MarkSent", testMarkSent},
		{"MarkUnknown", testMarkUnknown},
		{"MarkFailed", testMarkFailed},
		{"SentIsTerminal", testSentIsTerminal},
		{"AttemptCountNeverDecreases", testAttemptCountNeverDecreases},
		{"FindRetryable", testFindRetryable},
		{"FindRetryableOrder", testFindRetryableOrder},
		{"CountByStatus", testCountByStatus},
		{"ConcurrentMarks", testConcurrentMarks},
		{"Ping", testPing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func ctx() context.Context { return context.Background() }

func insert(t *testing.T, s store.Store, payload string) *message.Message {
	t.Helper()
	m := message.New([]byte(payload))
	if err := s.Insert(ctx(), m); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return m
}

func get(t *testing.T, s store.Store, msgID id.ID) *message.Message {
	t.Helper()
	m, err := s.Get(ctx(), msgID)
	if err != nil {
		t.Fatalf("get %s: %v", msgID, err)
	}
	return m
}

func closeTo(a, b time.Time) bool {
	d := a.Sub(b)
	return d < time.Second && d > -time.Second
}

func testInsertAndGet(t *testing.T, s store.Store) {
	payload := `{"resourceType":"Bundle","entry":[{"x":"é"}]}`
	m := insert(t, s, payload)

	got := get(t, s, m.ID)
	if got.ID != m.ID {
		t.Fatalf("id = %s, want %s", got.ID, m.ID)
	}
	if string(got.Payload) != payload {
		t.Fatalf("payload = %q", got.Payload)
	}
	if got.Status != message.StatusPending {
		t.Fatalf("status = %q", got.Status)
	}
	if got.AttemptCount != 0 || got.SentAt != nil || got.LastError != "" {
		t.Fatalf("unexpected fields on fresh message: %+v", got)
	}
	if !closeTo(got.ReceivedAt, m.ReceivedAt) {
		t.Fatalf("received_at = %v, want about %v", got.ReceivedAt, m.ReceivedAt)
	}
}

func testGetUnknown(t *testing.T, s store.Store) {
	if _, err := s.Get(ctx(), id.NewMessageID()); !errors.Is(err, courier.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}

func testMarkSent(t *testing.T, s store.Store) {
	m := insert(t, s, `{}`)

	if err := s.MarkSent(ctx(), m.ID); err != nil {
		t.Fatal(err)
	}
	got := get(t, s, m.ID)
	if got.Status != message.StatusSent || got.SentAt == nil {
		t.Fatalf("status = %q, sent_at = %v", got.Status, got.SentAt)
	}
	first := *got.SentAt

	time.Sleep(10 * time.Millisecond)
	if err := s.MarkSent(ctx(), m.ID); err != nil {
		t.Fatalf("second MarkSent: %v", err)
	}
	got = get(t, s, m.ID)
	if !got.SentAt.Equal(first) {
		t.Fatalf("sent_at changed from %v to %v", first, got.SentAt)
	}
}

func testMarkUnknown(t *testing.T, s store.Store) {
	if err := s.MarkSent(ctx(), id.NewMessageID()); !errors.Is(err, courier.ErrMessageNotFound) {
		t.Fatalf("MarkSent: expected ErrMessageNotFound, got %v", err)
	}
	if err := s.MarkFailed(ctx(), id.NewMessageID(), "x", 1); !errors.Is(err, courier.ErrMessageNotFound) {
		t.Fatalf("MarkFailed: expected ErrMessageNotFound, got %v", err)
	}
}

func testMarkFailed(t *testing.T, s store.Store) {
	m := insert(t, s, `{}`)

	if err := s.MarkFailed(ctx(), m.ID, "downstream returned 503", 1); err != nil {
		t.Fatal(err)
	}
	got := get(t, s, m.ID)
	if got.Status != message.StatusFailed {
		t.Fatalf("status = %q", got.Status)
	}
	if got.AttemptCount != 1 {
		t.Fatalf("attempt_count = %d", got.AttemptCount)
	}
	if got.LastError != "downstream returned 503" {
		t.Fatalf("last_error = %q", got.LastError)
	}
	if got.LastRetryAt == nil || got.SentAt != nil {
		t.Fatalf("last_retry_at = %v, sent_at = %v", got.LastRetryAt, got.SentAt)
	}

	// A failed message can still be sent later.
	if err := s.MarkSent(ctx(), m.ID); err != nil {
		t.Fatal(err)
	}
	got = get(t, s, m.ID)
	if got.Status != message.StatusSent || got.LastError != "downstream returned 503" {
		t.Fatalf("after MarkSent: status = %q, last_error = %q", got.Status, got.LastError)
	}
}

func testSentIsTerminal(t *testing.T, s store.Store) {
	m := insert(t, s, `{}`)
	if err := s.MarkSent(ctx(), m.ID); err != nil {
		t.Fatal(err)
	}

	if err := s.MarkFailed(ctx(), m.ID, "late failure", 4); err != nil {
		t.Fatalf("MarkFailed on sent message: %v", err)
	}

	got := get(t, s, m.ID)
	if got.Status != message.StatusSent {
		t.Fatalf("sent message demoted to %q", got.Status)
	}
	if got.AttemptCount != 0 || got.LastError != "" {
		t.Fatalf("sent message changed: attempt_count = %d, last_error = %q", got.AttemptCount, got.LastError)
	}
}

func testAttemptCountNeverDecreases(t *testing.T, s store.Store) {
	m := insert(t, s, `{}`)

	for _, n := range []int{1, 3, 2} {
		if err := s.MarkFailed(ctx(), m.ID, "x", n); err != nil {
			t.Fatal(err)
		}
	}

	if got := get(t, s, m.ID); got.AttemptCount != 3 {
		t.Fatalf("attempt_count = %d, want 3", got.AttemptCount)
	}
}

func testFindRetryable(t *testing.T, s store.Store) {
	pending := insert(t, s, `{"n":1}`)
	failed := insert(t, s, `{"n":2}`)
	sent := insert(t, s, `{"n":3}`)

	if err := s.MarkFailed(ctx(), failed.ID, "x", 1); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkSent(ctx(), sent.ID); err != nil {
		t.Fatal(err)
	}

	got, err := s.FindRetryable(ctx(), 10)
	if err != nil {
		t.Fatal(err)
	}
	ids := map[id.ID]bool{}
	for _, m := range got {
		ids[m.ID] = true
		if !m.Status.Retryable() {
			t.Errorf("FindRetryable returned %s in status %q", m.ID, m.Status)
		}
	}
	if len(got) != 2 || !ids[pending.ID] || !ids[failed.ID] {
		t.Fatalf("FindRetryable = %v", ids)
	}

	limited, err := s.FindRetryable(ctx(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Fatalf("limit 1 returned %d messages", len(limited))
	}

	none, err := s.FindRetryable(ctx(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Fatalf("limit 0 returned %d messages", len(none))
	}
}

func testFindRetryableOrder(t *testing.T, s store.Store) {
	many := insert(t, s, `{}`)
	fresh := insert(t, s, `{}`)
	once := insert(t, s, `{}`)

	if err := s.MarkFailed(ctx(), many.ID, "x", 7); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkFailed(ctx(), once.ID, "x", 1); err != nil {
		t.Fatal(err)
	}

	got, err := s.FindRetryable(ctx(), 10)
	if err != nil {
		t.Fatal(err)
	}
	want := []id.ID{fresh.ID, once.ID, many.ID}
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("position %d: got %s (attempts %d), want %s", i, got[i].ID, got[i].AttemptCount, want[i])
		}
	}
}

func testCountByStatus(t *testing.T, s store.Store) {
	insert(t, s, `{}`)
	insert(t, s, `{}`)
	f := insert(t, s, `{}`)
	d := insert(t, s, `{}`)

	if err := s.MarkFailed(ctx(), f.ID, "x", 1); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkSent(ctx(), d.ID); err != nil {
		t.Fatal(err)
	}

	want := map[message.Status]int64{
		message.StatusPending: 2,
		message.StatusFailed:  1,
		message.StatusSent:    1,
	}
	for status, n := range want {
		got, err := s.CountByStatus(ctx(), status)
		if err != nil {
			t.Fatal(err)
		}
		if got != n {
			t.Errorf("CountByStatus(%s) = %d, want %d", status, got, n)
		}
	}
}

func testConcurrentMarks(t *testing.T, s store.Store) {
	m := insert(t, s, `{}`)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.MarkFailed(ctx(), m.ID, "race", i+1)
		}()
		go func() {
			defer wg.Done()
			_ = s.MarkSent(ctx(), m.ID)
		}()
	}
	wg.Wait()

	got := get(t, s, m.ID)
	if got.Status != message.StatusSent || got.SentAt == nil {
		t.Fatalf("status = %q, sent_at = %v", got.Status, got.SentAt)
	}
}

func testPing(t *testing.T, s store.Store) {
	if err := s.Ping(ctx()); err != nil {
		t.Fatal(err)
	}
}
