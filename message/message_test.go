package message_test

import (
	"testing"
	"time"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/message"
)

func TestNew(t *testing.T) {
	m := message.New([]byte(`{"a":1}`))

	if m.ID.Prefix() != id.PrefixMessage {
		t.Fatalf("prefix = %q", m.ID.Prefix())
	}
	if m.Status != message.StatusPending {
		t.Fatalf("status = %q", m.Status)
	}
	if m.SentAt != nil || m.LastRetryAt != nil {
		t.Fatal("new message should have no sent or retry time")
	}
	if m.AttemptCount != 0 {
		t.Fatalf("attempt_count = %d", m.AttemptCount)
	}
	if m.ReceivedAt.IsZero() {
		t.Fatal("received_at not set")
	}
}

func TestMarkSentIsSticky(t *testing.T) {
	m := message.New([]byte(`{}`))
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if !m.MarkSent(first) {
		t.Fatal("first MarkSent should apply")
	}
	if m.MarkSent(first.Add(time.Hour)) {
		t.Fatal("second MarkSent should be a no-op")
	}
	if !m.SentAt.Equal(first) {
		t.Fatalf("sent_at moved to %v", m.SentAt)
	}
	if m.MarkFailed("boom", 3, first.Add(2*time.Hour)) {
		t.Fatal("MarkFailed must not demote a sent message")
	}
	if m.Status != message.StatusSent || m.LastError != "" || m.AttemptCount != 0 {
		t.Fatalf("sent message changed: %+v", m)
	}
}

func TestMarkFailedKeepsHighestAttemptCount(t *testing.T) {
	m := message.New([]byte(`{}`))
	now := time.Now()

	m.MarkFailed("first", 2, now)
	m.MarkFailed("stale", 1, now)

	if m.Status != message.StatusFailed {
		t.Fatalf("status = %q", m.Status)
	}
	if m.AttemptCount != 2 {
		t.Fatalf("attempt_count = %d, want 2", m.AttemptCount)
	}
	if m.LastError != "stale" {
		t.Fatalf("last_error = %q", m.LastError)
	}
	if m.LastRetryAt == nil {
		t.Fatal("last_retry_at not set")
	}
	if m.Exhausted(3) || !m.Exhausted(2) {
		t.Fatal("Exhausted disagrees with attempt count")
	}
}

func TestCloneIsDeep(t *testing.T) {
	m := message.New([]byte("abc"))
	m.MarkFailed("x", 1, time.Now())

	c := m.Clone()
	c.Payload[0] = 'z'
	*c.LastRetryAt = time.Time{}

	if string(m.Payload) != "abc" {
		t.Fatal("payload shared with clone")
	}
	if m.LastRetryAt.IsZero() {
		t.Fatal("last_retry_at shared with clone")
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range message.Statuses {
		got, err := message.ParseStatus(string(s))
		if err != nil || got != s {
			t.Errorf("ParseStatus(%q) = %q, %v", s, got, err)
		}
	}
	if _, err := message.ParseStatus("delivered"); err == nil {
		t.Error("expected error for unknown status")
	}
	if !message.StatusFailed.Retryable() || message.StatusSent.Retryable() {
		t.Error("Retryable mismatch")
	}
}
