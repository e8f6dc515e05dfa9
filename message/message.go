// Package message defines the relayed Message entity, its delivery status
// and the persistence contract every store implements.
package message

import (
	"fmt"
	"time"

	"github.com/xraph/courier/id"
	"github.com/xraph/courier/internal/entity"
)

// Status is the delivery state of a message.
type Status string

const (
	// StatusPending marks a message that has been stored but not yet
	// delivered or given up on in a cycle.
	StatusPending Status = "pending"

	// StatusSent marks a message the downstream acknowledged. It is terminal.
	StatusSent Status = "sent"

	// StatusFailed marks a message whose most recent delivery cycle failed.
	// It stays eligible for the retry sweep until the attempt ceiling.
	StatusFailed Status = "failed"
)

// Statuses lists every status in reporting order.
var Statuses = []Status{StatusPending, StatusSent, StatusFailed}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed:
		return true
	}
	return false
}

// Retryable reports whether messages in this status are picked up by the sweep.
func (s Status) Retryable() bool {
	return s == StatusPending || s == StatusFailed
}

// ParseStatus converts a stored value back into a Status.
func ParseStatus(v string) (Status, error) {
	s := Status(v)
	if !s.IsValid() {
		return "", fmt.Errorf("message: unknown status %q", v)
	}
	return s, nil
}

// Message is one payload accepted for relay.
type Message struct {
	entity.Entity

	// ID is the unique TypeID of the message.
	ID id.ID `json:"id"`

	// Payload is the opaque body forwarded downstream, byte for byte.
	Payload []byte `json:"payload"`

	// Status is the current delivery status.
	Status Status `json:"status"`

	// ReceivedAt is when the message was accepted.
	ReceivedAt time.Time `json:"received_at"`

	// SentAt is set exactly once, when the message becomes sent.
	SentAt *time.Time `json:"sent_at,omitempty"`

	// AttemptCount counts failed delivery cycles, not individual requests.
	AttemptCount int `json:"attempt_count"`

	// LastError describes the most recent failed cycle.
	LastError string `json:"last_error,omitempty"`

	// LastRetryAt is when the most recent failed cycle was recorded.
	LastRetryAt *time.Time `json:"last_retry_at,omitempty"`
}

// New creates a pending message for payload with a fresh ID.
func New(payload []byte) *Message {
	e := entity.New()
	return &Message{
		Entity:     e,
		ID:         id.NewMessageID(),
		Payload:    payload,
		Status:     StatusPending,
		ReceivedAt: e.CreatedAt,
	}
}

// MarkSent moves m to sent. It returns false, leaving m untouched, when m
// was already sent.
func (m *Message) MarkSent(at time.Time) bool {
	if m.Status == StatusSent {
		return false
	}
	at = at.UTC()
	m.Status = StatusSent
	m.SentAt = &at
	m.Touch(at)
	return true
}

// MarkFailed records a failed cycle. A sent message is never demoted and the
// attempt count never goes down; false is returned when nothing changed.
func (m *Message) MarkFailed(reason string, attempts int, at time.Time) bool {
	if m.Status == StatusSent {
		return false
	}
	at = at.UTC()
	m.Status = StatusFailed
	m.LastError = reason
	m.AttemptCount = max(m.AttemptCount, attempts)
	m.LastRetryAt = &at
	m.Touch(at)
	return true
}

// Exhausted reports whether the message reached the sweep attempt ceiling.
func (m *Message) Exhausted(ceiling int) bool {
	return m.AttemptCount >= ceiling
}

// Clone returns a deep copy of m.
func (m *Message) Clone() *Message {
	c := *m
	c.Payload = append([]byte(nil), m.Payload...)
	if m.SentAt != nil {
		t := *m.SentAt
		c.SentAt = &t
	}
	if m.LastRetryAt != nil {
		t := *m.LastRetryAt
		c.LastRetryAt = &t
	}
	return &c
}
