// Package observability provides the metrics sink and tracer used by the
// delivery pipeline. The pipeline only talks to Sink, so any backend can be
// plugged in: go-utils (forge hosted), Prometheus, or nothing.
package observability

import "time"

// Operation labels passed to Sink.ObserveLatency.
const (
	OpIngest  = "ingest"
	OpForward = "forward"
	OpSweep   = "sweep"
)

// Sink receives pipeline events. Implementations must be safe for
// concurrent use.
type Sink interface {
	// MessageReceived is called once a message is durably stored.
	MessageReceived(size int)

	// MessageSent is called when a cycle ends with the message sent.
	MessageSent()

	// MessageFailed is called when a cycle ends with the message failed.
	MessageFailed()

	// MessageSkipped is called when the sweep leaves a message at the ceiling.
	MessageSkipped()

	// AttemptCompleted is called after every transport call. statusCode is 0
	// when no response arrived.
	AttemptCompleted(statusCode int, latency time.Duration)

	// RetryAttempt is called for every attempt after the first in a cycle.
	RetryAttempt()

	// PendingMessages reports the current number of pending messages.
	PendingMessages(n int64)

	// ObserveLatency records how long an operation took.
	ObserveLatency(op string, d time.Duration)
}

// Nop discards everything.
type Nop struct{}

var _ Sink = Nop{}

func (Nop) MessageReceived(int)                  {}
func (Nop) MessageSent()                         {}
func (Nop) MessageFailed()                       {}
func (Nop) MessageSkipped()                      {}
func (Nop) AttemptCompleted(int, time.Duration)  {}
func (Nop) RetryAttempt()                        {}
func (Nop) PendingMessages(int64)                {}
func (Nop) ObserveLatency(string, time.Duration) {}

// Multi fans every event out to several sinks.
type Multi []Sink

var _ Sink = Multi(nil)

func (m Multi) MessageReceived(size int) {
	for _, s := range m {
		s.MessageReceived(size)
	}
}

func (m Multi) MessageSent() {
	for _, s := range m {
		s.MessageSent()
	}
}

func (m Multi) MessageFailed() {
	for _, s := range m {
		s.MessageFailed()
	}
}

func (m Multi) MessageSkipped() {
	for _, s := range m {
		s.MessageSkipped()
	}
}

func (m Multi) AttemptCompleted(statusCode int, latency time.Duration) {
	for _, s := range m {
		s.AttemptCompleted(statusCode, latency)
	}
}

func (m Multi) RetryAttempt() {
	for _, s := range m {
		s.RetryAttempt()
	}
}

func (m Multi) PendingMessages(n int64) {
	for _, s := range m {
		s.PendingMessages(n)
	}
}

func (m Multi) ObserveLatency(op string, d time.Duration) {
	for _, s := range m {
		s.ObserveLatency(op, d)
	}
}
