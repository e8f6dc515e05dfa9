// Package delivery drives messages from the store to the downstream.
//
// A Forwarder runs one delivery cycle for a message: up to MaxAttempts
// transport calls separated by jittered exponential backoff, followed by a
// single status write. A Sweeper periodically re-drives pending and failed
// messages through the same Forwarder, skipping those at the attempt ceiling.
package delivery

import "errors"

var (
	// ErrStoreUnavailable is returned when the store rejects a read or write.
	ErrStoreUnavailable = errors.New("courier: store unavailable")

	// ErrAttemptsExhausted is returned when every attempt in a cycle failed
	// with a retryable outcome.
	ErrAttemptsExhausted = errors.New("courier: delivery attempts exhausted")
)
