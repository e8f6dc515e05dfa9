package courier

import (
	"errors"

	"github.com/xraph/courier/delivery"
	"github.com/xraph/courier/transport"
)

// Sentinel errors returned by courier operations.
var (
	// ErrNoStore is returned when a Courier is created without a store.
	ErrNoStore = errors.New("courier: store is required")

	// ErrNoTransport is returned when a Courier has neither a transport nor
	// a downstream URL.
	ErrNoTransport = errors.New("courier: transport or downstream URL is required")

	// ErrInvalidConfig is returned when configuration values are out of range.
	ErrInvalidConfig = errors.New("courier: invalid config")

	// ErrEmptyPayload is returned when Submit is called with no payload.
	ErrEmptyPayload = errors.New("courier: payload is empty")

	// ErrMessageNotFound is returned when a message cannot be found.
	ErrMessageNotFound = errors.New("courier: message not found")

	// ErrStoreClosed is returned when a store operation is attempted after the store is closed.
	ErrStoreClosed = errors.New("courier: store is closed")

	// ErrMigrationFailed is returned when a database migration fails.
	ErrMigrationFailed = errors.New("courier: migration failed")

	// ErrStoreUnavailable is returned when the store rejects a read or
	// write. Submit returns it when the message could not be stored.
	ErrStoreUnavailable = delivery.ErrStoreUnavailable

	// ErrAttemptsExhausted is returned by a delivery cycle whose attempts
	// all failed with retryable outcomes.
	ErrAttemptsExhausted = delivery.ErrAttemptsExhausted

	// ErrTransportRetryable marks a retryable attempt failure. Delivery
	// cycles absorb it and never return it.
	ErrTransportRetryable = transport.ErrRetryable

	// ErrTransportTerminal is returned by a delivery cycle ended by a
	// non-retryable downstream response.
	ErrTransportTerminal = transport.ErrTerminal
)
