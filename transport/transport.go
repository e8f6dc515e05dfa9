// Package transport defines the outbound delivery contract and classifies
// downstream responses into success, retryable and terminal outcomes.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/xraph/courier/id"
)

var (
	// ErrRetryable marks a failed attempt that may succeed later.
	ErrRetryable = errors.New("courier: transport failure is retryable")

	// ErrTerminal marks a failed attempt that will never succeed as sent.
	ErrTerminal = errors.New("courier: transport failure is not retryable")
)

// Kind classifies the result of one delivery attempt.
type Kind int

const (
	// Success means the downstream accepted the payload.
	Success Kind = iota

	// RetryableFailure covers connectivity errors, timeouts, 5xx and 429.
	RetryableFailure

	// NonRetryableFailure covers every other 4xx response.
	NonRetryableFailure
)

// String returns a short label for logs and metrics.
func (k Kind) String() string {
	switch k {
	case Success:
		return "success"
	case RetryableFailure:
		return "retryable"
	case NonRetryableFailure:
		return "non_retryable"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Outcome is the result of a single attempt.
type Outcome struct {
	Kind Kind

	// Detail describes a failure. Empty on success.
	Detail string

	// StatusCode is the downstream HTTP status, or 0 when no response arrived.
	StatusCode int

	// Latency is how long the attempt took.
	Latency time.Duration
}

// Succeeded returns a success outcome.
func Succeeded(statusCode int) Outcome {
	return Outcome{Kind: Success, StatusCode: statusCode}
}

// Retryable returns a retryable failure outcome.
func Retryable(detail string) Outcome {
	return Outcome{Kind: RetryableFailure, Detail: detail}
}

// NonRetryable returns a terminal failure outcome.
func NonRetryable(detail string) Outcome {
	return Outcome{Kind: NonRetryableFailure, Detail: detail}
}

// Err converts a failed outcome into an error wrapping ErrRetryable or
// ErrTerminal. It returns nil on success.
func (o Outcome) Err() error {
	switch o.Kind {
	case Success:
		return nil
	case NonRetryableFailure:
		return fmt.Errorf("%w: %s", ErrTerminal, o.Detail)
	default:
		return fmt.Errorf("%w: %s", ErrRetryable, o.Detail)
	}
}

// Transport sends one payload to the downstream consumer. Implementations
// must not retry internally and must bound their own waiting.
type Transport interface {
	Deliver(ctx context.Context, payload []byte) Outcome
}

// Func adapts an ordinary function to Transport.
type Func func(ctx context.Context, payload []byte) Outcome

// Deliver calls f.
func (f Func) Deliver(ctx context.Context, payload []byte) Outcome { return f(ctx, payload) }

// Classify maps a downstream HTTP status code to an outcome kind. Status 0
// stands for "no response" and is retryable.
func Classify(statusCode int) Kind {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return Success
	case statusCode == http.StatusTooManyRequests:
		return RetryableFailure
	case statusCode >= 400 && statusCode < 500:
		return NonRetryableFailure
	default:
		return RetryableFailure
	}
}

type messageIDKey struct{}

// WithMessageID attaches the ID of the message being delivered to ctx so a
// transport can pass it downstream for deduplication.
func WithMessageID(ctx context.Context, msgID id.ID) context.Context {
	return context.WithValue(ctx, messageIDKey{}, msgID)
}

// MessageIDFrom returns the message ID attached by WithMessageID.
func MessageIDFrom(ctx context.Context) (id.ID, bool) {
	v, ok := ctx.Value(messageIDKey{}).(id.ID)
	return v, ok && !v.IsNil()
}
