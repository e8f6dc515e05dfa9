package message

import (
	"context"

	"github.com/xraph/courier/id"
)

// Store defines the persistence contract for relayed messages.
//
// Every operation is atomic per message. MarkSent and MarkFailed return
// courier.ErrMessageNotFound for an unknown ID.
type Store interface {
	// Insert persists a new message. It must be durable before it returns.
	Insert(ctx context.Context, m *Message) error

	// MarkSent moves a message to sent and stamps SentAt. Marking a message
	// that is already sent is a no-op.
	MarkSent(ctx context.Context, msgID id.ID) error

	// MarkFailed moves a message to failed with reason and attemptCount.
	// It never demotes a sent message and never lowers the attempt count.
	MarkFailed(ctx context.Context, msgID id.ID, reason string, attemptCount int) error

	// FindRetryable returns up to limit pending or failed messages, fewest
	// attempts first, then oldest first.
	FindRetryable(ctx context.Context, limit int) ([]*Message, error)

	// Get returns a message by ID.
	Get(ctx context.Context, msgID id.ID) (*Message, error)

	// CountByStatus returns how many messages are in status.
	CountByStatus(ctx context.Context, status Status) (int64, error)
}
