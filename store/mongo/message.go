package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/courier"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/message"
)

// Insert persists a new message.
func (s *Store) Insert(ctx context.Context, m *message.Message) error {
	if _, err := s.mdb.NewInsert(toMessageModel(m)).Exec(ctx); err != nil {
		return fmt.Errorf("courier/mongo: insert message: %w", err)
	}
	return nil
}

// MarkSent moves a message to sent unless it already is.
func (s *Store) MarkSent(ctx context.Context, msgID id.ID) error {
	t := now()
	update := bson.M{
		"$set": bson.M{
			"status":     string(message.StatusSent),
			"sent_at":    t,
			"updated_at": t,
		},
	}
	return s.guardedUpdate(ctx, msgID, update, "mark sent")
}

// MarkFailed records a failed cycle. Sent documents are left alone and
// $max keeps the attempt count from moving down.
func (s *Store) MarkFailed(ctx context.Context, msgID id.ID, reason string, attemptCount int) error {
	t := now()
	update := bson.M{
		"$set": bson.M{
			"status":        string(message.StatusFailed),
			"last_error":    reason,
			"last_retry_at": t,
			"updated_at":    t,
		},
		"$max": bson.M{"attempt_count": attemptCount},
	}
	return s.guardedUpdate(ctx, msgID, update, "mark failed")
}

func (s *Store) guardedUpdate(ctx context.Context, msgID id.ID, update bson.M, op string) error {
	col := s.mdb.Collection(colMessages)
	filter := bson.M{
		"_id":    msgID.String(),
		"status": bson.M{"$ne": string(message.StatusSent)},
	}

	res, err := col.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("courier/mongo: %s: %w", op, err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	n, err := col.CountDocuments(ctx, bson.M{"_id": msgID.String()}, options.Count().SetLimit(1))
	if err != nil {
		return fmt.Errorf("courier/mongo: %s lookup: %w", op, err)
	}
	if n == 0 {
		return courier.ErrMessageNotFound
	}
	return nil
}

// FindRetryable returns up to limit pending or failed messages,
// fewest attempts first.
func (s *Store) FindRetryable(ctx context.Context, limit int) ([]*message.Message, error) {
	if limit <= 0 {
		return []*message.Message{}, nil
	}

	var models []messageModel
	if err := s.mdb.NewFind(&models).
		Filter(bson.M{"status": bson.M{"$in": bson.A{
			string(message.StatusPending),
			string(message.StatusFailed),
		}}}).
		Sort(bson.D{{Key: "attempt_count", Value: 1}, {Key: "received_at", Value: 1}}).
		Limit(int64(limit)).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("courier/mongo: find retryable: %w", err)
	}

	result := make([]*message.Message, 0, len(models))
	for i := range models {
		m, err := fromMessageModel(&models[i])
		if err != nil {
			return nil, err
		}
		result = append(result, m)
	}
	return result, nil
}

// Get returns a message by ID.
func (s *Store) Get(ctx context.Context, msgID id.ID) (*message.Message, error) {
	var m messageModel

	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": msgID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, courier.ErrMessageNotFound
		}
		return nil, fmt.Errorf("courier/mongo: get message: %w", err)
	}

	return fromMessageModel(&m)
}

// CountByStatus returns the number of messages in status.
func (s *Store) CountByStatus(ctx context.Context, status message.Status) (int64, error) {
	count, err := s.mdb.NewFind((*messageModel)(nil)).
		Filter(bson.M{"status": string(status)}).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("courier/mongo: count by status: %w", err)
	}
	return count, nil
}
