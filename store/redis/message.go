package redis

import (
	"context"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/courier"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/internal/entity"
	"github.com/xraph/courier/message"
)

// Hash field names.
const (
	fieldPayload      = "payload"
	fieldStatus       = "status"
	fieldReceivedAt   = "received_at"
	fieldReceivedUnix = "received_unix"
	fieldSentAt       = "sent_at"
	fieldAttemptCount = "attempt_count"
	fieldLastError    = "last_error"
	fieldLastRetryAt  = "last_retry_at"
	fieldCreatedAt    = "created_at"
	fieldUpdatedAt    = "updated_at"
)

// markSentScript moves a message to sent unless it already is.
// KEYS[1] = message hash, KEYS[2] = retryable zset,
// KEYS[3] = pending set, KEYS[4] = failed set, KEYS[5] = sent set
// ARGV[1] = message ID, ARGV[2] = timestamp
// Returns -1 for an unknown message, 0 for a no-op, 1 on change.
var markSentScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -1 end
if redis.call('HGET', KEYS[1], 'status') == 'sent' then return 0 end
redis.call('HSET', KEYS[1], 'status', 'sent', 'sent_at', ARGV[2], 'updated_at', ARGV[2])
redis.call('ZREM', KEYS[2], ARGV[1])
redis.call('SREM', KEYS[3], ARGV[1])
redis.call('SREM', KEYS[4], ARGV[1])
redis.call('SADD', KEYS[5], ARGV[1])
return 1
`)

// markFailedScript records a failed cycle on a message that is not sent.
// The stored attempt count only moves up.
// KEYS[1] = message hash, KEYS[2] = retryable zset,
// KEYS[3] = pending set, KEYS[4] = failed set
// ARGV[1] = message ID, ARGV[2] = reason, ARGV[3] = attempt count,
// ARGV[4] = timestamp, ARGV[5] = attempt weight
var markFailedScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -1 end
if redis.call('HGET', KEYS[1], 'status') == 'sent' then return 0 end
local attempts = tonumber(redis.call('HGET', KEYS[1], 'attempt_count')) or 0
local next = tonumber(ARGV[3])
if next > attempts then attempts = next end
redis.call('HSET', KEYS[1], 'status', 'failed', 'last_error', ARGV[2],
    'attempt_count', tostring(attempts), 'last_retry_at', ARGV[4], 'updated_at', ARGV[4])
local received = tonumber(redis.call('HGET', KEYS[1], 'received_unix')) or 0
redis.call('ZADD', KEYS[2], tostring(attempts * tonumber(ARGV[5]) + received), ARGV[1])
redis.call('SREM', KEYS[3], ARGV[1])
redis.call('SADD', KEYS[4], ARGV[1])
return 1
`)

// Insert persists a new message and indexes it as retryable.
func (s *Store) Insert(ctx context.Context, m *message.Message) error {
	msgID := m.ID.String()
	key := entityKey(prefixMessage, msgID)

	fields := []any{
		fieldPayload, m.Payload,
		fieldStatus, string(m.Status),
		fieldReceivedAt, formatTime(m.ReceivedAt),
		fieldReceivedUnix, m.ReceivedAt.Unix(),
		fieldAttemptCount, m.AttemptCount,
		fieldLastError, m.LastError,
		fieldCreatedAt, formatTime(m.CreatedAt),
		fieldUpdatedAt, formatTime(m.UpdatedAt),
	}
	if m.SentAt != nil {
		fields = append(fields, fieldSentAt, formatTime(*m.SentAt))
	}
	if m.LastRetryAt != nil {
		fields = append(fields, fieldLastRetryAt, formatTime(*m.LastRetryAt))
	}

	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fields...)
		for _, st := range message.Statuses {
			pipe.SRem(ctx, statusKey(st), msgID)
		}
		pipe.SAdd(ctx, statusKey(m.Status), msgID)
		if m.Status.Retryable() {
			pipe.ZAdd(ctx, zRetryable, goredis.Z{Score: retryScore(m.AttemptCount, m.ReceivedAt), Member: msgID})
		} else {
			pipe.ZRem(ctx, zRetryable, msgID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("courier/redis: insert message: %w", err)
	}
	return nil
}

// MarkSent moves a message to sent unless it already is.
func (s *Store) MarkSent(ctx context.Context, msgID id.ID) error {
	sid := msgID.String()
	keys := []string{
		entityKey(prefixMessage, sid),
		zRetryable,
		statusKey(message.StatusPending),
		statusKey(message.StatusFailed),
		statusKey(message.StatusSent),
	}
	res, err := markSentScript.Run(ctx, s.rdb, keys, sid, formatTime(now())).Int()
	if err != nil {
		return fmt.Errorf("courier/redis: mark sent: %w", err)
	}
	if res < 0 {
		return courier.ErrMessageNotFound
	}
	return nil
}

// MarkFailed records a failed cycle. Sent messages are left alone.
func (s *Store) MarkFailed(ctx context.Context, msgID id.ID, reason string, attemptCount int) error {
	sid := msgID.String()
	keys := []string{
		entityKey(prefixMessage, sid),
		zRetryable,
		statusKey(message.StatusPending),
		statusKey(message.StatusFailed),
	}
	res, err := markFailedScript.Run(ctx, s.rdb, keys,
		sid, reason, attemptCount, formatTime(now()), strconv.FormatFloat(attemptWeight, 'f', -1, 64),
	).Int()
	if err != nil {
		return fmt.Errorf("courier/redis: mark failed: %w", err)
	}
	if res < 0 {
		return courier.ErrMessageNotFound
	}
	return nil
}

// FindRetryable returns up to limit retryable messages, fewest attempts first.
func (s *Store) FindRetryable(ctx context.Context, limit int) ([]*message.Message, error) {
	if limit <= 0 {
		return []*message.Message{}, nil
	}
	ids, err := s.rdb.ZRange(ctx, zRetryable, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("courier/redis: find retryable: %w", err)
	}
	if len(ids) == 0 {
		return []*message.Message{}, nil
	}

	pipe := s.rdb.Pipeline()
	cmds := make([]*goredis.MapStringStringCmd, len(ids))
	for i, sid := range ids {
		cmds[i] = pipe.HGetAll(ctx, entityKey(prefixMessage, sid))
	}
	if _, err := pipe.Exec(ctx); err != nil && !isRedisNil(err) {
		return nil, fmt.Errorf("courier/redis: find retryable load: %w", err)
	}

	result := make([]*message.Message, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue // removed between the range and the load
		}
		m, err := fromHash(ids[i], fields)
		if err != nil {
			return nil, err
		}
		if !m.Status.Retryable() {
			continue
		}
		result = append(result, m)
	}
	return result, nil
}

// Get returns a message by ID.
func (s *Store) Get(ctx context.Context, msgID id.ID) (*message.Message, error) {
	sid := msgID.String()
	fields, err := s.rdb.HGetAll(ctx, entityKey(prefixMessage, sid)).Result()
	if err != nil {
		return nil, fmt.Errorf("courier/redis: get message: %w", err)
	}
	if len(fields) == 0 {
		return nil, courier.ErrMessageNotFound
	}
	return fromHash(sid, fields)
}

// CountByStatus returns the number of messages in status.
func (s *Store) CountByStatus(ctx context.Context, status message.Status) (int64, error) {
	count, err := s.rdb.SCard(ctx, statusKey(status)).Result()
	if err != nil {
		return 0, fmt.Errorf("courier/redis: count by status: %w", err)
	}
	return count, nil
}

func fromHash(sid string, f map[string]string) (*message.Message, error) {
	msgID, err := id.ParseMessageID(sid)
	if err != nil {
		return nil, fmt.Errorf("parse message ID %q: %w", sid, err)
	}
	status, err := message.ParseStatus(f[fieldStatus])
	if err != nil {
		return nil, err
	}
	attempts, err := strconv.Atoi(f[fieldAttemptCount])
	if err != nil {
		return nil, fmt.Errorf("courier/redis: parse attempt_count %q: %w", f[fieldAttemptCount], err)
	}
	receivedAt, err := parseTime(fieldReceivedAt, f[fieldReceivedAt])
	if err != nil {
		return nil, err
	}
	createdAt, err := parseTime(fieldCreatedAt, f[fieldCreatedAt])
	if err != nil {
		return nil, err
	}
	updatedAt, err := parseTime(fieldUpdatedAt, f[fieldUpdatedAt])
	if err != nil {
		return nil, err
	}
	sentAt, err := parseOptionalTime(fieldSentAt, f[fieldSentAt])
	if err != nil {
		return nil, err
	}
	lastRetryAt, err := parseOptionalTime(fieldLastRetryAt, f[fieldLastRetryAt])
	if err != nil {
		return nil, err
	}
	return &message.Message{
		Entity: entity.Entity{
			CreatedAt: createdAt,
			UpdatedAt: updatedAt,
		},
		ID:           msgID,
		Payload:      []byte(f[fieldPayload]),
		Status:       status,
		ReceivedAt:   receivedAt,
		SentAt:       sentAt,
		AttemptCount: attempts,
		LastError:    f[fieldLastError],
		LastRetryAt:  lastRetryAt,
	}, nil
}
