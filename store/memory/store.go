// Package memory provides an in-memory Store for tests and single-process use.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/xraph/courier"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/message"
	courierstore "github.com/xraph/courier/store"
)

// compile-time interface check.
var _ courierstore.Store = (*Store)(nil)

// Store keeps messages in a map. Callers always receive copies.
type Store struct {
	mu       sync.RWMutex
	messages map[string]*message.Message // keyed by ID string
	now      func() time.Time
	closed   bool
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		messages: make(map[string]*message.Message),
		now:      time.Now,
	}
}

// Migrate is a no-op for the in-memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping reports whether the store is still open.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return courier.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Insert stores a copy of m.
func (s *Store) Insert(_ context.Context, m *message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return courier.ErrStoreClosed
	}
	s.messages[m.ID.String()] = m.Clone()
	return nil
}

// MarkSent moves a message to sent.
func (s *Store) MarkSent(_ context.Context, msgID id.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return courier.ErrStoreClosed
	}
	m, ok := s.messages[msgID.String()]
	if !ok {
		return courier.ErrMessageNotFound
	}
	m.MarkSent(s.now())
	return nil
}

// MarkFailed records a failed cycle.
func (s *Store) MarkFailed(_ context.Context, msgID id.ID, reason string, attemptCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return courier.ErrStoreClosed
	}
	m, ok := s.messages[msgID.String()]
	if !ok {
		return courier.ErrMessageNotFound
	}
	m.MarkFailed(reason, attemptCount, s.now())
	return nil
}

// FindRetryable returns up to limit pending or failed messages, fewest
// attempts first, then oldest first.
func (s *Store) FindRetryable(_ context.Context, limit int) ([]*message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, courier.ErrStoreClosed
	}
	if limit <= 0 {
		return []*message.Message{}, nil
	}

	result := make([]*message.Message, 0)
	for _, m := range s.messages {
		if m.Status.Retryable() {
			result = append(result, m)
		}
	}

	slices.SortFunc(result, func(a, b *message.Message) int {
		if a.AttemptCount != b.AttemptCount {
			return a.AttemptCount - b.AttemptCount
		}
		return a.ReceivedAt.Compare(b.ReceivedAt)
	})

	if len(result) > limit {
		result = result[:limit]
	}
	for i, m := range result {
		result[i] = m.Clone()
	}
	return result, nil
}

// Get returns a copy of a message.
func (s *Store) Get(_ context.Context, msgID id.ID) (*message.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, courier.ErrStoreClosed
	}
	m, ok := s.messages[msgID.String()]
	if !ok {
		return nil, courier.ErrMessageNotFound
	}
	return m.Clone(), nil
}

// CountByStatus returns the number of messages in status.
func (s *Store) CountByStatus(_ context.Context, status message.Status) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, courier.ErrStoreClosed
	}
	var n int64
	for _, m := range s.messages {
		if m.Status == status {
			n++
		}
	}
	return n, nil
}
