// Package postgres implements the courier store on PostgreSQL via Grove ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate" // registers the pg migration executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/courier"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/message"
	courierstore "github.com/xraph/courier/store"
)

// compile-time interface check
var _ courierstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("courier/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: courier/postgres: %w", courier.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert persists a new message.
func (s *Store) Insert(ctx context.Context, m *message.Message) error {
	if _, err := s.pg.NewInsert(toMessageModel(m)).Exec(ctx); err != nil {
		return fmt.Errorf("courier/postgres: insert message: %w", err)
	}
	return nil
}

// MarkSent moves a message to sent unless it already is.
func (s *Store) MarkSent(ctx context.Context, msgID id.ID) error {
	now := time.Now().UTC()
	res, err := s.pg.NewUpdate((*messageModel)(nil)).
		Set("status = $1", string(message.StatusSent)).
		Set("sent_at = $2", now).
		Set("updated_at = $3", now).
		Where("id = $4", msgID.String()).
		Where("status <> $5", string(message.StatusSent)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("courier/postgres: mark sent: %w", err)
	}
	return s.checkAffected(ctx, res, msgID)
}

// MarkFailed records a failed cycle. Sent rows are left alone and the
// attempt count only moves up.
func (s *Store) MarkFailed(ctx context.Context, msgID id.ID, reason string, attemptCount int) error {
	now := time.Now().UTC()
	res, err := s.pg.NewUpdate((*messageModel)(nil)).
		Set("status = $1", string(message.StatusFailed)).
		Set("last_error = $2", reason).
		Set("attempt_count = GREATEST(attempt_count, $3)", attemptCount).
		Set("last_retry_at = $4", now).
		Set("updated_at = $5", now).
		Where("id = $6", msgID.String()).
		Where("status <> $7", string(message.StatusSent)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("courier/postgres: mark failed: %w", err)
	}
	return s.checkAffected(ctx, res, msgID)
}

// checkAffected tells a guarded no-op apart from an unknown ID.
func (s *Store) checkAffected(ctx context.Context, res sql.Result, msgID id.ID) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}
	count, err := s.pg.NewSelect((*messageModel)(nil)).
		Where("id = $1", msgID.String()).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("courier/postgres: lookup message: %w", err)
	}
	if count == 0 {
		return courier.ErrMessageNotFound
	}
	return nil
}

// FindRetryable returns up to limit pending or failed messages using the
// partial retryable index.
func (s *Store) FindRetryable(ctx context.Context, limit int) ([]*message.Message, error) {
	if limit <= 0 {
		return []*message.Message{}, nil
	}
	var models []messageModel
	if err := s.pg.NewSelect(&models).
		Where("status IN ('pending', 'failed')").
		OrderExpr("attempt_count ASC, received_at ASC").
		Limit(limit).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("courier/postgres: find retryable: %w", err)
	}
	return fromMessageModels(models)
}

// Get returns a message by ID.
func (s *Store) Get(ctx context.Context, msgID id.ID) (*message.Message, error) {
	m := new(messageModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", msgID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, courier.ErrMessageNotFound
		}
		return nil, err
	}
	return fromMessageModel(m)
}

// CountByStatus returns the number of messages in status.
func (s *Store) CountByStatus(ctx context.Context, status message.Status) (int64, error) {
	count, err := s.pg.NewSelect((*messageModel)(nil)).
		Where("status = $1", string(status)).
		Count(ctx)
	return count, err
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
