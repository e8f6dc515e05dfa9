// Package sqlite implements the courier store on SQLite via Grove ORM.
// It suits single-node deployments that want durability without a server.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // registers the sqlite migration executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/courier"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/message"
	courierstore "github.com/xraph/courier/store"
)

// compile-time interface check
var _ courierstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("courier/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: courier/sqlite: %w", courier.ErrMigrationFailed, err)
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
	if _, err := s.sdb.NewInsert(toMessageModel(m)).Exec(ctx); err != nil {
		return fmt.Errorf("courier/sqlite: insert message: %w", err)
	}
	return nil
}

// MarkSent moves a message to sent unless it already is.
func (s *Store) MarkSent(ctx context.Context, msgID id.ID) error {
	now := time.Now().UTC()
	res, err := s.sdb.NewUpdate((*messageModel)(nil)).
		Set("status = ?", string(message.StatusSent)).
		Set("sent_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", msgID.String()).
		Where("status <> ?", string(message.StatusSent)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("courier/sqlite: mark sent: %w", err)
	}
	return s.checkAffected(ctx, res, msgID)
}

// MarkFailed records a failed cycle. Sent rows are left alone and the
// attempt count only moves up.
func (s *Store) MarkFailed(ctx context.Context, msgID id.ID, reason string, attemptCount int) error {
	now := time.Now().UTC()
	res, err := s.sdb.NewUpdate((*messageModel)(nil)).
		Set("status = ?", string(message.StatusFailed)).
		Set("last_error = ?", reason).
		Set("attempt_count = MAX(attempt_count, ?)", attemptCount).
		Set("last_retry_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", msgID.String()).
		Where("status <> ?", string(message.StatusSent)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("courier/sqlite: mark failed: %w", err)
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
	count, err := s.sdb.NewSelect((*messageModel)(nil)).
		Where("id = ?", msgID.String()).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("courier/sqlite: lookup message: %w", err)
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
	if err := s.sdb.NewSelect(&models).
		Where("status IN ('pending', 'failed')").
		OrderExpr("attempt_count ASC, received_at ASC").
		Limit(limit).
		Scan(ctx); err != nil {
		return nil, fmt.Errorf("courier/sqlite: find retryable: %w", err)
	}
	return fromMessageModels(models)
}

// Get returns a message by ID.
func (s *Store) Get(ctx context.Context, msgID id.ID) (*message.Message, error) {
	m := new(messageModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", msgID.String()).
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
	count, err := s.sdb.NewSelect((*messageModel)(nil)).
		Where("status = ?", string(status)).
		Count(ctx)
	return count, err
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
