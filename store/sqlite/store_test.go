package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/courier/message"
	"github.com/xraph/courier/store"
	"github.com/xraph/courier/store/sqlite"
	"github.com/xraph/courier/store/storetest"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	ctx := context.Background()

	dsn := filepath.Join(t.TempDir(), "courier.db") + "?_pragma=busy_timeout(5000)&_time_format=sqlite"
	drv := sqlitedriver.New()
	if err := drv.Open(ctx, dsn, driver.WithPoolSize(1)); err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db, err := grove.Open(drv)
	if err != nil {
		t.Fatalf("grove open: %v", err)
	}

	s := sqlite.New(db)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newStore(t) })
}

func TestMigrateIsRepeatable(t *testing.T) {
	s := newStore(t)
	defer s.Close()

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestSentRowRejectsLateFailure(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	defer s.Close()

	m := message.New([]byte("X"))
	if err := s.Insert(ctx, m); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkFailed(ctx, m.ID, "downstream returned 503", 2); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkSent(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkFailed(ctx, m.ID, "late", 9); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != message.StatusSent || got.SentAt == nil {
		t.Fatalf("status = %q, sent_at = %v", got.Status, got.SentAt)
	}
	if got.AttemptCount != 2 || got.LastError != "downstream returned 503" {
		t.Fatalf("attempt_count = %d, last_error = %q", got.AttemptCount, got.LastError)
	}
	if string(got.Payload) != "X" {
		t.Fatalf("payload = %q", got.Payload)
	}

	retryable, err := s.FindRetryable(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(retryable) != 0 {
		t.Fatalf("sent message still retryable: %d rows", len(retryable))
	}
}
