package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the courier store.
// It can be registered with the grove extension for orchestrated migration
// management (locking, version tracking, rollback support).
var Migrations = migrate.NewGroup("courier")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_courier_messages",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS courier_messages (
    id             TEXT PRIMARY KEY,
    payload        BYTEA NOT NULL,
    status         TEXT NOT NULL DEFAULT 'pending',
    received_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    sent_at        TIMESTAMPTZ,
    attempt_count  INT NOT NULL DEFAULT 0,
    last_error     TEXT NOT NULL DEFAULT '',
    last_retry_at  TIMESTAMPTZ,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CONSTRAINT courier_messages_status_check CHECK (status IN ('pending', 'sent', 'failed')),
    CONSTRAINT courier_messages_sent_at_check CHECK ((status = 'sent') = (sent_at IS NOT NULL)),
    CONSTRAINT courier_messages_attempt_count_check CHECK (attempt_count >= 0)
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS courier_messages`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_courier_messages_indexes",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE INDEX IF NOT EXISTS idx_courier_messages_retryable
    ON courier_messages (attempt_count, received_at)
    WHERE status IN ('pending', 'failed');

CREATE INDEX IF NOT EXISTS idx_courier_messages_status ON courier_messages (status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP INDEX IF EXISTS idx_courier_messages_status;
DROP INDEX IF EXISTS idx_courier_messages_retryable;
`)
				return err
			},
		},
	)
}
