package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the courier store (SQLite).
// Timestamp columns are declared DATETIME so the driver scans them back into
// time.Time.
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
    payload        BLOB NOT NULL,
    status         TEXT NOT NULL DEFAULT 'pending'
                   CHECK (status IN ('pending', 'sent', 'failed')),
    received_at    DATETIME NOT NULL DEFAULT (datetime('now')),
    sent_at        DATETIME,
    attempt_count  INTEGER NOT NULL DEFAULT 0 CHECK (attempt_count >= 0),
    last_error     TEXT NOT NULL DEFAULT '',
    last_retry_at  DATETIME,
    created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
    updated_at     DATETIME NOT NULL DEFAULT (datetime('now')),
    CHECK ((status = 'sent') = (sent_at IS NOT NULL))
);

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
DROP TABLE IF EXISTS courier_messages;
`)
				return err
			},
		},
	)
}
