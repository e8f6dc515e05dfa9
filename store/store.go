// Package store defines the aggregate Store every courier backend implements.
package store

import (
	"context"

	"github.com/xraph/courier/message"
)

// Store is the aggregate persistence interface.
type Store interface {
	message.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
