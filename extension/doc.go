// Package extension mounts courier inside a Forge application.
//
// The extension:
//   - builds the store from an explicit store.Store, a grove database, or a grove KV store
//   - runs store migrations during Init
//   - mounts the ingestion routes with OpenAPI metadata under a configurable prefix
//   - starts the retry sweeper on application start
//   - stops it gracefully, draining in-flight cycles, on shutdown
//   - reports health through the store's Ping
//
// Usage:
//
//	ext := extension.New(
//	    extension.WithGroveDatabase(db),
//	    extension.WithPrefix("/ingest"),
//	)
//	if err := ext.Init(ctx); err != nil {
//	    return err
//	}
//	ext.RegisterRoutes(app.Router(), app.Logger())
package extension
