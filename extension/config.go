package extension

import (
	"github.com/xraph/courier"
)

// Store drivers understood by the extension when it builds the store
// from a grove database.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Config holds configuration for the courier Forge extension.
// Fields can be set programmatically via ExtOption functions or loaded from
// YAML configuration files (under "extensions.courier" or "courier" keys).
type Config struct {
	// Config embeds the core courier configuration.
	courier.Config `json:",inline" yaml:",inline" mapstructure:",squash"`

	// BasePath is the URL prefix for all courier routes (default: "/courier").
	BasePath string `json:"base_path" yaml:"base_path" mapstructure:"base_path"`

	// DisableRoutes disables automatic route registration with the Forge router.
	DisableRoutes bool `json:"disable_routes" yaml:"disable_routes" mapstructure:"disable_routes"`

	// DisableMigrate disables automatic database migration on Init.
	DisableMigrate bool `json:"disable_migrate" yaml:"disable_migrate" mapstructure:"disable_migrate"`

	// GroveDriver selects the store built on a grove database passed via
	// WithGroveDatabase: postgres, sqlite, or mongo.
	GroveDriver string `json:"grove_driver" mapstructure:"grove_driver" yaml:"grove_driver"`

	// MaxBodyBytes caps ingestion request bodies on the plain HTTP handler.
	MaxBodyBytes int64 `json:"max_body_bytes" mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Config:      courier.DefaultConfig(),
		BasePath:    "/courier",
		GroveDriver: DriverPostgres,
	}
}

// ToCourierOptions converts the embedded Config into courier.Option values.
// Zero fields keep the courier defaults.
func (c Config) ToCourierOptions() []courier.Option {
	var opts []courier.Option

	if c.InitialBackoff > 0 {
		opts = append(opts, courier.WithInitialBackoff(c.InitialBackoff))
	}
	if c.MaxBackoff > 0 {
		opts = append(opts, courier.WithMaxBackoff(c.MaxBackoff))
	}
	if c.BackoffMultiplier > 0 {
		opts = append(opts, courier.WithBackoffMultiplier(c.BackoffMultiplier))
	}
	if c.MaxAttemptsPerCycle > 0 {
		opts = append(opts, courier.WithMaxAttemptsPerCycle(c.MaxAttemptsPerCycle))
	}
	if c.SweepInterval > 0 {
		opts = append(opts, courier.WithSweepInterval(c.SweepInterval))
	}
	if c.SweepBatchSize > 0 {
		opts = append(opts, courier.WithSweepBatchSize(c.SweepBatchSize))
	}
	if c.HardAttemptCeiling > 0 {
		opts = append(opts, courier.WithHardAttemptCeiling(c.HardAttemptCeiling))
	}
	if c.SweepConcurrency > 0 {
		opts = append(opts, courier.WithSweepConcurrency(c.SweepConcurrency))
	}
	if c.RequestTimeout > 0 {
		opts = append(opts, courier.WithRequestTimeout(c.RequestTimeout))
	}
	if c.ShutdownTimeout > 0 {
		opts = append(opts, courier.WithShutdownTimeout(c.ShutdownTimeout))
	}
	if c.DownstreamURL != "" {
		opts = append(opts, courier.WithDownstreamURL(c.DownstreamURL))
	}
	opts = append(opts, courier.WithSweepOnStart(c.SweepOnStart))

	return opts
}
