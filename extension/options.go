package extension

import (
	"log/slog"

	gu "github.com/xraph/go-utils/metrics"
	"github.com/xraph/grove"
	"github.com/xraph/grove/kv"

	"github.com/xraph/courier"
	"github.com/xraph/courier/observability"
	"github.com/xraph/courier/store"
)

// ExtOption configures the courier Forge extension.
type ExtOption func(*Extension)

// WithStore sets the persistence backend directly.
func WithStore(s store.Store) ExtOption {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGroveDatabase builds the store on a grove database using
// Config.GroveDriver.
func WithGroveDatabase(db *grove.DB) ExtOption {
	return func(e *Extension) {
		e.groveDB = db
	}
}

// WithGroveKV builds a Redis store on a grove KV store.
func WithGroveKV(s *kv.Store) ExtOption {
	return func(e *Extension) {
		e.groveKV = s
	}
}

// WithPrefix sets the URL prefix for all courier routes.
func WithPrefix(prefix string) ExtOption {
	return func(e *Extension) {
		e.config.BasePath = prefix
	}
}

// WithConfig sets the extension configuration directly.
func WithConfig(cfg Config) ExtOption {
	return func(e *Extension) {
		e.config = cfg
	}
}

// WithLogger sets the logger shared by the extension and the courier.
func WithLogger(logger *slog.Logger) ExtOption {
	return func(e *Extension) {
		e.logger = logger
	}
}

// WithMetricFactory reports courier metrics through a go-utils factory,
// such as the one a Forge app exposes.
func WithMetricFactory(factory gu.MetricFactory) ExtOption {
	return func(e *Extension) {
		e.opts = append(e.opts, courier.WithSink(observability.NewMetrics(factory)))
	}
}

// WithCourierOption appends a raw courier.Option to the extension.
func WithCourierOption(opt courier.Option) ExtOption {
	return func(e *Extension) {
		e.opts = append(e.opts, opt)
	}
}

// WithDisableRoutes disables automatic route registration.
func WithDisableRoutes() ExtOption {
	return func(e *Extension) {
		e.config.DisableRoutes = true
	}
}

// WithDisableMigrations disables automatic database migration on Init.
func WithDisableMigrations() ExtOption {
	return func(e *Extension) {
		e.config.DisableMigrate = true
	}
}
