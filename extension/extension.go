package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/grove/kv"

	"github.com/xraph/courier"
	"github.com/xraph/courier/api"
	"github.com/xraph/courier/store"
	"github.com/xraph/courier/store/mongo"
	"github.com/xraph/courier/store/postgres"
	"github.com/xraph/courier/store/redis"
	"github.com/xraph/courier/store/sqlite"
)

// ErrNotInitialized is returned when the extension is used before Init.
var ErrNotInitialized = errors.New("courier: extension not initialized")

// Extension is the Forge extension for courier.
type Extension struct {
	config  Config
	opts    []courier.Option
	store   store.Store
	groveDB *grove.DB
	groveKV *kv.Store
	logger  *slog.Logger
	courier *courier.Courier
}

// New creates a new courier Forge extension.
func New(opts ...ExtOption) *Extension {
	e := &Extension{config: DefaultConfig()}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	return e
}

// Init resolves the store, runs migrations, and builds the courier.
func (e *Extension) Init(ctx context.Context) error {
	s, err := e.resolveStore()
	if err != nil {
		return err
	}

	if !e.config.DisableMigrate {
		if err := s.Migrate(ctx); err != nil {
			return fmt.Errorf("courier: extension migrate: %w", err)
		}
	}

	opts := append([]courier.Option{
		courier.WithStore(s),
		courier.WithLogger(e.logger),
	}, e.config.ToCourierOptions()...)
	opts = append(opts, e.opts...)

	c, err := courier.New(opts...)
	if err != nil {
		return err
	}
	e.courier = c
	return nil
}

func (e *Extension) resolveStore() (store.Store, error) {
	switch {
	case e.store != nil:
		return e.store, nil
	case e.groveKV != nil:
		return redis.New(e.groveKV), nil
	case e.groveDB != nil:
		switch e.config.GroveDriver {
		case DriverPostgres, "":
			return postgres.New(e.groveDB), nil
		case DriverSQLite:
			return sqlite.New(e.groveDB), nil
		case DriverMongo:
			return mongo.New(e.groveDB), nil
		default:
			return nil, fmt.Errorf("%w: unknown grove driver %q", courier.ErrInvalidConfig, e.config.GroveDriver)
		}
	default:
		return nil, courier.ErrNoStore
	}
}

// Start starts the retry sweeper.
func (e *Extension) Start(ctx context.Context) error {
	if e.courier == nil {
		return ErrNotInitialized
	}
	e.courier.Start(ctx)
	return nil
}

// Stop stops the sweeper and drains in-flight cycles.
func (e *Extension) Stop(ctx context.Context) error {
	if e.courier == nil {
		return nil
	}
	return e.courier.Stop(ctx)
}

// Health reports whether the store is reachable.
func (e *Extension) Health(ctx context.Context) error {
	if e.courier == nil {
		return ErrNotInitialized
	}
	return e.courier.Ping(ctx)
}

// RegisterRoutes mounts the courier routes on a Forge router under the
// configured prefix. It is a no-op when routes are disabled.
func (e *Extension) RegisterRoutes(router forge.Router, log forge.Logger) {
	if e.config.DisableRoutes || e.courier == nil {
		return
	}
	api.NewForgeAPI(e.courier, log).RegisterRoutes(router.Group(e.config.BasePath))
}

// Handler returns the plain net/http handler mounted under the prefix.
// This can be used standalone without Forge integration.
func (e *Extension) Handler() http.Handler {
	if e.courier == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, ErrNotInitialized.Error(), http.StatusServiceUnavailable)
		})
	}
	var opts []api.HandlerOption
	if e.config.MaxBodyBytes > 0 {
		opts = append(opts, api.WithMaxBodyBytes(e.config.MaxBodyBytes))
	}
	h := api.NewHandler(e.courier, e.logger, opts...)
	return http.StripPrefix(strings.TrimSuffix(e.config.BasePath, "/"), h)
}

// Courier returns the courier built by Init, or nil before Init.
func (e *Extension) Courier() *courier.Courier { return e.courier }

// Prefix returns the configured URL prefix.
func (e *Extension) Prefix() string { return e.config.BasePath }

// Config returns the extension configuration.
func (e *Extension) Config() Config { return e.config }
