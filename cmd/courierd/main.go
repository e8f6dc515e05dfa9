// Command courierd runs the store-and-forward relay as a standalone service.
//
// It accepts JSON payloads over HTTP, stores them, and forwards them to the
// configured backend, retrying failed messages on a fixed interval.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/courier"
	"github.com/xraph/courier/api"
	"github.com/xraph/courier/internal/config"
	"github.com/xraph/courier/internal/logger"
	"github.com/xraph/courier/observability"
	"github.com/xraph/courier/signature"
	"github.com/xraph/courier/store"
	"github.com/xraph/courier/store/memory"
	"github.com/xraph/courier/store/redis"
)

const shutdownTimeout = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		path      string
		genSecret bool
	)
	flag.StringVar(&path, "config", "", "Path to a YAML or .env config file")
	flag.BoolVar(&genSecret, "gen-secret", false, "Print a new BACKEND_SIGNING_SECRET and exit")
	flag.Parse()

	if genSecret {
		fmt.Println(signature.GenerateSecret())
		return
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	if err := run(ctx, path); err != nil {
		fmt.Fprintf(os.Stderr, "courierd: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, path string) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:      cfg.Log.Level,
		FormatJSON: cfg.Log.FormatJSON,
		Rotation: logger.Rotation{
			File:       cfg.Log.File,
			MaxSize:    cfg.Log.MaxSize,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAge,
		},
	})
	if err != nil {
		return err
	}
	defer log.Close()
	slog.SetDefault(log.Logger)

	s, err := openStore(cfg.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Warn("close store", "error", err)
		}
	}()
	if err := s.Migrate(ctx); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := append([]courier.Option{
		courier.WithStore(s),
		courier.WithLogger(log.Logger),
		courier.WithSink(observability.NewPrometheus(reg)),
		courier.WithTracer(observability.NewTracer()),
	}, cfg.CourierOptions()...)

	c, err := courier.New(opts...)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      routes(cfg, c, reg, log.Logger),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.KeepAlive,
	}

	c.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("courierd listening",
			"addr", srv.Addr,
			"backend", cfg.Backend.URL,
			"store", cfg.Store.Driver,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()

		// Stop accepting new messages before draining in-flight cycles.
		srvErr := srv.Shutdown(shutdownCtx)
		return errors.Join(srvErr, c.Stop(shutdownCtx))
	})

	return g.Wait()
}

func openStore(cfg config.Store) (store.Store, error) {
	switch cfg.Driver {
	case config.StoreRedis:
		opts, err := goredis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse STORE_URL: %w", err)
		}
		return redis.NewFromClient(goredis.NewClient(opts)), nil
	default:
		return memory.New(), nil
	}
}

func routes(cfg *config.Config, c *courier.Courier, reg *prometheus.Registry, log *slog.Logger) http.Handler {
	base := strings.TrimSuffix(cfg.HTTP.BasePath, "/")
	h := api.NewHandler(c, log, api.WithMaxBodyBytes(cfg.HTTP.MaxBodyBytes))

	mux := http.NewServeMux()
	mux.Handle(base+"/", http.StripPrefix(base, h))
	mux.Handle(cfg.HTTP.MetricsPath, observability.Handler(reg))
	return mux
}
