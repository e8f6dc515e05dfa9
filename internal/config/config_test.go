package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xraph/courier/internal/config"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	t.Setenv("BACKEND_URL", "http://backend.local/ingest")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("addr = %s", cfg.Addr())
	}
	if cfg.Backend.Timeout != 30*time.Second || cfg.Backend.MaxRetries != 5 {
		t.Errorf("backend = %+v", cfg.Backend)
	}
	if cfg.Backend.InitialBackoff != 100*time.Millisecond || cfg.Backend.MaxBackoff != time.Minute {
		t.Errorf("backoff = %v..%v", cfg.Backend.InitialBackoff, cfg.Backend.MaxBackoff)
	}
	if cfg.RetryWorker.Interval != time.Minute || cfg.RetryWorker.BatchSize != 100 || cfg.RetryWorker.Ceiling != 10 {
		t.Errorf("retry worker = %+v", cfg.RetryWorker)
	}
	if !cfg.RetryWorker.SweepOnStart {
		t.Error("sweep on start should default to true")
	}
	if cfg.Store.Driver != config.StoreMemory {
		t.Errorf("store driver = %q", cfg.Store.Driver)
	}
	if cfg.HTTP.MaxBodyBytes != 10<<20 {
		t.Errorf("max body = %d", cfg.HTTP.MaxBodyBytes)
	}
	if len(cfg.CourierOptions()) == 0 {
		t.Error("no courier options")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BACKEND_URL", "http://backend.local/ingest")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("BACKEND_MAX_RETRIES", "3")
	t.Setenv("RETRY_WORKER_INTERVAL", "15s")
	t.Setenv("STORE_DRIVER", "redis")
	t.Setenv("STORE_URL", "redis://localhost:6379/0")

	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Port != 9090 || cfg.Backend.MaxRetries != 3 || cfg.RetryWorker.Interval != 15*time.Second {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Store.Driver != config.StoreRedis || cfg.Store.URL == "" {
		t.Fatalf("store = %+v", cfg.Store)
	}
}

func TestLoadValidation(t *testing.T) {
	t.Setenv("BACKEND_URL", "")
	if _, err := config.Load(""); !errors.Is(err, config.ErrBackendURLRequired) {
		t.Fatalf("expected ErrBackendURLRequired, got %v", err)
	}

	t.Setenv("BACKEND_URL", "http://backend.local")
	t.Setenv("STORE_DRIVER", "cassandra")
	if _, err := config.Load(""); !errors.Is(err, config.ErrUnknownStoreDriver) {
		t.Fatalf("expected ErrUnknownStoreDriver, got %v", err)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courierd.yaml")
	yaml := `
http:
  port: 7000
backend:
  url: http://backend.local/fhir
  max_retries: 4
retry_worker:
  ceiling: 6
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Port != 7000 || cfg.Backend.URL != "http://backend.local/fhir" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Backend.MaxRetries != 4 || cfg.RetryWorker.Ceiling != 6 || cfg.Log.Level != "debug" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	// Unset keys still take their defaults.
	if cfg.RetryWorker.BatchSize != 100 {
		t.Fatalf("batch size = %d", cfg.RetryWorker.BatchSize)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
