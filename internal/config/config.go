// Package config loads the courierd daemon configuration.
//
// Values come from a YAML or .env file when a path is given, and from the
// environment otherwise. Environment variables always override the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/xraph/courier"
	"github.com/xraph/courier/transport"
)

var (
	ErrBackendURLRequired = errors.New("config: BACKEND_URL is required")
	ErrUnknownStoreDriver = errors.New("config: unknown store driver")
)

// Store drivers supported by the daemon.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	HTTP        HTTP        `yaml:"http"`
	Backend     Backend     `yaml:"backend"`
	RetryWorker RetryWorker `yaml:"retry_worker"`
	Store       Store       `yaml:"store"`
	Log         Log         `yaml:"log"`
}

type HTTP struct {
	Host         string        `yaml:"host"           env:"HTTP_HOST"           env-default:"0.0.0.0"`
	Port         uint16        `yaml:"port"           env:"HTTP_PORT"           env-default:"8080"`
	BasePath     string        `yaml:"base_path"      env:"HTTP_BASE_PATH"      env-default:"/api"`
	MetricsPath  string        `yaml:"metrics_path"   env:"HTTP_METRICS_PATH"   env-default:"/metrics"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" env:"HTTP_MAX_BODY_BYTES" env-default:"10485760"`
	ReadTimeout  time.Duration `yaml:"read_timeout"   env:"HTTP_READ_TIMEOUT"   env-default:"30s"`
	WriteTimeout time.Duration `yaml:"write_timeout"  env:"HTTP_WRITE_TIMEOUT"  env-default:"30s"`
	KeepAlive    time.Duration `yaml:"keep_alive"     env:"HTTP_KEEP_ALIVE"     env-default:"75s"`
}

type Backend struct {
	URL            string        `yaml:"url"             env:"BACKEND_URL"`
	Timeout        time.Duration `yaml:"timeout"         env:"BACKEND_TIMEOUT"         env-default:"30s"`
	MaxRetries     int           `yaml:"max_retries"     env:"BACKEND_MAX_RETRIES"     env-default:"5"`
	InitialBackoff time.Duration `yaml:"initial_backoff" env:"BACKEND_INITIAL_BACKOFF" env-default:"100ms"`
	MaxBackoff     time.Duration `yaml:"max_backoff"     env:"BACKEND_MAX_BACKOFF"     env-default:"60s"`
	Multiplier     float64       `yaml:"multiplier"      env:"BACKEND_MULTIPLIER"      env-default:"2"`
	RateLimit      float64       `yaml:"rate_limit"      env:"BACKEND_RATE_LIMIT"`
	RateBurst      int           `yaml:"rate_burst"      env:"BACKEND_RATE_BURST"      env-default:"1"`
	SigningSecret  string        `yaml:"signing_secret"  env:"BACKEND_SIGNING_SECRET"`
}

type RetryWorker struct {
	Interval     time.Duration `yaml:"interval"       env:"RETRY_WORKER_INTERVAL"       env-default:"60s"`
	BatchSize    int           `yaml:"batch_size"     env:"RETRY_WORKER_BATCH_SIZE"     env-default:"100"`
	Ceiling      int           `yaml:"ceiling"        env:"RETRY_WORKER_CEILING"        env-default:"10"`
	Concurrency  int           `yaml:"concurrency"    env:"RETRY_WORKER_CONCURRENCY"`
	SweepOnStart bool          `yaml:"sweep_on_start" env:"RETRY_WORKER_SWEEP_ON_START" env-default:"true"`
}

type Store struct {
	Driver string `yaml:"driver" env:"STORE_DRIVER" env-default:"memory"`
	URL    string `yaml:"url"    env:"STORE_URL"`
}

type Log struct {
	Level      string `yaml:"level"       env:"LOG_LEVEL"       env-default:"info"`
	FormatJSON bool   `yaml:"format_json" env:"LOG_FORMAT_JSON"`
	File       string `yaml:"file"        env:"LOG_FILE"`
	MaxSize    int    `yaml:"max_size"    env:"LOG_MAX_SIZE"    env-default:"10"`
	MaxBackups int    `yaml:"max_backups" env:"LOG_MAX_BACKUPS" env-default:"3"`
	MaxAge     int    `yaml:"max_age"     env:"LOG_MAX_AGE"     env-default:"7"`
}

// Load reads the configuration from path, or from the environment alone
// when path is empty, and validates it.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file does not exist: %s", path)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad is Load that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Validate checks the fields the daemon cannot default.
func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return ErrBackendURLRequired
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StoreRedis:
		if c.Store.URL == "" {
			return fmt.Errorf("config: STORE_URL is required for the %s driver", c.Store.Driver)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStoreDriver, c.Store.Driver)
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

// CourierOptions maps the daemon settings onto courier options.
func (c *Config) CourierOptions() []courier.Option {
	opts := []courier.Option{
		courier.WithDownstreamURL(c.Backend.URL),
		courier.WithRequestTimeout(c.Backend.Timeout),
		courier.WithMaxAttemptsPerCycle(c.Backend.MaxRetries),
		courier.WithInitialBackoff(c.Backend.InitialBackoff),
		courier.WithMaxBackoff(c.Backend.MaxBackoff),
		courier.WithBackoffMultiplier(c.Backend.Multiplier),
		courier.WithSweepInterval(c.RetryWorker.Interval),
		courier.WithSweepBatchSize(c.RetryWorker.BatchSize),
		courier.WithHardAttemptCeiling(c.RetryWorker.Ceiling),
		courier.WithSweepConcurrency(c.RetryWorker.Concurrency),
		courier.WithSweepOnStart(c.RetryWorker.SweepOnStart),
	}

	var httpOpts []transport.HTTPOption
	if c.Backend.RateLimit > 0 {
		httpOpts = append(httpOpts, transport.WithRateLimit(c.Backend.RateLimit, c.Backend.RateBurst))
	}
	if c.Backend.SigningSecret != "" {
		httpOpts = append(httpOpts, transport.WithSigningSecret(c.Backend.SigningSecret))
	}
	if len(httpOpts) > 0 {
		opts = append(opts, courier.WithHTTPOptions(httpOpts...))
	}
	return opts
}
