// Package logger builds the daemon's slog logger.
package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

var ErrUnknownLevel = errors.New("logger: unknown level")

type Config struct {
	Level      string
	FormatJSON bool
	Rotation   Rotation
}

// Rotation configures the optional log file. An empty File disables it.
type Rotation struct {
	File       string
	MaxSize    int // megabytes
	MaxBackups int
	MaxAge     int // days
}

// Logger is a slog.Logger that owns its rotated file, if any.
type Logger struct {
	*slog.Logger
	file *lumberjack.Logger
}

// New builds a logger writing to stdout and, when configured, a rotated file.
func New(cfg Config) (*Logger, error) {
	return newWithWriter(cfg, os.Stdout)
}

// MustNew is New that panics on error.
func MustNew(cfg Config) *Logger {
	l, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return l
}

func newWithWriter(cfg Config, stdout io.Writer) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	l := &Logger{}
	out := stdout
	if cfg.Rotation.File != "" {
		l.file = &lumberjack.Logger{
			Filename:   cfg.Rotation.File,
			MaxSize:    cfg.Rotation.MaxSize,
			MaxBackups: cfg.Rotation.MaxBackups,
			MaxAge:     cfg.Rotation.MaxAge,
			Compress:   true,
		}
		out = io.MultiWriter(stdout, l.file)
	}

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if cfg.FormatJSON {
		h = slog.NewJSONHandler(out, opts)
	} else {
		h = slog.NewTextHandler(out, opts)
	}
	l.Logger = slog.New(h)
	return l, nil
}

// Close releases the log file.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

// ParseLevel maps debug, info, warn, and error onto slog levels.
// An empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return slog.LevelInfo, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
	return level, nil
}
