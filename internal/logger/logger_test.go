package logger_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xraph/courier/internal/logger"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := logger.ParseLevel(tt.in)
		if err != nil {
			t.Fatalf("ParseLevel(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	if _, err := logger.ParseLevel("verbose"); !errors.Is(err, logger.ErrUnknownLevel) {
		t.Fatalf("expected ErrUnknownLevel, got %v", err)
	}
}

func TestJSONOutputRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := logger.NewWithWriter(logger.Config{Level: "warn", FormatJSON: true}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	l.Info("dropped")
	l.Warn("kept", "message_id", "msg_123")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec["msg"] != "kept" || rec["message_id"] != "msg_123" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courierd.log")
	var buf bytes.Buffer
	l, err := logger.NewWithWriter(logger.Config{
		Level:    "info",
		Rotation: logger.Rotation{File: path, MaxSize: 1},
	}, &buf)
	if err != nil {
		t.Fatal(err)
	}

	l.Info("sweep completed", "fetched", 3)
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "sweep completed") || !strings.Contains(buf.String(), "sweep completed") {
		t.Fatalf("record missing: file=%q stdout=%q", data, buf.String())
	}
}
