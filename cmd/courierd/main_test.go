package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/xraph/courier"
	"github.com/xraph/courier/internal/config"
	"github.com/xraph/courier/observability"
	"github.com/xraph/courier/store/memory"
)

func TestRoutes(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	t.Setenv("BACKEND_URL", backend.URL)
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}

	reg := prometheus.NewRegistry()
	c, err := courier.New(append([]courier.Option{
		courier.WithStore(memory.New()),
		courier.WithSink(observability.NewPrometheus(reg)),
		courier.WithSweepOnStart(false),
	}, cfg.CourierOptions()...)...)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Stop(context.Background())

	srv := httptest.NewServer(routes(cfg, c, reg, slog.New(slog.NewTextHandler(io.Discard, nil))))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/messages", "application/json", bytes.NewReader([]byte(`{"ok":true}`)))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("submit: expected 202, got %d", resp.StatusCode)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), "courier_messages_received_total") {
		t.Fatalf("metrics missing received counter:\n%s", body)
	}
}

func TestOpenStore(t *testing.T) {
	s, err := openStore(config.Store{Driver: config.StoreMemory})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := openStore(config.Store{Driver: config.StoreRedis, URL: "://bad"}); err == nil {
		t.Fatal("expected error for malformed redis URL")
	}
}
