package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/xraph/courier"
	"github.com/xraph/courier/message"
	"github.com/xraph/courier/store"
	"github.com/xraph/courier/store/memory"
	"github.com/xraph/courier/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return memory.New() })
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	if err := s.Migrate(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Ping(ctx); !errors.Is(err, courier.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
	if err := s.Insert(ctx, message.New([]byte(`{}`))); !errors.Is(err, courier.ErrStoreClosed) {
		t.Fatalf("expected ErrStoreClosed on insert, got %v", err)
	}
}

func TestReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	m := message.New([]byte("abc"))
	if err := s.Insert(ctx, m); err != nil {
		t.Fatal(err)
	}

	m.Payload[0] = 'z'
	got, err := s.Get(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if string(got.Payload) != "abc" {
		t.Fatalf("store shares payload with caller: %q", got.Payload)
	}

	got.Status = message.StatusSent
	again, _ := s.Get(ctx, m.ID)
	if again.Status != message.StatusPending {
		t.Fatal("store shares message with caller")
	}
}
