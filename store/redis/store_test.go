package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/courier/message"
	"github.com/xraph/courier/store"
	"github.com/xraph/courier/store/redis"
	"github.com/xraph/courier/store/storetest"
)

func newStore(t *testing.T) (*redis.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return redis.NewFromClient(rdb), mr
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, _ := newStore(t)
		return s
	})
}

func TestSentMessageLeavesRetryIndex(t *testing.T) {
	ctx := context.Background()
	s, mr := newStore(t)
	defer s.Close()

	m := message.New([]byte(`{"k":"v"}`))
	if err := s.Insert(ctx, m); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkFailed(ctx, m.ID, "downstream returned 500", 2); err != nil {
		t.Fatal(err)
	}

	members, err := mr.ZMembers("courier:z:msg:retryable")
	if err != nil {
		t.Fatal(err)
	}
	if len(members) != 1 || members[0] != m.ID.String() {
		t.Fatalf("retryable index = %v", members)
	}

	if err := s.MarkSent(ctx, m.ID); err != nil {
		t.Fatal(err)
	}
	if mr.Exists("courier:z:msg:retryable") {
		members, _ = mr.ZMembers("courier:z:msg:retryable")
		if len(members) != 0 {
			t.Fatalf("sent message still indexed: %v", members)
		}
	}
	if ok, _ := mr.SIsMember("courier:s:msg:status:failed", m.ID.String()); ok {
		t.Fatal("sent message still counted as failed")
	}
}

func TestPingAfterServerClose(t *testing.T) {
	s, mr := newStore(t)
	defer s.Close()

	if err := s.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
	mr.Close()
	if err := s.Ping(context.Background()); err == nil {
		t.Fatal("expected ping to fail once the server is gone")
	}
}
