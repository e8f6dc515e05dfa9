package delivery_test

import (
	"testing"
	"time"

	"github.com/xraph/courier/delivery"
)

func TestBackoffSchedule(t *testing.T) {
	b := delivery.Backoff{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     2000 * time.Millisecond,
		Multiplier:   2,
		MaxAttempts:  5,
	}

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
	}
	got := b.Schedule()
	if len(got) != len(want) {
		t.Fatalf("schedule has %d waits, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("wait %d = %s, want %s", i, got[i], want[i])
		}
	}

	// The formula continues to 1600ms for n=4 even though a 5-attempt cycle
	// never waits that long.
	long := b
	long.MaxAttempts = 6
	if d := long.Delay(4); d != 1600*time.Millisecond {
		t.Errorf("Delay(4) = %s, want 1600ms", d)
	}
}

func TestBackoffCappedAtMax(t *testing.T) {
	b := delivery.Backoff{
		InitialDelay: time.Second,
		MaxDelay:     3 * time.Second,
		Multiplier:   2,
		MaxAttempts:  6,
	}
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second, 3 * time.Second}
	for i, d := range b.Schedule() {
		if d != want[i] {
			t.Errorf("wait %d = %s, want %s", i, d, want[i])
		}
	}

	// Initial delay above the cap is capped too.
	over := delivery.Backoff{InitialDelay: 5 * time.Second, MaxDelay: 5 * time.Second, Multiplier: 3, MaxAttempts: 3}
	for i, d := range over.Schedule() {
		if d != 5*time.Second {
			t.Errorf("wait %d = %s, want 5s", i, d)
		}
	}
}

func TestBackoffSingleAttemptHasNoWaits(t *testing.T) {
	b := delivery.DefaultBackoff()
	b.MaxAttempts = 1
	if s := b.Schedule(); len(s) != 0 {
		t.Fatalf("schedule = %v", s)
	}
	if d := b.Delay(0); d != 0 {
		t.Fatalf("Delay(0) = %s", d)
	}
}

func TestJitterBounds(t *testing.T) {
	for _, d := range []time.Duration{0, time.Nanosecond, 100 * time.Millisecond, 1600 * time.Millisecond} {
		for range 1000 {
			j := delivery.Jitter(d)
			if j < 0 || j > d {
				t.Fatalf("Jitter(%s) = %s out of [0, %s]", d, j, d)
			}
		}
	}
}

func TestBackoffValidate(t *testing.T) {
	if err := delivery.DefaultBackoff().Validate(); err != nil {
		t.Fatalf("default backoff invalid: %v", err)
	}

	bad := []delivery.Backoff{
		{InitialDelay: time.Second, MaxDelay: time.Second, Multiplier: 2, MaxAttempts: 0},
		{InitialDelay: 0, MaxDelay: time.Second, Multiplier: 2, MaxAttempts: 3},
		{InitialDelay: time.Second, MaxDelay: time.Millisecond, Multiplier: 2, MaxAttempts: 3},
		{InitialDelay: time.Second, MaxDelay: time.Minute, Multiplier: 0.5, MaxAttempts: 3},
	}
	for i, b := range bad {
		if err := b.Validate(); err == nil {
			t.Errorf("case %d: expected error for %+v", i, b)
		}
	}
}
