package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWaitEnforcesPerHostInterval(t *testing.T) {
	t.Parallel()

	// 10 RPS with burst 1: the second request on the same host waits
	// roughly 100ms for the next token.
	l := New(Config{PerHostRPS: 10, Burst: 1})
	ctx := context.Background()

	if err := l.Wait(ctx, "https://uconn.edu/a"); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := l.Wait(ctx, "https://uconn.edu/b"); err != nil {
		t.Fatal(err)
	}
	if dur := time.Since(start); dur < 80*time.Millisecond {
		t.Errorf("expected wait ~100ms, got %v", dur)
	}
}

func TestWaitDoesNotCoupleHosts(t *testing.T) {
	t.Parallel()

	l := New(Config{PerHostRPS: 1, Burst: 1})
	ctx := context.Background()

	if err := l.Wait(ctx, "https://a.example.com/1"); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := l.Wait(ctx, "https://b.example.com/1"); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Error("second host blocked by first host's bucket")
	}
}

func TestWaitUnlimitedByDefault(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := l.Wait(ctx, "https://uconn.edu/page"); err != nil {
			t.Fatal(err)
		}
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Error("zero-RPS config should not throttle")
	}
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	l := New(Config{PerHostRPS: 0.1, Burst: 1})
	ctx, cancel := context.WithCancel(context.Background())
	if err := l.Wait(ctx, "https://uconn.edu"); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := l.Wait(ctx, "https://uconn.edu"); err == nil {
		t.Fatal("expected error after cancel")
	}
}
