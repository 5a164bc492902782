package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*miniredis.Miniredis, *Limiter) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	if cfg.Prefix == "" {
		cfg.Prefix = "test"
	}
	return mr, New(rdb, cfg)
}

func TestLimiterBlocksAfterMaxAttempts(t *testing.T) {
	mr, l := newTestLimiter(t, Config{MaxAttempts: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := l.Check(ctx, "ann", ""); err != nil {
			t.Fatalf("attempt %d: unexpected %v", i, err)
		}
		if err := l.Fail(ctx, "ann", ""); err != nil {
			t.Fatalf("Fail: %v", err)
		}
	}
	if err := l.Check(ctx, "ann", ""); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if err := l.Check(ctx, "bob", ""); err != nil {
		t.Fatalf("other users must not be throttled: %v", err)
	}
	if n, _ := l.Attempts(ctx, "ann"); n != 3 {
		t.Fatalf("expected 3 attempts, got %d", n)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.Check(ctx, "ann", ""); err != nil {
		t.Fatalf("window should have expired: %v", err)
	}
}

func TestLimiterWindowStartsOnFirstFailure(t *testing.T) {
	mr, l := newTestLimiter(t, Config{MaxAttempts: 5, Window: time.Minute})
	ctx := context.Background()

	_ = l.Fail(ctx, "ann", "")
	mr.FastForward(30 * time.Second)
	_ = l.Fail(ctx, "ann", "")

	if ttl := mr.TTL("test:login:u:ann"); ttl != 30*time.Second {
		t.Fatalf("later failures must not extend the window, ttl=%s", ttl)
	}
}

func TestLimiterPerIP(t *testing.T) {
	_, l := newTestLimiter(t, Config{MaxAttempts: 2, Window: time.Minute, PerIP: true})
	ctx := context.Background()

	_ = l.Fail(ctx, "ann", "10.0.0.1")
	_ = l.Fail(ctx, "bob", "10.0.0.1")

	if err := l.Check(ctx, "carol", "10.0.0.1"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected IP throttle, got %v", err)
	}
	if err := l.Check(ctx, "carol", "10.0.0.2"); err != nil {
		t.Fatalf("other IPs must pass: %v", err)
	}
}

func TestLimiterReset(t *testing.T) {
	_, l := newTestLimiter(t, Config{MaxAttempts: 1, Window: time.Minute, PerIP: true})
	ctx := context.Background()

	_ = l.Fail(ctx, "ann", "10.0.0.1")
	if err := l.Reset(ctx, "ann", "10.0.0.1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := l.Check(ctx, "ann", "10.0.0.1"); err != nil {
		t.Fatalf("expected counters cleared, got %v", err)
	}
}

func TestLimiterRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	l := New(rdb, Config{Prefix: "test", MaxAttempts: 1, Window: time.Minute})
	if err := l.Check(context.Background(), "ann", ""); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
