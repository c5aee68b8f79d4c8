package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, capacity int, refill float64) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return New(client, capacity, refill), mr
}

func TestLimiterCapacity(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, 2, 0.5)

	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "10.0.0.1")
		if err != nil || !d.Allowed {
			t.Fatalf("request %d: expected allowed got %+v err=%v", i+1, d, err)
		}
	}
	d, err := l.Allow(ctx, "10.0.0.1")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if d.Allowed {
		t.Fatalf("expected third request to be rejected")
	}
	if d.RetryAfter != 2*time.Second {
		t.Fatalf("expected retry after 2s at 0.5 tokens/s, got %s", d.RetryAfter)
	}
}

func TestLimiterSubjectsAreIndependent(t *testing.T) {
	ctx := context.Background()
	l, mr := newTestLimiter(t, 1, 0.1)

	if d, _ := l.Allow(ctx, "a"); !d.Allowed {
		t.Fatalf("expected a allowed")
	}
	if d, _ := l.Allow(ctx, "b"); !d.Allowed {
		t.Fatalf("expected b allowed independently of a")
	}
	if !mr.Exists(l.Key("a")) || !mr.Exists(l.Key("b")) {
		t.Fatalf("expected buckets under %q", defaultPrefix)
	}
	if ttl := mr.TTL(l.Key("a")); ttl <= 0 {
		t.Fatalf("expected bucket expiry, got %s", ttl)
	}
}

func TestLimiterRefill(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLimiter(t, 1, 1)
	clock := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return clock }

	if d, _ := l.Allow(ctx, "ip"); !d.Allowed {
		t.Fatalf("expected first request allowed")
	}
	if d, _ := l.Allow(ctx, "ip"); d.Allowed {
		t.Fatalf("expected bucket empty")
	}

	clock = clock.Add(1500 * time.Millisecond)
	d, err := l.Allow(ctx, "ip")
	if err != nil || !d.Allowed {
		t.Fatalf("expected refill after 1.5s, got %+v err=%v", d, err)
	}
}

func TestLimiterRedisDown(t *testing.T) {
	l, mr := newTestLimiter(t, 1, 1)
	mr.Close()

	if _, err := l.Allow(context.Background(), "ip"); err == nil {
		t.Fatalf("expected error when redis is unavailable")
	}
}
