package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		res, err := limiter.Allow(ctx, "k", 3, time.Minute, start.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("allow: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
		if res.Remaining != 2-i {
			t.Fatalf("attempt %d: expected remaining=%d, got %d", i+1, 2-i, res.Remaining)
		}
	}

	res, err := limiter.Allow(ctx, "k", 3, time.Minute, start.Add(30*time.Second))
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if res.Allowed {
		t.Fatalf("fourth attempt in the window must be rejected")
	}
	if !res.Reset.Equal(start.Add(time.Minute)) {
		t.Fatalf("expected reset at %s, got %s", start.Add(time.Minute), res.Reset)
	}

	other, err := limiter.Allow(ctx, "other", 3, time.Minute, start.Add(30*time.Second))
	if err != nil || !other.Allowed {
		t.Fatalf("other keys must have their own budget: %v %v", other, err)
	}

	next, err := limiter.Allow(ctx, "k", 3, time.Minute, start.Add(time.Minute))
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if !next.Allowed {
		t.Fatalf("next window must reset the budget")
	}
}

func TestMemoryLimiter_Unlimited(t *testing.T) {
	limiter := NewMemoryLimiter()
	for i := 0; i < 10; i++ {
		res, err := limiter.Allow(context.Background(), "k", 0, time.Minute, time.Now())
		if err != nil || !res.Allowed {
			t.Fatalf("limit 0 must allow everything")
		}
	}
	res, err := limiter.Allow(context.Background(), "", 1, time.Minute, time.Now())
	if err != nil || !res.Allowed {
		t.Fatalf("empty key must be allowed")
	}
}

func TestMemoryLimiter_Prunes(t *testing.T) {
	limiter := NewMemoryLimiter()
	ctx := context.Background()
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < memoryPruneThreshold; i++ {
		if _, err := limiter.Allow(ctx, fmt.Sprintf("k%d", i), 5, time.Minute, old); err != nil {
			t.Fatalf("allow: %v", err)
		}
	}
	if _, err := limiter.Allow(ctx, "fresh", 5, time.Minute, old.Add(time.Hour)); err != nil {
		t.Fatalf("allow: %v", err)
	}
	limiter.mu.Lock()
	size := len(limiter.counters)
	limiter.mu.Unlock()
	if size != 1 {
		t.Fatalf("expected stale windows to be pruned, %d counters left", size)
	}
}

func TestLoginKey(t *testing.T) {
	if got := LoginKey(" 10.0.0.1 ", " Admin "); got != "login:10.0.0.1:admin" {
		t.Fatalf("unexpected key %q", got)
	}
	if LoginKey("", "") != "" {
		t.Fatalf("expected empty key")
	}
}
