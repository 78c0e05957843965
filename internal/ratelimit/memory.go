package ratelimit

import (
	"context"
	"sync"
	"time"
)

// memoryPruneThreshold triggers removal of expired windows.
const memoryPruneThreshold = 4096

type memoryEntry struct {
	window int64
	count  int
}

// MemoryLimiter implements a fixed-window in-memory rate limiter.
type MemoryLimiter struct {
	mu       sync.Mutex
	counters map[string]*memoryEntry
}

// NewMemoryLimiter constructs a MemoryLimiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		counters: make(map[string]*memoryEntry),
	}
}

// Allow checks whether the request should be allowed in the current window.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error) {
	if limit <= 0 || key == "" {
		return Result{Allowed: true}, nil
	}
	current, reset := windowStart(now, window)

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.counters[key]
	if entry == nil {
		if len(l.counters) >= memoryPruneThreshold {
			l.pruneLocked(current)
		}
		entry = &memoryEntry{window: current}
		l.counters[key] = entry
	}
	if entry.window != current {
		entry.window = current
		entry.count = 0
	}
	if entry.count >= limit {
		return Result{Allowed: false, Remaining: 0, Reset: reset}, nil
	}
	entry.count++
	return Result{Allowed: true, Remaining: limit - entry.count, Reset: reset}, nil
}

// pruneLocked drops counters from past windows. l.mu must be held.
func (l *MemoryLimiter) pruneLocked(current int64) {
	for key, entry := range l.counters {
		if entry.window != current {
			delete(l.counters, key)
		}
	}
}
