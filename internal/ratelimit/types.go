package ratelimit

import (
	"context"
	"time"
)

// Backends reported in Result.Backend.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Result describes the outcome of a rate limit check.
type Result struct {
	Allowed   bool
	Remaining int
	Reset     time.Time
	Backend   string // Which limiter decided; empty when limiting is off.
}

// Limiter provides fixed-window rate limit checks.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration, now time.Time) (Result, error)
}

// windowStart returns the index of the fixed window containing now and the time it resets.
func windowStart(now time.Time, window time.Duration) (int64, time.Time) {
	if window <= 0 {
		window = time.Second
	}
	index := now.UnixNano() / int64(window)
	reset := time.Unix(0, (index+1)*int64(window)).UTC()
	return index, reset
}
