package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	// redisBreakerDuration is how long the manager stays on the memory backend after a Redis error.
	redisBreakerDuration = 30 * time.Second
	redisPingTimeout     = 2 * time.Second
)

// SettingsProvider supplies the latest limiter settings.
type SettingsProvider func() SettingsConfig

// RedisClientFactory constructs a Redis client for the given options.
type RedisClientFactory func(options *redis.Options) *redis.Client

// Observer is notified of every limiter decision.
type Observer interface {
	ObserveLimiterDecision(backend string, allowed bool)
}

// redisTarget identifies the Redis instance a limiter is connected to.
type redisTarget struct {
	addr     string
	password string
	db       int
	prefix   string
}

func targetFrom(cfg SettingsConfig) (redisTarget, error) {
	if cfg.RedisAddr == "" {
		return redisTarget{}, errors.New("rate limit redis: missing address")
	}
	db := cfg.RedisDB
	if db < 0 {
		db = 0
	}
	return redisTarget{
		addr:     cfg.RedisAddr,
		password: cfg.RedisPassword,
		db:       db,
		prefix:   cfg.RedisPrefix,
	}, nil
}

// Manager throttles login attempts. It prefers Redis when configured so that
// replicas share one budget, and uses the in-process window while Redis is
// unreachable.
type Manager struct {
	provider       SettingsProvider
	nowFn          func() time.Time
	memory         Limiter
	newRedisClient RedisClientFactory
	observer       Observer

	mu           sync.Mutex
	redis        *RedisLimiter
	target       redisTarget
	breakerUntil time.Time
}

// NewManager constructs a Manager with default dependencies when nil.
func NewManager(provider SettingsProvider, nowFn func() time.Time, newRedisClient RedisClientFactory) *Manager {
	if provider == nil {
		provider = StaticSettings(SettingsConfig{})
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	if newRedisClient == nil {
		newRedisClient = redis.NewClient
	}
	return &Manager{
		provider:       provider,
		nowFn:          nowFn,
		memory:         NewMemoryLimiter(),
		newRedisClient: newRedisClient,
	}
}

// WithObserver attaches an observer and returns m.
func (m *Manager) WithObserver(observer Observer) *Manager {
	if m != nil {
		m.observer = observer
	}
	return m
}

// Allow counts one attempt for key against the configured budget.
func (m *Manager) Allow(ctx context.Context, key string) (Result, error) {
	if m == nil || key == "" {
		return Result{Allowed: true}, nil
	}
	cfg := m.provider()
	if cfg.Limit <= 0 {
		return Result{Allowed: true}, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := m.nowFn()

	if cfg.RedisEnabled {
		if result, ok := m.allowRedis(ctx, key, now, cfg); ok {
			m.observe(result)
			return result, nil
		}
	}
	result, errAllow := m.memory.Allow(ctx, key, cfg.Limit, cfg.Window, now)
	if errAllow != nil {
		return Result{}, errAllow
	}
	result.Backend = BackendMemory
	m.observe(result)
	return result, nil
}

// Close releases the Redis client, if any.
func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropRedisLocked()
}

func (m *Manager) observe(result Result) {
	if m.observer != nil {
		m.observer.ObserveLimiterDecision(result.Backend, result.Allowed)
	}
}

// allowRedis reports ok=false when the caller should fall back to memory.
func (m *Manager) allowRedis(ctx context.Context, key string, now time.Time, cfg SettingsConfig) (Result, bool) {
	if m.breakerOpen(now) {
		return Result{}, false
	}
	limiter, errConnect := m.connect(ctx, cfg)
	if errConnect != nil {
		m.openBreaker(errConnect, now)
		return Result{}, false
	}
	result, errAllow := limiter.Allow(ctx, key, cfg.Limit, cfg.Window, now)
	if errAllow != nil {
		m.openBreaker(errAllow, now)
		return Result{}, false
	}
	result.Backend = BackendRedis
	return result, true
}

func (m *Manager) breakerOpen(now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.breakerUntil.IsZero() {
		return false
	}
	if now.Before(m.breakerUntil) {
		return true
	}
	m.breakerUntil = time.Time{}
	log.Info("rate limit: retrying redis")
	return false
}

func (m *Manager) openBreaker(err error, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.breakerUntil.IsZero() && now.Before(m.breakerUntil) {
		return
	}
	m.breakerUntil = now.Add(redisBreakerDuration)
	_ = m.dropRedisLocked()
	log.WithError(err).WithField("retry_at", m.breakerUntil.Format(time.RFC3339)).
		Warn("rate limit: redis unavailable, using in-memory limiter")
}

// connect returns the limiter for cfg, dialling Redis when the target changed.
func (m *Manager) connect(ctx context.Context, cfg SettingsConfig) (*RedisLimiter, error) {
	target, errTarget := targetFrom(cfg)
	if errTarget != nil {
		return nil, errTarget
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redis != nil && m.target == target {
		return m.redis, nil
	}
	_ = m.dropRedisLocked()

	client := m.newRedisClient(&redis.Options{
		Addr:     target.addr,
		Password: target.password,
		DB:       target.db,
	})
	ctxPing, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if errPing := client.Ping(ctxPing).Err(); errPing != nil {
		_ = client.Close()
		return nil, errPing
	}
	m.redis = NewRedisLimiter(client, target.prefix)
	m.target = target
	return m.redis, nil
}

func (m *Manager) dropRedisLocked() error {
	if m.redis == nil {
		return nil
	}
	errClose := m.redis.client.Close()
	m.redis = nil
	m.target = redisTarget{}
	return errClose
}
