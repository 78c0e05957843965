package ratelimit

import (
	"strings"
	"time"

	"github.com/synapseiq/secadmin/internal/config"
)

// SettingsConfig captures the login limiter settings.
type SettingsConfig struct {
	Limit         int
	Window        time.Duration
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// SettingsFromConfig converts the security section of the config file.
func SettingsFromConfig(cfg config.SecurityConfig) SettingsConfig {
	out := SettingsConfig{
		Limit:         cfg.LoginRateLimit,
		Window:        cfg.LoginRateWindow,
		RedisEnabled:  cfg.Redis.Enable,
		RedisAddr:     strings.TrimSpace(cfg.Redis.Addr),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		RedisPrefix:   strings.TrimSpace(cfg.Redis.Prefix),
	}
	if out.Limit < 0 {
		out.Limit = 0
	}
	if out.Window <= 0 {
		out.Window = config.DefaultLoginRateWindow
	}
	if out.RedisPrefix == "" {
		out.RedisPrefix = config.DefaultRedisPrefix
	}
	if out.RedisDB < 0 {
		out.RedisDB = 0
	}
	return out
}

// StaticSettings returns a provider that always yields cfg.
func StaticSettings(cfg SettingsConfig) SettingsProvider {
	return func() SettingsConfig { return cfg }
}
