package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath        = "CONFIG_PATH"
	EnvDBConnection      = "DB_CONNECTION"
	EnvJWTSecret         = "JWT_SECRET"
	EnvLegacyJWTSecret   = "JWT_SECRET_KEY"
	EnvJWTExpiry         = "JWT_EXPIRY"
	EnvRedisAddr         = "REDIS_ADDR"
	EnvBootstrapPassword = "BOOTSTRAP_ADMIN_PASSWORD"
)

// DefaultSQLiteDSN is used when neither the config file nor the environment names a database.
const DefaultSQLiteDSN = "file:secadmin.db"

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrInvalidConfig indicates the config file exists but cannot be used.
var ErrInvalidConfig = errors.New("invalid config file")

// readFile loads and parses the YAML file into out. A missing file is not an error.
func readFile(configPath string, out any) error {
	data, errRead := os.ReadFile(configPath)
	if errRead != nil {
		if errors.Is(errRead, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file: %w", errRead)
	}
	if errUnmarshal := yaml.Unmarshal(data, out); errUnmarshal != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, errUnmarshal)
	}
	return nil
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DefaultPort is the listener port used when the config omits one.
const DefaultPort = 8000

// LoadServerConfig reads the listener settings.
func LoadServerConfig(configPath string) (ServerConfig, error) {
	cfg := ServerConfig{}
	if errRead := readFile(configPath, &cfg); errRead != nil {
		return ServerConfig{}, errRead
	}
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Port <= 0 || cfg.Port > 65535 {
		cfg.Port = DefaultPort
	}
	return cfg, nil
}

// LoadDatabaseDSN reads the database DSN from the environment or the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	var cfg fileConfig
	if errRead := readFile(configPath, &cfg); errRead != nil {
		return "", errRead
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return DefaultSQLiteDSN, nil
}

// JWTConfig holds the token signing secret and lifetime.
// It is read once at startup and passed by value to the token issuer.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// DefaultJWTExpiry is the fixed bearer token lifetime.
const DefaultJWTExpiry = 30 * time.Minute

// LoadJWTConfig loads JWT settings from the YAML config file and environment.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	// fileConfig maps the YAML fields needed for JWT settings.
	type fileConfig struct {
		JWT JWTConfig `yaml:"jwt"`
	}

	var cfg fileConfig
	if errRead := readFile(configPath, &cfg); errRead != nil {
		return JWTConfig{}, errRead
	}
	result := cfg.JWT

	if secret := strings.TrimSpace(os.Getenv(EnvLegacyJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	result.Secret = strings.TrimSpace(result.Secret)
	if result.Expiry <= 0 {
		result.Expiry = DefaultJWTExpiry
	}
	return result, nil
}

// RedisConfig describes the optional Redis backend for the login limiter.
type RedisConfig struct {
	Enable   bool   `yaml:"enable"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// SecurityConfig holds login hardening options.
type SecurityConfig struct {
	LoginRateLimit  int           // Attempts per client per window; 0 disables.
	LoginRateWindow time.Duration // Fixed window length.
	AllowedNetworks []string      // CIDRs or bare IPs enforced when ip-restriction is on.
	TrustProxy      bool          // Honour X-Forwarded-For.
	Redis           RedisConfig
}

const (
	// DefaultLoginRateLimit is the number of login attempts allowed per client per window.
	DefaultLoginRateLimit = 10
	// DefaultLoginRateWindow is the fixed window for login attempts.
	DefaultLoginRateWindow = time.Minute
	// DefaultRedisPrefix namespaces limiter keys in Redis.
	DefaultRedisPrefix = "secadmin:rl"
)

// LoadSecurityConfig reads login hardening and Redis limiter settings.
func LoadSecurityConfig(configPath string) (SecurityConfig, error) {
	// fileConfig maps the YAML fields needed for security settings.
	type fileConfig struct {
		Security struct {
			LoginRateLimit  *int          `yaml:"login-rate-limit"`
			LoginRateWindow time.Duration `yaml:"login-rate-window"`
			AllowedNetworks []string      `yaml:"allowed-networks"`
			TrustProxy      bool          `yaml:"trust-proxy"`
		} `yaml:"security"`
		Redis RedisConfig `yaml:"redis"`
	}

	var cfg fileConfig
	if errRead := readFile(configPath, &cfg); errRead != nil {
		return SecurityConfig{}, errRead
	}
	result := SecurityConfig{
		LoginRateLimit:  DefaultLoginRateLimit,
		LoginRateWindow: cfg.Security.LoginRateWindow,
		AllowedNetworks: cfg.Security.AllowedNetworks,
		TrustProxy:      cfg.Security.TrustProxy,
		Redis:           cfg.Redis,
	}
	if cfg.Security.LoginRateLimit != nil {
		result.LoginRateLimit = *cfg.Security.LoginRateLimit
	}

	if addr := strings.TrimSpace(os.Getenv(EnvRedisAddr)); addr != "" {
		result.Redis.Addr = addr
		result.Redis.Enable = true
	}
	result.Redis.Addr = strings.TrimSpace(result.Redis.Addr)
	result.Redis.Prefix = strings.TrimSpace(result.Redis.Prefix)
	if result.Redis.Prefix == "" {
		result.Redis.Prefix = DefaultRedisPrefix
	}
	if result.Redis.DB < 0 {
		result.Redis.DB = 0
	}
	if result.LoginRateLimit < 0 {
		result.LoginRateLimit = 0
	}
	if result.LoginRateWindow <= 0 {
		result.LoginRateWindow = DefaultLoginRateWindow
	}

	networks := make([]string, 0, len(result.AllowedNetworks))
	for _, raw := range result.AllowedNetworks {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if _, _, errCIDR := net.ParseCIDR(trimmed); errCIDR != nil {
			if net.ParseIP(trimmed) == nil {
				return SecurityConfig{}, fmt.Errorf("%w: allowed-networks entry %q", ErrInvalidConfig, trimmed)
			}
		}
		networks = append(networks, trimmed)
	}
	result.AllowedNetworks = networks
	return result, nil
}

// BootstrapConfig names the admin account created on an empty database.
type BootstrapConfig struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

// Bootstrap defaults mirror the dashboard's documented first-run account.
const (
	DefaultBootstrapUsername = "admin"
	DefaultBootstrapEmail    = "admin@synapseiq.com"
	DefaultBootstrapPassword = "admin123"
)

// LoadBootstrapConfig reads the first-run admin account.
func LoadBootstrapConfig(configPath string) (BootstrapConfig, error) {
	type fileConfig struct {
		Bootstrap BootstrapConfig `yaml:"bootstrap"`
	}

	var cfg fileConfig
	if errRead := readFile(configPath, &cfg); errRead != nil {
		return BootstrapConfig{}, errRead
	}
	result := cfg.Bootstrap
	if password := os.Getenv(EnvBootstrapPassword); password != "" {
		result.Password = password
	}
	result.Username = strings.TrimSpace(result.Username)
	result.Email = strings.TrimSpace(result.Email)
	if result.Username == "" {
		result.Username = DefaultBootstrapUsername
	}
	if result.Email == "" {
		result.Email = DefaultBootstrapEmail
	}
	if result.Password == "" {
		result.Password = DefaultBootstrapPassword
	}
	return result, nil
}

// LoggingConfig toggles log verbosity and format.
type LoggingConfig struct {
	Debug bool `yaml:"debug"`
	JSON  bool `yaml:"json"`
}

// LoadLoggingConfig reads the logging section.
func LoadLoggingConfig(configPath string) (LoggingConfig, error) {
	type fileConfig struct {
		Logging LoggingConfig `yaml:"logging"`
	}

	var cfg fileConfig
	if errRead := readFile(configPath, &cfg); errRead != nil {
		return LoggingConfig{}, errRead
	}
	return cfg.Logging, nil
}
