package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/synapseiq/secadmin/internal/config"
	"github.com/synapseiq/secadmin/internal/security"
	"github.com/synapseiq/secadmin/internal/store"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// ErrConfigExists is returned by WriteConfigFile when the target file is already present.
var ErrConfigExists = errors.New("config file already exists")

// ErrNotMigrated is returned by EnsureBootstrapAdmin when the schema is missing.
var ErrNotMigrated = errors.New("database is not migrated")

// ConfigExists reports whether the config file exists at the path.
func ConfigExists(configPath string) bool {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return false
	}
	return true
}

// configFile maps YAML fields for the generated config file.
type configFile struct {
	Host        string    `yaml:"host"`
	Port        int       `yaml:"port"`
	DatabaseDSN string    `yaml:"database-dsn"`
	JWT         jwtCfg    `yaml:"jwt"`
	Security    secCfg    `yaml:"security"`
	Logging     loggerCfg `yaml:"logging"`
}

// jwtCfg holds JWT settings for the generated config file.
type jwtCfg struct {
	Secret string `yaml:"secret"`
	Expiry string `yaml:"expiry"`
}

// secCfg holds login hardening settings for the generated config file.
type secCfg struct {
	LoginRateLimit  int    `yaml:"login-rate-limit"`
	LoginRateWindow string `yaml:"login-rate-window"`
}

type loggerCfg struct {
	Debug bool `yaml:"debug"`
	JSON  bool `yaml:"json"`
}

// generateJWTSecret creates a random JWT secret string.
func generateJWTSecret() string {
	secret, err := security.GenerateRandomString(32)
	if err != nil {
		return "change-me-to-a-secure-random-string"
	}
	return secret
}

// WriteConfigFile writes a starter config with a fresh JWT secret. An existing file is never overwritten.
func WriteConfigFile(configPath string, dsn string, port int) error {
	if ConfigExists(configPath) {
		return fmt.Errorf("%w: %s", ErrConfigExists, configPath)
	}
	if dsn == "" {
		dsn = config.DefaultSQLiteDSN
	}
	if port <= 0 {
		port = config.DefaultPort
	}
	cfg := configFile{
		Port:        port,
		DatabaseDSN: dsn,
		JWT: jwtCfg{
			Secret: generateJWTSecret(),
			Expiry: config.DefaultJWTExpiry.String(),
		},
		Security: secCfg{
			LoginRateLimit:  config.DefaultLoginRateLimit,
			LoginRateWindow: config.DefaultLoginRateWindow.String(),
		},
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(configPath)
	if errMkdir := os.MkdirAll(dir, 0755); errMkdir != nil {
		return fmt.Errorf("create config dir: %w", errMkdir)
	}

	if errWrite := os.WriteFile(configPath, data, 0600); errWrite != nil {
		return fmt.Errorf("write config file: %w", errWrite)
	}

	return nil
}

// EnsureBootstrapAdmin creates the configured admin account when no admin exists yet.
// It reports whether an account was created.
func EnsureBootstrapAdmin(ctx context.Context, conn *gorm.DB, cfg config.BootstrapConfig) (bool, error) {
	state, errState := LoadInitState(conn.WithContext(ctx))
	if errState != nil {
		return false, fmt.Errorf("check admin status: %w", errState)
	}
	if !state.Migrated {
		return false, ErrNotMigrated
	}
	if state.Admins > 0 {
		return false, nil
	}
	if errCreate := CreateAdminUserWithConn(ctx, conn, cfg.Username, cfg.Email, cfg.Password); errCreate != nil {
		return false, errCreate
	}
	entry := log.WithField("username", cfg.Username)
	if cfg.Password == config.DefaultBootstrapPassword {
		entry.Warn("created bootstrap admin with the default password; change it after the first login")
	} else {
		entry.Info("created bootstrap admin")
	}
	return true, nil
}

// CreateAdminUserWithConn creates an active admin account.
func CreateAdminUserWithConn(ctx context.Context, conn *gorm.DB, username, email, password string) error {
	if conn == nil {
		return fmt.Errorf("open database: nil connection")
	}
	if _, errCreate := store.New(conn).CreateUser(ctx, store.NewUser{
		Username: username,
		Email:    email,
		Password: password,
		IsAdmin:  true,
	}); errCreate != nil {
		return fmt.Errorf("create admin: %w", errCreate)
	}
	return nil
}
