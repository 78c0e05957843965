package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/synapseiq/secadmin/internal/config"
	"github.com/synapseiq/secadmin/internal/db"
	"github.com/synapseiq/secadmin/internal/models"
	"github.com/synapseiq/secadmin/internal/security"
)

func TestEnsureBootstrapAdmin(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "secadmin-test.db")
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	cfg := config.BootstrapConfig{
		Username: config.DefaultBootstrapUsername,
		Email:    config.DefaultBootstrapEmail,
		Password: config.DefaultBootstrapPassword,
	}
	created, err := EnsureBootstrapAdmin(context.Background(), conn, cfg)
	if err != nil {
		t.Fatalf("EnsureBootstrapAdmin: %v", err)
	}
	if !created {
		t.Fatalf("expected admin to be created on an empty database")
	}

	var admin models.User
	if errFind := conn.First(&admin).Error; errFind != nil {
		t.Fatalf("find admin: %v", errFind)
	}
	if !admin.IsAdmin || !admin.IsActive {
		t.Fatalf("expected an active admin, got %#v", admin)
	}
	if admin.PasswordHash == cfg.Password || !security.CheckPassword(admin.PasswordHash, cfg.Password) {
		t.Fatalf("expected a verifiable digest, got %q", admin.PasswordHash)
	}

	created, err = EnsureBootstrapAdmin(context.Background(), conn, cfg)
	if err != nil {
		t.Fatalf("second EnsureBootstrapAdmin: %v", err)
	}
	if created {
		t.Fatalf("expected bootstrap to be skipped once an admin exists")
	}
}

func TestEnsureBootstrapAdmin_RequiresMigration(t *testing.T) {
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "secadmin-empty.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	created, err := EnsureBootstrapAdmin(context.Background(), conn, config.BootstrapConfig{
		Username: "admin",
		Email:    "admin@example.com",
		Password: "password1",
	})
	if !errors.Is(err, ErrNotMigrated) || created {
		t.Fatalf("expected ErrNotMigrated, got created=%v err=%v", created, err)
	}
}

func TestWriteConfigFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "conf", "config.yaml")
	if err := WriteConfigFile(configPath, "", 0); err != nil {
		t.Fatalf("WriteConfigFile: %v", err)
	}
	t.Setenv("JWT_SECRET", "")
	t.Setenv("JWT_SECRET_KEY", "")
	t.Setenv("JWT_EXPIRY", "")
	t.Setenv("DB_CONNECTION", "")

	jwtCfg, err := config.LoadJWTConfig(configPath)
	if err != nil {
		t.Fatalf("LoadJWTConfig: %v", err)
	}
	if jwtCfg.Secret == "" || jwtCfg.Expiry != config.DefaultJWTExpiry {
		t.Fatalf("unexpected jwt config: %#v", jwtCfg)
	}
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		t.Fatalf("LoadDatabaseDSN: %v", err)
	}
	if dsn != config.DefaultSQLiteDSN {
		t.Fatalf("expected default dsn, got %q", dsn)
	}

	if err := WriteConfigFile(configPath, "", 0); !errors.Is(err, ErrConfigExists) {
		t.Fatalf("expected ErrConfigExists, got %v", err)
	}
}
