package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/synapseiq/secadmin/internal/db"
	"github.com/synapseiq/secadmin/internal/errs"
	"github.com/synapseiq/secadmin/internal/models"
	"github.com/synapseiq/secadmin/internal/security"
	internalsettings "github.com/synapseiq/secadmin/internal/settings"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) (*Store, *gorm.DB) {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "store-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return New(conn), conn
}

func mustCreateUser(t *testing.T, s *Store, username, password string) models.User {
	t.Helper()
	user, err := s.CreateUser(context.Background(), NewUser{
		Username: username,
		Email:    username + "@example.com",
		Password: password,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

func TestAuthenticate(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	created := mustCreateUser(t, s, "alice", "correct-horse")

	user, err := s.Authenticate(ctx, "alice", "correct-horse")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("expected user %d, got %d", created.ID, user.ID)
	}

	_, errWrong := s.Authenticate(ctx, "alice", "wrong-password")
	_, errUnknown := s.Authenticate(ctx, "mallory", "correct-horse")
	if !errors.Is(errWrong, errs.ErrUnauthenticated) || !errors.Is(errUnknown, errs.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for both, got %v / %v", errWrong, errUnknown)
	}
	if errWrong.Error() != errUnknown.Error() {
		t.Fatalf("failure messages must not reveal whether the user exists: %q vs %q", errWrong, errUnknown)
	}
}

func TestAuthenticate_InactiveUser(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	created := mustCreateUser(t, s, "bob", "password1")
	inactive := false
	if _, err := s.UpdateUser(ctx, created.ID, UserUpdate{IsActive: &inactive}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	if _, err := s.Authenticate(ctx, "bob", "password1"); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for inactive user, got %v", err)
	}
	if _, err := s.Authenticate(ctx, "bob", "nope-nope"); !errors.Is(err, errs.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for wrong password, got %v", err)
	}
}

func TestRecordLogin_UpgradesLegacyDigest(t *testing.T) {
	s, conn := newTestStore(t)
	ctx := context.Background()
	sum := sha256.Sum256([]byte("admin123"))
	legacy := models.User{
		Username:     "legacy",
		Email:        "legacy@example.com",
		PasswordHash: hex.EncodeToString(sum[:]),
		IsActive:     true,
	}
	if errCreate := conn.Create(&legacy).Error; errCreate != nil {
		t.Fatalf("create legacy user: %v", errCreate)
	}

	user, err := s.Authenticate(ctx, "legacy", "admin123")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	at := time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)
	if errRecord := s.RecordLogin(ctx, user, "admin123", at); errRecord != nil {
		t.Fatalf("record login: %v", errRecord)
	}

	reloaded, err := s.FindUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.LastLogin == nil || !reloaded.LastLogin.Equal(at) {
		t.Fatalf("expected last_login=%s, got %v", at, reloaded.LastLogin)
	}
	if security.NeedsRehash(reloaded.PasswordHash) {
		t.Fatalf("expected digest to be upgraded, got %q", reloaded.PasswordHash)
	}
	if !security.CheckPassword(reloaded.PasswordHash, "admin123") {
		t.Fatalf("upgraded digest must still verify")
	}
}

func TestChangePassword(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	user := mustCreateUser(t, s, "carol", "old-password")

	if err := s.ChangePassword(ctx, user.ID, "not-it", "new-password"); !errors.Is(err, errs.ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}
	if err := s.ChangePassword(ctx, user.ID, "old-password", "123"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected ErrValidation for short password, got %v", err)
	}
	if err := s.ChangePassword(ctx, user.ID, "old-password", "new-password"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, err := s.Authenticate(ctx, "carol", "old-password"); !errors.Is(err, errs.ErrUnauthenticated) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, err := s.Authenticate(ctx, "carol", "new-password"); err != nil {
		t.Fatalf("new password must work, got %v", err)
	}
	if err := s.ChangePassword(ctx, 9999, "x", "new-password"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown user, got %v", err)
	}
}

func TestCreateUser_Conflicts(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	mustCreateUser(t, s, "dave", "password1")

	_, errUsername := s.CreateUser(ctx, NewUser{Username: "dave", Email: "dave2@example.com", Password: "password1"})
	if !errors.Is(errUsername, errs.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate username, got %v", errUsername)
	}
	_, errEmail := s.CreateUser(ctx, NewUser{Username: "dave2", Email: "dave@example.com", Password: "password1"})
	if !errors.Is(errEmail, errs.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", errEmail)
	}
	_, errInvalid := s.CreateUser(ctx, NewUser{Username: "eve", Email: "not-an-email", Password: "password1"})
	if !errors.Is(errInvalid, errs.ErrValidation) {
		t.Fatalf("expected ErrValidation for bad email, got %v", errInvalid)
	}
	_, errLong := s.CreateUser(ctx, NewUser{Username: "eve", Email: "eve@example.com", Password: strings.Repeat("x", 80)})
	if !errors.Is(errLong, errs.ErrValidation) {
		t.Fatalf("expected ErrValidation for long password, got %v", errLong)
	}
}

func TestUpdateUser_OptionalFields(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	user := mustCreateUser(t, s, "frank", "password1")
	mustCreateUser(t, s, "grace", "password1")

	if _, err := s.UpdateUser(ctx, user.ID, UserUpdate{}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected ErrValidation for empty update, got %v", err)
	}

	admin := true
	updated, err := s.UpdateUser(ctx, user.ID, UserUpdate{IsAdmin: &admin})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.IsAdmin || !updated.IsActive || updated.Email != "frank@example.com" {
		t.Fatalf("only is_admin should change: %#v", updated)
	}

	taken := "grace@example.com"
	if _, err := s.UpdateUser(ctx, user.ID, UserUpdate{Email: &taken}); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("expected ErrConflict for taken email, got %v", err)
	}
	if _, err := s.UpdateUser(ctx, 9999, UserUpdate{IsAdmin: &admin}); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSettings(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	rows, err := s.ListSettings(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 settings, got %d", len(rows))
	}

	enabled := true
	before, err := s.GetSetting(ctx, internalsettings.TwoFactorID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	s.now = func() time.Time { return before.LastUpdated.Add(time.Hour) }
	updated, err := s.UpdateSetting(ctx, internalsettings.TwoFactorID, SettingUpdate{Enabled: &enabled})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Enabled || !updated.LastUpdated.After(before.LastUpdated) {
		t.Fatalf("expected enabled with newer timestamp: %#v", updated)
	}
	on, err := s.SettingEnabled(ctx, internalsettings.TwoFactorID)
	if err != nil || !on {
		t.Fatalf("expected setting enabled, got %v / %v", on, err)
	}

	if _, err := s.UpdateSetting(ctx, "does-not-exist", SettingUpdate{Enabled: &enabled}); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := s.UpdateSetting(ctx, internalsettings.TwoFactorID, SettingUpdate{}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestTOTPEnrollment(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	user := mustCreateUser(t, s, "heidi", "password1")

	if err := s.ConfirmTOTP(ctx, user.ID, "SECRET"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected ErrValidation without pending secret, got %v", err)
	}
	if err := s.BeginTOTP(ctx, user.ID, "SECRET"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := s.ConfirmTOTP(ctx, user.ID, "SECRET"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	reloaded, err := s.FindUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.HasTOTP() || reloaded.TOTPPendingSecret != "" {
		t.Fatalf("expected active secret and no pending secret: %#v", reloaded)
	}
}

func TestTOTPReset(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	user := mustCreateUser(t, s, "ivan", "password1")
	if err := s.BeginTOTP(ctx, user.ID, "SECRET"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := s.ConfirmTOTP(ctx, user.ID, "SECRET"); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	reset := true
	updated, err := s.UpdateUser(ctx, user.ID, UserUpdate{ResetTOTP: &reset})
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if updated.HasTOTP() || updated.TOTPPendingSecret != "" {
		t.Fatalf("expected authenticator removed: %#v", updated)
	}

	keep := false
	if _, err := s.UpdateUser(ctx, user.ID, UserUpdate{ResetTOTP: &keep}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected ErrValidation for a no-op reset, got %v", err)
	}

	if err := s.BeginTOTP(ctx, user.ID, "OTHER"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := s.ConfirmTOTP(ctx, user.ID, "OTHER"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if err := s.DisableTOTP(ctx, user.ID); err != nil {
		t.Fatalf("disable: %v", err)
	}
	reloaded, err := s.FindUserByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.HasTOTP() {
		t.Fatalf("expected authenticator disabled")
	}
	if err := s.DisableTOTP(ctx, 9999); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
