// Package store persists operator accounts and the security settings catalog.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/synapseiq/secadmin/internal/db"
	"github.com/synapseiq/secadmin/internal/errs"
	"github.com/synapseiq/secadmin/internal/models"
	"github.com/synapseiq/secadmin/internal/security"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MinPasswordLength is the shortest password accepted for new credentials.
const MinPasswordLength = 6

// Store is the gorm-backed credential store.
type Store struct {
	db  *gorm.DB
	now func() time.Time

	dummyOnce   sync.Once
	dummyDigest string
}

// New constructs a Store.
func New(conn *gorm.DB) *Store {
	return &Store{db: conn, now: time.Now}
}

// ValidatePassword checks a new password against the length rules.
func ValidatePassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("password is required: %w", errs.ErrValidation)
	}
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters: %w", MinPasswordLength, errs.ErrValidation)
	}
	if len(password) > security.MaxPasswordBytes {
		return fmt.Errorf("password must be at most %d bytes: %w", security.MaxPasswordBytes, errs.ErrValidation)
	}
	return nil
}

// Authenticate verifies username and password.
// Unknown users and wrong passwords fail with the same error; a dummy comparison keeps timing similar.
func (s *Store) Authenticate(ctx context.Context, username, password string) (models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return models.User{}, fmt.Errorf("missing credentials: %w", errs.ErrUnauthenticated)
	}

	user, errFind := s.FindUserByUsername(ctx, username)
	if errFind != nil {
		if errors.Is(errFind, errs.ErrNotFound) {
			security.CheckPassword(s.dummyHash(), password)
			return models.User{}, fmt.Errorf("incorrect username or password: %w", errs.ErrUnauthenticated)
		}
		return models.User{}, errFind
	}
	if !security.CheckPassword(user.PasswordHash, password) {
		return models.User{}, fmt.Errorf("incorrect username or password: %w", errs.ErrUnauthenticated)
	}
	if !user.IsActive {
		return user, fmt.Errorf("inactive user: %w", errs.ErrForbidden)
	}
	return user, nil
}

func (s *Store) dummyHash() string {
	s.dummyOnce.Do(func() {
		random, err := security.GenerateRandomString(16)
		if err != nil {
			random = "secadmin-dummy-password"
		}
		digest, err := security.HashPassword(random)
		if err == nil {
			s.dummyDigest = digest
		}
	})
	return s.dummyDigest
}

// RecordLogin stamps last_login and upgrades a legacy password digest to bcrypt.
func (s *Store) RecordLogin(ctx context.Context, user models.User, password string, at time.Time) error {
	updates := map[string]any{"last_login": at.UTC()}
	if security.NeedsRehash(user.PasswordHash) {
		if digest, errHash := security.HashPassword(password); errHash == nil {
			updates["password_hash"] = digest
		}
	}
	if errUpdate := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", user.ID).
		Updates(updates).Error; errUpdate != nil {
		return fmt.Errorf("store: record login: %w", errUpdate)
	}
	return nil
}

// FindUserByUsername loads a user by login name.
func (s *Store) FindUserByUsername(ctx context.Context, username string) (models.User, error) {
	var user models.User
	errFind := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.User{}, fmt.Errorf("user %q: %w", username, errs.ErrNotFound)
		}
		return models.User{}, fmt.Errorf("store: find user: %w", errFind)
	}
	return user, nil
}

// FindUserByID loads a user by id.
func (s *Store) FindUserByID(ctx context.Context, id uint64) (models.User, error) {
	var user models.User
	if errFind := s.db.WithContext(ctx).First(&user, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.User{}, fmt.Errorf("user %d: %w", id, errs.ErrNotFound)
		}
		return models.User{}, fmt.Errorf("store: find user: %w", errFind)
	}
	return user, nil
}

// ChangePassword replaces the password after re-verifying the current one.
// The user row is locked for the duration of the check and write.
func (s *Store) ChangePassword(ctx context.Context, userID uint64, current, next string) error {
	if errValidate := ValidatePassword(next); errValidate != nil {
		return errValidate
	}
	digest, errHash := security.HashPassword(next)
	if errHash != nil {
		return fmt.Errorf("store: hash password: %w", errHash)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, userID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return fmt.Errorf("user %d: %w", userID, errs.ErrNotFound)
			}
			return fmt.Errorf("store: lock user: %w", errFind)
		}
		if !security.CheckPassword(user.PasswordHash, current) {
			return fmt.Errorf("current password is incorrect: %w", errs.ErrInvalidCredential)
		}
		if errUpdate := tx.Model(&models.User{}).Where("id = ?", userID).
			Update("password_hash", digest).Error; errUpdate != nil {
			return fmt.Errorf("store: update password: %w", errUpdate)
		}
		return nil
	})
}

// NewUser carries the fields for creating an account.
type NewUser struct {
	Username string
	Email    string
	Password string
	IsAdmin  bool
}

// CreateUser stores a new active account. Duplicate usernames or emails fail with errs.ErrConflict.
func (s *Store) CreateUser(ctx context.Context, in NewUser) (models.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(in.Email)
	if username == "" {
		return models.User{}, fmt.Errorf("username is required: %w", errs.ErrValidation)
	}
	if errEmail := validateEmail(email); errEmail != nil {
		return models.User{}, errEmail
	}
	if errValidate := ValidatePassword(in.Password); errValidate != nil {
		return models.User{}, errValidate
	}
	digest, errHash := security.HashPassword(in.Password)
	if errHash != nil {
		return models.User{}, fmt.Errorf("store: hash password: %w", errHash)
	}

	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: digest,
		IsActive:     true,
		IsAdmin:      in.IsAdmin,
	}
	if errCreate := s.db.WithContext(ctx).Create(&user).Error; errCreate != nil {
		if db.IsUniqueViolation(errCreate) {
			return models.User{}, fmt.Errorf("username or email already registered: %w", errs.ErrConflict)
		}
		return models.User{}, fmt.Errorf("store: create user: %w", errCreate)
	}
	return user, nil
}

// UserUpdate lists the optional fields an admin may change. Nil fields are left untouched.
type UserUpdate struct {
	Email     *string
	IsActive  *bool
	IsAdmin   *bool
	ResetTOTP *bool // True removes the enrolled and any pending authenticator.
}

// ResetsTOTP reports whether the update removes the user's authenticator.
func (u UserUpdate) ResetsTOTP() bool {
	return u.ResetTOTP != nil && *u.ResetTOTP
}

// ChangesProfile reports whether the update touches email, activity or the admin flag.
func (u UserUpdate) ChangesProfile() bool {
	return u.Email != nil || u.IsActive != nil || u.IsAdmin != nil
}

// Empty reports whether the update carries no fields.
func (u UserUpdate) Empty() bool {
	return !u.ChangesProfile() && !u.ResetsTOTP()
}

// UpdateUser applies the non-nil fields of update to the user.
func (s *Store) UpdateUser(ctx context.Context, id uint64, update UserUpdate) (models.User, error) {
	if update.Empty() {
		return models.User{}, fmt.Errorf("no fields to update: %w", errs.ErrValidation)
	}

	updates := map[string]any{"updated_at": s.now().UTC()}
	if update.Email != nil {
		email := strings.TrimSpace(*update.Email)
		if errEmail := validateEmail(email); errEmail != nil {
			return models.User{}, errEmail
		}
		updates["email"] = email
	}
	if update.IsActive != nil {
		updates["is_active"] = *update.IsActive
	}
	if update.IsAdmin != nil {
		updates["is_admin"] = *update.IsAdmin
	}
	if update.ResetsTOTP() {
		updates["totp_secret"] = ""
		updates["totp_pending_secret"] = ""
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		if db.IsUniqueViolation(res.Error) {
			return models.User{}, fmt.Errorf("email already registered: %w", errs.ErrConflict)
		}
		return models.User{}, fmt.Errorf("store: update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.User{}, fmt.Errorf("user %d: %w", id, errs.ErrNotFound)
	}
	return s.FindUserByID(ctx, id)
}

// BeginTOTP stores a pending authenticator secret for the user.
func (s *Store) BeginTOTP(ctx context.Context, userID uint64, secret string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Update("totp_pending_secret", secret)
	if res.Error != nil {
		return fmt.Errorf("store: begin totp: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %d: %w", userID, errs.ErrNotFound)
	}
	return nil
}

// ConfirmTOTP promotes the pending secret to the active one.
func (s *Store) ConfirmTOTP(ctx context.Context, userID uint64, secret string) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND totp_pending_secret = ?", userID, secret).
		Updates(map[string]any{
			"totp_secret":         secret,
			"totp_pending_secret": "",
		})
	if res.Error != nil {
		return fmt.Errorf("store: confirm totp: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no pending authenticator: %w", errs.ErrValidation)
	}
	return nil
}

// DisableTOTP removes the user's active and pending authenticator secrets.
func (s *Store) DisableTOTP(ctx context.Context, userID uint64) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).
		Updates(map[string]any{
			"totp_secret":         "",
			"totp_pending_secret": "",
		})
	if res.Error != nil {
		return fmt.Errorf("store: disable totp: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("user %d: %w", userID, errs.ErrNotFound)
	}
	return nil
}

func validateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required: %w", errs.ErrValidation)
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return fmt.Errorf("invalid email: %w", errs.ErrValidation)
	}
	return nil
}
