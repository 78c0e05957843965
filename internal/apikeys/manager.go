// Package apikeys issues, lists, revokes and verifies personal API keys.
package apikeys

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/synapseiq/secadmin/internal/errs"
	"github.com/synapseiq/secadmin/internal/models"
	"github.com/synapseiq/secadmin/internal/security"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// maxNameLength bounds the caller-supplied key label.
const maxNameLength = 100

// Key is the display form of a stored API key. It never carries the plaintext.
type Key struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Masked      string     `json:"key"`
	Permissions []string   `json:"permissions"`
	Created     time.Time  `json:"created"`
	LastUsed    *time.Time `json:"last_used"`
	UserID      uint64     `json:"user_id"`
}

// Created is returned once on issuance and carries the plaintext key.
type Created struct {
	Key
	Plaintext string
}

// Manager manages API keys stored through gorm.
type Manager struct {
	db  *gorm.DB
	now func() time.Time
}

// NewManager constructs a Manager.
func NewManager(conn *gorm.DB) *Manager {
	return &Manager{db: conn, now: time.Now}
}

// Create issues a new key for owner. The plaintext is only available in the returned value.
func (m *Manager) Create(ctx context.Context, ownerID uint64, name string, permissions []string) (Created, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Created{}, fmt.Errorf("name is required: %w", errs.ErrValidation)
	}
	if len(name) > maxNameLength {
		return Created{}, fmt.Errorf("name must be at most %d characters: %w", maxNameLength, errs.ErrValidation)
	}
	if errValidate := ValidatePermissions(permissions); errValidate != nil {
		return Created{}, errValidate
	}
	perms := NormalizePermissions(permissions)
	if len(perms) == 0 {
		perms = NormalizePermissions(DefaultPermissions)
	}
	rawPerms, errMarshal := MarshalPermissions(perms)
	if errMarshal != nil {
		return Created{}, fmt.Errorf("apikeys: marshal permissions: %w", errMarshal)
	}

	plaintext, errGenerate := security.GenerateAPIKey()
	if errGenerate != nil {
		return Created{}, fmt.Errorf("apikeys: generate: %w", errGenerate)
	}

	row := models.APIKey{
		ID:          uuid.NewString(),
		UserID:      ownerID,
		Name:        name,
		KeyHash:     security.HashAPIKey(plaintext),
		KeyPrefix:   security.APIKeyPrefix,
		Permissions: datatypes.JSON(rawPerms),
		CreatedAt:   m.now().UTC(),
	}
	if errCreate := m.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return Created{}, fmt.Errorf("apikeys: create: %w", errCreate)
	}
	return Created{Key: toKey(row), Plaintext: plaintext}, nil
}

// List returns the owner's keys, newest first, with the key field masked.
func (m *Manager) List(ctx context.Context, ownerID uint64) ([]Key, error) {
	var rows []models.APIKey
	if errFind := m.db.WithContext(ctx).
		Where("user_id = ?", ownerID).
		Order("created_at DESC").
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("apikeys: list: %w", errFind)
	}
	out := make([]Key, 0, len(rows))
	for _, row := range rows {
		out = append(out, toKey(row))
	}
	return out, nil
}

// Revoke deletes a key owned by owner. Keys of other users are reported as not found.
func (m *Manager) Revoke(ctx context.Context, ownerID uint64, keyID string) (Key, error) {
	keyID = strings.TrimSpace(keyID)
	if keyID == "" {
		return Key{}, fmt.Errorf("api key %q: %w", keyID, errs.ErrNotFound)
	}

	var revoked models.APIKey
	errTx := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errFind := tx.Where("id = ? AND user_id = ?", keyID, ownerID).First(&revoked).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return fmt.Errorf("api key %q: %w", keyID, errs.ErrNotFound)
			}
			return fmt.Errorf("apikeys: find: %w", errFind)
		}
		res := tx.Where("id = ? AND user_id = ?", keyID, ownerID).Delete(&models.APIKey{})
		if res.Error != nil {
			return fmt.Errorf("apikeys: delete: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("api key %q: %w", keyID, errs.ErrNotFound)
		}
		return nil
	})
	if errTx != nil {
		return Key{}, errTx
	}
	return toKey(revoked), nil
}

// Verify resolves a plaintext key and stamps its last_used time.
func (m *Manager) Verify(ctx context.Context, plaintext string) (Key, error) {
	plaintext = strings.TrimSpace(plaintext)
	if !security.LooksLikeAPIKey(plaintext) {
		return Key{}, fmt.Errorf("malformed api key: %w", errs.ErrUnauthenticated)
	}

	var row models.APIKey
	if errFind := m.db.WithContext(ctx).
		Where("key_hash = ?", security.HashAPIKey(plaintext)).
		First(&row).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return Key{}, fmt.Errorf("unknown api key: %w", errs.ErrUnauthenticated)
		}
		return Key{}, fmt.Errorf("apikeys: verify: %w", errFind)
	}

	now := m.now().UTC()
	if errUpdate := m.db.WithContext(ctx).Model(&models.APIKey{}).
		Where("id = ?", row.ID).
		Update("last_used", now).Error; errUpdate != nil {
		return Key{}, fmt.Errorf("apikeys: stamp last_used: %w", errUpdate)
	}
	row.LastUsed = &now
	return toKey(row), nil
}

func toKey(row models.APIKey) Key {
	return Key{
		ID:          row.ID,
		Name:        row.Name,
		Masked:      security.MaskAPIKey(row.KeyPrefix),
		Permissions: ParsePermissions(row.Permissions),
		Created:     row.CreatedAt,
		LastUsed:    row.LastUsed,
		UserID:      row.UserID,
	}
}
