package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/synapseiq/secadmin/internal/errs"
	"github.com/synapseiq/secadmin/internal/models"
	"gorm.io/gorm"
)

// SettingUpdate carries the mutable fields of a security setting.
type SettingUpdate struct {
	Enabled *bool
}

// ListSettings returns the security settings catalog ordered by id.
func (s *Store) ListSettings(ctx context.Context) ([]models.SecuritySetting, error) {
	var rows []models.SecuritySetting
	if errFind := s.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("store: list settings: %w", errFind)
	}
	return rows, nil
}

// GetSetting loads a single setting.
func (s *Store) GetSetting(ctx context.Context, id string) (models.SecuritySetting, error) {
	var row models.SecuritySetting
	errFind := s.db.WithContext(ctx).Where("id = ?", strings.TrimSpace(id)).First(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.SecuritySetting{}, fmt.Errorf("setting %q: %w", id, errs.ErrNotFound)
		}
		return models.SecuritySetting{}, fmt.Errorf("store: get setting: %w", errFind)
	}
	return row, nil
}

// SettingEnabled reports the toggle state of a setting.
func (s *Store) SettingEnabled(ctx context.Context, id string) (bool, error) {
	row, err := s.GetSetting(ctx, id)
	if err != nil {
		return false, err
	}
	return row.Enabled, nil
}

// UpdateSetting toggles a setting. Unknown ids fail with errs.ErrNotFound.
func (s *Store) UpdateSetting(ctx context.Context, id string, update SettingUpdate) (models.SecuritySetting, error) {
	if update.Enabled == nil {
		return models.SecuritySetting{}, fmt.Errorf("enabled is required: %w", errs.ErrValidation)
	}
	id = strings.TrimSpace(id)
	res := s.db.WithContext(ctx).Model(&models.SecuritySetting{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"enabled":      *update.Enabled,
			"last_updated": s.now().UTC(),
		})
	if res.Error != nil {
		return models.SecuritySetting{}, fmt.Errorf("store: update setting: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.SecuritySetting{}, fmt.Errorf("setting %q: %w", id, errs.ErrNotFound)
	}
	return s.GetSetting(ctx, id)
}
