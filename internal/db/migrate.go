package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/synapseiq/secadmin/internal/models"
	internalsettings "github.com/synapseiq/secadmin/internal/settings"
	"gorm.io/gorm"
)

// Migrate runs database migrations for the current dialect and seeds the settings catalog.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	switch DialectName(conn) {
	case DialectSQLite, DialectPostgres:
	default:
		return fmt.Errorf("db: unsupported dialect: %s", DialectName(conn))
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.User{},
		&models.SecuritySetting{},
		&models.APIKey{},
		&models.SecurityLog{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}
	if errBackfill := conn.Exec(`
		UPDATE api_keys
		SET permissions = '[]'
		WHERE permissions IS NULL
	`).Error; errBackfill != nil {
		return fmt.Errorf("db: backfill api key permissions: %w", errBackfill)
	}
	return ensureSecuritySettings(conn)
}

// ensureSecuritySettings inserts missing catalog entries without touching existing toggles.
func ensureSecuritySettings(conn *gorm.DB) error {
	now := time.Now().UTC()
	for _, def := range internalsettings.Catalog() {
		var existing models.SecuritySetting
		errFind := conn.Where("id = ?", def.ID).First(&existing).Error
		if errFind == nil {
			if existing.Name == def.Name && existing.Description == def.Description {
				continue
			}
			if errUpdate := conn.Model(&models.SecuritySetting{}).Where("id = ?", def.ID).Updates(map[string]any{
				"name":        def.Name,
				"description": def.Description,
			}).Error; errUpdate != nil {
				return fmt.Errorf("db: refresh %s setting: %w", def.ID, errUpdate)
			}
			continue
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return fmt.Errorf("db: load %s setting: %w", def.ID, errFind)
		}
		row := models.SecuritySetting{
			ID:          def.ID,
			Name:        def.Name,
			Description: def.Description,
			Enabled:     def.Default,
			LastUpdated: now,
		}
		if errCreate := conn.Create(&row).Error; errCreate != nil {
			return fmt.Errorf("db: seed %s setting: %w", def.ID, errCreate)
		}
	}
	return nil
}
