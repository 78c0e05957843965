package app

import (
	"fmt"

	"github.com/synapseiq/secadmin/internal/models"
	"gorm.io/gorm"
)

// InitState summarises first-run progress of a database.
type InitState struct {
	Migrated bool  // The security tables exist.
	Admins   int64 // Accounts with the admin flag, active or not.
	Settings int64 // Seeded security settings.
}

// LoadInitState inspects the database without modifying it.
func LoadInitState(conn *gorm.DB) (InitState, error) {
	if conn == nil {
		return InitState{}, fmt.Errorf("nil db")
	}
	migrator := conn.Migrator()
	if !migrator.HasTable(&models.User{}) || !migrator.HasTable(&models.SecuritySetting{}) {
		return InitState{}, nil
	}
	state := InitState{Migrated: true}
	if errCount := conn.Model(&models.User{}).Where("is_admin = ?", true).Count(&state.Admins).Error; errCount != nil {
		return InitState{}, fmt.Errorf("count admins: %w", errCount)
	}
	if errCount := conn.Model(&models.SecuritySetting{}).Count(&state.Settings).Error; errCount != nil {
		return InitState{}, fmt.Errorf("count settings: %w", errCount)
	}
	return state, nil
}

// HasAdminInitialized reports whether the system has at least one admin account.
func HasAdminInitialized(conn *gorm.DB) (bool, error) {
	state, err := LoadInitState(conn)
	if err != nil {
		return false, err
	}
	return state.Admins > 0, nil
}
