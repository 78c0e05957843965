package models

import "time"

// SecuritySetting is one entry of the fixed security settings catalog.
type SecuritySetting struct {
	ID          string    `gorm:"primaryKey;type:text" json:"id"`                   // Stable setting key.
	Name        string    `gorm:"type:text;not null" json:"name"`                   // Display name.
	Description string    `gorm:"type:text;not null;default:''" json:"description"` // Display description.
	Enabled     bool      `gorm:"not null;default:false" json:"enabled"`            // Current toggle state.
	LastUpdated time.Time `gorm:"not null" json:"last_updated"`                     // Last toggle timestamp.
}
