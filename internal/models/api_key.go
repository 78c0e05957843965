package models

import (
	"time"

	"gorm.io/datatypes"
)

// APIKey stores a hashed personal API key. The plaintext is never persisted.
type APIKey struct {
	ID string `gorm:"primaryKey;type:text"` // UUID.

	UserID uint64 `gorm:"not null;index"`     // Owning user.
	User   *User  `gorm:"foreignKey:UserID"`  // Owning user.
	Name   string `gorm:"type:text;not null"` // Caller-supplied label.

	KeyHash   string `gorm:"type:text;not null;uniqueIndex"` // SHA-256 hex digest of the plaintext.
	KeyPrefix string `gorm:"type:text;not null"`             // Recognizable prefix kept for display.

	Permissions datatypes.JSON `gorm:"type:json"` // JSON array of permission scopes.

	CreatedAt time.Time  `gorm:"not null;autoCreateTime"` // Issuance timestamp.
	LastUsed  *time.Time // Last successful verification.
}
