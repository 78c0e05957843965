package models

import "time"

// SecurityLog is an append-only audit record of a security-sensitive event.
type SecurityLog struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`      // Monotonic id.
	UserID      *uint64   `gorm:"index"`                         // Acting user, if known.
	EventType   string    `gorm:"type:text;not null;index"`      // Event category.
	Description string    `gorm:"type:text;not null;default:''"` // Human readable summary.
	IPAddress   *string   `gorm:"type:text"`                     // Client address, if known.
	Timestamp   time.Time `gorm:"not null;index"`                // Event time.
}
