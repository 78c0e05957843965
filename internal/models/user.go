package models

import "time"

// User represents a dashboard operator account stored in the database.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement" json:"id"` // Primary key.

	Username     string `gorm:"type:text;not null;uniqueIndex" json:"username"` // Unique login name.
	Email        string `gorm:"type:text;not null;uniqueIndex" json:"email"`    // Unique email address.
	PasswordHash string `gorm:"type:text;not null" json:"-"`                    // bcrypt or legacy SHA-256 digest.

	IsActive bool `gorm:"not null" json:"is_active"` // Whether the user may authenticate.
	IsAdmin  bool `gorm:"not null" json:"is_admin"`  // Grants access to admin-only endpoints.

	TOTPSecret        string `gorm:"type:text" json:"-"` // Confirmed TOTP secret for MFA.
	TOTPPendingSecret string `gorm:"type:text" json:"-"` // Secret awaiting confirmation.

	CreatedAt time.Time  `gorm:"not null;autoCreateTime" json:"created_at"` // Creation timestamp.
	UpdatedAt time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"` // Last update timestamp.
	LastLogin *time.Time `json:"last_login"`                                // Last successful login.
}

// HasTOTP reports whether the user completed authenticator enrolment.
func (u User) HasTOTP() bool {
	return u.TOTPSecret != ""
}
