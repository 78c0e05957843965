// Package audit records append-only security events.
package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/synapseiq/secadmin/internal/models"
	"gorm.io/gorm"
)

// Event types written to the security log.
const (
	EventLogin          = "login"
	EventLoginFailed    = "login_failed"
	EventPasswordChange = "password_change"
	EventSettingUpdate  = "setting_update"
	EventAPIKeyCreated  = "api_key_created"
	EventAPIKeyDeleted  = "api_key_deleted"
	EventUserCreated    = "user_created"
	EventUserUpdated    = "user_updated"
	EventTOTPEnabled    = "totp_enabled"
	EventTOTPDisabled   = "totp_disabled"
)

// DefaultListLimit caps the number of entries returned by List.
const DefaultListLimit = 100

// Event describes a security event to append.
type Event struct {
	UserID      *uint64
	Type        string
	Description string
	IP          string
}

// Entry is a stored event joined with the acting user's name.
type Entry struct {
	ID          uint64    `json:"id"`
	UserID      *uint64   `json:"user_id"`
	Username    *string   `json:"username"`
	EventType   string    `json:"event_type"`
	Description string    `json:"description"`
	IPAddress   *string   `json:"ip_address"`
	Timestamp   time.Time `json:"timestamp"`
}

// Observer is notified after an event is stored.
type Observer interface {
	ObserveSecurityEvent(eventType string)
}

// Logger appends and lists security events.
type Logger struct {
	db       *gorm.DB
	observer Observer
	now      func() time.Time
}

// NewLogger constructs a Logger. observer may be nil.
func NewLogger(conn *gorm.DB, observer Observer) *Logger {
	return &Logger{db: conn, observer: observer, now: time.Now}
}

// Record appends one immutable entry. Storage failures are returned to the caller.
func (l *Logger) Record(ctx context.Context, event Event) error {
	eventType := strings.TrimSpace(event.Type)
	if eventType == "" {
		return fmt.Errorf("audit: missing event type")
	}
	row := models.SecurityLog{
		UserID:      event.UserID,
		EventType:   eventType,
		Description: event.Description,
		Timestamp:   l.now().UTC(),
	}
	if ip := strings.TrimSpace(event.IP); ip != "" {
		row.IPAddress = &ip
	}
	if errCreate := l.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return fmt.Errorf("audit: record %s: %w", eventType, errCreate)
	}
	if l.observer != nil {
		l.observer.ObserveSecurityEvent(eventType)
	}
	return nil
}

// List returns the most recent entries, newest first.
func (l *Logger) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	entries := make([]Entry, 0, limit)
	errScan := l.db.WithContext(ctx).
		Table("security_logs AS l").
		Select("l.id, l.user_id, u.username, l.event_type, l.description, l.ip_address, l.timestamp").
		Joins("LEFT JOIN users u ON u.id = l.user_id").
		Order("l.timestamp DESC").
		Order("l.id DESC").
		Limit(limit).
		Scan(&entries).Error
	if errScan != nil {
		return nil, fmt.Errorf("audit: list: %w", errScan)
	}
	return entries, nil
}

// UserID returns a pointer to id for Event.UserID.
func UserID(id uint64) *uint64 {
	return &id
}
