package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/synapseiq/secadmin/internal/db"
	"github.com/synapseiq/secadmin/internal/models"
	"gorm.io/gorm"
)

type countingObserver struct {
	events []string
}

func (o *countingObserver) ObserveSecurityEvent(eventType string) {
	o.events = append(o.events, eventType)
}

func newTestLogger(t *testing.T) (*Logger, *gorm.DB, *countingObserver) {
	t.Helper()
	conn, err := db.Open("file:" + filepath.Join(t.TempDir(), "audit-test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(conn))
	observer := &countingObserver{}
	return NewLogger(conn, observer), conn, observer
}

func TestRecordAndList(t *testing.T) {
	logger, conn, observer := newTestLogger(t)
	ctx := context.Background()

	user := models.User{Username: "admin", Email: "admin@example.com", PasswordHash: "x", IsActive: true, IsAdmin: true}
	require.NoError(t, conn.Create(&user).Error)

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	logger.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	require.NoError(t, logger.Record(ctx, Event{UserID: UserID(user.ID), Type: EventLogin, Description: "User admin logged in", IP: "10.0.0.1"}))
	require.NoError(t, logger.Record(ctx, Event{Type: EventLoginFailed, Description: "Failed login for ghost"}))

	entries, err := logger.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	newest := entries[0]
	assert.Equal(t, EventLoginFailed, newest.EventType)
	assert.Nil(t, newest.UserID)
	assert.Nil(t, newest.Username)
	assert.Nil(t, newest.IPAddress)

	oldest := entries[1]
	assert.Equal(t, EventLogin, oldest.EventType)
	require.NotNil(t, oldest.Username)
	assert.Equal(t, "admin", *oldest.Username)
	require.NotNil(t, oldest.IPAddress)
	assert.Equal(t, "10.0.0.1", *oldest.IPAddress)
	assert.True(t, oldest.Timestamp.Before(newest.Timestamp))

	assert.Equal(t, []string{EventLogin, EventLoginFailed}, observer.events)
}

func TestListCapsAtHundred(t *testing.T) {
	logger, _, _ := newTestLogger(t)
	ctx := context.Background()

	for i := 0; i < DefaultListLimit+5; i++ {
		require.NoError(t, logger.Record(ctx, Event{Type: EventSettingUpdate, Description: "toggle"}))
	}

	entries, err := logger.List(ctx, 500)
	require.NoError(t, err)
	assert.Len(t, entries, DefaultListLimit)
	assert.Greater(t, entries[0].ID, entries[len(entries)-1].ID)
}

func TestRecordRejectsMissingType(t *testing.T) {
	logger, _, observer := newTestLogger(t)
	require.Error(t, logger.Record(context.Background(), Event{Description: "no type"}))
	assert.Empty(t, observer.events)
}
