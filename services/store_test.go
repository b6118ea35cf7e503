package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"leadreminder-backend/models"
)

func newMockStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	store := NewGormStore(db)
	store.now = func() time.Time { return time.Date(2025, 3, 9, 9, 30, 0, 0, time.UTC) }
	return store, mock
}

func TestGormStore_QueryPending(t *testing.T) {
	store, mock := newMockStore(t)

	meet := time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "phone", "parents_name", "meet_datetime", "visit_datetime",
		"stage2_r1", "stage2_r2", "stage7_r1", "stage7_r2",
	}).
		AddRow("1", "+911", "Asha", meet, nil, "SENT", nil, nil, nil).
		AddRow("2", "+912", "Ravi", nil, meet, nil, nil, nil, nil)

	mock.ExpectQuery(`SELECT (.+) FROM "leads" WHERE meet_datetime IS NOT NULL OR visit_datetime IS NOT NULL`).
		WillReturnRows(rows)

	leads, err := store.QueryPending(context.Background())
	require.NoError(t, err)
	require.Len(t, leads, 2)

	assert.Equal(t, "1", leads[0].ID)
	require.NotNil(t, leads[0].MeetDatetime)
	assert.True(t, leads[0].MeetDatetime.Equal(meet))
	assert.Nil(t, leads[0].VisitDatetime)
	assert.True(t, leads[0].Sent(models.CategoryMeeting, models.KindR1))
	assert.False(t, leads[0].Sent(models.CategoryMeeting, models.KindR2))
	assert.Equal(t, "Ravi", leads[1].ParentsName)
	assert.NotNil(t, leads[1].VisitDatetime)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_QueryPendingError(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT (.+) FROM "leads"`).WillReturnError(errors.New("connection refused"))

	_, err := store.QueryPending(context.Background())
	assert.ErrorIs(t, err, ErrStoreQuery)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_UpdateStatus(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE "leads" SET "stage7_r2"=\$1,"updated_at"=\$2 WHERE id = \$3`).
		WithArgs("SENT", time.Date(2025, 3, 9, 9, 30, 0, 0, time.UTC), "lead-9").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.UpdateStatus(context.Background(), "lead-9", models.FieldStage7R2, models.StatusSent))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_UpdateStatusErrors(t *testing.T) {
	t.Run("unknown field", func(t *testing.T) {
		store, mock := newMockStore(t)
		err := store.UpdateStatus(context.Background(), "1", "phone", "SENT")
		assert.ErrorIs(t, err, ErrStoreUpdate)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no such lead", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(`UPDATE "leads"`).WillReturnResult(sqlmock.NewResult(0, 0))

		err := store.UpdateStatus(context.Background(), "missing", models.FieldStage2R1, models.StatusSent)
		assert.ErrorIs(t, err, ErrStoreUpdate)
		assert.ErrorIs(t, err, ErrLeadNotFound)
	})

	t.Run("driver error", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectExec(`UPDATE "leads"`).WillReturnError(errors.New("deadlock detected"))

		err := store.UpdateStatus(context.Background(), "1", models.FieldStage2R1, models.StatusSent)
		assert.ErrorIs(t, err, ErrStoreUpdate)
		assert.NotErrorIs(t, err, ErrLeadNotFound)
	})
}

func TestGormStore_LogDelivery(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO "reminder_logs"`).WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &models.ReminderLog{
		LeadID:   "1",
		Category: "meeting",
		Kind:     "R1",
		Channel:  "sms",
		Status:   models.LogStatusSent,
		SentAt:   time.Now(),
	}
	require.NoError(t, store.LogDelivery(context.Background(), entry))
	assert.NotEqual(t, uuid.Nil, entry.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
