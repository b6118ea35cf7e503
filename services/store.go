package services

import (
	"context"
	"fmt"
	"time"

	"leadreminder-backend/models"

	"gorm.io/gorm"
)

// RecordStore is the persistence the reminder engine needs.
type RecordStore interface {
	// QueryPending returns leads with a meeting or visit timestamp set.
	QueryPending(ctx context.Context) ([]models.Lead, error)
	UpdateStatus(ctx context.Context, leadID, field, value string) error
	LogDelivery(ctx context.Context, entry *models.ReminderLog) error
}

var statusFields = map[string]bool{
	models.FieldStage2R1: true,
	models.FieldStage2R2: true,
	models.FieldStage7R1: true,
	models.FieldStage7R2: true,
}

// GormStore implements RecordStore on the leads and reminder_logs tables.
type GormStore struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, now: time.Now}
}

func (s *GormStore) QueryPending(ctx context.Context) ([]models.Lead, error) {
	var leads []models.Lead
	err := s.db.WithContext(ctx).
		Select("id", "phone", "parents_name", "meet_datetime", "visit_datetime",
			"stage2_r1", "stage2_r2", "stage7_r1", "stage7_r2").
		Where("meet_datetime IS NOT NULL OR visit_datetime IS NOT NULL").
		Find(&leads).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreQuery, err)
	}
	return leads, nil
}

func (s *GormStore) UpdateStatus(ctx context.Context, leadID, field, value string) error {
	if !statusFields[field] {
		return fmt.Errorf("%w: unknown status field %q", ErrStoreUpdate, field)
	}

	res := s.db.WithContext(ctx).
		Model(&models.Lead{}).
		Where("id = ?", leadID).
		Updates(map[string]interface{}{
			field:        value,
			"updated_at": s.now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("%w: %v", ErrStoreUpdate, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %w %s", ErrStoreUpdate, ErrLeadNotFound, leadID)
	}
	return nil
}

func (s *GormStore) LogDelivery(ctx context.Context, entry *models.ReminderLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}
