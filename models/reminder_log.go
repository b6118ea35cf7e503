// models/reminder_log.go
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReminderLog records one delivery attempt.
type ReminderLog struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key"`
	LeadID       string    `gorm:"index;not null"`
	Category     string    `gorm:"type:varchar(20)"` // meeting, visit
	Kind         string    `gorm:"type:varchar(4)"`  // R1, R2
	Channel      string    `gorm:"type:varchar(20)"` // whatsapp, sms, aisensy
	Status       string    `gorm:"type:varchar(20)"` // sent, failed
	MessageID    string    `gorm:"type:varchar(64)"`
	ErrorMessage string    `gorm:"type:text"`
	SentAt       time.Time
	CreatedAt    time.Time
}

const (
	LogStatusSent   = "sent"
	LogStatusFailed = "failed"
)

func (r *ReminderLog) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return
}
