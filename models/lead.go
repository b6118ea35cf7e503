package models

import "time"

// Lead is a row of the externally owned leads table. Only the columns the
// reminder service reads or writes are mapped.
type Lead struct {
	ID            string `gorm:"primaryKey"`
	Phone         string
	ParentsName   string
	MeetDatetime  *time.Time
	VisitDatetime *time.Time
	Stage2R1      *string `gorm:"column:stage2_r1"`
	Stage2R2      *string `gorm:"column:stage2_r2"`
	Stage7R1      *string `gorm:"column:stage7_r1"`
	Stage7R2      *string `gorm:"column:stage7_r2"`
	UpdatedAt     time.Time
}

func (Lead) TableName() string {
	return "leads"
}

// Appointment returns the stored timestamp for the category, or nil.
func (l *Lead) Appointment(c Category) *time.Time {
	if c == CategoryVisit {
		return l.VisitDatetime
	}
	return l.MeetDatetime
}

// Sent reports whether the status column for (c, k) is SENT.
func (l *Lead) Sent(c Category, k Kind) bool {
	var v *string
	switch StatusField(c, k) {
	case FieldStage2R1:
		v = l.Stage2R1
	case FieldStage2R2:
		v = l.Stage2R2
	case FieldStage7R1:
		v = l.Stage7R1
	case FieldStage7R2:
		v = l.Stage7R2
	}
	return v != nil && *v == StatusSent
}

// FullySent reports whether both reminders of the category went out.
func (l *Lead) FullySent(c Category) bool {
	return l.Sent(c, KindR1) && l.Sent(c, KindR2)
}
