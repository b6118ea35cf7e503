package models

import (
	"fmt"
	"strings"
	"time"
)

// Category is the appointment type a reminder belongs to.
type Category string

const (
	CategoryMeeting Category = "meeting"
	CategoryVisit   Category = "visit"
)

// ParseCategory accepts "meeting" or "visit". An empty value means meeting.
func ParseCategory(s string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case "", CategoryMeeting:
		return CategoryMeeting, true
	case CategoryVisit:
		return CategoryVisit, true
	}
	return "", false
}

// Kind identifies which of the two reminders is meant.
type Kind string

const (
	KindR1 Kind = "R1" // 24 hours before
	KindR2 Kind = "R2" // 1 hour before
)

// Kinds lists the reminder kinds in firing order.
var Kinds = []Kind{KindR1, KindR2}

// Offset returns how long before the appointment the reminder fires.
func (k Kind) Offset() time.Duration {
	if k == KindR1 {
		return 24 * time.Hour
	}
	return time.Hour
}

const StatusSent = "SENT"

// Status columns on the leads table.
const (
	FieldStage2R1 = "stage2_r1"
	FieldStage2R2 = "stage2_r2"
	FieldStage7R1 = "stage7_r1"
	FieldStage7R2 = "stage7_r2"
)

// StatusField maps (category, kind) to the leads column that records delivery.
func StatusField(c Category, k Kind) string {
	if c == CategoryVisit {
		if k == KindR1 {
			return FieldStage7R1
		}
		return FieldStage7R2
	}
	if k == KindR1 {
		return FieldStage2R1
	}
	return FieldStage2R2
}

// TriggerKey identifies one pending or fired reminder.
type TriggerKey struct {
	LeadID   string
	Category Category
	Kind     Kind
}

func (k TriggerKey) String() string {
	return fmt.Sprintf("%s_%s_%s", k.LeadID, k.Category, strings.ToLower(string(k.Kind)))
}

// ReminderRequest carries everything needed to schedule and later deliver
// the reminders of one appointment.
type ReminderRequest struct {
	LeadID      string
	Phone       string
	ParentsName string
	MeetingDate string // YYYY-MM-DD
	MeetingTime string // HH:MM
	Category    Category
}

// Notification is what a gateway is asked to send.
type Notification struct {
	LeadID      string
	Phone       string
	ParentsName string
	Date        string
	Time        string
	Kind        Kind
	Category    Category
}
