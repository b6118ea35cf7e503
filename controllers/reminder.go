// controllers/reminder.go
package controllers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"leadreminder-backend/models"
	"leadreminder-backend/services"
	"leadreminder-backend/utils"

	"github.com/gin-gonic/gin"
)

// ReminderEngine is the part of services.ReminderService the HTTP layer uses.
type ReminderEngine interface {
	Schedule(req models.ReminderRequest) (services.ScheduleResult, error)
	Cancel(leadID string, category models.Category) []models.Kind
	PendingCount() int
	Pending() []services.PendingJob
}

type ReminderController struct {
	Engine ReminderEngine
	Now    func() time.Time
}

func NewReminderController(engine ReminderEngine) *ReminderController {
	return &ReminderController{Engine: engine, Now: time.Now}
}

// LeadID accepts both string and numeric JSON ids.
type LeadID string

func (id *LeadID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = LeadID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("leadId must be a string or number")
	}
	*id = LeadID(n.String())
	return nil
}

// ScheduleReminderInput defines the expected JSON structure
type ScheduleReminderInput struct {
	LeadID      LeadID `json:"leadId"`
	Phone       string `json:"phone"`
	ParentsName string `json:"parentsName"`
	MeetingDate string `json:"meetingDate"`
	MeetingTime string `json:"meetingTime"`
	FieldType   string `json:"fieldType"`
}

// CancelReminderInput defines the expected JSON structure
type CancelReminderInput struct {
	LeadID    LeadID `json:"leadId"`
	FieldType string `json:"fieldType"`
}

type PendingReminder struct {
	Key       string    `json:"key"`
	LeadID    string    `json:"leadId"`
	FieldType string    `json:"fieldType"`
	Kind      string    `json:"kind"`
	FireAt    time.Time `json:"fireAt"`
}

// Health reports liveness and the number of armed reminders.
func (rc *ReminderController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"message":       "Reminder Scheduler API is running",
		"timestamp":     rc.Now().UTC().Format(time.RFC3339),
		"scheduledJobs": rc.Engine.PendingCount(),
	})
}

// ScheduleReminder arms (or re-arms) the R1/R2 reminders of one appointment.
func (rc *ReminderController) ScheduleReminder(c *gin.Context) {
	var input ScheduleReminderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	category, ok := models.ParseCategory(input.FieldType)
	if !ok {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid fieldType: must be meeting or visit")
		return
	}

	if input.Phone != "" && !utils.ValidatePhone(input.Phone) {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid phone number format")
		return
	}

	res, err := rc.Engine.Schedule(models.ReminderRequest{
		LeadID:      string(input.LeadID),
		Phone:       utils.NormalizePhone(input.Phone),
		ParentsName: input.ParentsName,
		MeetingDate: input.MeetingDate,
		MeetingTime: input.MeetingTime,
		Category:    category,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingField):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error":    "Missing required fields",
				"detail":   err.Error(),
				"received": input,
			})
		case errors.Is(err, services.ErrInvalidTimestamp), errors.Is(err, services.ErrInvalidCategory):
			utils.RespondWithError(c, http.StatusBadRequest, err.Error())
		default:
			utils.RespondWithError(c, http.StatusInternalServerError, err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Reminders scheduled successfully",
		"leadId":    input.LeadID,
		"fieldType": category,
		"armed":     kindNames(res.Armed),
		"skipped":   kindNames(res.Skipped),
	})
}

// CancelReminder revokes pending reminders of one appointment category.
func (rc *ReminderController) CancelReminder(c *gin.Context) {
	var input CancelReminderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	if input.LeadID == "" {
		utils.RespondWithError(c, http.StatusBadRequest, "Missing leadId")
		return
	}

	category, ok := models.ParseCategory(input.FieldType)
	if !ok {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid fieldType: must be meeting or visit")
		return
	}

	cancelled := rc.Engine.Cancel(string(input.LeadID), category)
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Reminders cancelled successfully",
		"leadId":    input.LeadID,
		"fieldType": category,
		"cancelled": kindNames(cancelled),
	})
}

// ListReminders returns the armed reminders ordered by fire time.
func (rc *ReminderController) ListReminders(c *gin.Context) {
	pending := rc.Engine.Pending()
	out := make([]PendingReminder, 0, len(pending))
	for _, job := range pending {
		out = append(out, PendingReminder{
			Key:       job.Key.String(),
			LeadID:    job.Key.LeadID,
			FieldType: string(job.Key.Category),
			Kind:      string(job.Key.Kind),
			FireAt:    job.FireAt.UTC(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "reminders": out})
}

func kindNames(kinds []models.Kind) []string {
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, string(k))
	}
	return out
}
