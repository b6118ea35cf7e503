package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leadreminder-backend/models"
	"leadreminder-backend/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	scheduled []models.ReminderRequest
	cancelled []models.TriggerKey
	result    services.ScheduleResult
	err       error
	pending   []services.PendingJob
}

func (f *fakeEngine) Schedule(req models.ReminderRequest) (services.ScheduleResult, error) {
	f.scheduled = append(f.scheduled, req)
	return f.result, f.err
}

func (f *fakeEngine) Cancel(leadID string, category models.Category) []models.Kind {
	f.cancelled = append(f.cancelled, models.TriggerKey{LeadID: leadID, Category: category})
	return nil
}

func (f *fakeEngine) PendingCount() int { return len(f.pending) }

func (f *fakeEngine) Pending() []services.PendingJob { return f.pending }

func newTestRouter(engine *fakeEngine) *gin.Engine {
	gin.SetMode(gin.TestMode)
	rc := NewReminderController(engine)
	rc.Now = func() time.Time { return time.Date(2025, 3, 8, 4, 30, 0, 0, time.UTC) }

	r := gin.New()
	r.GET("/health", rc.Health)
	r.POST("/api/schedule-reminder", rc.ScheduleReminder)
	r.POST("/api/cancel-reminder", rc.CancelReminder)
	r.GET("/api/reminders", rc.ListReminders)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestScheduleReminder_Success(t *testing.T) {
	engine := &fakeEngine{result: services.ScheduleResult{
		Armed:   []models.Kind{models.KindR2},
		Skipped: []models.Kind{models.KindR1},
	}}
	r := newTestRouter(engine)

	w := do(r, http.MethodPost, "/api/schedule-reminder", `{
		"leadId": 123,
		"phone": "+91 98000 00001",
		"parentsName": "Asha Rao",
		"meetingDate": "2025-03-10",
		"meetingTime": "15:00",
		"fieldType": "visit"
	}`)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{
		"success": true,
		"message": "Reminders scheduled successfully",
		"leadId": "123",
		"fieldType": "visit",
		"armed": ["R2"],
		"skipped": ["R1"]
	}`, w.Body.String())

	require.Len(t, engine.scheduled, 1)
	assert.Equal(t, models.ReminderRequest{
		LeadID:      "123",
		Phone:       "+919800000001",
		ParentsName: "Asha Rao",
		MeetingDate: "2025-03-10",
		MeetingTime: "15:00",
		Category:    models.CategoryVisit,
	}, engine.scheduled[0])
}

func TestScheduleReminder_DefaultsToMeeting(t *testing.T) {
	engine := &fakeEngine{}
	r := newTestRouter(engine)

	w := do(r, http.MethodPost, "/api/schedule-reminder",
		`{"leadId":"a1","phone":"919800000001","parentsName":"A","meetingDate":"2025-03-10","meetingTime":"15:00"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.CategoryMeeting, engine.scheduled[0].Category)
	assert.Contains(t, w.Body.String(), `"armed":[]`)
}

func TestScheduleReminder_AcceptsNationalNumber(t *testing.T) {
	engine := &fakeEngine{}
	r := newTestRouter(engine)

	w := do(r, http.MethodPost, "/api/schedule-reminder",
		`{"leadId":"7","phone":"098000 00001","parentsName":"A","meetingDate":"2025-03-10","meetingTime":"15:00"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "09800000001", engine.scheduled[0].Phone)
}

func TestScheduleReminder_Errors(t *testing.T) {
	valid := `"leadId":"1","phone":"+919800000001","parentsName":"A","meetingDate":"2025-03-10","meetingTime":"15:00"`

	tests := []struct {
		name      string
		body      string
		engineErr error
		want      int
		contains  string
	}{
		{"malformed json", `{"leadId":`, nil, http.StatusBadRequest, "Invalid input"},
		{"bad lead id type", `{"leadId":true}`, nil, http.StatusBadRequest, "Invalid input"},
		{"bad field type", `{` + valid + `,"fieldType":"call"}`, nil, http.StatusBadRequest, "Invalid fieldType"},
		{"bad phone", `{"leadId":"1","phone":"abc"}`, nil, http.StatusBadRequest, "Invalid phone"},
		{"missing field", `{"leadId":"1"}`, fmt.Errorf("%w: phone", services.ErrMissingField), http.StatusBadRequest, "Missing required fields"},
		{"bad timestamp", `{` + valid + `}`, fmt.Errorf("%w: x", services.ErrInvalidTimestamp), http.StatusBadRequest, "invalid appointment timestamp"},
		{"unexpected", `{` + valid + `}`, fmt.Errorf("boom"), http.StatusInternalServerError, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(&fakeEngine{err: tt.engineErr})
			w := do(r, http.MethodPost, "/api/schedule-reminder", tt.body)
			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, w.Body.String(), tt.contains)
		})
	}
}

func TestCancelReminder(t *testing.T) {
	engine := &fakeEngine{}
	r := newTestRouter(engine)

	w := do(r, http.MethodPost, "/api/cancel-reminder", `{"leadId":"9","fieldType":"visit"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"success": true,
		"message": "Reminders cancelled successfully",
		"leadId": "9",
		"fieldType": "visit",
		"cancelled": []
	}`, w.Body.String())
	assert.Equal(t, []models.TriggerKey{{LeadID: "9", Category: models.CategoryVisit}}, engine.cancelled)

	w = do(r, http.MethodPost, "/api/cancel-reminder", `{"leadId":10}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.TriggerKey{LeadID: "10", Category: models.CategoryMeeting}, engine.cancelled[1])

	w = do(r, http.MethodPost, "/api/cancel-reminder", `{"fieldType":"visit"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Missing leadId"}`, w.Body.String())
	assert.Len(t, engine.cancelled, 2)
}

func TestHealthAndList(t *testing.T) {
	fireAt := time.Date(2025, 3, 9, 9, 30, 0, 0, time.UTC)
	engine := &fakeEngine{pending: []services.PendingJob{
		{Key: models.TriggerKey{LeadID: "1", Category: models.CategoryMeeting, Kind: models.KindR1}, FireAt: fireAt},
	}}
	r := newTestRouter(engine)

	w := do(r, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"status": "ok",
		"message": "Reminder Scheduler API is running",
		"timestamp": "2025-03-08T04:30:00Z",
		"scheduledJobs": 1
	}`, w.Body.String())

	w = do(r, http.MethodGet, "/api/reminders", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"count": 1,
		"reminders": [
			{"key":"1_meeting_r1","leadId":"1","fieldType":"meeting","kind":"R1","fireAt":"2025-03-09T09:30:00Z"}
		]
	}`, w.Body.String())
}
