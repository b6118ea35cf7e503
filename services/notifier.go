package services

import (
	"context"
	"strings"

	"leadreminder-backend/models"
)

// Notifier delivers one reminder message and returns the provider's message id.
type Notifier interface {
	Send(ctx context.Context, n models.Notification) (string, error)
	Channel(phone string) string
}

// MessageTemplates renders the per-kind reminder text. Placeholders:
// [ParentsName], [Date], [Time].
type MessageTemplates struct {
	R1 string
	R2 string
}

var DefaultTemplates = MessageTemplates{
	R1: "Hi [ParentsName], this is a reminder of your appointment tomorrow, [Date] at [Time].",
	R2: "Hi [ParentsName], your appointment on [Date] starts at [Time], in about an hour.",
}

func (t MessageTemplates) Render(n models.Notification) string {
	tpl := t.R2
	if n.Kind == models.KindR1 {
		tpl = t.R1
	}
	return strings.NewReplacer(
		"[ParentsName]", n.ParentsName,
		"[Date]", n.Date,
		"[Time]", n.Time,
	).Replace(tpl)
}
