package services

import (
	"context"
	"errors"
	"strings"

	"leadreminder-backend/models"

	"github.com/twilio/twilio-go"
	twilioClient "github.com/twilio/twilio-go/client"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

type TwilioConfig struct {
	AccountSID     string
	AuthToken      string
	PhoneNumber    string
	WhatsAppNumber string
}

// TwilioNotifier sends reminders over WhatsApp when the destination is in
// E.164 form and a WhatsApp sender is configured, otherwise over SMS.
type TwilioNotifier struct {
	api       messageCreator
	cfg       TwilioConfig
	templates MessageTemplates
}

func NewTwilioNotifier(cfg TwilioConfig, templates MessageTemplates) *TwilioNotifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioNotifier{api: client.Api, cfg: cfg, templates: templates}
}

func (n *TwilioNotifier) Channel(phone string) string {
	if strings.HasPrefix(phone, "+") && n.cfg.WhatsAppNumber != "" {
		return "whatsapp"
	}
	return "sms"
}

func (n *TwilioNotifier) Send(ctx context.Context, msg models.Notification) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &GatewayError{Provider: "twilio", Err: err}
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetBody(n.templates.Render(msg))
	if n.Channel(msg.Phone) == "whatsapp" {
		params.SetTo("whatsapp:" + msg.Phone)
		params.SetFrom("whatsapp:" + n.cfg.WhatsAppNumber)
	} else {
		params.SetTo(msg.Phone)
		params.SetFrom(n.cfg.PhoneNumber)
	}

	resp, err := n.api.CreateMessage(params)
	if err != nil {
		gerr := &GatewayError{Provider: "twilio", Err: err}
		var restErr *twilioClient.TwilioRestError
		if errors.As(err, &restErr) {
			gerr.StatusCode = restErr.Status
		}
		return "", gerr
	}
	if resp.Sid == nil {
		return "", nil
	}
	return *resp.Sid, nil
}
