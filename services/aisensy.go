package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"leadreminder-backend/models"
)

const DefaultAiSensyURL = "https://backend.aisensy.com/campaign/t1/api/v2"

type AiSensyConfig struct {
	URL          string
	APIKey       string
	CampaignName string
	Timeout      time.Duration
}

// AiSensyNotifier triggers a WhatsApp campaign whose template takes the
// appointment date and time as parameters.
type AiSensyNotifier struct {
	cfg    AiSensyConfig
	client *http.Client
}

type aiSensyRequest struct {
	APIKey         string   `json:"apiKey"`
	CampaignName   string   `json:"campaignName"`
	Destination    string   `json:"destination"`
	UserName       string   `json:"userName"`
	TemplateParams []string `json:"templateParams"`
}

func NewAiSensyNotifier(cfg AiSensyConfig) *AiSensyNotifier {
	if cfg.URL == "" {
		cfg.URL = DefaultAiSensyURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &AiSensyNotifier{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (n *AiSensyNotifier) Channel(string) string {
	return "whatsapp"
}

func (n *AiSensyNotifier) Send(ctx context.Context, msg models.Notification) (string, error) {
	body, err := json.Marshal(aiSensyRequest{
		APIKey:         n.cfg.APIKey,
		CampaignName:   n.cfg.CampaignName,
		Destination:    msg.Phone,
		UserName:       msg.ParentsName,
		TemplateParams: []string{msg.Date, msg.Time},
	})
	if err != nil {
		return "", &GatewayError{Provider: "aisensy", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return "", &GatewayError{Provider: "aisensy", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", &GatewayError{Provider: "aisensy", Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &GatewayError{
			Provider:   "aisensy",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("API call failed: %s", bytes.TrimSpace(raw)),
		}
	}

	var result struct {
		SubmittedMessageID string `json:"submitted_message_id"`
	}
	_ = json.Unmarshal(raw, &result)
	return result.SubmittedMessageID, nil
}
