package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port        string
	Environment string
	DatabaseURL string
	FrontendURL string
	JWTSecret   string

	LogLevel  string
	LogFormat string

	UTCOffset      time.Duration
	Workers        int
	GatewayTimeout time.Duration
	SendRate       float64
	ReloadCron     string

	NotifierProvider string
	Twilio           TwilioConfig
	SNS              SNSConfig
	AiSensy          AiSensyConfig
	TemplateR1       string
	TemplateR2       string
}

type TwilioConfig struct {
	AccountSID     string
	AuthToken      string
	PhoneNumber    string
	WhatsAppNumber string
}

type SNSConfig struct {
	Region   string
	SenderID string
}

type AiSensyConfig struct {
	URL          string
	APIKey       string
	CampaignName string
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	offset, err := ParseUTCOffset(v.GetString("REMINDER_UTC_OFFSET"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:        v.GetString("PORT"),
		Environment: v.GetString("APP_ENV"),
		DatabaseURL: v.GetString("DB_URL"),
		FrontendURL: v.GetString("FRONTEND_URL"),
		JWTSecret:   v.GetString("JWT_SECRET"),

		LogLevel:  strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat: strings.ToLower(v.GetString("LOG_FORMAT")),

		UTCOffset:      offset,
		Workers:        v.GetInt("REMINDER_WORKERS"),
		GatewayTimeout: v.GetDuration("GATEWAY_TIMEOUT"),
		SendRate:       v.GetFloat64("GATEWAY_RATE"),
		ReloadCron:     strings.TrimSpace(v.GetString("RELOAD_CRON")),

		NotifierProvider: strings.ToLower(v.GetString("NOTIFIER_PROVIDER")),
		Twilio: TwilioConfig{
			AccountSID:     v.GetString("TWILIO_ACCOUNT_SID"),
			AuthToken:      v.GetString("TWILIO_AUTH_TOKEN"),
			PhoneNumber:    v.GetString("TWILIO_PHONE_NUMBER"),
			WhatsAppNumber: v.GetString("TWILIO_WHATSAPP_NUMBER"),
		},
		SNS: SNSConfig{
			Region:   v.GetString("AWS_REGION"),
			SenderID: v.GetString("SNS_SENDER_ID"),
		},
		AiSensy: AiSensyConfig{
			URL:          v.GetString("AISENSY_URL"),
			APIKey:       v.GetString("AISENSY_API_KEY"),
			CampaignName: v.GetString("AISENSY_CAMPAIGN"),
		},
		TemplateR1: v.GetString("REMINDER_TEMPLATE_R1"),
		TemplateR2: v.GetString("REMINDER_TEMPLATE_R2"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "3001")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("REMINDER_UTC_OFFSET", "+05:30")
	v.SetDefault("REMINDER_WORKERS", 4)
	v.SetDefault("GATEWAY_TIMEOUT", "10s")
	v.SetDefault("NOTIFIER_PROVIDER", "twilio")
	v.SetDefault("AWS_REGION", "ap-south-1")
	v.SetDefault("AISENSY_CAMPAIGN", "schedule100")
}

func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DB_URL is required")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("REMINDER_WORKERS must be positive, got %d", c.Workers)
	}
	if c.GatewayTimeout <= 0 {
		return fmt.Errorf("GATEWAY_TIMEOUT must be positive")
	}
	if c.SendRate < 0 {
		return fmt.Errorf("GATEWAY_RATE must not be negative")
	}
	switch c.NotifierProvider {
	case "twilio":
		if c.Twilio.AccountSID == "" || c.Twilio.AuthToken == "" {
			return fmt.Errorf("TWILIO_ACCOUNT_SID and TWILIO_AUTH_TOKEN are required")
		}
		if c.Twilio.PhoneNumber == "" && c.Twilio.WhatsAppNumber == "" {
			return fmt.Errorf("TWILIO_PHONE_NUMBER or TWILIO_WHATSAPP_NUMBER is required")
		}
	case "sns":
		if c.SNS.Region == "" {
			return fmt.Errorf("AWS_REGION is required")
		}
	case "aisensy":
		if c.AiSensy.APIKey == "" {
			return fmt.Errorf("AISENSY_API_KEY is required")
		}
	default:
		return fmt.Errorf("unknown NOTIFIER_PROVIDER %q", c.NotifierProvider)
	}
	return nil
}

// ParseUTCOffset parses "+05:30", "-04:00", "0530" or "Z".
func ParseUTCOffset(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "Z" || strings.EqualFold(s, "UTC") {
		return 0, nil
	}

	sign := time.Duration(1)
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		sign = -1
		s = s[1:]
	}
	s = strings.Replace(s, ":", "", 1)
	if len(s) != 4 {
		return 0, fmt.Errorf("invalid UTC offset %q", s)
	}
	h, err := strconv.Atoi(s[:2])
	if err != nil {
		return 0, fmt.Errorf("invalid UTC offset hours %q", s)
	}
	m, err := strconv.Atoi(s[2:])
	if err != nil || h > 14 || m > 59 {
		return 0, fmt.Errorf("invalid UTC offset %q", s)
	}
	return sign * (time.Duration(h)*time.Hour + time.Duration(m)*time.Minute), nil
}
