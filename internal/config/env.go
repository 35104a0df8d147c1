package config

import (
	"strings"

	"github.com/caarlos0/env/v11"
)

// envOverrides are the environment variables honored on top of the config file.
type envOverrides struct {
	Deployment         string `env:"BIZASSIST_DEPLOYMENT"`
	Port               int    `env:"PORT"`
	WebsocketPort      int    `env:"WEBSOCKET_PORT"`
	OllamaURL          string `env:"OLLAMA_URL"`
	OllamaAPIBaseURL   string `env:"OLLAMA_API_BASE_URL"`
	OpenAIAPIKey       string `env:"OPENAI_API_KEY"`
	ReminderWebhookURL string `env:"N8N_REMINDER_WEBHOOK_URL"`
	JWTSecret          string `env:"JWT_SECRET"`
	PatientJWTSecret   string `env:"PATIENT_JWT_SECRET"`
	DatabaseURL        string `env:"DATABASE_URL"`
	DatabaseDriver     string `env:"DATABASE_DRIVER"`
}

// ApplyEnv overlays set environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return err
	}

	if o.Deployment != "" {
		cfg.General.Deployment = o.Deployment
	}
	if o.Port != 0 {
		cfg.Server.Port = o.Port
	}
	if o.WebsocketPort != 0 {
		cfg.Realtime.Port = o.WebsocketPort
	}

	ollamaURL := o.OllamaURL
	if ollamaURL == "" {
		ollamaURL = o.OllamaAPIBaseURL
	}
	if ollamaURL != "" {
		pc := cfg.Providers["ollama"]
		pc.Enabled = true
		pc.APIBase = ollamaURL
		setProvider(cfg, "ollama", pc)
	}
	if o.OpenAIAPIKey != "" {
		pc := cfg.Providers["openai"]
		pc.Enabled = true
		pc.APIKey = o.OpenAIAPIKey
		setProvider(cfg, "openai", pc)
	}

	if o.ReminderWebhookURL != "" {
		cfg.Workflow.ReminderWebhookURL = o.ReminderWebhookURL
	}
	if o.JWTSecret != "" {
		cfg.Auth.JWTSecret = o.JWTSecret
	}
	if o.PatientJWTSecret != "" {
		cfg.Auth.PatientJWTSecret = o.PatientJWTSecret
	}

	if o.DatabaseURL != "" {
		cfg.Database.DSN = o.DatabaseURL
		if strings.HasPrefix(o.DatabaseURL, "postgres://") || strings.HasPrefix(o.DatabaseURL, "postgresql://") {
			cfg.Database.Driver = "postgres"
		}
	}
	if o.DatabaseDriver != "" {
		cfg.Database.Driver = o.DatabaseDriver
	}
	return nil
}

func setProvider(cfg *Config, name string, pc ProviderConfig) {
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	cfg.Providers[name] = pc
}
