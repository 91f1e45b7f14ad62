// Package config loads service configuration from environment variables
// using envconfig.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config contains all settings for the moderation service.
type Config struct {
	// --- Server ---
	Port      string `envconfig:"PORT" default:"18920"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`

	// --- Storage ---
	DBPath string `envconfig:"DB_PATH" default:"vinemod.db"`

	// --- Guardians ---
	// Path to the guardian roster JSON file. Empty disables all guardian
	// endpoints.
	GuardianRoster string `envconfig:"GUARDIAN_ROSTER" default:""`

	// --- Notifications ---
	// Webhook URL of the portal notification service. Empty falls back to
	// log-only delivery.
	NotifyWebhookURL string `envconfig:"NOTIFY_WEBHOOK_URL" default:""`

	// --- Moderation policy ---
	// Actions a suspension blocks. Read-only browsing and appealing are
	// never in this list.
	RestrictedActions []string `envconfig:"RESTRICTED_ACTIONS" default:"post,comment,like"`
	// Maximum reports per user per hour. Zero disables the limit.
	ReportRateLimit int `envconfig:"REPORT_RATE_LIMIT" default:"10"`

	// --- Tracing ---
	// Enables the OTLP trace exporter. The endpoint comes from the standard
	// OTEL_EXPORTER_OTLP_ENDPOINT variable.
	TracingEnabled bool `envconfig:"TRACING_ENABLED" default:"false"`

	// --- Expiry sweeper ---
	SweepInterval  time.Duration `envconfig:"SWEEP_INTERVAL" default:"2m"`
	SweepBatchSize int           `envconfig:"SWEEP_BATCH_SIZE" default:"100"`
}

func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH must not be empty")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be > 0")
	}
	if c.SweepBatchSize <= 0 {
		return fmt.Errorf("SWEEP_BATCH_SIZE must be > 0")
	}
	if c.ReportRateLimit < 0 {
		return fmt.Errorf("REPORT_RATE_LIMIT must be >= 0")
	}
	return nil
}

// Load reads environment variables and fills the Config struct.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
