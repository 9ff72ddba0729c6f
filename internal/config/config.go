// Package config defines the engine configuration, its defaults, and
// validation.
package config

import (
	"encoding/json"
	"time"
)

// Config represents the main convo configuration
type Config struct {
	// Owner identifies whose sessions this process drives.
	Owner string `json:"owner" mapstructure:"owner"`

	// Provider selects the generation backend.
	Provider ProviderConfig `json:"provider" mapstructure:"provider"`

	// Gateway tunes retry behavior.
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Autosave tunes draft persistence.
	Autosave AutosaveConfig `json:"autosave" mapstructure:"autosave"`

	// Retention tunes the stale-session sweep.
	Retention RetentionConfig `json:"retention" mapstructure:"retention"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`

	// Metrics
	Metrics MetricsConfig `json:"metrics" mapstructure:"metrics"`

	// Data directory; the database, draft scratch files, and personas
	// live under it unless overridden.
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// DatabasePath overrides the default <data_dir>/convo.db.
	DatabasePath string `json:"database_path" mapstructure:"database_path"`

	// ScratchDir overrides the default <data_dir>/drafts.
	ScratchDir string `json:"scratch_dir" mapstructure:"scratch_dir"`

	// PersonaDir overrides the default <data_dir>/personas.
	PersonaDir string `json:"persona_dir" mapstructure:"persona_dir"`
}

// ProviderConfig holds generation provider configuration
type ProviderConfig struct {
	Name   string `json:"name" mapstructure:"name"` // anthropic, openai
	APIKey string `json:"api_key" mapstructure:"api_key"`
	Model  string `json:"model" mapstructure:"model"`
}

// GatewayConfig holds retry configuration
type GatewayConfig struct {
	MaxAttempts    int `json:"max_attempts" mapstructure:"max_attempts"`
	AttemptTimeout int `json:"attempt_timeout" mapstructure:"attempt_timeout"` // seconds
}

// AutosaveConfig holds draft autosave configuration
type AutosaveConfig struct {
	DebounceMs int `json:"debounce_ms" mapstructure:"debounce_ms"`
}

// RetentionConfig holds stale-session sweep configuration
type RetentionConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	MaxIdle  int    `json:"max_idle_days" mapstructure:"max_idle_days"`
	Schedule string `json:"schedule" mapstructure:"schedule"` // cron expression
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// MetricsConfig holds the metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Addr    string `json:"addr" mapstructure:"addr"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	return &Config{
		Owner: "local",
		Provider: ProviderConfig{
			Name:  "anthropic",
			Model: "claude-3-5-sonnet-20241022",
		},
		Gateway: GatewayConfig{
			MaxAttempts:    3,
			AttemptTimeout: 45,
		},
		Autosave: AutosaveConfig{
			DebounceMs: 2000,
		},
		Retention: RetentionConfig{
			Enabled:  false,
			MaxIdle:  90,
			Schedule: "0 3 * * *",
		},
		Logging: LoggingConfig{
			Level:     "info",
			Redaction: true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9190",
		},
	}
}

// Timeout returns the per-attempt timeout as a duration.
func (g GatewayConfig) Timeout() time.Duration {
	return time.Duration(g.AttemptTimeout) * time.Second
}

// Debounce returns the autosave quiet period as a duration.
func (a AutosaveConfig) Debounce() time.Duration {
	return time.Duration(a.DebounceMs) * time.Millisecond
}

// MaxIdleDuration returns the retention window as a duration.
func (r RetentionConfig) MaxIdleDuration() time.Duration {
	return time.Duration(r.MaxIdle) * 24 * time.Hour
}

// String returns a JSON representation of the config
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}
