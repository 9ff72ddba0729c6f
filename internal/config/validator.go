package config

import (
	"fmt"
	"strings"

	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAPIKey validates an API key format
func (v *Validator) ValidateAPIKey(key string, provider string) error {
	if key == "" {
		return fmt.Errorf("%s API key cannot be empty", provider)
	}

	switch provider {
	case "anthropic":
		if !strings.HasPrefix(key, "sk-ant-") {
			return fmt.Errorf("invalid Anthropic API key format (should start with sk-ant-)")
		}
	case "openai":
		if !strings.HasPrefix(key, "sk-") {
			return fmt.Errorf("invalid OpenAI API key format (should start with sk-)")
		}
	}

	return nil
}

// ValidateProvider validates the provider name
func (v *Validator) ValidateProvider(name string) error {
	switch name {
	case "anthropic", "openai":
		return nil
	default:
		return fmt.Errorf("unsupported provider: %s (must be anthropic or openai)", name)
	}
}

// ValidateLogLevel validates a log level
func (v *Validator) ValidateLogLevel(level string) error {
	switch level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", level)
	}
}

// ValidateSchedule validates a cron expression
func (v *Validator) ValidateSchedule(expr string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// ValidateConfig validates the whole configuration and returns all
// problems found.
func (v *Validator) ValidateConfig(cfg *Config) []error {
	var errs []error

	if cfg.Owner == "" {
		errs = append(errs, fmt.Errorf("owner cannot be empty"))
	}
	if err := v.ValidateProvider(cfg.Provider.Name); err != nil {
		errs = append(errs, err)
	}
	if err := v.ValidateLogLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if cfg.Gateway.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("gateway max_attempts must be at least 1"))
	}
	if cfg.Gateway.AttemptTimeout < 1 {
		errs = append(errs, fmt.Errorf("gateway attempt_timeout must be at least 1 second"))
	}
	if cfg.Autosave.DebounceMs < 1 {
		errs = append(errs, fmt.Errorf("autosave debounce_ms must be positive"))
	}
	if cfg.Retention.Enabled {
		if cfg.Retention.MaxIdle < 1 {
			errs = append(errs, fmt.Errorf("retention max_idle_days must be at least 1"))
		}
		if err := v.ValidateSchedule(cfg.Retention.Schedule); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}
