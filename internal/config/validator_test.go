package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateAPIKey(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateAPIKey("sk-ant-abc123", "anthropic"))
	assert.Error(t, v.ValidateAPIKey("sk-abc123", "anthropic"))
	assert.NoError(t, v.ValidateAPIKey("sk-abc123", "openai"))
	assert.Error(t, v.ValidateAPIKey("pk-abc123", "openai"))
	assert.Error(t, v.ValidateAPIKey("", "anthropic"))
}

func TestValidateProvider(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateProvider("anthropic"))
	assert.NoError(t, v.ValidateProvider("openai"))
	assert.Error(t, v.ValidateProvider("bedrock"))
	assert.Error(t, v.ValidateProvider(""))
}

func TestValidateLogLevel(t *testing.T) {
	v := NewValidator()

	for _, level := range []string{"debug", "info", "warn", "error"} {
		assert.NoError(t, v.ValidateLogLevel(level))
	}
	assert.Error(t, v.ValidateLogLevel("trace"))
	assert.Error(t, v.ValidateLogLevel(""))
}

func TestValidateSchedule(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.ValidateSchedule("0 3 * * *"))
	assert.NoError(t, v.ValidateSchedule("*/5 * * * *"))
	assert.Error(t, v.ValidateSchedule("not a schedule"))
	assert.Error(t, v.ValidateSchedule("0 3 * *"))
}

func TestValidateConfig(t *testing.T) {
	v := NewValidator()

	t.Run("defaults are valid", func(t *testing.T) {
		assert.Empty(t, v.ValidateConfig(DefaultConfig()))
	})

	t.Run("collects every problem", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Owner = ""
		cfg.Provider.Name = "bedrock"
		cfg.Logging.Level = "trace"
		cfg.Gateway.MaxAttempts = 0
		cfg.Autosave.DebounceMs = 0

		errs := v.ValidateConfig(cfg)
		assert.Len(t, errs, 5)
	})

	t.Run("retention validated only when enabled", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Retention.Enabled = false
		cfg.Retention.Schedule = "garbage"
		assert.Empty(t, v.ValidateConfig(cfg))

		cfg.Retention.Enabled = true
		assert.Len(t, v.ValidateConfig(cfg), 1)
	})
}
