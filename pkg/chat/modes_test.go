package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupMode(t *testing.T) {
	t.Run("temperatures per mode", func(t *testing.T) {
		expected := map[string]float64{
			ModeEmail:       0.5,
			ModeArticle:     0.7,
			ModeSocialMedia: 0.8,
			ModeRewrite:     0.4,
			ModeSummarize:   0.3,
			ModeBrainstorm:  0.9,
			ModeAnalyze:     0.4,
		}
		for id, temp := range expected {
			m, ok := LookupMode(id)
			assert.True(t, ok, id)
			assert.Equal(t, temp, m.Temperature, id)
			assert.NotEmpty(t, m.Instruction, id)
		}
	})

	t.Run("empty id means no mode with default temperature", func(t *testing.T) {
		m, ok := LookupMode("")
		assert.True(t, ok)
		assert.Equal(t, DefaultTemperature, m.Temperature)
		assert.Empty(t, m.Instruction)
	})

	t.Run("unknown id rejected", func(t *testing.T) {
		_, ok := LookupMode("poetry")
		assert.False(t, ok)
	})
}

func TestModesOrdered(t *testing.T) {
	ms := Modes()
	assert.Len(t, ms, 7)
	assert.Equal(t, ModeEmail, ms[0].ID)
}
