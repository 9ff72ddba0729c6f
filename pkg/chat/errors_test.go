package chat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTerminalError(t *testing.T) {
	inner := errors.New("connection refused")
	te := &TerminalError{Kind: KindNetwork, Attempts: 3, Err: inner}

	assert.ErrorIs(t, te, inner)
	assert.Contains(t, te.Error(), "3 attempts")
	assert.Contains(t, te.Error(), "network")

	t.Run("user message per kind", func(t *testing.T) {
		kinds := []FailureKind{KindNetwork, KindTimeout, KindServer, KindMalformed}
		seen := map[string]bool{}
		for _, kind := range kinds {
			msg := (&TerminalError{Kind: kind}).UserMessage()
			assert.NotEmpty(t, msg)
			assert.False(t, seen[msg], "message for %s not distinct", kind)
			seen[msg] = true
		}
	})
}

func TestNewStorageError(t *testing.T) {
	assert.NoError(t, NewStorageError("append", nil))

	inner := errors.New("disk full")
	err := NewStorageError("append", inner)
	var se *StorageError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, "append", se.Op)
	assert.ErrorIs(t, err, inner)

	// Double wrapping keeps the original op.
	again := NewStorageError("list", err)
	assert.ErrorAs(t, again, &se)
	assert.Equal(t, "append", se.Op)
}
