package draft

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennelworks/convo/pkg/chat"
)

func TestScratchRoundTrip(t *testing.T) {
	s, err := NewScratch(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	snap := chat.Draft{Text: "half-written", SelectedMode: chat.ModeArticle, SelectedPersonaID: "warm"}
	require.NoError(t, s.Save(context.Background(), "s1", snap))

	got, err := s.Load("s1")
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestScratchMissingIsEmpty(t *testing.T) {
	s, err := NewScratch(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	got, err := s.Load("never-saved")
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestScratchDiscard(t *testing.T) {
	s, err := NewScratch(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), "s1", chat.Draft{Text: "x"}))
	require.NoError(t, s.Discard("s1"))

	got, err := s.Load("s1")
	require.NoError(t, err)
	assert.True(t, got.Empty())

	// Discarding again is fine.
	assert.NoError(t, s.Discard("s1"))
}

func TestScratchRejectsPathyIDs(t *testing.T) {
	s, err := NewScratch(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	assert.Error(t, s.Save(context.Background(), "../escape", chat.Draft{}))
	assert.Error(t, s.Save(context.Background(), "a/b", chat.Draft{}))
	assert.Error(t, s.Save(context.Background(), "", chat.Draft{}))
}

func TestScratchSaveHonorsContext(t *testing.T) {
	s, err := NewScratch(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Save(ctx, "s1", chat.Draft{Text: "x"}))
}
