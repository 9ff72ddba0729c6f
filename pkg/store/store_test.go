package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennelworks/convo/pkg/chat"
)

// both implementations must satisfy the same behavior, so every test
// runs against each.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	return map[string]Store{
		"sqlite": sqlite,
		"mem":    NewMem(),
	}
}

func TestCreateAndLoad(t *testing.T) {
	ctx := context.Background()
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			id, err := st.CreateSession(ctx, "alice", "")
			require.NoError(t, err)
			assert.NotEmpty(t, id)

			msgs, err := st.LoadSession(ctx, id)
			require.NoError(t, err)
			assert.Empty(t, msgs)

			sums, err := st.ListSessions(ctx, "alice")
			require.NoError(t, err)
			require.Len(t, sums, 1)
			assert.Equal(t, chat.DefaultTitle, sums[0].Title)
		})
	}
}

func TestAppendAndOrder(t *testing.T) {
	ctx := context.Background()
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			id, err := st.CreateSession(ctx, "alice", "t")
			require.NoError(t, err)

			require.NoError(t, st.AppendMessage(ctx, id, chat.Message{Role: chat.RoleUser, Content: "one", Mode: chat.ModeEmail}))
			require.NoError(t, st.AppendMessage(ctx, id, chat.Message{Role: chat.RoleAssistant, Content: "two", ErrorFlag: true}))

			msgs, err := st.LoadSession(ctx, id)
			require.NoError(t, err)
			require.Len(t, msgs, 2)
			assert.Equal(t, "one", msgs[0].Content)
			assert.Equal(t, chat.ModeEmail, msgs[0].Mode)
			assert.Equal(t, chat.RoleAssistant, msgs[1].Role)
			assert.True(t, msgs[1].ErrorFlag)
			assert.NotEmpty(t, msgs[0].ID)

			sums, err := st.ListSessions(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, 2, sums[0].MessageCount)
		})
	}
}

func TestAppendUnknownSession(t *testing.T) {
	ctx := context.Background()
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := st.AppendMessage(ctx, "missing", chat.Message{Role: chat.RoleUser, Content: "x"})
			var se *chat.StorageError
			assert.ErrorAs(t, err, &se)
			assert.ErrorIs(t, err, chat.ErrSessionNotFound)
		})
	}
}

func TestOwnerPartitioning(t *testing.T) {
	ctx := context.Background()
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := st.CreateSession(ctx, "alice", "a")
			require.NoError(t, err)
			_, err = st.CreateSession(ctx, "bob", "b")
			require.NoError(t, err)

			sums, err := st.ListSessions(ctx, "alice")
			require.NoError(t, err)
			require.Len(t, sums, 1)
			assert.Equal(t, "a", sums[0].Title)
		})
	}
}

func TestListOrderedByUpdate(t *testing.T) {
	ctx := context.Background()
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			first, err := st.CreateSession(ctx, "alice", "first")
			require.NoError(t, err)
			second, err := st.CreateSession(ctx, "alice", "second")
			require.NoError(t, err)

			// Touching the older session moves it to the front.
			require.NoError(t, st.AppendMessage(ctx, first, chat.Message{Role: chat.RoleUser, Content: "x"}))

			sums, err := st.ListSessions(ctx, "alice")
			require.NoError(t, err)
			require.Len(t, sums, 2)
			assert.Equal(t, first, sums[0].ID)
			assert.Equal(t, second, sums[1].ID)
		})
	}
}

func TestUpdateTitle(t *testing.T) {
	ctx := context.Background()
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			id, err := st.CreateSession(ctx, "alice", "")
			require.NoError(t, err)

			require.NoError(t, st.UpdateTitle(ctx, id, "hello"))
			sums, err := st.ListSessions(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, "hello", sums[0].Title)

			assert.Error(t, st.UpdateTitle(ctx, "missing", "x"))
		})
	}
}

func TestRemoveLastAssistant(t *testing.T) {
	ctx := context.Background()
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			id, err := st.CreateSession(ctx, "alice", "t")
			require.NoError(t, err)
			require.NoError(t, st.AppendMessage(ctx, id, chat.Message{Role: chat.RoleUser, Content: "q"}))
			require.NoError(t, st.AppendMessage(ctx, id, chat.Message{Role: chat.RoleAssistant, Content: "a"}))

			require.NoError(t, st.RemoveLastAssistant(ctx, id))
			msgs, err := st.LoadSession(ctx, id)
			require.NoError(t, err)
			require.Len(t, msgs, 1)
			assert.Equal(t, chat.RoleUser, msgs[0].Role)

			// A user tail is left alone.
			require.NoError(t, st.RemoveLastAssistant(ctx, id))
			msgs, err = st.LoadSession(ctx, id)
			require.NoError(t, err)
			assert.Len(t, msgs, 1)
		})
	}
}

func TestDeleteSession(t *testing.T) {
	ctx := context.Background()
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			id, err := st.CreateSession(ctx, "alice", "t")
			require.NoError(t, err)
			require.NoError(t, st.AppendMessage(ctx, id, chat.Message{Role: chat.RoleUser, Content: "x"}))

			require.NoError(t, st.DeleteSession(ctx, id))
			_, err = st.LoadSession(ctx, id)
			assert.ErrorIs(t, err, chat.ErrSessionNotFound)
			assert.Error(t, st.DeleteSession(ctx, id))
		})
	}
}

func TestMemFailureInjection(t *testing.T) {
	ctx := context.Background()
	m := NewMem()

	m.FailNext = errors.New("disk full")
	_, err := m.CreateSession(ctx, "alice", "t")
	var se *chat.StorageError
	assert.ErrorAs(t, err, &se)

	// Injection is one-shot.
	_, err = m.CreateSession(ctx, "alice", "t")
	assert.NoError(t, err)
}
