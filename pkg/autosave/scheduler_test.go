package autosave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennelworks/convo/pkg/chat"
)

type recordingPersister struct {
	mu    sync.Mutex
	saves []chat.Draft
	byID  map[string][]chat.Draft
	err   error
}

func newRecorder() *recordingPersister {
	return &recordingPersister{byID: make(map[string][]chat.Draft)}
}

func (r *recordingPersister) Save(ctx context.Context, sessionID string, snap chat.Draft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.saves = append(r.saves, snap)
	r.byID[sessionID] = append(r.byID[sessionID], snap)
	return nil
}

func (r *recordingPersister) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.saves)
}

func (r *recordingPersister) last() chat.Draft {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves[len(r.saves)-1]
}

func TestDebounceCollapsesBurst(t *testing.T) {
	rec := newRecorder()
	s := New(rec, 30*time.Millisecond, zerolog.Nop())
	defer s.Close()

	// A typing burst: only the settled snapshot may be persisted.
	for _, text := range []string{"h", "he", "hel", "hell", "hello"} {
		s.Notify("s1", chat.Draft{Text: text})
		time.Sleep(5 * time.Millisecond)
	}

	require.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "hello", rec.last().Text)

	// No further fires after the quiet period.
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestSeparateSessionsDebounceIndependently(t *testing.T) {
	rec := newRecorder()
	s := New(rec, 20*time.Millisecond, zerolog.Nop())
	defer s.Close()

	s.Notify("a", chat.Draft{Text: "for a"})
	s.Notify("b", chat.Draft{Text: "for b"})

	require.Eventually(t, func() bool { return rec.count() == 2 }, time.Second, 5*time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, "for a", rec.byID["a"][0].Text)
	assert.Equal(t, "for b", rec.byID["b"][0].Text)
}

func TestCancelSessionDropsPending(t *testing.T) {
	rec := newRecorder()
	s := New(rec, 30*time.Millisecond, zerolog.Nop())
	defer s.Close()

	s.Notify("s1", chat.Draft{Text: "doomed"})
	s.CancelSession("s1")

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, rec.count(), "cancelled session must not be persisted")
}

func TestFlushPersistsImmediately(t *testing.T) {
	rec := newRecorder()
	s := New(rec, time.Hour, zerolog.Nop())
	defer s.Close()

	s.Notify("s1", chat.Draft{Text: "now"})
	require.NoError(t, s.Flush(context.Background(), "s1"))
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, "now", rec.last().Text)

	// Nothing pending means nothing to do.
	require.NoError(t, s.Flush(context.Background(), "s1"))
	assert.Equal(t, 1, rec.count())
}

func TestFailureReportedNotRetried(t *testing.T) {
	rec := newRecorder()
	rec.err = errors.New("disk full")
	s := New(rec, 10*time.Millisecond, zerolog.Nop())
	defer s.Close()

	var mu sync.Mutex
	var reported error
	s.OnError = func(sessionID string, err error) {
		mu.Lock()
		reported = err
		mu.Unlock()
	}

	s.Notify("s1", chat.Draft{Text: "x"})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return reported != nil
	}, time.Second, 5*time.Millisecond)

	// No automatic retry; the failed snapshot is gone until the next
	// edit.
	time.Sleep(50 * time.Millisecond)
	assert.Zero(t, rec.count())
}

func TestNotifyAfterCloseIgnored(t *testing.T) {
	rec := newRecorder()
	s := New(rec, 10*time.Millisecond, zerolog.Nop())
	require.NoError(t, s.Close())

	s.Notify("s1", chat.Draft{Text: "late"})
	time.Sleep(40 * time.Millisecond)
	assert.Zero(t, rec.count())
}

type discardingPersister struct {
	recordingPersister
	discardMu sync.Mutex
	discarded []string
}

func (d *discardingPersister) Discard(sessionID string) error {
	d.discardMu.Lock()
	defer d.discardMu.Unlock()
	d.discarded = append(d.discarded, sessionID)
	return nil
}

func TestDiscardDropsPendingAndRemovesDraft(t *testing.T) {
	rec := &discardingPersister{recordingPersister: recordingPersister{byID: make(map[string][]chat.Draft)}}
	s := New(rec, time.Hour, zerolog.Nop())
	defer s.Close()

	s.Notify("s1", chat.Draft{Text: "do not persist"})
	require.NoError(t, s.Discard("s1"))

	rec.discardMu.Lock()
	assert.Equal(t, []string{"s1"}, rec.discarded)
	rec.discardMu.Unlock()
	assert.Zero(t, rec.count())

	// Flushing afterwards finds nothing pending.
	require.NoError(t, s.Flush(context.Background(), "s1"))
	assert.Zero(t, rec.count())
}

func TestDiscardWithoutDiscarderIsCancelOnly(t *testing.T) {
	rec := newRecorder()
	s := New(rec, time.Hour, zerolog.Nop())
	defer s.Close()

	s.Notify("s1", chat.Draft{Text: "pending"})
	require.NoError(t, s.Discard("s1"))
	require.NoError(t, s.Flush(context.Background(), "s1"))
	assert.Zero(t, rec.count())
}
