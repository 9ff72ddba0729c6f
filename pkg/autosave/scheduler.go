// Package autosave coalesces rapid draft mutations into a single
// persistence call per quiet period. Trailing-edge debounce only: the
// persisted payload always reflects settled state, never a partial
// keystroke burst.
package autosave

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fennelworks/convo/internal/observability"
	"github.com/fennelworks/convo/pkg/chat"
	"github.com/fennelworks/convo/pkg/lane"
)

// DefaultInterval is the quiet period before a draft is persisted.
const DefaultInterval = 2 * time.Second

// Persister is the autosave target (the draft scratch store).
type Persister interface {
	Save(ctx context.Context, sessionID string, snap chat.Draft) error
}

// Discarder is implemented by persisters that can remove a saved draft.
type Discarder interface {
	Discard(sessionID string) error
}

// Scheduler debounces draft-change events per session and serializes
// the resulting persistence calls per session id.
type Scheduler struct {
	persister Persister
	interval  time.Duration
	queue     *lane.Queue
	logger    zerolog.Logger

	mu      sync.Mutex
	timers  map[string]*time.Timer
	latest  map[string]chat.Draft
	stopped bool

	// OnError, when set, receives persistence failures. Failures are
	// never retried automatically; the next edit naturally tries again.
	OnError func(sessionID string, err error)
}

// New creates a scheduler flushing through p after interval of quiet.
// An interval of zero selects the default.
func New(p Persister, interval time.Duration, logger zerolog.Logger) *Scheduler {
	observability.EnsureRegistered()

	if interval <= 0 {
		interval = DefaultInterval
	}
	l := logger.With().Str("component", "autosave").Logger()
	return &Scheduler{
		persister: p,
		interval:  interval,
		queue:     lane.New(l),
		logger:    l,
		timers:    make(map[string]*time.Timer),
		latest:    make(map[string]chat.Draft),
	}
}

// Notify records the latest draft snapshot for a session and restarts
// its debounce timer. Safe to call from the draft store's change hook.
func (s *Scheduler) Notify(sessionID string, snap chat.Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	s.latest[sessionID] = snap

	if timer, ok := s.timers[sessionID]; ok {
		timer.Stop()
	}
	s.timers[sessionID] = time.AfterFunc(s.interval, func() {
		s.fire(sessionID)
	})
}

// fire runs when a debounce timer elapses uncontested: exactly one
// persistence call with the latest snapshot, queued behind any persist
// still in flight for the same session.
func (s *Scheduler) fire(sessionID string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.timers, sessionID)
	snap, ok := s.latest[sessionID]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.latest, sessionID)
	s.mu.Unlock()

	s.queue.Go(context.Background(), sessionID, func(ctx context.Context) error {
		return s.persist(ctx, sessionID, snap)
	}, func(err error) {
		if err != nil && err != lane.ErrCancelled {
			s.logger.Warn().Str("session_id", sessionID).Err(err).Msg("Draft autosave failed")
			if s.OnError != nil {
				s.OnError(sessionID, err)
			}
		}
	})
}

func (s *Scheduler) persist(ctx context.Context, sessionID string, snap chat.Draft) error {
	start := time.Now()
	err := s.persister.Save(ctx, sessionID, snap)
	observability.RecordAutosave(time.Since(start), err == nil)
	return err
}

// CancelSession drops the pending timer, latest snapshot, and queued
// persists for a session. Called on session switch or delete so an
// orphaned draft is never persisted.
func (s *Scheduler) CancelSession(sessionID string) {
	s.mu.Lock()
	if timer, ok := s.timers[sessionID]; ok {
		timer.Stop()
		delete(s.timers, sessionID)
	}
	delete(s.latest, sessionID)
	s.mu.Unlock()

	s.queue.Cancel(sessionID)
}

// Discard drops the session's pending work and removes its saved
// draft, when the persister supports removal. Called after a submit is
// accepted or a session is deleted so a stale draft never resurfaces.
func (s *Scheduler) Discard(sessionID string) error {
	s.CancelSession(sessionID)
	if d, ok := s.persister.(Discarder); ok {
		return d.Discard(sessionID)
	}
	return nil
}

// Flush persists the pending snapshot for a session immediately,
// bypassing the quiet period. Used on shutdown.
func (s *Scheduler) Flush(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	if timer, ok := s.timers[sessionID]; ok {
		timer.Stop()
		delete(s.timers, sessionID)
	}
	snap, ok := s.latest[sessionID]
	delete(s.latest, sessionID)
	s.mu.Unlock()

	if !ok {
		return nil
	}
	return s.queue.Do(ctx, sessionID, func(ctx context.Context) error {
		return s.persist(ctx, sessionID, snap)
	})
}

// Close stops all timers and waits for in-flight persists.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	s.stopped = true
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
	clear(s.latest)
	s.mu.Unlock()

	return s.queue.Close()
}
