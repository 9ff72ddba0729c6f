// Package registry holds the authoritative in-memory view of sessions
// and the single "active session" pointer. All mutation goes through one
// mutex so concurrent callers always observe a serialized view.
package registry

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fennelworks/convo/internal/observability"
	"github.com/fennelworks/convo/pkg/chat"
	"github.com/fennelworks/convo/pkg/store"
)

// Registry maps session ids to their message history and metadata.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*chat.Session
	active   string

	store  store.Store
	logger zerolog.Logger
}

// New creates a Registry backed by st.
func New(st store.Store, logger zerolog.Logger) *Registry {
	observability.EnsureRegistered()

	return &Registry{
		sessions: make(map[string]*chat.Session),
		store:    st,
		logger:   logger.With().Str("component", "registry").Logger(),
	}
}

// Create allocates a new session for owner through the backing store and
// caches it. The session is NOT made active; callers must not treat it
// as active until creation has fully succeeded.
func (r *Registry) Create(ctx context.Context, owner string) (chat.Session, error) {
	id, err := r.store.CreateSession(ctx, owner, chat.DefaultTitle)
	if err != nil {
		return chat.Session{}, err
	}

	now := time.Now()
	s := &chat.Session{
		ID:        id,
		Owner:     owner,
		Title:     chat.DefaultTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	r.sessions[id] = s
	count := len(r.sessions)
	r.mu.Unlock()

	observability.SetOpenSessions(count)
	r.logger.Info().Str("session_id", id).Msg("Session created")
	return s.Clone(), nil
}

// Put caches a session loaded from elsewhere (e.g. a store fetch during
// a session switch), replacing any cached copy.
func (r *Registry) Put(s chat.Session) {
	c := s.Clone()

	r.mu.Lock()
	r.sessions[s.ID] = &c
	count := len(r.sessions)
	r.mu.Unlock()

	observability.SetOpenSessions(count)
}

// Get returns a copy of the named session.
func (r *Registry) Get(id string) (chat.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return chat.Session{}, chat.ErrSessionNotFound
	}
	return s.Clone(), nil
}

// IsCached reports whether the session is held in memory.
func (r *Registry) IsCached(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[id]
	return ok
}

// SetActive switches the current pointer. The session must be cached.
func (r *Registry) SetActive(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[id]; !ok {
		return chat.ErrSessionNotFound
	}
	r.active = id
	return nil
}

// Active returns the current active session id, or "" when none.
func (r *Registry) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Append appends msg to the named session regardless of whether it is
// active, so a result that completes after a switch still lands in the
// conversation it belongs to. Returns a copy of the updated session.
func (r *Registry) Append(id string, msg chat.Message) (chat.Session, error) {
	if msg.ID == "" {
		msg.ID = chat.NewMessageID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return chat.Session{}, chat.ErrSessionNotFound
	}
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = time.Now()
	return s.Clone(), nil
}

// SetTitle replaces the cached session title.
func (r *Registry) SetTitle(id, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return chat.ErrSessionNotFound
	}
	s.Title = title
	s.UpdatedAt = time.Now()
	return nil
}

// RemoveLastAssistant removes the final message of the session if it is
// an assistant message. A no-op (false) otherwise; never an error, per
// the regenerate contract.
func (r *Registry) RemoveLastAssistant(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	n := len(s.Messages)
	if n == 0 || s.Messages[n-1].Role != chat.RoleAssistant {
		return false
	}
	s.Messages = s.Messages[:n-1]
	s.UpdatedAt = time.Now()
	return true
}

// Delete removes the session from the registry. If it was active the
// active pointer becomes empty; the caller must create or select a new
// session before submitting again.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	if r.active == id {
		r.active = ""
	}
	count := len(r.sessions)
	r.mu.Unlock()

	observability.SetOpenSessions(count)
	r.logger.Info().Str("session_id", id).Msg("Session removed from registry")
}
