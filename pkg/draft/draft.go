// Package draft owns the ephemeral input buffer and selection state for
// whichever session currently has UI focus.
package draft

import (
	"sync"

	"github.com/fennelworks/convo/pkg/chat"
)

// Update is a partial draft mutation: nil fields are left untouched.
type Update struct {
	Text              *string
	SelectedMode      *string
	SelectedPersonaID *string
}

// ChangeFunc is invoked (outside the store lock) after every Update,
// with the session the draft belongs to and the merged snapshot. The
// autosave scheduler hangs off this hook.
type ChangeFunc func(sessionID string, snap chat.Draft)

// Store holds the single in-progress draft. Purely in-memory and
// best-effort: no failure modes.
type Store struct {
	mu        sync.Mutex
	sessionID string
	current   chat.Draft
	onChange  ChangeFunc
}

// NewStore creates an empty draft store. onChange may be nil.
func NewStore(onChange ChangeFunc) *Store {
	return &Store{onChange: onChange}
}

// Focus binds the draft to a session, resetting the buffer. Called when
// a session gains UI focus (new session, switch).
func (s *Store) Focus(sessionID string) {
	s.mu.Lock()
	s.sessionID = sessionID
	s.current = chat.Draft{}
	s.mu.Unlock()
}

// Bind points the draft at a session without touching the buffer. Used
// when a session is created lazily mid-submit for text already typed;
// the turn may still fail and the text must survive that.
func (s *Store) Bind(sessionID string) {
	s.mu.Lock()
	s.sessionID = sessionID
	s.mu.Unlock()
}

// Update merges a partial update into the current draft and fires the
// change hook. Does not block on persistence.
func (s *Store) Update(u Update) {
	s.mu.Lock()
	if u.Text != nil {
		s.current.Text = *u.Text
	}
	if u.SelectedMode != nil {
		s.current.SelectedMode = *u.SelectedMode
	}
	if u.SelectedPersonaID != nil {
		s.current.SelectedPersonaID = *u.SelectedPersonaID
	}
	snap := s.current
	sessionID := s.sessionID
	onChange := s.onChange
	s.mu.Unlock()

	if onChange != nil && sessionID != "" {
		onChange(sessionID, snap)
	}
}

// Clear resets the draft buffer, keeping the session binding. Called
// after a successful submit or an explicit discard.
func (s *Store) Clear() {
	s.mu.Lock()
	s.current = chat.Draft{}
	s.mu.Unlock()
}

// Snapshot returns a read-only copy of the draft for submission.
func (s *Store) Snapshot() chat.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SessionID returns the session the draft is currently bound to.
func (s *Store) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}
