// Package store defines the persistence collaborator consumed by the
// session engine, plus the SQLite and in-memory implementations.
package store

import (
	"context"

	"github.com/fennelworks/convo/pkg/chat"
)

// Store is the durable backing for sessions and messages. Sessions are
// partitioned per owner; implementations must never return one owner's
// sessions to another. All failures are *chat.StorageError.
type Store interface {
	// CreateSession allocates a new session for owner and returns its id.
	CreateSession(ctx context.Context, owner, title string) (string, error)

	// AppendMessage durably appends msg to the named session and
	// refreshes the session's updated-at timestamp.
	AppendMessage(ctx context.Context, sessionID string, msg chat.Message) error

	// ListSessions returns owner's sessions, most recently updated
	// first, with message counts.
	ListSessions(ctx context.Context, owner string) ([]chat.SessionSummary, error)

	// LoadSession returns the full ordered message history.
	LoadSession(ctx context.Context, sessionID string) ([]chat.Message, error)

	// UpdateTitle replaces the session title.
	UpdateTitle(ctx context.Context, sessionID, title string) error

	// RemoveLastAssistant deletes the session's final message if it is
	// an assistant message; a no-op otherwise. Keeps the durable history
	// in step with regeneration.
	RemoveLastAssistant(ctx context.Context, sessionID string) error

	// DeleteSession removes the session and its messages.
	DeleteSession(ctx context.Context, sessionID string) error

	// Close releases backing resources.
	Close() error
}
