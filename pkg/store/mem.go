package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fennelworks/convo/pkg/chat"
)

// Mem is an in-memory Store. It backs tests and offline use, and
// supports error injection so callers can exercise storage-failure
// paths.
type Mem struct {
	mu       sync.Mutex
	owners   map[string]string // session id -> owner
	titles   map[string]string
	created  map[string]time.Time
	updated  map[string]time.Time
	messages map[string][]chat.Message

	// FailNext, when set, is returned (wrapped) by the next mutating
	// call and then cleared.
	FailNext error
}

// NewMem creates an empty in-memory store.
func NewMem() *Mem {
	return &Mem{
		owners:   make(map[string]string),
		titles:   make(map[string]string),
		created:  make(map[string]time.Time),
		updated:  make(map[string]time.Time),
		messages: make(map[string][]chat.Message),
	}
}

func (m *Mem) takeInjected() error {
	err := m.FailNext
	m.FailNext = nil
	return err
}

func (m *Mem) CreateSession(ctx context.Context, owner, title string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeInjected(); err != nil {
		return "", chat.NewStorageError("create", err)
	}

	if title == "" {
		title = chat.DefaultTitle
	}
	id := uuid.New().String()
	now := time.Now()
	m.owners[id] = owner
	m.titles[id] = title
	m.created[id] = now
	m.updated[id] = now
	m.messages[id] = nil
	return id, nil
}

func (m *Mem) AppendMessage(ctx context.Context, sessionID string, msg chat.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeInjected(); err != nil {
		return chat.NewStorageError("append", err)
	}
	if _, ok := m.owners[sessionID]; !ok {
		return chat.NewStorageError("append", chat.ErrSessionNotFound)
	}

	if msg.ID == "" {
		msg.ID = chat.NewMessageID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	m.messages[sessionID] = append(m.messages[sessionID], msg)
	m.updated[sessionID] = time.Now()
	return nil
}

func (m *Mem) ListSessions(ctx context.Context, owner string) ([]chat.SessionSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []chat.SessionSummary
	for id, o := range m.owners {
		if o != owner {
			continue
		}
		out = append(out, chat.SessionSummary{
			ID:           id,
			Title:        m.titles[id],
			MessageCount: len(m.messages[id]),
			UpdatedAt:    m.updated[id],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (m *Mem) LoadSession(ctx context.Context, sessionID string) ([]chat.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeInjected(); err != nil {
		return nil, chat.NewStorageError("load", err)
	}
	msgs, ok := m.messages[sessionID]
	if !ok {
		return nil, chat.NewStorageError("load", chat.ErrSessionNotFound)
	}
	out := make([]chat.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (m *Mem) UpdateTitle(ctx context.Context, sessionID, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeInjected(); err != nil {
		return chat.NewStorageError("update_title", err)
	}
	if _, ok := m.owners[sessionID]; !ok {
		return chat.NewStorageError("update_title", chat.ErrSessionNotFound)
	}
	m.titles[sessionID] = title
	m.updated[sessionID] = time.Now()
	return nil
}

func (m *Mem) RemoveLastAssistant(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeInjected(); err != nil {
		return chat.NewStorageError("remove_last_assistant", err)
	}
	msgs := m.messages[sessionID]
	if n := len(msgs); n > 0 && msgs[n-1].Role == chat.RoleAssistant {
		m.messages[sessionID] = msgs[:n-1]
		m.updated[sessionID] = time.Now()
	}
	return nil
}

func (m *Mem) DeleteSession(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.takeInjected(); err != nil {
		return chat.NewStorageError("delete", err)
	}
	if _, ok := m.owners[sessionID]; !ok {
		return chat.NewStorageError("delete", chat.ErrSessionNotFound)
	}
	delete(m.owners, sessionID)
	delete(m.titles, sessionID)
	delete(m.created, sessionID)
	delete(m.updated, sessionID)
	delete(m.messages, sessionID)
	return nil
}

func (m *Mem) Close() error { return nil }
