package chat

import (
	"strings"
	"time"
	"unicode/utf8"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultTitle is the placeholder title a session carries until one is
// derived from its first user message.
const DefaultTitle = "New Chat"

// TitleMaxLen is the maximum length of a derived session title.
const TitleMaxLen = 50

// Message represents a single conversation turn
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Mode      string    `json:"mode,omitempty"`
	PersonaID string    `json:"persona_id,omitempty"`
	ErrorFlag bool      `json:"error_flag,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is one conversation thread: an opaque id, an owner, and an
// ordered message list. The message sequence is append-only except for
// the single remove-last-assistant operation used by regeneration.
type Session struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionSummary is the listing view of a session as returned by the
// persistence collaborator.
type SessionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Draft holds the not-yet-submitted input buffer plus UI selection state.
// Ephemeral: never written to the permanent store.
type Draft struct {
	Text              string `json:"text"`
	SelectedMode      string `json:"selected_mode,omitempty"`
	SelectedPersonaID string `json:"selected_persona_id,omitempty"`
}

// Empty reports whether the draft text is blank or whitespace-only.
func (d Draft) Empty() bool {
	return strings.TrimSpace(d.Text) == ""
}

// NewMessageID allocates a message id.
func NewMessageID() string {
	id, _ := gonanoid.New()
	return id
}

// Clone returns a deep copy of the session so callers can never mutate
// registry-held state through a returned value.
func (s Session) Clone() Session {
	out := s
	out.Messages = make([]Message, len(s.Messages))
	copy(out.Messages, s.Messages)
	return out
}

// LastMessage returns the final message in the session, if any.
func (s Session) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// DeriveTitle produces a session title from the first user message:
// the text as-is when it fits, otherwise the first 47 characters plus
// an ellipsis.
func DeriveTitle(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= TitleMaxLen {
		return text
	}
	runes := []rune(text)
	return string(runes[:TitleMaxLen-3]) + "..."
}
