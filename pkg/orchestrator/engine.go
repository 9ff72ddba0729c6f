// Package orchestrator sequences full submit-and-respond cycles and
// owns the active-session invariant end to end.
package orchestrator

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/fennelworks/convo/internal/observability"
	"github.com/fennelworks/convo/pkg/autosave"
	"github.com/fennelworks/convo/pkg/chat"
	"github.com/fennelworks/convo/pkg/draft"
	"github.com/fennelworks/convo/pkg/gateway"
	"github.com/fennelworks/convo/pkg/registry"
	"github.com/fennelworks/convo/pkg/store"
)

// Sender abstracts the request gateway so tests can script responses.
type Sender interface {
	Send(ctx context.Context, req gateway.Request) (string, error)
}

// VoiceResolver resolves a persona id to its rendered voice guide. An
// empty id resolves to an empty guide.
type VoiceResolver interface {
	GuideFor(id string) (string, error)
}

// Config wires the engine's collaborators.
type Config struct {
	Registry *registry.Registry
	Store    store.Store
	Sender   Sender
	Voices   VoiceResolver
	Drafts   *draft.Store
	Autosave *autosave.Scheduler

	// Owner identifies whose sessions this engine drives; lazy session
	// creation uses it.
	Owner string

	// Model pins the generation model. Empty selects the gateway
	// default.
	Model string

	Logger zerolog.Logger
}

// Engine drives conversations: it validates drafts, appends messages
// through the registry, calls the gateway, and keeps the durable store
// in step on a best-effort basis. One Engine serves one owner.
type Engine struct {
	reg      *registry.Registry
	store    store.Store
	sender   Sender
	voices   VoiceResolver
	drafts   *draft.Store
	autosave *autosave.Scheduler
	owner    string
	model    string
	logger   zerolog.Logger

	mu         sync.Mutex
	generating map[string]bool
	inflight   map[string]context.CancelFunc
}

// New creates an engine from cfg.
func New(cfg Config) *Engine {
	observability.EnsureRegistered()

	return &Engine{
		reg:        cfg.Registry,
		store:      cfg.Store,
		sender:     cfg.Sender,
		voices:     cfg.Voices,
		drafts:     cfg.Drafts,
		autosave:   cfg.Autosave,
		owner:      cfg.Owner,
		model:      cfg.Model,
		logger:     cfg.Logger.With().Str("component", "orchestrator").Logger(),
		generating: make(map[string]bool),
		inflight:   make(map[string]context.CancelFunc),
	}
}

// Generating reports whether a generation is in flight for the session.
func (e *Engine) Generating(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.generating[sessionID]
}

// Submit sends the current draft as a user turn on the session. An
// empty sessionID targets the active session, lazily creating one
// (exactly once) when none is active. The user message appears in the
// registry before the network call resolves; the assistant reply or an
// error-flagged placeholder follows when the gateway returns.
func (e *Engine) Submit(ctx context.Context, sessionID string) error {
	snap := e.drafts.Snapshot()
	if snap.Empty() {
		return chat.ErrEmptyInput
	}
	err := e.submitTurn(ctx, sessionID, snap, true)
	if err == nil || isTerminal(err) {
		// The turn was accepted, so the composer empties even when the
		// generation itself failed; retrying is regenerate's job.
		e.drafts.Clear()
		if id := e.drafts.SessionID(); id != "" {
			if derr := e.autosave.Discard(id); derr != nil {
				e.logger.Warn().Str("session_id", id).Err(derr).Msg("Draft scratch discard failed")
			}
		}
	}
	return err
}

// Regenerate retries the session's last turn: the trailing assistant
// message is removed and the preceding user text resubmitted with the
// currently selected mode and persona. A session whose last message is
// a user turn is left untouched.
func (e *Engine) Regenerate(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		sessionID = e.reg.Active()
	}
	if sessionID == "" {
		return chat.ErrNoActiveSession
	}

	s, err := e.reg.Get(sessionID)
	if err != nil {
		return err
	}
	n := len(s.Messages)
	if n < 2 || s.Messages[n-1].Role != chat.RoleAssistant || s.Messages[n-2].Role != chat.RoleUser {
		return nil
	}
	prior := s.Messages[n-2]

	if !e.reg.RemoveLastAssistant(sessionID) {
		return nil
	}
	if err := e.store.RemoveLastAssistant(ctx, sessionID); err != nil {
		e.logStorage(sessionID, err)
	}

	sel := e.drafts.Snapshot()
	return e.submitTurn(ctx, sessionID, chat.Draft{
		Text:              prior.Content,
		SelectedMode:      sel.SelectedMode,
		SelectedPersonaID: sel.SelectedPersonaID,
	}, false)
}

// submitTurn runs the full cycle for one user turn. With appendUser the
// draft text becomes a new user message; without it the session's
// existing trailing user message is the turn being answered, so only
// the assistant side changes (the regenerate path).
func (e *Engine) submitTurn(ctx context.Context, sessionID string, snap chat.Draft, appendUser bool) error {
	if _, ok := chat.LookupMode(snap.SelectedMode); !ok {
		return chat.ErrUnknownMode
	}
	guide, err := e.voices.GuideFor(snap.SelectedPersonaID)
	if err != nil {
		return err
	}

	sessionID, err = e.resolveSession(ctx, sessionID)
	if err != nil {
		return err
	}

	if !e.beginGenerating(sessionID) {
		return chat.ErrAlreadyGenerating
	}
	genCtx, cancel := context.WithCancel(ctx)
	e.setInflight(sessionID, cancel)
	defer func() {
		// The generating flag serializes submits per session, so the
		// inflight entry is ours to remove.
		e.clearInflight(sessionID)
		cancel()
		e.endGenerating(sessionID)
	}()

	var s chat.Session
	if appendUser {
		userMsg := chat.Message{
			Role:      chat.RoleUser,
			Content:   snap.Text,
			Mode:      snap.SelectedMode,
			PersonaID: snap.SelectedPersonaID,
		}
		s, err = e.reg.Append(sessionID, userMsg)
		if err != nil {
			return err
		}
		e.persistMessage(ctx, sessionID, s.Messages[len(s.Messages)-1])
	} else {
		s, err = e.reg.Get(sessionID)
		if err != nil {
			return err
		}
	}

	req, err := gateway.BuildRequest(s.Messages, snap.SelectedMode, guide, e.model)
	if err != nil {
		return err
	}

	text, err := e.sender.Send(genCtx, req)
	switch {
	case err == nil:
		e.appendAssistant(ctx, sessionID, chat.Message{
			Role:      chat.RoleAssistant,
			Content:   text,
			Mode:      snap.SelectedMode,
			PersonaID: snap.SelectedPersonaID,
		})
		e.maybeDeriveTitle(ctx, s)
		return nil

	case isTerminal(err):
		// The conversation must show what happened to the turn, so the
		// failure lands as an error-flagged assistant message.
		var te *chat.TerminalError
		errors.As(err, &te)
		e.appendAssistant(ctx, sessionID, chat.Message{
			Role:      chat.RoleAssistant,
			Content:   te.UserMessage(),
			ErrorFlag: true,
		})
		return err

	default:
		// Cancelled, usually by a session switch. The user message
		// stays; no placeholder is appended for a turn the caller
		// abandoned.
		return err
	}
}

// resolveSession maps an empty id to the active session, creating one
// for the configured owner when none is active. Creation is attempted
// exactly once; its failure surfaces as-is and nothing becomes active.
func (e *Engine) resolveSession(ctx context.Context, sessionID string) (string, error) {
	if sessionID != "" {
		return sessionID, nil
	}
	if id := e.reg.Active(); id != "" {
		return id, nil
	}
	if e.owner == "" {
		return "", chat.ErrNoActiveSession
	}

	s, err := e.reg.Create(ctx, e.owner)
	if err != nil {
		return "", err
	}
	if err := e.reg.SetActive(s.ID); err != nil {
		return "", err
	}
	e.drafts.Bind(s.ID)
	return s.ID, nil
}

// appendAssistant lands a gateway result in the session it was captured
// for, active or not, so a reply that completes after a switch still
// reaches its conversation.
func (e *Engine) appendAssistant(ctx context.Context, sessionID string, msg chat.Message) {
	s, err := e.reg.Append(sessionID, msg)
	if err != nil {
		e.logger.Warn().Str("session_id", sessionID).Err(err).Msg("Discarding result for removed session")
		return
	}
	if sessionID != e.reg.Active() {
		e.logger.Debug().Str("session_id", sessionID).Msg("Result appended to inactive session")
	}
	e.persistMessage(ctx, sessionID, s.Messages[len(s.Messages)-1])
}

// maybeDeriveTitle replaces the placeholder title with one derived from
// the first user message.
func (e *Engine) maybeDeriveTitle(ctx context.Context, s chat.Session) {
	if s.Title != chat.DefaultTitle {
		return
	}
	var first string
	for _, m := range s.Messages {
		if m.Role == chat.RoleUser {
			first = m.Content
			break
		}
	}
	if first == "" {
		return
	}
	title := chat.DeriveTitle(first)
	if err := e.reg.SetTitle(s.ID, title); err != nil {
		return
	}
	if err := e.store.UpdateTitle(ctx, s.ID, title); err != nil {
		e.logStorage(s.ID, err)
	}
}

// StartNewSession creates a session for the engine's owner and makes it
// active. Activation happens only after creation fully succeeds, so a
// half-created session is never visible as active.
func (e *Engine) StartNewSession(ctx context.Context) (chat.Session, error) {
	s, err := e.reg.Create(ctx, e.owner)
	if err != nil {
		return chat.Session{}, err
	}

	e.cancelInflightFor(e.reg.Active())
	if err := e.reg.SetActive(s.ID); err != nil {
		return chat.Session{}, err
	}
	e.drafts.Focus(s.ID)
	return s, nil
}

// SwitchSession makes sessionID active, fetching its history from the
// store when it is not cached. A failed fetch leaves the previous
// session active.
func (e *Engine) SwitchSession(ctx context.Context, sessionID string) error {
	if !e.reg.IsCached(sessionID) {
		msgs, err := e.store.LoadSession(ctx, sessionID)
		if err != nil {
			return err
		}
		summaries, err := e.store.ListSessions(ctx, e.owner)
		if err != nil {
			return err
		}
		s := chat.Session{ID: sessionID, Owner: e.owner, Title: chat.DefaultTitle, Messages: msgs}
		for _, sum := range summaries {
			if sum.ID == sessionID {
				s.Title = sum.Title
				s.UpdatedAt = sum.UpdatedAt
				break
			}
		}
		e.reg.Put(s)
	}

	prev := e.reg.Active()
	if err := e.reg.SetActive(sessionID); err != nil {
		return err
	}
	if prev != "" && prev != sessionID {
		e.autosave.CancelSession(prev)
		e.cancelInflightFor(prev)
	}
	e.drafts.Focus(sessionID)
	return nil
}

// DeleteSession removes the session everywhere. If it was active, no
// session is active afterwards.
func (e *Engine) DeleteSession(ctx context.Context, sessionID string) error {
	e.cancelInflightFor(sessionID)
	if err := e.autosave.Discard(sessionID); err != nil {
		e.logger.Warn().Str("session_id", sessionID).Err(err).Msg("Draft scratch discard failed")
	}

	if err := e.store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}
	e.reg.Delete(sessionID)
	if e.drafts.SessionID() == sessionID {
		e.drafts.Focus("")
	}
	return nil
}

// ListSessions returns the owner's sessions, newest first.
func (e *Engine) ListSessions(ctx context.Context) ([]chat.SessionSummary, error) {
	return e.store.ListSessions(ctx, e.owner)
}

func (e *Engine) beginGenerating(sessionID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.generating[sessionID] {
		return false
	}
	e.generating[sessionID] = true
	return true
}

func (e *Engine) endGenerating(sessionID string) {
	e.mu.Lock()
	delete(e.generating, sessionID)
	e.mu.Unlock()
}

func (e *Engine) setInflight(sessionID string, cancel context.CancelFunc) {
	e.mu.Lock()
	e.inflight[sessionID] = cancel
	e.mu.Unlock()
}

func (e *Engine) clearInflight(sessionID string) {
	e.mu.Lock()
	delete(e.inflight, sessionID)
	e.mu.Unlock()
}

// cancelInflightFor stops the in-flight gateway call for a session the
// user is leaving. The retry loop observes the cancellation and stops.
func (e *Engine) cancelInflightFor(sessionID string) {
	if sessionID == "" {
		return
	}
	e.mu.Lock()
	cancel, ok := e.inflight[sessionID]
	if ok {
		delete(e.inflight, sessionID)
	}
	e.mu.Unlock()
	if ok {
		cancel()
	}
}

func (e *Engine) persistMessage(ctx context.Context, sessionID string, msg chat.Message) {
	if err := e.store.AppendMessage(ctx, sessionID, msg); err != nil {
		e.logStorage(sessionID, err)
	}
}

// logStorage records a persistence failure without touching in-memory
// state; durability is best-effort.
func (e *Engine) logStorage(sessionID string, err error) {
	op := "write"
	var se *chat.StorageError
	if errors.As(err, &se) {
		op = se.Op
	}
	observability.RecordStoreFailure(op)
	e.logger.Warn().Str("session_id", sessionID).Str("op", op).Err(err).Msg("Store write failed")
}

func isTerminal(err error) bool {
	var te *chat.TerminalError
	return errors.As(err, &te)
}
