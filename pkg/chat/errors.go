package chat

import (
	"errors"
	"fmt"
)

// Local validation and state errors. Returned synchronously from the
// orchestrator's operations; none of them reach the network layer.
var (
	// ErrEmptyInput rejects a submit whose draft text is blank.
	ErrEmptyInput = errors.New("input is empty")

	// ErrAlreadyGenerating rejects a submit while one is in flight for
	// the same session.
	ErrAlreadyGenerating = errors.New("a response is already being generated for this session")

	// ErrNoActiveSession means no session is selected and lazy creation
	// was not possible.
	ErrNoActiveSession = errors.New("no active session")

	// ErrSessionNotFound means the named session is not known to the
	// registry or the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnknownMode rejects a submit carrying a mode tag that is not
	// in the mode table.
	ErrUnknownMode = errors.New("unknown content mode")

	// ErrUnknownPersona rejects a submit referencing a persona id that
	// is not registered.
	ErrUnknownPersona = errors.New("unknown persona")
)

// FailureKind classifies a single failed generation attempt.
type FailureKind string

const (
	KindNetwork   FailureKind = "network"
	KindTimeout   FailureKind = "timeout"
	KindServer    FailureKind = "server"
	KindMalformed FailureKind = "malformed"
)

// TerminalError is returned by the request gateway after all permitted
// attempts are exhausted. Kind carries the classification of the last
// concrete failure.
type TerminalError struct {
	Kind     FailureKind
	Attempts int
	Err      error
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("generation failed after %d attempts (%s): %v", e.Attempts, e.Kind, e.Err)
}

func (e *TerminalError) Unwrap() error { return e.Err }

// UserMessage returns the conversation-visible text for a failed turn.
func (e *TerminalError) UserMessage() string {
	switch e.Kind {
	case KindTimeout:
		return "The request timed out. Please try again."
	case KindServer:
		return "The generation service is having trouble right now. Please try again in a moment."
	case KindMalformed:
		return "The generation service returned an unusable response. Please try again."
	default:
		return "A network error prevented your request from completing. Please check your connection and try again."
	}
}

// StorageError wraps a persistence collaborator failure. Storage errors
// never abort the in-memory conversation; they only affect durability.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err unless it already is a StorageError.
func NewStorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
