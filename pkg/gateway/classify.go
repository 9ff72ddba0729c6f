package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/fennelworks/convo/pkg/chat"
)

// ErrEmptyCompletion is returned when the provider answered without
// usable text.
var ErrEmptyCompletion = errors.New("provider returned an empty completion")

// ServerError carries an HTTP status reported by the provider.
type ServerError struct {
	Status int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("provider returned status %d", e.Status)
}

// Classify maps a provider error to the failure kind surfaced to users.
// Typed errors are checked first, then the message text, since SDK
// errors often only expose the status code as a string.
func Classify(err error) chat.FailureKind {
	if err == nil {
		return chat.KindServer
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return chat.KindTimeout
	}
	if errors.Is(err, ErrEmptyCompletion) {
		return chat.KindMalformed
	}

	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return chat.KindServer
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return chat.KindTimeout
		}
		return chat.KindNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "timeout", "timed out", "deadline exceeded", "etimedout"):
		return chat.KindTimeout
	case containsAny(msg, "429", "500", "502", "503", "504", "529", "rate limit", "overloaded", "internal server error"):
		return chat.KindServer
	case containsAny(msg, "unexpected end of json", "invalid character", "unmarshal", "malformed", "parse"):
		return chat.KindMalformed
	case containsAny(msg, "connection refused", "connection reset", "econnreset", "econnrefused", "no such host", "broken pipe", "eof", "network"):
		return chat.KindNetwork
	default:
		return chat.KindServer
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
