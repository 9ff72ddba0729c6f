// Package gateway sends conversation turns to a text generation provider,
// retrying transient failures with exponential backoff and classifying
// whatever ultimately went wrong.
package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fennelworks/convo/internal/observability"
	"github.com/fennelworks/convo/pkg/chat"
)

const (
	// DefaultMaxAttempts is how many times a request is tried before
	// giving up for good.
	DefaultMaxAttempts = 3

	// DefaultAttemptTimeout bounds a single provider call.
	DefaultAttemptTimeout = 45 * time.Second
)

// Generator produces a completion for a request. Implementations wrap a
// concrete provider SDK and must honor ctx cancellation.
type Generator interface {
	// Generate returns the assistant text for the request.
	Generate(ctx context.Context, req Request) (string, error)

	// Provider returns the provider name for logging and metrics.
	Provider() string
}

// Options tune the retry behavior. Zero values fall back to defaults.
type Options struct {
	MaxAttempts    int
	AttemptTimeout time.Duration

	// BackoffUnit scales the delay between attempts. The delay after
	// attempt n is BackoffUnit * 2^n, so with the default of one second
	// the waits are 2s then 4s. Tests shrink this.
	BackoffUnit time.Duration
}

// Gateway drives a Generator with bounded retries. A request either
// returns text or a *chat.TerminalError describing the last failure;
// callers never see raw provider errors.
type Gateway struct {
	gen            Generator
	maxAttempts    int
	attemptTimeout time.Duration
	backoffUnit    time.Duration
	logger         zerolog.Logger
}

// New creates a gateway around the given generator.
func New(gen Generator, opts Options, logger zerolog.Logger) *Gateway {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = DefaultAttemptTimeout
	}
	if opts.BackoffUnit <= 0 {
		opts.BackoffUnit = time.Second
	}
	return &Gateway{
		gen:            gen,
		maxAttempts:    opts.MaxAttempts,
		attemptTimeout: opts.AttemptTimeout,
		backoffUnit:    opts.BackoffUnit,
		logger:         logger.With().Str("component", "gateway").Str("provider", gen.Provider()).Logger(),
	}
}

// Send submits the request, retrying transient failures. The first
// attempt starts immediately; attempt n is followed by a wait of
// 2^n backoff units before the next one. Each attempt runs under its
// own timeout. Cancelling ctx stops the retry loop and returns ctx's
// error unwrapped, since the caller asked to stop rather than the
// provider failing.
func (g *Gateway) Send(ctx context.Context, req Request) (string, error) {
	start := time.Now()

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := g.backoffUnit * time.Duration(1<<(attempt-1))
			g.logger.Warn().
				Int("attempt", attempt-1).
				Dur("backoff", delay).
				Err(lastErr).
				Msg("generation attempt failed, backing off")
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		text, err := g.callOnce(ctx, req)
		if err == nil {
			observability.RecordGeneration(g.gen.Provider(), time.Since(start), attempt, true)
			return text, nil
		}
		if ctx.Err() != nil {
			// The caller cancelled mid-attempt.
			return "", ctx.Err()
		}
		lastErr = err
	}

	kind := Classify(lastErr)
	observability.RecordGeneration(g.gen.Provider(), time.Since(start), g.maxAttempts, false)
	g.logger.Error().
		Int("attempts", g.maxAttempts).
		Str("kind", string(kind)).
		Err(lastErr).
		Msg("generation failed after all attempts")
	return "", &chat.TerminalError{Kind: kind, Attempts: g.maxAttempts, Err: lastErr}
}

func (g *Gateway) callOnce(ctx context.Context, req Request) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, g.attemptTimeout)
	defer cancel()

	text, err := g.gen.Generate(attemptCtx, req)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}
