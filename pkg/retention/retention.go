// Package retention prunes stale sessions from the durable store on a
// cron schedule.
package retention

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/fennelworks/convo/internal/observability"
	"github.com/fennelworks/convo/pkg/chat"
	"github.com/fennelworks/convo/pkg/registry"
	"github.com/fennelworks/convo/pkg/store"
)

// DefaultSchedule runs the sweep once a day at 03:00.
const DefaultSchedule = "0 3 * * *"

// Sweeper deletes sessions idle longer than the retention window. The
// active session and untouched "New Chat" placeholders created within
// the window survive; everything else past its last update goes.
type Sweeper struct {
	store    store.Store
	registry *registry.Registry
	owner    string
	maxIdle  time.Duration
	schedule string
	logger   zerolog.Logger

	cron *cron.Cron
}

// New creates a sweeper. A zero maxIdle disables sweeping entirely; an
// empty schedule selects the default.
func New(st store.Store, reg *registry.Registry, owner string, maxIdle time.Duration, schedule string, logger zerolog.Logger) *Sweeper {
	observability.EnsureRegistered()

	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Sweeper{
		store:    st,
		registry: reg,
		owner:    owner,
		maxIdle:  maxIdle,
		schedule: schedule,
		logger:   logger.With().Str("component", "retention").Logger(),
	}
}

// Start registers the cron entry and begins scheduling.
func (s *Sweeper) Start() error {
	if s.maxIdle <= 0 {
		s.logger.Info().Msg("Retention disabled")
		return nil
	}

	s.cron = cron.New()
	_, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			s.logger.Error().Err(err).Msg("Retention sweep failed")
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info().Str("schedule", s.schedule).Dur("max_idle", s.maxIdle).Msg("Retention sweeper started")
	return nil
}

// Stop halts scheduling and waits for a running sweep.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep deletes the owner's idle sessions and returns how many went.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	summaries, err := s.store.ListSessions(ctx, s.owner)
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-s.maxIdle)
	active := s.registry.Active()
	swept := 0
	for _, sum := range summaries {
		if sum.ID == active || !sum.UpdatedAt.Before(cutoff) {
			continue
		}
		if sum.MessageCount == 0 && sum.Title == chat.DefaultTitle {
			// Empty placeholders are cheap; leave them for their owner.
			continue
		}
		if err := s.store.DeleteSession(ctx, sum.ID); err != nil {
			s.logger.Warn().Str("session_id", sum.ID).Err(err).Msg("Failed to delete idle session")
			continue
		}
		s.registry.Delete(sum.ID)
		swept++
	}

	observability.RecordRetentionSweep(swept)
	s.logger.Info().Int("swept", swept).Msg("Retention sweep complete")
	return swept, nil
}
