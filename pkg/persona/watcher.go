package persona

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/fennelworks/convo/internal/observability"
)

// Watcher reloads the registry whenever persona files change. Rapid
// bursts of events collapse into a single reload after the stability
// threshold passes with no further changes.
type Watcher struct {
	watcher            *fsnotify.Watcher
	dir                string
	stabilityThreshold time.Duration
	loader             *Loader
	registry           *Registry
	logger             zerolog.Logger

	done        chan struct{}
	stopOnce    sync.Once
	debounceMu  sync.Mutex
	reloadTimer *time.Timer
}

// NewWatcher creates a watcher over the persona directory.
func NewWatcher(dir string, loader *Loader, registry *Registry, logger zerolog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	return &Watcher{
		watcher:            fw,
		dir:                dir,
		stabilityThreshold: 500 * time.Millisecond,
		loader:             loader,
		registry:           registry,
		logger:             logger.With().Str("component", "persona-watcher").Logger(),
		done:               make(chan struct{}),
	}, nil
}

// Start performs an initial load and begins watching for changes.
func (w *Watcher) Start() error {
	personas, err := w.loader.LoadDir(w.dir)
	if err != nil {
		return err
	}
	w.registry.replace(personas)

	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch persona directory: %w", err)
	}
	go w.eventLoop()

	w.logger.Info().Str("path", w.dir).Msg("persona watcher started")
	return nil
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.done)
	})

	w.debounceMu.Lock()
	if w.reloadTimer != nil {
		w.reloadTimer.Stop()
	}
	w.debounceMu.Unlock()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasSuffix(event.Name, ".json") {
				continue
			}
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error().Err(err).Msg("watcher error")

		case <-w.done:
			return
		}
	}
}

// scheduleReload arms the reload timer, cancelling any pending one so
// only the last event in a burst triggers work.
func (w *Watcher) scheduleReload() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.reloadTimer != nil {
		w.reloadTimer.Stop()
	}
	w.reloadTimer = time.AfterFunc(w.stabilityThreshold, w.reload)
}

func (w *Watcher) reload() {
	personas, err := w.loader.LoadDir(w.dir)
	if err != nil {
		observability.RecordPersonaReload(false)
		w.logger.Error().Err(err).Msg("persona reload failed, keeping previous set")
		return
	}
	w.registry.replace(personas)
	observability.RecordPersonaReload(true)
}
