// Package app assembles the session engine from configuration: store,
// registry, drafts, autosave, personas, gateway, orchestrator, and the
// optional metrics endpoint.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/fennelworks/convo/internal/config"
	"github.com/fennelworks/convo/internal/logger"
	"github.com/fennelworks/convo/internal/observability"
	"github.com/fennelworks/convo/pkg/autosave"
	"github.com/fennelworks/convo/pkg/draft"
	"github.com/fennelworks/convo/pkg/gateway"
	"github.com/fennelworks/convo/pkg/orchestrator"
	"github.com/fennelworks/convo/pkg/persona"
	"github.com/fennelworks/convo/pkg/registry"
	"github.com/fennelworks/convo/pkg/retention"
	"github.com/fennelworks/convo/pkg/store"
)

// App owns the assembled engine and its supporting services.
type App struct {
	cfg *config.Config
	log *logger.Logger

	Store    store.Store
	Registry *registry.Registry
	Drafts   *draft.Store
	Personas *persona.Registry
	Engine   *orchestrator.Engine

	scratch   *draft.Scratch
	scheduler *autosave.Scheduler
	watcher   *persona.Watcher
	sweeper   *retention.Sweeper
	metricsLn *http.Server
}

// New wires the engine. Nothing starts running until Start.
func New(cfg *config.Config, log *logger.Logger) (*App, error) {
	if errs := config.NewValidator().ValidateConfig(cfg); len(errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %v", errs[0])
	}

	zl := log.GetZerolog()

	st, err := store.NewSQLite(cfg.DatabasePath, zl)
	if err != nil {
		return nil, err
	}

	scratch, err := draft.NewScratch(cfg.ScratchDir, zl)
	if err != nil {
		st.Close()
		return nil, err
	}
	scheduler := autosave.New(scratch, cfg.Autosave.Debounce(), zl)

	drafts := draft.NewStore(scheduler.Notify)
	reg := registry.New(st, zl)

	personas := persona.NewRegistry(zl)
	watcher, err := persona.NewWatcher(cfg.PersonaDir, persona.NewLoader(zl), personas, zl)
	if err != nil {
		st.Close()
		return nil, err
	}

	gen, err := gateway.NewGenerator(cfg.Provider.Name, cfg.Provider.APIKey)
	if err != nil {
		st.Close()
		return nil, err
	}
	gw := gateway.New(gen, gateway.Options{
		MaxAttempts:    cfg.Gateway.MaxAttempts,
		AttemptTimeout: cfg.Gateway.Timeout(),
	}, zl)

	engine := orchestrator.New(orchestrator.Config{
		Registry: reg,
		Store:    st,
		Sender:   gw,
		Voices:   personas,
		Drafts:   drafts,
		Autosave: scheduler,
		Owner:    cfg.Owner,
		Model:    cfg.Provider.Model,
		Logger:   zl,
	})

	app := &App{
		cfg:       cfg,
		log:       log,
		Store:     st,
		Registry:  reg,
		Drafts:    drafts,
		Personas:  personas,
		Engine:    engine,
		scratch:   scratch,
		scheduler: scheduler,
		watcher:   watcher,
	}

	if cfg.Retention.Enabled {
		app.sweeper = retention.New(st, reg, cfg.Owner,
			cfg.Retention.MaxIdleDuration(), cfg.Retention.Schedule, zl)
	}
	return app, nil
}

// Start begins the persona watcher, retention sweeper, and metrics
// endpoint.
func (a *App) Start() error {
	if err := a.watcher.Start(); err != nil {
		return err
	}
	if a.sweeper != nil {
		if err := a.sweeper.Start(); err != nil {
			return err
		}
	}
	if a.cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", observability.MetricsHandler())
		a.metricsLn = &http.Server{Addr: a.cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := a.metricsLn.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}
	return nil
}

// Stop flushes pending drafts and shuts everything down.
func (a *App) Stop() error {
	if id := a.Drafts.SessionID(); id != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.scheduler.Flush(ctx, id); err != nil {
			a.log.Warn().Err(err).Msg("Final draft flush failed")
		}
		cancel()
	}
	a.scheduler.Close()

	if a.metricsLn != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		a.metricsLn.Shutdown(ctx)
		cancel()
	}
	if a.sweeper != nil {
		a.sweeper.Stop()
	}
	if err := a.watcher.Stop(); err != nil {
		a.log.Warn().Err(err).Msg("Persona watcher stop failed")
	}
	return a.Store.Close()
}
