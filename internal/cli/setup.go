package cli

import (
	"github.com/fennelworks/convo/internal/app"
	"github.com/fennelworks/convo/internal/config"
	"github.com/fennelworks/convo/internal/logger"
)

// buildApp loads configuration, installs the logger, and assembles the
// engine for a command run.
func buildApp(console bool) (*app.App, *logger.Logger, error) {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   console,
		Pretty:    console,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return nil, nil, err
	}

	a, err := app.New(cfg, log)
	if err != nil {
		log.Close()
		return nil, nil, err
	}
	return a, log, nil
}
