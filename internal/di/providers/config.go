// Package providers contains dependency injection providers for tagsync.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/tagsync/internal/config"
	"github.com/listenupapp/tagsync/internal/logger"
)

// ProvideConfig provides the application configuration. Command-line
// overrides are registered as a value before the container is used.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	overrides, err := do.Invoke[config.Overrides](i)
	if err != nil {
		overrides = config.Overrides{}
	}
	return config.LoadConfig(overrides)
}

// LoggerHandle wraps the logger so its file is closed on shutdown.
type LoggerHandle struct {
	*logger.Logger
}

// Shutdown implements do.Shutdownable.
func (h *LoggerHandle) Shutdown() error {
	return h.Close()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*LoggerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
		File:        cfg.Logger.File,
	})

	log.Debug("configuration loaded",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"data_path", cfg.Storage.DataPath,
		"backend", cfg.Storage.Backend,
	)

	return &LoggerHandle{Logger: log}, nil
}
