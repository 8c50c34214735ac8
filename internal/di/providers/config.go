// Package providers contains dependency injection providers for clipd.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/clipdeck/internal/config"
	"github.com/listenupapp/clipdeck/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting clipd",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"database_path", cfg.Storage.DatabasePath,
		"min_duration", cfg.Engine.MinDuration,
		"import_policy", cfg.Engine.ImportPolicy,
	)

	return log, nil
}
