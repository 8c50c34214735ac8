// Package di provides dependency injection configuration for clipd.
package di

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/clipdeck/internal/config"
	"github.com/listenupapp/clipdeck/internal/di/providers"
	"github.com/listenupapp/clipdeck/internal/editor"
	"github.com/listenupapp/clipdeck/internal/logger"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	Register(injector)
	return injector
}

// Register adds every provider that builds on a *config.Config and a
// *logger.Logger already present in injector.
func Register(injector do.Injector) {
	do.Provide(injector, providers.ProvideEventBus)

	// Engine
	do.Provide(injector, providers.ProvideEditor)

	// Storage and search
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideSearchIndexer)

	// Workers
	do.Provide(injector, providers.ProvideAutosave)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)
}

// Bootstrap initializes all services.
// This triggers lazy initialization of all core services.
func Bootstrap(injector do.Injector) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.EventBusHandle](injector)
	_ = do.MustInvoke[*editor.Editor](injector)
	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SearchIndexHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SearchIndexerHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.AutosaveHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}
	return nil
}
