// Package di provides dependency injection configuration for tagsync.
package di

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/tagsync/internal/config"
	"github.com/listenupapp/tagsync/internal/di/providers"
	"github.com/listenupapp/tagsync/internal/importer"
	"github.com/listenupapp/tagsync/internal/service"
	"github.com/listenupapp/tagsync/internal/settings"
	"github.com/listenupapp/tagsync/internal/syncer"
)

// NewContainer creates and configures the DI container with all providers.
// Nothing is constructed until it is invoked, so CLI commands that only
// need the store never start the scheduler or the HTTP server.
func NewContainer(overrides config.Overrides) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, overrides)
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvideSettingsStore)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideSearchService)

	// Remote layer
	do.Provide(injector, providers.ProvideRemote)
	do.Provide(injector, providers.ProvideSyncEngine)
	do.Provide(injector, providers.ProvideImporter)

	// Workers
	do.Provide(injector, providers.ProvideScheduler)
	do.Provide(injector, providers.ProvideRestrictList)

	// Business services
	do.Provide(injector, providers.ProvideTagService)
	do.Provide(injector, providers.ProvideSyncService)
	do.Provide(injector, providers.ProvideSettingsService)

	// Server
	do.Provide(injector, providers.ProvideAPIServer)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes every service the server needs and starts
// listening. Invoke errors are returned rather than panicking so a bad
// config or a locked database exits cleanly.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*providers.LoggerHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*settings.Store](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*service.SearchService](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*syncer.Engine](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*importer.Engine](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.SchedulerHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*service.TagService](injector); err != nil {
		return err
	}

	// Trigger search reindex if needed
	providers.TriggerSearchReindexIfNeeded(injector)

	// Server
	_, err := do.Invoke[*providers.HTTPServerHandle](injector)
	return err
}
