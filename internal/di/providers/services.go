package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/tagsync/internal/config"
	"github.com/listenupapp/tagsync/internal/service"
	"github.com/listenupapp/tagsync/internal/settings"
	"github.com/listenupapp/tagsync/internal/syncer"
)

// ProvideTagService provides the tag editing service.
func ProvideTagService(i do.Injector) (*service.TagService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	restricted := do.MustInvoke[*RestrictHandle](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	log := do.MustInvoke[*LoggerHandle](i)

	return service.NewTagService(storeHandle.Store, restricted.List, searchService, log.Logger.Logger), nil
}

// ProvideSyncService provides the sync service.
func ProvideSyncService(i do.Injector) (*service.SyncService, error) {
	cfg := do.MustInvoke[*config.Config](i)
	engine := do.MustInvoke[*syncer.Engine](i)
	sched := do.MustInvoke[*SchedulerHandle](i)
	creds := do.MustInvoke[*settings.Store](i)
	log := do.MustInvoke[*LoggerHandle](i)

	return service.NewSyncService(engine, sched.Scheduler, creds, cfg.Sync.Pull, log.Logger.Logger), nil
}

// ProvideSettingsService provides the settings service.
func ProvideSettingsService(i do.Injector) (*service.SettingsService, error) {
	creds := do.MustInvoke[*settings.Store](i)
	log := do.MustInvoke[*LoggerHandle](i)

	return service.NewSettingsService(creds, log.Logger.Logger), nil
}
