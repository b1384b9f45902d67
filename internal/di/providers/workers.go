package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/listenupapp/tagsync/internal/config"
	"github.com/listenupapp/tagsync/internal/restrict"
	"github.com/listenupapp/tagsync/internal/scheduler"
	"github.com/listenupapp/tagsync/internal/syncer"
)

// SchedulerHandle wraps the background sync scheduler with shutdown capability.
type SchedulerHandle struct {
	*scheduler.Scheduler
}

// Shutdown implements do.Shutdownable. Pending shards stay persisted and
// are picked up on the next start.
func (h *SchedulerHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideScheduler provides the debounced sync scheduler, subscribes it to
// store writes and resumes work left from the previous run.
func ProvideScheduler(i do.Injector) (*SchedulerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	engine := do.MustInvoke[*syncer.Engine](i)

	sched := scheduler.New(storeHandle.KV(), engine, storeHandle.Store, scheduler.Config{
		Window:      cfg.Sync.Debounce,
		RetryFailed: cfg.Sync.RetryFailed,
		Logger:      log.With("component", "scheduler"),
	})
	storeHandle.SetEventEmitter(sched)
	sched.Start(context.Background())

	log.Info("Sync scheduler started", "debounce", cfg.Sync.Debounce, "retry_failed", cfg.Sync.RetryFailed)

	return &SchedulerHandle{Scheduler: sched}, nil
}

// RestrictHandle wraps the restricted tag list and its file watcher.
type RestrictHandle struct {
	*restrict.List
}

// Shutdown implements do.Shutdownable.
func (h *RestrictHandle) Shutdown() error {
	return h.Close()
}

// ProvideRestrictList loads the restricted tag list and reloads it when
// the file changes.
func ProvideRestrictList(i do.Injector) (*RestrictHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)

	list, err := restrict.Load(cfg.Restrict.Path, log.Logger.Logger)
	if err != nil {
		return nil, err
	}

	if err := list.Watch(context.Background()); err != nil {
		// Non-fatal: the list still works, it just won't pick up edits.
		log.Warn("Restricted tags will not reload on change", "path", cfg.Restrict.Path, "error", err)
	}

	return &RestrictHandle{List: list}, nil
}
