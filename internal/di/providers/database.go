package providers

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/samber/do/v2"

	"github.com/listenupapp/tagsync/internal/config"
	"github.com/listenupapp/tagsync/internal/kv"
	"github.com/listenupapp/tagsync/internal/settings"
	"github.com/listenupapp/tagsync/internal/store"
)

// StoreHandle wraps the store with shutdown capability. The store owns the
// key-value backend, so closing it closes the backend too.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the configured backend and the record store on top.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)

	backend, err := openBackend(cfg, log)
	if err != nil {
		return nil, err
	}

	st := store.New(backend, log.Logger.Logger, nil)

	count, err := st.Count(context.Background())
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("read store: %w", err)
	}
	log.Info("Store opened", "backend", cfg.Storage.Backend, "records", count)

	return &StoreHandle{Store: st}, nil
}

func openBackend(cfg *config.Config, log *LoggerHandle) (kv.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendRedis:
		backend := kv.NewRedis(&redis.Options{Addr: cfg.Storage.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		if err := backend.Ping(ctx); err != nil {
			_ = backend.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Storage.RedisAddr, err)
		}
		return backend, nil
	case config.BackendMemory:
		log.Warn("Using in-memory storage, records are lost on exit")
		return kv.NewMemory(), nil
	default:
		return kv.OpenBadger(cfg.BadgerPath(), log.Logger.Logger)
	}
}

// ProvideSettingsStore provides the sealed credential store. The sealing
// key lives next to the data so moving the data directory keeps it usable.
func ProvideSettingsStore(i do.Injector) (*settings.Store, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	key, err := settings.LoadOrGenerateKey(cfg.Storage.DataPath)
	if err != nil {
		return nil, err
	}

	return settings.NewStore(storeHandle.KV(), key, log.Logger.Logger)
}
