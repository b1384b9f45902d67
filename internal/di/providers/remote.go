package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/tagsync/internal/config"
	"github.com/listenupapp/tagsync/internal/importer"
	"github.com/listenupapp/tagsync/internal/remote"
	"github.com/listenupapp/tagsync/internal/settings"
	"github.com/listenupapp/tagsync/internal/syncer"
)

// RemoteHandle wraps the remote document client with shutdown capability.
type RemoteHandle struct {
	*remote.HTTPClient
}

// Shutdown implements do.Shutdownable.
func (h *RemoteHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideRemote provides the rate-limited remote document client. The token
// is read from the settings store on every request, so reconnecting takes
// effect without a restart.
func ProvideRemote(i do.Injector) (*RemoteHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*LoggerHandle](i)
	creds := do.MustInvoke[*settings.Store](i)

	client, err := remote.NewHTTPClient(remote.Options{
		BaseURL: cfg.Remote.BaseURL,
		Timeout: cfg.Remote.Timeout,
		RPS:     cfg.Remote.RPS,
		Tokens:  creds,
	}, log.Logger.Logger)
	if err != nil {
		return nil, err
	}
	return &RemoteHandle{HTTPClient: client}, nil
}

// ProvideSyncEngine provides the shard sync engine.
func ProvideSyncEngine(i do.Injector) (*syncer.Engine, error) {
	client := do.MustInvoke[*RemoteHandle](i)
	creds := do.MustInvoke[*settings.Store](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*LoggerHandle](i)

	return syncer.New(client.HTTPClient, creds, storeHandle.Store, log.Logger.Logger), nil
}

// ProvideImporter provides the import engine. Preview sessions share the
// store's backend.
func ProvideImporter(i do.Injector) (*importer.Engine, error) {
	client := do.MustInvoke[*RemoteHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*LoggerHandle](i)

	return importer.New(client.HTTPClient, storeHandle.Store, storeHandle.KV(), importer.Options{}, log.Logger.Logger), nil
}
