package api

import (
	"context"

	"github.com/listenupapp/tagsync/internal/importer"
	"github.com/listenupapp/tagsync/internal/service"
)

// RecordCounter reports how many records the local store holds.
type RecordCounter interface {
	Count(ctx context.Context) (int, error)
}

// Services groups all business logic services used by the API server.
type Services struct {
	Tags     *service.TagService
	Search   *service.SearchService
	Sync     *service.SyncService
	Settings *service.SettingsService
	Imports  *importer.Engine
	Records  RecordCounter // Health checks only
}
