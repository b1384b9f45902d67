package service

import (
	"context"
	"log/slog"

	"github.com/listenupapp/tagsync/internal/scheduler"
	"github.com/listenupapp/tagsync/internal/settings"
	"github.com/listenupapp/tagsync/internal/syncer"
)

// SyncEngine runs manual syncs.
type SyncEngine interface {
	SyncAll(ctx context.Context, opts syncer.SyncOptions) (*syncer.Report, error)
}

// PendingSyncs exposes the background scheduler.
type PendingSyncs interface {
	Status(ctx context.Context) (scheduler.Status, error)
	Flush(ctx context.Context) (*scheduler.PassSummary, error)
}

// SyncStatus combines the remote connection and the background scheduler.
type SyncStatus struct {
	Remote    settings.Status  `json:"remote"`
	Scheduler scheduler.Status `json:"scheduler"`
}

// SyncService orchestrates sync between the local store and the remote
// document.
type SyncService struct {
	engine    SyncEngine
	pending   PendingSyncs
	settings  *settings.Store
	pullByDef bool
	logger    *slog.Logger
}

// NewSyncService creates a new sync service. pull sets whether manual syncs
// also apply newer remote records locally unless the caller says otherwise.
func NewSyncService(engine SyncEngine, pending PendingSyncs, settingsStore *settings.Store, pull bool, logger *slog.Logger) *SyncService {
	return &SyncService{
		engine:    engine,
		pending:   pending,
		settings:  settingsStore,
		pullByDef: pull,
		logger:    logger,
	}
}

// SyncNow syncs every shard. A nil pull uses the configured default.
func (s *SyncService) SyncNow(ctx context.Context, pull *bool) (*syncer.Report, error) {
	opts := syncer.SyncOptions{Pull: s.pullByDef}
	if pull != nil {
		opts.Pull = *pull
	}

	report, err := s.engine.SyncAll(ctx, opts)
	if err != nil {
		s.logger.Warn("manual sync finished with errors", "error", err)
		return report, err
	}
	s.logger.Info("manual sync complete",
		"document_id", report.DocumentID,
		"uploaded", report.Uploaded,
		"pulled", report.Pulled,
		"duration", report.Duration,
	)
	return report, nil
}

// Flush runs the pending background pass now.
func (s *SyncService) Flush(ctx context.Context) (*scheduler.PassSummary, error) {
	return s.pending.Flush(ctx)
}

// Status reports the connection and pending work.
func (s *SyncService) Status(ctx context.Context) (*SyncStatus, error) {
	remote, err := s.settings.Status(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := s.pending.Status(ctx)
	if err != nil {
		return nil, err
	}
	return &SyncStatus{Remote: remote, Scheduler: pending}, nil
}
