package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/tagsync/internal/scheduler"
	"github.com/listenupapp/tagsync/internal/settings"
	"github.com/listenupapp/tagsync/internal/syncer"
)

func (s *Server) registerSyncRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "syncNow",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync",
		Summary:     "Sync now",
		Description: "Merges every shard with the remote document and uploads the result",
		Tags:        []string{"Sync"},
		Middlewares: huma.Middlewares{s.rateLimited},
	}, s.handleSyncNow)

	huma.Register(s.api, huma.Operation{
		OperationID: "flushSync",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync/flush",
		Summary:     "Flush pending sync",
		Description: "Runs the debounced background pass immediately",
		Tags:        []string{"Sync"},
		Middlewares: huma.Middlewares{s.rateLimited},
	}, s.handleFlushSync)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSyncStatus",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/status",
		Summary:     "Sync status",
		Description: "Returns the remote connection and pending background work",
		Tags:        []string{"Sync"},
	}, s.handleSyncStatus)
}

// === DTOs ===

// SyncRequest is the request body for a manual sync.
type SyncRequest struct {
	Pull *bool `json:"pull,omitempty" doc:"Apply newer remote records locally. Defaults to the server setting."`
}

// SyncInput wraps the sync request for Huma.
type SyncInput struct {
	Body SyncRequest `required:"false"`
}

// ShardReport is the outcome of one shard.
type ShardReport struct {
	Shard       int      `json:"shard" doc:"Shard index"`
	Uploaded    bool     `json:"uploaded" doc:"Whether the merged shard was written"`
	LocalWins   []string `json:"local_wins,omitempty" doc:"Posts where the local record was newer"`
	RemoteNewer []string `json:"remote_newer,omitempty" doc:"Posts where the remote record was newer"`
	RemoteOnly  []string `json:"remote_only,omitempty" doc:"Posts only present remotely"`
	Pulled      int      `json:"pulled,omitempty" doc:"Remote records applied locally"`
}

// SyncReportResponse summarizes a manual sync.
type SyncReportResponse struct {
	DocumentID   string        `json:"document_id" doc:"Remote document ID"`
	Bootstrapped bool          `json:"bootstrapped" doc:"Whether the remote document was created by this sync"`
	Uploaded     int           `json:"uploaded" doc:"Shards written"`
	Pulled       int           `json:"pulled" doc:"Records applied locally"`
	DurationMs   int64         `json:"duration_ms" doc:"Sync duration"`
	Shards       []ShardReport `json:"shards" doc:"Per shard outcome"`
}

// SyncOutput wraps the sync report for Huma.
type SyncOutput struct {
	Body SyncReportResponse
}

// FlushResponse summarizes a background pass.
type FlushResponse struct {
	StartedAt  time.Time `json:"started_at" doc:"Pass start"`
	DurationMs int64     `json:"duration_ms" doc:"Pass duration"`
	Attempted  []int     `json:"attempted" doc:"Shards synced"`
	Uploaded   []int     `json:"uploaded" doc:"Shards written"`
	Failed     []int     `json:"failed,omitempty" doc:"Shards that failed"`
}

// FlushOutput wraps the flush response for Huma.
type FlushOutput struct {
	Body FlushResponse
}

// SyncStatusOutput wraps the status for Huma.
type SyncStatusOutput struct {
	Body SyncStatusResponse
}

// SyncStatusResponse combines the remote connection and scheduler state.
type SyncStatusResponse struct {
	Remote    settings.Status  `json:"remote" doc:"Remote connection"`
	Scheduler scheduler.Status `json:"scheduler" doc:"Pending background work"`
}

// === Handlers ===

func (s *Server) handleSyncNow(ctx context.Context, input *SyncInput) (*SyncOutput, error) {
	report, err := s.services.Sync.SyncNow(ctx, input.Body.Pull)
	if err != nil {
		return nil, err
	}
	return &SyncOutput{Body: toSyncReportResponse(report)}, nil
}

func (s *Server) handleFlushSync(ctx context.Context, _ *struct{}) (*FlushOutput, error) {
	summary, err := s.services.Sync.Flush(ctx)
	if err != nil {
		return nil, err
	}
	return &FlushOutput{Body: toFlushResponse(summary)}, nil
}

func (s *Server) handleSyncStatus(ctx context.Context, _ *struct{}) (*SyncStatusOutput, error) {
	status, err := s.services.Sync.Status(ctx)
	if err != nil {
		return nil, err
	}
	return &SyncStatusOutput{
		Body: SyncStatusResponse{
			Remote:    status.Remote,
			Scheduler: status.Scheduler,
		},
	}, nil
}

func toSyncReportResponse(r *syncer.Report) SyncReportResponse {
	resp := SyncReportResponse{
		DocumentID:   r.DocumentID,
		Bootstrapped: r.Bootstrapped,
		Uploaded:     r.Uploaded,
		Pulled:       r.Pulled,
		DurationMs:   r.Duration.Milliseconds(),
		Shards:       make([]ShardReport, 0, len(r.Shards)),
	}
	for _, sh := range r.Shards {
		if sh == nil {
			continue
		}
		resp.Shards = append(resp.Shards, ShardReport{
			Shard:       sh.Shard,
			Uploaded:    sh.Uploaded,
			LocalWins:   sh.LocalWins,
			RemoteNewer: sh.RemoteNewer,
			RemoteOnly:  sh.RemoteOnly,
			Pulled:      sh.Pulled,
		})
	}
	return resp
}

func toFlushResponse(p *scheduler.PassSummary) FlushResponse {
	if p == nil {
		return FlushResponse{Attempted: []int{}, Uploaded: []int{}}
	}
	return FlushResponse{
		StartedAt:  p.StartedAt,
		DurationMs: p.Duration.Milliseconds(),
		Attempted:  nonNil(p.Attempted),
		Uploaded:   nonNil(p.Uploaded),
		Failed:     p.Failed,
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
