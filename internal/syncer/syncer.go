// Package syncer pushes local tag records to the remote document, one shard
// file at a time, with whole-record last-write-wins merging.
package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/listenupapp/tagsync/internal/domain"
	domainerrors "github.com/listenupapp/tagsync/internal/errors"
	"github.com/listenupapp/tagsync/internal/id"
	"github.com/listenupapp/tagsync/internal/remote"
	"github.com/listenupapp/tagsync/internal/sanitize"
	"github.com/listenupapp/tagsync/internal/settings"
	"github.com/listenupapp/tagsync/internal/shard"
	"github.com/listenupapp/tagsync/internal/store"
	"github.com/listenupapp/tagsync/internal/wire"
)

// DocumentDescription labels documents created by Bootstrap.
const DocumentDescription = "tagsync post tag groups"

// FormatVersion is written to the manifest of new documents.
const FormatVersion = 1

// CredentialStore resolves the remote credentials.
type CredentialStore interface {
	Credentials(ctx context.Context) (settings.Credentials, error)
	SetDocumentID(ctx context.Context, documentID string) error
}

// LocalStore is the part of the local store sync needs.
type LocalStore interface {
	ScanShard(ctx context.Context, idx int) (map[string]*domain.PostTagRecord, error)
	Put(ctx context.Context, rec *domain.PostTagRecord, origin store.Origin) error
}

// ShardResult reports one shard sync.
type ShardResult struct {
	Shard       int                              `json:"shard"`
	Merged      map[string]*domain.PostTagRecord `json:"-"`
	Uploaded    bool                             `json:"uploaded"`
	LocalWins   []string                         `json:"local_wins,omitempty"`
	RemoteNewer []string                         `json:"remote_newer,omitempty"`
	RemoteOnly  []string                         `json:"remote_only,omitempty"`
	Pulled      int                              `json:"pulled,omitempty"`
	// Err is set when a silent sync failed.
	Err error `json:"-"`
}

// Failed reports whether a silent sync swallowed an error.
func (r *ShardResult) Failed() bool {
	return r != nil && r.Err != nil
}

// Report summarizes a full sync.
type Report struct {
	DocumentID   string         `json:"document_id"`
	Bootstrapped bool           `json:"bootstrapped"`
	Shards       []*ShardResult `json:"shards"`
	Uploaded     int            `json:"uploaded"`
	Pulled       int            `json:"pulled"`
	Duration     time.Duration  `json:"duration"`
}

// SyncOptions controls SyncAll.
type SyncOptions struct {
	// Pull writes remote records that are newer than, or missing from, the
	// local store after each shard is merged.
	Pull bool
}

type manifest struct {
	App           string    `json:"app"`
	FormatVersion int       `json:"format_version"`
	ClientID      string    `json:"client_id"`
	Shards        int       `json:"shards"`
	CreatedAt     time.Time `json:"created_at"`
}

// Engine syncs shards with the remote document.
type Engine struct {
	remote remote.Service
	creds  CredentialStore
	local  LocalStore
	logger *slog.Logger
}

// New creates a sync engine.
func New(svc remote.Service, creds CredentialStore, local LocalStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		remote: svc,
		creds:  creds,
		local:  local,
		logger: logger,
	}
}

// SyncShard merges the local records of shard idx into the remote shard file
// and uploads the result when at least one local record won.
//
// Without credentials a silent call does nothing and returns (nil, nil); a
// non-silent call returns an Unauthorized error. Remote failures are returned
// to non-silent callers. Silent callers get them logged and recorded in
// ShardResult.Err instead.
func (e *Engine) SyncShard(ctx context.Context, idx int, local map[string]*domain.PostTagRecord, silent bool) (*ShardResult, error) {
	if !shard.Valid(idx) {
		return nil, domainerrors.Validationf("invalid shard %d", idx)
	}

	creds, err := e.creds.Credentials(ctx)
	if err != nil {
		if silent {
			e.logger.Warn("skipping shard sync, credentials unreadable", "shard", idx, "error", err)
			return nil, nil
		}
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	if !creds.Configured() {
		if silent {
			return nil, nil
		}
		return nil, domainerrors.Unauthorized("remote sync is not configured: token and document id are required")
	}

	res, err := e.syncShard(ctx, creds.DocumentID, idx, local)
	if err != nil {
		if silent {
			e.logger.Error("background shard sync failed", "shard", idx, "document_id", creds.DocumentID, "error", err)
			return &ShardResult{Shard: idx, Err: err}, nil
		}
		return nil, remote.DomainError(err, fmt.Sprintf("sync shard %d", idx))
	}
	return res, nil
}

func (e *Engine) syncShard(ctx context.Context, docID string, idx int, local map[string]*domain.PostTagRecord) (*ShardResult, error) {
	doc, err := e.remote.Get(ctx, docID)
	if err != nil {
		return nil, err
	}

	name := shard.FileName(idx)
	remoteRecs := e.decodeShard(doc, name)

	owned := make(map[string]*domain.PostTagRecord, len(local))
	for postID, rec := range local {
		if shard.Of(postID) != idx {
			e.logger.Warn("record passed to wrong shard", "post_id", postID, "shard", idx)
			continue
		}
		owned[postID] = rec
	}

	merged := Merge(owned, remoteRecs)
	res := &ShardResult{
		Shard:       idx,
		Merged:      merged.Merged,
		LocalWins:   merged.LocalWins,
		RemoteNewer: merged.RemoteNewer,
		RemoteOnly:  merged.RemoteOnly,
	}
	if len(merged.LocalWins) == 0 {
		e.logger.Debug("shard up to date", "shard", idx)
		return res, nil
	}

	content, err := wire.EncodeShard(merged.Merged)
	if err != nil {
		return nil, err
	}
	if err := e.remote.Update(ctx, docID, map[string]string{name: content}); err != nil {
		return nil, err
	}
	res.Uploaded = true

	e.logger.Info("shard synced",
		"shard", idx,
		"local_wins", len(merged.LocalWins),
		"records", len(merged.Merged),
	)
	return res, nil
}

// decodeShard returns the sanitized records of a shard file. A missing or
// unreadable file is an empty shard.
func (e *Engine) decodeShard(doc *remote.Document, name string) map[string]*domain.PostTagRecord {
	content, ok := doc.Content(name)
	if !ok {
		return map[string]*domain.PostTagRecord{}
	}
	raw, err := wire.DecodeShard(content)
	if err != nil {
		e.logger.Warn("remote shard unreadable, treating as empty", "file", name, "error", err)
		return map[string]*domain.PostTagRecord{}
	}
	return sanitize.Sanitize(raw)
}

// SyncAll syncs every shard in order. When a token is configured but no
// document exists yet, a document is created first. Shard failures do not stop
// later shards; they are joined into the returned error.
func (e *Engine) SyncAll(ctx context.Context, opts SyncOptions) (*Report, error) {
	start := time.Now()
	report := &Report{}

	creds, err := e.creds.Credentials(ctx)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	if creds.Token == "" {
		return nil, domainerrors.Unauthorized("remote sync is not configured: no access token")
	}
	if creds.DocumentID == "" {
		docID, err := e.Bootstrap(ctx)
		if err != nil {
			return nil, err
		}
		report.Bootstrapped = true
		creds.DocumentID = docID
	}
	report.DocumentID = creds.DocumentID

	var errs []error
	for _, idx := range shard.All() {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		local, err := e.local.ScanShard(ctx, idx)
		if err != nil {
			errs = append(errs, fmt.Errorf("scan shard %d: %w", idx, err))
			continue
		}
		res, err := e.SyncShard(ctx, idx, local, false)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if opts.Pull {
			res.Pulled = e.pull(ctx, res)
			report.Pulled += res.Pulled
		}
		if res.Uploaded {
			report.Uploaded++
		}
		report.Shards = append(report.Shards, res)
	}
	report.Duration = time.Since(start)

	e.logger.Info("sync complete",
		"document_id", report.DocumentID,
		"uploaded", report.Uploaded,
		"pulled", report.Pulled,
		"failed", len(errs),
		"duration", report.Duration,
	)
	return report, domainerrors.Join(errs...)
}

// pull writes remote-newer and remote-only records into the local store.
func (e *Engine) pull(ctx context.Context, res *ShardResult) int {
	pulled := 0
	for _, ids := range [][]string{res.RemoteNewer, res.RemoteOnly} {
		for _, postID := range ids {
			rec := res.Merged[postID].Clone()
			if err := e.local.Put(ctx, rec, store.OriginRemote); err != nil {
				e.logger.Warn("failed to pull record", "post_id", postID, "error", err)
				continue
			}
			pulled++
		}
	}
	return pulled
}

// Bootstrap creates a new remote document holding a manifest and one empty
// file per shard, and stores its id.
func (e *Engine) Bootstrap(ctx context.Context) (string, error) {
	m, err := json.MarshalIndent(manifest{
		App:           "tagsync",
		FormatVersion: FormatVersion,
		ClientID:      id.ClientID(),
		Shards:        shard.Count,
		CreatedAt:     time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return "", err
	}

	empty, err := wire.EncodeShard(nil)
	if err != nil {
		return "", err
	}

	files := map[string]string{shard.ManifestFileName: string(m)}
	for _, idx := range shard.All() {
		files[shard.FileName(idx)] = empty
	}

	docID, err := e.remote.Create(ctx, DocumentDescription, files)
	if err != nil {
		return "", remote.DomainError(err, "create remote document")
	}
	if err := e.creds.SetDocumentID(ctx, docID); err != nil {
		return "", fmt.Errorf("store document id: %w", err)
	}

	e.logger.Info("remote document created", "document_id", docID)
	return docID, nil
}
