// Package importer pulls tag records from a foreign remote document and
// merges them into the local store.
//
// Importing is a two step flow. Preview fetches the document, applies records
// the local store has never seen and parks the conflicting ones in a session.
// Resolve then applies one policy to every parked conflict.
package importer

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/listenupapp/tagsync/internal/domain"
	domainerrors "github.com/listenupapp/tagsync/internal/errors"
	"github.com/listenupapp/tagsync/internal/id"
	"github.com/listenupapp/tagsync/internal/kv"
	"github.com/listenupapp/tagsync/internal/remote"
	"github.com/listenupapp/tagsync/internal/sanitize"
	"github.com/listenupapp/tagsync/internal/shard"
	"github.com/listenupapp/tagsync/internal/store"
	"github.com/listenupapp/tagsync/internal/wire"
)

const sessionPrefix = "import:session:"

// DefaultSessionTTL is how long unresolved conflicts are kept.
const DefaultSessionTTL = 24 * time.Hour

// LocalStore is the part of the local store imports need.
type LocalStore interface {
	All(ctx context.Context) (map[string]*domain.PostTagRecord, error)
	Get(ctx context.Context, postID string) (*domain.PostTagRecord, error)
	Put(ctx context.Context, rec *domain.PostTagRecord, origin store.Origin) error
}

// Options configures an Engine.
type Options struct {
	Diff       DiffOptions
	SessionTTL time.Duration
}

// Engine runs imports.
type Engine struct {
	remote   remote.Service
	local    LocalStore
	sessions kv.Store
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an import engine. Sessions are kept in backend.
func New(svc remote.Service, local LocalStore, backend kv.Store, opts Options, logger *slog.Logger) *Engine {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		remote:   svc,
		local:    local,
		sessions: backend,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// FetchExternal downloads every shard file of docID and returns the union of
// their sanitized records. A file that cannot be decoded is logged and
// skipped. When a post appears in more than one file the newer record wins.
func (e *Engine) FetchExternal(ctx context.Context, docID string) (map[string]*domain.PostTagRecord, error) {
	docID = strings.TrimSpace(docID)
	if docID == "" {
		return nil, domainerrors.Validation("document id is required")
	}

	doc, err := e.remote.Get(ctx, docID)
	if err != nil {
		return nil, remote.DomainError(err, "failed to fetch import document")
	}

	names := make([]string, 0, len(doc.Files))
	for name := range doc.Files {
		if _, ok := shard.ParseFileName(name); ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)

	out := make(map[string]*domain.PostTagRecord)
	for _, name := range names {
		raw, err := wire.DecodeShard(doc.Files[name].Content)
		if err != nil {
			e.logger.Warn("skipping unreadable import file", "document_id", docID, "file", name, "error", err)
			continue
		}
		for postID, rec := range sanitize.Sanitize(raw) {
			if prev, ok := out[postID]; ok && prev.UpdatedAt >= rec.UpdatedAt {
				continue
			}
			out[postID] = rec
		}
	}

	e.logger.Info("fetched import document", "document_id", docID, "files", len(names), "records", len(out))
	return out, nil
}

// Preview fetches docID, applies new records and stores the conflicts in a
// session for Resolve.
func (e *Engine) Preview(ctx context.Context, docID string) (*Preview, error) {
	start := e.now()

	incoming, err := e.FetchExternal(ctx, docID)
	if err != nil {
		return nil, err
	}
	local, err := e.local.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("read local records: %w", err)
	}

	p := &Preview{
		DocumentID: strings.TrimSpace(docID),
		New:        []string{},
		Same:       []string{},
		Conflicts:  []DiffResult{},
	}
	for _, d := range Diff(local, incoming, e.opts.Diff) {
		switch d.Status {
		case StatusNew:
			p.New = append(p.New, d.PostID)
			e.apply(ctx, &p.Applied, d.PostID, d.Remote.Groups)
		case StatusSame:
			p.Same = append(p.Same, d.PostID)
			p.Applied.Skipped++
		case StatusConflict:
			p.Conflicts = append(p.Conflicts, d)
		}
	}

	if len(p.Conflicts) > 0 {
		sessionID, err := id.Generate("imp")
		if err != nil {
			return nil, err
		}
		sess := &Session{
			ID:         sessionID,
			DocumentID: p.DocumentID,
			CreatedAt:  e.now(),
			Conflicts:  p.Conflicts,
		}
		if err := kv.SetJSON(ctx, e.sessions, sessionPrefix+sessionID, sess); err != nil {
			return nil, fmt.Errorf("save import session: %w", err)
		}
		p.SessionID = sessionID
	}
	p.Applied.Duration = e.now().Sub(start)

	e.logger.Info("import previewed",
		"document_id", p.DocumentID,
		"new", len(p.New),
		"same", len(p.Same),
		"conflicts", len(p.Conflicts),
		"session_id", p.SessionID,
	)
	return p, nil
}

// Session returns a stored session.
func (e *Engine) Session(ctx context.Context, sessionID string) (*Session, error) {
	var sess Session
	found, err := kv.GetJSON(ctx, e.sessions, sessionPrefix+sessionID, &sess)
	if err != nil {
		return nil, fmt.Errorf("load import session: %w", err)
	}
	if !found {
		return nil, domainerrors.NotFoundf("import session %s not found", sessionID)
	}
	if sess.IsExpired(e.now(), e.opts.SessionTTL) {
		if err := e.sessions.Delete(ctx, sessionPrefix+sessionID); err != nil {
			e.logger.Warn("failed to drop expired import session", "session_id", sessionID, "error", err)
		}
		return nil, domainerrors.NotFoundf("import session %s expired", sessionID)
	}
	return &sess, nil
}

// Resolve applies policy to every conflict of the session and discards the
// session.
func (e *Engine) Resolve(ctx context.Context, sessionID string, policy Policy) (*Result, error) {
	if !policy.Valid() {
		return nil, domainerrors.Validationf("unknown policy %q", policy)
	}
	sess, err := e.Session(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	start := e.now()
	res := &Result{}
	for _, c := range sess.Conflicts {
		switch policy {
		case PolicyKeep:
			res.Skipped++
		case PolicyOverwrite:
			e.apply(ctx, res, c.PostID, c.Remote.Groups)
		case PolicyMerge:
			// Merge against the current record; it may have changed since the preview.
			current, err := e.local.Get(ctx, c.PostID)
			var groups domain.GroupMap
			switch {
			case err == nil:
				groups = current.Groups
			case domainerrors.Is(err, store.ErrNotFound):
			default:
				res.Errors = append(res.Errors, ItemError{PostID: c.PostID, Error: err.Error()})
				continue
			}
			e.apply(ctx, res, c.PostID, MergeGroups(groups, c.Remote.Groups))
		}
	}
	res.Duration = e.now().Sub(start)

	if err := e.sessions.Delete(ctx, sessionPrefix+sessionID); err != nil {
		e.logger.Warn("failed to delete import session", "session_id", sessionID, "error", err)
	}

	e.logger.Info("import resolved",
		"session_id", sessionID,
		"policy", policy,
		"imported", res.Imported,
		"skipped", res.Skipped,
		"errors", len(res.Errors),
		"duration", res.Duration,
	)
	return res, nil
}

// apply writes groups as an imported record.
func (e *Engine) apply(ctx context.Context, res *Result, postID string, groups domain.GroupMap) {
	rec := &domain.PostTagRecord{
		PostID:     postID,
		IsImported: true,
		Groups:     groups.Clone(),
	}
	if err := e.local.Put(ctx, rec, store.OriginImport); err != nil {
		e.logger.Warn("failed to import record", "post_id", postID, "error", err)
		res.Errors = append(res.Errors, ItemError{PostID: postID, Error: err.Error()})
		return
	}
	res.Imported++
}
