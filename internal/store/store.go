// Package store persists post tag records on top of a key-value backend.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/listenupapp/tagsync/internal/domain"
	"github.com/listenupapp/tagsync/internal/kv"
	"github.com/listenupapp/tagsync/internal/shard"
)

// EventEmitter receives store change notifications.
// Store uses this to broadcast changes without depending on who listens.
type EventEmitter interface {
	Emit(event any)
}

// NoopEmitter is a no-op implementation of EventEmitter for testing.
type NoopEmitter struct{}

// Emit implements EventEmitter.Emit as a no-op.
func (NoopEmitter) Emit(_ any) {}

// NewNoopEmitter creates a new no-op emitter for testing.
func NewNoopEmitter() EventEmitter {
	return NoopEmitter{}
}

// SearchIndexer is the interface for updating the search index.
// Store uses this to keep search in sync without depending on search implementation.
type SearchIndexer interface {
	IndexRecord(ctx context.Context, rec *domain.PostTagRecord) error
	DeleteRecord(ctx context.Context, postID string) error
}

// NoopSearchIndexer is a no-op implementation for testing.
type NoopSearchIndexer struct{}

// IndexRecord is a no-op.
func (NoopSearchIndexer) IndexRecord(context.Context, *domain.PostTagRecord) error { return nil }

// DeleteRecord is a no-op.
func (NoopSearchIndexer) DeleteRecord(context.Context, string) error { return nil }

// Origin says where a write came from.
type Origin string

const (
	// OriginLocal is an edit made on this device.
	OriginLocal Origin = "local"
	// OriginImport is a record written by the import engine.
	OriginImport Origin = "import"
	// OriginRemote is a record pulled from the remote store during sync.
	OriginRemote Origin = "remote"
)

// IsLocalWrite reports whether writes with this origin are stamped with a
// fresh local timestamp and need to be pushed.
func (o Origin) IsLocalWrite() bool {
	return o == OriginLocal || o == OriginImport
}

// RecordChanged is emitted after every successful write or delete.
type RecordChanged struct {
	PostID  string
	Shard   int
	Origin  Origin
	Deleted bool
}

// Key layout: post:{shard}:{postID} -> PostTagRecord JSON.
const postPrefix = "post:"

func postKey(postID string) string {
	return shardPrefix(shard.Of(postID)) + postID
}

func shardPrefix(idx int) string {
	return postPrefix + strconv.Itoa(idx) + ":"
}

// Store keeps the local copy of every post's groups.
type Store struct {
	kv     kv.Store
	logger *slog.Logger

	// mu serializes read-modify-write sequences on records.
	mu sync.Mutex

	eventEmitter  EventEmitter
	searchIndexer SearchIndexer

	now func() time.Time
}

// New creates a Store over backend. A nil emitter disables notifications.
func New(backend kv.Store, logger *slog.Logger, emitter EventEmitter) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	return &Store{
		kv:            backend,
		logger:        logger,
		eventEmitter:  emitter,
		searchIndexer: NoopSearchIndexer{},
		now:           time.Now,
	}
}

// SetEventEmitter replaces the emitter. Listeners that need the store
// themselves (the sync scheduler) are attached after creation.
func (s *Store) SetEventEmitter(emitter EventEmitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventEmitter = emitter
}

// SetSearchIndexer sets the search indexer for keeping search in sync.
func (s *Store) SetSearchIndexer(indexer SearchIndexer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchIndexer = indexer
}

// KV exposes the backend so other components can keep their own keys next
// to the records.
func (s *Store) KV() kv.Store {
	return s.kv
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.kv.Close()
}

// Get returns the record for postID or ErrNotFound.
func (s *Store) Get(ctx context.Context, postID string) (*domain.PostTagRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.get(ctx, postID)
}

func (s *Store) get(ctx context.Context, postID string) (*domain.PostTagRecord, error) {
	var rec domain.PostTagRecord
	found, err := kv.GetJSON(ctx, s.kv, postKey(postID), &rec)
	if err != nil {
		return nil, fmt.Errorf("get record %s: %w", postID, err)
	}
	if !found {
		return nil, ErrNotFound.WithMessage("no groups stored for post " + postID)
	}
	return &rec, nil
}

// Put writes rec. Local and import writes are stamped with
// max(now, previous+1); remote writes keep their timestamp. A record with no
// non-empty group is deleted instead. rec is updated in place with what was
// stored.
func (s *Store) Put(ctx context.Context, rec *domain.PostTagRecord, origin Origin) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec == nil || rec.PostID == "" {
		return ErrInvalidInput.WithMessage("record requires a post id")
	}

	rec.Groups = rec.Groups.Compact()
	if rec.Groups.Len() == 0 {
		return s.Delete(ctx, rec.PostID, origin)
	}

	s.mu.Lock()
	if origin.IsLocalWrite() {
		prev, err := s.get(ctx, rec.PostID)
		if err != nil && !isNotFound(err) {
			s.mu.Unlock()
			return err
		}
		var floor int64
		if prev != nil {
			floor = prev.UpdatedAt
		}
		stamped := domain.PostTagRecord{UpdatedAt: floor}
		stamped.Touch(s.now())
		rec.UpdatedAt = stamped.UpdatedAt
	}

	data, err := json.Marshal(rec)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := s.kv.Set(ctx, postKey(rec.PostID), data); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("put record %s: %w", rec.PostID, err)
	}
	emitter, indexer := s.eventEmitter, s.searchIndexer
	s.mu.Unlock()

	if err := indexer.IndexRecord(ctx, rec); err != nil {
		s.logger.Warn("failed to index record", "post_id", rec.PostID, "error", err)
	}
	emitter.Emit(RecordChanged{PostID: rec.PostID, Shard: shard.Of(rec.PostID), Origin: origin})

	s.logger.Debug("record stored",
		"post_id", rec.PostID,
		"origin", origin,
		"groups", rec.Groups.Len(),
		"updated_at", rec.UpdatedAt,
	)
	return nil
}

// Delete removes the record for postID. Deleting a missing record is a no-op.
func (s *Store) Delete(ctx context.Context, postID string, origin Origin) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	key := postKey(postID)
	_, found, err := s.kv.Get(ctx, key)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("delete record %s: %w", postID, err)
	}
	if !found {
		s.mu.Unlock()
		return nil
	}
	if err := s.kv.Delete(ctx, key); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("delete record %s: %w", postID, err)
	}
	emitter, indexer := s.eventEmitter, s.searchIndexer
	s.mu.Unlock()

	if err := indexer.DeleteRecord(ctx, postID); err != nil {
		s.logger.Warn("failed to remove record from index", "post_id", postID, "error", err)
	}
	emitter.Emit(RecordChanged{PostID: postID, Shard: shard.Of(postID), Origin: origin, Deleted: true})
	return nil
}

// ScanShard returns every record whose post id maps to shard idx.
func (s *Store) ScanShard(ctx context.Context, idx int) (map[string]*domain.PostTagRecord, error) {
	if !shard.Valid(idx) {
		return nil, ErrInvalidInput.WithMessage(fmt.Sprintf("invalid shard %d", idx))
	}
	return s.scan(ctx, shardPrefix(idx))
}

// All returns every stored record keyed by post id.
func (s *Store) All(ctx context.Context) (map[string]*domain.PostTagRecord, error) {
	return s.scan(ctx, postPrefix)
}

// Count returns the number of stored records.
func (s *Store) Count(ctx context.Context) (int, error) {
	n := 0
	err := s.kv.Scan(ctx, postPrefix, func(string, []byte) error {
		n++
		return nil
	})
	return n, err
}

func (s *Store) scan(ctx context.Context, prefix string) (map[string]*domain.PostTagRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]*domain.PostTagRecord)
	err := s.kv.Scan(ctx, prefix, func(key string, val []byte) error {
		var rec domain.PostTagRecord
		if err := json.Unmarshal(val, &rec); err != nil {
			s.logger.Warn("skipping malformed record", "key", key, "error", err)
			return nil
		}
		out[rec.PostID] = &rec
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", prefix, err)
	}
	return out, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
