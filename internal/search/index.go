package search

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/listenupapp/tagsync/internal/domain"
)

// SearchIndex wraps a Bleve index of tag records.
//
// Thread safety: All public methods are safe for concurrent use.
// The mutex protects against index corruption during rebuild operations.
type SearchIndex struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex // Protects index operations during rebuild
}

// Options configures the search index.
type Options struct {
	// DataPath is the directory for index storage. Empty keeps the index in
	// memory; it is rebuilt from the store at startup either way.
	DataPath string
	Logger   *slog.Logger // Logger for operations (uses discard if nil)
}

// mappingVersion is incremented whenever the index mapping changes.
// This triggers an automatic rebuild on startup when the version doesn't match.
const mappingVersion = "1"

// NewSearchIndex creates or opens a search index.
// An on-disk index with an outdated mapping or that fails to open is removed
// and recreated.
func NewSearchIndex(opts Options) (*SearchIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if opts.DataPath == "" {
		index, err := bleve.NewMemOnly(buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		logger.Debug("created in-memory search index")
		return &SearchIndex{index: index, logger: logger}, nil
	}

	indexPath := filepath.Join(opts.DataPath, "search.bleve")
	versionPath := filepath.Join(opts.DataPath, "search.version")

	var index bleve.Index
	needsRebuild := false

	if _, statErr := os.Stat(indexPath); statErr == nil {
		existingVersion, readErr := os.ReadFile(versionPath)
		if readErr != nil || string(existingVersion) != mappingVersion {
			logger.Info("search index mapping version changed, will rebuild",
				"old_version", string(existingVersion),
				"new_version", mappingVersion,
			)
			needsRebuild = true
		} else {
			opened, err := bleve.Open(indexPath)
			if err != nil {
				logger.Warn("failed to open existing index, will recreate",
					"path", indexPath,
					"error", err,
				)
				needsRebuild = true
			} else {
				index = opened
			}
		}
	}

	if needsRebuild {
		if removeErr := os.RemoveAll(indexPath); removeErr != nil {
			return nil, fmt.Errorf("remove old index: %w", removeErr)
		}
	}

	if index == nil {
		created, err := bleve.New(indexPath, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if writeErr := os.WriteFile(versionPath, []byte(mappingVersion), 0644); writeErr != nil {
			logger.Warn("failed to write search version file", "error", writeErr)
		}
		index = created
		logger.Info("created new search index", "path", indexPath, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened existing search index", "path", indexPath)
	}

	return &SearchIndex{
		index:  index,
		path:   indexPath,
		logger: logger,
	}, nil
}

// Close closes the index and releases resources.
func (s *SearchIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexRecord implements store.SearchIndexer.
func (s *SearchIndex) IndexRecord(_ context.Context, rec *domain.PostTagRecord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := NewDocument(rec)
	return s.index.Index(doc.PostID, doc.ToMap())
}

// DeleteRecord implements store.SearchIndexer.
func (s *SearchIndex) DeleteRecord(_ context.Context, postID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(postID)
}

// IndexRecords indexes records in batches.
func (s *SearchIndex) IndexRecords(ctx context.Context, records []*domain.PostTagRecord) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexRecords(ctx, records)
}

func (s *SearchIndex) indexRecords(ctx context.Context, records []*domain.PostTagRecord) error {
	const batchSize = 500

	for i := 0; i < len(records); i += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(i+batchSize, len(records))

		batch := s.index.NewBatch()
		for _, rec := range records[i:end] {
			doc := NewDocument(rec)
			if err := batch.Index(doc.PostID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.PostID, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// DocumentCount returns the total number of indexed documents.
func (s *SearchIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops the index and indexes records from scratch.
//
// This acquires an exclusive lock and blocks all other operations.
func (s *SearchIndex) Rebuild(ctx context.Context, records []*domain.PostTagRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}

	var (
		index bleve.Index
		err   error
	)
	if s.path == "" {
		index, err = bleve.NewMemOnly(buildIndexMapping())
	} else {
		if err := os.RemoveAll(s.path); err != nil {
			return fmt.Errorf("remove index: %w", err)
		}
		index, err = bleve.New(s.path, buildIndexMapping())
	}
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	s.index = index

	if err := s.indexRecords(ctx, records); err != nil {
		return err
	}
	s.logger.Info("rebuilt search index", "path", s.path, "records", len(records))
	return nil
}
