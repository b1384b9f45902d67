package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/listenupapp/tagsync/internal/domain"
	"github.com/listenupapp/tagsync/internal/search"
)

// RecordLister lists every stored record.
type RecordLister interface {
	All(ctx context.Context) (map[string]*domain.PostTagRecord, error)
}

// SearchService bridges the search index with the record store.
type SearchService struct {
	index  *search.SearchIndex
	store  RecordLister
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(index *search.SearchIndex, store RecordLister, logger *slog.Logger) *SearchService {
	return &SearchService{
		index:  index,
		store:  store,
		logger: logger,
	}
}

// Find implements Finder.
func (s *SearchService) Find(ctx context.Context, params search.Params) (*search.Result, error) {
	return s.index.Find(ctx, params)
}

// DocumentCount returns the number of indexed records.
func (s *SearchService) DocumentCount() (uint64, error) {
	return s.index.DocumentCount()
}

// ReindexAll rebuilds the index from the store.
func (s *SearchService) ReindexAll(ctx context.Context) error {
	s.logger.Info("starting full reindex")

	all, err := s.store.All(ctx)
	if err != nil {
		return fmt.Errorf("list records: %w", err)
	}

	records := make([]*domain.PostTagRecord, 0, len(all))
	for _, rec := range all {
		records = append(records, rec)
	}
	slices.SortFunc(records, func(a, b *domain.PostTagRecord) int {
		switch {
		case a.PostID < b.PostID:
			return -1
		case a.PostID > b.PostID:
			return 1
		}
		return 0
	})

	if err := s.index.Rebuild(ctx, records); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}

	total, _ := s.index.DocumentCount()
	s.logger.Info("full reindex complete", "total_documents", total)
	return nil
}
