package service

import (
	"context"
	"log/slog"

	"github.com/listenupapp/tagsync/internal/domain"
	"github.com/listenupapp/tagsync/internal/dsl"
	domainerrors "github.com/listenupapp/tagsync/internal/errors"
	"github.com/listenupapp/tagsync/internal/sanitize"
	"github.com/listenupapp/tagsync/internal/search"
	"github.com/listenupapp/tagsync/internal/store"
)

// TagStore is the local record store.
type TagStore interface {
	Get(ctx context.Context, postID string) (*domain.PostTagRecord, error)
	Put(ctx context.Context, rec *domain.PostTagRecord, origin store.Origin) error
	Delete(ctx context.Context, postID string, origin store.Origin) error
}

// RestrictedChecker rejects tags that may not be saved.
type RestrictedChecker interface {
	Check(tags []string) error
}

// Finder looks posts up by group and tag.
type Finder interface {
	Find(ctx context.Context, params search.Params) (*search.Result, error)
}

// TagService orchestrates editing the tag groups of a post.
type TagService struct {
	store      TagStore
	restricted RestrictedChecker
	finder     Finder
	logger     *slog.Logger
}

// NewTagService creates a new tag service. restricted and finder may be nil.
func NewTagService(store TagStore, restricted RestrictedChecker, finder Finder, logger *slog.Logger) *TagService {
	return &TagService{
		store:      store,
		restricted: restricted,
		finder:     finder,
		logger:     logger,
	}
}

// SaveResult is the outcome of saving a tag string.
type SaveResult struct {
	// Record is nil when the text had no groups and the record was removed.
	Record *domain.PostTagRecord `json:"record,omitempty"`

	// Text is the flat tag string to store in the site's own tag field.
	Text string `json:"text"`
}

// LoadResult is a tag string rebuilt for editing.
type LoadResult struct {
	Record *domain.PostTagRecord `json:"record,omitempty"`
	Text   string                `json:"text"`

	// Pruned reports whether groups lost tags that are no longer on the post.
	Pruned bool `json:"pruned"`
}

// Save parses text and stores its groups for postID. A restricted tag rejects
// the whole save and nothing is written. Text without groups removes the
// stored record.
func (s *TagService) Save(ctx context.Context, postID, text string) (*SaveResult, error) {
	if !domain.IsNumericID(postID) {
		return nil, domainerrors.Validationf("post id %q is not numeric", postID)
	}

	parsed := dsl.Parse(text)
	for name := range parsed.Groups.All() {
		if !sanitize.ValidGroupName(name) {
			return nil, domainerrors.Validationf("group name %q is reserved or longer than %d characters", name, sanitize.MaxGroupNameLen)
		}
	}
	tags := dsl.Tags(text)
	for _, t := range tags {
		if problem := sanitize.TagProblem(t); problem != "" {
			return nil, domainerrors.Validationf("tag %q %s", t, problem)
		}
	}
	if s.restricted != nil {
		if err := s.restricted.Check(tags); err != nil {
			return nil, err
		}
	}

	res := &SaveResult{Text: dsl.Flatten(text)}
	groups := parsed.Groups.Compact()
	if groups.Len() == 0 {
		if err := s.store.Delete(ctx, postID, store.OriginLocal); err != nil {
			return nil, err
		}
		s.logger.Debug("groups cleared", "post_id", postID)
		return res, nil
	}

	rec := &domain.PostTagRecord{PostID: postID, Groups: groups}
	if err := s.store.Put(ctx, rec, store.OriginLocal); err != nil {
		return nil, err
	}
	res.Record = rec

	s.logger.Info("groups saved",
		"post_id", postID,
		"groups", groups.Len(),
		"tags", len(tags),
	)
	return res, nil
}

// Load rebuilds the grouped tag string of postID from currentText, the flat
// tags the site holds now. Grouped tags missing from currentText are pruned
// from the stored record first. Without a stored record currentText is
// returned unchanged.
func (s *TagService) Load(ctx context.Context, postID, currentText string) (*LoadResult, error) {
	rec, err := s.store.Get(ctx, postID)
	if domainerrors.Is(err, store.ErrNotFound) {
		return &LoadResult{Text: currentText}, nil
	}
	if err != nil {
		return nil, err
	}

	pruned, changed := dsl.RemoveMissingTagsFromGroups(rec.Groups, dsl.Tags(currentText))
	if changed {
		rec.Groups = pruned
		if pruned.Len() == 0 {
			if err := s.store.Delete(ctx, postID, store.OriginLocal); err != nil {
				return nil, err
			}
			rec = nil
		} else if err := s.store.Put(ctx, rec, store.OriginLocal); err != nil {
			return nil, err
		}
		s.logger.Debug("pruned stale group tags", "post_id", postID)
	}

	return &LoadResult{
		Record: rec,
		Text:   dsl.Reconstruct(currentText, pruned),
		Pruned: changed,
	}, nil
}

// Toggle adds tag to or removes it from a group of postID. Removing the last
// tag of the last group removes the record.
func (s *TagService) Toggle(ctx context.Context, postID, group, tag string, on bool) (*domain.PostTagRecord, error) {
	if !domain.IsNumericID(postID) {
		return nil, domainerrors.Validationf("post id %q is not numeric", postID)
	}
	if !sanitize.ValidGroupName(group) {
		return nil, domainerrors.Validationf("invalid group name %q", group)
	}
	if problem := sanitize.TagProblem(tag); problem != "" {
		return nil, domainerrors.Validationf("tag %q %s", tag, problem)
	}

	rec, err := s.store.Get(ctx, postID)
	switch {
	case domainerrors.Is(err, store.ErrNotFound):
		rec = &domain.PostTagRecord{PostID: postID}
	case err != nil:
		return nil, err
	}

	if on {
		if s.restricted != nil {
			if err := s.restricted.Check([]string{tag}); err != nil {
				return nil, err
			}
		}
		rec.Groups.Add(group, tag)
	} else if !rec.Groups.RemoveTag(group, tag) {
		if rec.Groups.Len() == 0 {
			return nil, nil
		}
		return rec, nil
	}

	rec.IsImported = false
	if err := s.store.Put(ctx, rec, store.OriginLocal); err != nil {
		return nil, err
	}
	if rec.Groups.Len() == 0 {
		return nil, nil
	}
	return rec, nil
}

// Get returns the stored record of postID.
func (s *TagService) Get(ctx context.Context, postID string) (*domain.PostTagRecord, error) {
	rec, err := s.store.Get(ctx, postID)
	if domainerrors.Is(err, store.ErrNotFound) {
		return nil, domainerrors.NotFoundf("no groups stored for post %s", postID)
	}
	return rec, err
}

// Delete removes the stored record of postID.
func (s *TagService) Delete(ctx context.Context, postID string) error {
	return s.store.Delete(ctx, postID, store.OriginLocal)
}

// Find returns posts carrying tag in group. Either may be empty.
func (s *TagService) Find(ctx context.Context, params search.Params) (*search.Result, error) {
	if s.finder == nil {
		return nil, domainerrors.NotConfigured("search is not available")
	}
	return s.finder.Find(ctx, params)
}
