package service

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/tagsync/internal/domain"
	domainerrors "github.com/listenupapp/tagsync/internal/errors"
	"github.com/listenupapp/tagsync/internal/kv"
	"github.com/listenupapp/tagsync/internal/restrict"
	"github.com/listenupapp/tagsync/internal/search"
	"github.com/listenupapp/tagsync/internal/store"
)

type tagFixture struct {
	svc    *TagService
	search *SearchService
	store  *store.Store
	events *eventLog
}

type eventLog struct {
	events []store.RecordChanged
}

func (e *eventLog) Emit(event any) {
	if ev, ok := event.(store.RecordChanged); ok {
		e.events = append(e.events, ev)
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupTestTags creates a tag service over an in-memory store and index.
func setupTestTags(t *testing.T, restricted ...string) *tagFixture {
	t.Helper()

	events := &eventLog{}
	st := store.New(kv.NewMemory(), testLogger(), events)

	index, err := search.NewSearchIndex(search.Options{Logger: testLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	st.SetSearchIndexer(index)

	searchSvc := NewSearchService(index, st, testLogger())
	return &tagFixture{
		svc:    NewTagService(st, restrict.New(restricted...), searchSvc, testLogger()),
		search: searchSvc,
		store:  st,
		events: events,
	}
}

func TestTagService_Save(t *testing.T) {
	f := setupTestTags(t)
	ctx := context.Background()

	res, err := f.svc.Save(ctx, "123", "artist[ monet ] medium[ oil canvas ] landscape")
	require.NoError(t, err)

	assert.Equal(t, "monet oil canvas landscape ", res.Text)
	require.NotNil(t, res.Record)
	assert.Equal(t, []string{"artist", "medium"}, res.Record.Groups.Names())
	assert.Positive(t, res.Record.UpdatedAt)

	stored, err := f.store.Get(ctx, "123")
	require.NoError(t, err)
	assert.Equal(t, res.Record.Groups.Map(), stored.Groups.Map())

	require.Len(t, f.events.events, 1)
	assert.Equal(t, store.OriginLocal, f.events.events[0].Origin)
	assert.Equal(t, 3, f.events.events[0].Shard)
}

func TestTagService_SaveWithoutGroupsDeletes(t *testing.T) {
	f := setupTestTags(t)
	ctx := context.Background()

	_, err := f.svc.Save(ctx, "5", "g[ a ]")
	require.NoError(t, err)

	res, err := f.svc.Save(ctx, "5", "a b")
	require.NoError(t, err)
	assert.Nil(t, res.Record)
	assert.Equal(t, "a b ", res.Text)

	_, err = f.store.Get(ctx, "5")
	assert.ErrorIs(t, err, store.ErrNotFound)

	res, err = f.svc.Save(ctx, "6", "g[ ] loose")
	require.NoError(t, err)
	assert.Nil(t, res.Record, "empty groups are not stored")
}

func TestTagService_SaveRejectsRestrictedTags(t *testing.T) {
	f := setupTestTags(t, "spoiler")
	ctx := context.Background()

	_, err := f.svc.Save(ctx, "9", "g[ ok ]")
	require.NoError(t, err)

	_, err = f.svc.Save(ctx, "9", "g[ ok spoiler ] other")
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
	assert.Contains(t, err.Error(), "spoiler")

	stored, err := f.store.Get(ctx, "9")
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, stored.Groups.Tags("g"), "rejected save writes nothing")
}

func TestTagService_SaveValidatesInput(t *testing.T) {
	f := setupTestTags(t)

	_, err := f.svc.Save(context.Background(), "abc", "g[ a ]")
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestTagService_SaveRejectsGroupsOtherDevicesDrop(t *testing.T) {
	f := setupTestTags(t)
	ctx := context.Background()

	for _, text := range []string{
		"constructor[ a ]",
		"prototype[ a ]",
		"__proto__[ a ]",
		strings.Repeat("g", 65) + "[ a ]",
	} {
		_, err := f.svc.Save(ctx, "12", text)
		assert.ErrorIs(t, err, domainerrors.ErrValidation, text)
	}

	_, err := f.store.Get(ctx, "12")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.svc.Toggle(ctx, "12", "constructor", "a", true)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestTagService_SaveReportsTagProblem(t *testing.T) {
	f := setupTestTags(t)

	_, err := f.svc.Save(context.Background(), "13", "g[ a\x01b ]")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "control character")
	assert.NotContains(t, err.Error(), "longer than")
}

func TestTagService_SaveLeadingZeroPostID(t *testing.T) {
	f := setupTestTags(t)
	ctx := context.Background()

	res, err := f.svc.Save(ctx, "007", "g[ x ]")
	require.NoError(t, err)
	require.NotNil(t, res.Record)

	stored, err := f.store.Get(ctx, "007")
	require.NoError(t, err)
	assert.Equal(t, "007", stored.PostID)
}

func TestTagService_SaveClearsImportedFlag(t *testing.T) {
	f := setupTestTags(t)
	ctx := context.Background()

	imported := &domain.PostTagRecord{PostID: "8", IsImported: true, Groups: domain.NewGroupMap(domain.Group{Name: "g", Tags: []string{"a"}})}
	require.NoError(t, f.store.Put(ctx, imported, store.OriginImport))

	res, err := f.svc.Save(ctx, "8", "g[ a b ]")
	require.NoError(t, err)
	assert.False(t, res.Record.IsImported)
}

func TestTagService_Load(t *testing.T) {
	f := setupTestTags(t)
	ctx := context.Background()

	_, err := f.svc.Save(ctx, "1", "artist[ monet ] medium[ oil canvas ] landscape")
	require.NoError(t, err)

	// The site dropped "canvas" since the last edit.
	res, err := f.svc.Load(ctx, "1", "monet oil landscape")
	require.NoError(t, err)
	assert.True(t, res.Pruned)
	assert.Equal(t, "landscape\n\nartist[ monet ] \n\nmedium[ oil ] ", res.Text)

	stored, err := f.store.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"oil"}, stored.Groups.Tags("medium"))
}

func TestTagService_LoadWithoutRecord(t *testing.T) {
	f := setupTestTags(t)

	res, err := f.svc.Load(context.Background(), "2", "a b")
	require.NoError(t, err)
	assert.Equal(t, "a b", res.Text)
	assert.Nil(t, res.Record)
	assert.False(t, res.Pruned)
}

func TestTagService_LoadPrunesEverything(t *testing.T) {
	f := setupTestTags(t)
	ctx := context.Background()

	_, err := f.svc.Save(ctx, "3", "g[ a ]")
	require.NoError(t, err)

	res, err := f.svc.Load(ctx, "3", "b")
	require.NoError(t, err)
	assert.Equal(t, "b", res.Text)
	assert.Nil(t, res.Record)

	_, err = f.store.Get(ctx, "3")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestTagService_Toggle(t *testing.T) {
	f := setupTestTags(t, "banned")
	ctx := context.Background()

	rec, err := f.svc.Toggle(ctx, "4", "g", "a", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, rec.Groups.Tags("g"))
	first := rec.UpdatedAt

	rec, err = f.svc.Toggle(ctx, "4", "g", "b", true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rec.Groups.Tags("g"))
	assert.Greater(t, rec.UpdatedAt, first)

	_, err = f.svc.Toggle(ctx, "4", "g", "banned", true)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	_, err = f.svc.Toggle(ctx, "4", "bad name", "x", true)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	rec, err = f.svc.Toggle(ctx, "4", "g", "a", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, rec.Groups.Tags("g"))

	rec, err = f.svc.Toggle(ctx, "4", "g", "b", false)
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = f.store.Get(ctx, "4")
	assert.ErrorIs(t, err, store.ErrNotFound)

	rec, err = f.svc.Toggle(ctx, "4", "g", "never", false)
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestTagService_GetDeleteFind(t *testing.T) {
	f := setupTestTags(t)
	ctx := context.Background()

	_, err := f.svc.Get(ctx, "10")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	_, err = f.svc.Save(ctx, "10", "artist[ monet ]")
	require.NoError(t, err)
	_, err = f.svc.Save(ctx, "11", "subject[ monet ]")
	require.NoError(t, err)

	found, err := f.svc.Find(ctx, search.Params{Group: "artist", Tag: "monet"})
	require.NoError(t, err)
	assert.Equal(t, []string{"10"}, found.PostIDs)

	require.NoError(t, f.svc.Delete(ctx, "10"))
	found, err = f.svc.Find(ctx, search.Params{Tag: "monet"})
	require.NoError(t, err)
	assert.Equal(t, []string{"11"}, found.PostIDs)
}

func TestSearchService_ReindexAll(t *testing.T) {
	f := setupTestTags(t)
	ctx := context.Background()

	// Written without the indexer attached.
	f.store.SetSearchIndexer(store.NoopSearchIndexer{})
	_, err := f.svc.Save(ctx, "20", "g[ a ]")
	require.NoError(t, err)

	count, err := f.search.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)

	require.NoError(t, f.search.ReindexAll(ctx))
	count, err = f.search.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}
