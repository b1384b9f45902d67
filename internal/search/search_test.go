package search

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/tagsync/internal/domain"
)

// setupTestIndex creates a temporary on-disk search index for testing.
func setupTestIndex(t *testing.T) (*SearchIndex, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "search-test-*")
	require.NoError(t, err)

	index, err := NewSearchIndex(Options{
		DataPath: tmpDir,
		Logger:   nil,
	})
	require.NoError(t, err)

	cleanup := func() {
		_ = index.Close()
		_ = os.RemoveAll(tmpDir)
	}

	return index, cleanup
}

func rec(postID string, updatedAt int64, groups ...domain.Group) *domain.PostTagRecord {
	return &domain.PostTagRecord{PostID: postID, UpdatedAt: updatedAt, Groups: domain.NewGroupMap(groups...)}
}

func seed(t *testing.T, index *SearchIndex) {
	t.Helper()
	err := index.IndexRecords(context.Background(), []*domain.PostTagRecord{
		rec("1", 100, domain.Group{Name: "artist", Tags: []string{"monet"}}, domain.Group{Name: "medium", Tags: []string{"oil"}}),
		rec("2", 300, domain.Group{Name: "artist", Tags: []string{"renoir"}}),
		rec("3", 200, domain.Group{Name: "subject", Tags: []string{"monet"}}),
	})
	require.NoError(t, err)
}

func TestNewSearchIndex(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestNewSearchIndex_InMemory(t *testing.T) {
	index, err := NewSearchIndex(Options{})
	require.NoError(t, err)
	defer index.Close()

	require.NoError(t, index.IndexRecord(context.Background(), rec("9", 1, domain.Group{Name: "g", Tags: []string{"t"}})))
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestNewSearchIndex_ReopensExisting(t *testing.T) {
	tmpDir := t.TempDir()

	index, err := NewSearchIndex(Options{DataPath: tmpDir})
	require.NoError(t, err)
	require.NoError(t, index.IndexRecord(context.Background(), rec("5", 1, domain.Group{Name: "g", Tags: []string{"t"}})))
	require.NoError(t, index.Close())

	reopened, err := NewSearchIndex(Options{DataPath: tmpDir})
	require.NoError(t, err)
	defer reopened.Close()

	count, err := reopened.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestNewSearchIndex_VersionMismatchRebuilds(t *testing.T) {
	tmpDir := t.TempDir()

	index, err := NewSearchIndex(Options{DataPath: tmpDir})
	require.NoError(t, err)
	require.NoError(t, index.IndexRecord(context.Background(), rec("5", 1, domain.Group{Name: "g", Tags: []string{"t"}})))
	require.NoError(t, index.Close())

	require.NoError(t, os.WriteFile(tmpDir+"/search.version", []byte("0"), 0644))

	rebuilt, err := NewSearchIndex(Options{DataPath: tmpDir})
	require.NoError(t, err)
	defer rebuilt.Close()

	count, err := rebuilt.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestFind(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()
	seed(t, index)
	ctx := context.Background()

	tests := []struct {
		name   string
		params Params
		want   []string
	}{
		{"by tag in any group", Params{Tag: "monet"}, []string{"3", "1"}},
		{"by group", Params{Group: "artist"}, []string{"2", "1"}},
		{"by group and tag", Params{Group: "artist", Tag: "monet"}, []string{"1"}},
		{"tag in other group does not match", Params{Group: "medium", Tag: "monet"}, []string{}},
		{"everything newest first", Params{}, []string{"2", "3", "1"}},
		{"case sensitive", Params{Tag: "Monet"}, []string{}},
		{"paginated", Params{Limit: 1, Offset: 1}, []string{"3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := index.Find(ctx, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.PostIDs)
		})
	}
}

func TestFind_Facets(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()
	seed(t, index)

	res, err := index.Find(context.Background(), Params{IncludeFacets: true})
	require.NoError(t, err)
	assert.Contains(t, res.Groups, FacetCount{Value: "artist", Count: 2})
	assert.Contains(t, res.Tags, FacetCount{Value: "monet", Count: 2})
}

func TestDeleteRecord(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()
	seed(t, index)
	ctx := context.Background()

	require.NoError(t, index.DeleteRecord(ctx, "1"))

	res, err := index.Find(ctx, Params{Tag: "monet"})
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, res.PostIDs)
}

func TestIndexRecord_ReplacesPreviousVersion(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()
	seed(t, index)
	ctx := context.Background()

	require.NoError(t, index.IndexRecord(ctx, rec("1", 400, domain.Group{Name: "medium", Tags: []string{"oil"}})))

	res, err := index.Find(ctx, Params{Group: "artist"})
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, res.PostIDs)
}

func TestRebuild(t *testing.T) {
	index, cleanup := setupTestIndex(t)
	defer cleanup()
	seed(t, index)
	ctx := context.Background()

	err := index.Rebuild(ctx, []*domain.PostTagRecord{
		rec("7", 1, domain.Group{Name: "g", Tags: []string{"t"}}),
	})
	require.NoError(t, err)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
}

func TestNewDocument(t *testing.T) {
	doc := NewDocument(rec("4", 9,
		domain.Group{Name: "a", Tags: []string{"x", "y"}},
		domain.Group{Name: "b", Tags: []string{"x"}},
	))

	assert.Equal(t, "4", doc.PostID)
	assert.Equal(t, []string{"a", "b"}, doc.Groups)
	assert.Equal(t, []string{"x", "y"}, doc.Tags)
	assert.Equal(t, []string{"a:x", "a:y", "b:x"}, doc.Pairs)
}
