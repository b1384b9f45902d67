package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/tagsync/internal/domain"
	"github.com/listenupapp/tagsync/internal/shard"
)

func TestSyncNow_NotConnected(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/sync", map[string]any{})
	require.Equal(t, http.StatusUnauthorized, resp.Code, resp.Body.String())

	env := decode[any](t, resp)
	assert.Equal(t, "UNAUTHORIZED", env.Code)
}

func TestSyncNow_BootstrapsAndUploads(t *testing.T) {
	ts := setupTestServer(t)
	ts.connect(t)

	resp := ts.api.Put("/api/v1/posts/123", map[string]any{"text": "g[ a ]"})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Post("/api/v1/sync", map[string]any{})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	env := decode[SyncReportResponse](t, resp)
	assert.True(t, env.Data.Bootstrapped)
	assert.NotEmpty(t, env.Data.DocumentID)
	assert.Len(t, env.Data.Shards, shard.Count)

	status, err := ts.settings.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, env.Data.DocumentID, status.DocumentID)
}

func TestSyncNow_Pull(t *testing.T) {
	ts := setupTestServer(t)
	ts.connect(t)

	ts.seedDocument(t, "shared", &domain.PostTagRecord{
		PostID:    "77",
		UpdatedAt: 1000,
		Groups:    domain.NewGroupMap(domain.Group{Name: "remote", Tags: []string{"x"}}),
	})
	require.NoError(t, ts.settings.SetDocumentID(context.Background(), "shared"))

	resp := ts.api.Post("/api/v1/sync", map[string]any{"pull": true})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, 1, decode[SyncReportResponse](t, resp).Data.Pulled)

	resp = ts.api.Get("/api/v1/posts/77")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []GroupDTO{{Name: "remote", Tags: []string{"x"}}}, decode[PostResponse](t, resp).Data.Groups)

	// Pulled records are not queued for upload.
	status, err := ts.scheduler.Status(context.Background())
	require.NoError(t, err)
	assert.Empty(t, status.Pending)
}

func TestSyncStatusAndFlush(t *testing.T) {
	ts := setupTestServer(t)
	ts.connect(t)

	resp := ts.api.Put("/api/v1/posts/15", map[string]any{"text": "g[ a ]"})
	require.Equal(t, http.StatusOK, resp.Code)

	resp = ts.api.Get("/api/v1/sync/status")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	env := decode[SyncStatusResponse](t, resp)
	assert.True(t, env.Data.Remote.HasToken)
	assert.Equal(t, []int{shard.Of("15")}, env.Data.Scheduler.Pending)
	assert.False(t, env.Data.Scheduler.NextRun.IsZero())

	// Without a document the pass skips the shard quietly and clears it.
	resp = ts.api.Post("/api/v1/sync/flush")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	flushed := decode[FlushResponse](t, resp)
	assert.Equal(t, []int{shard.Of("15")}, flushed.Data.Attempted)

	resp = ts.api.Get("/api/v1/sync/status")
	assert.Empty(t, decode[SyncStatusResponse](t, resp).Data.Scheduler.Pending)
}

func TestSyncNow_RateLimited(t *testing.T) {
	ts := setupTestServer(t)
	s := NewServer(ts.services, Options{SyncRatePerMinute: 1}, testLogger())
	t.Cleanup(s.Close)

	api := wrap(t, s)
	codes := map[int]int{}
	for range 3 {
		resp := api.Post("/api/v1/sync", map[string]any{})
		codes[resp.Code]++
	}
	assert.Equal(t, 1, codes[http.StatusUnauthorized])
	assert.Equal(t, 2, codes[http.StatusTooManyRequests])
}
