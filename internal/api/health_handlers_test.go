package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/tagsync/internal/domain"
	"github.com/listenupapp/tagsync/internal/store"
)

func TestHealthCheck_NotConnected(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/health")
	require.Equal(t, http.StatusOK, resp.Code)

	env := decode[HealthResponse](t, resp)
	assert.True(t, env.Success)
	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.Equal(t, "degraded", env.Data.Status)
	assert.Equal(t, "healthy", env.Data.Components["store"].Status)
	assert.Equal(t, "healthy", env.Data.Components["search"].Status)
	assert.Equal(t, "not connected", env.Data.Components["remote"].Message)
}

func TestHealthCheck_Healthy(t *testing.T) {
	ts := setupTestServer(t)
	ts.connect(t)

	rec := &domain.PostTagRecord{PostID: "5", Groups: domain.NewGroupMap(domain.Group{Name: "g", Tags: []string{"t"}})}
	require.NoError(t, ts.store.Put(context.Background(), rec, store.OriginLocal))

	resp := ts.api.Get("/health")
	env := decode[HealthResponse](t, resp)

	assert.Equal(t, "healthy", env.Data.Status)
	assert.Equal(t, "1 records", env.Data.Components["store"].Message)
	assert.Equal(t, "1 documents", env.Data.Components["search"].Message)
}

func TestHealthCheck_NoServices(t *testing.T) {
	s := NewServer(&Services{}, DefaultOptions(), testLogger())
	t.Cleanup(s.Close)

	out, err := s.handleHealthCheck(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "degraded", out.Body.Status)
	assert.Len(t, out.Body.Components, 3)
}
