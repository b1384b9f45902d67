package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/tagsync/internal/settings"
)

func TestRemoteSettings_Update(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Get("/api/v1/settings/remote")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.False(t, decode[settings.Status](t, resp).Data.HasToken)

	resp = ts.api.Put("/api/v1/settings/remote", map[string]any{
		"token":       "ghp_secret",
		"document_id": "abc123",
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	env := decode[settings.Status](t, resp)
	assert.True(t, env.Data.HasToken)
	assert.Equal(t, "abc123", env.Data.DocumentID)
	assert.NotContains(t, resp.Body.String(), "ghp_secret")
}

func TestRemoteSettings_PartialUpdateKeepsToken(t *testing.T) {
	ts := setupTestServer(t)
	ts.connect(t)

	resp := ts.api.Put("/api/v1/settings/remote", map[string]any{"document_id": "doc2"})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	env := decode[settings.Status](t, resp)
	assert.True(t, env.Data.HasToken)
	assert.Equal(t, "doc2", env.Data.DocumentID)
}

func TestRemoteSettings_EmptyTokenDisconnects(t *testing.T) {
	ts := setupTestServer(t)
	ts.connect(t)

	resp := ts.api.Put("/api/v1/settings/remote", map[string]any{"token": ""})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.False(t, decode[settings.Status](t, resp).Data.HasToken)
}

func TestRemoteSettings_InvalidDocumentID(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Put("/api/v1/settings/remote", map[string]any{"document_id": "a/b"})
	require.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Equal(t, "VALIDATION", decode[any](t, resp).Code)
}
