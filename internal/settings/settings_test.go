package settings_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/listenupapp/tagsync/internal/kv"
	"github.com/listenupapp/tagsync/internal/settings"
)

func setupTestSettings(t *testing.T) (*settings.Store, *kv.Memory) {
	t.Helper()
	backend := kv.NewMemory()
	key, err := settings.LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)
	s, err := settings.NewStore(backend, key, nil)
	require.NoError(t, err)
	return s, backend
}

func TestStore_EmptyByDefault(t *testing.T) {
	s, _ := setupTestSettings(t)

	creds, err := s.Credentials(context.Background())
	require.NoError(t, err)
	assert.False(t, creds.Configured())
	assert.Empty(t, creds.Token)

	_, err = s.Token()
	assert.ErrorIs(t, err, settings.ErrNoToken)
}

func TestStore_TokenIsSealedAtRest(t *testing.T) {
	s, backend := setupTestSettings(t)
	ctx := context.Background()

	require.NoError(t, s.SetToken(ctx, "ghp_secret"))
	require.NoError(t, s.SetDocumentID(ctx, "doc-1"))

	raw, found, err := backend.Get(ctx, "settings:remote")
	require.NoError(t, err)
	require.True(t, found)
	assert.False(t, bytes.Contains(raw, []byte("ghp_secret")))

	creds, err := s.Credentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings.Credentials{Token: "ghp_secret", DocumentID: "doc-1"}, creds)
	assert.True(t, creds.Configured())

	status, err := s.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.HasToken)
	assert.Equal(t, "doc-1", status.DocumentID)
}

func TestStore_TokenSource(t *testing.T) {
	s, _ := setupTestSettings(t)
	require.NoError(t, s.SetToken(context.Background(), "abc"))

	var src oauth2.TokenSource = s
	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.Type())
}

func TestStore_ClearAndEmptyToken(t *testing.T) {
	s, _ := setupTestSettings(t)
	ctx := context.Background()

	require.NoError(t, s.SetToken(ctx, "abc"))
	require.NoError(t, s.SetDocumentID(ctx, "doc"))
	require.NoError(t, s.SetToken(ctx, ""))

	creds, err := s.Credentials(ctx)
	require.NoError(t, err)
	assert.Empty(t, creds.Token)
	assert.Equal(t, "doc", creds.DocumentID)

	require.NoError(t, s.Clear(ctx))
	creds, err = s.Credentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings.Credentials{}, creds)
}

func TestStore_WrongKeyFailsToOpen(t *testing.T) {
	backend := kv.NewMemory()
	ctx := context.Background()

	k1, err := settings.LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)
	k2, err := settings.LoadOrGenerateKey(t.TempDir())
	require.NoError(t, err)

	s1, err := settings.NewStore(backend, k1, nil)
	require.NoError(t, err)
	require.NoError(t, s1.SetToken(ctx, "abc"))

	s2, err := settings.NewStore(backend, k2, nil)
	require.NoError(t, err)
	_, err = s2.Credentials(ctx)
	assert.Error(t, err)
}

func TestLoadOrGenerateKey(t *testing.T) {
	dir := t.TempDir()

	k1, err := settings.LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Len(t, k1, 32)

	k2, err := settings.LoadOrGenerateKey(dir)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)

	info, err := os.Stat(filepath.Join(dir, "settings.key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.key"), []byte("short"), 0o600))
	_, err = settings.LoadOrGenerateKey(dir)
	assert.Error(t, err)
}

func TestNewStore_BadKey(t *testing.T) {
	_, err := settings.NewStore(kv.NewMemory(), []byte("short"), nil)
	assert.Error(t, err)
}
