package restrict_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/listenupapp/tagsync/internal/errors"
	"github.com/listenupapp/tagsync/internal/restrict"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestCheck(t *testing.T) {
	l := restrict.New("Spoiler", "nsfw")

	assert.NoError(t, l.Check([]string{"a", "b"}))
	assert.NoError(t, l.Check(nil))

	err := l.Check([]string{"a", "spoiler", "NSFW", "spoiler"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
	assert.Contains(t, err.Error(), "spoiler, NSFW")

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, map[string]any{"restricted": []string{"spoiler", "NSFW"}}, domainErr.Details)
}

func TestCheck_UnicodeForms(t *testing.T) {
	l := restrict.New("caf\u00e9")

	// Decomposed accent, upper case.
	err := l.Check([]string{"CAFE\u0301"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CAFE\u0301")

	assert.NoError(t, l.Check([]string{"cafe"}))
}

func TestCheck_NilAndZero(t *testing.T) {
	var nilList *restrict.List
	assert.NoError(t, nilList.Check([]string{"x"}))

	var zero restrict.List
	assert.NoError(t, zero.Check([]string{"x"}))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "restricted.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nfoo\n\n  bar  \n"), 0o644))

	l, err := restrict.Load(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, []string{"bar", "foo"}, l.Tags())
}

func TestLoad_MissingFileIsEmpty(t *testing.T) {
	l, err := restrict.Load(filepath.Join(t.TempDir(), "none.txt"), testLogger())
	require.NoError(t, err)
	assert.Empty(t, l.Tags())

	l, err = restrict.Load("", testLogger())
	require.NoError(t, err)
	assert.NoError(t, l.Check([]string{"anything"}))
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "restricted.txt")
	require.NoError(t, os.WriteFile(path, []byte("foo\n"), 0o644))

	l, err := restrict.Load(path, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, l.Watch(ctx))
	defer l.Close()

	require.NoError(t, os.WriteFile(path, []byte("foo\nbaz\n"), 0o644))
	require.Eventually(t, func() bool {
		return l.Check([]string{"baz"}) != nil
	}, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		return len(l.Tags()) == 0
	}, 3*time.Second, 20*time.Millisecond)
}
