package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/listenupapp/tagsync/internal/errors"
	"github.com/listenupapp/tagsync/internal/kv"
	"github.com/listenupapp/tagsync/internal/scheduler"
	"github.com/listenupapp/tagsync/internal/settings"
	"github.com/listenupapp/tagsync/internal/syncer"
)

type fakeEngine struct {
	opts []syncer.SyncOptions
}

func (f *fakeEngine) SyncAll(_ context.Context, opts syncer.SyncOptions) (*syncer.Report, error) {
	f.opts = append(f.opts, opts)
	return &syncer.Report{DocumentID: "doc"}, nil
}

type fakePending struct {
	flushed int
}

func (f *fakePending) Status(context.Context) (scheduler.Status, error) {
	return scheduler.Status{Pending: []int{2}}, nil
}

func (f *fakePending) Flush(context.Context) (*scheduler.PassSummary, error) {
	f.flushed++
	return &scheduler.PassSummary{Attempted: []int{2}}, nil
}

func setupSettings(t *testing.T) *settings.Store {
	t.Helper()
	st, err := settings.NewStore(kv.NewMemory(), make([]byte, 32), testLogger())
	require.NoError(t, err)
	return st
}

func TestSyncService_SyncNowPullDefault(t *testing.T) {
	engine := &fakeEngine{}
	svc := NewSyncService(engine, &fakePending{}, setupSettings(t), true, testLogger())
	ctx := context.Background()

	_, err := svc.SyncNow(ctx, nil)
	require.NoError(t, err)

	off := false
	_, err = svc.SyncNow(ctx, &off)
	require.NoError(t, err)

	require.Len(t, engine.opts, 2)
	assert.True(t, engine.opts[0].Pull)
	assert.False(t, engine.opts[1].Pull)
}

func TestSyncService_StatusAndFlush(t *testing.T) {
	st := setupSettings(t)
	pending := &fakePending{}
	svc := NewSyncService(&fakeEngine{}, pending, st, false, testLogger())
	ctx := context.Background()

	require.NoError(t, st.SetDocumentID(ctx, "abc"))

	status, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Remote.HasToken)
	assert.Equal(t, "abc", status.Remote.DocumentID)
	assert.Equal(t, []int{2}, status.Scheduler.Pending)

	summary, err := svc.Flush(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, summary.Attempted)
	assert.Equal(t, 1, pending.flushed)
}

func TestSettingsService_UpdateRemote(t *testing.T) {
	st := setupSettings(t)
	svc := NewSettingsService(st, testLogger())
	ctx := context.Background()

	token, docID := " secret ", "doc-1"
	status, err := svc.UpdateRemote(ctx, &RemoteUpdate{Token: &token, DocumentID: &docID})
	require.NoError(t, err)
	assert.True(t, status.HasToken)
	assert.Equal(t, "doc-1", status.DocumentID)

	creds, err := st.Credentials(ctx)
	require.NoError(t, err)
	assert.Equal(t, "secret", creds.Token)

	bad := "a/b"
	_, err = svc.UpdateRemote(ctx, &RemoteUpdate{DocumentID: &bad})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	empty := ""
	status, err = svc.UpdateRemote(ctx, &RemoteUpdate{Token: &empty})
	require.NoError(t, err)
	assert.False(t, status.HasToken)
	assert.Empty(t, status.DocumentID)
}
