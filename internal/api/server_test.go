package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/tagsync/internal/domain"
	"github.com/listenupapp/tagsync/internal/importer"
	"github.com/listenupapp/tagsync/internal/kv"
	"github.com/listenupapp/tagsync/internal/remote"
	"github.com/listenupapp/tagsync/internal/restrict"
	"github.com/listenupapp/tagsync/internal/scheduler"
	"github.com/listenupapp/tagsync/internal/search"
	"github.com/listenupapp/tagsync/internal/service"
	"github.com/listenupapp/tagsync/internal/settings"
	"github.com/listenupapp/tagsync/internal/shard"
	"github.com/listenupapp/tagsync/internal/store"
	"github.com/listenupapp/tagsync/internal/syncer"
	"github.com/listenupapp/tagsync/internal/wire"
)

// testServer wraps the API server with the pieces tests poke at directly.
type testServer struct {
	*Server
	api       humatest.TestAPI
	store     *store.Store
	remote    *remote.MemoryService
	settings  *settings.Store
	scheduler *scheduler.Scheduler
}

// testEnvelope decodes the response envelope.
type testEnvelope[T any] struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details"`
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// setupTestServer wires the full stack over in-memory backends. The
// scheduler window is long enough that it never fires during a test.
func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := testLogger()

	backend := kv.NewMemory()
	st := store.New(backend, logger, nil)

	index, err := search.NewSearchIndex(search.Options{Logger: logger})
	require.NoError(t, err)
	st.SetSearchIndexer(index)

	creds, err := settings.NewStore(backend, make([]byte, 32), logger)
	require.NoError(t, err)

	svc := remote.NewMemoryService()
	engine := syncer.New(svc, creds, st, logger)

	sched := scheduler.New(backend, engine, st, scheduler.Config{
		Window: time.Hour,
		Logger: logger,
	})
	st.SetEventEmitter(sched)

	searchSvc := service.NewSearchService(index, st, logger)
	services := &Services{
		Tags:     service.NewTagService(st, restrict.New("forbidden"), searchSvc, logger),
		Search:   searchSvc,
		Sync:     service.NewSyncService(engine, sched, creds, false, logger),
		Settings: service.NewSettingsService(creds, logger),
		Imports:  importer.New(svc, st, backend, importer.Options{}, logger),
		Records:  st,
	}

	s := NewServer(services, Options{SyncRatePerMinute: 600}, logger)
	t.Cleanup(func() {
		sched.Stop()
		s.Close()
		_ = index.Close()
	})

	return &testServer{
		Server:    s,
		api:       wrap(t, s),
		store:     st,
		remote:    svc,
		settings:  creds,
		scheduler: sched,
	}
}

// connect stores a token so syncs can run against the memory service.
func (ts *testServer) connect(t *testing.T) {
	t.Helper()
	require.NoError(t, ts.settings.SetToken(context.Background(), "secret"))
}

// seedDocument publishes recs as a remote document split into shard files.
func (ts *testServer) seedDocument(t *testing.T, docID string, recs ...*domain.PostTagRecord) {
	t.Helper()
	byShard := map[int]map[string]*domain.PostTagRecord{}
	for _, r := range recs {
		idx := shard.Of(r.PostID)
		if byShard[idx] == nil {
			byShard[idx] = map[string]*domain.PostTagRecord{}
		}
		byShard[idx][r.PostID] = r
	}
	files := map[string]remote.File{}
	for idx, m := range byShard {
		content, err := wire.EncodeShard(m)
		require.NoError(t, err)
		files[shard.FileName(idx)] = remote.File{Name: shard.FileName(idx), Content: content}
	}
	ts.remote.Put(&remote.Document{ID: docID, Files: files})
}

func wrap(t *testing.T, s *Server) humatest.TestAPI {
	t.Helper()
	return humatest.Wrap(t, s.API())
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) testEnvelope[T] {
	t.Helper()
	var env testEnvelope[T]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	return env
}
