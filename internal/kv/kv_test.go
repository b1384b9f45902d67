package kv_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/tagsync/internal/kv"
)

func backends(t *testing.T) map[string]kv.Store {
	t.Helper()

	dir, err := os.MkdirTemp("", "kv-test-*")
	require.NoError(t, err)

	db, err := kv.OpenBadger(dir, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
		_ = os.RemoveAll(dir)
	})

	out := map[string]kv.Store{
		"badger": db,
		"memory": kv.NewMemory(),
	}

	if addr := os.Getenv("TAGSYNC_TEST_REDIS_ADDR"); addr != "" {
		r := kv.NewRedis(&redis.Options{Addr: addr, DB: 15})
		require.NoError(t, r.Client.FlushDB(context.Background()).Err())
		t.Cleanup(func() { _ = r.Close() })
		out["redis"] = r
	}
	return out
}

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, found, err := s.Get(ctx, "missing")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, s.Set(ctx, "k", []byte("v1")))
			v, found, err := s.Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "v1", string(v))

			require.NoError(t, s.Set(ctx, "k", []byte("v2")))
			v, _, err = s.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, "v2", string(v))

			require.NoError(t, s.Delete(ctx, "k"))
			_, found, err = s.Get(ctx, "k")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, s.Delete(ctx, "never-existed"))
		})
	}
}

func TestStore_ScanPrefix(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"post:1:11", "post:1:21", "post:2:2", "sync:pending"} {
				require.NoError(t, s.Set(ctx, k, []byte(k)))
			}

			var keys []string
			err := s.Scan(ctx, "post:1:", func(key string, value []byte) error {
				assert.Equal(t, key, string(value))
				keys = append(keys, key)
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, []string{"post:1:11", "post:1:21"}, keys)
		})
	}
}

func TestStore_ScanStopsOnError(t *testing.T) {
	ctx := context.Background()
	stop := errors.New("stop")
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(ctx, "p:a", []byte("1")))
			require.NoError(t, s.Set(ctx, "p:b", []byte("2")))

			calls := 0
			err := s.Scan(ctx, "p:", func(string, []byte) error {
				calls++
				return stop
			})
			assert.ErrorIs(t, err, stop)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory()

	type state struct {
		Shards []int `json:"shards"`
	}

	var got state
	found, err := kv.GetJSON(ctx, s, "state", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, kv.SetJSON(ctx, s, "state", state{Shards: []int{1, 3}}))
	found, err = kv.GetJSON(ctx, s, "state", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []int{1, 3}, got.Shards)

	require.NoError(t, s.Set(ctx, "state", []byte("{")))
	_, err = kv.GetJSON(ctx, s, "state", &got)
	assert.Error(t, err)
}

func TestBadger_InMemory(t *testing.T) {
	db, err := kv.OpenBadger("", nil)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	require.NoError(t, db.Set(ctx, "a", []byte("b")))
	v, found, err := db.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "b", string(v))
}

func TestBadger_CanceledContext(t *testing.T) {
	db, err := kv.OpenBadger("", nil)
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = db.Get(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}
