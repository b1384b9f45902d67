package kv

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a Redis server.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects a Redis store. The connection is lazy; use Ping to check it.
func NewRedis(opt *redis.Options) *Redis {
	return &Redis{Client: redis.NewClient(opt)}
}

// Ping checks connectivity.
func (s *Redis) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

// Get implements Store.
func (s *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set implements Store.
func (s *Redis) Set(ctx context.Context, key string, value []byte) error {
	return s.Client.Set(ctx, key, value, 0).Err()
}

// Delete implements Store.
func (s *Redis) Delete(ctx context.Context, key string) error {
	return s.Client.Del(ctx, key).Err()
}

// Scan implements Store. Keys are collected with SCAN first, then read in
// sorted order; keys deleted in between are skipped.
func (s *Redis) Scan(ctx context.Context, prefix string, fn func(string, []byte) error) error {
	var keys []string
	iter := s.Client.Scan(ctx, 0, globEscape(prefix)+"*", 256).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	sort.Strings(keys)

	for _, key := range keys {
		val, found, err := s.Get(ctx, key)
		if err != nil {
			return err
		}
		if !found {
			continue
		}
		if err := fn(key, val); err != nil {
			return err
		}
	}
	return nil
}

// Close implements Store.
func (s *Redis) Close() error {
	return s.Client.Close()
}

func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
