package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/polyglot/internal/preference"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "polyglot:prefs:"

// PreferenceStore keeps one Redis hash per scope
type PreferenceStore struct {
	rdb *goredis.Client
}

var _ preference.Store = (*PreferenceStore)(nil)

// Open connects to the Redis server at addr and verifies it answers
func Open(ctx context.Context, addr string) (*PreferenceStore, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewPreferenceStore(rdb), nil
}

// NewPreferenceStore creates a store over an existing client
func NewPreferenceStore(rdb *goredis.Client) *PreferenceStore {
	return &PreferenceStore{rdb: rdb}
}

func (s *PreferenceStore) Get(ctx context.Context, scope, key string) (string, error) {
	v, err := s.rdb.HGet(ctx, keyPrefix+scope, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", preference.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis hget: %w", err)
	}
	return v, nil
}

func (s *PreferenceStore) Set(ctx context.Context, scope, key, value string) error {
	if err := s.rdb.HSet(ctx, keyPrefix+scope, key, value).Err(); err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (s *PreferenceStore) Close() error {
	return s.rdb.Close()
}
