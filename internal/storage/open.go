// Package storage selects a preference.Store implementation from config.
package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/felixgeelhaar/polyglot/internal/config"
	"github.com/felixgeelhaar/polyglot/internal/preference"
	"github.com/felixgeelhaar/polyglot/internal/storage/local"
	"github.com/felixgeelhaar/polyglot/internal/storage/postgres"
	"github.com/felixgeelhaar/polyglot/internal/storage/redis"
	"github.com/felixgeelhaar/polyglot/internal/storage/sqlite"
)

// OpenPreferences opens the store named by cfg.Driver. File-backed drivers
// default to locations under dataDir when cfg.Path is empty.
func OpenPreferences(ctx context.Context, cfg config.StorageConfig, dataDir string) (preference.Store, error) {
	switch cfg.Driver {
	case config.StorageSQLite, "":
		path := cfg.Path
		if path == "" {
			path = filepath.Join(dataDir, "polyglot.db")
		}
		return sqlite.OpenPreferenceStore(ctx, path)
	case config.StorageJSON:
		path := cfg.Path
		if path == "" {
			path = dataDir
		}
		return local.NewPreferenceStore(path)
	case config.StoragePostgres:
		return postgres.Open(ctx, cfg.DSN)
	case config.StorageRedis:
		return redis.Open(ctx, cfg.Addr)
	case config.StorageMemory:
		return preference.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", config.ErrInvalidConfig, cfg.Driver)
	}
}
