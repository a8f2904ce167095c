package postgres

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/felixgeelhaar/polyglot/internal/preference"
	"github.com/felixgeelhaar/polyglot/internal/storage/migrations"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PreferenceStore implements preference.Store using PostgreSQL
type PreferenceStore struct {
	pool *pgxpool.Pool
}

var _ preference.Store = (*PreferenceStore)(nil)

// NewPreferenceStore creates a store over an existing pool
func NewPreferenceStore(pool *pgxpool.Pool) *PreferenceStore {
	return &PreferenceStore{pool: pool}
}

// Open connects to dsn, verifies connectivity and applies migrations
func Open(ctx context.Context, dsn string) (*PreferenceStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if err := Migrate(ctx, pool, migrations.FS); err != nil {
		pool.Close()
		return nil, err
	}
	return NewPreferenceStore(pool), nil
}

// Migrate applies pending migrations from fsys, one transaction each
func Migrate(ctx context.Context, pool *pgxpool.Pool, fsys fs.FS) error {
	_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`)
	if err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	var current int
	if err := pool.QueryRow(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	files, err := migrations.Files(fsys)
	if err != nil {
		return err
	}

	for _, m := range files {
		if m.Version <= current {
			continue
		}
		data, err := fs.ReadFile(fsys, m.Name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", m.Name, err)
		}

		err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, string(data)); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT DO NOTHING", m.Version)
			return err
		})
		if err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
		slog.Info("applied migration", "name", m.Name, "version", m.Version, "driver", "postgres")
	}
	return nil
}

func (s *PreferenceStore) Get(ctx context.Context, scope, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM preferences WHERE scope = $1 AND key = $2`, scope, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", preference.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query preference: %w", err)
	}
	return value, nil
}

func (s *PreferenceStore) Set(ctx context.Context, scope, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO preferences (scope, key, value, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (scope, key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = EXCLUDED.updated_at`,
		scope, key, value,
	)
	if err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}

func (s *PreferenceStore) Close() error {
	s.pool.Close()
	return nil
}
