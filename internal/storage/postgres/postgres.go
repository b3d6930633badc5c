// Package postgres stores tenant slots in a PostgreSQL table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/logger"
	_ "github.com/lib/pq"

	"luckydraw/internal/storage"
)

// Backend is a storage.Backend over PostgreSQL.
type Backend struct {
	db *sql.DB
}

// Open connects with the given URL and prepares the kv table.
func Open(ctx context.Context, dbURL string) (*Backend, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS luckydraw_kv (
			tenant TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (tenant, key)
		)
	`); err != nil {
		_ = db.Close()
		logger.Errorf("Failed to create luckydraw_kv table: %v", err)
		return nil, fmt.Errorf("failed to create luckydraw_kv table: %w", err)
	}

	return &Backend{db: db}, nil
}

func (b *Backend) Slot(tenantID string) storage.Store {
	return &slot{db: b.db, tenantID: tenantID}
}

func (b *Backend) Delete(ctx context.Context, tenantID string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM luckydraw_kv WHERE tenant = $1`, tenantID); err != nil {
		return fmt.Errorf("failed to delete tenant %s: %w", tenantID, err)
	}
	return nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}

type slot struct {
	db       *sql.DB
	tenantID string
}

func (s *slot) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM luckydraw_kv WHERE tenant = $1 AND key = $2`, s.tenantID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

func (s *slot) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO luckydraw_kv (tenant, key, value) VALUES ($1, $2, $3)
		ON CONFLICT (tenant, key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = now()
	`, s.tenantID, key, value)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
