// Package sqlite stores tenant slots in a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/logger"
	_ "github.com/mattn/go-sqlite3"

	"luckydraw/internal/storage"
)

// Backend is a storage.Backend over a single SQLite database.
type Backend struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and prepares the kv table.
func Open(path string) (*Backend, error) {
	// WAL + busy timeout; SQLite has a single writer so one connection is enough.
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kv (
			tenant TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (tenant, key)
		)
	`); err != nil {
		_ = db.Close()
		logger.Errorf("Failed to create kv table: %v", err)
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}

	return &Backend{db: db}, nil
}

func (b *Backend) Slot(tenantID string) storage.Store {
	return &slot{db: b.db, tenantID: tenantID}
}

func (b *Backend) Delete(ctx context.Context, tenantID string) error {
	if _, err := b.db.ExecContext(ctx, `DELETE FROM kv WHERE tenant = ?`, tenantID); err != nil {
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
		`SELECT value FROM kv WHERE tenant = ? AND key = ?`, s.tenantID, key,
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
		INSERT INTO kv (tenant, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(tenant, key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, s.tenantID, key, value, time.Now())
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
