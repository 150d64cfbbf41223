// Package sqlite implements the portal's Store (spec §4.A) atop an
// embedded, cgo-free SQLite file, grounded on the teacher's
// internal/storage/sqlite package: plain database/sql, hand-written SQL,
// a forward-only migration dispatcher, and sentinel-error wrapping.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"sync"

	"github.com/chronokeeptiming/portal/internal/storage/sqlite/migrations"
	"github.com/chronokeeptiming/portal/internal/types"
)

// DefaultPath is the canonical database file name from spec §6.
const DefaultPath = "./chronokeep-portal.sqlite"

// Storage is the embedded SQLite implementation of storage.Store. All
// operations serialize behind mu, matching spec §4.A's "single exclusive
// lock" requirement; sql.DB's own connection pool is pinned to one
// connection so SQLite's single-writer model and our mutex agree.
type Storage struct {
	mu sync.Mutex
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite file at path.
func Open(path string) (*Storage, error) {
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, types.Wrap("open database", types.ErrConnectionError)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w: %v", types.ErrConnectionError, err)
	}
	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

// Setup creates the settings table if missing, reads the schema version,
// and runs migrations.Run to bring the schema up to date (spec §4.A).
func (s *Storage) Setup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS settings (
			name  VARCHAR NOT NULL,
			value VARCHAR NOT NULL,
			UNIQUE (name) ON CONFLICT REPLACE
		)
	`); err != nil {
		return fmt.Errorf("create settings table: %w: %v", types.ErrDataInsertionError, err)
	}

	var versionStr string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM settings WHERE name = ?`, types.SettingDatabaseVersion,
	).Scan(&versionStr)

	oldVersion := 0
	switch {
	case err == sql.ErrNoRows:
		oldVersion = 0
	case err != nil:
		return fmt.Errorf("read schema version: %w: %v", types.ErrDataRetrievalError, err)
	default:
		oldVersion, err = strconv.Atoi(versionStr)
		if err != nil {
			return fmt.Errorf("parse schema version %q: %w", versionStr, types.ErrInvalidVersion)
		}
	}

	if err := migrations.Run(s.db, oldVersion); err != nil {
		switch err {
		case migrations.ErrDatabaseTooNew:
			return types.ErrDatabaseTooNew
		case migrations.ErrInvalidVersion:
			return types.ErrInvalidVersion
		default:
			return fmt.Errorf("run migrations: %w", err)
		}
	}
	return nil
}
