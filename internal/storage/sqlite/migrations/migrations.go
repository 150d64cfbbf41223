// Package migrations holds the portal schema's forward-only migration
// dispatch, grounded on the teacher's internal/storage/sqlite/migrations
// package (one exported Migrate* function per schema change).
package migrations

import (
	"database/sql"
	"fmt"
)

// CurrentVersion is the schema version this build knows how to run
// against. It corresponds to spec §6's settings.PORTAL_DATABASE_VERSION.
const CurrentVersion = 1

// step is one forward migration: it must bring the schema from version-1
// to version.
type step struct {
	version int
	apply   func(*sql.Tx) error
}

var steps = []step{
	{version: 1, apply: createV1Schema},
}

// ErrInvalidVersion and ErrDatabaseTooNew are returned by Run; the sqlite
// package maps them onto the types.ErrInvalidVersion / ErrDatabaseTooNew
// taxonomy members.
var (
	ErrInvalidVersion = fmt.Errorf("no migration path from stored version")
	ErrDatabaseTooNew = fmt.Errorf("stored schema version is newer than this build")
)

// Run advances the schema from oldVersion to CurrentVersion, applying each
// step's migration inside its own transaction. oldVersion == 0 means the
// settings table was just created and holds no version row yet.
func Run(db *sql.DB, oldVersion int) error {
	if oldVersion > CurrentVersion {
		return ErrDatabaseTooNew
	}
	if oldVersion == CurrentVersion {
		return nil
	}
	known := false
	for _, s := range steps {
		if s.version == oldVersion+1 {
			known = true
		}
	}
	if !known {
		return ErrInvalidVersion
	}
	for _, s := range steps {
		if s.version <= oldVersion {
			continue
		}
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", s.version, err)
		}
		if err := s.apply(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", s.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", s.version, err)
		}
	}
	return nil
}
