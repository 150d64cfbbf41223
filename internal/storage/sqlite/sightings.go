package sqlite

import (
	"context"

	"github.com/chronokeeptiming/portal/internal/types"
)

// SaveSightings persists the (participant, read) join rows produced by a
// Sightings Processor cycle, transactionally (spec §4.A, §5: persistence
// order per cycle is participants -> reads -> sightings; this call is the
// last of the three).
func (s *Storage) SaveSightings(ctx context.Context, sightings []types.Sighting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sightings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapDBError("save sightings", types.ErrDataInsertionError, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sightings (participant_id, read_id) VALUES (?, ?)`)
	if err != nil {
		return wrapDBError("prepare save sightings", types.ErrDataInsertionError, err)
	}
	defer stmt.Close()

	for _, sight := range sightings {
		if _, err := stmt.ExecContext(ctx, sight.Participant.ID, sight.Read.ID); err != nil {
			return wrapDBError("insert sighting", types.ErrDataInsertionError, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return wrapDBError("commit save sightings", types.ErrDataInsertionError, err)
	}
	return nil
}
