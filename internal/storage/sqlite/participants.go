package sqlite

import (
	"context"

	"github.com/chronokeeptiming/portal/internal/types"
)

// AddParticipants inserts or replaces participants, transactionally. The
// schema's two UNIQUE constraints (chip; bib+first+last+distance) each
// REPLACE the colliding row, so a collision on either key atomically
// supersedes the prior participant (spec §8 round-trip properties).
func (s *Storage) AddParticipants(ctx context.Context, parts []types.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(parts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapDBError("add participants", types.ErrDataInsertionError, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO participants (bib, first, last, age, gender, age_group, distance, part_chip, anonymous)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return wrapDBError("prepare add participants", types.ErrDataInsertionError, err)
	}
	defer stmt.Close()

	for _, p := range parts {
		if _, err := stmt.ExecContext(ctx,
			p.Bib, p.First, p.Last, p.Age, p.Gender, p.AgeGroup, p.Distance, p.Chip, boolToInt(p.Anonymous),
		); err != nil {
			return wrapDBError("insert participant "+p.Chip, types.ErrDataInsertionError, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return wrapDBError("commit add participants", types.ErrDataInsertionError, err)
	}
	return nil
}

func (s *Storage) GetParticipants(ctx context.Context) ([]types.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, bib, first, last, age, gender, age_group, distance, part_chip, anonymous
		FROM participants
	`)
	if err != nil {
		return nil, wrapDBError("get participants", types.ErrDataRetrievalError, err)
	}
	defer rows.Close()

	var out []types.Participant
	for rows.Next() {
		var p types.Participant
		var anonymous int
		if err := rows.Scan(
			&p.ID, &p.Bib, &p.First, &p.Last, &p.Age, &p.Gender, &p.AgeGroup, &p.Distance, &p.Chip, &anonymous,
		); err != nil {
			return nil, wrapDBError("scan participant", types.ErrDataRetrievalError, err)
		}
		p.Anonymous = anonymous != 0
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate participants", types.ErrDataRetrievalError, err)
	}
	return out, nil
}

func (s *Storage) DeleteParticipant(ctx context.Context, bib string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM participants WHERE bib = ?`, bib); err != nil {
		return wrapDBError("delete participant "+bib, types.ErrDataDeletionError, err)
	}
	return nil
}

func (s *Storage) DeleteParticipants(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM participants`); err != nil {
		return wrapDBError("delete all participants", types.ErrDataDeletionError, err)
	}
	return nil
}
