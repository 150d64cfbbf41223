package sqlite

import (
	"context"

	"github.com/chronokeeptiming/portal/internal/types"
)

// SaveReads persists reads in a single transaction and returns the number
// actually inserted. Rows colliding on (chip, seconds, milliseconds) are
// silently dropped by the schema's ON CONFLICT IGNORE clause (spec
// invariant 3); any other per-row SQL error aborts the whole batch (spec
// §4.A).
func (s *Storage) SaveReads(ctx context.Context, reads []types.Read) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(reads) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, wrapDBError("save reads", types.ErrDataInsertionError, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chip_reads (
			chip, ident_type, seconds, milliseconds,
			reader_seconds, reader_milliseconds, antenna, reader, rssi, status, uploaded
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, wrapDBError("prepare save reads", types.ErrDataInsertionError, err)
	}
	defer stmt.Close()

	inserted := 0
	for _, r := range reads {
		res, err := stmt.ExecContext(ctx,
			r.Chip, int(r.IdentType), r.Seconds, r.Milliseconds,
			r.ReaderSeconds, r.ReaderMilliseconds, r.Antenna, r.Reader, r.RSSI,
			int(r.Status), boolToInt(r.Uploaded),
		)
		if err != nil {
			return 0, wrapDBError("insert read", types.ErrDataInsertionError, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, wrapDBError("insert read rows affected", types.ErrDataInsertionError, err)
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, wrapDBError("commit save reads", types.ErrDataInsertionError, err)
	}
	return inserted, nil
}

// GetUsefulReads returns reads with status Unused or Used (spec §4.A,
// GLOSSARY "Useful reads").
func (s *Storage) GetUsefulReads(ctx context.Context) ([]types.Read, error) {
	return s.queryReads(ctx, `
		SELECT id, chip, ident_type, seconds, milliseconds, reader_seconds, reader_milliseconds,
		       antenna, reader, rssi, status, uploaded
		FROM chip_reads WHERE status IN (?, ?)
	`, int(types.ReadStatusUnused), int(types.ReadStatusUsed))
}

// GetNotUploadedReads returns reads with uploaded = false.
func (s *Storage) GetNotUploadedReads(ctx context.Context) ([]types.Read, error) {
	return s.queryReads(ctx, `
		SELECT id, chip, ident_type, seconds, milliseconds, reader_seconds, reader_milliseconds,
		       antenna, reader, rssi, status, uploaded
		FROM chip_reads WHERE uploaded = 0
		ORDER BY seconds, milliseconds
	`)
}

func (s *Storage) queryReads(ctx context.Context, query string, args ...interface{}) ([]types.Read, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("query reads", types.ErrDataRetrievalError, err)
	}
	defer rows.Close()

	var out []types.Read
	for rows.Next() {
		var r types.Read
		var identType, status, uploaded int
		if err := rows.Scan(
			&r.ID, &r.Chip, &identType, &r.Seconds, &r.Milliseconds,
			&r.ReaderSeconds, &r.ReaderMilliseconds, &r.Antenna, &r.Reader, &r.RSSI,
			&status, &uploaded,
		); err != nil {
			return nil, wrapDBError("scan read", types.ErrDataRetrievalError, err)
		}
		r.IdentType = types.IdentType(identType)
		r.Status = types.ReadStatus(status)
		r.Uploaded = uploaded != 0
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate reads", types.ErrDataRetrievalError, err)
	}
	return out, nil
}

// UpdateReadsStatus batches an update of status and uploaded by id in a
// single transaction (spec §4.A).
func (s *Storage) UpdateReadsStatus(ctx context.Context, reads []types.Read) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(reads) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapDBError("update read status", types.ErrDataInsertionError, err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `UPDATE chip_reads SET status = ?, uploaded = ? WHERE id = ?`)
	if err != nil {
		return wrapDBError("prepare update read status", types.ErrDataInsertionError, err)
	}
	defer stmt.Close()

	for _, r := range reads {
		if _, err := stmt.ExecContext(ctx, int(r.Status), boolToInt(r.Uploaded), r.ID); err != nil {
			return wrapDBError("update read status", types.ErrDataInsertionError, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return wrapDBError("commit update read status", types.ErrDataInsertionError, err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
