package sqlite

import (
	"context"
	"fmt"

	"github.com/chronokeeptiming/portal/internal/types"
)

// SaveReader upserts by nickname (spec §3, §9 note iii: nickname is the
// authoritative key). On success the returned Reader carries the row id.
func (s *Storage) SaveReader(ctx context.Context, r types.Reader) (types.Reader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO readers (nickname, kind, ip_address, port) VALUES (?, ?, ?, ?)
		ON CONFLICT (nickname) DO UPDATE SET
			kind = excluded.kind, ip_address = excluded.ip_address, port = excluded.port
	`, r.Nickname, string(r.Kind), r.IPAddress, r.Port)
	if err != nil {
		return types.Reader{}, wrapDBError("save reader "+r.Nickname, types.ErrDataInsertionError, err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM readers WHERE nickname = ?`, r.Nickname).Scan(&id); err != nil {
		return types.Reader{}, wrapDBError("reread reader "+r.Nickname, types.ErrDataRetrievalError, err)
	}
	r.ID = id
	return r, nil
}

func (s *Storage) GetReaders(ctx context.Context) ([]types.Reader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, nickname, kind, ip_address, port FROM readers`)
	if err != nil {
		return nil, wrapDBError("get readers", types.ErrDataRetrievalError, err)
	}
	defer rows.Close()

	var out []types.Reader
	for rows.Next() {
		var r types.Reader
		var kind string
		if err := rows.Scan(&r.ID, &r.Nickname, &kind, &r.IPAddress, &r.Port); err != nil {
			return nil, wrapDBError("scan reader", types.ErrDataRetrievalError, err)
		}
		switch types.ReaderKind(kind) {
		case types.ReaderKindZebra, types.ReaderKindImpinj, types.ReaderKindRFID:
			r.Kind = types.ReaderKind(kind)
		default:
			return nil, fmt.Errorf("get readers: unknown reader kind %q: %w", kind, types.ErrDataRetrievalError)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate readers", types.ErrDataRetrievalError, err)
	}
	return out, nil
}

func (s *Storage) DeleteReader(ctx context.Context, nickname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM readers WHERE nickname = ?`, nickname); err != nil {
		return wrapDBError("delete reader "+nickname, types.ErrDataDeletionError, err)
	}
	return nil
}
