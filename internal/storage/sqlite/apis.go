package sqlite

import (
	"context"

	"github.com/chronokeeptiming/portal/internal/types"
)

// SaveAPI upserts on (uri, token), not nickname: an entry whose uri and
// token match an existing row updates that row's nickname and kind in
// place; a different uri or token inserts a new row.
func (s *Storage) SaveAPI(ctx context.Context, a types.ResultsApi) (types.ResultsApi, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO results_api (nickname, kind, token, uri) VALUES (?, ?, ?, ?)
		ON CONFLICT (uri, token) DO UPDATE SET
			nickname = excluded.nickname, kind = excluded.kind
	`, a.Nickname, string(a.Kind), a.Token, a.URI)
	if err != nil {
		return types.ResultsApi{}, wrapDBError("save api "+a.Nickname, types.ErrDataInsertionError, err)
	}

	var id int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT id FROM results_api WHERE uri = ? AND token = ?`, a.URI, a.Token,
	).Scan(&id); err != nil {
		return types.ResultsApi{}, wrapDBError("reread api "+a.Nickname, types.ErrDataRetrievalError, err)
	}
	a.ID = id
	return a, nil
}

func (s *Storage) GetAPIs(ctx context.Context) ([]types.ResultsApi, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, nickname, kind, token, uri FROM results_api`)
	if err != nil {
		return nil, wrapDBError("get apis", types.ErrDataRetrievalError, err)
	}
	defer rows.Close()

	var out []types.ResultsApi
	for rows.Next() {
		var a types.ResultsApi
		var kind string
		if err := rows.Scan(&a.ID, &a.Nickname, &kind, &a.Token, &a.URI); err != nil {
			return nil, wrapDBError("scan api", types.ErrDataRetrievalError, err)
		}
		a.Kind = types.ApiKind(kind)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapDBError("iterate apis", types.ErrDataRetrievalError, err)
	}
	return out, nil
}

func (s *Storage) DeleteAPI(ctx context.Context, nickname string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM results_api WHERE nickname = ?`, nickname); err != nil {
		return wrapDBError("delete api "+nickname, types.ErrDataDeletionError, err)
	}
	return nil
}
