package sqlite

import (
	"context"
	"database/sql"

	"github.com/chronokeeptiming/portal/internal/types"
)

func (s *Storage) GetSetting(ctx context.Context, name string) (types.Setting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE name = ?`, name).Scan(&value)
	if err == sql.ErrNoRows {
		return types.Setting{}, wrapDBError("get setting "+name, types.ErrNotFound, err)
	}
	if err != nil {
		return types.Setting{}, wrapDBError("get setting "+name, types.ErrDataRetrievalError, err)
	}
	return types.Setting{Name: name, Value: value}, nil
}

func (s *Storage) SetSetting(ctx context.Context, setting types.Setting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (name, value) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET value = excluded.value
	`, setting.Name, setting.Value)
	if err != nil {
		return wrapDBError("set setting "+setting.Name, types.ErrDataInsertionError, err)
	}
	return nil
}
