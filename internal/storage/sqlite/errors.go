package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/chronokeeptiming/portal/internal/types"
)

// wrapDBError converts sql.ErrNoRows to types.ErrNotFound and attaches op
// context, otherwise wraps err with kind. Grounded on the teacher's
// internal/storage/sqlite/errors.go wrapDBError helper.
func wrapDBError(op string, kind error, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, types.ErrNotFound)
	}
	return fmt.Errorf("%s: %w (%v)", op, kind, err)
}
