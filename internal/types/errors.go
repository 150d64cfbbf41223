package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for the taxonomy in spec §7. Store implementations wrap
// these with operation context via fmt.Errorf("%w", ...); callers use
// errors.Is to classify a failure.
var (
	// ErrNotFound indicates a queried key is absent. Recoverable locally
	// (e.g. triggers a default-insert on boot).
	ErrNotFound = errors.New("not found")

	// ErrConnectionError indicates the store or a network endpoint is
	// unreachable. Fatal for the operation.
	ErrConnectionError = errors.New("connection error")

	// ErrDataInsertionError indicates a store-level insert/upsert failed.
	ErrDataInsertionError = errors.New("data insertion error")

	// ErrDataRetrievalError indicates a store-level read failed, including
	// an unknown enum value encountered while scanning a row.
	ErrDataRetrievalError = errors.New("data retrieval error")

	// ErrDataDeletionError indicates a store-level delete failed.
	ErrDataDeletionError = errors.New("data deletion error")

	// ErrInvalidVersion indicates setup() found no migration path from the
	// stored schema version. Fatal at boot.
	ErrInvalidVersion = errors.New("invalid schema version")

	// ErrDatabaseTooNew indicates the stored schema version is newer than
	// this binary knows how to handle. Fatal at boot.
	ErrDatabaseTooNew = errors.New("database schema is newer than this build")

	// ErrMutexError indicates a lock could not be acquired (poisoned or
	// otherwise unavailable). Surfaced, generally fatal for the current
	// cycle.
	ErrMutexError = errors.New("mutex error")

	// ErrProtocolError indicates a reader-side framing failure. Triggers
	// the Reconnector.
	ErrProtocolError = errors.New("protocol error")
)

// Wrap attaches an operation label to a sentinel error, e.g.
// Wrap("get setting", ErrNotFound).
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Wrapf is Wrap with a formatted operation label.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func IsNotFound(err error) bool         { return errors.Is(err, ErrNotFound) }
func IsConnectionError(err error) bool  { return errors.Is(err, ErrConnectionError) }
func IsInsertionError(err error) bool   { return errors.Is(err, ErrDataInsertionError) }
func IsRetrievalError(err error) bool   { return errors.Is(err, ErrDataRetrievalError) }
func IsDeletionError(err error) bool    { return errors.Is(err, ErrDataDeletionError) }
func IsInvalidVersion(err error) bool   { return errors.Is(err, ErrInvalidVersion) }
func IsDatabaseTooNew(err error) bool   { return errors.Is(err, ErrDatabaseTooNew) }
func IsMutexError(err error) bool       { return errors.Is(err, ErrMutexError) }
func IsProtocolError(err error) bool    { return errors.Is(err, ErrProtocolError) }
