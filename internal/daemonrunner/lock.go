// Package daemonrunner enforces the single-instance invariant from spec
// §2: only one portal daemon may run against a given data directory at
// once. Grounded on the teacher's internal/daemonrunner flock-based lock.
package daemonrunner

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrAlreadyRunning indicates another process already holds the lock.
var ErrAlreadyRunning = errors.New("portal daemon already running (lock held by another process)")

// LockInfo is the metadata recorded in portal.lock for operator diagnosis.
type LockInfo struct {
	PID       int       `json:"pid"`
	DBPath    string    `json:"dbPath"`
	Version   string    `json:"version"`
	StartedAt time.Time `json:"startedAt"`
}

// Lock represents a held exclusive lock on the portal's data directory.
type Lock struct {
	file *os.File
}

// Close releases the lock.
func (l *Lock) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Acquire takes an exclusive non-blocking lock on <dataDir>/portal.lock,
// failing fast with ErrAlreadyRunning if another instance holds it.
func Acquire(dataDir, dbPath, version string) (*Lock, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("daemonrunner: create data dir: %w", err)
	}
	lockPath := filepath.Join(dataDir, "portal.lock")

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("daemonrunner: open lock file: %w", err)
	}

	if err := flockExclusive(f); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrAlreadyRunning) {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("daemonrunner: lock file: %w", err)
	}

	info := LockInfo{PID: os.Getpid(), DBPath: dbPath, Version: version, StartedAt: time.Now().UTC()}
	_ = f.Truncate(0)
	_, _ = f.Seek(0, 0)
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	_ = enc.Encode(info)
	_ = f.Sync()

	return &Lock{file: f}, nil
}
