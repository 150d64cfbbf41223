// Package backup implements the portal's backup file contract (spec §6):
// a single JSON snapshot of configuration and endpoint lists at
// ./portal_backup.json. Serialization is in scope; restoring into a live
// store is deliberately thin (spec §1 Non-goals: "backup serialization to
// disk" names the wire format only, not a restore pipeline).
package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
)

const DefaultPath = "./portal_backup.json"

// APIEntry mirrors one entry of the backup file's "api" array.
type APIEntry struct {
	Nickname string `json:"nickname"`
	Kind     string `json:"kind"`
	Token    string `json:"token"`
	URI      string `json:"uri"`
}

// ReaderEntry mirrors one entry of the backup file's "readers" array.
type ReaderEntry struct {
	Nickname  string `json:"nickname"`
	Kind      string `json:"kind"`
	IPAddress string `json:"ipAddress"`
	Port      uint16 `json:"port"`
}

// Snapshot is the full backup document (spec §6 field list, camelCase).
type Snapshot struct {
	Name           string        `json:"name"`
	SightingPeriod uint64        `json:"sightingPeriod"`
	ReadWindow     uint64        `json:"readWindow"`
	ChipType       string        `json:"chipType"`
	Readers        []ReaderEntry `json:"readers"`
	API            []APIEntry    `json:"api"`
}

// Save writes snap to path as indented UTF-8 JSON.
func Save(path string, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("backup: marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("backup: write %s: %w", path, err)
	}
	return nil
}

// Load reads and parses the backup file at path.
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("backup: read %s: %w", path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("backup: parse %s: %w", path, err)
	}
	return snap, nil
}

// Watch watches path for external edits (an operator hand-editing the
// backup file) and invokes onChange with the freshly parsed snapshot.
// A change whose file fails to parse is skipped without calling
// onChange, and watcher errors are ignored; the returned error covers
// only setting up the watch.
func Watch(ctx context.Context, path string, onChange func(Snapshot)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("backup: create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("backup: watch %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				snap, err := Load(path)
				if err != nil {
					continue
				}
				onChange(snap)
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return nil
}
