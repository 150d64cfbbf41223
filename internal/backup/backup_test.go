package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal_backup.json")
	snap := Snapshot{
		Name:           "Finish Line",
		SightingPeriod: 20,
		ReadWindow:     5,
		ChipType:       "UHF",
		Readers:        []ReaderEntry{{Nickname: "R1", Kind: "zebra", IPAddress: "10.0.0.5", Port: 14150}},
		API:            []APIEntry{{Nickname: "Cloud", Kind: "chronokeep-remote", Token: "tok", URI: "https://example.test"}},
	}

	require.NoError(t, Save(path, snap))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, snap, loaded)
}

func TestLoadMissingFileErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.json"))
	require.Error(t, err)
}

func TestWatchInvokesOnChangeAfterExternalWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal_backup.json")
	require.NoError(t, Save(path, Snapshot{Name: "initial"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan Snapshot, 1)
	err := Watch(ctx, path, func(s Snapshot) {
		select {
		case received <- s:
		default:
		}
	})
	require.NoError(t, err)

	require.NoError(t, Save(path, Snapshot{Name: "edited"}))

	select {
	case snap := <-received:
		require.Equal(t, "edited", snap.Name)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Watch to observe the external edit")
	}
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "portal_backup.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
