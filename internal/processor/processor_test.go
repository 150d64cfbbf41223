package processor

import (
	"testing"

	"github.com/chronokeeptiming/portal/internal/types"
	"github.com/stretchr/testify/require"
)

func read(chip string, seconds int64, ms int, status types.ReadStatus) types.Read {
	return types.Read{Chip: chip, IdentType: types.IdentTypeChip, Seconds: seconds, Milliseconds: ms, Status: status}
}

// TestDecideEnforcesQuietWindow mirrors spec §8 scenario S2: within the
// sighting period the second read of a chip is marked TooSoon; once the
// window elapses, the read counts again.
func TestDecideEnforcesQuietWindow(t *testing.T) {
	reads := []types.Read{
		read("A1", 5, 0, types.ReadStatusUnused),
		read("A1", 14, 999, types.ReadStatusUnused),
		read("A1", 15, 0, types.ReadStatusUnused),
		read("A1", 25, 0, types.ReadStatusUnused),
	}
	c := classify(reads, nil)
	d := decide(c, 10)

	require.Len(t, d.updatedReads, 4)
	require.Equal(t, types.ReadStatusUsed, d.updatedReads[0].Status)
	require.Equal(t, types.ReadStatusTooSoon, d.updatedReads[1].Status)
	require.Equal(t, types.ReadStatusUsed, d.updatedReads[2].Status)
	require.Equal(t, types.ReadStatusUsed, d.updatedReads[3].Status)
	require.Len(t, d.sightings, 3)
}

// TestDecideBoundaryExactEquality verifies spec §8's quiet-window boundary:
// (T,0) then (T+period,0) is Used; (T,500) then (T+period,400) is TooSoon.
func TestDecideBoundaryExactEquality(t *testing.T) {
	t.Run("exact second boundary with zero ms is used", func(t *testing.T) {
		reads := []types.Read{
			read("A1", 100, 0, types.ReadStatusUnused),
			read("A1", 110, 0, types.ReadStatusUnused),
		}
		c := classify(reads, nil)
		d := decide(c, 10)
		require.Equal(t, types.ReadStatusUsed, d.updatedReads[1].Status)
	})

	t.Run("same second boundary with earlier ms is too soon", func(t *testing.T) {
		reads := []types.Read{
			read("A1", 100, 500, types.ReadStatusUnused),
			read("A1", 110, 400, types.ReadStatusUnused),
		}
		c := classify(reads, nil)
		d := decide(c, 10)
		require.Equal(t, types.ReadStatusTooSoon, d.updatedReads[1].Status)
	})
}

// TestDecideCreatesSyntheticParticipant verifies spec §4.C: a chip with
// no registered participant gets a synthetic one attached.
func TestDecideCreatesSyntheticParticipant(t *testing.T) {
	reads := []types.Read{read("UNKNOWN1", 5, 0, types.ReadStatusUnused)}
	c := classify(reads, nil)
	d := decide(c, 20)

	require.Len(t, d.newParticipants, 1)
	require.Equal(t, "UNKNOWN1", d.newParticipants[0].Chip)
	require.Equal(t, "UNKNOWN1", d.newParticipants[0].Bib)
	require.Len(t, d.sightings, 1)
	require.Equal(t, "UNKNOWN1", d.sightings[0].Participant.Chip)
}

// TestClassifyResolvesBibToChip verifies spec §4.C's bib->chip
// indirection, including the fallback to the literal bib when unmapped.
func TestClassifyResolvesBibToChip(t *testing.T) {
	parts := []types.Participant{{Bib: "100", Chip: "A1"}}
	reads := []types.Read{
		{Chip: "100", IdentType: types.IdentTypeBib, Seconds: 5, Status: types.ReadStatusUnused},
		{Chip: "999", IdentType: types.IdentTypeBib, Seconds: 6, Status: types.ReadStatusUnused},
	}
	c := classify(reads, parts)
	require.Len(t, c.unused, 2)

	chip0, ok := canonicalChip(c.unused[0], c.bibChip)
	require.True(t, ok)
	require.Equal(t, "A1", chip0)

	chip1, ok := canonicalChip(c.unused[1], c.bibChip)
	require.True(t, ok)
	require.Equal(t, "999", chip1)
}

// TestClassifySortsUnusedChronologically ensures the quiet-window
// algorithm processes reads in (seconds, milliseconds) order regardless
// of insertion order.
func TestClassifySortsUnusedChronologically(t *testing.T) {
	reads := []types.Read{
		read("A1", 20, 0, types.ReadStatusUnused),
		read("A1", 5, 0, types.ReadStatusUnused),
		read("A1", 10, 500, types.ReadStatusUnused),
	}
	c := classify(reads, nil)
	require.Equal(t, int64(5), c.unused[0].Seconds)
	require.Equal(t, int64(10), c.unused[1].Seconds)
	require.Equal(t, int64(20), c.unused[2].Seconds)
}

func TestKeepAliveStartsAliveAndStops(t *testing.T) {
	k := NewKeepAlive()
	require.True(t, k.Alive())
	k.Stop()
	require.False(t, k.Alive())
}
