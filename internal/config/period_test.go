package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestParseSightingPeriodHMS is a regression test for the three-segment
// parser, which in the original CLI read minutes twice instead of
// reading seconds from the third segment.
func TestParseSightingPeriodHMS(t *testing.T) {
	got, err := ParseSightingPeriod("01:02:03")
	require.NoError(t, err)
	require.EqualValues(t, 1*3600+2*60+3, got)
}

func TestParseSightingPeriodSecondsOnly(t *testing.T) {
	got, err := ParseSightingPeriod("45")
	require.NoError(t, err)
	require.EqualValues(t, 45, got)
}

func TestParseSightingPeriodMinutesSeconds(t *testing.T) {
	got, err := ParseSightingPeriod("02:30")
	require.NoError(t, err)
	require.EqualValues(t, 150, got)
}

func TestParseSightingPeriodRejectsGarbage(t *testing.T) {
	_, err := ParseSightingPeriod("not-a-period")
	require.Error(t, err)
}

func TestParseSightingPeriodRejectsTooManySegments(t *testing.T) {
	_, err := ParseSightingPeriod("1:2:3:4")
	require.Error(t, err)
}

func TestFormatSightingPeriodRoundTrips(t *testing.T) {
	require.Equal(t, "01:02:03", FormatSightingPeriod(1*3600+2*60+3))

	got, err := ParseSightingPeriod(FormatSightingPeriod(1*3600 + 2*60 + 3))
	require.NoError(t, err)
	require.EqualValues(t, 1*3600+2*60+3, got)
}
