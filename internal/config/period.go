package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseSightingPeriod parses an operator-supplied sighting-period string
// in SS, MM:SS, or HH:MM:SS form into a total-seconds count (spec §6
// CLI: "Sighting period accepts SS, MM:SS, HH:MM:SS").
//
// The three-segment form previously read minutes twice instead of reading
// seconds from the third segment — fixed here to hours*3600 + minutes*60
// + seconds.
func ParseSightingPeriod(s string) (uint64, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	switch len(parts) {
	case 1:
		seconds, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("config: invalid sighting period %q: %w", s, err)
		}
		return seconds, nil

	case 2:
		minutes, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("config: invalid sighting period %q: %w", s, err)
		}
		seconds, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("config: invalid sighting period %q: %w", s, err)
		}
		return minutes*60 + seconds, nil

	case 3:
		hours, err := strconv.ParseUint(parts[0], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("config: invalid sighting period %q: %w", s, err)
		}
		minutes, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("config: invalid sighting period %q: %w", s, err)
		}
		seconds, err := strconv.ParseUint(parts[2], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("config: invalid sighting period %q: %w", s, err)
		}
		return hours*3600 + minutes*60 + seconds, nil

	default:
		return 0, fmt.Errorf("config: invalid sighting period %q: expected SS, MM:SS, or HH:MM:SS", s)
	}
}

// FormatSightingPeriod renders seconds back into HH:MM:SS, mirroring the
// original CLI's pretty-printer.
func FormatSightingPeriod(seconds uint64) string {
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	secs := seconds % 60
	return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
}
