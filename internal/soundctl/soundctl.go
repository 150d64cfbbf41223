// Package soundctl models the portal's audio-notification collaborator.
// Actual audio playback is out of scope (spec §1 Non-goals: "audio
// playback"); this package defines the interface the Sightings Processor
// and control surface depend on, plus a no-op implementation, so the rest
// of the system can be built and tested without real hardware.
package soundctl

import "context"

// Notifier announces a sighting or status change audibly on real
// hardware. SETTING_PLAY_SOUND, SETTING_VOLUME, and SETTING_VOICE (spec
// §4.A settings) are the knobs a real implementation would consult.
type Notifier interface {
	AnnounceSighting(ctx context.Context, bib string) error
	AnnounceStatus(ctx context.Context, message string) error
}

// NoOp is a Notifier that does nothing, used when no audio backend is
// configured for this build.
type NoOp struct{}

func (NoOp) AnnounceSighting(ctx context.Context, bib string) error   { return nil }
func (NoOp) AnnounceStatus(ctx context.Context, message string) error { return nil }
