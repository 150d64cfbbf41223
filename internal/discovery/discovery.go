// Package discovery models the portal's zero-configuration discovery
// beacon. Broadcasting presence on the local network (mDNS/SSDP-style) is
// out of scope (spec §1 Non-goals: "zero-configuration discovery
// beacon"); this package defines the interface the control surface
// depends on, plus a no-op implementation.
package discovery

import "context"

// Beacon advertises the portal's control port on the local network so
// operator clients can find it without manual configuration.
// SETTING_ZERO_CONF_PORT (spec §4.A) is the port a real implementation
// would advertise.
type Beacon interface {
	Start(ctx context.Context, port uint16) error
	Stop() error
}

// NoOp is a Beacon that advertises nothing, used when no discovery
// backend is configured for this build.
type NoOp struct{}

func (NoOp) Start(ctx context.Context, port uint16) error { return nil }
func (NoOp) Stop() error                                   { return nil }
