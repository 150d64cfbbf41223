package reader

import (
	"context"
	"fmt"

	"github.com/chronokeeptiming/portal/internal/types"
)

// ZebraTransport is a stub for the Zebra FX-series wire protocol. Full
// LLRP/Zebra frame decoding is out of scope (spec §1 Non-goals); this
// type exists so Session/Reconnector wiring and tests don't need a real
// socket. A production build would replace this with a transport that
// dials r.IPAddress:r.Port and speaks the reader's native protocol.
type ZebraTransport struct {
	// Dial, if set, performs the connect and its result is returned;
	// without it Connect always fails with types.ErrConnectionError.
	Dial func(ctx context.Context, r types.Reader) error
}

func (z *ZebraTransport) Connect(ctx context.Context, r types.Reader) error {
	if z.Dial != nil {
		return z.Dial(ctx, r)
	}
	return fmt.Errorf("zebra transport: no physical reader configured: %w", types.ErrConnectionError)
}

func (z *ZebraTransport) Initialize(ctx context.Context) error {
	return nil
}

func (z *ZebraTransport) ReadLoop(ctx context.Context, emit func(types.Read)) error {
	<-ctx.Done()
	return nil
}

func (z *ZebraTransport) Disconnect(ctx context.Context) error {
	return nil
}
