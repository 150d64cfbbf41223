// Package ingest implements the Read Saver (spec §4.B): a single-consumer
// inbox that coalesces bursty reader writes into one write-transaction per
// drain, then notifies the Sightings Processor exactly once per drain that
// persisted at least one read.
package ingest

import (
	"context"
	"log"
	"sync"

	"github.com/chronokeeptiming/portal/internal/storage"
	"github.com/chronokeeptiming/portal/internal/types"
)

// Notifiee is anything that wants to know "there may be new useful
// reads" — the Sightings Processor implements this.
type Notifiee interface {
	Notify()
}

// ReadsBroadcaster fans a just-persisted batch of raw reads out to
// operator sockets subscribed to the read repeater (spec §6 "subscribe
// { reads: bool, ... }").
type ReadsBroadcaster interface {
	BroadcastReads(ctx context.Context, reads []types.Read)
}

// Saver coalesces concurrent Enqueue calls from reader sessions into
// batched Store.SaveReads transactions.
type Saver struct {
	store       storage.Store
	notify      Notifiee
	broadcaster ReadsBroadcaster

	mu       sync.Mutex
	pending  []types.Read
	draining bool
}

// New builds a Saver that writes to store and notifies n after any drain
// that persisted at least one read. broadcaster may be nil.
func New(store storage.Store, n Notifiee) *Saver {
	return &Saver{store: store, notify: n}
}

// WithBroadcaster attaches a ReadsBroadcaster so every persisted batch is
// also fanned out to subscribed operator sockets.
func (s *Saver) WithBroadcaster(b ReadsBroadcaster) *Saver {
	s.broadcaster = b
	return s
}

// Enqueue is a non-blocking producer call used by reader sessions. It
// stages the read and kicks off a drain if one is not already in flight.
func (s *Saver) Enqueue(r types.Read) {
	s.mu.Lock()
	s.pending = append(s.pending, r)
	alreadyDraining := s.draining
	if !alreadyDraining {
		s.draining = true
	}
	s.mu.Unlock()

	if !alreadyDraining {
		go s.drainLoop()
	}
}

// drainLoop repeatedly swaps out the pending batch and writes it until the
// inbox is empty, guaranteeing at most one drain in flight (spec §4.B).
func (s *Saver) drainLoop() {
	for {
		s.mu.Lock()
		batch := s.pending
		s.pending = nil
		if len(batch) == 0 {
			s.draining = false
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		s.drain(batch)
	}
}

func (s *Saver) drain(batch []types.Read) {
	n, err := s.store.SaveReads(context.Background(), batch)
	if err != nil {
		log.Printf("ingest: save reads batch of %d failed: %v", len(batch), err)
		return
	}
	if s.broadcaster != nil {
		s.broadcaster.BroadcastReads(context.Background(), batch)
	}
	if n > 0 && s.notify != nil {
		s.notify.Notify()
	}
}
