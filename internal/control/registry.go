// Package control implements the operator control socket (spec §6): a
// JSON line-protocol server that lets an operator shell manage readers,
// APIs, participants, and reads, and subscribe to sighting/read fan-out.
package control

import (
	"context"
	"net"
	"sync"

	"github.com/chronokeeptiming/portal/internal/types"
)

// MaxConnected bounds the fixed-size operator-socket array (spec §5
// "Shared resources": "held in a fixed-size array guarded by a mutex").
const MaxConnected = 32

// socket is one connected operator client and its repeater flags.
type socket struct {
	conn              net.Conn
	encMu             sync.Mutex
	readRepeater      bool
	sightingRepeater  bool
}

// Registry holds up to MaxConnected operator sockets and their per-socket
// repeater flags, iterated under lock for fan-out (spec §5).
type Registry struct {
	mu      sync.Mutex
	sockets [MaxConnected]*socket
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add inserts conn into the first free slot, returning false if the
// registry is already at MaxConnected (the caller should close conn).
func (r *Registry) Add(conn net.Conn) (*socket, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.sockets {
		if s == nil {
			sk := &socket{conn: conn}
			r.sockets[i] = sk
			return sk, true
		}
	}
	return nil, false
}

// Remove drops sk from the registry.
func (r *Registry) Remove(sk *socket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range r.sockets {
		if s == sk {
			r.sockets[i] = nil
			return
		}
	}
}

// writeJSON serializes v and writes it as one line to sk's connection,
// tolerating per-socket I/O errors as non-fatal (spec §5, §7).
func (sk *socket) writeJSON(v interface{}) error {
	sk.encMu.Lock()
	defer sk.encMu.Unlock()
	return writeJSONLine(sk.conn, v)
}

// BroadcastSightings implements processor.Broadcaster: emits the batch to
// every socket with sightingRepeater set (spec §4.C "Fan-out", §6
// "subscribe"). Per-socket I/O errors are swallowed.
func (r *Registry) BroadcastSightings(ctx context.Context, sightings []types.Sighting) {
	r.mu.Lock()
	targets := make([]*socket, 0, MaxConnected)
	for _, s := range r.sockets {
		if s != nil && s.sightingRepeater {
			targets = append(targets, s)
		}
	}
	r.mu.Unlock()

	msg := sightingsMessage{Command: "sightings", Sightings: toWireSightings(sightings)}
	for _, s := range targets {
		_ = s.writeJSON(msg)
	}
}

// BroadcastReads emits a raw-read batch to every socket with readRepeater
// set (the read-level analogue of BroadcastSightings, spec §6 "subscribe
// { reads: bool, ... }").
func (r *Registry) BroadcastReads(ctx context.Context, reads []types.Read) {
	r.mu.Lock()
	targets := make([]*socket, 0, MaxConnected)
	for _, s := range r.sockets {
		if s != nil && s.readRepeater {
			targets = append(targets, s)
		}
	}
	r.mu.Unlock()

	msg := readsMessage{Command: "reads", Reads: toWireReads(reads)}
	for _, s := range targets {
		_ = s.writeJSON(msg)
	}
}

// BroadcastReaders implements reader.ReaderListBroadcaster: sends the
// current reader list to every connected socket (spec §4.E "on success,
// broadcast the reader list").
func (r *Registry) BroadcastReaders(ctx context.Context, readers []types.Reader) {
	r.mu.Lock()
	targets := make([]*socket, 0, MaxConnected)
	for _, s := range r.sockets {
		if s != nil {
			targets = append(targets, s)
		}
	}
	r.mu.Unlock()

	msg := readerListMessage{Command: "reader_list", Readers: toWireReaders(readers)}
	for _, s := range targets {
		_ = s.writeJSON(msg)
	}
}
