// Package reader implements the Reader Session state machine (spec §4.D)
// and its supervising Reconnector (spec §4.E). Wire-level framing for a
// given reader kind is delegated to a Transport so the session logic stays
// hardware-agnostic; only a Zebra-family stub transport ships in this
// build (LLRP framing is out of scope per spec §1).
package reader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chronokeeptiming/portal/internal/ingest"
	"github.com/chronokeeptiming/portal/internal/types"
)

// State is a Reader Session lifecycle state (spec §4.D).
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateInitializing
	StateReading
	StateDisconnecting
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "Disconnected"
	case StateConnecting:
		return "Connecting"
	case StateConnected:
		return "Connected"
	case StateInitializing:
		return "Initializing"
	case StateReading:
		return "Reading"
	case StateDisconnecting:
		return "Disconnecting"
	case StateFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// Transport is the wire-level collaborator a Session drives through
// connect/initialize/read/disconnect. Concrete reader protocols (Zebra,
// Impinj LLRP, generic RFID) implement this; only a Zebra stub ships here.
type Transport interface {
	Connect(ctx context.Context, r types.Reader) error
	Initialize(ctx context.Context) error
	// ReadLoop blocks, delivering reads to emit until ctx is cancelled or
	// a protocol error occurs. It must return types.ErrProtocolError (or a
	// wrapped form of it) on framing failures so the Session's Reconnector
	// gets triggered.
	ReadLoop(ctx context.Context, emit func(types.Read)) error
	Disconnect(ctx context.Context) error
}

// maxInitializeAttempts and initializeRetryDelay bound the inner
// initialize-retry loop a single connect attempt runs before giving up
// on that attempt (spec §4.E step (c): "connect then up to 5 initialize
// calls").
const (
	maxInitializeAttempts = 5
	initializeRetryDelay  = 1 * time.Second
)

// Session owns one physical reader's connection lifecycle and feeds
// decoded reads into the shared ingest.Saver.
type Session struct {
	reader    types.Reader
	transport Transport
	saver     *ingest.Saver

	mu    sync.Mutex
	state State
}

// New builds a Session bound to one reader and its transport.
func New(r types.Reader, transport Transport, saver *ingest.Saver) *Session {
	return &Session{reader: r, transport: transport, saver: saver, state: StateDisconnected}
}

// Rewire re-supplies saver as the Session's ingest collaborator. The
// Reconnector calls this at the top of every connect attempt (spec
// §4.E step (b): "rewiring collaborators") so a Session kept alive
// across retries always forwards reads to whichever Saver the
// reconnect attempt was launched with.
func (s *Session) Rewire(saver *ingest.Saver) {
	s.mu.Lock()
	s.saver = saver
	s.mu.Unlock()
}

func (s *Session) Reader() types.Reader {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reader
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// IsReading reports whether the session is actively in the Reading state
// (spec §4.D "is_reading" query).
func (s *Session) IsReading() bool {
	return s.State() == StateReading
}

// Connect drives Disconnected -> Connecting -> Connected -> Initializing
// -> Reading. Initialize is retried up to maxInitializeAttempts times,
// one initializeRetryDelay apart, before the attempt is abandoned (spec
// §4.E steps (c)-(d)); Connect only returns nil once IsReading() is
// confirmed true, and settles to Failed otherwise.
func (s *Session) Connect(ctx context.Context) error {
	s.setState(StateConnecting)
	if err := s.transport.Connect(ctx, s.reader); err != nil {
		s.setState(StateFailed)
		return fmt.Errorf("reader %s: connect: %w", s.reader.Nickname, err)
	}
	s.setState(StateConnected)

	var initErr error
	for attempt := 1; attempt <= maxInitializeAttempts; attempt++ {
		s.setState(StateInitializing)
		if initErr = s.transport.Initialize(ctx); initErr == nil {
			s.setState(StateReading)
			break
		}
		if ctx.Err() != nil {
			break
		}
		if attempt < maxInitializeAttempts {
			select {
			case <-ctx.Done():
			case <-time.After(initializeRetryDelay):
			}
		}
	}

	if !s.IsReading() {
		s.setState(StateFailed)
		return fmt.Errorf("reader %s: initialize: %w", s.reader.Nickname, initErr)
	}
	return nil
}

// Run blocks in the Reading state, forwarding decoded reads into the
// Saver, until ctx is cancelled or the transport reports a protocol
// error. It returns the transport's error (nil on clean ctx cancellation).
func (s *Session) Run(ctx context.Context) error {
	err := s.transport.ReadLoop(ctx, func(r types.Read) {
		r.Reader = s.reader.Nickname
		s.saver.Enqueue(r)
	})
	if err != nil && ctx.Err() == nil {
		s.setState(StateFailed)
		return fmt.Errorf("reader %s: read loop: %w", s.reader.Nickname, err)
	}
	return nil
}

// Disconnect drives Reading/Connected -> Disconnecting -> Disconnected.
// It is best-effort: a transport error is returned to the caller but does
// not prevent the state from settling to Disconnected.
func (s *Session) Disconnect(ctx context.Context) error {
	s.setState(StateDisconnecting)
	err := s.transport.Disconnect(ctx)
	s.setState(StateDisconnected)
	return err
}

// connectWithTimeout bounds a single connect attempt, used by the
// Reconnector so one hung attempt can't stall the bounded-retry budget.
func (s *Session) connectWithTimeout(ctx context.Context, timeout time.Duration) error {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.Connect(cctx)
}
