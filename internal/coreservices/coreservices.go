// Package coreservices wires the portal's components into the single
// CoreServices collaborator bundle called for by spec §9's Design Note:
// "Re-architect as a single CoreServices value held by reference across
// threads; avoid the ad-hoc set_X mutators by injecting the full
// collaborator bundle into Reader Session at construction." Rather than
// each component reaching for global mutable references, cmd/portal
// builds one Services value and threads it through.
package coreservices

import (
	"context"
	"fmt"
	"sync"

	"github.com/chronokeeptiming/portal/internal/control"
	"github.com/chronokeeptiming/portal/internal/ingest"
	"github.com/chronokeeptiming/portal/internal/processor"
	"github.com/chronokeeptiming/portal/internal/reader"
	"github.com/chronokeeptiming/portal/internal/remote"
	"github.com/chronokeeptiming/portal/internal/soundctl"
	"github.com/chronokeeptiming/portal/internal/storage"
	"github.com/chronokeeptiming/portal/internal/types"
)

// activeReader tracks one supervised Reader Session: the cancel func for
// its Reconnector goroutine (kept stable for the whole supervised
// lifetime so DisconnectReader can always reach a reader stuck
// reconnecting), and connected, which the Reconnector toggles on every
// attempt (spec §4.E step (a)) and which gates whether the reader shows
// up in ListReaders.
type activeReader struct {
	session   *reader.Session
	cancel    context.CancelFunc
	connected bool
}

// Services is the shared collaborator bundle: the Store, the Read Saver,
// the Sightings Processor, the Remote Uploader, the operator socket
// Registry, the Sound Notifier, and the active-reader table. It satisfies
// control.ReaderManager and control.UploadControl directly so
// cmd/portal can hand one value to control.NewServer.
type Services struct {
	Store     storage.Store
	Saver     *ingest.Saver
	Processor *processor.Processor
	Uploader  *remote.Uploader
	Registry  *control.Registry
	Sound     soundctl.Notifier
	KeepAlive *processor.KeepAlive
	Metrics   Metrics

	mu     sync.Mutex
	active map[string]*activeReader
}

// New builds a Services bundle wired around store. It constructs the
// Registry, Saver, Processor, and Uploader and cross-wires their
// notify/broadcast collaborators per spec §5's data-flow diagram.
func New(store storage.Store, metrics Metrics) *Services {
	registry := control.NewRegistry()
	keepalive := processor.NewKeepAlive()

	s := &Services{
		Store:     store,
		Registry:  registry,
		Sound:     soundctl.NoOp{},
		KeepAlive: keepalive,
		Metrics:   metrics,
		active:    make(map[string]*activeReader),
	}

	s.Processor = processor.New(store, registry, keepalive, metrics)
	s.Saver = ingest.New(store, s.Processor).WithBroadcaster(registry)
	s.Uploader = remote.New(store, registry, metrics)
	return s
}

// Metrics is the union of the per-component metrics interfaces; a single
// *telemetry.Meters value satisfies all three.
type Metrics interface {
	processor.Metrics
	remote.UploadMetrics
	reader.ReconnectMetrics
}

// AddReader persists a new reader definition (spec §6 "reader_add"). It
// does not connect automatically; an operator issues reader_connect.
func (s *Services) AddReader(ctx context.Context, r types.Reader) error {
	_, err := s.Store.SaveReader(ctx, r)
	return err
}

// RemoveReader disconnects the reader if active and deletes its
// definition (spec §6 "reader_remove").
func (s *Services) RemoveReader(ctx context.Context, nickname string) error {
	_ = s.DisconnectReader(ctx, nickname)
	return s.Store.DeleteReader(ctx, nickname)
}

// ConnectReader looks up nickname's definition and launches a supervised
// Reader Session via the Reconnector (spec §4.D, §4.E).
func (s *Services) ConnectReader(ctx context.Context, nickname string) error {
	s.mu.Lock()
	if _, exists := s.active[nickname]; exists {
		s.mu.Unlock()
		return fmt.Errorf("reader %s: already connected", nickname)
	}
	s.mu.Unlock()

	readers, err := s.Store.GetReaders(ctx)
	if err != nil {
		return err
	}
	var def *types.Reader
	for i := range readers {
		if readers[i].Nickname == nickname {
			def = &readers[i]
			break
		}
	}
	if def == nil {
		return fmt.Errorf("reader %s: %w", nickname, types.ErrNotFound)
	}

	transport := transportFor(*def)
	session := reader.New(*def, transport, s.Saver)
	rc := reader.NewReconnector(session, s.Saver, s, s.Registry, s.Metrics)

	runCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.active[nickname] = &activeReader{session: session, cancel: cancel}
	s.mu.Unlock()

	go func() {
		_ = rc.Supervise(runCtx, s.activeReaderList)
		s.mu.Lock()
		delete(s.active, nickname)
		s.mu.Unlock()
	}()
	return nil
}

// DisconnectReader cancels the supervising goroutine for nickname, if any.
func (s *Services) DisconnectReader(ctx context.Context, nickname string) error {
	s.mu.Lock()
	entry, ok := s.active[nickname]
	if ok {
		delete(s.active, nickname)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	entry.cancel()
	return nil
}

// StartReader and StopReader mirror Connect/Disconnect in this build: the
// portal does not distinguish "connected but idle" from "actively
// reading" at the control-socket level (spec §6 lists both tags but the
// Reader Session state machine collapses them once Reading is reached).
func (s *Services) StartReader(ctx context.Context, nickname string) error {
	return s.ConnectReader(ctx, nickname)
}

func (s *Services) StopReader(ctx context.Context, nickname string) error {
	return s.DisconnectReader(ctx, nickname)
}

// ListReaders returns the currently active (connected) readers.
func (s *Services) ListReaders(ctx context.Context) ([]types.Reader, error) {
	return s.activeReaderList(), nil
}

func (s *Services) activeReaderList() []types.Reader {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Reader, 0, len(s.active))
	for _, entry := range s.active {
		if entry.connected {
			out = append(out, entry.session.Reader())
		}
	}
	return out
}

// SetReaderActive implements reader.ActiveTracker. The Reconnector calls
// this at the start of every connect attempt (false) and again once that
// attempt reaches the Reading state (true), so a reader stuck retrying
// never appears in ListReaders (spec §4.E step (a)).
func (s *Services) SetReaderActive(nickname string, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.active[nickname]; ok {
		entry.connected = active
	}
}

// TriggerManualUpload implements control.UploadControl.
func (s *Services) TriggerManualUpload() {
	s.Uploader.TriggerManualUpload()
}

// SetAutoUpload implements control.UploadControl.
func (s *Services) SetAutoUpload(enabled bool) {
	s.Uploader.SetAutoUpload(enabled)
}

func transportFor(r types.Reader) reader.Transport {
	switch r.Kind {
	case types.ReaderKindZebra:
		return &reader.ZebraTransport{}
	default:
		return &reader.ZebraTransport{}
	}
}
