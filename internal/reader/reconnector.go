package reader

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/chronokeeptiming/portal/internal/ingest"
	"github.com/chronokeeptiming/portal/internal/types"
)

const (
	reconnectAttempts = 5
	reconnectInterval = 1 * time.Second
	// connectAttemptTimeout bounds one outer attempt, which itself may run
	// the wire connect plus up to maxInitializeAttempts initialize calls
	// separated by initializeRetryDelay — leave enough headroom for that
	// nested worst case plus actual I/O.
	connectAttemptTimeout = 15 * time.Second
)

// ReconnectMetrics records reconnect attempts; see internal/telemetry.
type ReconnectMetrics interface {
	ReconnectAttempt()
}

// ReaderListBroadcaster fans the current set of live readers out to
// subscribed operator sockets, mirroring the Sightings Processor's
// Broadcaster pattern (spec §4.E "on success, broadcast the reader list").
type ReaderListBroadcaster interface {
	BroadcastReaders(ctx context.Context, readers []types.Reader)
}

// ActiveTracker is the active-reader table the Reconnector publishes
// to/withdraws from on every connect attempt (spec §4.E step (a): the
// reader is removed from the active list at the start of an attempt
// and only reappears once that attempt reaches Reading).
type ActiveTracker interface {
	SetReaderActive(nickname string, active bool)
}

// Reconnector supervises one Session, retrying a bounded number of times
// on failure before giving up; after that the reader stays disconnected
// until an operator connects it again (spec §4.E).
type Reconnector struct {
	session     *Session
	saver       *ingest.Saver
	tracker     ActiveTracker
	broadcaster ReaderListBroadcaster
	metrics     ReconnectMetrics

	mu      sync.Mutex
	running bool
}

// NewReconnector builds a Reconnector for session. saver is re-supplied
// to session at the top of every connect attempt (step (b)); tracker,
// broadcaster, and metrics may all be nil.
func NewReconnector(session *Session, saver *ingest.Saver, tracker ActiveTracker, broadcaster ReaderListBroadcaster, metrics ReconnectMetrics) *Reconnector {
	return &Reconnector{session: session, saver: saver, tracker: tracker, broadcaster: broadcaster, metrics: metrics}
}

// Supervise connects the session and, if Run ever returns an error, tries
// up to reconnectAttempts times at a fixed 1s interval before giving up.
// It blocks until ctx is cancelled or the retry budget is exhausted.
func (rc *Reconnector) Supervise(ctx context.Context, liveReaders func() []types.Reader) error {
	rc.mu.Lock()
	rc.running = true
	rc.mu.Unlock()
	defer func() {
		rc.mu.Lock()
		rc.running = false
		rc.mu.Unlock()
	}()

	for {
		if err := rc.connectOnce(ctx); err != nil {
			rc.setActive(false)
			if ctx.Err() != nil {
				return nil
			}
			log.Printf("reconnector: reader %s: giving up after %d attempts: %v",
				rc.session.Reader().Nickname, reconnectAttempts, err)
			return err
		}

		rc.announce(ctx, liveReaders)

		runErr := rc.session.Run(ctx)
		rc.setActive(false)
		if ctx.Err() != nil {
			_ = rc.session.Disconnect(context.Background())
			return nil
		}
		if runErr == nil {
			_ = rc.session.Disconnect(context.Background())
			return nil
		}
		log.Printf("reconnector: reader %s: read loop failed, reconnecting: %v",
			rc.session.Reader().Nickname, runErr)
		_ = rc.session.Disconnect(context.Background())
	}
}

// connectOnce runs the bounded-retry connect policy: up to reconnectAttempts
// tries, 1s apart, grounded on cenkalti/backoff/v4's constant backoff with a
// max-retries wrapper (the teacher's bounded-reconnect idiom). Each try
// withdraws the reader from the active list, rewires its collaborators,
// then attempts Session.Connect (which itself retries Initialize up to 5
// times) — mirroring the original reconnector's per-attempt remove,
// rewire, connect-then-initialize, publish-on-success shape (spec §4.E).
func (rc *Reconnector) connectOnce(ctx context.Context) error {
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(reconnectInterval), reconnectAttempts-1)

	return backoff.Retry(func() error {
		if rc.metrics != nil {
			rc.metrics.ReconnectAttempt()
		}
		rc.setActive(false)
		if rc.saver != nil {
			rc.session.Rewire(rc.saver)
		}
		err := rc.session.connectWithTimeout(ctx, connectAttemptTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		rc.setActive(true)
		return nil
	}, backoff.WithContext(policy, ctx))
}

func (rc *Reconnector) setActive(active bool) {
	if rc.tracker == nil {
		return
	}
	rc.tracker.SetReaderActive(rc.session.Reader().Nickname, active)
}

func (rc *Reconnector) announce(ctx context.Context, liveReaders func() []types.Reader) {
	if rc.broadcaster == nil || liveReaders == nil {
		return
	}
	rc.broadcaster.BroadcastReaders(ctx, liveReaders())
}

// Running reports whether Supervise is currently active for this reader.
func (rc *Reconnector) Running() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.running
}
