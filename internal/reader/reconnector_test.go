package reader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/chronokeeptiming/portal/internal/ingest"
	"github.com/chronokeeptiming/portal/internal/types"
	"github.com/stretchr/testify/require"
)

type alwaysFailTransport struct {
	attempts int32
}

func (t *alwaysFailTransport) Connect(ctx context.Context, r types.Reader) error {
	atomic.AddInt32(&t.attempts, 1)
	return errors.New("boom")
}
func (t *alwaysFailTransport) Initialize(ctx context.Context) error { return nil }
func (t *alwaysFailTransport) ReadLoop(ctx context.Context, emit func(types.Read)) error {
	return nil
}
func (t *alwaysFailTransport) Disconnect(ctx context.Context) error { return nil }

// TestReconnectorGivesUpAfterFiveAttempts verifies the bounded-retry cap
// from spec §4.E: exactly reconnectAttempts connect attempts, then give up.
func TestReconnectorGivesUpAfterFiveAttempts(t *testing.T) {
	transport := &alwaysFailTransport{}
	saver := ingest.New(nil, nil)
	session := New(types.Reader{Nickname: "r1"}, transport, saver)
	rc := NewReconnector(session, saver, nil, nil, nil)

	start := time.Now()
	err := rc.Supervise(context.Background(), nil)
	elapsed := time.Since(start)

	require.Error(t, err)
	require.EqualValues(t, reconnectAttempts, atomic.LoadInt32(&transport.attempts))
	require.GreaterOrEqual(t, elapsed, 4*reconnectInterval)
}

// fakeTracker records every SetReaderActive call so tests can assert the
// active list is withdrawn at the start of an attempt and only restored
// on success (spec §4.E step (a)).
type fakeTracker struct {
	mu     sync.Mutex
	events []bool
}

func (f *fakeTracker) SetReaderActive(nickname string, active bool) {
	f.mu.Lock()
	f.events = append(f.events, active)
	f.mu.Unlock()
}

func (f *fakeTracker) snapshot() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]bool, len(f.events))
	copy(out, f.events)
	return out
}

// flakyInitializeTransport fails Connect.Initialize a fixed number of
// times before succeeding, exercising the inner up-to-5 initialize retry
// loop inside Session.Connect (spec §4.E step (c)).
type flakyInitializeTransport struct {
	connectAttempts    int32
	initializeAttempts int32
	failInitializeFor  int32
}

func (t *flakyInitializeTransport) Connect(ctx context.Context, r types.Reader) error {
	atomic.AddInt32(&t.connectAttempts, 1)
	return nil
}
func (t *flakyInitializeTransport) Initialize(ctx context.Context) error {
	n := atomic.AddInt32(&t.initializeAttempts, 1)
	if n <= t.failInitializeFor {
		return errors.New("reader not ready yet")
	}
	return nil
}
func (t *flakyInitializeTransport) ReadLoop(ctx context.Context, emit func(types.Read)) error {
	<-ctx.Done()
	return nil
}
func (t *flakyInitializeTransport) Disconnect(ctx context.Context) error { return nil }

func TestReconnectorSucceedsAfterInnerInitializeRetries(t *testing.T) {
	transport := &flakyInitializeTransport{failInitializeFor: 3}
	saver := ingest.New(nil, nil)
	session := New(types.Reader{Nickname: "r1"}, transport, saver)
	tracker := &fakeTracker{}
	rc := NewReconnector(session, saver, tracker, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rc.Supervise(ctx, nil) }()

	require.Eventually(t, func() bool {
		return session.IsReading()
	}, 6*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Supervise did not return after context cancel")
	}

	require.EqualValues(t, 1, atomic.LoadInt32(&transport.connectAttempts))
	require.EqualValues(t, 4, atomic.LoadInt32(&transport.initializeAttempts))

	// withdrawn before the attempt, republished once Reading is reached,
	// withdrawn again once the read loop ends (context cancellation).
	require.Equal(t, []bool{false, true, false}, tracker.snapshot())
}

// alwaysFailInitializeTransport connects successfully every time but
// never completes initialize, exhausting the inner retry loop so
// Session.Connect reports failure even though the wire connect succeeded.
type alwaysFailInitializeTransport struct {
	connectAttempts    int32
	initializeAttempts int32
}

func (t *alwaysFailInitializeTransport) Connect(ctx context.Context, r types.Reader) error {
	atomic.AddInt32(&t.connectAttempts, 1)
	return nil
}
func (t *alwaysFailInitializeTransport) Initialize(ctx context.Context) error {
	atomic.AddInt32(&t.initializeAttempts, 1)
	return errors.New("reader stuck")
}
func (t *alwaysFailInitializeTransport) ReadLoop(ctx context.Context, emit func(types.Read)) error {
	return nil
}
func (t *alwaysFailInitializeTransport) Disconnect(ctx context.Context) error { return nil }

func TestSessionConnectFailsAfterExhaustingInitializeRetries(t *testing.T) {
	transport := &alwaysFailInitializeTransport{}
	saver := ingest.New(nil, nil)
	session := New(types.Reader{Nickname: "r1"}, transport, saver)

	start := time.Now()
	err := session.Connect(context.Background())
	elapsed := time.Since(start)

	require.Error(t, err)
	require.Equal(t, StateFailed, session.State())
	require.False(t, session.IsReading())
	require.EqualValues(t, 1, atomic.LoadInt32(&transport.connectAttempts))
	require.EqualValues(t, maxInitializeAttempts, atomic.LoadInt32(&transport.initializeAttempts))
	require.GreaterOrEqual(t, elapsed, time.Duration(maxInitializeAttempts-1)*initializeRetryDelay)
}

type succeedThenBlockTransport struct {
	attempts int32
}

func (t *succeedThenBlockTransport) Connect(ctx context.Context, r types.Reader) error {
	atomic.AddInt32(&t.attempts, 1)
	return nil
}
func (t *succeedThenBlockTransport) Initialize(ctx context.Context) error { return nil }
func (t *succeedThenBlockTransport) ReadLoop(ctx context.Context, emit func(types.Read)) error {
	<-ctx.Done()
	return nil
}
func (t *succeedThenBlockTransport) Disconnect(ctx context.Context) error { return nil }

func TestReconnectorStopsOnContextCancel(t *testing.T) {
	transport := &succeedThenBlockTransport{}
	saver := ingest.New(nil, nil)
	session := New(types.Reader{Nickname: "r1"}, transport, saver)
	rc := NewReconnector(session, saver, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rc.Supervise(ctx, nil) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Supervise did not return after context cancel")
	}
	require.Equal(t, StateDisconnected, session.State())
}
