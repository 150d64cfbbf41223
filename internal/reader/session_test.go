package reader

import (
	"context"
	"errors"
	"testing"

	"github.com/chronokeeptiming/portal/internal/ingest"
	"github.com/chronokeeptiming/portal/internal/storage"
	"github.com/chronokeeptiming/portal/internal/types"
	"github.com/stretchr/testify/require"
)

type scriptedTransport struct {
	connectErr    error
	initializeErr error
	readLoopErr   error
	disconnectErr error
	reads         []types.Read
}

func (s *scriptedTransport) Connect(ctx context.Context, r types.Reader) error { return s.connectErr }
func (s *scriptedTransport) Initialize(ctx context.Context) error             { return s.initializeErr }
func (s *scriptedTransport) ReadLoop(ctx context.Context, emit func(types.Read)) error {
	for _, r := range s.reads {
		emit(r)
	}
	if s.readLoopErr != nil {
		return s.readLoopErr
	}
	<-ctx.Done()
	return nil
}
func (s *scriptedTransport) Disconnect(ctx context.Context) error { return s.disconnectErr }

type nullStore struct{ storage.Store }

func (nullStore) SaveReads(ctx context.Context, reads []types.Read) (int, error) {
	return len(reads), nil
}

func TestSessionConnectReachesReadingOnSuccess(t *testing.T) {
	saver := ingest.New(nullStore{}, nil)
	sess := New(types.Reader{Nickname: "R1"}, &scriptedTransport{}, saver)

	require.Equal(t, StateDisconnected, sess.State())
	require.NoError(t, sess.Connect(context.Background()))
	require.Equal(t, StateReading, sess.State())
	require.True(t, sess.IsReading())
}

func TestSessionConnectFailsToFailedOnConnectError(t *testing.T) {
	saver := ingest.New(nullStore{}, nil)
	transport := &scriptedTransport{connectErr: types.ErrConnectionError}
	sess := New(types.Reader{Nickname: "R1"}, transport, saver)

	err := sess.Connect(context.Background())
	require.Error(t, err)
	require.Equal(t, StateFailed, sess.State())
}

func TestSessionConnectFailsToFailedOnInitializeError(t *testing.T) {
	saver := ingest.New(nullStore{}, nil)
	transport := &scriptedTransport{initializeErr: errors.New("bad init")}
	sess := New(types.Reader{Nickname: "R1"}, transport, saver)

	err := sess.Connect(context.Background())
	require.Error(t, err)
	require.Equal(t, StateFailed, sess.State())
}

func TestSessionDisconnectSettlesToDisconnectedEvenOnTransportError(t *testing.T) {
	saver := ingest.New(nullStore{}, nil)
	transport := &scriptedTransport{disconnectErr: errors.New("already gone")}
	sess := New(types.Reader{Nickname: "R1"}, transport, saver)
	require.NoError(t, sess.Connect(context.Background()))

	err := sess.Disconnect(context.Background())
	require.Error(t, err)
	require.Equal(t, StateDisconnected, sess.State())
}

func TestSessionRunReturnsNilOnCleanContextCancellation(t *testing.T) {
	saver := ingest.New(nullStore{}, nil)
	transport := &scriptedTransport{}
	sess := New(types.Reader{Nickname: "R1"}, transport, saver)
	require.NoError(t, sess.Connect(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, sess.Run(ctx))
}

func TestSessionRunFailsOnProtocolError(t *testing.T) {
	saver := ingest.New(nullStore{}, nil)
	transport := &scriptedTransport{readLoopErr: types.ErrProtocolError}
	sess := New(types.Reader{Nickname: "R1"}, transport, saver)
	require.NoError(t, sess.Connect(context.Background()))

	err := sess.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, StateFailed, sess.State())
}
