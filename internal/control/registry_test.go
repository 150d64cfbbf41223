package control

import (
	"context"
	"net"
	"testing"

	"github.com/chronokeeptiming/portal/internal/types"
	"github.com/stretchr/testify/require"
)

// pipeConn returns one end of an in-memory connection suitable for
// exercising Registry without a real listener.
func pipeConn(t *testing.T) (net.Conn, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	t.Cleanup(func() { a.Close(); b.Close() })
	return a, b
}

func TestRegistryAddRejectsOverMaxConnected(t *testing.T) {
	r := NewRegistry()
	var serverEnds []net.Conn
	for i := 0; i < MaxConnected; i++ {
		srv, cli := pipeConn(t)
		serverEnds = append(serverEnds, cli)
		_, ok := r.Add(srv)
		require.True(t, ok, "slot %d should be free", i)
	}

	overflow, _ := pipeConn(t)
	_, ok := r.Add(overflow)
	require.False(t, ok, "registry should reject the 33rd socket")
	_ = serverEnds
}

func TestRegistryRemoveFreesSlot(t *testing.T) {
	r := NewRegistry()
	srv, _ := pipeConn(t)
	sk, ok := r.Add(srv)
	require.True(t, ok)

	r.Remove(sk)

	srv2, _ := pipeConn(t)
	_, ok = r.Add(srv2)
	require.True(t, ok, "slot freed by Remove should be reusable")
}

func TestBroadcastSightingsOnlyReachesSubscribedSockets(t *testing.T) {
	r := NewRegistry()
	srvA, cliA := pipeConn(t)
	srvB, cliB := pipeConn(t)

	skA, ok := r.Add(srvA)
	require.True(t, ok)
	skB, ok := r.Add(srvB)
	require.True(t, ok)

	skA.sightingRepeater = true
	skB.sightingRepeater = false

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 4096)
		n, err := cliA.Read(buf)
		require.NoError(t, err)
		require.Contains(t, string(buf[:n]), "\"sightings\"")
		close(done)
	}()

	r.BroadcastSightings(context.Background(), []types.Sighting{
		{Participant: types.Participant{Bib: "100"}, Read: types.Read{Chip: "A1", Seconds: 5}},
	})
	<-done

	// cliB must not have received anything; closing without a pending read
	// is enough to prove nothing was buffered for it in this synchronous
	// net.Pipe model since skB.sightingRepeater was never set.
	_ = cliB
}

func TestBroadcastReadersReachesEverySocketRegardlessOfSubscription(t *testing.T) {
	r := NewRegistry()
	srv, cli := pipeConn(t)
	sk, ok := r.Add(srv)
	require.True(t, ok)
	require.False(t, sk.readRepeater)
	require.False(t, sk.sightingRepeater)

	done := make(chan struct{})
	go func() {
		buf := make([]byte, 4096)
		n, err := cli.Read(buf)
		require.NoError(t, err)
		require.Contains(t, string(buf[:n]), "\"reader_list\"")
		close(done)
	}()

	r.BroadcastReaders(context.Background(), []types.Reader{{Nickname: "R1"}})
	<-done
}
