package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chronokeeptiming/portal/internal/storage"
	"github.com/chronokeeptiming/portal/internal/types"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	storage.Store
	mu      sync.Mutex
	batches [][]types.Read
}

func (r *recordingStore) SaveReads(ctx context.Context, reads []types.Read) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]types.Read, len(reads))
	copy(cp, reads)
	r.batches = append(r.batches, cp)
	return len(reads), nil
}

type countingNotifiee struct {
	mu    sync.Mutex
	count int
}

func (c *countingNotifiee) Notify() {
	c.mu.Lock()
	c.count++
	c.mu.Unlock()
}

func (c *countingNotifiee) total() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// TestSaverPersistsBurstAndNotifies verifies spec §4.B from the producer
// side: every read from a burst of concurrent Enqueue calls is persisted
// through batched SaveReads calls, and the notifiee is told at least once.
// How many batches the burst is split into depends on goroutine
// scheduling and is not asserted.
func TestSaverPersistsBurstAndNotifies(t *testing.T) {
	store := &recordingStore{}
	notifiee := &countingNotifiee{}
	s := New(store, notifiee)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Enqueue(types.Read{Chip: "A1", Seconds: int64(i)})
		}(i)
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		total := 0
		for _, b := range store.batches {
			total += len(b)
		}
		return total == 50
	}, time.Second, time.Millisecond)

	require.Eventually(t, func() bool { return notifiee.total() >= 1 }, time.Second, time.Millisecond)
}
