package remote

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/chronokeeptiming/portal/internal/storage"
	"github.com/chronokeeptiming/portal/internal/types"
)

// UploadState mirrors the Stopped/Running/Stopping state machine from
// spec §4.F.
type UploadState int

const (
	UploadStateStopped UploadState = iota
	UploadStateRunning
	UploadStateStopping
)

func (s UploadState) String() string {
	switch s {
	case UploadStateStopped:
		return "Stopped"
	case UploadStateRunning:
		return "Running"
	case UploadStateStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// UploadMetrics records uploader activity; see internal/telemetry.
type UploadMetrics interface {
	UploadBatch(reads int)
}

// StatusBroadcaster fans the uploader's current state out to every
// connected operator socket.
type StatusBroadcaster interface {
	BroadcastUploadStatus(ctx context.Context, state UploadState)
}

// pollInterval is how often the Uploader checks for not-yet-uploaded
// reads when idle (spec §4.F "periodic loop").
const pollInterval = 15 * time.Second

// Uploader periodically pushes unsent reads to the first configured
// chronokeep-remote(-self) API.
type Uploader struct {
	store       storage.Store
	broadcaster StatusBroadcaster
	metrics     UploadMetrics

	mu    sync.Mutex
	state UploadState
	auto  bool
}

// New builds an Uploader. broadcaster and metrics may be nil. Automatic
// periodic upload is enabled by default; see SetAutoUpload.
func New(store storage.Store, broadcaster StatusBroadcaster, metrics UploadMetrics) *Uploader {
	return &Uploader{store: store, broadcaster: broadcaster, metrics: metrics, state: UploadStateStopped, auto: true}
}

// SetAutoUpload toggles whether Start's periodic loop runs upload cycles
// on its own (spec §6 "api_remote_auto_upload"). Disabling it leaves the
// loop alive so TriggerManualUpload/RunOnce and broadcasts keep working.
func (u *Uploader) SetAutoUpload(enabled bool) {
	u.mu.Lock()
	u.auto = enabled
	u.mu.Unlock()
}

func (u *Uploader) autoEnabled() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.auto
}

// RunOnce runs a single upload cycle immediately, regardless of the auto
// flag (spec §6 "api_remote_manual_upload").
func (u *Uploader) RunOnce(ctx context.Context) {
	u.runCycle(ctx)
}

// TriggerManualUpload runs one upload cycle in the background.
func (u *Uploader) TriggerManualUpload() {
	go u.RunOnce(context.Background())
}

func (u *Uploader) State() UploadState {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

func (u *Uploader) setState(ctx context.Context, s UploadState) {
	u.mu.Lock()
	u.state = s
	u.mu.Unlock()
	if u.broadcaster != nil {
		u.broadcaster.BroadcastUploadStatus(ctx, s)
	}
}

// Stop requests the loop exit after its current cycle.
func (u *Uploader) Stop() {
	u.mu.Lock()
	if u.state == UploadStateRunning {
		u.state = UploadStateStopping
	}
	u.mu.Unlock()
}

// Start runs the uploader's periodic loop until ctx is cancelled or Stop
// is called. It blocks — callers typically `go uploader.Start(ctx)`.
func (u *Uploader) Start(ctx context.Context) {
	u.setState(ctx, UploadStateRunning)
	defer u.setState(ctx, UploadStateStopped)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if u.State() == UploadStateStopping {
			return
		}
		if u.autoEnabled() {
			u.runCycle(ctx)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runCycle uploads every not-yet-uploaded read to the first remote-capable
// API in chunks of uploadChunkSize, marking each chunk uploaded only on an
// exact-count-match confirmation (spec §4.F steps 2-4).
func (u *Uploader) runCycle(ctx context.Context) {
	apis, err := u.store.GetAPIs(ctx)
	if err != nil {
		log.Printf("uploader: error getting APIs: %v", err)
		return
	}

	var target *types.ResultsApi
	for i := range apis {
		if apis[i].Kind.IsRemoteUploadTarget() {
			target = &apis[i]
			break
		}
	}
	if target == nil {
		return
	}

	reads, err := u.store.GetNotUploadedReads(ctx)
	if err != nil {
		log.Printf("uploader: error getting unsent reads: %v", err)
		return
	}
	if len(reads) == 0 {
		return
	}

	client := NewClient(*target)

	for start := 0; start < len(reads); start += uploadChunkSize {
		end := start + uploadChunkSize
		if end > len(reads) {
			end = len(reads)
		}
		chunk := reads[start:end]

		accepted, err := client.UploadReads(ctx, chunk)
		if err != nil {
			log.Printf("uploader: chunk upload to %s failed: %v", target.Nickname, err)
			return
		}
		if accepted != len(chunk) {
			log.Printf("uploader: chunk upload to %s: accepted %d of %d, not marking uploaded",
				target.Nickname, accepted, len(chunk))
			return
		}

		marked := make([]types.Read, len(chunk))
		for i, r := range chunk {
			r.Uploaded = true
			marked[i] = r
		}
		if err := u.store.UpdateReadsStatus(ctx, marked); err != nil {
			log.Printf("uploader: error marking chunk uploaded: %v", err)
			return
		}
		if u.metrics != nil {
			u.metrics.UploadBatch(len(marked))
		}
	}
}
