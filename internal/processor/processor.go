// Package processor implements the Sightings Processor (spec §4.C): a
// notification-driven, single-threaded worker that classifies reads into
// used/ignored, attaches them to participants (creating synthetic
// participants on demand), enforces a per-chip quiet window, and fans
// sightings out to subscribed operator sockets.
package processor

import (
	"context"
	"log"
	"sort"
	"strconv"
	"sync"

	"github.com/chronokeeptiming/portal/internal/storage"
	"github.com/chronokeeptiming/portal/internal/types"
)

// Broadcaster fans a produced sighting batch out to subscribed operator
// sockets (spec §4.C "Fan-out"). The concrete socket registry lives in
// internal/control, which is explicitly out of the processor's scope.
type Broadcaster interface {
	BroadcastSightings(ctx context.Context, sightings []types.Sighting)
}

// Metrics records processor activity; see internal/telemetry for the
// otel-backed implementation. A nil Metrics is a silent no-op.
type Metrics interface {
	ReadsClassified(n int)
	SightingsProduced(n int)
}

// Processor is the Sightings Processor described in spec §4.C.
type Processor struct {
	store       storage.Store
	broadcaster Broadcaster
	metrics     Metrics

	keepalive *KeepAlive

	mu      sync.Mutex
	cond    *sync.Cond
	notify  bool
	running bool
}

// KeepAlive is the process-wide shutdown flag shared by reference across
// all long-lived components (spec §2, §9's "global mutable flags" note).
type KeepAlive struct {
	mu    sync.Mutex
	alive bool
}

func NewKeepAlive() *KeepAlive {
	return &KeepAlive{alive: true}
}

func (k *KeepAlive) Stop() {
	k.mu.Lock()
	k.alive = false
	k.mu.Unlock()
}

func (k *KeepAlive) Alive() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.alive
}

// New builds a Processor. metrics may be nil.
func New(store storage.Store, broadcaster Broadcaster, keepalive *KeepAlive, metrics Metrics) *Processor {
	p := &Processor{
		store:       store,
		broadcaster: broadcaster,
		keepalive:   keepalive,
		metrics:     metrics,
	}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Notify wakes the processor's worker loop, coalescing with any pending
// wake that hasn't been consumed yet (spec §4.C "Scheduling").
func (p *Processor) Notify() {
	p.mu.Lock()
	p.notify = true
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Running reports whether the worker loop is currently active.
func (p *Processor) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Stop requests the worker loop exit after its current drain.
func (p *Processor) Stop() {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Start runs the processor's worker loop until Stop is called or the
// shared keepalive flag drops. It blocks the calling goroutine — callers
// typically `go processor.Start()`.
func (p *Processor) Start(ctx context.Context) {
	p.mu.Lock()
	p.running = true
	p.mu.Unlock()

	log.Printf("processor: starting sightings processor")
	for {
		if !p.keepalive.Alive() {
			log.Printf("processor: keep-alive dropped, stopping")
			break
		}

		p.mu.Lock()
		if !p.running {
			p.mu.Unlock()
			break
		}
		shuttingDown := false
		for !p.notify {
			p.cond.Wait()
			if !p.keepalive.Alive() || !p.running {
				shuttingDown = true
				break
			}
		}
		p.mu.Unlock()
		if shuttingDown {
			break
		}

		for p.drainOnce(ctx) {
			// keep draining while there's still Unused work (spec §4.C
			// "Scheduling": the waiter loops draining while there is
			// still work).
		}

		p.mu.Lock()
		p.notify = false
		p.mu.Unlock()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

// drainOnce runs exactly one classify-persist-fanout cycle and reports
// whether the caller should run another cycle immediately (i.e. there was
// work this time, so another Unused read might already be waiting).
func (p *Processor) drainOnce(ctx context.Context) bool {
	reads, err := p.store.GetUsefulReads(ctx)
	if err != nil {
		log.Printf("processor: error getting useful reads: %v", err)
		return false
	}
	parts, err := p.store.GetParticipants(ctx)
	if err != nil {
		log.Printf("processor: error getting participants: %v", err)
		return false
	}

	result := classify(reads, parts)
	if len(result.unused) == 0 {
		return false
	}

	period := p.sightingPeriod(ctx)
	decision := decide(result, period)

	if len(decision.newParticipants) > 0 {
		if err := p.store.AddParticipants(ctx, decision.newParticipants); err != nil {
			log.Printf("processor: error adding participants: %v", err)
			return false
		}
		refreshed, err := p.store.GetParticipants(ctx)
		if err != nil {
			log.Printf("processor: error re-reading participants: %v", err)
			return false
		}
		byChip := make(map[string]types.Participant, len(refreshed))
		for _, part := range refreshed {
			byChip[part.Chip] = part
		}
		remapped := make([]types.Sighting, 0, len(decision.sightings))
		for _, sight := range decision.sightings {
			chip, _ := canonicalChip(sight.Read, result.bibChip)
			part, ok := byChip[chip]
			if !ok {
				log.Printf("processor: fatal: participant for chip %q vanished after insert", chip)
				return false
			}
			sight.Participant = part
			remapped = append(remapped, sight)
		}
		decision.sightings = remapped
	}

	if err := p.store.UpdateReadsStatus(ctx, decision.updatedReads); err != nil {
		log.Printf("processor: error updating read statuses: %v", err)
		return false
	}
	if err := p.store.SaveSightings(ctx, decision.sightings); err != nil {
		log.Printf("processor: error saving sightings: %v", err)
		return false
	}

	if p.metrics != nil {
		p.metrics.ReadsClassified(len(decision.updatedReads))
		p.metrics.SightingsProduced(len(decision.sightings))
	}

	if p.broadcaster != nil && len(decision.sightings) > 0 {
		p.broadcaster.BroadcastSightings(ctx, decision.sightings)
	}

	return true
}

// sightingPeriod reads SETTING_SIGHTING_PERIOD, falling back to the
// default if it is missing or unparseable (spec §4.C step 6).
func (p *Processor) sightingPeriod(ctx context.Context) uint64 {
	setting, err := p.store.GetSetting(ctx, types.SettingSightingPeriod)
	if err != nil {
		return types.DefaultSightingPeriodSeconds
	}
	period, err := strconv.ParseUint(setting.Value, 10, 64)
	if err != nil {
		return types.DefaultSightingPeriodSeconds
	}
	return period
}

// classification is the output of the classify pass (spec §4.C steps 1-5).
type classification struct {
	unused     []types.Read
	usedLatest map[string]types.Read // chip -> most recent Used read
	bibChip    map[string]string
	partMap    map[string]types.Participant
}

func classify(reads []types.Read, parts []types.Participant) classification {
	c := classification{
		usedLatest: make(map[string]types.Read),
		bibChip:    make(map[string]string, len(parts)),
		partMap:    make(map[string]types.Participant, len(parts)),
	}
	for _, part := range parts {
		c.bibChip[part.Bib] = part.Chip
		c.partMap[part.Chip] = part
	}

	for _, r := range reads {
		chip, ok := canonicalChip(r, c.bibChip)
		if !ok {
			log.Printf("processor: unknown ident type %v for read %d, skipping", r.IdentType, r.ID)
			continue
		}
		switch r.Status {
		case types.ReadStatusUnused:
			c.unused = append(c.unused, r)
		case types.ReadStatusUsed:
			if last, exists := c.usedLatest[chip]; !exists || last.Before(r) {
				c.usedLatest[chip] = r
			}
		}
	}

	sort.SliceStable(c.unused, func(i, j int) bool { return c.unused[i].Before(c.unused[j]) })
	return c
}

// canonicalChip resolves a read's canonical chip id per spec §4.C step 2:
// Bib reads translate through bibChip, falling back to the literal value
// if unmapped; Chip reads use the chip verbatim; anything else is
// unrecognized.
func canonicalChip(r types.Read, bibChip map[string]string) (string, bool) {
	switch r.IdentType {
	case types.IdentTypeBib:
		if chip, ok := bibChip[r.Chip]; ok {
			return chip, true
		}
		return r.Chip, true
	case types.IdentTypeChip:
		return r.Chip, true
	default:
		return "", false
	}
}

// decision is the output of the per-read decision pass (spec §4.C).
type decision struct {
	updatedReads    []types.Read
	sightings       []types.Sighting
	newParticipants []types.Participant
}

func decide(c classification, period uint64) decision {
	var d decision
	usedLatest := c.usedLatest
	partMap := c.partMap

	for _, r := range c.unused {
		chip, _ := canonicalChip(r, c.bibChip)

		part, ok := partMap[chip]
		if !ok {
			part = types.NewSyntheticParticipant(chip)
			d.newParticipants = append(d.newParticipants, part)
			partMap[chip] = part
		}

		last, hasLast := usedLatest[chip]
		tooSoon := false
		if hasLast {
			if last.Seconds+int64(period) > r.Seconds {
				tooSoon = true
			} else if last.Seconds+int64(period) == r.Seconds && last.Milliseconds > r.Milliseconds {
				tooSoon = true
			}
		}

		if tooSoon {
			r.Status = types.ReadStatusTooSoon
			d.updatedReads = append(d.updatedReads, r)
			continue
		}

		r.Status = types.ReadStatusUsed
		d.updatedReads = append(d.updatedReads, r)
		usedLatest[chip] = r
		d.sightings = append(d.sightings, types.Sighting{Participant: partMap[chip], Read: r})
	}

	return d
}
