package rollsync

import (
	"sync"
	"time"

	"github.com/KirkDiggler/roll-sync/internal/pkg/clock"
)

// DefaultGuardGrace is how long a roll stays guarded after handling
// starts. The guard outlives handler completion so a late re-delivery
// of the same roll cannot re-trigger work.
const DefaultGuardGrace = 5 * time.Second

// processingGuard blocks re-entrant handling of one roll, keyed
// (entityId, action, rollId). Keys expire on the grace period, never on
// handler completion.
type processingGuard struct {
	mu      sync.Mutex
	grace   time.Duration
	clock   clock.Clock
	armedAt map[string]time.Time
}

func newProcessingGuard(grace time.Duration, clk clock.Clock) *processingGuard {
	return &processingGuard{
		grace:   grace,
		clock:   clk,
		armedAt: make(map[string]time.Time),
	}
}

// TryAcquire arms the guard for key. Returns false while a prior
// acquisition is still inside its grace period.
func (g *processingGuard) TryAcquire(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	if armed, ok := g.armedAt[key]; ok && now.Before(armed.Add(g.grace)) {
		return false
	}
	g.armedAt[key] = now
	g.sweepLocked(now)
	return true
}

// sweepLocked drops expired keys so the map does not grow with session
// length.
func (g *processingGuard) sweepLocked(now time.Time) {
	for key, armed := range g.armedAt {
		if !now.Before(armed.Add(g.grace)) {
			delete(g.armedAt, key)
		}
	}
}
