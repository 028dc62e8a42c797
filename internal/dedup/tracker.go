// Package dedup tracks message fingerprints so a re-delivered event is
// recognized and skipped. The history is bounded by capacity, not time:
// the oldest key is evicted in strict FIFO order once the bound is
// exceeded. A true duplicate can therefore resurface as "new" after
// enough distinct messages intervene, which the remote platform's
// delivery guarantees make an accepted tradeoff.
package dedup

import "sync"

// DefaultCapacity bounds the fingerprint history.
const DefaultCapacity = 50

// Tracker records processed message fingerprints.
type Tracker struct {
	mu       sync.Mutex
	capacity int
	order    []string
	seen     map[string]struct{}
}

// New creates a tracker with the given capacity. Zero or negative falls
// back to DefaultCapacity.
func New(capacity int) *Tracker {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Tracker{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		seen:     make(map[string]struct{}, capacity),
	}
}

// IsProcessed reports whether the key is still within the history.
func (t *Tracker) IsProcessed(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.seen[key]
	return ok
}

// MarkProcessed records the key, evicting the oldest entry when the
// capacity bound is exceeded. Re-marking a known key is a no-op and
// does not refresh its position; eviction is FIFO, not LRU.
func (t *Tracker) MarkProcessed(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.seen[key]; ok {
		return
	}

	t.seen[key] = struct{}{}
	t.order = append(t.order, key)

	if len(t.order) > t.capacity {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.seen, oldest)
	}
}

// Len returns the number of tracked fingerprints.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}
