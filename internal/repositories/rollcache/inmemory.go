package rollcache

import (
	"context"
	"sync"
	"time"

	"github.com/KirkDiggler/roll-sync/internal/errors"
	"github.com/KirkDiggler/roll-sync/internal/pkg/clock"
)

// InMemoryConfig holds the configuration for the in-memory repository
type InMemoryConfig struct {
	Clock clock.Clock
}

type memoryEntry struct {
	roll      *CachedRoll
	expiresAt time.Time
}

type inMemoryRepository struct {
	mu    sync.Mutex
	clock clock.Clock
	rolls map[string]memoryEntry
}

// NewInMemoryRepository creates an in-memory roll cache. Used when Redis
// is not configured; expiry is enforced lazily on access.
func NewInMemoryRepository(cfg *InMemoryConfig) (Repository, error) {
	if cfg.Clock == nil {
		return nil, errors.InvalidArgument("clock is required")
	}

	return &inMemoryRepository{
		clock: cfg.Clock,
		rolls: make(map[string]memoryEntry),
	}, nil
}

// Ensure inMemoryRepository implements Repository
var _ Repository = (*inMemoryRepository)(nil)

// Put stores a roll under (entityId, action)
func (r *inMemoryRepository) Put(_ context.Context, input PutInput) error {
	if input.EntityID == "" {
		return errors.InvalidArgument(errEntityIDEmpty)
	}
	if input.Action == "" {
		return errors.InvalidArgument(errActionEmpty)
	}
	if input.Event == nil {
		return errors.InvalidArgument(errEventNil)
	}

	ttl := input.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}

	now := r.clock.Now()
	r.mu.Lock()
	r.rolls[buildKey(input.EntityID, input.Action)] = memoryEntry{
		roll:      &CachedRoll{Event: input.Event, ReceivedAt: now},
		expiresAt: now.Add(ttl),
	}
	r.mu.Unlock()
	return nil
}

// Take consumes a cached roll
func (r *inMemoryRepository) Take(_ context.Context, input TakeInput) (*TakeOutput, error) {
	if input.EntityID == "" {
		return nil, errors.InvalidArgument(errEntityIDEmpty)
	}
	if input.Action == "" {
		return nil, errors.InvalidArgument(errActionEmpty)
	}

	key := buildKey(input.EntityID, input.Action)

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rolls[key]
	if !ok {
		return nil, errors.NotFound("no cached roll")
	}
	delete(r.rolls, key)

	if r.clock.Now().After(entry.expiresAt) {
		return nil, errors.NotFound("cached roll has expired")
	}
	return &TakeOutput{Roll: entry.roll}, nil
}

// Has reports whether an unexpired entry exists
func (r *inMemoryRepository) Has(_ context.Context, input HasInput) (bool, error) {
	if input.EntityID == "" {
		return false, errors.InvalidArgument(errEntityIDEmpty)
	}
	if input.Action == "" {
		return false, errors.InvalidArgument(errActionEmpty)
	}

	key := buildKey(input.EntityID, input.Action)

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.rolls[key]
	if !ok {
		return false, nil
	}
	if r.clock.Now().After(entry.expiresAt) {
		delete(r.rolls, key)
		return false, nil
	}
	return true, nil
}

// Delete discards a cached roll
func (r *inMemoryRepository) Delete(_ context.Context, input DeleteInput) error {
	if input.EntityID == "" {
		return errors.InvalidArgument(errEntityIDEmpty)
	}
	if input.Action == "" {
		return errors.InvalidArgument(errActionEmpty)
	}

	r.mu.Lock()
	delete(r.rolls, buildKey(input.EntityID, input.Action))
	r.mu.Unlock()
	return nil
}
