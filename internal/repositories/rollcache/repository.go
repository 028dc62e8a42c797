// Package rollcache provides repository interface and types for caching
// remote rolls that arrived before a UI flow was ready to consume them.
// Entries live under a short TTL and are consumed at most once.
package rollcache

import (
	"context"
	"time"

	"github.com/KirkDiggler/roll-sync/internal/platform"
)

//go:generate mockgen -destination=mock/mock_repository.go -package=rollcachemock github.com/KirkDiggler/roll-sync/internal/repositories/rollcache Repository

// DefaultTTL is how long an unconsumed roll stays retrievable.
const DefaultTTL = 30 * time.Second

// CachedRoll is one remote roll waiting for a consumer.
type CachedRoll struct {
	// Event is the raw roll event as received
	Event *platform.RollEvent

	// ReceivedAt is when the roll was cached
	ReceivedAt time.Time
}

// PutInput contains parameters for caching a roll
type PutInput struct {
	EntityID string
	Action   string
	Event    *platform.RollEvent
	TTL      time.Duration // zero means DefaultTTL
}

// TakeInput contains parameters for consuming a cached roll
type TakeInput struct {
	EntityID string
	Action   string
}

// TakeOutput contains the consumed roll
type TakeOutput struct {
	Roll *CachedRoll
}

// HasInput contains parameters for probing the cache
type HasInput struct {
	EntityID string
	Action   string
}

// DeleteInput contains parameters for discarding a cached roll
type DeleteInput struct {
	EntityID string
	Action   string
}

// Repository defines the interface for roll cache storage operations
type Repository interface {
	// Put stores a roll under (entityId, action) with the specified TTL,
	// replacing any previous entry for the same key
	Put(ctx context.Context, input PutInput) error

	// Take consumes a cached roll: the entry is removed atomically with
	// retrieval. Returns NotFound when nothing (unexpired) is cached.
	Take(ctx context.Context, input TakeInput) (*TakeOutput, error)

	// Has reports whether an unexpired entry exists without consuming it
	Has(ctx context.Context, input HasInput) (bool, error)

	// Delete discards a cached roll, idempotent
	Delete(ctx context.Context, input DeleteInput) error
}
