// Package bridge connects the asynchronous remote roll stream to
// interactive UI flows. A flow that starts waiting before its roll
// arrives registers a subscription; a roll that arrives before any flow
// is ready lands in a consume-once cache. Both paths expire on their
// own: subscriptions by once-semantics or explicit cancellation, cache
// entries by TTL.
package bridge

import (
	"context"
	"log/slog"
	"sync"

	"github.com/KirkDiggler/roll-sync/internal/errors"
	"github.com/KirkDiggler/roll-sync/internal/pkg/idgen"
	"github.com/KirkDiggler/roll-sync/internal/platform"
	"github.com/KirkDiggler/roll-sync/internal/repositories/rollcache"
)

// Handler inspects an offered roll event and reports whether it
// consumed it. Handlers decide independently; an event may be offered
// to many handlers and consumed by none.
type Handler func(event *platform.RollEvent) bool

// SubscribeInput configures a subscription
type SubscribeInput struct {
	// Handler is invoked for every offered roll event
	Handler Handler

	// Once removes the subscription after its first consumption
	Once bool
}

// Config holds the dependencies for the bridge
type Config struct {
	Cache       rollcache.Repository
	IDGenerator idgen.Generator
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.Cache == nil {
		vb.RequiredField("Cache")
	}
	if c.IDGenerator == nil {
		vb.RequiredField("IDGenerator")
	}

	return vb.Build()
}

type subscription struct {
	id      string
	handler Handler
	once    bool
}

// Bridge owns the pending subscription list and fronts the roll cache.
// Callers hold only opaque subscription IDs.
type Bridge struct {
	mu    sync.Mutex
	subs  []*subscription
	cache rollcache.Repository
	idGen idgen.Generator
}

// New creates a bridge with the provided dependencies
func New(cfg *Config) (*Bridge, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &Bridge{
		cache: cfg.Cache,
		idGen: cfg.IDGenerator,
	}, nil
}

// Subscribe registers a handler for forthcoming roll events and returns
// its subscription ID.
func (b *Bridge) Subscribe(input SubscribeInput) (string, error) {
	if input.Handler == nil {
		return "", errors.InvalidArgument("handler is required")
	}

	sub := &subscription{
		id:      b.idGen.Generate(),
		handler: input.Handler,
		once:    input.Once,
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return sub.id, nil
}

// Unsubscribe removes a subscription by ID. Unknown IDs are a no-op.
func (b *Bridge) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(id)
}

func (b *Bridge) removeLocked(id string) {
	for i, sub := range b.subs {
		if sub.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Offer presents a roll event to every pending subscription, in
// registration order, and reports whether anyone consumed it. A once
// subscription that consumes is removed; the rest stay pending.
func (b *Bridge) Offer(_ context.Context, event *platform.RollEvent) bool {
	b.mu.Lock()
	pending := make([]*subscription, len(b.subs))
	copy(pending, b.subs)
	b.mu.Unlock()

	consumed := false
	for _, sub := range pending {
		if !sub.handler(event) {
			continue
		}
		consumed = true
		if sub.once {
			b.mu.Lock()
			b.removeLocked(sub.id)
			b.mu.Unlock()
		}
	}

	if consumed {
		slog.Debug("roll event consumed by subscriber",
			"entity_id", event.EntityID(),
			"action", event.Action(),
		)
	}
	return consumed
}

// PendingSubscriptions returns the number of live subscriptions
func (b *Bridge) PendingSubscriptions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// CacheRoll stores an unclaimed roll event for a UI flow that has not
// started waiting yet.
func (b *Bridge) CacheRoll(ctx context.Context, event *platform.RollEvent) error {
	return b.cache.Put(ctx, rollcache.PutInput{
		EntityID: event.EntityID(),
		Action:   event.Action(),
		Event:    event,
	})
}

// TakeCachedRoll consumes a cached roll for (entityId, action).
// Returns NotFound when nothing is cached.
func (b *Bridge) TakeCachedRoll(ctx context.Context, entityID, action string) (*platform.RollEvent, error) {
	out, err := b.cache.Take(ctx, rollcache.TakeInput{EntityID: entityID, Action: action})
	if err != nil {
		return nil, err
	}
	return out.Roll.Event, nil
}

// HasCachedRoll probes the cache without consuming
func (b *Bridge) HasCachedRoll(ctx context.Context, entityID, action string) (bool, error) {
	return b.cache.Has(ctx, rollcache.HasInput{EntityID: entityID, Action: action})
}

// ClearCachedRoll discards a cached roll; used when a waiting flow is
// cancelled so a stale entry cannot satisfy a later, unrelated prompt.
func (b *Bridge) ClearCachedRoll(ctx context.Context, entityID, action string) error {
	return b.cache.Delete(ctx, rollcache.DeleteInput{EntityID: entityID, Action: action})
}
