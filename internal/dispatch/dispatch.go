// Package dispatch routes an inbound event to the first registered
// handler whose predicate matches. Handlers are consulted in
// registration order; exactly one handler runs per event. Fallback
// handlers that always match are registered last by convention, closing
// the predicate chain.
package dispatch

import (
	"context"
	"log/slog"

	"github.com/KirkDiggler/roll-sync/internal/errors"
)

// Handler matches and processes events of type E. The contract is fixed
// at compile time; registration only needs to reject nil values.
type Handler[E any] interface {
	// Matches reports whether this handler claims the event
	Matches(event E) bool

	// Handle processes a claimed event
	Handle(ctx context.Context, event E) error
}

// Dispatcher routes events first-match-wins.
type Dispatcher[E any] struct {
	handlers []Handler[E]
}

// New creates an empty dispatcher
func New[E any]() *Dispatcher[E] {
	return &Dispatcher[E]{}
}

// Register appends a handler to the chain. A nil handler violates the
// dispatch contract and fails here, never at dispatch time.
func (d *Dispatcher[E]) Register(h Handler[E]) error {
	if h == nil {
		return errors.FailedPrecondition("handler must not be nil")
	}
	d.handlers = append(d.handlers, h)
	return nil
}

// Dispatch invokes the first handler whose predicate returns true and
// reports whether any handler matched. A handler error is logged and
// propagated; no further handlers are tried for that event.
func (d *Dispatcher[E]) Dispatch(ctx context.Context, event E) (bool, error) {
	for _, h := range d.handlers {
		if !h.Matches(event) {
			continue
		}
		if err := h.Handle(ctx, event); err != nil {
			slog.Error("handler failed", "error", err)
			return true, err
		}
		return true, nil
	}
	return false, nil
}

// Len returns the number of registered handlers
func (d *Dispatcher[E]) Len() int {
	return len(d.handlers)
}
