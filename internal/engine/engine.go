// Package engine runs the sync loop: transport events are consumed one
// at a time, in arrival order, deduplicated, and dispatched to message
// handlers. A handler failure is logged and the loop keeps running; a
// terminal disconnect ends the session until reconnection is requested.
package engine

import (
	"context"
	"log/slog"

	"github.com/KirkDiggler/roll-sync/internal/dedup"
	"github.com/KirkDiggler/roll-sync/internal/dispatch"
	"github.com/KirkDiggler/roll-sync/internal/errors"
	"github.com/KirkDiggler/roll-sync/internal/orchestrators/rollsync"
	"github.com/KirkDiggler/roll-sync/internal/platform"
	"github.com/KirkDiggler/roll-sync/internal/transport"
)

// Config holds the dependencies for the sync engine
type Config struct {
	Transport   Transport
	RollService rollsync.Service
	Bridge      Offerer
	GameState   GameStateUpdater

	Notifier Notifier       // nil means no lifecycle notifications
	Dedup    *dedup.Tracker // nil means a fresh tracker with the default capacity
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.Transport == nil {
		vb.RequiredField("Transport")
	}
	if c.RollService == nil {
		vb.RequiredField("RollService")
	}
	if c.Bridge == nil {
		vb.RequiredField("Bridge")
	}
	if c.GameState == nil {
		vb.RequiredField("GameState")
	}

	return vb.Build()
}

// Engine is the sync run loop
type Engine struct {
	transport  Transport
	notifier   Notifier
	dispatcher *dispatch.Dispatcher[*platform.Envelope]
}

// New creates a sync engine with the provided dependencies. Message
// handlers are registered in fixed order: rolls, character updates,
// then the logging fallback.
func New(cfg *Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	notifier := cfg.Notifier
	if notifier == nil {
		notifier = noopNotifier{}
	}
	tracker := cfg.Dedup
	if tracker == nil {
		tracker = dedup.New(0)
	}

	dispatcher := dispatch.New[*platform.Envelope]()
	for _, handler := range []dispatch.Handler[*platform.Envelope]{
		&rollHandler{dedup: tracker, bridge: cfg.Bridge, rolls: cfg.RollService},
		&characterUpdateHandler{dedup: tracker, gameState: cfg.GameState},
		&fallbackHandler{},
	} {
		if err := dispatcher.Register(handler); err != nil {
			return nil, err
		}
	}

	return &Engine{
		transport:  cfg.Transport,
		notifier:   notifier,
		dispatcher: dispatcher,
	}, nil
}

// Run consumes transport events until the context is cancelled or the
// transport's event stream closes. Handler errors never stop the loop.
func (e *Engine) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-e.transport.Events():
			if !ok {
				return nil
			}
			e.handleTransportEvent(ctx, ev)
		}
	}
}

func (e *Engine) handleTransportEvent(ctx context.Context, ev transport.Event) {
	switch ev.Kind {
	case transport.KindConnected:
		slog.Info("game log session established")
		e.notifier.NotifyConnected()

	case transport.KindDisconnected:
		if ev.Terminal {
			slog.Error("game log session lost", "error", ev.Err)
		} else {
			slog.Info("game log session closed")
		}
		e.notifier.NotifyDisconnected(ev.Terminal, ev.Err)

	case transport.KindCredentialExpired:
		slog.Warn("game log credential expired", "error", ev.Err)
		e.notifier.NotifyCredentialExpired()

	case transport.KindMessage:
		// A handler error is already logged by the dispatcher; the
		// loop keeps consuming either way.
		matched, _ := e.dispatcher.Dispatch(ctx, ev.Envelope)
		if !matched {
			slog.Warn("unroutable game log event", "event_type", ev.Envelope.EventType)
		}
	}
}
