// Package rollsync routes deduplicated remote roll events to per-type
// strategies that keep the local app in step with the remote table.
package rollsync

import (
	"context"
	"log/slog"
	"time"

	rpgdice "github.com/KirkDiggler/rpg-toolkit/dice"
	"github.com/KirkDiggler/rpg-toolkit/events"

	"github.com/KirkDiggler/roll-sync/internal/errors"
	"github.com/KirkDiggler/roll-sync/internal/pkg/clock"
)

// Service defines the interface for remote roll handling
type Service interface {
	HandleRoll(ctx context.Context, input *HandleRollInput) (*HandleRollOutput, error)
}

// Config holds the dependencies for the roll sync orchestrator
type Config struct {
	Resolver   Resolver
	Poster     Poster
	Initiative InitiativeSetter
	Cache      RollCacher
	EventBus   events.EventBus

	Roller     rpgdice.Roller // nil means dice.DefaultRoller
	Clock      clock.Clock    // nil means the real clock
	GuardGrace time.Duration  // zero means DefaultGuardGrace
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.Resolver == nil {
		vb.RequiredField("Resolver")
	}
	if c.Poster == nil {
		vb.RequiredField("Poster")
	}
	if c.Initiative == nil {
		vb.RequiredField("Initiative")
	}
	if c.Cache == nil {
		vb.RequiredField("Cache")
	}
	if c.EventBus == nil {
		vb.RequiredField("EventBus")
	}

	return vb.Build()
}

type orchestrator struct {
	strategies []Strategy
	cache      RollCacher
	guard      *processingGuard
}

// NewOrchestrator creates a roll sync orchestrator with the provided
// dependencies. Strategy order is fixed: initiative, saving throw,
// ability check, attack, then the generic fallback.
func NewOrchestrator(cfg *Config) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	roller := cfg.Roller
	if roller == nil {
		roller = rpgdice.DefaultRoller
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	grace := cfg.GuardGrace
	if grace == 0 {
		grace = DefaultGuardGrace
	}

	deps := &strategyDeps{
		resolver:   cfg.Resolver,
		poster:     cfg.Poster,
		initiative: cfg.Initiative,
		roller:     roller,
		bus:        cfg.EventBus,
	}

	return &orchestrator{
		strategies: []Strategy{
			&initiativeStrategy{deps},
			&savingThrowStrategy{deps},
			&abilityCheckStrategy{deps},
			&attackStrategy{deps},
			&genericStrategy{deps},
		},
		cache: cfg.Cache,
		guard: newProcessingGuard(grace, clk),
	}, nil
}

// HandleRoll routes one remote roll to the first strategy that claims
// it. Re-entrant deliveries inside the guard's grace period are
// skipped without running any strategy.
func (o *orchestrator) HandleRoll(ctx context.Context, input *HandleRollInput) (*HandleRollOutput, error) {
	if input == nil || input.Event == nil {
		return nil, errors.InvalidArgument("event is required")
	}
	event := input.Event

	if !o.guard.TryAcquire(event.GuardKey()) {
		slog.Debug("roll already being processed",
			"entity_id", event.EntityID(),
			"action", event.Action(),
			"roll_id", event.Roll.RollID,
		)
		return &HandleRollOutput{Skipped: true}, nil
	}

	for _, strategy := range o.strategies {
		if !strategy.Matches(event) {
			continue
		}

		if strategy.UsesCache() {
			// A cache miss here only costs a waiting flow its shortcut,
			// so it must not block the sync itself.
			if err := o.cache.CacheRoll(ctx, event); err != nil {
				slog.Warn("failed to cache roll for waiting flows",
					"entity_id", event.EntityID(),
					"action", event.Action(),
					"error", err,
				)
			}
		}

		skipped, err := strategy.Handle(ctx, event)
		if err != nil {
			return nil, errors.Wrapf(err, "%s strategy failed", strategy.Name())
		}
		return &HandleRollOutput{Strategy: strategy.Name(), Skipped: skipped}, nil
	}

	// Unreachable while the generic strategy is registered.
	return nil, errors.Internalf("no strategy matched roll %s", event.Roll.RollID)
}
