package rollsync

import (
	"context"
	"log/slog"

	rpgdice "github.com/KirkDiggler/rpg-toolkit/dice"
	"github.com/KirkDiggler/rpg-toolkit/events"

	"github.com/KirkDiggler/roll-sync/internal/dice"
	"github.com/KirkDiggler/roll-sync/internal/entities"
	"github.com/KirkDiggler/roll-sync/internal/errors"
	"github.com/KirkDiggler/roll-sync/internal/platform"
)

// Event types published on the bus once a remote roll has landed
// locally. Downstream rules hooks subscribe by type.
const (
	EventRollSynced    = "rollsync.roll_synced"
	EventInitiativeSet = "rollsync.initiative_set"
)

// Strategy routes one class of remote roll. Strategies are consulted in
// registration order and the first match wins; the generic strategy is
// registered last and matches everything.
type Strategy interface {
	Name() string
	Matches(event *platform.RollEvent) bool

	// UsesCache marks strategies whose rolls may also satisfy a waiting
	// UI flow; their raw event is cached before the strategy runs.
	UsesCache() bool

	// Handle processes the roll. skipped reports that no local actor
	// owns it and nothing was done.
	Handle(ctx context.Context, event *platform.RollEvent) (skipped bool, err error)
}

// strategyDeps holds the collaborators shared by every strategy
type strategyDeps struct {
	resolver   Resolver
	poster     Poster
	initiative InitiativeSetter
	roller     rpgdice.Roller
	bus        events.EventBus
}

// publish announces a landed roll on the bus. Publish failures are
// logged; subscribers never get to fail the sync itself.
func (d *strategyDeps) publish(ctx context.Context, eventType string, actor *entities.Actor, kv map[string]any) {
	ev := events.NewGameEvent(eventType, actor, nil)
	for k, v := range kv {
		ev.Context().Set(k, v)
	}
	if err := d.bus.Publish(ctx, ev); err != nil {
		slog.Warn("failed to publish sync event",
			"event_type", eventType,
			"actor", actor.Name,
			"error", err,
		)
	}
}

// resolveAndEvaluate resolves the local actor, mirrors the remote roll
// as a local formula, evaluates it, and substitutes the delivered die
// values rank for rank. A nil actor with nil error means the roll
// belongs to nobody local.
func (d *strategyDeps) resolveAndEvaluate(ctx context.Context, event *platform.RollEvent) (*entities.Actor, *dice.Roll, error) {
	out, err := d.resolver.GetLocalActor(ctx, &GetLocalActorInput{RemoteID: event.EntityID()})
	if err != nil {
		if errors.IsNotFound(err) {
			slog.Debug("no local actor for remote roll",
				"entity_id", event.EntityID(),
				"action", event.Action(),
			)
			return nil, nil, nil
		}
		return nil, nil, errors.Wrap(err, "failed to resolve local actor")
	}

	formula := dice.BuildFormula(&event.Roll, event.Roll.DiceNotation.Constant)
	local, err := dice.ParseFormula(formula)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to mirror remote roll %s", event.Roll.RollID)
	}
	if err := local.Evaluate(d.roller); err != nil {
		return nil, nil, errors.Wrap(err, "failed to evaluate mirrored roll")
	}

	dice.Substitute(local, dice.ExtractGroups(&event.Roll))
	return out.Actor, local, nil
}

func (d *strategyDeps) post(ctx context.Context, actor *entities.Actor, event *platform.RollEvent, result *dice.Roll, rollType string) error {
	_, err := d.poster.PostRoll(ctx, &PostRollInput{
		Actor:    actor,
		Event:    event,
		Result:   result,
		RollType: rollType,
	})
	if err != nil {
		return errors.Wrapf(err, "failed to post %s roll", rollType)
	}

	slog.Info("remote roll synced",
		"actor", actor.Name,
		"action", event.Action(),
		"roll_type", rollType,
		"formula", result.Formula,
		"total", result.Total,
	)

	d.publish(ctx, EventRollSynced, actor, map[string]any{
		"action":    event.Action(),
		"roll_type": rollType,
		"total":     result.Total,
	})
	return nil
}

type initiativeStrategy struct {
	*strategyDeps
}

func (s *initiativeStrategy) Name() string { return "initiative" }

func (s *initiativeStrategy) Matches(event *platform.RollEvent) bool {
	return event.Roll.RollType == platform.RollTypeInitiative
}

func (s *initiativeStrategy) UsesCache() bool { return false }

func (s *initiativeStrategy) Handle(ctx context.Context, event *platform.RollEvent) (bool, error) {
	actor, result, err := s.resolveAndEvaluate(ctx, event)
	if err != nil {
		return false, err
	}
	if actor == nil {
		return true, nil
	}

	if _, err := s.initiative.SetInitiative(ctx, &SetInitiativeInput{
		Actor: actor,
		Total: result.Total,
	}); err != nil {
		return false, errors.Wrap(err, "failed to set initiative")
	}

	slog.Info("initiative synced", "actor", actor.Name, "total", result.Total)

	s.publish(ctx, EventInitiativeSet, actor, map[string]any{
		"total": result.Total,
	})
	return false, nil
}

type savingThrowStrategy struct {
	*strategyDeps
}

func (s *savingThrowStrategy) Name() string { return "saving_throw" }

func (s *savingThrowStrategy) Matches(event *platform.RollEvent) bool {
	return event.Roll.RollType == platform.RollTypeSave
}

// Saving throws are the rolls UI prompts wait on most, so the raw event
// is cached for a flow that has not subscribed yet.
func (s *savingThrowStrategy) UsesCache() bool { return true }

func (s *savingThrowStrategy) Handle(ctx context.Context, event *platform.RollEvent) (bool, error) {
	actor, result, err := s.resolveAndEvaluate(ctx, event)
	if err != nil {
		return false, err
	}
	if actor == nil {
		return true, nil
	}
	return false, s.post(ctx, actor, event, result, platform.RollTypeSave)
}

type abilityCheckStrategy struct {
	*strategyDeps
}

func (s *abilityCheckStrategy) Name() string { return "ability_check" }

func (s *abilityCheckStrategy) Matches(event *platform.RollEvent) bool {
	return event.Roll.RollType == platform.RollTypeCheck
}

func (s *abilityCheckStrategy) UsesCache() bool { return true }

func (s *abilityCheckStrategy) Handle(ctx context.Context, event *platform.RollEvent) (bool, error) {
	actor, result, err := s.resolveAndEvaluate(ctx, event)
	if err != nil {
		return false, err
	}
	if actor == nil {
		return true, nil
	}
	return false, s.post(ctx, actor, event, result, platform.RollTypeCheck)
}

type attackStrategy struct {
	*strategyDeps
}

func (s *attackStrategy) Name() string { return "attack" }

func (s *attackStrategy) Matches(event *platform.RollEvent) bool {
	return event.Roll.RollType == platform.RollTypeToHit ||
		event.Roll.RollType == platform.RollTypeDamage
}

func (s *attackStrategy) UsesCache() bool { return false }

func (s *attackStrategy) Handle(ctx context.Context, event *platform.RollEvent) (bool, error) {
	actor, result, err := s.resolveAndEvaluate(ctx, event)
	if err != nil {
		return false, err
	}
	if actor == nil {
		return true, nil
	}
	return false, s.post(ctx, actor, event, result, event.Roll.RollType)
}

// genericStrategy is the registered-last fallback; it matches every
// roll so dispatch never drops one on the floor.
type genericStrategy struct {
	*strategyDeps
}

func (s *genericStrategy) Name() string { return "generic" }

func (s *genericStrategy) Matches(_ *platform.RollEvent) bool { return true }

func (s *genericStrategy) UsesCache() bool { return false }

func (s *genericStrategy) Handle(ctx context.Context, event *platform.RollEvent) (bool, error) {
	actor, result, err := s.resolveAndEvaluate(ctx, event)
	if err != nil {
		return false, err
	}
	if actor == nil {
		return true, nil
	}

	rollType := event.Roll.RollType
	if rollType == "" {
		rollType = platform.RollTypeRoll
	}
	return false, s.post(ctx, actor, event, result, rollType)
}
