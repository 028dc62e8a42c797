// Package override decides how a locally requested roll gets its die
// values: straight local randomness, hand-entered physical dice, or a
// matching roll from the remote table.
package override

import (
	"context"
	"log/slog"

	rpgdice "github.com/KirkDiggler/rpg-toolkit/dice"

	"github.com/KirkDiggler/roll-sync/internal/bridge"
	"github.com/KirkDiggler/roll-sync/internal/dice"
	"github.com/KirkDiggler/roll-sync/internal/entities"
	"github.com/KirkDiggler/roll-sync/internal/errors"
	"github.com/KirkDiggler/roll-sync/internal/platform"
)

// Service defines the interface for roll evaluation
type Service interface {
	EvaluateRoll(ctx context.Context, input *EvaluateRollInput) (*EvaluateRollOutput, error)
}

// Config holds the dependencies for the override orchestrator
type Config struct {
	Modes    ModeProvider
	Prompter Prompter
	Bridge   RollBridge

	Roller rpgdice.Roller // nil means dice.DefaultRoller
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.Modes == nil {
		vb.RequiredField("Modes")
	}
	if c.Prompter == nil {
		vb.RequiredField("Prompter")
	}
	if c.Bridge == nil {
		vb.RequiredField("Bridge")
	}

	return vb.Build()
}

type orchestrator struct {
	modes    ModeProvider
	prompter Prompter
	bridge   RollBridge
	roller   rpgdice.Roller
}

// NewOrchestrator creates an override orchestrator with the provided
// dependencies
func NewOrchestrator(cfg *Config) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	roller := cfg.Roller
	if roller == nil {
		roller = rpgdice.DefaultRoller
	}

	return &orchestrator{
		modes:    cfg.Modes,
		prompter: cfg.Prompter,
		bridge:   cfg.Bridge,
		roller:   roller,
	}, nil
}

// EvaluateRoll always evaluates locally first, then applies the actor's
// mode. Non-player-character actors never leave the local path.
func (o *orchestrator) EvaluateRoll(ctx context.Context, input *EvaluateRollInput) (*EvaluateRollOutput, error) {
	if input == nil || input.Actor == nil {
		return nil, errors.InvalidArgument("actor is required")
	}
	if input.Formula == "" {
		return nil, errors.InvalidArgument("formula is required")
	}

	local, err := dice.ParseFormula(input.Formula)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid formula %q", input.Formula)
	}
	if err := local.Evaluate(o.roller); err != nil {
		return nil, errors.Wrap(err, "failed to evaluate roll")
	}

	mode := entities.RollModeNormal
	if input.Actor.IsPlayerCharacter() {
		out, err := o.modes.GetRollMode(ctx, &GetRollModeInput{Actor: input.Actor})
		if err != nil {
			return nil, errors.Wrap(err, "failed to resolve roll mode")
		}
		mode = out.Mode
	}

	switch mode {
	case entities.RollModeManual:
		return o.evaluateManual(ctx, input, local)
	case entities.RollModeRemote:
		return o.evaluateRemote(ctx, input, local)
	default:
		return &EvaluateRollOutput{Result: local, Source: SourceLocal}, nil
	}
}

// evaluateManual prompts for physical dice. A cancelled prompt keeps
// the local result.
func (o *orchestrator) evaluateManual(ctx context.Context, input *EvaluateRollInput, local *dice.Roll) (*EvaluateRollOutput, error) {
	out, err := o.prompter.PromptManualRoll(ctx, &PromptManualRollInput{
		Actor:  input.Actor,
		Action: input.Action,
		Result: local,
	})
	if err != nil {
		return nil, errors.Wrap(err, "manual roll prompt failed")
	}
	if !out.Confirmed {
		slog.Debug("manual roll cancelled, keeping local result",
			"actor", input.Actor.Name,
			"action", input.Action,
		)
		return &EvaluateRollOutput{Result: local, Source: SourceLocal}, nil
	}

	dice.Substitute(local, out.Groups)
	return &EvaluateRollOutput{Result: local, Source: SourceManual}, nil
}

// evaluateRemote waits for a matching remote roll: a once-subscription
// goes up on the bridge, then any cached entry is consumed. Cancelling
// the context unsubscribes, clears the cache slot, and keeps the local
// result.
func (o *orchestrator) evaluateRemote(ctx context.Context, input *EvaluateRollInput, local *dice.Roll) (*EvaluateRollOutput, error) {
	remoteID := input.Actor.RemoteID
	if remoteID == "" {
		slog.Warn("actor has remote mode but no remote identity, keeping local result",
			"actor", input.Actor.Name,
		)
		return &EvaluateRollOutput{Result: local, Source: SourceLocal}, nil
	}

	// The subscription goes up before the cache check. A roll dispatched
	// between a cache miss and a later subscription would be offered to
	// nobody and sit in cache unseen until its TTL.
	matched := make(chan *platform.RollEvent, 1)
	subID, err := o.bridge.Subscribe(bridge.SubscribeInput{
		Once: true,
		Handler: func(event *platform.RollEvent) bool {
			if event.EntityID() != remoteID {
				return false
			}
			if !dice.SignatureMatches(local, dice.ExtractGroups(&event.Roll)) {
				return false
			}
			select {
			case matched <- event:
				return true
			default:
				return false
			}
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to subscribe for remote roll")
	}

	cached, err := o.bridge.TakeCachedRoll(ctx, remoteID, input.Action)
	switch {
	case err == nil:
		if groups := dice.ExtractGroups(&cached.Roll); dice.SignatureMatches(local, groups) {
			o.bridge.Unsubscribe(subID)
			dice.Substitute(local, groups)
			return &EvaluateRollOutput{Result: local, Source: SourceRemote}, nil
		}
		// Consumed a stale entry whose dice do not line up; fall back
		// to waiting for a fresh roll.
		slog.Warn("cached roll signature mismatch, waiting for a fresh roll",
			"entity_id", remoteID,
			"action", input.Action,
		)
	case !errors.IsNotFound(err):
		o.bridge.Unsubscribe(subID)
		return nil, errors.Wrap(err, "failed to check roll cache")
	}

	slog.Info("waiting for remote roll",
		"actor", input.Actor.Name,
		"entity_id", remoteID,
		"action", input.Action,
	)

	select {
	case event := <-matched:
		dice.Substitute(local, dice.ExtractGroups(&event.Roll))
		return &EvaluateRollOutput{Result: local, Source: SourceRemote}, nil

	case <-ctx.Done():
		o.bridge.Unsubscribe(subID)
		if err := o.bridge.ClearCachedRoll(context.WithoutCancel(ctx), remoteID, input.Action); err != nil {
			slog.Warn("failed to clear cached roll after cancellation", "error", err)
		}
		slog.Debug("remote wait cancelled, keeping local result",
			"actor", input.Actor.Name,
			"action", input.Action,
		)
		return &EvaluateRollOutput{Result: local, Source: SourceLocal}, nil
	}
}
