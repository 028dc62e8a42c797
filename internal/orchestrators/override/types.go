package override

import (
	"context"

	"github.com/KirkDiggler/roll-sync/internal/bridge"
	"github.com/KirkDiggler/roll-sync/internal/dice"
	"github.com/KirkDiggler/roll-sync/internal/entities"
	"github.com/KirkDiggler/roll-sync/internal/platform"
)

//go:generate mockgen -destination=mock/mock_collaborators.go -package=overridemock github.com/KirkDiggler/roll-sync/internal/orchestrators/override ModeProvider,Prompter,RollBridge

// Source reports where the final die values came from
type Source string

// Evaluation sources
const (
	// SourceLocal is the plain local evaluation
	SourceLocal Source = "local"

	// SourceManual means the user typed the die values in
	SourceManual Source = "manual"

	// SourceRemote means a remote roll supplied the die values
	SourceRemote Source = "remote"
)

// ModeProvider reports the evaluation mode configured for an actor
type ModeProvider interface {
	GetRollMode(ctx context.Context, input *GetRollModeInput) (*GetRollModeOutput, error)
}

// GetRollModeInput identifies the actor being evaluated
type GetRollModeInput struct {
	Actor *entities.Actor
}

// GetRollModeOutput carries the actor's configured mode
type GetRollModeOutput struct {
	Mode entities.RollMode
}

// Prompter asks the user to enter physical die values for a roll that
// was already evaluated locally. Cancelling keeps the local result.
type Prompter interface {
	PromptManualRoll(ctx context.Context, input *PromptManualRollInput) (*PromptManualRollOutput, error)
}

// PromptManualRollInput shows the user what is being rolled and the
// local result they may override.
type PromptManualRollInput struct {
	Actor  *entities.Actor
	Action string
	Result *dice.Roll
}

// PromptManualRollOutput carries the user's entry. Groups follow the
// result's term order; missing or extra dice are tolerated downstream.
type PromptManualRollOutput struct {
	Confirmed bool
	Groups    []dice.DieGroup
}

// RollBridge is the slice of the bridge the override path needs:
// cache-first lookup, then a once-subscription while waiting.
type RollBridge interface {
	Subscribe(input bridge.SubscribeInput) (string, error)
	Unsubscribe(id string)
	TakeCachedRoll(ctx context.Context, entityID, action string) (*platform.RollEvent, error)
	ClearCachedRoll(ctx context.Context, entityID, action string) error
}

// EvaluateRollInput describes one roll the local app wants evaluated
type EvaluateRollInput struct {
	Actor   *entities.Actor
	Action  string
	Formula string
}

// EvaluateRollOutput carries the evaluated roll and where its die
// values came from.
type EvaluateRollOutput struct {
	Result *dice.Roll
	Source Source
}
