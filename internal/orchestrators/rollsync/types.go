package rollsync

import (
	"context"

	"github.com/KirkDiggler/roll-sync/internal/dice"
	"github.com/KirkDiggler/roll-sync/internal/entities"
	"github.com/KirkDiggler/roll-sync/internal/platform"
)

//go:generate mockgen -destination=mock/mock_collaborators.go -package=rollsyncmock github.com/KirkDiggler/roll-sync/internal/orchestrators/rollsync Resolver,Poster,InitiativeSetter,RollCacher

// Resolver maps remote character identifiers to local actors. A miss
// returns NotFound; rolls for unresolved actors are skipped, not failed.
type Resolver interface {
	GetLocalActor(ctx context.Context, input *GetLocalActorInput) (*GetLocalActorOutput, error)
}

// GetLocalActorInput identifies a remote character
type GetLocalActorInput struct {
	RemoteID string
}

// GetLocalActorOutput carries the resolved local actor
type GetLocalActorOutput struct {
	Actor *entities.Actor
}

// Poster delivers an evaluated roll result to the local app
type Poster interface {
	PostRoll(ctx context.Context, input *PostRollInput) (*PostRollOutput, error)
}

// PostRollInput carries one evaluated roll ready for display
type PostRollInput struct {
	Actor    *entities.Actor
	Event    *platform.RollEvent
	Result   *dice.Roll
	RollType string
}

// PostRollOutput is empty; present for interface evolution
type PostRollOutput struct{}

// InitiativeSetter applies an initiative total to the local turn order
type InitiativeSetter interface {
	SetInitiative(ctx context.Context, input *SetInitiativeInput) (*SetInitiativeOutput, error)
}

// SetInitiativeInput carries the actor and their rolled total
type SetInitiativeInput struct {
	Actor *entities.Actor
	Total int
}

// SetInitiativeOutput is empty; present for interface evolution
type SetInitiativeOutput struct{}

// RollCacher stores raw roll events for UI flows that have not started
// waiting yet. Satisfied by the bridge.
type RollCacher interface {
	CacheRoll(ctx context.Context, event *platform.RollEvent) error
}

// HandleRollInput carries one deduplicated remote roll event
type HandleRollInput struct {
	Event *platform.RollEvent
}

// HandleRollOutput reports how the roll was routed
type HandleRollOutput struct {
	// Strategy names the strategy that handled the roll
	Strategy string

	// Skipped is set when the roll was dropped without running a
	// strategy (re-entrant delivery, or no local actor)
	Skipped bool
}
