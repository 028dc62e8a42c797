package engine

import (
	"context"

	"github.com/KirkDiggler/roll-sync/internal/platform"
	"github.com/KirkDiggler/roll-sync/internal/transport"
)

//go:generate mockgen -destination=mock/mock_collaborators.go -package=enginemock github.com/KirkDiggler/roll-sync/internal/engine Transport,Offerer,GameStateUpdater,Notifier

// Transport is the slice of the transport client the engine consumes
type Transport interface {
	Events() <-chan transport.Event
}

// Offerer presents roll events to waiting UI flows before strategy
// dispatch. Satisfied by the bridge.
type Offerer interface {
	Offer(ctx context.Context, event *platform.RollEvent) bool
}

// GameStateUpdater applies remote character-sheet changes to the local
// game state.
type GameStateUpdater interface {
	ApplyCharacterUpdate(ctx context.Context, input *ApplyCharacterUpdateInput) (*ApplyCharacterUpdateOutput, error)
}

// ApplyCharacterUpdateInput carries one deduplicated sheet update
type ApplyCharacterUpdateInput struct {
	Update *platform.CharacterUpdateEvent
}

// ApplyCharacterUpdateOutput is empty; present for interface evolution
type ApplyCharacterUpdateOutput struct{}

// Notifier surfaces connection lifecycle changes to the UI. Calls run
// on the engine loop and must not block.
type Notifier interface {
	NotifyConnected()
	NotifyDisconnected(terminal bool, err error)
	NotifyCredentialExpired()
}

type noopNotifier struct{}

func (noopNotifier) NotifyConnected()               {}
func (noopNotifier) NotifyDisconnected(bool, error) {}
func (noopNotifier) NotifyCredentialExpired()       {}
