// Package entities defines the local-side domain types the sync engine
// works with: actors and their dice-sourcing modes.
package entities

import "github.com/KirkDiggler/rpg-toolkit/core"

// Actor types
const (
	ActorTypePlayerCharacter = "player_character"
	ActorTypeNPC             = "npc"
)

// RollMode selects where an actor's die results come from during roll
// evaluation.
type RollMode string

// Roll modes
const (
	// RollModeNormal evaluates rolls locally with no interception
	RollModeNormal RollMode = "normal"

	// RollModeManual prompts the user to type in physically rolled dice
	RollModeManual RollMode = "manual"

	// RollModeRemote waits for dice delivered by the remote platform
	RollModeRemote RollMode = "remote"
)

// Actor is a local game entity that rolls dice. RemoteID is the remote
// platform's character identifier it is mapped to, empty if unmapped.
type Actor struct {
	ID       string
	Name     string
	Type     string
	RemoteID string
}

// GetID returns the actor's local ID
func (a *Actor) GetID() string {
	return a.ID
}

// GetType returns the entity type for rpg-toolkit
func (a *Actor) GetType() string {
	return a.Type
}

// IsPlayerCharacter reports whether roll interception applies to this
// actor. Everything else always evaluates normally.
func (a *Actor) IsPlayerCharacter() bool {
	return a.Type == ActorTypePlayerCharacter
}

// Compile-time check that Actor implements core.Entity
var _ core.Entity = (*Actor)(nil)
