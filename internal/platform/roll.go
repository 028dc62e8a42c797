package platform

import (
	"encoding/json"
	"fmt"

	"github.com/KirkDiggler/roll-sync/internal/errors"
)

// Roll kinds. The remote platform reports advantage/disadvantage as a
// property of the whole roll, not of individual die sets.
const (
	RollKindNormal       = ""
	RollKindAdvantage    = "advantage"
	RollKindDisadvantage = "disadvantage"
)

// Roll types as labeled by the remote platform.
const (
	RollTypeToHit      = "to hit"
	RollTypeCheck      = "check"
	RollTypeSave       = "save"
	RollTypeDamage     = "damage"
	RollTypeInitiative = "initiative"
	RollTypeRoll       = "roll"
)

// RollFulfilledData is the payload of a dice/roll/fulfilled envelope.
// One envelope may carry several rolls (e.g. attack plus damage).
type RollFulfilledData struct {
	Rolls []Roll `json:"rolls"`
}

// Roll is one remote roll as delivered on the wire.
type Roll struct {
	RollID       string       `json:"rollId"`
	RollKind     string       `json:"rollKind"`
	RollType     string       `json:"rollType"`
	Action       string       `json:"action"`
	DiceNotation DiceNotation `json:"diceNotation"`
	Context      RollContext  `json:"context"`
}

// RollContext identifies the remote character the roll belongs to.
type RollContext struct {
	EntityID   string `json:"entityId"`
	EntityType string `json:"entityType,omitempty"`
}

// DiceNotation is the remote platform's structured roll description.
type DiceNotation struct {
	Set      []DieSet `json:"set"`
	Constant int      `json:"constant"`
}

// DieSet is one group of same-typed dice with their delivered values.
type DieSet struct {
	DieType string `json:"dieType"`
	Count   int    `json:"count"`
	Dice    []Die  `json:"dice"`
}

// Die is a single physical die outcome.
type Die struct {
	DieType  string `json:"dieType,omitempty"`
	DieValue int    `json:"dieValue"`
}

// RollEvent is one inbound remote roll notification, normalized from the
// envelope it arrived in. Immutable once received.
type RollEvent struct {
	MessageID string
	UserID    string
	Roll      Roll
}

// EntityID returns the remote character identifier for the roll
func (e *RollEvent) EntityID() string {
	return e.Roll.Context.EntityID
}

// Action returns the roll's action label (ability, item or spell name)
func (e *RollEvent) Action() string {
	return e.Roll.Action
}

// Fingerprint derives the dedup key for the roll. Rolls key on
// (entityId, action, rollId) so re-deliveries with fresh message IDs
// still collapse.
func (e *RollEvent) Fingerprint() string {
	return fmt.Sprintf("%s:%s:%s", e.EntityID(), e.Roll.Action, e.Roll.RollID)
}

// GuardKey identifies the roll for re-entrancy protection while a
// handler is mid-flight. Same composition as the fingerprint, kept
// separate because the two windows have different lifetimes.
func (e *RollEvent) GuardKey() string {
	return fmt.Sprintf("%s:%s:%s", e.EntityID(), e.Roll.Action, e.Roll.RollID)
}

// ParseRollFulfilled decodes a dice/roll/fulfilled envelope into one
// RollEvent per delivered roll.
func ParseRollFulfilled(env *Envelope) ([]*RollEvent, error) {
	if env.EventType != EventRollFulfilled {
		return nil, errors.InvalidArgumentf("not a roll event: %s", env.EventType)
	}

	var data RollFulfilledData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, errors.Wrap(err, "failed to decode roll payload")
	}

	events := make([]*RollEvent, 0, len(data.Rolls))
	for _, roll := range data.Rolls {
		events = append(events, &RollEvent{
			MessageID: env.ID,
			UserID:    env.UserID,
			Roll:      roll,
		})
	}
	return events, nil
}
