package platform

import (
	"encoding/json"
	"fmt"

	"github.com/KirkDiggler/roll-sync/internal/errors"
)

// CharacterUpdateData is the payload of a character-sheet update
// envelope. Pointer fields distinguish "absent" from zero: the platform
// only sends the fields that changed.
type CharacterUpdateData struct {
	CharacterID        string `json:"characterId"`
	RemovedHitPoints   *int   `json:"removedHitPoints,omitempty"`
	TemporaryHitPoints *int   `json:"temporaryHitPoints,omitempty"`
	MaxHitPoints       *int   `json:"maxHitPoints,omitempty"`
}

// CharacterUpdateEvent is a normalized character-sheet update.
type CharacterUpdateEvent struct {
	MessageID string
	EventType string
	Update    CharacterUpdateData
}

// EntityID returns the remote character identifier for the update
func (e *CharacterUpdateEvent) EntityID() string {
	return e.Update.CharacterID
}

// Fingerprint derives the dedup key: (entityId, eventType, messageId).
func (e *CharacterUpdateEvent) Fingerprint() string {
	return fmt.Sprintf("%s:%s:%s", e.Update.CharacterID, e.EventType, e.MessageID)
}

// IsCharacterUpdate reports whether the event type is one of the
// character-sheet update variants.
func IsCharacterUpdate(eventType string) bool {
	return eventType == EventCharacterUpdate || eventType == EventCharacterUpdateFulfilled
}

// ParseCharacterUpdate decodes a character-sheet update envelope.
func ParseCharacterUpdate(env *Envelope) (*CharacterUpdateEvent, error) {
	if !IsCharacterUpdate(env.EventType) {
		return nil, errors.InvalidArgumentf("not a character update event: %s", env.EventType)
	}

	var data CharacterUpdateData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, errors.Wrap(err, "failed to decode character update payload")
	}

	return &CharacterUpdateEvent{
		MessageID: env.ID,
		EventType: env.EventType,
		Update:    data,
	}, nil
}
