package platform_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KirkDiggler/roll-sync/internal/platform"
)

const rollFulfilledJSON = `{
	"id": "msg-001",
	"eventType": "dice/roll/fulfilled",
	"gameId": "game-7",
	"userId": "user-9",
	"data": {
		"rolls": [
			{
				"rollId": "roll-abc",
				"rollKind": "advantage",
				"rollType": "to hit",
				"action": "Longsword",
				"diceNotation": {
					"set": [
						{
							"dieType": "d20",
							"count": 1,
							"dice": [{"dieValue": 14}, {"dieValue": 3}]
						}
					],
					"constant": 5
				},
				"context": {"entityId": "42"}
			}
		]
	}
}`

func TestParseRollFulfilled(t *testing.T) {
	var env platform.Envelope
	require.NoError(t, json.Unmarshal([]byte(rollFulfilledJSON), &env))

	events, err := platform.ParseRollFulfilled(&env)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.Equal(t, "42", ev.EntityID())
	assert.Equal(t, "Longsword", ev.Action())
	assert.Equal(t, platform.RollKindAdvantage, ev.Roll.RollKind)
	assert.Equal(t, 5, ev.Roll.DiceNotation.Constant)

	// Advantage delivers two d20 values even though nominal count is 1.
	require.Len(t, ev.Roll.DiceNotation.Set, 1)
	assert.Equal(t, 1, ev.Roll.DiceNotation.Set[0].Count)
	require.Len(t, ev.Roll.DiceNotation.Set[0].Dice, 2)
	assert.Equal(t, 14, ev.Roll.DiceNotation.Set[0].Dice[0].DieValue)

	assert.Equal(t, "42:Longsword:roll-abc", ev.Fingerprint())
}

func TestParseRollFulfilled_WrongEventType(t *testing.T) {
	env := &platform.Envelope{EventType: platform.EventCharacterUpdate}

	_, err := platform.ParseRollFulfilled(env)
	assert.Error(t, err)
}

func TestParseCharacterUpdate(t *testing.T) {
	payload := `{"characterId": "42", "removedHitPoints": 7, "temporaryHitPoints": 0}`
	env := &platform.Envelope{
		ID:        "msg-002",
		EventType: platform.EventCharacterUpdateFulfilled,
		Data:      json.RawMessage(payload),
	}

	ev, err := platform.ParseCharacterUpdate(env)
	require.NoError(t, err)

	assert.Equal(t, "42", ev.EntityID())
	require.NotNil(t, ev.Update.RemovedHitPoints)
	assert.Equal(t, 7, *ev.Update.RemovedHitPoints)
	require.NotNil(t, ev.Update.TemporaryHitPoints)
	assert.Equal(t, 0, *ev.Update.TemporaryHitPoints)
	assert.Nil(t, ev.Update.MaxHitPoints, "absent field stays nil")
	assert.Equal(t, "42:character-sheet/character-update/fulfilled:msg-002", ev.Fingerprint())
}

func TestOutboundMessages(t *testing.T) {
	auth, err := json.Marshal(platform.NewAuthenticate("tok", "camp-1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"authenticate","data":{"token":"tok","campaignId":"camp-1"}}`, string(auth))

	sub, err := json.Marshal(platform.NewSubscribe(platform.EventRollFulfilled, "camp-1"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"subscribe","data":{"event":"dice/roll/fulfilled","campaignId":"camp-1"}}`, string(sub))
}
