package engine

import (
	"context"
	"log/slog"

	"github.com/KirkDiggler/roll-sync/internal/dedup"
	"github.com/KirkDiggler/roll-sync/internal/errors"
	"github.com/KirkDiggler/roll-sync/internal/orchestrators/rollsync"
	"github.com/KirkDiggler/roll-sync/internal/platform"
)

// rollHandler routes dice/roll/fulfilled envelopes. Each roll in the
// envelope is deduplicated on its own fingerprint, offered to waiting
// UI flows first, and only then dispatched to the roll strategies.
type rollHandler struct {
	dedup  *dedup.Tracker
	bridge Offerer
	rolls  rollsync.Service
}

func (h *rollHandler) Matches(env *platform.Envelope) bool {
	return env.EventType == platform.EventRollFulfilled
}

func (h *rollHandler) Handle(ctx context.Context, env *platform.Envelope) error {
	events, err := platform.ParseRollFulfilled(env)
	if err != nil {
		return errors.Wrap(err, "failed to parse roll envelope")
	}

	for _, event := range events {
		fingerprint := event.Fingerprint()
		if h.dedup.IsProcessed(fingerprint) {
			slog.Debug("duplicate roll dropped", "fingerprint", fingerprint)
			continue
		}
		h.dedup.MarkProcessed(fingerprint)

		if h.bridge.Offer(ctx, event) {
			// A waiting flow claimed the roll; the strategies never
			// see it.
			continue
		}

		if _, err := h.rolls.HandleRoll(ctx, &rollsync.HandleRollInput{Event: event}); err != nil {
			return err
		}
	}
	return nil
}

// characterUpdateHandler applies character-sheet changes (current, max
// and temporary hit points) to the local game state.
type characterUpdateHandler struct {
	dedup     *dedup.Tracker
	gameState GameStateUpdater
}

func (h *characterUpdateHandler) Matches(env *platform.Envelope) bool {
	return platform.IsCharacterUpdate(env.EventType)
}

func (h *characterUpdateHandler) Handle(ctx context.Context, env *platform.Envelope) error {
	event, err := platform.ParseCharacterUpdate(env)
	if err != nil {
		return errors.Wrap(err, "failed to parse character update envelope")
	}

	fingerprint := event.Fingerprint()
	if h.dedup.IsProcessed(fingerprint) {
		slog.Debug("duplicate character update dropped", "fingerprint", fingerprint)
		return nil
	}
	h.dedup.MarkProcessed(fingerprint)

	if _, err := h.gameState.ApplyCharacterUpdate(ctx, &ApplyCharacterUpdateInput{Update: event}); err != nil {
		return errors.Wrap(err, "failed to apply character update")
	}
	return nil
}

// fallbackHandler is registered last and matches everything, so an
// envelope the transport let through but nobody routes is visible in
// the logs instead of silently vanishing.
type fallbackHandler struct{}

func (h *fallbackHandler) Matches(_ *platform.Envelope) bool { return true }

func (h *fallbackHandler) Handle(_ context.Context, env *platform.Envelope) error {
	slog.Warn("unroutable game log event", "event_type", env.EventType, "id", env.ID)
	return nil
}
