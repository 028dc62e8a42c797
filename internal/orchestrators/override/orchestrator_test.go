package override_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KirkDiggler/roll-sync/internal/bridge"
	"github.com/KirkDiggler/roll-sync/internal/dice"
	"github.com/KirkDiggler/roll-sync/internal/entities"
	"github.com/KirkDiggler/roll-sync/internal/errors"
	"github.com/KirkDiggler/roll-sync/internal/orchestrators/override"
	"github.com/KirkDiggler/roll-sync/internal/pkg/clock"
	"github.com/KirkDiggler/roll-sync/internal/pkg/idgen"
	"github.com/KirkDiggler/roll-sync/internal/platform"
	"github.com/KirkDiggler/roll-sync/internal/repositories/rollcache"
)

type fakeModes struct {
	mode  entities.RollMode
	calls int
}

func (f *fakeModes) GetRollMode(_ context.Context, _ *override.GetRollModeInput) (*override.GetRollModeOutput, error) {
	f.calls++
	return &override.GetRollModeOutput{Mode: f.mode}, nil
}

type fakePrompter struct {
	confirmed bool
	groups    []dice.DieGroup
	calls     int
}

func (f *fakePrompter) PromptManualRoll(_ context.Context, _ *override.PromptManualRollInput) (*override.PromptManualRollOutput, error) {
	f.calls++
	return &override.PromptManualRollOutput{Confirmed: f.confirmed, Groups: f.groups}, nil
}

type scriptedRoller struct {
	values []int
	next   int
}

func (r *scriptedRoller) Roll(_ int) (int, error) {
	v := r.values[r.next%len(r.values)]
	r.next++
	return v, nil
}

func (r *scriptedRoller) RollN(count, size int) ([]int, error) {
	out := make([]int, count)
	for i := range out {
		out[i], _ = r.Roll(size)
	}
	return out, nil
}

type fixture struct {
	svc      override.Service
	modes    *fakeModes
	prompter *fakePrompter
	bridge   *bridge.Bridge
}

func newFixture(t *testing.T, mode entities.RollMode) *fixture {
	t.Helper()

	cache, err := rollcache.NewInMemoryRepository(&rollcache.InMemoryConfig{
		Clock: clock.NewManual(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)

	b, err := bridge.New(&bridge.Config{
		Cache:       cache,
		IDGenerator: idgen.NewSequential("sub"),
	})
	require.NoError(t, err)

	f := &fixture{
		modes:    &fakeModes{mode: mode},
		prompter: &fakePrompter{},
		bridge:   b,
	}

	svc, err := override.NewOrchestrator(&override.Config{
		Modes:    f.modes,
		Prompter: f.prompter,
		Bridge:   f.bridge,
		Roller:   &scriptedRoller{values: []int{7}},
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func playerActor() *entities.Actor {
	return &entities.Actor{
		ID:       "local-1",
		Name:     "Thorin",
		Type:     entities.ActorTypePlayerCharacter,
		RemoteID: "42",
	}
}

func remoteD20(value int) *platform.RollEvent {
	return &platform.RollEvent{
		MessageID: "msg-1",
		Roll: platform.Roll{
			RollID: "roll-1",
			Action: "Wisdom",
			DiceNotation: platform.DiceNotation{
				Set: []platform.DieSet{{
					DieType: "d20",
					Count:   1,
					Dice:    []platform.Die{{DieValue: value}},
				}},
			},
			Context: platform.RollContext{EntityID: "42"},
		},
	}
}

func TestEvaluateRoll_NormalMode(t *testing.T) {
	f := newFixture(t, entities.RollModeNormal)

	out, err := f.svc.EvaluateRoll(context.Background(), &override.EvaluateRollInput{
		Actor:   playerActor(),
		Action:  "Wisdom",
		Formula: "1d20+3",
	})
	require.NoError(t, err)

	assert.Equal(t, override.SourceLocal, out.Source)
	assert.Equal(t, 10, out.Result.Total, "scripted 7 plus modifier")
	assert.Zero(t, f.prompter.calls)
}

func TestEvaluateRoll_NonPlayerAlwaysNormal(t *testing.T) {
	f := newFixture(t, entities.RollModeRemote)

	npc := &entities.Actor{ID: "npc-1", Name: "Goblin", Type: entities.ActorTypeNPC}
	out, err := f.svc.EvaluateRoll(context.Background(), &override.EvaluateRollInput{
		Actor:   npc,
		Action:  "Scimitar",
		Formula: "1d20+4",
	})
	require.NoError(t, err)

	assert.Equal(t, override.SourceLocal, out.Source)
	assert.Zero(t, f.modes.calls, "mode provider never consulted for non-player actors")
}

func TestEvaluateRoll_ManualConfirmed(t *testing.T) {
	f := newFixture(t, entities.RollModeManual)
	f.prompter.confirmed = true
	f.prompter.groups = []dice.DieGroup{{DieType: "d20", Count: 1, Results: []int{19}}}

	out, err := f.svc.EvaluateRoll(context.Background(), &override.EvaluateRollInput{
		Actor:   playerActor(),
		Action:  "Wisdom",
		Formula: "1d20+3",
	})
	require.NoError(t, err)

	assert.Equal(t, override.SourceManual, out.Source)
	assert.Equal(t, 22, out.Result.Total)
	assert.Equal(t, 1, f.prompter.calls)
}

func TestEvaluateRoll_ManualCancelledKeepsLocal(t *testing.T) {
	f := newFixture(t, entities.RollModeManual)
	f.prompter.confirmed = false

	out, err := f.svc.EvaluateRoll(context.Background(), &override.EvaluateRollInput{
		Actor:   playerActor(),
		Action:  "Wisdom",
		Formula: "1d20+3",
	})
	require.NoError(t, err)

	assert.Equal(t, override.SourceLocal, out.Source)
	assert.Equal(t, 10, out.Result.Total)
}

func TestEvaluateRoll_RemoteCacheHitSkipsSubscription(t *testing.T) {
	f := newFixture(t, entities.RollModeRemote)
	ctx := context.Background()

	require.NoError(t, f.bridge.CacheRoll(ctx, remoteD20(17)))

	out, err := f.svc.EvaluateRoll(ctx, &override.EvaluateRollInput{
		Actor:   playerActor(),
		Action:  "Wisdom",
		Formula: "1d20+3",
	})
	require.NoError(t, err)

	assert.Equal(t, override.SourceRemote, out.Source)
	assert.Equal(t, 20, out.Result.Total, "remote 17 plus modifier")
	assert.Zero(t, f.bridge.PendingSubscriptions(), "cache hit leaves no subscription behind")
}

// racingBridge offers a roll while the cache is being checked,
// recreating a roll that arrives between the two steps.
type racingBridge struct {
	inner *bridge.Bridge
	event *platform.RollEvent
}

func (b *racingBridge) Subscribe(input bridge.SubscribeInput) (string, error) {
	return b.inner.Subscribe(input)
}

func (b *racingBridge) Unsubscribe(id string) {
	b.inner.Unsubscribe(id)
}

func (b *racingBridge) TakeCachedRoll(ctx context.Context, entityID, action string) (*platform.RollEvent, error) {
	b.inner.Offer(ctx, b.event)
	return b.inner.TakeCachedRoll(ctx, entityID, action)
}

func (b *racingBridge) ClearCachedRoll(ctx context.Context, entityID, action string) error {
	return b.inner.ClearCachedRoll(ctx, entityID, action)
}

func TestEvaluateRoll_RemoteRollDuringCacheCheckIsClaimed(t *testing.T) {
	f := newFixture(t, entities.RollModeRemote)

	svc, err := override.NewOrchestrator(&override.Config{
		Modes:    f.modes,
		Prompter: f.prompter,
		Bridge:   &racingBridge{inner: f.bridge, event: remoteD20(17)},
		Roller:   &scriptedRoller{values: []int{7}},
	})
	require.NoError(t, err)

	// The roll lands mid-lookup; the already-pending subscription claims
	// it, so the flow resolves instead of waiting on an empty cache.
	out, err := svc.EvaluateRoll(context.Background(), &override.EvaluateRollInput{
		Actor:   playerActor(),
		Action:  "Wisdom",
		Formula: "1d20+3",
	})
	require.NoError(t, err)

	assert.Equal(t, override.SourceRemote, out.Source)
	assert.Equal(t, 20, out.Result.Total)
	assert.Zero(t, f.bridge.PendingSubscriptions())
}

func TestEvaluateRoll_RemoteWaitsForMatchingRoll(t *testing.T) {
	f := newFixture(t, entities.RollModeRemote)
	ctx := context.Background()

	type result struct {
		out *override.EvaluateRollOutput
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := f.svc.EvaluateRoll(ctx, &override.EvaluateRollInput{
			Actor:   playerActor(),
			Action:  "Wisdom",
			Formula: "1d20+3",
		})
		done <- result{out, err}
	}()

	require.Eventually(t, func() bool {
		return f.bridge.PendingSubscriptions() == 1
	}, 2*time.Second, 5*time.Millisecond)

	// A roll with the wrong dice is offered to, but not consumed by,
	// the waiting flow.
	mismatch := remoteD20(6)
	mismatch.Roll.DiceNotation.Set[0].DieType = "d12"
	assert.False(t, f.bridge.Offer(ctx, mismatch))
	assert.Equal(t, 1, f.bridge.PendingSubscriptions())

	assert.True(t, f.bridge.Offer(ctx, remoteD20(17)))

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, override.SourceRemote, res.out.Source)
	assert.Equal(t, 20, res.out.Result.Total)
	assert.Zero(t, f.bridge.PendingSubscriptions())
}

func TestEvaluateRoll_RemoteCancelledKeepsLocal(t *testing.T) {
	f := newFixture(t, entities.RollModeRemote)
	ctx, cancel := context.WithCancel(context.Background())

	type result struct {
		out *override.EvaluateRollOutput
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := f.svc.EvaluateRoll(ctx, &override.EvaluateRollInput{
			Actor:   playerActor(),
			Action:  "Wisdom",
			Formula: "1d20+3",
		})
		done <- result{out, err}
	}()

	require.Eventually(t, func() bool {
		return f.bridge.PendingSubscriptions() == 1
	}, 2*time.Second, 5*time.Millisecond)

	cancel()

	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, override.SourceLocal, res.out.Source)
	assert.Equal(t, 10, res.out.Result.Total)
	assert.Zero(t, f.bridge.PendingSubscriptions(), "cancellation unsubscribes deterministically")

	has, err := f.bridge.HasCachedRoll(context.Background(), "42", "Wisdom")
	require.NoError(t, err)
	assert.False(t, has, "cancellation clears the cache slot")
}

func TestEvaluateRoll_Validation(t *testing.T) {
	f := newFixture(t, entities.RollModeNormal)
	ctx := context.Background()

	_, err := f.svc.EvaluateRoll(ctx, nil)
	assert.True(t, errors.IsInvalidArgument(err))

	_, err = f.svc.EvaluateRoll(ctx, &override.EvaluateRollInput{Actor: playerActor()})
	assert.True(t, errors.IsInvalidArgument(err))
}

func TestConfig_Validate(t *testing.T) {
	_, err := override.NewOrchestrator(&override.Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Modes")
	assert.Contains(t, err.Error(), "Prompter")
	assert.Contains(t, err.Error(), "Bridge")
}
