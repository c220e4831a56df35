package game

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGroupTargetedFansOutToAllPlayers verifies the template is retargeted
// and applied once per resolved player.
func TestGroupTargetedFansOutToAllPlayers(t *testing.T) {
	h := newEngineHarness(t, "Avery", "Blake", "Casey")

	res := h.engine.ProcessEffects(context.Background(), []Effect{
		EffectGroupTargeted{
			TargetRule: "All Players",
			Template:   ResourceChange{Resource: ResourceMoney, Amount: 1000},
		},
	}, EffectContext{Source: "test", PlayerID: "Avery"})

	require.True(t, res.Success)
	assert.Equal(t, []string{"Avery", "Blake", "Casey"}, res.Results[0].Data["targets"])
	assert.Equal(t, 3, res.Results[0].Data["processed"])
	for _, id := range []string{"Avery", "Blake", "Casey"} {
		assert.Equal(t, 11000, h.player(id).Money)
	}
}

// TestGroupTargetedReportsPartialFailure verifies a failure for one target
// fails the group with a count of what went wrong.
func TestGroupTargetedReportsPartialFailure(t *testing.T) {
	h := newEngineHarness(t, "Avery", "Blake", "Casey")
	h.ledger.failSpendFor["Blake"] = fmt.Errorf("insufficient funds: Blake has $10000, needs $10500")

	res := h.engine.ProcessEffects(context.Background(), []Effect{
		EffectGroupTargeted{
			TargetRule: "ALL_PLAYERS",
			Template:   ResourceChange{Resource: ResourceMoney, Amount: -500},
		},
	}, EffectContext{Source: "test", PlayerID: "Avery"})

	require.False(t, res.Success)
	assert.Equal(t, "1 of 3 targeted effects failed", res.Results[0].Error)
	assert.Equal(t, 9500, h.player("Avery").Money)
	assert.Equal(t, 10000, h.player("Blake").Money)
}

// TestGroupTargetedOpponentChoicePrompts verifies the interactive rule asks
// the source player and hits only the chosen opponent.
func TestGroupTargetedOpponentChoicePrompts(t *testing.T) {
	h := newEngineHarness(t, "Avery", "Blake", "Casey")
	h.prompts.answers = []string{"Casey"}

	res := h.engine.ProcessEffects(context.Background(), []Effect{
		EffectGroupTargeted{
			TargetRule: "Choose Opponent",
			Template:   ResourceChange{Resource: ResourceMoney, Amount: -500, SourceType: "penalty"},
		},
	}, EffectContext{Source: "test", PlayerID: "Avery"})

	require.True(t, res.Success)
	assert.Equal(t, 1, h.prompts.calls)
	assert.Equal(t, []string{"Casey"}, res.Results[0].Data["targets"])
	assert.Equal(t, 10000, h.player("Blake").Money)
	assert.Equal(t, 9500, h.player("Casey").Money)
}

// TestGroupTargetedSingleOpponentAutoSelects verifies a two-player game
// resolves the opponent choice without prompting.
func TestGroupTargetedSingleOpponentAutoSelects(t *testing.T) {
	h := newEngineHarness(t, "Avery", "Blake")

	res := h.engine.ProcessEffects(context.Background(), []Effect{
		EffectGroupTargeted{
			TargetRule: "Choose Opponent",
			Template:   ResourceChange{Resource: ResourceMoney, Amount: -500, SourceType: "penalty"},
		},
	}, EffectContext{Source: "test", PlayerID: "Avery"})

	require.True(t, res.Success)
	assert.Equal(t, 0, h.prompts.calls)
	assert.Equal(t, []string{"Blake"}, res.Results[0].Data["targets"])
	assert.Equal(t, 9500, h.player("Blake").Money)
}

// TestGroupTargetedNoOpponentsIsVacuous verifies a solo game resolves other
// players to nothing and succeeds.
func TestGroupTargetedNoOpponentsIsVacuous(t *testing.T) {
	h := newEngineHarness(t, "Avery")

	res := h.engine.ProcessEffects(context.Background(), []Effect{
		EffectGroupTargeted{
			TargetRule: "All Players-Self",
			Template:   ResourceChange{Resource: ResourceMoney, Amount: -500},
		},
	}, EffectContext{Source: "test", PlayerID: "Avery"})

	require.True(t, res.Success)
	assert.Equal(t, []string{}, res.Results[0].Data["targets"])
	assert.Equal(t, 10000, h.player("Avery").Money)
}

// TestProcessEffectsWithTargetingDefaultsToSelf verifies an empty rule
// applies the batch to the source player only.
func TestProcessEffectsWithTargetingDefaultsToSelf(t *testing.T) {
	h := newEngineHarness(t, "Avery", "Blake")

	res := h.engine.ProcessEffectsWithTargeting(context.Background(), []Effect{
		ResourceChange{Resource: ResourceMoney, Amount: 1000},
	}, EffectContext{Source: "card:E-1", PlayerID: "Avery"}, "")

	require.True(t, res.Success)
	assert.Equal(t, 1, res.TotalEffects)
	assert.Equal(t, 11000, h.player("Avery").Money)
	assert.Equal(t, 10000, h.player("Blake").Money)
}

// TestProcessEffectsWithTargetingRetargetsPerPlayer verifies the payload's
// own player id is overridden per resolved target.
func TestProcessEffectsWithTargetingRetargetsPerPlayer(t *testing.T) {
	h := newEngineHarness(t, "Avery", "Blake", "Casey")

	res := h.engine.ProcessEffectsWithTargeting(context.Background(), []Effect{
		ResourceChange{PlayerID: "Avery", Resource: ResourceMoney, Amount: 1000},
	}, EffectContext{Source: "card:L-2", PlayerID: "Avery"}, "ALL_PLAYERS")

	require.True(t, res.Success)
	assert.Equal(t, 3, res.TotalEffects)
	for _, id := range []string{"Avery", "Blake", "Casey"} {
		assert.Equal(t, 11000, h.player(id).Money)
	}
}

// TestProcessEffectsWithTargetingResolutionError verifies a resolver error
// fails every effect in the batch.
func TestProcessEffectsWithTargetingResolutionError(t *testing.T) {
	h := newEngineHarness(t, "Avery", "Blake", "Casey")
	h.prompts.err = fmt.Errorf("prompt handler offline")

	res := h.engine.ProcessEffectsWithTargeting(context.Background(), []Effect{
		ResourceChange{Resource: ResourceMoney, Amount: -500},
		ResourceChange{Resource: ResourceTime, Amount: -1},
	}, EffectContext{Source: "test", PlayerID: "Avery"}, "OTHER_PLAYER_CHOICE")

	require.False(t, res.Success)
	assert.Equal(t, 2, res.FailedEffects)
	for _, r := range res.Results {
		assert.Contains(t, r.Error, "Target resolution failed")
	}
}

// TestProcessEffectsWithTargetingNoTargets verifies resolving to nobody
// yields an empty successful batch.
func TestProcessEffectsWithTargetingNoTargets(t *testing.T) {
	h := newEngineHarness(t, "Avery")

	res := h.engine.ProcessEffectsWithTargeting(context.Background(), []Effect{
		ResourceChange{Resource: ResourceMoney, Amount: -500},
	}, EffectContext{Source: "test", PlayerID: "Avery"}, "ALL_OTHER_PLAYERS")

	require.True(t, res.Success)
	assert.Equal(t, 0, res.TotalEffects)
}

// TestProcessCardEffectsStoresDurational verifies a multi-turn card stores
// its effects instead of executing them.
func TestProcessCardEffectsStoresDurational(t *testing.T) {
	h := newEngineHarness(t, "Avery")
	meta := &CardMetadata{
		CardID:        "L005",
		CardName:      "Retainer",
		Duration:      DurationTurns,
		DurationCount: 2,
	}

	res := h.engine.ProcessCardEffects(context.Background(), []Effect{
		ResourceChange{Resource: ResourceMoney, Amount: 500},
	}, EffectContext{Source: "card:L005", PlayerID: "Avery"}, meta)

	require.True(t, res.Success)
	require.Len(t, res.Results, 1)
	assert.Equal(t, EffectTypeDurationStored, res.Results[0].EffectType)
	assert.Equal(t, "L005", res.Results[0].Data["sourceCardId"])
	assert.Equal(t, "Avery", res.Results[0].Data["playerId"])

	// Stored, not executed.
	assert.Equal(t, 10000, h.player("Avery").Money)
	stored := h.player("Avery").ActiveEffects
	require.Len(t, stored, 1)
	assert.Equal(t, 2, stored[0].RemainingDuration)
	assert.Equal(t, "L005", stored[0].SourceCardID)
}

// TestProcessCardEffectsTargetsImmediate verifies an immediate card fans out
// per its target rule and executes now.
func TestProcessCardEffectsTargetsImmediate(t *testing.T) {
	h := newEngineHarness(t, "Avery", "Blake")
	meta := &CardMetadata{CardID: "E002", Target: "All Players-Self"}

	res := h.engine.ProcessCardEffects(context.Background(), []Effect{
		ResourceChange{Resource: ResourceMoney, Amount: 500},
	}, EffectContext{Source: "card:E002", PlayerID: "Avery"}, meta)

	require.True(t, res.Success)
	assert.Equal(t, 10000, h.player("Avery").Money)
	assert.Equal(t, 10500, h.player("Blake").Money)
}

// TestProcessEffectsWithDurationImmediateRuns verifies non-durational
// metadata runs the batch in place without any fan-out.
func TestProcessEffectsWithDurationImmediateRuns(t *testing.T) {
	h := newEngineHarness(t, "Avery", "Blake")

	res := h.engine.ProcessEffectsWithDuration(context.Background(), []Effect{
		ResourceChange{PlayerID: "Avery", Resource: ResourceMoney, Amount: 500},
	}, EffectContext{Source: "card:E001", PlayerID: "Avery"}, &CardMetadata{CardID: "E001", Duration: DurationImmediate})

	require.True(t, res.Success)
	assert.Equal(t, 10500, h.player("Avery").Money)
	assert.Empty(t, h.player("Avery").ActiveEffects)
}
