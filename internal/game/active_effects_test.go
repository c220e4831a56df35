package game

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundbreak/groundbreak-server-go/internal/game/events"
)

// TestAddActiveEffectValidations verifies the guard conditions for storing
// an effect.
func TestAddActiveEffectValidations(t *testing.T) {
	h := newEngineHarness(t, "Avery")

	err := h.engine.AddActiveEffect("Avery", nil, "L001", 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no effect to store")

	err = h.engine.AddActiveEffect("Avery", Log{Message: "x"}, "L001", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duration must be positive")

	err = h.engine.AddActiveEffect("Nobody", Log{Message: "x"}, "L001", 2)
	require.Error(t, err)
}

// TestAddActiveEffectStoresClone verifies the stored entry carries its own
// copy of the effect along with bookkeeping fields, and announces itself.
func TestAddActiveEffectStoresClone(t *testing.T) {
	h := newEngineHarness(t, "Avery")

	effect := ResourceChange{PlayerID: "Avery", Resource: ResourceMoney, Amount: 500}
	require.NoError(t, h.engine.AddActiveEffect("Avery", effect, "L005", 2))

	stored := h.player("Avery").ActiveEffects
	require.Len(t, stored, 1)
	assert.NotEmpty(t, stored[0].EffectID)
	assert.Equal(t, "L005", stored[0].SourceCardID)
	assert.Equal(t, 2, stored[0].RemainingDuration)
	assert.Equal(t, 1, stored[0].StartTurn)
	assert.Equal(t, EffectTypeResourceChange, stored[0].EffectType)
	assert.Equal(t, "MONEY +500", stored[0].Description)

	announced := h.events.ofType(events.EventEffectStored)
	require.Len(t, announced, 1)
	assert.Equal(t, 2, announced[0].Amount)
	assert.Equal(t, stored[0].EffectID, announced[0].Metadata["effect_id"])
}

// TestApplyActiveEffectsReExecutesAndDecrements verifies one sweep applies
// the stored effect and burns one turn of its duration.
func TestApplyActiveEffectsReExecutesAndDecrements(t *testing.T) {
	h := newEngineHarness(t, "Avery")
	effect := ResourceChange{PlayerID: "Avery", Resource: ResourceMoney, Amount: 500}
	require.NoError(t, h.engine.AddActiveEffect("Avery", effect, "L005", 2))

	res := h.engine.ApplyActiveEffects(context.Background(), "Avery")
	require.True(t, res.Success)
	assert.Equal(t, 1, res.TotalEffects)
	assert.Equal(t, 10500, h.player("Avery").Money)

	stored := h.player("Avery").ActiveEffects
	require.Len(t, stored, 1)
	assert.Equal(t, 1, stored[0].RemainingDuration)
	assert.Empty(t, h.events.ofType(events.EventEffectExpired))
}

// TestApplyActiveEffectsExpiresAtZero verifies the entry is removed once its
// duration runs out, with an expiry event.
func TestApplyActiveEffectsExpiresAtZero(t *testing.T) {
	h := newEngineHarness(t, "Avery")
	effect := ResourceChange{PlayerID: "Avery", Resource: ResourceMoney, Amount: 500}
	require.NoError(t, h.engine.AddActiveEffect("Avery", effect, "L005", 2))

	h.engine.ApplyActiveEffects(context.Background(), "Avery")
	h.engine.ApplyActiveEffects(context.Background(), "Avery")

	assert.Equal(t, 11000, h.player("Avery").Money)
	assert.Empty(t, h.player("Avery").ActiveEffects)

	expired := h.events.ofType(events.EventEffectExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, "L005", expired[0].SourceID)
	assert.NotEmpty(t, expired[0].Metadata["effect_id"])

	// A third sweep has nothing left to do.
	res := h.engine.ApplyActiveEffects(context.Background(), "Avery")
	require.True(t, res.Success)
	assert.Equal(t, 0, res.TotalEffects)
	assert.Equal(t, 11000, h.player("Avery").Money)
}

// TestApplyActiveEffectsKeepsFailedEntries verifies a failed re-execution
// leaves the entry untouched for the next round.
func TestApplyActiveEffectsKeepsFailedEntries(t *testing.T) {
	h := newEngineHarness(t, "Avery")
	h.ledger.failSpendFor["Avery"] = fmt.Errorf("insufficient funds: Avery has $10000, needs $50000")

	effect := ResourceChange{PlayerID: "Avery", Resource: ResourceMoney, Amount: -50000}
	require.NoError(t, h.engine.AddActiveEffect("Avery", effect, "L003", 2))

	res := h.engine.ApplyActiveEffects(context.Background(), "Avery")
	require.False(t, res.Success)

	stored := h.player("Avery").ActiveEffects
	require.Len(t, stored, 1)
	assert.Equal(t, 2, stored[0].RemainingDuration)
	assert.Empty(t, h.events.ofType(events.EventEffectExpired))
}

// TestApplyActiveEffectsEmptyIsNoOp verifies a player with nothing stored
// yields an empty successful batch.
func TestApplyActiveEffectsEmptyIsNoOp(t *testing.T) {
	h := newEngineHarness(t, "Avery")

	res := h.engine.ApplyActiveEffects(context.Background(), "Avery")
	require.True(t, res.Success)
	assert.Equal(t, 0, res.TotalEffects)
}

// TestProcessActiveEffectsForAllPlayersSweeps verifies the round sweep hits
// every player's stored effects in player order.
func TestProcessActiveEffectsForAllPlayersSweeps(t *testing.T) {
	h := newEngineHarness(t, "Avery", "Blake")
	require.NoError(t, h.engine.AddActiveEffect("Avery",
		ResourceChange{PlayerID: "Avery", Resource: ResourceMoney, Amount: 500}, "L005", 1))
	require.NoError(t, h.engine.AddActiveEffect("Blake",
		ResourceChange{PlayerID: "Blake", Resource: ResourceTime, Amount: -1}, "L006", 1))

	res := h.engine.ProcessActiveEffectsForAllPlayers(context.Background())
	require.True(t, res.Success)
	assert.Equal(t, 2, res.TotalEffects)
	assert.Equal(t, 10500, h.player("Avery").Money)
	assert.Equal(t, 1, h.player("Blake").TimeSpent)
	assert.Empty(t, h.player("Avery").ActiveEffects)
	assert.Empty(t, h.player("Blake").ActiveEffects)
	assert.Len(t, h.events.ofType(events.EventEffectExpired), 2)
}
