package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestState builds a populated game state exercising every serialized
// field: loans, hands, visit counts, active cards and stored effects.
func createTestState() *GameState {
	return &GameState{
		GameID:      "game-123",
		PlayerOrder: []string{"Avery", "Blake"},
		Players: map[string]*Player{
			"Avery": {
				ID:           "Avery",
				Name:         "Avery",
				CurrentSpace: "ARCH-INITIATION",
				VisitCounts:  map[string]int{"START-QUICK-PLAY-GUIDE": 1, "ARCH-INITIATION": 2},
				Money:        48000,
				TimeSpent:    6,
				DesignFeesPaid: 2500,
				Loans: []Loan{
					{ID: "loan-1", Amount: 100000, Rate: 5, StartTurn: 2},
				},
				Hand: map[CardType][]string{
					CardTypeWork:      {"W001", "W003"},
					CardTypeExpeditor: {"E002"},
				},
				ActiveCards: []ActiveCard{{CardID: "E004", ExpirationTurn: 5}},
				ActiveEffects: []ActiveEffect{{
					EffectID:          "ae-1",
					SourceCardID:      "L005",
					EffectData:        ResourceChange{PlayerID: "Avery", Resource: ResourceMoney, Amount: 500},
					RemainingDuration: 2,
					StartTurn:         3,
					EffectType:        EffectTypeResourceChange,
					Description:       "MONEY +500",
				}},
				TurnModifiers: TurnModifiers{SkipTurns: 1, CanReRoll: true},
			},
			"Blake": {
				ID:           "Blake",
				Name:         "Blake",
				CurrentSpace: "OWNER-FUND-INITIATION",
				VisitCounts:  map[string]int{"START-QUICK-PLAY-GUIDE": 1, "OWNER-FUND-INITIATION": 1},
				Money:        52000,
				Hand:         map[CardType][]string{CardTypeBank: {"B001"}},
			},
		},
		CurrentPlayer: "Blake",
		Turn:          4,
		PendingChoice: &PendingChoice{ChoiceID: "c-9", PlayerID: "Blake", Kind: "GENERAL"},
	}
}

// TestComputeChecksum verifies the checksum carries a hash, timestamp and
// version.
func TestComputeChecksum(t *testing.T) {
	gs := createTestState()

	checksum, err := gs.ComputeChecksum()
	require.NoError(t, err)
	assert.NotEmpty(t, checksum.Hash)
	assert.Len(t, checksum.Hash, 64)
	assert.NotEmpty(t, checksum.Timestamp)
	assert.Equal(t, 1, checksum.Version)
}

// TestChecksumIsDeterministic verifies repeated computation over the same
// state yields the same hash despite map iteration order.
func TestChecksumIsDeterministic(t *testing.T) {
	gs := createTestState()

	first, err := gs.ComputeChecksum()
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := gs.ComputeChecksum()
		require.NoError(t, err)
		assert.Equal(t, first.Hash, again.Hash)
	}
}

// TestChecksumDetectsChanges verifies state mutations change the hash.
func TestChecksumDetectsChanges(t *testing.T) {
	base, err := createTestState().ComputeChecksum()
	require.NoError(t, err)

	mutations := map[string]func(*GameState){
		"turn":        func(gs *GameState) { gs.Turn = 99 },
		"money":       func(gs *GameState) { gs.Players["Avery"].Money = 1 },
		"hand":        func(gs *GameState) { gs.Players["Avery"].Hand[CardTypeWork] = []string{"W005"} },
		"skip turns":  func(gs *GameState) { gs.Players["Blake"].TurnModifiers.SkipTurns = 2 },
		"visit count": func(gs *GameState) { gs.Players["Avery"].VisitCounts["ARCH-INITIATION"] = 3 },
		"end state":   func(gs *GameState) { gs.Ended = true; gs.WinnerID = "Avery" },
	}

	for name, mutate := range mutations {
		gs := createTestState()
		mutate(gs)
		checksum, err := gs.ComputeChecksum()
		require.NoError(t, err)
		assert.NotEqual(t, base.Hash, checksum.Hash, "mutation %q should change the hash", name)
	}
}

// TestVerifyChecksum verifies matching and mismatching states are told
// apart.
func TestVerifyChecksum(t *testing.T) {
	gs := createTestState()
	checksum, err := gs.ComputeChecksum()
	require.NoError(t, err)

	ok, err := gs.VerifyChecksum(checksum)
	require.NoError(t, err)
	assert.True(t, ok)

	gs.Players["Avery"].Money = 0
	ok, err = gs.VerifyChecksum(checksum)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestSerializeRoundtrip verifies a state survives encode and decode with
// its checksum and fields intact.
func TestSerializeRoundtrip(t *testing.T) {
	gs := createTestState()

	data, err := gs.SerializeToBytes()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	decoded, err := DeserializeFromBytes(data)
	require.NoError(t, err)

	assert.Equal(t, gs.GameID, decoded.GameID)
	assert.Equal(t, gs.Turn, decoded.Turn)
	assert.Equal(t, gs.CurrentPlayer, decoded.CurrentPlayer)
	require.Contains(t, decoded.Players, "Avery")
	assert.Equal(t, 48000, decoded.Players["Avery"].Money)
	require.Len(t, decoded.Players["Avery"].Loans, 1)
	assert.Equal(t, "loan-1", decoded.Players["Avery"].Loans[0].ID)
	require.Len(t, decoded.Players["Avery"].ActiveEffects, 1)

	stored, ok := decoded.Players["Avery"].ActiveEffects[0].EffectData.(ResourceChange)
	require.True(t, ok, "stored effect payload should decode to its concrete type")
	assert.Equal(t, 500, stored.Amount)

	original, err := gs.ComputeChecksum()
	require.NoError(t, err)
	restored, err := decoded.ComputeChecksum()
	require.NoError(t, err)
	assert.Equal(t, original.Hash, restored.Hash)
}

// TestDeserializeGarbage verifies corrupt bytes fail to decode.
func TestDeserializeGarbage(t *testing.T) {
	_, err := DeserializeFromBytes([]byte("not a gob stream"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode game state")
}

// TestValidateSerializationRoundtrip verifies the full self-check passes on
// a populated state.
func TestValidateSerializationRoundtrip(t *testing.T) {
	require.NoError(t, ValidateSerializationRoundtrip(createTestState()))
}

// TestNestedEffectSerializes verifies container effects inside stored
// entries survive the roundtrip.
func TestNestedEffectSerializes(t *testing.T) {
	gs := createTestState()
	gs.Players["Blake"].ActiveEffects = []ActiveEffect{{
		EffectID:     "ae-2",
		SourceCardID: "L007",
		EffectData: ConditionalEffect{
			PlayerID: "Blake",
			Ranges: []ConditionalRange{{
				Min: 1, Max: 3,
				Effects: []Effect{ResourceChange{Resource: ResourceTime, Amount: -1}},
			}},
		},
		RemainingDuration: 1,
		StartTurn:         4,
		EffectType:        EffectTypeConditional,
		Description:       "conditional on dice roll (1 branches)",
	}}

	data, err := gs.SerializeToBytes()
	require.NoError(t, err)
	decoded, err := DeserializeFromBytes(data)
	require.NoError(t, err)

	nested, ok := decoded.Players["Blake"].ActiveEffects[0].EffectData.(ConditionalEffect)
	require.True(t, ok)
	require.Len(t, nested.Ranges, 1)
	require.Len(t, nested.Ranges[0].Effects, 1)
	inner, ok := nested.Ranges[0].Effects[0].(ResourceChange)
	require.True(t, ok)
	assert.Equal(t, -1, inner.Amount)
}
