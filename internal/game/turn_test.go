package game

import (
	"context"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/groundbreak/groundbreak-server-go/internal/game/events"
)

func newTurnHarness(t *testing.T, seed int64, playerIDs ...string) (*engineHarness, *TurnService) {
	t.Helper()
	h := newEngineHarness(t, playerIDs...)
	turns := NewTurnService(h.store, h.engine, seed, h.bus, zaptest.NewLogger(t))
	h.engine.AttachTurnController(turns)
	return h, turns
}

// TestTurnServiceStart verifies the opening announcement names the first
// player and the first turn.
func TestTurnServiceStart(t *testing.T) {
	h, turns := newTurnHarness(t, 1, "Avery", "Blake")

	if err := turns.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	started := h.events.ofType(events.EventTurnStarted)
	if len(started) != 1 {
		t.Fatalf("expected 1 TURN_STARTED event, got %d", len(started))
	}
	if started[0].PlayerID != "Avery" {
		t.Errorf("expected Avery to start, got %s", started[0].PlayerID)
	}
	if started[0].Amount != 1 {
		t.Errorf("expected turn 1, got %d", started[0].Amount)
	}
}

// TestRollDiceStaysInRange verifies every roll lands between 1 and 6 and is
// published.
func TestRollDiceStaysInRange(t *testing.T) {
	h, turns := newTurnHarness(t, 7, "Avery")

	for i := 0; i < 50; i++ {
		roll, err := turns.RollDice(context.Background(), "Avery")
		if err != nil {
			t.Fatalf("roll %d failed: %v", i, err)
		}
		if roll < 1 || roll > 6 {
			t.Fatalf("roll %d out of range: %d", i, roll)
		}
	}
	if got := len(h.events.ofType(events.EventDiceRolled)); got != 50 {
		t.Errorf("expected 50 DICE_ROLLED events, got %d", got)
	}
}

// TestRollDiceDeterministicSeed verifies two services with the same seed
// produce identical roll sequences.
func TestRollDiceDeterministicSeed(t *testing.T) {
	_, first := newTurnHarness(t, 42, "Avery")
	_, second := newTurnHarness(t, 42, "Avery")

	for i := 0; i < 10; i++ {
		a, err := first.RollDice(context.Background(), "Avery")
		if err != nil {
			t.Fatalf("first service roll failed: %v", err)
		}
		b, err := second.RollDice(context.Background(), "Avery")
		if err != nil {
			t.Fatalf("second service roll failed: %v", err)
		}
		if a != b {
			t.Fatalf("roll %d diverged: %d vs %d", i, a, b)
		}
	}
}

// TestRollDiceRejectsWrongPlayer verifies only the current player may roll.
func TestRollDiceRejectsWrongPlayer(t *testing.T) {
	_, turns := newTurnHarness(t, 1, "Avery", "Blake")

	_, err := turns.RollDice(context.Background(), "Blake")
	if err == nil {
		t.Fatal("expected error for out-of-turn roll")
	}
	if !strings.Contains(err.Error(), "not Blake's turn") {
		t.Errorf("unexpected error: %v", err)
	}
}

// TestRollDiceAfterGameEnds verifies rolling in a finished game fails.
func TestRollDiceAfterGameEnds(t *testing.T) {
	h, turns := newTurnHarness(t, 1, "Avery")
	h.store.EndGame("Avery", "done")

	if _, err := turns.RollDice(context.Background(), "Avery"); err == nil {
		t.Fatal("expected error after game end")
	}
}

// TestUseRerollLifecycle verifies a granted re-roll works exactly once.
func TestUseRerollLifecycle(t *testing.T) {
	h, turns := newTurnHarness(t, 1, "Avery")

	if _, err := turns.UseReroll(context.Background(), "Avery"); err == nil {
		t.Fatal("expected error without a re-roll grant")
	}

	h.setPlayer("Avery", func(p *Player) { p.TurnModifiers.CanReRoll = true })

	roll, err := turns.UseReroll(context.Background(), "Avery")
	if err != nil {
		t.Fatalf("UseReroll failed: %v", err)
	}
	if roll < 1 || roll > 6 {
		t.Fatalf("re-roll out of range: %d", roll)
	}
	if h.player("Avery").TurnModifiers.CanReRoll {
		t.Error("re-roll grant should be consumed")
	}

	if _, err := turns.UseReroll(context.Background(), "Avery"); err == nil {
		t.Fatal("expected error after grant was consumed")
	}
}

// TestSetSkipTurnsRejectsNegative verifies negative skip counts are refused.
func TestSetSkipTurnsRejectsNegative(t *testing.T) {
	_, turns := newTurnHarness(t, 1, "Avery")

	if err := turns.SetSkipTurns("Avery", -1); err == nil {
		t.Fatal("expected error for negative skip turns")
	}
	if err := turns.SetSkipTurns("Avery", 0); err != nil {
		t.Fatalf("zero skip turns should be allowed: %v", err)
	}
}

// TestEndTurnRotatesPlayers verifies the basic rotation and its event trail.
func TestEndTurnRotatesPlayers(t *testing.T) {
	h, turns := newTurnHarness(t, 1, "Avery", "Blake", "Casey")

	next, err := turns.EndTurn(context.Background(), "Avery")
	if err != nil {
		t.Fatalf("EndTurn failed: %v", err)
	}
	if next != "Blake" {
		t.Fatalf("expected Blake next, got %s", next)
	}
	if h.store.CurrentPlayerID() != "Blake" {
		t.Errorf("current player not advanced: %s", h.store.CurrentPlayerID())
	}
	if h.store.CurrentTurn() != 1 {
		t.Errorf("turn should not advance mid-round, got %d", h.store.CurrentTurn())
	}

	if got := len(h.events.ofType(events.EventTurnCommit)); got != 1 {
		t.Errorf("expected 1 TURN_COMMITTED event, got %d", got)
	}
	ended := h.events.ofType(events.EventTurnEnded)
	if len(ended) != 1 || ended[0].PlayerID != "Avery" {
		t.Errorf("unexpected TURN_ENDED events: %+v", ended)
	}
}

// TestEndTurnRejectsWrongPlayer verifies only the current player may end the
// turn.
func TestEndTurnRejectsWrongPlayer(t *testing.T) {
	_, turns := newTurnHarness(t, 1, "Avery", "Blake")

	if _, err := turns.EndTurn(context.Background(), "Blake"); err == nil {
		t.Fatal("expected error for out-of-turn end")
	}
}

// TestEndTurnClearsReroll verifies a re-roll grant dies with the turn it was
// granted in.
func TestEndTurnClearsReroll(t *testing.T) {
	h, turns := newTurnHarness(t, 1, "Avery", "Blake")
	h.setPlayer("Avery", func(p *Player) { p.TurnModifiers.CanReRoll = true })

	if _, err := turns.EndTurn(context.Background(), "Avery"); err != nil {
		t.Fatalf("EndTurn failed: %v", err)
	}
	if h.player("Avery").TurnModifiers.CanReRoll {
		t.Error("re-roll grant should be cleared at end of turn")
	}
}

// TestEndTurnConsumesSkipsAndCompletesRound verifies a skipping player is
// passed over, the skip is consumed, and wrapping the order advances the
// turn counter.
func TestEndTurnConsumesSkipsAndCompletesRound(t *testing.T) {
	h, turns := newTurnHarness(t, 1, "Avery", "Blake")
	if err := turns.SetSkipTurns("Blake", 1); err != nil {
		t.Fatalf("SetSkipTurns failed: %v", err)
	}

	next, err := turns.EndTurn(context.Background(), "Avery")
	if err != nil {
		t.Fatalf("EndTurn failed: %v", err)
	}
	if next != "Avery" {
		t.Fatalf("expected rotation to come back to Avery, got %s", next)
	}
	if h.player("Blake").TurnModifiers.SkipTurns != 0 {
		t.Errorf("Blake's skip should be consumed, got %d", h.player("Blake").TurnModifiers.SkipTurns)
	}
	if h.store.CurrentTurn() != 2 {
		t.Errorf("wrapping the order should complete the round, turn = %d", h.store.CurrentTurn())
	}

	skipped := h.events.ofType(events.EventTurnSkipped)
	if len(skipped) != 1 || skipped[0].PlayerID != "Blake" {
		t.Errorf("unexpected TURN_SKIPPED events: %+v", skipped)
	}
}

// TestRoundSweepFiresStoredEffects verifies completing a round re-fires
// durational effects.
func TestRoundSweepFiresStoredEffects(t *testing.T) {
	h, turns := newTurnHarness(t, 1, "Avery", "Blake")
	err := h.engine.AddActiveEffect("Avery",
		ResourceChange{PlayerID: "Avery", Resource: ResourceMoney, Amount: 500}, "L005", 1)
	if err != nil {
		t.Fatalf("AddActiveEffect failed: %v", err)
	}

	if _, err := turns.EndTurn(context.Background(), "Avery"); err != nil {
		t.Fatalf("EndTurn failed: %v", err)
	}
	if h.player("Avery").Money != 10000 {
		t.Fatalf("sweep should not fire mid-round, money = %d", h.player("Avery").Money)
	}

	if _, err := turns.EndTurn(context.Background(), "Blake"); err != nil {
		t.Fatalf("EndTurn failed: %v", err)
	}
	if h.player("Avery").Money != 10500 {
		t.Errorf("sweep should fire on round completion, money = %d", h.player("Avery").Money)
	}
	if len(h.player("Avery").ActiveEffects) != 0 {
		t.Error("single-turn effect should expire after the sweep")
	}
}

// TestRoundSweepCanEndGame verifies EndTurn reports a finished game when the
// sweep bankrupts a player.
func TestRoundSweepCanEndGame(t *testing.T) {
	h, turns := newTurnHarness(t, 1, "Avery", "Blake")
	err := h.engine.AddActiveEffect("Blake",
		ResourceChange{PlayerID: "Blake", Resource: ResourceMoney, Amount: -999999, SourceType: "penalty"}, "L003", 1)
	if err != nil {
		t.Fatalf("AddActiveEffect failed: %v", err)
	}

	if _, err := turns.EndTurn(context.Background(), "Avery"); err != nil {
		t.Fatalf("EndTurn failed: %v", err)
	}

	next, err := turns.EndTurn(context.Background(), "Blake")
	if err != nil {
		t.Fatalf("EndTurn failed: %v", err)
	}
	if next != "" {
		t.Errorf("expected no next player in a finished game, got %q", next)
	}
	if !h.store.IsEnded() {
		t.Fatal("game should have ended during the sweep")
	}
	ended, _, reason := h.store.EndState()
	if !ended || reason != "Blake went bankrupt" {
		t.Errorf("unexpected end state: ended=%v reason=%q", ended, reason)
	}
}
