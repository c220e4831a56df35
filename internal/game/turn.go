package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"github.com/groundbreak/groundbreak-server-go/internal/game/events"
)

// TurnService owns turn rotation, dice and skip bookkeeping. It implements
// TurnController so the engine can route SKIP_TURN effects to it.
type TurnService struct {
	logger *zap.Logger
	store  *Store
	engine *EffectEngine
	bus    *events.Bus

	mu  sync.Mutex
	rng *rand.Rand
}

// NewTurnService builds a turn service with a seeded dice stream so games
// replay deterministically.
func NewTurnService(store *Store, engine *EffectEngine, seed int64, bus *events.Bus, logger *zap.Logger) *TurnService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TurnService{
		logger: logger,
		store:  store,
		engine: engine,
		bus:    bus,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// Start announces the first turn of the game.
func (t *TurnService) Start(ctx context.Context) error {
	current := t.store.CurrentPlayerID()
	if current == "" {
		return fmt.Errorf("no current player")
	}
	t.publishTurnEvent(events.EventTurnStarted, current)
	t.logger.Info("game started",
		zap.String("player_id", current),
		zap.Int("turn", t.store.CurrentTurn()))
	return nil
}

// RollDice rolls a single six-sided die for the current player.
func (t *TurnService) RollDice(ctx context.Context, playerID string) (int, error) {
	if t.store.IsEnded() {
		return 0, fmt.Errorf("game has ended")
	}
	current := t.store.CurrentPlayerID()
	if current != playerID {
		return 0, fmt.Errorf("not %s's turn (current player: %s)", playerID, current)
	}

	t.mu.Lock()
	roll := t.rng.Intn(6) + 1
	t.mu.Unlock()

	t.logger.Info("dice rolled",
		zap.String("player_id", playerID),
		zap.Int("roll", roll))
	if t.bus != nil {
		t.bus.Publish(events.NewWithAmount(events.EventDiceRolled, t.store.GameID(), playerID, "", roll))
	}
	return roll, nil
}

// UseReroll consumes the player's re-roll grant and rolls again. Fails when
// no re-roll is pending.
func (t *TurnService) UseReroll(ctx context.Context, playerID string) (int, error) {
	player, err := t.store.GetPlayer(playerID)
	if err != nil {
		return 0, err
	}
	if !player.TurnModifiers.CanReRoll {
		return 0, fmt.Errorf("%s has no re-roll available", player.Name)
	}
	if err := t.store.UpdatePlayer(playerID, func(p *Player) {
		p.TurnModifiers.CanReRoll = false
	}); err != nil {
		return 0, err
	}
	return t.RollDice(ctx, playerID)
}

// SetSkipTurns records turns the player must sit out. Existing re-roll
// grants are left alone.
func (t *TurnService) SetSkipTurns(playerID string, turns int) error {
	if turns < 0 {
		return fmt.Errorf("skip turns must not be negative, got %d", turns)
	}
	err := t.store.UpdatePlayer(playerID, func(p *Player) {
		p.TurnModifiers.SkipTurns = turns
	})
	if err != nil {
		return err
	}
	t.logger.Info("skip turns set",
		zap.String("player_id", playerID),
		zap.Int("turns", turns))
	return nil
}

// EndTurn commits the current player's turn and advances to the next player
// who is not skipping. Completing a full round increments the turn counter
// and re-fires every player's stored effects.
func (t *TurnService) EndTurn(ctx context.Context, playerID string) (string, error) {
	if t.store.IsEnded() {
		return "", fmt.Errorf("game has ended")
	}
	current := t.store.CurrentPlayerID()
	if current != playerID {
		return "", fmt.Errorf("not %s's turn (current player: %s)", playerID, current)
	}

	// Re-roll grants do not survive the turn they were granted in.
	_ = t.store.UpdatePlayer(playerID, func(p *Player) {
		p.TurnModifiers.CanReRoll = false
	})
	t.store.CommitTurn()
	t.publishTurnEvent(events.EventTurnEnded, playerID)

	next, err := t.advance(ctx, playerID)
	if err != nil {
		return "", err
	}
	if t.store.IsEnded() {
		// The round sweep can end the game (bankruptcy, expired penalties).
		return "", nil
	}
	if err := t.store.SetCurrentPlayer(next); err != nil {
		return "", err
	}
	t.publishTurnEvent(events.EventTurnStarted, next)
	t.logger.Info("turn advanced",
		zap.String("from", playerID),
		zap.String("to", next),
		zap.Int("turn", t.store.CurrentTurn()))
	return next, nil
}

// advance walks player order from the given player, consuming skip turns
// until it finds someone who plays. Every wrap past the end of the order
// completes a round.
func (t *TurnService) advance(ctx context.Context, fromID string) (string, error) {
	order := t.store.PlayerIDs()
	if len(order) == 0 {
		return "", fmt.Errorf("no players in game")
	}
	idx := -1
	for i, id := range order {
		if id == fromID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return "", fmt.Errorf("player %s not in turn order", fromID)
	}

	// Skip counts strictly decrease on every visit, so this terminates.
	for {
		idx++
		if idx >= len(order) {
			idx = 0
			t.completeRound(ctx)
			if t.store.IsEnded() {
				return "", nil
			}
		}
		candidate := order[idx]
		player, err := t.store.GetPlayer(candidate)
		if err != nil {
			return "", err
		}
		if player.TurnModifiers.SkipTurns > 0 {
			if err := t.store.UpdatePlayer(candidate, func(p *Player) {
				p.TurnModifiers.SkipTurns--
			}); err != nil {
				return "", err
			}
			t.logger.Info("turn skipped",
				zap.String("player_id", candidate),
				zap.Int("remaining_skips", player.TurnModifiers.SkipTurns-1))
			t.publishTurnEvent(events.EventTurnSkipped, candidate)
			continue
		}
		return candidate, nil
	}
}

// completeRound runs once per full pass through the player order.
func (t *TurnService) completeRound(ctx context.Context) {
	turn := t.store.IncrementTurn()
	t.logger.Info("round complete", zap.Int("turn", turn))
	sweep := t.engine.ProcessActiveEffectsForAllPlayers(ctx)
	if sweep.FailedEffects > 0 {
		t.logger.Warn("round sweep had failures",
			zap.Int("failed", sweep.FailedEffects),
			zap.Strings("errors", sweep.Errors))
	}
}

func (t *TurnService) publishTurnEvent(eventType events.EventType, playerID string) {
	if t.bus == nil {
		return
	}
	t.bus.Publish(events.NewWithAmount(eventType, t.store.GameID(), playerID, "", t.store.CurrentTurn()))
}
