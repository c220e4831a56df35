package movement

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/groundbreak/groundbreak-server-go/internal/cards"
	"github.com/groundbreak/groundbreak-server-go/internal/game"
	"github.com/groundbreak/groundbreak-server-go/internal/game/events"
)

// EffectProcessor runs space effects. Bound after construction because the
// engine and the movement service reference each other.
type EffectProcessor interface {
	ProcessEffects(ctx context.Context, effects []game.Effect, ectx game.EffectContext) game.BatchEffectResult
}

// Service relocates players across the board and applies space effects.
type Service struct {
	logger *zap.Logger
	store  *game.Store
	board  *Board
	bus    *events.Bus

	mu        sync.Mutex
	processor EffectProcessor
}

// NewService builds a movement service over the board.
func NewService(store *game.Store, board *Board, bus *events.Bus, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		logger: logger,
		store:  store,
		board:  board,
		bus:    bus,
	}
}

// SetEffectProcessor completes the service's wiring to the engine.
func (s *Service) SetEffectProcessor(p EffectProcessor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processor = p
}

func (s *Service) effectProcessor() EffectProcessor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processor
}

// SpacePhase answers which project phase a space belongs to. Unknown spaces
// report an empty phase.
func (s *Service) SpacePhase(spaceName string) string {
	sp, ok := s.board.Space(spaceName)
	if !ok {
		return ""
	}
	return sp.Phase
}

// ValidMoves lists the spaces the player can move to from where they stand.
func (s *Service) ValidMoves(playerID string) ([]string, error) {
	player, err := s.store.GetPlayer(playerID)
	if err != nil {
		return nil, err
	}
	sp, ok := s.board.Space(player.CurrentSpace)
	if !ok {
		return nil, fmt.Errorf("player %s is on unknown space %s", playerID, player.CurrentSpace)
	}
	return append([]string(nil), sp.Next...), nil
}

// RequiresDiceMovement reports whether the player's current space picks its
// destination by dice.
func (s *Service) RequiresDiceMovement(playerID string) (bool, error) {
	player, err := s.store.GetPlayer(playerID)
	if err != nil {
		return false, err
	}
	sp, ok := s.board.Space(player.CurrentSpace)
	if !ok {
		return false, fmt.Errorf("player %s is on unknown space %s", playerID, player.CurrentSpace)
	}
	return sp.RequiresDice, nil
}

// DiceDestination maps a roll onto one of the current space's destinations.
func (s *Service) DiceDestination(playerID string, roll int) (string, error) {
	player, err := s.store.GetPlayer(playerID)
	if err != nil {
		return "", err
	}
	sp, ok := s.board.Space(player.CurrentSpace)
	if !ok {
		return "", fmt.Errorf("player %s is on unknown space %s", playerID, player.CurrentSpace)
	}
	if len(sp.Next) == 0 {
		return "", fmt.Errorf("space %s has no destinations", sp.Name)
	}
	if roll < 1 || roll > 6 {
		return "", fmt.Errorf("roll must be 1-6, got %d", roll)
	}
	return sp.Next[(roll-1)%len(sp.Next)], nil
}

// MovePlayer relocates the player and applies the destination's entry
// effects. Effect-driven moves may teleport; adjacency is the caller's
// concern. A failed entry effect does not undo the move.
func (s *Service) MovePlayer(ctx context.Context, playerID, destination string) error {
	dest, ok := s.board.Space(destination)
	if !ok {
		return fmt.Errorf("unknown space %s", destination)
	}
	player, err := s.store.GetPlayer(playerID)
	if err != nil {
		return err
	}
	from := player.CurrentSpace

	if s.bus != nil && from != "" {
		s.bus.Publish(events.New(events.EventSpaceExited, s.store.GameID(), playerID, from))
	}

	firstVisit := false
	err = s.store.UpdatePlayer(playerID, func(p *game.Player) {
		p.CurrentSpace = destination
		p.VisitCounts[destination]++
		firstVisit = p.VisitCounts[destination] == 1
	})
	if err != nil {
		return err
	}

	s.logger.Info("player moved",
		zap.String("player_id", playerID),
		zap.String("from", from),
		zap.String("to", destination),
		zap.Bool("first_visit", firstVisit))
	if s.bus != nil {
		evt := events.New(events.EventSpaceEntered, s.store.GameID(), playerID, destination)
		evt.Metadata["from"] = from
		if firstVisit {
			evt.Metadata["first_visit"] = "true"
		}
		s.bus.Publish(evt)
	}

	if dest.Terminal {
		name := s.store.PlayerName(playerID)
		s.store.EndGame(playerID, fmt.Sprintf("%s completed the project", name))
		return nil
	}

	s.applyEntryEffects(ctx, playerID, dest, firstVisit)
	return nil
}

// applyEntryEffects runs the destination's entry effects for the visit
// type. Failures are recorded in results and logged; the move stands.
func (s *Service) applyEntryEffects(ctx context.Context, playerID string, sp *Space, firstVisit bool) {
	processor := s.effectProcessor()
	if processor == nil {
		return
	}
	specs := sp.SubsequentVisit
	if firstVisit {
		specs = sp.FirstVisit
	}
	effects := buildEffects(specs, playerID, "space:"+sp.Name)
	if len(effects) == 0 {
		return
	}
	ectx := game.EffectContext{
		Source:       "space:" + sp.Name,
		PlayerID:     playerID,
		TriggerEvent: game.TriggerSpaceEntry,
	}
	res := processor.ProcessEffects(ctx, effects, ectx)
	if !res.Success {
		s.logger.Warn("space entry effects had failures",
			zap.String("space", sp.Name),
			zap.String("player_id", playerID),
			zap.Int("failed", res.FailedEffects),
			zap.Strings("errors", res.Errors))
	}
}

// ApplyDiceOutcome expresses the current space's dice outcomes as a single
// conditional effect and processes it against the roll.
func (s *Service) ApplyDiceOutcome(ctx context.Context, playerID string, roll int) (game.BatchEffectResult, error) {
	var empty game.BatchEffectResult
	player, err := s.store.GetPlayer(playerID)
	if err != nil {
		return empty, err
	}
	sp, ok := s.board.Space(player.CurrentSpace)
	if !ok {
		return empty, fmt.Errorf("player %s is on unknown space %s", playerID, player.CurrentSpace)
	}
	if len(sp.DiceOutcomes) == 0 {
		return empty, nil
	}
	processor := s.effectProcessor()
	if processor == nil {
		return empty, fmt.Errorf("effect processor not attached")
	}

	conditional, err := diceConditional(sp, playerID)
	if err != nil {
		return empty, err
	}
	ectx := game.EffectContext{
		Source:       "space:" + sp.Name,
		PlayerID:     playerID,
		TriggerEvent: game.TriggerDiceRoll,
		DiceRoll:     roll,
	}
	return processor.ProcessEffects(ctx, []game.Effect{conditional}, ectx), nil
}

// diceConditional converts the space's outcome table into a conditional
// effect with sorted, parsed ranges.
func diceConditional(sp *Space, playerID string) (game.Effect, error) {
	ranges := make([]game.ConditionalRange, 0, len(sp.DiceOutcomes))
	for key, specs := range sp.DiceOutcomes {
		min, max, err := parseRollRange(key)
		if err != nil {
			return nil, fmt.Errorf("space %s: %w", sp.Name, err)
		}
		ranges = append(ranges, game.ConditionalRange{
			Min:     min,
			Max:     max,
			Effects: buildEffects(specs, playerID, "space:"+sp.Name),
		})
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].Min < ranges[j].Min })
	return game.ConditionalEffect{PlayerID: playerID, Ranges: ranges}, nil
}

// parseRollRange reads "3" or "1-3" into bounds.
func parseRollRange(key string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(key), "-", 2)
	min, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid roll range %q", key)
	}
	max := min
	if len(parts) == 2 {
		max, err = strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return 0, 0, fmt.Errorf("invalid roll range %q", key)
		}
	}
	if min < 1 || max > 6 || min > max {
		return 0, 0, fmt.Errorf("roll range %q out of bounds", key)
	}
	return min, max, nil
}

// buildEffects translates space effect specs into engine effects. Unknown
// kinds are skipped.
func buildEffects(specs []EffectSpec, playerID, source string) []game.Effect {
	var out []game.Effect
	for _, spec := range specs {
		if effect, ok := buildEffect(spec, playerID, source); ok {
			out = append(out, effect)
		}
	}
	return out
}

func buildEffect(spec EffectSpec, playerID, source string) (game.Effect, bool) {
	switch spec.Kind {
	case "money":
		return game.ResourceChange{
			PlayerID: playerID,
			Resource: game.ResourceMoney,
			Amount:   spec.Amount,
			Source:   source,
		}, true
	case "time":
		// Positive amounts are time costs.
		return game.ResourceChange{
			PlayerID: playerID,
			Resource: game.ResourceTime,
			Amount:   -spec.Amount,
			Source:   source,
		}, true
	case "fee_percent":
		return game.ResourceChange{
			PlayerID:          playerID,
			Resource:          game.ResourceMoney,
			PercentageOfScope: spec.Percent,
			SourceType:        "fee",
			Source:            source,
		}, true
	case "draw":
		count, cardType, err := cards.ParseDrawSpec(spec.CardSpec)
		if err != nil {
			return nil, false
		}
		return game.CardDraw{
			PlayerID: playerID,
			CardType: cardType,
			Count:    count,
			Source:   source,
		}, true
	case "discard":
		count, cardType, err := cards.ParseDrawSpec(spec.CardSpec)
		if err != nil {
			return nil, false
		}
		return game.CardDiscard{
			PlayerID: playerID,
			CardType: cardType,
			Count:    count,
			Source:   source,
		}, true
	case "skip_turn":
		turns := spec.Amount
		if turns <= 0 {
			turns = 1
		}
		return game.TurnControl{
			PlayerID:  playerID,
			Action:    game.TurnActionSkipTurn,
			SkipTurns: turns,
			Source:    source,
		}, true
	case "reroll":
		return game.TurnControl{
			PlayerID: playerID,
			Action:   game.TurnActionGrantReroll,
			Source:   source,
		}, true
	case "log":
		return game.Log{
			Message: spec.Message,
			Level:   game.LogLevelInfo,
			Source:  source,
		}, true
	default:
		return nil, false
	}
}
