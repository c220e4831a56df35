package game

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groundbreak/groundbreak-server-go/internal/game/events"
)

// Loan is an outstanding loan on a player's books.
type Loan struct {
	ID        string
	Amount    int
	Rate      float64
	StartTurn int
}

// ActiveCard is a played card whose passive benefit lasts until the
// expiration turn.
type ActiveCard struct {
	CardID         string
	ExpirationTurn int
}

// TurnModifiers alter a player's upcoming turns.
type TurnModifiers struct {
	SkipTurns int
	CanReRoll bool
}

// PendingChoice is the single outstanding prompt blocking the game, if any.
type PendingChoice struct {
	ChoiceID  string
	PlayerID  string
	Kind      string
	Prompt    string
	Options   []ChoiceOption
	CreatedAt time.Time
}

func (pc *PendingChoice) clone() *PendingChoice {
	if pc == nil {
		return nil
	}
	cp := *pc
	cp.Options = append([]ChoiceOption(nil), pc.Options...)
	return &cp
}

// Player is the full record of one participant.
type Player struct {
	ID           string
	Name         string
	Color        string
	CurrentSpace string
	// VisitCounts tracks how many times each space has been entered,
	// including the current occupancy.
	VisitCounts    map[string]int
	Money          int
	TimeSpent      int
	DesignFeesPaid int
	Loans          []Loan
	Hand           map[CardType][]string
	ActiveCards    []ActiveCard
	TurnModifiers  TurnModifiers
	ActiveEffects  []ActiveEffect
}

// Clone returns a structurally independent copy of the player.
func (p *Player) Clone() *Player {
	if p == nil {
		return nil
	}
	cp := *p
	cp.VisitCounts = make(map[string]int, len(p.VisitCounts))
	for k, v := range p.VisitCounts {
		cp.VisitCounts[k] = v
	}
	cp.Loans = append([]Loan(nil), p.Loans...)
	cp.Hand = make(map[CardType][]string, len(p.Hand))
	for t, ids := range p.Hand {
		cp.Hand[t] = append([]string(nil), ids...)
	}
	cp.ActiveCards = append([]ActiveCard(nil), p.ActiveCards...)
	cp.ActiveEffects = make([]ActiveEffect, len(p.ActiveEffects))
	for i, ae := range p.ActiveEffects {
		cp.ActiveEffects[i] = ae.clone()
	}
	return &cp
}

// HandSize returns the number of cards of one type in the player's hand.
func (p *Player) HandSize(t CardType) int {
	return len(p.Hand[t])
}

// GameState is the complete mutable state of one game.
type GameState struct {
	GameID        string
	PlayerOrder   []string
	Players       map[string]*Player
	CurrentPlayer string
	Turn          int
	Ended         bool
	WinnerID      string
	EndReason     string
	PendingChoice *PendingChoice
}

// Clone returns a structurally independent copy of the game state.
func (gs *GameState) Clone() *GameState {
	if gs == nil {
		return nil
	}
	cp := *gs
	cp.PlayerOrder = append([]string(nil), gs.PlayerOrder...)
	cp.Players = make(map[string]*Player, len(gs.Players))
	for id, p := range gs.Players {
		cp.Players[id] = p.Clone()
	}
	cp.PendingChoice = gs.PendingChoice.clone()
	return &cp
}

// PlayerSetup describes one player at game creation.
type PlayerSetup struct {
	ID    string
	Name  string
	Color string
}

// Store owns the game state behind a working/committed buffer pair.
// All reads and writes hit the working buffer; CommitTurn promotes it to the
// committed buffer and RevertTurn restores the working buffer from the last
// commit. Accessors return deep copies, so callers can never corrupt the
// buffers through a returned value.
type Store struct {
	logger *zap.Logger
	bus    *events.Bus

	mu        sync.RWMutex
	working   *GameState
	committed *GameState
}

// NewStore creates a store for a fresh game. Players start on startSpace
// with startingMoney and empty hands.
func NewStore(gameID string, setups []PlayerSetup, startingMoney int, startSpace string, bus *events.Bus, logger *zap.Logger) (*Store, error) {
	if gameID == "" {
		gameID = uuid.NewString()
	}
	if len(setups) == 0 {
		return nil, fmt.Errorf("at least one player required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	gs := &GameState{
		GameID:  gameID,
		Players: make(map[string]*Player, len(setups)),
		Turn:    1,
	}
	for _, setup := range setups {
		id := setup.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, exists := gs.Players[id]; exists {
			return nil, fmt.Errorf("duplicate player id %s", id)
		}
		player := &Player{
			ID:           id,
			Name:         setup.Name,
			Color:        setup.Color,
			CurrentSpace: startSpace,
			VisitCounts:  map[string]int{},
			Money:        startingMoney,
			Hand:         make(map[CardType][]string),
		}
		if startSpace != "" {
			player.VisitCounts[startSpace] = 1
		}
		gs.PlayerOrder = append(gs.PlayerOrder, id)
		gs.Players[id] = player
	}
	gs.CurrentPlayer = gs.PlayerOrder[0]

	s := &Store{
		logger:    logger,
		bus:       bus,
		working:   gs,
		committed: gs.Clone(),
	}
	if bus != nil {
		bus.Publish(events.New(events.EventGameCreated, gameID, "", ""))
	}
	return s, nil
}

// GameID returns the id of the game this store holds.
func (s *Store) GameID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.working.GameID
}

// GetPlayer returns a deep copy of one player record.
func (s *Store) GetPlayer(playerID string) (*Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.working.Players[playerID]
	if !ok {
		return nil, fmt.Errorf("player %s not found", playerID)
	}
	return p.Clone(), nil
}

// GetAllPlayers returns deep copies of every player in seating order.
func (s *Store) GetAllPlayers() []*Player {
	s.mu.RLock()
	defer s.mu.RUnlock()
	players := make([]*Player, 0, len(s.working.PlayerOrder))
	for _, id := range s.working.PlayerOrder {
		players = append(players, s.working.Players[id].Clone())
	}
	return players
}

// PlayerIDs returns the player ids in seating order.
func (s *Store) PlayerIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.working.PlayerOrder...)
}

// PlayerName returns the display name for a player id, or the id itself when
// unknown.
func (s *Store) PlayerName(playerID string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.working.Players[playerID]; ok {
		return p.Name
	}
	return playerID
}

// UpdatePlayer applies a mutation to one player record inside the working
// buffer.
func (s *Store) UpdatePlayer(playerID string, mutate func(*Player)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.working.Players[playerID]
	if !ok {
		return fmt.Errorf("player %s not found", playerID)
	}
	mutate(p)
	return nil
}

// Snapshot returns a deep copy of the full working state.
func (s *Store) Snapshot() *GameState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.working.Clone()
}

// Restore replaces both buffers with the provided state. Used when loading a
// persisted game.
func (s *Store) Restore(gs *GameState) error {
	if gs == nil {
		return fmt.Errorf("nil game state")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.working = gs.Clone()
	s.committed = gs.Clone()
	return nil
}

// CurrentTurn returns the running turn number, starting at 1.
func (s *Store) CurrentTurn() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.working.Turn
}

// IncrementTurn advances the turn counter and returns the new value.
func (s *Store) IncrementTurn() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.working.Turn++
	return s.working.Turn
}

// CurrentPlayerID returns the player whose turn it is.
func (s *Store) CurrentPlayerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.working.CurrentPlayer
}

// SetCurrentPlayer moves the turn marker to another player.
func (s *Store) SetCurrentPlayer(playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.working.Players[playerID]; !ok {
		return fmt.Errorf("player %s not found", playerID)
	}
	s.working.CurrentPlayer = playerID
	return nil
}

// SetPendingChoice records the prompt currently blocking the game.
func (s *Store) SetPendingChoice(pc *PendingChoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.working.PendingChoice = pc.clone()
}

// ClearPendingChoice removes the blocking prompt.
func (s *Store) ClearPendingChoice() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.working.PendingChoice = nil
}

// PendingChoice returns a copy of the blocking prompt, nil when the game is
// not waiting on anyone.
func (s *Store) PendingChoice() *PendingChoice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.working.PendingChoice.clone()
}

// EmitAutoAction publishes a notification that the engine acted on a
// player's behalf, e.g. auto-playing a funding card.
func (s *Store) EmitAutoAction(playerID, action, description string) {
	s.mu.RLock()
	gameID := s.working.GameID
	s.mu.RUnlock()

	s.logger.Info("auto action",
		zap.String("game_id", gameID),
		zap.String("player_id", playerID),
		zap.String("action", action),
		zap.String("description", description))
	if s.bus != nil {
		evt := events.New(events.EventAutoAction, gameID, playerID, action)
		evt.Description = description
		s.bus.Publish(evt)
	}
}

// EndGame latches the terminal state. winnerID may be empty for games that
// end without a winner (bankruptcy). Subsequent calls are ignored.
func (s *Store) EndGame(winnerID, reason string) {
	s.mu.Lock()
	if s.working.Ended {
		s.mu.Unlock()
		return
	}
	s.working.Ended = true
	s.working.WinnerID = winnerID
	s.working.EndReason = reason
	gameID := s.working.GameID
	s.mu.Unlock()

	s.logger.Info("game ended",
		zap.String("game_id", gameID),
		zap.String("winner_id", winnerID),
		zap.String("reason", reason))
	if s.bus != nil {
		evt := events.New(events.EventGameEnded, gameID, winnerID, "")
		evt.Description = reason
		s.bus.Publish(evt)
	}
}

// IsEnded reports whether the game reached a terminal state.
func (s *Store) IsEnded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.working.Ended
}

// EndState returns the terminal flags: ended, winner id and reason.
func (s *Store) EndState() (bool, string, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.working.Ended, s.working.WinnerID, s.working.EndReason
}

// CommitTurn promotes the working buffer to the committed buffer. Called at
// turn boundaries once the turn's mutations are final.
func (s *Store) CommitTurn() {
	s.mu.Lock()
	s.committed = s.working.Clone()
	gameID := s.working.GameID
	turn := s.working.Turn
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(events.NewWithAmount(events.EventTurnCommit, gameID, "", "", turn))
	}
}

// RevertTurn discards the working buffer and restores it from the last
// commit. This is the "try again" path: everything since the last commit is
// rolled back.
func (s *Store) RevertTurn() {
	s.mu.Lock()
	s.working = s.committed.Clone()
	gameID := s.working.GameID
	turn := s.working.Turn
	s.mu.Unlock()

	s.logger.Info("turn state reverted",
		zap.String("game_id", gameID),
		zap.Int("turn", turn))
	if s.bus != nil {
		s.bus.Publish(events.NewWithAmount(events.EventTurnRevert, gameID, "", "", turn))
	}
}
