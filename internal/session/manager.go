// Package session assembles fully wired game sessions. All the cross-service
// attachments that cannot happen at construction time happen here.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groundbreak/groundbreak-server-go/internal/cards"
	"github.com/groundbreak/groundbreak-server-go/internal/choice"
	"github.com/groundbreak/groundbreak-server-go/internal/config"
	"github.com/groundbreak/groundbreak-server-go/internal/game"
	"github.com/groundbreak/groundbreak-server-go/internal/game/events"
	"github.com/groundbreak/groundbreak-server-go/internal/game/targeting"
	"github.com/groundbreak/groundbreak-server-go/internal/ledger"
	"github.com/groundbreak/groundbreak-server-go/internal/movement"
	"github.com/groundbreak/groundbreak-server-go/internal/negotiation"
)

// Archive persists snapshots and results. Optional; a nil archive keeps
// everything in memory.
type Archive interface {
	SaveSnapshot(ctx context.Context, gameID string, turn int, checksum string, state []byte) error
	RecordResult(ctx context.Context, gameID, winnerID, endReason string, turns int) error
}

// GameSession is one running game with all its services.
type GameSession struct {
	ID          string
	Bus         *events.Bus
	Store       *game.Store
	Engine      *game.EffectEngine
	Turns       *game.TurnService
	Ledger      *ledger.Ledger
	Cards       *cards.Inventory
	Choices     *choice.Broker
	Movement    *movement.Service
	Targets     *targeting.Resolver
	Negotiation *negotiation.Service
	CreatedAt   time.Time
}

// Manager creates and tracks game sessions.
type Manager struct {
	logger   *zap.Logger
	catalog  *cards.Catalog
	board    *movement.Board
	cfg      config.GameConfig
	archive  Archive
	recorder *game.ReplayRecorder

	mu       sync.RWMutex
	sessions map[string]*GameSession
}

// NewManager builds a session manager. archive may be nil. Replay recording
// turns on when cfg.ReplayDir is set.
func NewManager(catalog *cards.Catalog, board *movement.Board, cfg config.GameConfig, archive Archive, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		logger:   logger,
		catalog:  catalog,
		board:    board,
		cfg:      cfg,
		archive:  archive,
		sessions: make(map[string]*GameSession),
	}
	if cfg.ReplayDir != "" {
		m.recorder = game.NewReplayRecorder(cfg.ReplayDir, logger)
	}
	return m
}

// CreateGame wires a complete session for the given players. The seed
// drives deck shuffles and dice; zero picks one from the clock.
func (m *Manager) CreateGame(ctx context.Context, setups []game.PlayerSetup, seed int64) (*GameSession, error) {
	if len(setups) == 0 {
		return nil, fmt.Errorf("at least one player required")
	}
	if m.cfg.MaxPlayers > 0 && len(setups) > m.cfg.MaxPlayers {
		return nil, fmt.Errorf("too many players: %d (max %d)", len(setups), m.cfg.MaxPlayers)
	}
	if seed == 0 {
		seed = m.cfg.Seed
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	gameID := uuid.NewString()
	logger := m.logger.With(zap.String("game_id", gameID))
	bus := events.NewBus()

	store, err := game.NewStore(gameID, setups, m.cfg.StartingMoney, m.board.StartSpace(), bus, logger)
	if err != nil {
		return nil, err
	}

	inventory := cards.NewInventory(store, m.catalog, seed, bus, logger)
	bank := ledger.New(store, inventory, bus, logger)
	broker := choice.NewBroker(store, bus, logger)
	mover := movement.NewService(store, m.board, bus, logger)

	prompt := func(ctx context.Context, playerID, prompt string, options []targeting.Option) (string, error) {
		opts := make([]game.ChoiceOption, len(options))
		for i, o := range options {
			opts[i] = game.ChoiceOption{ID: o.ID, Label: o.Label}
		}
		return broker.CreateChoice(ctx, playerID, "TARGET_SELECTION", prompt, opts)
	}
	targets := targeting.NewResolver(store, prompt, logger)

	engine := game.NewEffectEngine(store, bank, inventory, broker, mover, targets, bus, logger)

	// Second wiring phase: everything the constructors could not see.
	inventory.SetEffectProcessor(engine)
	inventory.SetWallet(bank)
	inventory.SetPhaseSource(mover)
	mover.SetEffectProcessor(engine)

	turns := game.NewTurnService(store, engine, seed+1, bus, logger)
	engine.AttachTurnController(turns)

	deals := negotiation.NewService(store, bank, inventory, bus, logger)
	engine.AttachNegotiationService(deals)

	bus.SubscribeTyped(events.EventTurnStarted, func(events.Event) {
		inventory.ExpireActiveCards()
	})
	if m.archive != nil {
		m.subscribeArchive(bus, store)
	}
	if m.recorder != nil {
		m.recorder.Attach(store, bus)
	}

	sess := &GameSession{
		ID:          gameID,
		Bus:         bus,
		Store:       store,
		Engine:      engine,
		Turns:       turns,
		Ledger:      bank,
		Cards:       inventory,
		Choices:     broker,
		Movement:    mover,
		Targets:     targets,
		Negotiation: deals,
		CreatedAt:   time.Now(),
	}
	m.mu.Lock()
	m.sessions[gameID] = sess
	m.mu.Unlock()

	logger.Info("game session created",
		zap.Int("players", len(setups)),
		zap.Int64("seed", seed),
		zap.String("start_space", m.board.StartSpace()))
	return sess, nil
}

// subscribeArchive persists a snapshot on every committed turn and the
// result when the game ends.
func (m *Manager) subscribeArchive(bus *events.Bus, store *game.Store) {
	bus.SubscribeTyped(events.EventTurnCommit, func(evt events.Event) {
		state := store.Snapshot()
		data, err := state.SerializeToBytes()
		if err != nil {
			m.logger.Error("snapshot serialization failed",
				zap.String("game_id", evt.GameID),
				zap.Error(err))
			return
		}
		checksum, err := state.ComputeChecksum()
		if err != nil {
			m.logger.Error("snapshot checksum failed",
				zap.String("game_id", evt.GameID),
				zap.Error(err))
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.archive.SaveSnapshot(ctx, evt.GameID, state.Turn, checksum.Hash, data); err != nil {
			m.logger.Error("snapshot persist failed",
				zap.String("game_id", evt.GameID),
				zap.Error(err))
		}
	})
	bus.SubscribeTyped(events.EventGameEnded, func(evt events.Event) {
		_, winnerID, reason := store.EndState()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := m.archive.RecordResult(ctx, evt.GameID, winnerID, reason, store.CurrentTurn()); err != nil {
			m.logger.Error("result persist failed",
				zap.String("game_id", evt.GameID),
				zap.Error(err))
		}
	})
}

// Get returns a session by game id.
func (m *Manager) Get(gameID string) (*GameSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[gameID]
	return sess, ok
}

// List returns all live sessions.
func (m *Manager) List() []*GameSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*GameSession, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess)
	}
	return out
}

// Replay returns the recorded replay for a game, if recording is on.
func (m *Manager) Replay(gameID string) (*game.Replay, bool) {
	if m.recorder == nil {
		return nil, false
	}
	return m.recorder.Get(gameID)
}

// Remove drops a session from the manager.
func (m *Manager) Remove(gameID string) {
	m.mu.Lock()
	delete(m.sessions, gameID)
	m.mu.Unlock()
	if m.recorder != nil {
		m.recorder.Drop(gameID)
	}
	m.logger.Info("game session removed", zap.String("game_id", gameID))
}

// Count reports how many sessions are live.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CloseAll drops every session, used during shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	n := len(m.sessions)
	m.sessions = make(map[string]*GameSession)
	m.mu.Unlock()
	if n > 0 {
		m.logger.Info("all game sessions closed", zap.Int("count", n))
	}
}
