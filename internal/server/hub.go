// Package server exposes games over WebSocket. Clients send action messages
// and receive the event stream plus state snapshots for their game.
package server

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/groundbreak/groundbreak-server-go/internal/game"
	"github.com/groundbreak/groundbreak-server-go/internal/game/events"
	"github.com/groundbreak/groundbreak-server-go/internal/session"
)

// WSMessage is the envelope for both directions.
type WSMessage struct {
	Type     string          `json:"type"`
	GameID   string          `json:"game_id,omitempty"`
	PlayerID string          `json:"player_id,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// outMessage is the envelope for outbound payloads.
type outMessage struct {
	Type   string `json:"type"`
	GameID string `json:"game_id,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// PlayerView is the client-facing player state.
type PlayerView struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Color         string         `json:"color,omitempty"`
	Space         string         `json:"space"`
	Money         int            `json:"money"`
	TimeSpent     int            `json:"time_spent"`
	ProjectScope  int            `json:"project_scope"`
	Hand          map[string]int `json:"hand"`
	SkipTurns     int            `json:"skip_turns,omitempty"`
	CanReRoll     bool           `json:"can_reroll,omitempty"`
	ActiveEffects int            `json:"active_effects,omitempty"`
}

// ChoiceView is the client-facing pending prompt.
type ChoiceView struct {
	ChoiceID string              `json:"choice_id"`
	PlayerID string              `json:"player_id"`
	Kind     string              `json:"kind"`
	Prompt   string              `json:"prompt"`
	Options  []game.ChoiceOption `json:"options"`
}

// GameView is the client-facing game state.
type GameView struct {
	GameID        string       `json:"game_id"`
	Turn          int          `json:"turn"`
	CurrentPlayer string       `json:"current_player"`
	Ended         bool         `json:"ended"`
	WinnerID      string       `json:"winner_id,omitempty"`
	EndReason     string       `json:"end_reason,omitempty"`
	Players       []PlayerView `json:"players"`
	PendingChoice *ChoiceView  `json:"pending_choice,omitempty"`
}

// Hub routes clients to game sessions and fans session events out to the
// clients watching each game.
type Hub struct {
	logger  *zap.Logger
	manager *session.Manager
	history *History

	register   chan *Client
	unregister chan *Client

	mu       sync.RWMutex
	clients  map[*Client]bool
	attached map[string]bool
}

// NewHub builds a hub over the session manager.
func NewHub(manager *session.Manager, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger:     logger,
		manager:    manager,
		history:    NewHistory(0),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		attached:   make(map[string]bool),
	}
}

// Run owns client registration until the context ends.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered",
				zap.String("game_id", client.gameID),
				zap.String("player_id", client.playerID))

		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// broadcastToGame sends raw bytes to every client bound to the game.
func (h *Hub) broadcastToGame(gameID string, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		if client.gameID != gameID {
			continue
		}
		select {
		case client.send <- message:
		default:
			// Slow client; drop the frame rather than block the game.
		}
	}
}

// attachSession forwards a session's event stream to its clients. Idempotent
// per game.
func (h *Hub) attachSession(sess *session.GameSession) {
	h.mu.Lock()
	if h.attached[sess.ID] {
		h.mu.Unlock()
		return
	}
	h.attached[sess.ID] = true
	h.mu.Unlock()

	sess.Bus.Subscribe(func(evt events.Event) {
		h.history.Append(evt)
		payload, err := json.Marshal(outMessage{
			Type:   "event",
			GameID: evt.GameID,
			Data:   evt,
		})
		if err != nil {
			return
		}
		h.broadcastToGame(evt.GameID, payload)
	})
}

// sendHistory pushes the recorded event tail of a game to one client. The
// live stream may overlap the tail; clients dedup by event id.
func (h *Hub) sendHistory(client *Client, gameID string) {
	tail := h.history.Recent(gameID)
	if len(tail) == 0 {
		return
	}
	payload, err := json.Marshal(outMessage{
		Type:   "event_history",
		GameID: gameID,
		Data:   tail,
	})
	if err != nil {
		return
	}
	select {
	case client.send <- payload:
	default:
	}
}

// broadcastState pushes a fresh snapshot of the game to its clients.
func (h *Hub) broadcastState(sess *session.GameSession) {
	view := h.buildView(sess)
	payload, err := json.Marshal(outMessage{
		Type:   "game_state",
		GameID: sess.ID,
		Data:   view,
	})
	if err != nil {
		h.logger.Error("state marshal failed", zap.Error(err))
		return
	}
	h.broadcastToGame(sess.ID, payload)
}

func (h *Hub) buildView(sess *session.GameSession) GameView {
	state := sess.Store.Snapshot()
	view := GameView{
		GameID:        state.GameID,
		Turn:          state.Turn,
		CurrentPlayer: state.CurrentPlayer,
		Ended:         state.Ended,
		WinnerID:      state.WinnerID,
		EndReason:     state.EndReason,
	}
	for _, id := range state.PlayerOrder {
		p := state.Players[id]
		if p == nil {
			continue
		}
		hand := make(map[string]int, len(p.Hand))
		for t, ids := range p.Hand {
			hand[string(t)] = len(ids)
		}
		scope, _ := sess.Ledger.ProjectScope(id)
		view.Players = append(view.Players, PlayerView{
			ID:            p.ID,
			Name:          p.Name,
			Color:         p.Color,
			Space:         p.CurrentSpace,
			Money:         p.Money,
			TimeSpent:     p.TimeSpent,
			ProjectScope:  scope,
			Hand:          hand,
			SkipTurns:     p.TurnModifiers.SkipTurns,
			CanReRoll:     p.TurnModifiers.CanReRoll,
			ActiveEffects: len(p.ActiveEffects),
		})
	}
	if pc := state.PendingChoice; pc != nil {
		view.PendingChoice = &ChoiceView{
			ChoiceID: pc.ChoiceID,
			PlayerID: pc.PlayerID,
			Kind:     pc.Kind,
			Prompt:   pc.Prompt,
			Options:  pc.Options,
		}
	}
	return view
}
