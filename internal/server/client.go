package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/groundbreak/groundbreak-server-go/internal/game"
	"github.com/groundbreak/groundbreak-server-go/internal/session"
)

// Client is one WebSocket connection, bound to a game after create or join.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	gameID   string
	playerID string
}

type createGamePayload struct {
	Players []game.PlayerSetup `json:"players"`
	Seed    int64              `json:"seed,omitempty"`
}

type actionPayload struct {
	CardID      string `json:"card_id,omitempty"`
	Destination string `json:"destination,omitempty"`
	ChoiceID    string `json:"choice_id,omitempty"`
	OptionID    string `json:"option_id,omitempty"`
}

// readPump consumes inbound messages until the connection drops.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError("", fmt.Sprintf("invalid message: %v", err))
			continue
		}
		c.handleMessage(ctx, msg)
	}
}

// writePump drains the send channel onto the wire.
func (c *Client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}
}

// handleMessage dispatches one inbound message. Game actions that can block
// on prompts run in their own goroutine so choice answers on this same
// connection still get through.
func (c *Client) handleMessage(ctx context.Context, msg WSMessage) {
	switch msg.Type {
	case "create_game":
		c.createGame(ctx, msg)
	case "join_game":
		c.joinGame(msg)
	case "resolve_choice":
		c.resolveChoice(msg)
	case "get_state":
		if sess, ok := c.session(); ok {
			c.hub.broadcastState(sess)
		}
	case "roll_dice", "use_reroll", "end_turn", "play_card", "move":
		sess, ok := c.session()
		if !ok {
			c.sendError(msg.Type, "not joined to a game")
			return
		}
		go c.runAction(ctx, sess, msg)
	default:
		c.sendError(msg.Type, fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

func (c *Client) createGame(ctx context.Context, msg WSMessage) {
	var payload createGamePayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		c.sendError(msg.Type, fmt.Sprintf("invalid create_game payload: %v", err))
		return
	}
	sess, err := c.hub.manager.CreateGame(ctx, payload.Players, payload.Seed)
	if err != nil {
		c.sendError(msg.Type, err.Error())
		return
	}
	c.gameID = sess.ID
	c.playerID = msg.PlayerID
	c.hub.attachSession(sess)

	if err := sess.Turns.Start(ctx); err != nil {
		c.hub.logger.Warn("failed to start game", zap.String("game_id", sess.ID), zap.Error(err))
	}
	c.hub.broadcastState(sess)
}

func (c *Client) joinGame(msg WSMessage) {
	sess, ok := c.hub.manager.Get(msg.GameID)
	if !ok {
		c.sendError(msg.Type, fmt.Sprintf("no game %s", msg.GameID))
		return
	}
	c.gameID = sess.ID
	c.playerID = msg.PlayerID
	c.hub.attachSession(sess)
	c.hub.sendHistory(c, sess.ID)
	c.hub.broadcastState(sess)
}

func (c *Client) resolveChoice(msg WSMessage) {
	sess, ok := c.session()
	if !ok {
		c.sendError(msg.Type, "not joined to a game")
		return
	}
	var payload actionPayload
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		c.sendError(msg.Type, fmt.Sprintf("invalid payload: %v", err))
		return
	}
	playerID := msg.PlayerID
	if playerID == "" {
		playerID = c.playerID
	}
	if err := sess.Choices.Resolve(payload.ChoiceID, playerID, payload.OptionID); err != nil {
		c.sendError(msg.Type, err.Error())
	}
}

// runAction executes one game action and pushes the resulting state.
func (c *Client) runAction(ctx context.Context, sess *session.GameSession, msg WSMessage) {
	playerID := msg.PlayerID
	if playerID == "" {
		playerID = c.playerID
	}
	var payload actionPayload
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			c.sendError(msg.Type, fmt.Sprintf("invalid payload: %v", err))
			return
		}
	}

	var err error
	switch msg.Type {
	case "roll_dice":
		var roll int
		roll, err = sess.Turns.RollDice(ctx, playerID)
		if err == nil {
			_, err = sess.Movement.ApplyDiceOutcome(ctx, playerID, roll)
		}
	case "use_reroll":
		var roll int
		roll, err = sess.Turns.UseReroll(ctx, playerID)
		if err == nil {
			_, err = sess.Movement.ApplyDiceOutcome(ctx, playerID, roll)
		}
	case "end_turn":
		_, err = sess.Turns.EndTurn(ctx, playerID)
	case "play_card":
		err = sess.Cards.PlayCard(ctx, playerID, payload.CardID)
	case "move":
		err = sess.Movement.MovePlayer(ctx, playerID, payload.Destination)
	}
	if err != nil {
		c.sendError(msg.Type, err.Error())
	}
	c.hub.broadcastState(sess)
}

func (c *Client) session() (*session.GameSession, bool) {
	if c.gameID == "" {
		return nil, false
	}
	return c.hub.manager.Get(c.gameID)
}

func (c *Client) sendError(action, message string) {
	payload, err := json.Marshal(outMessage{
		Type:   "error",
		GameID: c.gameID,
		Data:   map[string]string{"action": action, "message": message},
	})
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}
