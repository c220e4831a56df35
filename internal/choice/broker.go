// Package choice turns effect-level prompts into pending choices a client
// can answer. CreateChoice blocks the calling effect until the answer
// arrives, which is what makes interactive effects synchronous from the
// engine's point of view.
package choice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groundbreak/groundbreak-server-go/internal/game"
	"github.com/groundbreak/groundbreak-server-go/internal/game/events"
)

// Broker mediates between blocked effects and whoever answers prompts.
type Broker struct {
	logger *zap.Logger
	store  *game.Store
	bus    *events.Bus

	mu      sync.Mutex
	pending map[string]chan string
}

// NewBroker builds a broker over the game store.
func NewBroker(store *game.Store, bus *events.Bus, logger *zap.Logger) *Broker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broker{
		logger:  logger,
		store:   store,
		bus:     bus,
		pending: make(map[string]chan string),
	}
}

// CreateChoice registers a prompt for the player and blocks until Resolve
// delivers an answer or the context is done. The answer is always the id of
// one of the offered options.
func (b *Broker) CreateChoice(ctx context.Context, playerID, kind, prompt string, options []game.ChoiceOption) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("choice requires at least one option")
	}
	if _, err := b.store.GetPlayer(playerID); err != nil {
		return "", err
	}

	choiceID := uuid.NewString()
	answer := make(chan string, 1)
	b.mu.Lock()
	b.pending[choiceID] = answer
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, choiceID)
		b.mu.Unlock()
		b.store.ClearPendingChoice()
	}()

	b.store.SetPendingChoice(&game.PendingChoice{
		ChoiceID:  choiceID,
		PlayerID:  playerID,
		Kind:      kind,
		Prompt:    prompt,
		Options:   append([]game.ChoiceOption(nil), options...),
		CreatedAt: time.Now(),
	})

	b.logger.Info("choice requested",
		zap.String("choice_id", choiceID),
		zap.String("player_id", playerID),
		zap.String("kind", kind),
		zap.String("prompt", prompt),
		zap.Int("options", len(options)))
	if b.bus != nil {
		evt := events.New(events.EventChoiceRequested, b.store.GameID(), playerID, kind)
		evt.Description = prompt
		evt.Metadata["choice_id"] = choiceID
		b.bus.Publish(evt)
	}

	select {
	case selected := <-answer:
		b.logger.Info("choice resolved",
			zap.String("choice_id", choiceID),
			zap.String("player_id", playerID),
			zap.String("selected", selected))
		if b.bus != nil {
			evt := events.New(events.EventChoiceResolved, b.store.GameID(), playerID, kind)
			evt.Metadata["choice_id"] = choiceID
			evt.Metadata["selected"] = selected
			b.bus.Publish(evt)
		}
		return selected, nil
	case <-ctx.Done():
		return "", fmt.Errorf("choice %s abandoned: %w", choiceID, ctx.Err())
	}
}

// Resolve answers a pending choice. The option must be one the prompt
// offered and the answer must come from the prompted player.
func (b *Broker) Resolve(choiceID, playerID, optionID string) error {
	pc := b.store.PendingChoice()
	if pc == nil || pc.ChoiceID != choiceID {
		return fmt.Errorf("no pending choice %s", choiceID)
	}
	if pc.PlayerID != playerID {
		return fmt.Errorf("choice %s belongs to %s", choiceID, pc.PlayerID)
	}
	valid := false
	for _, opt := range pc.Options {
		if opt.ID == optionID {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid option %q for choice %s", optionID, choiceID)
	}

	b.mu.Lock()
	answer, ok := b.pending[choiceID]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("no pending choice %s", choiceID)
	}
	select {
	case answer <- optionID:
		return nil
	default:
		return fmt.Errorf("choice %s already resolved", choiceID)
	}
}

// Pending returns the outstanding prompt, if any.
func (b *Broker) Pending() *game.PendingChoice {
	return b.store.PendingChoice()
}
