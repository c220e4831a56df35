package cards

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/groundbreak/groundbreak-server-go/internal/game"
	"github.com/groundbreak/groundbreak-server-go/internal/game/events"
)

// EffectProcessor runs a card's effects through the full pipeline. Bound
// after construction because the engine and the inventory reference each
// other.
type EffectProcessor interface {
	ProcessCardEffects(ctx context.Context, effects []game.Effect, ectx game.EffectContext, meta *game.CardMetadata) game.BatchEffectResult
}

// Wallet covers the ledger operations card play needs.
type Wallet interface {
	SpendMoney(playerID string, amount int, source, reason, sourceType string) error
	IssueLoan(playerID string, amount int, rate float64, source string) (game.Loan, error)
}

// PhaseSource answers which project phase a space belongs to.
type PhaseSource interface {
	SpacePhase(spaceName string) string
}

// Inventory manages the shared decks and every player's hand. Hands live in
// the game store; the inventory owns decks and discard piles.
type Inventory struct {
	logger  *zap.Logger
	store   *game.Store
	catalog *Catalog
	bus     *events.Bus

	mu       sync.Mutex
	decks    map[game.CardType][]string
	discards map[game.CardType][]string
	rng      *rand.Rand

	processor EffectProcessor
	wallet    Wallet
	phases    PhaseSource
}

// NewInventory builds decks from the catalog and shuffles them with the
// given seed.
func NewInventory(store *game.Store, catalog *Catalog, seed int64, bus *events.Bus, logger *zap.Logger) *Inventory {
	if logger == nil {
		logger = zap.NewNop()
	}
	inv := &Inventory{
		logger:   logger,
		store:    store,
		catalog:  catalog,
		bus:      bus,
		decks:    make(map[game.CardType][]string),
		discards: make(map[game.CardType][]string),
		rng:      rand.New(rand.NewSource(seed)),
	}
	for _, t := range []game.CardType{game.CardTypeWork, game.CardTypeBank, game.CardTypeExpeditor, game.CardTypeLife, game.CardTypeInvestor} {
		deck := catalog.IDsByType(t)
		inv.rng.Shuffle(len(deck), func(i, j int) {
			deck[i], deck[j] = deck[j], deck[i]
		})
		inv.decks[t] = deck
	}
	return inv
}

// SetEffectProcessor completes the inventory's wiring to the engine.
func (inv *Inventory) SetEffectProcessor(p EffectProcessor) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.processor = p
}

// SetWallet attaches the ledger operations used for card costs and loans.
func (inv *Inventory) SetWallet(w Wallet) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.wallet = w
}

// SetPhaseSource attaches phase lookups for play restrictions.
func (inv *Inventory) SetPhaseSource(p PhaseSource) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.phases = p
}

func (inv *Inventory) effectProcessor() EffectProcessor {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.processor
}

// DrawCards moves up to count cards from the deck into the player's hand.
// An exhausted deck recycles its discard pile; if both are empty the draw
// comes up short without failing.
func (inv *Inventory) DrawCards(playerID string, cardType game.CardType, count int, source, reason string) ([]string, error) {
	if count <= 0 {
		return nil, fmt.Errorf("draw count must be positive, got %d", count)
	}
	if !game.ValidCardType(cardType) {
		return nil, fmt.Errorf("invalid card type %q", cardType)
	}
	if _, err := inv.store.GetPlayer(playerID); err != nil {
		return nil, err
	}

	inv.mu.Lock()
	drawn := make([]string, 0, count)
	for len(drawn) < count {
		if len(inv.decks[cardType]) == 0 {
			inv.recycleDiscardsLocked(cardType)
			if len(inv.decks[cardType]) == 0 {
				break
			}
		}
		deck := inv.decks[cardType]
		drawn = append(drawn, deck[0])
		inv.decks[cardType] = deck[1:]
	}
	inv.mu.Unlock()

	if len(drawn) == 0 {
		inv.logger.Debug("deck exhausted",
			zap.String("card_type", string(cardType)),
			zap.String("player_id", playerID))
		return []string{}, nil
	}

	err := inv.store.UpdatePlayer(playerID, func(p *game.Player) {
		p.Hand[cardType] = append(p.Hand[cardType], drawn...)
	})
	if err != nil {
		return nil, err
	}

	inv.logger.Info("cards drawn",
		zap.String("player_id", playerID),
		zap.String("card_type", string(cardType)),
		zap.Int("count", len(drawn)),
		zap.String("source", source))
	if inv.bus != nil {
		evt := events.NewWithAmount(events.EventCardsDrawn, inv.store.GameID(), playerID, source, len(drawn))
		evt.Description = reason
		evt.Metadata["card_type"] = string(cardType)
		inv.bus.Publish(evt)
	}
	return drawn, nil
}

// recycleDiscardsLocked shuffles the discard pile back into the deck.
// Caller holds mu.
func (inv *Inventory) recycleDiscardsLocked(cardType game.CardType) {
	pile := inv.discards[cardType]
	if len(pile) == 0 {
		return
	}
	inv.rng.Shuffle(len(pile), func(i, j int) {
		pile[i], pile[j] = pile[j], pile[i]
	})
	inv.decks[cardType] = pile
	inv.discards[cardType] = nil
	inv.logger.Debug("recycled discard pile",
		zap.String("card_type", string(cardType)),
		zap.Int("cards", len(pile)))
}

// DiscardCards removes the named cards from the player's hand onto the
// discard piles. Every card must actually be in the hand.
func (inv *Inventory) DiscardCards(playerID string, cardIDs []string, source, reason string) error {
	if len(cardIDs) == 0 {
		return nil
	}
	player, err := inv.store.GetPlayer(playerID)
	if err != nil {
		return err
	}

	byType := make(map[game.CardType][]string)
	for _, id := range cardIDs {
		def, ok := inv.catalog.Get(id)
		if !ok {
			return fmt.Errorf("unknown card %s", id)
		}
		t := def.CardType()
		remaining, removed := removeFirst(player.Hand[t], id)
		if !removed {
			return fmt.Errorf("card %s is not in %s's hand", id, player.Name)
		}
		player.Hand[t] = remaining
		byType[t] = append(byType[t], id)
	}

	err = inv.store.UpdatePlayer(playerID, func(p *game.Player) {
		for t, ids := range byType {
			for _, id := range ids {
				p.Hand[t], _ = removeFirst(p.Hand[t], id)
			}
		}
	})
	if err != nil {
		return err
	}

	inv.mu.Lock()
	for t, ids := range byType {
		inv.discards[t] = append(inv.discards[t], ids...)
	}
	inv.mu.Unlock()

	inv.logger.Info("cards discarded",
		zap.String("player_id", playerID),
		zap.Int("count", len(cardIDs)),
		zap.String("source", source))
	if inv.bus != nil {
		evt := events.NewWithAmount(events.EventCardsDiscarded, inv.store.GameID(), playerID, source, len(cardIDs))
		evt.Description = reason
		inv.bus.Publish(evt)
	}
	return nil
}

// PlayerCards returns the player's hand of one card type.
func (inv *Inventory) PlayerCards(playerID string, cardType game.CardType) ([]string, error) {
	player, err := inv.store.GetPlayer(playerID)
	if err != nil {
		return nil, err
	}
	return player.Hand[cardType], nil
}

// ActivateCard moves a card from the hand into play until the expiration
// turn.
func (inv *Inventory) ActivateCard(playerID, cardID string, duration int) error {
	if duration <= 0 {
		return fmt.Errorf("activation duration must be positive, got %d", duration)
	}
	def, ok := inv.catalog.Get(cardID)
	if !ok {
		return fmt.Errorf("unknown card %s", cardID)
	}
	player, err := inv.store.GetPlayer(playerID)
	if err != nil {
		return err
	}
	if _, in := removeFirst(player.Hand[def.CardType()], cardID); !in {
		return fmt.Errorf("card %s is not in %s's hand", cardID, player.Name)
	}

	expiration := inv.store.CurrentTurn() + duration
	err = inv.store.UpdatePlayer(playerID, func(p *game.Player) {
		p.Hand[def.CardType()], _ = removeFirst(p.Hand[def.CardType()], cardID)
		p.ActiveCards = append(p.ActiveCards, game.ActiveCard{
			CardID:         cardID,
			ExpirationTurn: expiration,
		})
	})
	if err != nil {
		return err
	}

	inv.logger.Info("card activated",
		zap.String("player_id", playerID),
		zap.String("card_id", cardID),
		zap.Int("expiration_turn", expiration))
	if inv.bus != nil {
		evt := events.NewWithAmount(events.EventCardActivated, inv.store.GameID(), playerID, cardID, duration)
		evt.Description = def.Name
		inv.bus.Publish(evt)
	}
	return nil
}

// ExpireActiveCards removes in-play cards whose expiration turn has passed,
// for every player. Called once per round.
func (inv *Inventory) ExpireActiveCards() {
	turn := inv.store.CurrentTurn()
	for _, playerID := range inv.store.PlayerIDs() {
		var expired []game.ActiveCard
		_ = inv.store.UpdatePlayer(playerID, func(p *game.Player) {
			kept := p.ActiveCards[:0]
			for _, ac := range p.ActiveCards {
				if ac.ExpirationTurn <= turn {
					expired = append(expired, ac)
					continue
				}
				kept = append(kept, ac)
			}
			p.ActiveCards = kept
		})
		for _, ac := range expired {
			inv.logger.Info("active card expired",
				zap.String("player_id", playerID),
				zap.String("card_id", ac.CardID),
				zap.Int("turn", turn))
			if inv.bus != nil {
				inv.bus.Publish(events.New(events.EventCardExpired, inv.store.GameID(), playerID, ac.CardID))
			}
			inv.mu.Lock()
			if def, ok := inv.catalog.Get(ac.CardID); ok {
				inv.discards[def.CardType()] = append(inv.discards[def.CardType()], ac.CardID)
			}
			inv.mu.Unlock()
		}
	}
}

// PlayCard is the normal play path: validate, charge the cost, apply the
// card's effects and finalize it out of the hand.
func (inv *Inventory) PlayCard(ctx context.Context, playerID, cardID string) error {
	if inv.store.IsEnded() {
		return fmt.Errorf("game has ended")
	}
	def, ok := inv.catalog.Get(cardID)
	if !ok {
		return fmt.Errorf("unknown card %s", cardID)
	}
	player, err := inv.store.GetPlayer(playerID)
	if err != nil {
		return err
	}
	if _, in := removeFirst(player.Hand[def.CardType()], cardID); !in {
		return fmt.Errorf("card %s is not in %s's hand", cardID, player.Name)
	}
	if def.Phase != "" && inv.phases != nil {
		phase := inv.phases.SpacePhase(player.CurrentSpace)
		if phase != def.Phase {
			return fmt.Errorf("card %s can only be played during the %s phase (currently %s)", def.Name, def.Phase, phase)
		}
	}
	if def.Cost > 0 {
		if inv.wallet == nil {
			return fmt.Errorf("no wallet attached for card cost")
		}
		if err := inv.wallet.SpendMoney(playerID, def.Cost, "card:"+cardID, "Played "+def.Name, ""); err != nil {
			return err
		}
	}

	if err := inv.ApplyCardEffects(ctx, playerID, cardID); err != nil {
		return err
	}
	if err := inv.FinalizePlayedCard(playerID, cardID); err != nil {
		return err
	}

	if inv.bus != nil {
		evt := events.New(events.EventCardPlayed, inv.store.GameID(), playerID, cardID)
		evt.Description = def.Name
		inv.bus.Publish(evt)
	}
	return nil
}

// ApplyCardEffects issues the card's loan, if any, then runs its effects
// through the engine's card pipeline.
func (inv *Inventory) ApplyCardEffects(ctx context.Context, playerID, cardID string) error {
	processor := inv.effectProcessor()
	if processor == nil {
		return fmt.Errorf("effect processor not attached")
	}
	def, ok := inv.catalog.Get(cardID)
	if !ok {
		return fmt.Errorf("unknown card %s", cardID)
	}

	if def.LoanAmount > 0 {
		if inv.wallet == nil {
			return fmt.Errorf("no wallet attached for loan card %s", cardID)
		}
		if _, err := inv.wallet.IssueLoan(playerID, def.LoanAmount, def.LoanRate, "card:"+cardID); err != nil {
			return err
		}
	}

	effects := BuildCardEffects(def, playerID)
	if len(effects) == 0 {
		return nil
	}
	ectx := game.EffectContext{
		Source:       "card:" + cardID,
		PlayerID:     playerID,
		TriggerEvent: game.TriggerCardPlay,
	}
	res := processor.ProcessCardEffects(ctx, effects, ectx, def.Metadata())
	if !res.Success {
		return fmt.Errorf("card %s effects failed: %s", cardID, strings.Join(res.Errors, "; "))
	}
	return nil
}

// FinalizePlayedCard moves a played card out of the hand onto the discard
// pile.
func (inv *Inventory) FinalizePlayedCard(playerID, cardID string) error {
	def, ok := inv.catalog.Get(cardID)
	if !ok {
		return fmt.Errorf("unknown card %s", cardID)
	}
	player, err := inv.store.GetPlayer(playerID)
	if err != nil {
		return err
	}
	if _, in := removeFirst(player.Hand[def.CardType()], cardID); !in {
		return fmt.Errorf("card %s is not in %s's hand", cardID, player.Name)
	}
	err = inv.store.UpdatePlayer(playerID, func(p *game.Player) {
		p.Hand[def.CardType()], _ = removeFirst(p.Hand[def.CardType()], cardID)
	})
	if err != nil {
		return err
	}
	inv.mu.Lock()
	inv.discards[def.CardType()] = append(inv.discards[def.CardType()], cardID)
	inv.mu.Unlock()
	return nil
}

// TransferCard moves a card between hands, used when negotiated deals
// include cards.
func (inv *Inventory) TransferCard(fromID, toID, cardID string) error {
	def, ok := inv.catalog.Get(cardID)
	if !ok {
		return fmt.Errorf("unknown card %s", cardID)
	}
	from, err := inv.store.GetPlayer(fromID)
	if err != nil {
		return err
	}
	if _, in := removeFirst(from.Hand[def.CardType()], cardID); !in {
		return fmt.Errorf("card %s is not in %s's hand", cardID, from.Name)
	}
	if _, err := inv.store.GetPlayer(toID); err != nil {
		return err
	}

	if err := inv.store.UpdatePlayer(fromID, func(p *game.Player) {
		p.Hand[def.CardType()], _ = removeFirst(p.Hand[def.CardType()], cardID)
	}); err != nil {
		return err
	}
	if err := inv.store.UpdatePlayer(toID, func(p *game.Player) {
		p.Hand[def.CardType()] = append(p.Hand[def.CardType()], cardID)
	}); err != nil {
		return err
	}

	inv.logger.Info("card transferred",
		zap.String("from", fromID),
		zap.String("to", toID),
		zap.String("card_id", cardID))
	if inv.bus != nil {
		evt := events.New(events.EventCardTransfer, inv.store.GameID(), toID, cardID)
		evt.Metadata["from"] = fromID
		inv.bus.Publish(evt)
	}
	return nil
}

// WorkValue sums the work cost of the player's work cards. This is the
// player's live project scope.
func (inv *Inventory) WorkValue(playerID string) (int, error) {
	player, err := inv.store.GetPlayer(playerID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, id := range player.Hand[game.CardTypeWork] {
		if def, ok := inv.catalog.Get(id); ok {
			total += def.WorkCost
		}
	}
	return total, nil
}

// DeckSize reports how many cards remain in one deck.
func (inv *Inventory) DeckSize(cardType game.CardType) int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return len(inv.decks[cardType])
}

func removeFirst(ids []string, id string) ([]string, bool) {
	for i, have := range ids {
		if have == id {
			out := make([]string, 0, len(ids)-1)
			out = append(out, ids[:i]...)
			out = append(out, ids[i+1:]...)
			return out, true
		}
	}
	return ids, false
}
