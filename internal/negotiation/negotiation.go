// Package negotiation runs player-to-player deals: an initiation, any
// number of counter offers, and an accept or decline. Accepting applies the
// outstanding offer's transfers through the ledger and card inventory.
package negotiation

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groundbreak/groundbreak-server-go/internal/game"
	"github.com/groundbreak/groundbreak-server-go/internal/game/events"
)

// Exchange covers the ledger operations negotiated deals need.
type Exchange interface {
	AddMoney(playerID string, amount int, source, reason string) error
	SpendMoney(playerID string, amount int, source, reason, sourceType string) error
	AddTime(playerID string, amount int, source, reason string) error
	SpendTime(playerID string, amount int, source, reason string) error
}

// CardMover moves cards between hands.
type CardMover interface {
	TransferCard(fromID, toID, cardID string) error
}

const (
	stateOpen    = "OPEN"
	stateOffered = "OFFERED"
)

// tryAgainTimePenalty is the time cost of abandoning a turn to renegotiate.
const tryAgainTimePenalty = 1

type session struct {
	id          string
	initiatorID string
	partnerID   string
	state       string
	// offer is the outstanding proposal; offeredBy gives its contents away
	// when the other party accepts.
	offer     *game.NegotiationOffer
	offeredBy string
}

func (s *session) otherParty(playerID string) string {
	if playerID == s.initiatorID {
		return s.partnerID
	}
	return s.initiatorID
}

func (s *session) involves(playerID string) bool {
	return playerID == s.initiatorID || playerID == s.partnerID
}

// Service manages negotiation sessions for one game.
type Service struct {
	logger   *zap.Logger
	store    *game.Store
	exchange Exchange
	cards    CardMover
	bus      *events.Bus

	mu       sync.Mutex
	sessions map[string]*session
}

// NewService builds a negotiation service.
func NewService(store *game.Store, exchange Exchange, cards CardMover, bus *events.Bus, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		logger:   logger,
		store:    store,
		exchange: exchange,
		cards:    cards,
		bus:      bus,
		sessions: make(map[string]*session),
	}
}

// Initiate opens a negotiation between the initiator and a partner. With no
// partner named, a single opponent is picked automatically.
func (s *Service) Initiate(ctx context.Context, initiatorID, partnerID string) game.NegotiationOutcome {
	if _, err := s.store.GetPlayer(initiatorID); err != nil {
		return game.NegotiationOutcome{Message: err.Error()}
	}
	if partnerID == "" {
		others := s.otherPlayers(initiatorID)
		if len(others) != 1 {
			return game.NegotiationOutcome{Message: "negotiation requires a named partner"}
		}
		partnerID = others[0]
	}
	if partnerID == initiatorID {
		return game.NegotiationOutcome{Message: "cannot negotiate with yourself"}
	}
	if _, err := s.store.GetPlayer(partnerID); err != nil {
		return game.NegotiationOutcome{Message: err.Error()}
	}

	sess := &session{
		id:          uuid.NewString(),
		initiatorID: initiatorID,
		partnerID:   partnerID,
		state:       stateOpen,
	}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.logger.Info("negotiation started",
		zap.String("negotiation_id", sess.id),
		zap.String("initiator", initiatorID),
		zap.String("partner", partnerID))
	if s.bus != nil {
		evt := events.New(events.EventNegotiationStarted, s.store.GameID(), initiatorID, sess.id)
		evt.Metadata["partner"] = partnerID
		s.bus.Publish(evt)
	}
	return game.NegotiationOutcome{
		Success:       true,
		Message:       fmt.Sprintf("Negotiation opened with %s", s.store.PlayerName(partnerID)),
		NegotiationID: sess.id,
	}
}

// Respond advances a negotiation: COUNTER replaces the outstanding offer,
// ACCEPT applies it, DECLINE closes the session.
func (s *Service) Respond(ctx context.Context, negotiationID, playerID, response string, offer *game.NegotiationOffer) game.NegotiationOutcome {
	s.mu.Lock()
	sess, ok := s.sessions[negotiationID]
	s.mu.Unlock()
	if !ok {
		return game.NegotiationOutcome{Message: fmt.Sprintf("no negotiation %s", negotiationID)}
	}
	if !sess.involves(playerID) {
		return game.NegotiationOutcome{
			Message:       fmt.Sprintf("%s is not part of negotiation %s", playerID, negotiationID),
			NegotiationID: negotiationID,
		}
	}

	switch response {
	case game.NegotiationCounter:
		return s.counter(sess, playerID, offer)
	case game.NegotiationAccept:
		return s.accept(sess, playerID)
	case game.NegotiationDecline:
		return s.decline(sess, playerID)
	default:
		return game.NegotiationOutcome{
			Message:       fmt.Sprintf("unknown negotiation response %q", response),
			NegotiationID: negotiationID,
		}
	}
}

func (s *Service) counter(sess *session, playerID string, offer *game.NegotiationOffer) game.NegotiationOutcome {
	if offer == nil {
		return game.NegotiationOutcome{
			Message:       "counter requires an offer",
			NegotiationID: sess.id,
		}
	}
	s.mu.Lock()
	cp := *offer
	cp.CardIDs = append([]string(nil), offer.CardIDs...)
	sess.offer = &cp
	sess.offeredBy = playerID
	sess.state = stateOffered
	s.mu.Unlock()

	s.logger.Info("negotiation offer made",
		zap.String("negotiation_id", sess.id),
		zap.String("by", playerID),
		zap.Int("money", offer.Money),
		zap.Int("time", offer.Time),
		zap.Int("cards", len(offer.CardIDs)))
	if s.bus != nil {
		evt := events.NewWithAmount(events.EventNegotiationOffer, s.store.GameID(), playerID, sess.id, offer.Money)
		s.bus.Publish(evt)
	}
	return game.NegotiationOutcome{
		Success:       true,
		Message:       "Offer on the table",
		NegotiationID: sess.id,
	}
}

func (s *Service) accept(sess *session, playerID string) game.NegotiationOutcome {
	s.mu.Lock()
	offer := sess.offer
	offeredBy := sess.offeredBy
	s.mu.Unlock()

	if offer != nil {
		if offeredBy == playerID {
			return game.NegotiationOutcome{
				Message:       "cannot accept your own offer",
				NegotiationID: sess.id,
			}
		}
		if err := s.applyOffer(sess.id, offer, offeredBy, playerID); err != nil {
			return game.NegotiationOutcome{
				Message:       fmt.Sprintf("offer could not be applied: %v", err),
				NegotiationID: sess.id,
			}
		}
	}

	s.close(sess.id)
	s.logger.Info("negotiation accepted",
		zap.String("negotiation_id", sess.id),
		zap.String("by", playerID))
	if s.bus != nil {
		s.bus.Publish(events.New(events.EventNegotiationAccepted, s.store.GameID(), playerID, sess.id))
	}
	return game.NegotiationOutcome{
		Success:       true,
		Message:       "Deal accepted",
		NegotiationID: sess.id,
	}
}

func (s *Service) decline(sess *session, playerID string) game.NegotiationOutcome {
	s.close(sess.id)
	s.logger.Info("negotiation declined",
		zap.String("negotiation_id", sess.id),
		zap.String("by", playerID))
	if s.bus != nil {
		s.bus.Publish(events.New(events.EventNegotiationDeclined, s.store.GameID(), playerID, sess.id))
	}
	return game.NegotiationOutcome{
		Success:       true,
		Message:       "Negotiation declined",
		NegotiationID: sess.id,
	}
}

// applyOffer moves the offer's contents from the offering player to the
// accepting one. Money uses an ordinary spend, so an offer the player can no
// longer afford fails the accept.
func (s *Service) applyOffer(negotiationID string, offer *game.NegotiationOffer, fromID, toID string) error {
	source := "negotiation:" + negotiationID
	if offer.Money > 0 {
		if err := s.exchange.SpendMoney(fromID, offer.Money, source, "Negotiated payment", ""); err != nil {
			return err
		}
		if err := s.exchange.AddMoney(toID, offer.Money, source, "Negotiated payment"); err != nil {
			return err
		}
	}
	if offer.Time > 0 {
		// The offering player absorbs the delay, the receiver saves it.
		if err := s.exchange.SpendTime(fromID, offer.Time, source, "Negotiated delay"); err != nil {
			return err
		}
		if err := s.exchange.AddTime(toID, offer.Time, source, "Negotiated time savings"); err != nil {
			return err
		}
	}
	for _, cardID := range offer.CardIDs {
		if err := s.cards.TransferCard(fromID, toID, cardID); err != nil {
			return err
		}
	}
	return nil
}

// TryAgain abandons the current turn: working state reverts to the last
// committed snapshot and the player pays a time penalty on top.
func (s *Service) TryAgain(ctx context.Context, playerID string) error {
	if _, err := s.store.GetPlayer(playerID); err != nil {
		return err
	}
	s.store.RevertTurn()
	if err := s.exchange.SpendTime(playerID, tryAgainTimePenalty, "negotiation", "Renegotiation time penalty"); err != nil {
		return err
	}
	s.logger.Info("turn reverted for renegotiation",
		zap.String("player_id", playerID),
		zap.Int("time_penalty", tryAgainTimePenalty))
	return nil
}

func (s *Service) close(negotiationID string) {
	s.mu.Lock()
	delete(s.sessions, negotiationID)
	s.mu.Unlock()
}

func (s *Service) otherPlayers(playerID string) []string {
	var others []string
	for _, id := range s.store.PlayerIDs() {
		if id != playerID {
			others = append(others, id)
		}
	}
	return others
}

// OpenSessions reports how many negotiations are in flight.
func (s *Service) OpenSessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
