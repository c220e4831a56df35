// Package ledger is the only place player money and time are mutated. Every
// movement carries a source and reason so the event stream doubles as a
// transaction log.
package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groundbreak/groundbreak-server-go/internal/game"
	"github.com/groundbreak/groundbreak-server-go/internal/game/events"
)

// WorkValuer reports the combined cost of a player's committed work. The
// cards package implements it; the ledger never caches the answer.
type WorkValuer interface {
	WorkValue(playerID string) (int, error)
}

// Spend source types that may push a balance below zero. Ordinary spending
// is rejected when funds are short; obligations are not.
var overdraftSourceTypes = map[string]bool{
	"fee":           true,
	"penalty":       true,
	"loan_interest": true,
}

// Ledger applies resource changes to the game store and publishes the
// corresponding events.
type Ledger struct {
	logger *zap.Logger
	store  *game.Store
	work   WorkValuer
	bus    *events.Bus
}

// New builds a ledger over the store. work may be nil in games without
// project scope; scope queries then report zero.
func New(store *game.Store, work WorkValuer, bus *events.Bus, logger *zap.Logger) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger{
		logger: logger,
		store:  store,
		work:   work,
		bus:    bus,
	}
}

// AddMoney credits the player.
func (l *Ledger) AddMoney(playerID string, amount int, source, reason string) error {
	if amount < 0 {
		return fmt.Errorf("add amount must not be negative, got %d", amount)
	}
	if amount == 0 {
		return nil
	}
	err := l.store.UpdatePlayer(playerID, func(p *game.Player) {
		p.Money += amount
	})
	if err != nil {
		return err
	}
	l.logger.Debug("money added",
		zap.String("player_id", playerID),
		zap.Int("amount", amount),
		zap.String("source", source),
		zap.String("reason", reason))
	l.publishMoney(playerID, source, reason, amount)
	return nil
}

// SpendMoney debits the player. Spends classed as obligations (fees,
// penalties, loan interest) may overdraw the balance; anything else fails
// when funds are short.
func (l *Ledger) SpendMoney(playerID string, amount int, source, reason, sourceType string) error {
	if amount < 0 {
		return fmt.Errorf("spend amount must not be negative, got %d", amount)
	}
	if amount == 0 {
		return nil
	}
	player, err := l.store.GetPlayer(playerID)
	if err != nil {
		return err
	}
	if !overdraftSourceTypes[sourceType] && player.Money < amount {
		return fmt.Errorf("insufficient funds: %s has $%d, needs $%d", player.Name, player.Money, amount)
	}
	err = l.store.UpdatePlayer(playerID, func(p *game.Player) {
		p.Money -= amount
	})
	if err != nil {
		return err
	}
	l.logger.Debug("money spent",
		zap.String("player_id", playerID),
		zap.Int("amount", amount),
		zap.String("source", source),
		zap.String("source_type", sourceType),
		zap.String("reason", reason))
	l.publishMoney(playerID, source, reason, -amount)
	return nil
}

// AddTime gives time back, reducing the player's accumulated time spent.
// The accumulator never goes below zero.
func (l *Ledger) AddTime(playerID string, amount int, source, reason string) error {
	if amount < 0 {
		return fmt.Errorf("add amount must not be negative, got %d", amount)
	}
	if amount == 0 {
		return nil
	}
	err := l.store.UpdatePlayer(playerID, func(p *game.Player) {
		p.TimeSpent -= amount
		if p.TimeSpent < 0 {
			p.TimeSpent = 0
		}
	})
	if err != nil {
		return err
	}
	l.publishTime(playerID, source, reason, -amount)
	return nil
}

// SpendTime adds to the player's accumulated time spent.
func (l *Ledger) SpendTime(playerID string, amount int, source, reason string) error {
	if amount < 0 {
		return fmt.Errorf("spend amount must not be negative, got %d", amount)
	}
	if amount == 0 {
		return nil
	}
	err := l.store.UpdatePlayer(playerID, func(p *game.Player) {
		p.TimeSpent += amount
	})
	if err != nil {
		return err
	}
	l.publishTime(playerID, source, reason, amount)
	return nil
}

// ProjectScope computes the player's current project scope from their work.
func (l *Ledger) ProjectScope(playerID string) (int, error) {
	if l.work == nil {
		return 0, nil
	}
	return l.work.WorkValue(playerID)
}

// OutstandingPrincipal sums the player's open loan amounts.
func (l *Ledger) OutstandingPrincipal(playerID string) (int, error) {
	player, err := l.store.GetPlayer(playerID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, loan := range player.Loans {
		total += loan.Amount
	}
	return total, nil
}

// RecordDesignFee adds to the player's cumulative design fee total.
func (l *Ledger) RecordDesignFee(playerID string, amount int) error {
	if amount < 0 {
		return fmt.Errorf("design fee must not be negative, got %d", amount)
	}
	return l.store.UpdatePlayer(playerID, func(p *game.Player) {
		p.DesignFeesPaid += amount
	})
}

// DesignFeeTotal reports the player's cumulative design fees.
func (l *Ledger) DesignFeeTotal(playerID string) (int, error) {
	player, err := l.store.GetPlayer(playerID)
	if err != nil {
		return 0, err
	}
	return player.DesignFeesPaid, nil
}

// IssueLoan credits the principal and puts the loan on the player's books.
func (l *Ledger) IssueLoan(playerID string, amount int, rate float64, source string) (game.Loan, error) {
	if amount <= 0 {
		return game.Loan{}, fmt.Errorf("loan amount must be positive, got %d", amount)
	}
	if rate < 0 {
		return game.Loan{}, fmt.Errorf("loan rate must not be negative, got %v", rate)
	}
	loan := game.Loan{
		ID:        uuid.NewString(),
		Amount:    amount,
		Rate:      rate,
		StartTurn: l.store.CurrentTurn(),
	}
	err := l.store.UpdatePlayer(playerID, func(p *game.Player) {
		p.Money += amount
		p.Loans = append(p.Loans, loan)
	})
	if err != nil {
		return game.Loan{}, err
	}
	l.logger.Info("loan issued",
		zap.String("player_id", playerID),
		zap.String("loan_id", loan.ID),
		zap.Int("amount", amount),
		zap.Float64("rate", rate))
	if l.bus != nil {
		evt := events.NewWithAmount(events.EventLoanIssued, l.store.GameID(), playerID, source, amount)
		evt.Metadata["loan_id"] = loan.ID
		l.bus.Publish(evt)
	}
	l.publishMoney(playerID, source, "Loan principal", amount)
	return loan, nil
}

// ChargeLoanInterest assesses one round of interest on every open loan. The
// charge is an obligation and may overdraw the balance.
func (l *Ledger) ChargeLoanInterest(playerID string) (int, error) {
	player, err := l.store.GetPlayer(playerID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, loan := range player.Loans {
		interest := int(float64(loan.Amount) * loan.Rate / 100.0)
		if interest <= 0 {
			continue
		}
		if err := l.SpendMoney(playerID, interest, "loan:"+loan.ID, "Loan interest", "loan_interest"); err != nil {
			return total, err
		}
		total += interest
	}
	if total > 0 {
		l.logger.Info("loan interest charged",
			zap.String("player_id", playerID),
			zap.Int("total", total))
	}
	return total, nil
}

func (l *Ledger) publishMoney(playerID, source, reason string, delta int) {
	if l.bus == nil {
		return
	}
	evt := events.NewWithAmount(events.EventMoneyChanged, l.store.GameID(), playerID, source, delta)
	evt.Description = reason
	l.bus.Publish(evt)
}

func (l *Ledger) publishTime(playerID, source, reason string, delta int) {
	if l.bus == nil {
		return
	}
	evt := events.NewWithAmount(events.EventTimeChanged, l.store.GameID(), playerID, source, delta)
	evt.Description = reason
	l.bus.Publish(evt)
}
