package game

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/groundbreak/groundbreak-server-go/internal/game/events"
)

// ActiveEffect is a stored effect that re-fires at the end of each full turn
// round until its remaining duration runs out.
type ActiveEffect struct {
	EffectID          string
	SourceCardID      string
	EffectData        Effect
	RemainingDuration int
	StartTurn         int
	EffectType        EffectType
	Description       string
}

func (ae *ActiveEffect) clone() ActiveEffect {
	out := *ae
	if ae.EffectData != nil {
		out.EffectData = ae.EffectData.Clone()
	}
	return out
}

// AddActiveEffect stores a clone of the effect on the player for the given
// number of turns.
func (e *EffectEngine) AddActiveEffect(playerID string, effect Effect, sourceCardID string, duration int) error {
	if effect == nil {
		return fmt.Errorf("no effect to store")
	}
	if duration <= 0 {
		return fmt.Errorf("duration must be positive, got %d", duration)
	}

	entry := ActiveEffect{
		EffectID:          uuid.NewString(),
		SourceCardID:      sourceCardID,
		EffectData:        effect.Clone(),
		RemainingDuration: duration,
		StartTurn:         e.store.CurrentTurn(),
		EffectType:        effect.Type(),
		Description:       DescribeEffect(effect),
	}
	err := e.store.UpdatePlayer(playerID, func(p *Player) {
		p.ActiveEffects = append(p.ActiveEffects, entry)
	})
	if err != nil {
		return err
	}

	e.logger.Info("stored active effect",
		zap.String("player_id", playerID),
		zap.String("effect_id", entry.EffectID),
		zap.String("effect_type", string(entry.EffectType)),
		zap.String("source_card", sourceCardID),
		zap.Int("duration", duration))
	if e.bus != nil {
		evt := events.NewWithAmount(events.EventEffectStored, e.store.GameID(), playerID, sourceCardID, duration)
		evt.Description = entry.Description
		evt.Metadata["effect_id"] = entry.EffectID
		e.bus.Publish(evt)
	}
	return nil
}

// storeEffectsForDuration resolves the card's targets and stores a clone of
// every effect on each of them. Each stored effect is reported as a
// DURATION_STORED placeholder result.
func (e *EffectEngine) storeEffectsForDuration(ctx context.Context, effects []Effect, ectx EffectContext, meta *CardMetadata) BatchEffectResult {
	var batch BatchEffectResult

	rule := "Self"
	if meta.Target != "" {
		rule = meta.Target
	}
	targets, err := e.targets.ResolveTargets(ctx, ectx.PlayerID, rule)
	if err != nil {
		msg := fmt.Sprintf("Target resolution failed: %v", err)
		for _, effect := range effects {
			batch.add(failureResult(effect.Type(), msg))
		}
		return batch.finalize()
	}
	if len(targets) == 0 {
		return batch.finalize()
	}

	e.logger.Info("storing card effects for duration",
		zap.String("card_id", meta.CardID),
		zap.String("card", meta.CardName),
		zap.Int("effects", len(effects)),
		zap.Int("targets", len(targets)),
		zap.Int("duration", meta.DurationCount))

	for _, target := range targets {
		for _, effect := range effects {
			stored := effectForPlayer(effect, target)
			if err := e.AddActiveEffect(target, stored, meta.CardID, meta.DurationCount); err != nil {
				batch.add(failureResult(effect.Type(), err.Error()))
				continue
			}
			batch.add(successResult(EffectTypeDurationStored).
				WithData("sourceCardId", meta.CardID).
				WithData("playerId", target))
		}
	}
	return batch.finalize()
}

// ApplyActiveEffects re-executes every active effect stored on the player,
// then decrements and prunes. A failed re-execution leaves its entry
// untouched so it can try again next round.
func (e *EffectEngine) ApplyActiveEffects(ctx context.Context, playerID string) BatchEffectResult {
	var batch BatchEffectResult

	player, err := e.store.GetPlayer(playerID)
	if err != nil {
		batch.add(EffectResult{Success: false, Error: err.Error()})
		return batch.finalize()
	}
	if len(player.ActiveEffects) == 0 {
		return batch.finalize()
	}

	// Iterate over a snapshot; re-execution may itself store or expire
	// entries, so decrements are applied afterwards by effect id.
	succeeded := make([]string, 0, len(player.ActiveEffects))
	for i := range player.ActiveEffects {
		entry := player.ActiveEffects[i]
		sctx := EffectContext{
			Source:       "active:" + entry.SourceCardID,
			PlayerID:     playerID,
			TriggerEvent: TriggerActiveEffect,
		}
		sub := e.processBatch(ctx, []Effect{entry.EffectData}, sctx, 0)
		batch.merge(sub)
		if sub.Success {
			succeeded = append(succeeded, entry.EffectID)
		} else {
			e.logger.Warn("active effect re-execution failed, keeping entry",
				zap.String("player_id", playerID),
				zap.String("effect_id", entry.EffectID),
				zap.String("source_card", entry.SourceCardID),
				zap.Strings("errors", sub.Errors))
		}
	}

	if len(succeeded) > 0 {
		expired := e.decrementActiveEffects(playerID, succeeded)
		for _, entry := range expired {
			e.logger.Info("active effect expired",
				zap.String("player_id", playerID),
				zap.String("effect_id", entry.EffectID),
				zap.String("source_card", entry.SourceCardID))
			if e.bus != nil {
				evt := events.New(events.EventEffectExpired, e.store.GameID(), playerID, entry.SourceCardID)
				evt.Description = entry.Description
				evt.Metadata["effect_id"] = entry.EffectID
				e.bus.Publish(evt)
			}
		}
	}
	return batch.finalize()
}

// decrementActiveEffects reduces the remaining duration of the named entries
// and removes the ones that reach zero, returning the removed entries.
func (e *EffectEngine) decrementActiveEffects(playerID string, effectIDs []string) []ActiveEffect {
	decrement := make(map[string]bool, len(effectIDs))
	for _, id := range effectIDs {
		decrement[id] = true
	}

	var expired []ActiveEffect
	_ = e.store.UpdatePlayer(playerID, func(p *Player) {
		kept := p.ActiveEffects[:0]
		for i := range p.ActiveEffects {
			entry := p.ActiveEffects[i]
			if decrement[entry.EffectID] {
				entry.RemainingDuration--
				if entry.RemainingDuration <= 0 {
					expired = append(expired, entry)
					continue
				}
			}
			kept = append(kept, entry)
		}
		p.ActiveEffects = kept
	})
	return expired
}

// ProcessActiveEffectsForAllPlayers runs the turn-round sweep: every
// player's stored effects re-fire in player order.
func (e *EffectEngine) ProcessActiveEffectsForAllPlayers(ctx context.Context) BatchEffectResult {
	var batch BatchEffectResult
	for _, playerID := range e.store.PlayerIDs() {
		sub := e.ApplyActiveEffects(ctx, playerID)
		batch.merge(sub)
	}
	out := batch.finalize()
	if out.TotalEffects > 0 {
		e.logger.Info("active effect sweep complete",
			zap.Int("total", out.TotalEffects),
			zap.Int("successful", out.SuccessfulEffects),
			zap.Int("failed", out.FailedEffects))
	}
	return out
}
