package cards

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/groundbreak/groundbreak-server-go/internal/game"
)

// BuildCardEffects translates a card definition into the effects the engine
// processes when the card resolves. Loan issuance is not an effect; the
// inventory issues loans directly before processing.
func BuildCardEffects(card *Card, playerID string) []game.Effect {
	source := "card:" + card.ID
	var effects []game.Effect

	if card.PercentOfScope > 0 {
		effects = append(effects, game.ResourceChange{
			PlayerID:          playerID,
			Resource:          game.ResourceMoney,
			PercentageOfScope: card.PercentOfScope,
			SourceType:        "fee",
			Source:            source,
			Reason:            fmt.Sprintf("%s: %d%% of project scope", card.Name, card.PercentOfScope),
		})
	}
	if card.Money != 0 {
		effects = append(effects, game.ResourceChange{
			PlayerID: playerID,
			Resource: game.ResourceMoney,
			Amount:   card.Money,
			Source:   source,
			Reason:   card.Name,
		})
	}
	if card.Time != 0 {
		// Positive time on a card is a cost, so the effect amount flips.
		effects = append(effects, game.ResourceChange{
			PlayerID: playerID,
			Resource: game.ResourceTime,
			Amount:   -card.Time,
			Source:   source,
			Reason:   card.Name,
		})
	}
	if card.DrawSpec != "" {
		if count, cardType, err := ParseDrawSpec(card.DrawSpec); err == nil {
			effects = append(effects, game.CardDraw{
				PlayerID: playerID,
				CardType: cardType,
				Count:    count,
				Source:   source,
				Reason:   card.Name,
			})
		}
	}
	if card.DiscardSpec != "" {
		if count, cardType, err := ParseDrawSpec(card.DiscardSpec); err == nil {
			effects = append(effects, game.CardDiscard{
				PlayerID: playerID,
				CardType: cardType,
				Count:    count,
				Source:   source,
				Reason:   card.Name,
			})
		}
	}
	if card.SkipTurns > 0 {
		effects = append(effects, game.TurnControl{
			PlayerID:  playerID,
			Action:    game.TurnActionSkipTurn,
			SkipTurns: card.SkipTurns,
			Source:    source,
			Reason:    card.Name,
		})
	}
	if card.GrantReroll {
		effects = append(effects, game.TurnControl{
			PlayerID: playerID,
			Action:   game.TurnActionGrantReroll,
			Source:   source,
			Reason:   card.Name,
		})
	}
	if card.FeeDescription != "" {
		effects = append(effects, game.FeeDeduction{
			PlayerID:       playerID,
			FeeDescription: card.FeeDescription,
			Source:         source,
			Reason:         card.Name,
		})
	}
	return effects
}

// ParseDrawSpec interprets compact card notations like "2 W" or "1 B" as a
// count and a card type.
func ParseDrawSpec(spec string) (int, game.CardType, error) {
	fields := strings.Fields(spec)
	if len(fields) != 2 {
		return 0, "", fmt.Errorf("invalid card spec %q", spec)
	}
	count, err := strconv.Atoi(fields[0])
	if err != nil || count <= 0 {
		return 0, "", fmt.Errorf("invalid card count in %q", spec)
	}
	cardType := game.CardType(strings.ToUpper(fields[1]))
	if !game.ValidCardType(cardType) {
		return 0, "", fmt.Errorf("invalid card type in %q", spec)
	}
	return count, cardType, nil
}
