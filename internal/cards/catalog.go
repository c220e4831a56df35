// Package cards owns card definitions, decks and the card play lifecycle.
package cards

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/groundbreak/groundbreak-server-go/internal/game"
)

// Card is one card definition. Decks may hold several copies of the same
// definition.
type Card struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	Description string  `json:"description,omitempty"`
	Copies      int     `json:"copies,omitempty"`
	Cost        int     `json:"cost,omitempty"`
	Phase       string  `json:"phase,omitempty"`
	WorkCost    int     `json:"work_cost,omitempty"`
	Money       int     `json:"money,omitempty"`
	Time        int     `json:"time,omitempty"`
	LoanAmount  int     `json:"loan_amount,omitempty"`
	LoanRate    float64 `json:"loan_rate,omitempty"`
	// PercentOfScope charges a design fee computed from the player's live
	// project scope when the card resolves.
	PercentOfScope int    `json:"percent_of_scope,omitempty"`
	DrawSpec       string `json:"draw_spec,omitempty"`
	DiscardSpec    string `json:"discard_spec,omitempty"`
	SkipTurns      int    `json:"skip_turns,omitempty"`
	GrantReroll    bool   `json:"grant_reroll,omitempty"`
	FeeDescription string `json:"fee_description,omitempty"`
	Target         string `json:"target,omitempty"`
	Duration       string `json:"duration,omitempty"`
	DurationCount  int    `json:"duration_count,omitempty"`
}

// CardType converts the raw type field.
func (c *Card) CardType() game.CardType {
	return game.CardType(c.Type)
}

// Metadata builds the pipeline metadata for this card.
func (c *Card) Metadata() *game.CardMetadata {
	return &game.CardMetadata{
		CardID:        c.ID,
		CardName:      c.Name,
		Duration:      c.Duration,
		DurationCount: c.DurationCount,
		Target:        c.Target,
	}
}

// Catalog is an immutable, validated set of card definitions.
type Catalog struct {
	cards  map[string]*Card
	byType map[game.CardType][]string
}

// NewCatalog validates the definitions and indexes them by id and type.
func NewCatalog(defs []Card) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("catalog has no cards")
	}
	c := &Catalog{
		cards:  make(map[string]*Card, len(defs)),
		byType: make(map[game.CardType][]string),
	}
	for i := range defs {
		card := defs[i]
		if card.ID == "" {
			return nil, fmt.Errorf("card %d has no id", i)
		}
		if !game.ValidCardType(game.CardType(card.Type)) {
			return nil, fmt.Errorf("card %s has invalid type %q", card.ID, card.Type)
		}
		if _, dup := c.cards[card.ID]; dup {
			return nil, fmt.Errorf("duplicate card id %s", card.ID)
		}
		if card.Copies <= 0 {
			card.Copies = 1
		}
		c.cards[card.ID] = &card
		c.byType[card.CardType()] = append(c.byType[card.CardType()], card.ID)
	}
	return c, nil
}

// Load reads a catalog from a JSON file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading card catalog: %w", err)
	}
	var defs []Card
	if err := json.Unmarshal(data, &defs); err != nil {
		return nil, fmt.Errorf("parsing card catalog %s: %w", path, err)
	}
	return NewCatalog(defs)
}

// Get looks up a card definition by id.
func (c *Catalog) Get(id string) (*Card, bool) {
	card, ok := c.cards[id]
	return card, ok
}

// IDsByType returns the definition ids of one card type, expanded per copy
// count, in catalog order.
func (c *Catalog) IDsByType(t game.CardType) []string {
	var out []string
	for _, id := range c.byType[t] {
		for i := 0; i < c.cards[id].Copies; i++ {
			out = append(out, id)
		}
	}
	return out
}

// Size returns the number of distinct definitions.
func (c *Catalog) Size() int {
	return len(c.cards)
}
