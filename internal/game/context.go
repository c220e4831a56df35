package game

// TriggerEvent names the game occurrence that produced a batch of effects.
type TriggerEvent string

const (
	TriggerCardPlay     TriggerEvent = "CARD_PLAY"
	TriggerSpaceEntry   TriggerEvent = "SPACE_ENTRY"
	TriggerSpaceExit    TriggerEvent = "SPACE_EXIT"
	TriggerDiceRoll     TriggerEvent = "DICE_ROLL"
	TriggerTurnStart    TriggerEvent = "TURN_START"
	TriggerTurnEnd      TriggerEvent = "TURN_END"
	TriggerActiveEffect TriggerEvent = "ACTIVE_EFFECT"
)

// EffectContext carries the provenance of an effect through processing.
// It is passed by value; the With helpers return modified copies so nested
// stages never mutate their caller's context.
type EffectContext struct {
	// Source describes where the effects came from, e.g. "card:E029",
	// "space:OWNER-FUND-INITIATION" or "active:W004".
	Source string
	// PlayerID is the player the batch primarily concerns. Payload player
	// ids take precedence when present.
	PlayerID string
	// TriggerEvent is the occurrence that produced the batch.
	TriggerEvent TriggerEvent
	// DiceRoll is the roll attached to the trigger; 0 means no roll was made.
	DiceRoll int
	// Metadata carries free-form annotations for logging and diagnostics.
	Metadata map[string]string
}

// WithSource returns a copy of the context with a replaced source.
func (c EffectContext) WithSource(source string) EffectContext {
	c.Source = source
	return c
}

// WithSourceSuffix returns a copy of the context whose source gains a
// provenance suffix, e.g. ":targeted".
func (c EffectContext) WithSourceSuffix(suffix string) EffectContext {
	c.Source += suffix
	return c
}

// ForPlayer returns a copy of the context retargeted at another player.
func (c EffectContext) ForPlayer(playerID string) EffectContext {
	c.PlayerID = playerID
	return c
}

// HasDiceRoll reports whether a dice roll was attached to the trigger.
func (c EffectContext) HasDiceRoll() bool {
	return c.DiceRoll > 0
}
