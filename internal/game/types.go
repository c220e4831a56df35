package game

// CardType identifies one of the five card decks.
type CardType string

const (
	CardTypeWork      CardType = "W" // work scope cards
	CardTypeBank      CardType = "B" // bank loan cards
	CardTypeExpeditor CardType = "E" // expeditor cards
	CardTypeLife      CardType = "L" // life event cards
	CardTypeInvestor  CardType = "I" // investor loan cards
)

// ValidCardType reports whether t names a known deck.
func ValidCardType(t CardType) bool {
	switch t {
	case CardTypeWork, CardTypeBank, CardTypeExpeditor, CardTypeLife, CardTypeInvestor:
		return true
	}
	return false
}

// Resource identifies a mutable player resource pool.
type Resource string

const (
	ResourceMoney Resource = "MONEY"
	ResourceTime  Resource = "TIME"
)

// Project phases, derived from the phase of the space a player occupies.
const (
	PhaseSetup        = "SETUP"
	PhaseOwner        = "OWNER"
	PhaseFunding      = "FUNDING"
	PhaseDesign       = "DESIGN"
	PhaseRegulatory   = "REGULATORY"
	PhaseConstruction = "CONSTRUCTION"
	PhaseEnd          = "END"
)

// Spaces with engine-level semantics. The full board is data supplied by the
// caller; only these names are hardwired into rules.
const (
	SpaceOwnerFundInitiation = "OWNER-FUND-INITIATION"
	SpaceFinish              = "FINISH"
)

// Turn control actions.
const (
	TurnActionSkipTurn    = "SKIP_TURN"
	TurnActionGrantReroll = "GRANT_REROLL"
)

// Negotiation responses.
const (
	NegotiationAccept  = "ACCEPT"
	NegotiationDecline = "DECLINE"
	NegotiationCounter = "COUNTER"
)

// Card durations as they appear in card metadata.
const (
	DurationImmediate = "Immediate"
	DurationTurns     = "Turns"
	DurationPermanent = "Permanent"
)

// Design fee pressure: once cumulative design fees reach this share of the
// project scope the project is no longer viable during design.
const designFeeCapPercent = 20

// Batch execution limits.
const (
	maxBatchEffects    = 100 // hard cap on effects processed per top-level batch
	batchWarnThreshold = 80  // log a warning when a batch grows past this
	maxRecursionDepth  = 10  // nested sub-batches beyond this fail outright
)

// CardMetadata carries the card fields the effect pipeline branches on.
// The card inventory owns full card definitions; the engine only needs
// duration and targeting.
type CardMetadata struct {
	CardID        string
	CardName      string
	Duration      string // Immediate, Turns or Permanent
	DurationCount int    // number of turns when Duration is Turns
	Target        string // target rule, empty means Self
}

// Durational reports whether effects of this card are stored for later turns
// instead of being executed immediately.
func (m *CardMetadata) Durational() bool {
	return m != nil && m.Duration == DurationTurns && m.DurationCount > 0
}

// ChoiceOption is one selectable option in a player prompt.
type ChoiceOption struct {
	ID    string
	Label string
}

// NegotiationOffer is the transferable content of a negotiation round.
type NegotiationOffer struct {
	Money   int
	Time    int
	CardIDs []string
}

// NegotiationOutcome reports the result of a negotiation operation.
type NegotiationOutcome struct {
	Success       bool
	Message       string
	NegotiationID string
}
