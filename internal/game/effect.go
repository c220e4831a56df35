package game

import "fmt"

// EffectType identifies one effect variant.
type EffectType string

const (
	EffectTypeResourceChange          EffectType = "RESOURCE_CHANGE"
	EffectTypeCardDraw                EffectType = "CARD_DRAW"
	EffectTypeCardDiscard             EffectType = "CARD_DISCARD"
	EffectTypeChoice                  EffectType = "CHOICE"
	EffectTypeLog                     EffectType = "LOG"
	EffectTypePlayerMovement          EffectType = "PLAYER_MOVEMENT"
	EffectTypeTurnControl             EffectType = "TURN_CONTROL"
	EffectTypeCardActivation          EffectType = "CARD_ACTIVATION"
	EffectTypeGroupTargeted           EffectType = "EFFECT_GROUP_TARGETED"
	EffectTypeRecalculateScope        EffectType = "RECALCULATE_SCOPE"
	EffectTypeConditional             EffectType = "CONDITIONAL_EFFECT"
	EffectTypeChoiceOfEffects         EffectType = "CHOICE_OF_EFFECTS"
	EffectTypePlayCard                EffectType = "PLAY_CARD"
	EffectTypeDurationStored          EffectType = "DURATION_STORED"
	EffectTypeInitiateNegotiation     EffectType = "INITIATE_NEGOTIATION"
	EffectTypeNegotiationResponse     EffectType = "NEGOTIATION_RESPONSE"
	EffectTypePlayerAgreementRequired EffectType = "PLAYER_AGREEMENT_REQUIRED"
	EffectTypeFeeDeduction            EffectType = "FEE_DEDUCTION"
)

// Effect is the closed set of game state mutations the engine can process.
// Only the payload types in this file implement it; dispatch is an exhaustive
// type switch, so adding a variant means touching Clone, validation and the
// engine together.
type Effect interface {
	Type() EffectType
	// Clone returns a structurally independent deep copy of the payload.
	Clone() Effect
	isEffect()
}

// LogLevel selects the severity of a LOG effect.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// ResourceChange adjusts a player's money or time pool.
// When PercentageOfScope is set the amount is recomputed live as a design fee
// against the player's current project scope.
type ResourceChange struct {
	PlayerID          string
	Resource          Resource
	Amount            int
	PercentageOfScope int    // 1..100, money only; 0 means use Amount as-is
	SourceType        string // ledger source class: card, space, fee, loan_interest, penalty
	Source            string
	Reason            string
}

func (ResourceChange) Type() EffectType { return EffectTypeResourceChange }
func (e ResourceChange) Clone() Effect  { return e }
func (ResourceChange) isEffect()        {}

// CardDraw draws count cards of one type for a player.
type CardDraw struct {
	PlayerID string
	CardType CardType
	Count    int
	Source   string
	Reason   string
}

func (CardDraw) Type() EffectType { return EffectTypeCardDraw }
func (e CardDraw) Clone() Effect  { return e }
func (CardDraw) isEffect()        {}

// CardDiscard removes cards from a player's hand, either by explicit ids or
// by type and count resolved against the live hand at execution time.
type CardDiscard struct {
	PlayerID string
	CardIDs  []string
	CardType CardType
	Count    int
	Source   string
	Reason   string
}

func (CardDiscard) Type() EffectType { return EffectTypeCardDiscard }
func (e CardDiscard) Clone() Effect {
	e.CardIDs = cloneStrings(e.CardIDs)
	return e
}
func (CardDiscard) isEffect() {}

// Choice presents a blocking prompt to a player and records the selection.
type Choice struct {
	PlayerID string
	Kind     string // prompt category, e.g. GENERAL, TARGET_SELECTION, MOVEMENT
	Prompt   string
	Options  []ChoiceOption
	Source   string
}

func (Choice) Type() EffectType { return EffectTypeChoice }
func (e Choice) Clone() Effect {
	e.Options = append([]ChoiceOption(nil), e.Options...)
	return e
}
func (Choice) isEffect() {}

// Log emits a structured game log line. Always succeeds.
type Log struct {
	Message string
	Level   LogLevel
	Source  string
}

func (Log) Type() EffectType { return EffectTypeLog }
func (e Log) Clone() Effect  { return e }
func (Log) isEffect()        {}

// PlayerMovement relocates a player to a named space.
type PlayerMovement struct {
	PlayerID         string
	DestinationSpace string
	Source           string
	Reason           string
}

func (PlayerMovement) Type() EffectType { return EffectTypePlayerMovement }
func (e PlayerMovement) Clone() Effect  { return e }
func (PlayerMovement) isEffect()        {}

// TurnControl manipulates turn order state: skipped turns or re-roll grants.
// Unrecognized actions are logged and treated as successful no-ops.
type TurnControl struct {
	PlayerID  string
	Action    string
	SkipTurns int // number of turns to skip for SKIP_TURN
	Source    string
	Reason    string
}

func (TurnControl) Type() EffectType { return EffectTypeTurnControl }
func (e TurnControl) Clone() Effect  { return e }
func (TurnControl) isEffect()        {}

// CardActivation marks a card active for a number of turns.
type CardActivation struct {
	PlayerID string
	CardID   string
	Duration int
	Source   string
}

func (CardActivation) Type() EffectType { return EffectTypeCardActivation }
func (e CardActivation) Clone() Effect  { return e }
func (CardActivation) isEffect()        {}

// EffectGroupTargeted fans a template effect out to every player resolved by
// the target rule, interactively when the rule calls for a choice.
type EffectGroupTargeted struct {
	TargetRule string
	Template   Effect
	Prompt     string
	Source     string
}

func (EffectGroupTargeted) Type() EffectType { return EffectTypeGroupTargeted }
func (e EffectGroupTargeted) Clone() Effect {
	if e.Template != nil {
		e.Template = e.Template.Clone()
	}
	return e
}
func (EffectGroupTargeted) isEffect() {}

// RecalculateScope is retained for compatibility with older card data.
// Project scope is always computed live, so processing it is a no-op.
type RecalculateScope struct {
	PlayerID string
}

func (RecalculateScope) Type() EffectType { return EffectTypeRecalculateScope }
func (e RecalculateScope) Clone() Effect  { return e }
func (RecalculateScope) isEffect()        {}

// ConditionalRange maps an inclusive dice range to the effects it unlocks.
type ConditionalRange struct {
	Min     int
	Max     int
	Effects []Effect
}

// ConditionalEffect selects one branch by the dice roll in the context.
// The first matching range wins; no match is a successful no-op.
type ConditionalEffect struct {
	PlayerID string
	Ranges   []ConditionalRange
	Source   string
}

func (ConditionalEffect) Type() EffectType { return EffectTypeConditional }
func (e ConditionalEffect) Clone() Effect {
	ranges := make([]ConditionalRange, len(e.Ranges))
	for i, r := range e.Ranges {
		ranges[i] = ConditionalRange{Min: r.Min, Max: r.Max, Effects: cloneEffects(r.Effects)}
	}
	e.Ranges = ranges
	return e
}
func (ConditionalEffect) isEffect() {}

// EffectOption is one selectable bundle in a CHOICE_OF_EFFECTS prompt.
type EffectOption struct {
	Label   string
	Effects []Effect
}

// ChoiceOfEffects lets a player pick one of several effect bundles.
type ChoiceOfEffects struct {
	PlayerID string
	Prompt   string
	Options  []EffectOption
	Source   string
}

func (ChoiceOfEffects) Type() EffectType { return EffectTypeChoiceOfEffects }
func (e ChoiceOfEffects) Clone() Effect {
	options := make([]EffectOption, len(e.Options))
	for i, opt := range e.Options {
		options[i] = EffectOption{Label: opt.Label, Effects: cloneEffects(opt.Effects)}
	}
	e.Options = options
	return e
}
func (ChoiceOfEffects) isEffect() {}

// PlayCard plays a card on a player's behalf. AutoPlayed marks cards played
// by the engine itself (funding draws) whose effects have not yet been
// applied through the normal play path.
type PlayCard struct {
	PlayerID   string
	CardID     string
	AutoPlayed bool
	Source     string
}

func (PlayCard) Type() EffectType { return EffectTypePlayCard }
func (e PlayCard) Clone() Effect  { return e }
func (PlayCard) isEffect()        {}

// DurationStored is the placeholder recorded in batch results when a card's
// effects were stored for later turns instead of executed.
type DurationStored struct {
	PlayerID     string
	SourceCardID string
	Description  string
}

func (DurationStored) Type() EffectType { return EffectTypeDurationStored }
func (e DurationStored) Clone() Effect  { return e }
func (DurationStored) isEffect()        {}

// InitiateNegotiation opens a negotiation between two players.
type InitiateNegotiation struct {
	PlayerID  string
	PartnerID string
	Source    string
}

func (InitiateNegotiation) Type() EffectType { return EffectTypeInitiateNegotiation }
func (e InitiateNegotiation) Clone() Effect  { return e }
func (InitiateNegotiation) isEffect()        {}

// NegotiationResponse answers an open negotiation: accept, decline or counter.
type NegotiationResponse struct {
	PlayerID      string
	NegotiationID string
	Response      string
	Offer         *NegotiationOffer
	Source        string
}

func (NegotiationResponse) Type() EffectType { return EffectTypeNegotiationResponse }
func (e NegotiationResponse) Clone() Effect {
	if e.Offer != nil {
		offer := *e.Offer
		offer.CardIDs = cloneStrings(offer.CardIDs)
		e.Offer = &offer
	}
	return e
}
func (NegotiationResponse) isEffect() {}

// PlayerAgreementRequired collects an accept or decline from every player the
// target rule resolves to, through direct prompts.
type PlayerAgreementRequired struct {
	PlayerID   string // initiating player
	TargetRule string // defaults to all other players
	Prompt     string
	Source     string
}

func (PlayerAgreementRequired) Type() EffectType { return EffectTypePlayerAgreementRequired }
func (e PlayerAgreementRequired) Clone() Effect  { return e }
func (PlayerAgreementRequired) isEffect()        {}

// FeeDeduction charges a player a fee, preferably through a structured rule.
// FeeDescription is the legacy free-text form still present in older card and
// space data; it is parsed only when Rule is nil.
type FeeDeduction struct {
	PlayerID       string
	Rule           *FeeRule
	FeeDescription string
	Source         string
	Reason         string
}

func (FeeDeduction) Type() EffectType { return EffectTypeFeeDeduction }
func (e FeeDeduction) Clone() Effect {
	if e.Rule != nil {
		rule := *e.Rule
		e.Rule = &rule
	}
	return e
}
func (FeeDeduction) isEffect() {}

// cloneEffects deep-copies a slice of effects.
func cloneEffects(effects []Effect) []Effect {
	if effects == nil {
		return nil
	}
	out := make([]Effect, len(effects))
	for i, e := range effects {
		if e != nil {
			out[i] = e.Clone()
		}
	}
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

// effectForPlayer deep-copies an effect and retargets it at the given player.
// Container effects are retargeted recursively so fan-out reaches nested
// payloads.
func effectForPlayer(effect Effect, playerID string) Effect {
	switch e := effect.Clone().(type) {
	case ResourceChange:
		e.PlayerID = playerID
		return e
	case CardDraw:
		e.PlayerID = playerID
		return e
	case CardDiscard:
		e.PlayerID = playerID
		return e
	case Choice:
		e.PlayerID = playerID
		return e
	case Log:
		return e
	case PlayerMovement:
		e.PlayerID = playerID
		return e
	case TurnControl:
		e.PlayerID = playerID
		return e
	case CardActivation:
		e.PlayerID = playerID
		return e
	case EffectGroupTargeted:
		return e
	case RecalculateScope:
		e.PlayerID = playerID
		return e
	case ConditionalEffect:
		e.PlayerID = playerID
		for i, r := range e.Ranges {
			for j, sub := range r.Effects {
				e.Ranges[i].Effects[j] = effectForPlayer(sub, playerID)
			}
		}
		return e
	case ChoiceOfEffects:
		e.PlayerID = playerID
		for i, opt := range e.Options {
			for j, sub := range opt.Effects {
				e.Options[i].Effects[j] = effectForPlayer(sub, playerID)
			}
		}
		return e
	case PlayCard:
		e.PlayerID = playerID
		return e
	case DurationStored:
		e.PlayerID = playerID
		return e
	case InitiateNegotiation:
		e.PlayerID = playerID
		return e
	case NegotiationResponse:
		e.PlayerID = playerID
		return e
	case PlayerAgreementRequired:
		e.PlayerID = playerID
		return e
	case FeeDeduction:
		e.PlayerID = playerID
		return e
	default:
		return e
	}
}

// effectPlayerID extracts the payload's player id, empty when the variant has
// none.
func effectPlayerID(effect Effect) string {
	switch e := effect.(type) {
	case ResourceChange:
		return e.PlayerID
	case CardDraw:
		return e.PlayerID
	case CardDiscard:
		return e.PlayerID
	case Choice:
		return e.PlayerID
	case PlayerMovement:
		return e.PlayerID
	case TurnControl:
		return e.PlayerID
	case CardActivation:
		return e.PlayerID
	case RecalculateScope:
		return e.PlayerID
	case ConditionalEffect:
		return e.PlayerID
	case ChoiceOfEffects:
		return e.PlayerID
	case PlayCard:
		return e.PlayerID
	case DurationStored:
		return e.PlayerID
	case InitiateNegotiation:
		return e.PlayerID
	case NegotiationResponse:
		return e.PlayerID
	case PlayerAgreementRequired:
		return e.PlayerID
	case FeeDeduction:
		return e.PlayerID
	default:
		return ""
	}
}

// DescribeEffect renders a short human-readable summary of an effect, used in
// active-effect records and log lines.
func DescribeEffect(effect Effect) string {
	switch e := effect.(type) {
	case ResourceChange:
		if e.PercentageOfScope > 0 {
			return fmt.Sprintf("%s fee of %d%% of project scope", e.Resource, e.PercentageOfScope)
		}
		return fmt.Sprintf("%s %+d", e.Resource, e.Amount)
	case CardDraw:
		return fmt.Sprintf("draw %d %s card(s)", e.Count, e.CardType)
	case CardDiscard:
		if len(e.CardIDs) > 0 {
			return fmt.Sprintf("discard %d card(s)", len(e.CardIDs))
		}
		return fmt.Sprintf("discard %d %s card(s)", e.Count, e.CardType)
	case Choice:
		return fmt.Sprintf("choice: %s", e.Prompt)
	case Log:
		return e.Message
	case PlayerMovement:
		return fmt.Sprintf("move to %s", e.DestinationSpace)
	case TurnControl:
		return fmt.Sprintf("turn control: %s", e.Action)
	case CardActivation:
		return fmt.Sprintf("activate card %s for %d turn(s)", e.CardID, e.Duration)
	case EffectGroupTargeted:
		if e.Template != nil {
			return fmt.Sprintf("%s for %s", DescribeEffect(e.Template), e.TargetRule)
		}
		return fmt.Sprintf("targeted group for %s", e.TargetRule)
	case RecalculateScope:
		return "recalculate project scope"
	case ConditionalEffect:
		return fmt.Sprintf("conditional on dice roll (%d branches)", len(e.Ranges))
	case ChoiceOfEffects:
		return fmt.Sprintf("choice of %d effect bundles", len(e.Options))
	case PlayCard:
		return fmt.Sprintf("play card %s", e.CardID)
	case DurationStored:
		return e.Description
	case InitiateNegotiation:
		return "initiate negotiation"
	case NegotiationResponse:
		return fmt.Sprintf("negotiation response: %s", e.Response)
	case PlayerAgreementRequired:
		return fmt.Sprintf("agreement required: %s", e.Prompt)
	case FeeDeduction:
		if e.Rule != nil {
			return fmt.Sprintf("fee deduction (%s)", e.Rule.Kind)
		}
		return fmt.Sprintf("fee deduction: %s", e.FeeDescription)
	default:
		return string(effect.Type())
	}
}
