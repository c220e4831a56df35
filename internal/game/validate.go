package game

// ValidateEffect performs structural validation of a single effect.
// Validation is intentionally shallow: it checks payload shape, not game
// state. Tags without rules pass, so new variants fail at dispatch rather
// than at the gate.
func (e *EffectEngine) ValidateEffect(effect Effect, ectx EffectContext) bool {
	if effect == nil {
		return false
	}
	switch eff := effect.(type) {
	case ResourceChange:
		if eff.Resource != ResourceMoney && eff.Resource != ResourceTime {
			return false
		}
		if eff.PercentageOfScope < 0 || eff.PercentageOfScope > 100 {
			return false
		}
		if eff.PercentageOfScope > 0 && eff.Resource != ResourceMoney {
			return false
		}
		return true
	case CardDraw:
		return ValidCardType(eff.CardType) && eff.Count > 0
	case CardDiscard:
		if len(eff.CardIDs) > 0 {
			return true
		}
		return ValidCardType(eff.CardType) && eff.Count > 0
	case Choice:
		if eff.Prompt == "" || len(eff.Options) == 0 {
			return false
		}
		for _, opt := range eff.Options {
			if opt.ID == "" {
				return false
			}
		}
		return true
	case PlayerMovement:
		return eff.DestinationSpace != ""
	case TurnControl:
		return eff.Action != ""
	case CardActivation:
		return eff.CardID != "" && eff.Duration > 0
	case EffectGroupTargeted:
		return eff.TargetRule != "" && eff.Template != nil
	case ConditionalEffect:
		if len(eff.Ranges) == 0 {
			return false
		}
		for _, r := range eff.Ranges {
			if r.Min > r.Max {
				return false
			}
		}
		return true
	case ChoiceOfEffects:
		if eff.Prompt == "" || len(eff.Options) == 0 {
			return false
		}
		for _, opt := range eff.Options {
			if opt.Label == "" {
				return false
			}
		}
		return true
	case PlayCard:
		return eff.CardID != ""
	default:
		// LOG, RECALCULATE_SCOPE, DURATION_STORED, negotiation effects,
		// PLAYER_AGREEMENT_REQUIRED and FEE_DEDUCTION have no structural
		// requirements.
		return true
	}
}

// ValidateEffects reports whether every effect in the batch passes
// validation. An empty batch is valid.
func (e *EffectEngine) ValidateEffects(effects []Effect, ectx EffectContext) bool {
	for _, effect := range effects {
		if !e.ValidateEffect(effect, ectx) {
			return false
		}
	}
	return true
}
