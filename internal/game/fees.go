package game

import (
	"regexp"
	"strconv"
	"strings"
)

// FeeKind selects how a fee is computed.
type FeeKind string

const (
	// FeeKindTiered charges a rate that steps with the outstanding loan
	// principal: 1% up to $1.4M, 2% up to $2.75M, 3% above.
	FeeKindTiered FeeKind = "TIERED_PRINCIPAL"
	// FeeKindPercent charges a flat percentage of the outstanding principal.
	FeeKindPercent FeeKind = "PERCENT_OF_PRINCIPAL"
	// FeeKindFixed charges a fixed dollar amount.
	FeeKindFixed FeeKind = "FIXED"
	// FeeKindDice marks fees that depend on a dice outcome resolved
	// elsewhere; assessing one charges nothing.
	FeeKindDice FeeKind = "DICE_BASED"
)

// Loan principal thresholds for tiered fees.
const (
	feeTierOneMax = 1_400_000
	feeTierTwoMax = 2_750_000
)

// FeeRule is the structured form of a fee. Card and space data should carry
// one of these; free-text descriptions are parsed only as a fallback.
type FeeRule struct {
	Kind    FeeKind
	Percent float64 // for PERCENT_OF_PRINCIPAL
	Amount  int     // for FIXED
}

// Assess computes the fee in dollars against an outstanding loan principal.
func (r *FeeRule) Assess(principal int) int {
	if r == nil {
		return 0
	}
	switch r.Kind {
	case FeeKindTiered:
		rate := 3.0
		if principal <= feeTierOneMax {
			rate = 1.0
		} else if principal <= feeTierTwoMax {
			rate = 2.0
		}
		return int(float64(principal) * rate / 100.0)
	case FeeKindPercent:
		return int(float64(principal) * r.Percent / 100.0)
	case FeeKindFixed:
		return r.Amount
	case FeeKindDice:
		return 0
	}
	return 0
}

var (
	percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)
	dollarPattern  = regexp.MustCompile(`\$\s*([\d,]+(?:\.\d+)?)\s*([kKmM]?)`)
)

// ParseFeeDescription converts a legacy free-text fee description into a
// structured rule. Returns nil when the text cannot be interpreted; callers
// treat that as a fee of nothing rather than an error, matching how older
// data was handled.
func ParseFeeDescription(desc string) *FeeRule {
	text := strings.TrimSpace(desc)
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)

	if strings.Contains(lower, "dice") || strings.Contains(lower, "die roll") {
		return &FeeRule{Kind: FeeKindDice}
	}

	percents := percentPattern.FindAllStringSubmatch(text, -1)
	if len(percents) >= 2 {
		// Multiple rates in one description is the tiered principal fee.
		return &FeeRule{Kind: FeeKindTiered}
	}
	if len(percents) == 1 {
		pct, err := strconv.ParseFloat(percents[0][1], 64)
		if err == nil && pct > 0 {
			return &FeeRule{Kind: FeeKindPercent, Percent: pct}
		}
	}

	if m := dollarPattern.FindStringSubmatch(text); m != nil {
		raw := strings.ReplaceAll(m[1], ",", "")
		value, err := strconv.ParseFloat(raw, 64)
		if err == nil && value > 0 {
			switch strings.ToLower(m[2]) {
			case "k":
				value *= 1_000
			case "m":
				value *= 1_000_000
			}
			return &FeeRule{Kind: FeeKindFixed, Amount: int(value)}
		}
	}

	return nil
}
