package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

func init() {
	// ActiveEffect.EffectData and ConditionalRange.Effects hold interface
	// values, so every payload type must be registered for gob.
	gob.Register(ResourceChange{})
	gob.Register(CardDraw{})
	gob.Register(CardDiscard{})
	gob.Register(Choice{})
	gob.Register(Log{})
	gob.Register(PlayerMovement{})
	gob.Register(TurnControl{})
	gob.Register(CardActivation{})
	gob.Register(EffectGroupTargeted{})
	gob.Register(RecalculateScope{})
	gob.Register(ConditionalEffect{})
	gob.Register(ChoiceOfEffects{})
	gob.Register(PlayCard{})
	gob.Register(DurationStored{})
	gob.Register(InitiateNegotiation{})
	gob.Register(NegotiationResponse{})
	gob.Register(PlayerAgreementRequired{})
	gob.Register(FeeDeduction{})
}

// SerializationChecksum is a deterministic fingerprint of a game state,
// used to guard against divergent states across persistence round trips.
type SerializationChecksum struct {
	Hash      string // SHA-256 hash of the deterministic representation
	Timestamp string // when the checksum was computed
	Version   int    // serialization version
}

// ComputeChecksum generates a deterministic checksum of the game state.
// The representation sorts all maps by key so the hash is independent of map
// iteration order.
func (gs *GameState) ComputeChecksum() (*SerializationChecksum, error) {
	data := gs.buildDeterministicRepresentation()

	hash := sha256.New()
	if _, err := hash.Write([]byte(data)); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}

	return &SerializationChecksum{
		Hash:      hex.EncodeToString(hash.Sum(nil)),
		Timestamp: time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
		Version:   1,
	}, nil
}

// buildDeterministicRepresentation creates a canonical string form of the
// game state independent of map iteration order.
func (gs *GameState) buildDeterministicRepresentation() string {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("GAME:%s|%d|%s|%t|%s|%s\n",
		gs.GameID,
		gs.Turn,
		gs.CurrentPlayer,
		gs.Ended,
		gs.WinnerID,
		gs.EndReason,
	))

	playerIDs := make([]string, 0, len(gs.Players))
	for id := range gs.Players {
		playerIDs = append(playerIDs, id)
	}
	sort.Strings(playerIDs)

	for _, id := range playerIDs {
		p := gs.Players[id]
		buf.WriteString(fmt.Sprintf("PLAYER:%s|%s|%s|%d|%d|%d|%d|%t\n",
			id,
			p.Name,
			p.CurrentSpace,
			p.Money,
			p.TimeSpent,
			p.DesignFeesPaid,
			p.TurnModifiers.SkipTurns,
			p.TurnModifiers.CanReRoll,
		))

		spaces := make([]string, 0, len(p.VisitCounts))
		for space := range p.VisitCounts {
			spaces = append(spaces, space)
		}
		sort.Strings(spaces)
		for _, space := range spaces {
			buf.WriteString(fmt.Sprintf("  VISIT:%s=%d\n", space, p.VisitCounts[space]))
		}

		for _, loan := range p.Loans {
			buf.WriteString(fmt.Sprintf("  LOAN:%s|%d|%.4f|%d\n", loan.ID, loan.Amount, loan.Rate, loan.StartTurn))
		}

		handTypes := make([]string, 0, len(p.Hand))
		for t := range p.Hand {
			handTypes = append(handTypes, string(t))
		}
		sort.Strings(handTypes)
		for _, t := range handTypes {
			ids := append([]string(nil), p.Hand[CardType(t)]...)
			sort.Strings(ids)
			buf.WriteString(fmt.Sprintf("  HAND:%s=%s\n", t, strings.Join(ids, ",")))
		}

		for _, ac := range p.ActiveCards {
			buf.WriteString(fmt.Sprintf("  ACTIVE_CARD:%s|%d\n", ac.CardID, ac.ExpirationTurn))
		}

		// Active effects keep insertion order; the sweep depends on it.
		for _, ae := range p.ActiveEffects {
			buf.WriteString(fmt.Sprintf("  ACTIVE_EFFECT:%s|%s|%s|%d|%d\n",
				ae.EffectID, ae.SourceCardID, ae.EffectType, ae.RemainingDuration, ae.StartTurn))
		}
	}

	buf.WriteString("PLAYER_ORDER:")
	buf.WriteString(strings.Join(gs.PlayerOrder, ","))
	buf.WriteString("\n")

	if gs.PendingChoice != nil {
		buf.WriteString(fmt.Sprintf("PENDING_CHOICE:%s|%s|%s\n",
			gs.PendingChoice.ChoiceID, gs.PendingChoice.PlayerID, gs.PendingChoice.Kind))
	}

	return buf.String()
}

// VerifyChecksum reports whether the stored checksum matches the state.
func (gs *GameState) VerifyChecksum(expected *SerializationChecksum) (bool, error) {
	computed, err := gs.ComputeChecksum()
	if err != nil {
		return false, fmt.Errorf("failed to compute checksum: %w", err)
	}
	return computed.Hash == expected.Hash, nil
}

// SerializeToBytes encodes the game state with gob for persistence.
func (gs *GameState) SerializeToBytes() ([]byte, error) {
	var buf bytes.Buffer
	encoder := gob.NewEncoder(&buf)
	if err := encoder.Encode(gs); err != nil {
		return nil, fmt.Errorf("failed to encode game state: %w", err)
	}
	return buf.Bytes(), nil
}

// DeserializeFromBytes decodes a gob-encoded game state.
func DeserializeFromBytes(data []byte) (*GameState, error) {
	var gs GameState
	decoder := gob.NewDecoder(bytes.NewBuffer(data))
	if err := decoder.Decode(&gs); err != nil {
		return nil, fmt.Errorf("failed to decode game state: %w", err)
	}
	return &gs, nil
}

// ValidateSerializationRoundtrip checks that a state survives encode/decode
// without drift by comparing checksums.
func ValidateSerializationRoundtrip(gs *GameState) error {
	original, err := gs.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute original checksum: %w", err)
	}

	data, err := gs.SerializeToBytes()
	if err != nil {
		return fmt.Errorf("failed to serialize: %w", err)
	}

	decoded, err := DeserializeFromBytes(data)
	if err != nil {
		return fmt.Errorf("failed to deserialize: %w", err)
	}

	restored, err := decoded.ComputeChecksum()
	if err != nil {
		return fmt.Errorf("failed to compute restored checksum: %w", err)
	}

	if original.Hash != restored.Hash {
		return fmt.Errorf("checksum mismatch after roundtrip: %s != %s", original.Hash, restored.Hash)
	}
	return nil
}
