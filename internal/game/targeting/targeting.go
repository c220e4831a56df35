// Package targeting expands target rules into concrete player ids. The
// resolver only needs a roster and a way to prompt, so it stays independent
// of the game state machinery and is handed to the engine as an interface.
package targeting

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Rule is a canonical target rule.
type Rule string

const (
	RuleSelf              Rule = "SELF"
	RuleAllPlayers        Rule = "ALL_PLAYERS"
	RuleAllOtherPlayers   Rule = "ALL_OTHER_PLAYERS"
	RuleOtherPlayerChoice Rule = "OTHER_PLAYER_CHOICE"
)

// NormalizeRule maps the spellings found in card and space data onto
// canonical rules. The second return reports whether the spelling was
// recognized.
func NormalizeRule(raw string) (Rule, bool) {
	switch strings.TrimSpace(raw) {
	case "", "Self", "SELF":
		return RuleSelf, true
	case "ALL_PLAYERS", "All Players":
		return RuleAllPlayers, true
	case "ALL_OTHER_PLAYERS", "All Players-Self":
		return RuleAllOtherPlayers, true
	case "OTHER_PLAYER_CHOICE", "Choose Opponent", "Choose Player":
		return RuleOtherPlayerChoice, true
	default:
		return RuleSelf, false
	}
}

// Option is one selectable target shown to the choosing player.
type Option struct {
	ID    string
	Label string
}

// PromptFunc asks a player to pick one option and returns the chosen id. It
// blocks until the player answers or the context is done.
type PromptFunc func(ctx context.Context, playerID, prompt string, options []Option) (string, error)

// PlayerSource is the roster the resolver works against.
type PlayerSource interface {
	PlayerIDs() []string
	PlayerName(playerID string) string
}

// Resolver turns target rules into player ids, prompting when a rule calls
// for a choice.
type Resolver struct {
	logger  *zap.Logger
	players PlayerSource
	prompt  PromptFunc
}

// NewResolver builds a resolver. prompt may be nil when no interactive rules
// are expected; resolving OTHER_PLAYER_CHOICE without one is an error.
func NewResolver(players PlayerSource, prompt PromptFunc, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		logger:  logger,
		players: players,
		prompt:  prompt,
	}
}

// ResolveTargets expands the rule for the given source player. An empty
// result is not an error: rules about other players resolve to nothing in a
// solo game.
func (r *Resolver) ResolveTargets(ctx context.Context, sourcePlayerID, rawRule string) ([]string, error) {
	rule, known := NormalizeRule(rawRule)
	if !known {
		r.logger.Warn("unknown target rule, treating as self",
			zap.String("rule", rawRule),
			zap.String("player_id", sourcePlayerID))
	}

	switch rule {
	case RuleSelf:
		if sourcePlayerID == "" {
			return nil, fmt.Errorf("no source player for self targeting")
		}
		return []string{sourcePlayerID}, nil

	case RuleAllPlayers:
		return r.players.PlayerIDs(), nil

	case RuleAllOtherPlayers:
		return r.otherPlayers(sourcePlayerID), nil

	case RuleOtherPlayerChoice:
		return r.resolveOpponentChoice(ctx, sourcePlayerID)

	default:
		return nil, fmt.Errorf("unhandled target rule %q", rule)
	}
}

func (r *Resolver) otherPlayers(sourcePlayerID string) []string {
	all := r.players.PlayerIDs()
	others := make([]string, 0, len(all))
	for _, id := range all {
		if id != sourcePlayerID {
			others = append(others, id)
		}
	}
	return others
}

// resolveOpponentChoice prompts only when there is a real decision to make:
// no opponents resolves to nothing, a single opponent is selected
// automatically.
func (r *Resolver) resolveOpponentChoice(ctx context.Context, sourcePlayerID string) ([]string, error) {
	others := r.otherPlayers(sourcePlayerID)
	if len(others) == 0 {
		return nil, nil
	}
	if len(others) == 1 {
		r.logger.Info("single opponent selected automatically",
			zap.String("player_id", sourcePlayerID),
			zap.String("target", others[0]))
		return others, nil
	}
	if r.prompt == nil {
		return nil, fmt.Errorf("opponent choice requires a prompt handler")
	}

	options := make([]Option, len(others))
	for i, id := range others {
		options[i] = Option{ID: id, Label: r.players.PlayerName(id)}
	}
	selected, err := r.prompt(ctx, sourcePlayerID, "Choose a player to target", options)
	if err != nil {
		return nil, fmt.Errorf("opponent choice failed: %w", err)
	}
	for _, id := range others {
		if id == selected {
			return []string{selected}, nil
		}
	}
	return nil, fmt.Errorf("selected player %q is not a valid target", selected)
}

// DescribeTargets renders a target list for logs and prompts.
func (r *Resolver) DescribeTargets(playerIDs []string) string {
	if len(playerIDs) == 0 {
		return "no one"
	}
	names := make([]string, len(playerIDs))
	for i, id := range playerIDs {
		names[i] = r.players.PlayerName(id)
	}
	return strings.Join(names, ", ")
}
