// Command demo runs a scripted three-player game against the built-in card
// catalog and board, printing one line per turn. Player choices (opponent
// targeting and the like) are answered automatically with the first option,
// so a full game plays out without any input.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/groundbreak/groundbreak-server-go/internal/cards"
	"github.com/groundbreak/groundbreak-server-go/internal/config"
	"github.com/groundbreak/groundbreak-server-go/internal/game"
	"github.com/groundbreak/groundbreak-server-go/internal/game/events"
	"github.com/groundbreak/groundbreak-server-go/internal/movement"
	"github.com/groundbreak/groundbreak-server-go/internal/session"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	seed      = flag.Int64("seed", 2027, "random seed for dice and deck shuffles")
	maxTurns  = flag.Int("turns", 60, "stop after this many turns if nobody has finished")
	verbose   = flag.Bool("verbose", false, "log engine internals while playing")
	replayDir = flag.String("replay-dir", "", "record the game as a .replay file in this directory")
)

func main() {
	flag.Parse()

	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if !*verbose {
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	logger, err := zapCfg.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load("")
	if err != nil {
		logger.Fatal("failed to load defaults", zap.Error(err))
	}
	cfg.Game.ReplayDir = *replayDir

	ctx := context.Background()

	manager := session.NewManager(cards.DefaultCatalog(), movement.DefaultBoard(), cfg.Game, nil, logger)
	sess, err := manager.CreateGame(ctx, []game.PlayerSetup{
		{ID: "p1", Name: "Avery", Color: "#e63946"},
		{ID: "p2", Name: "Blake", Color: "#457b9d"},
		{ID: "p3", Name: "Casey", Color: "#2a9d8f"},
	}, *seed)
	if err != nil {
		logger.Fatal("failed to create game", zap.Error(err))
	}

	// Answer every prompt with its first option. The choice is registered
	// before the event fires, so resolving from the listener is safe.
	sess.Bus.SubscribeTyped(events.EventChoiceRequested, func(ev events.Event) {
		pending := sess.Store.PendingChoice()
		if pending == nil || len(pending.Options) == 0 {
			return
		}
		picked := pending.Options[0]
		fmt.Printf("        %s chooses %q\n", sess.Store.PlayerName(ev.PlayerID), picked.Label)
		if resolveErr := sess.Choices.Resolve(pending.ChoiceID, ev.PlayerID, picked.ID); resolveErr != nil {
			logger.Warn("auto-resolve failed", zap.Error(resolveErr))
		}
	})

	if err := sess.Turns.Start(ctx); err != nil {
		logger.Fatal("failed to start game", zap.Error(err))
	}

	fmt.Printf("game %s: %d players, seed %d\n\n", sess.ID, len(sess.Store.PlayerIDs()), *seed)

	for turn := 1; turn <= *maxTurns && !sess.Store.IsEnded(); turn++ {
		if err := playTurn(ctx, sess, turn); err != nil {
			logger.Fatal("turn failed", zap.Int("turn", turn), zap.Error(err))
		}
	}

	printOutcome(sess)

	if *replayDir != "" && sess.Store.IsEnded() {
		if replay, ok := manager.Replay(sess.ID); ok {
			fmt.Printf("\nreplay: %d snapshots written to %s/%s.replay\n",
				replay.Len(), *replayDir, sess.ID)
		}
	}
}

// playTurn drives one player through roll, space outcome, movement, one card
// play and end of turn.
func playTurn(ctx context.Context, sess *session.GameSession, turn int) error {
	playerID := sess.Store.CurrentPlayerID()
	name := sess.Store.PlayerName(playerID)

	roll, err := sess.Turns.RollDice(ctx, playerID)
	if err != nil {
		return fmt.Errorf("rolling dice: %w", err)
	}

	// Some spaces key an outcome off the roll before anyone moves.
	if _, err := sess.Movement.ApplyDiceOutcome(ctx, playerID, roll); err != nil {
		return fmt.Errorf("applying dice outcome: %w", err)
	}
	if sess.Store.IsEnded() {
		return nil
	}

	destination, err := pickDestination(sess, playerID, roll)
	if err != nil {
		return err
	}
	if destination != "" {
		if err := sess.Movement.MovePlayer(ctx, playerID, destination); err != nil {
			return fmt.Errorf("moving to %s: %w", destination, err)
		}
	}
	if sess.Store.IsEnded() {
		return nil
	}

	played := playOneCard(ctx, sess, playerID)

	player, err := sess.Store.GetPlayer(playerID)
	if err != nil {
		return err
	}
	scope, _ := sess.Ledger.ProjectScope(playerID)
	fmt.Printf("turn %2d  %-6s rolled %d  ->  %-24s $%-9d scope $%-9d days %d%s\n",
		turn, name, roll, player.CurrentSpace, player.Money, scope, player.TimeSpent, played)

	if _, err := sess.Turns.EndTurn(ctx, playerID); err != nil {
		return fmt.Errorf("ending turn: %w", err)
	}
	return nil
}

func pickDestination(sess *session.GameSession, playerID string, roll int) (string, error) {
	needsDice, err := sess.Movement.RequiresDiceMovement(playerID)
	if err != nil {
		return "", err
	}
	if needsDice {
		return sess.Movement.DiceDestination(playerID, roll)
	}
	moves, err := sess.Movement.ValidMoves(playerID)
	if err != nil {
		return "", err
	}
	if len(moves) == 0 {
		return "", nil
	}
	return moves[0], nil
}

// playOneCard plays the first playable card in hand, preferring work scope so
// projects actually grow. Phase and funds restrictions make some plays fail;
// those are skipped quietly.
func playOneCard(ctx context.Context, sess *session.GameSession, playerID string) string {
	order := []game.CardType{
		game.CardTypeWork,
		game.CardTypeBank,
		game.CardTypeInvestor,
		game.CardTypeExpeditor,
		game.CardTypeLife,
	}
	for _, cardType := range order {
		ids, err := sess.Cards.PlayerCards(playerID, cardType)
		if err != nil || len(ids) == 0 {
			continue
		}
		for _, id := range ids {
			if sess.Store.IsEnded() {
				return ""
			}
			if err := sess.Cards.PlayCard(ctx, playerID, id); err == nil {
				return fmt.Sprintf("  played %s", id)
			}
		}
	}
	return ""
}

func printOutcome(sess *session.GameSession) {
	fmt.Println()
	ended, winnerID, reason := sess.Store.EndState()
	switch {
	case !ended:
		fmt.Println("turn limit reached with no winner")
	case winnerID == "":
		fmt.Printf("game over: %s\n", reason)
	default:
		fmt.Printf("winner: %s (%s)\n", sess.Store.PlayerName(winnerID), reason)
	}

	fmt.Println("\nfinal standings:")
	for _, id := range sess.Store.PlayerIDs() {
		player, err := sess.Store.GetPlayer(id)
		if err != nil {
			continue
		}
		scope, _ := sess.Ledger.ProjectScope(id)
		fmt.Printf("  %-6s %-24s $%-9d scope $%-9d days spent %d\n",
			player.Name, player.CurrentSpace, player.Money, scope, player.TimeSpent)
	}
}
