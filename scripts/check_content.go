// Command check_content validates card catalog and board files before they
// are deployed: card types, copy counts, draw/discard specs, space graph
// reachability and dice outcome ranges. With DATABASE_URL set it also
// connects to the archive database and prints recent game results.
//
// Usage:
//
//	go run scripts/check_content.go [-catalog cards.json] [-board board.json] [-results 10]
//
// Without file arguments the built-in defaults are checked, which doubles as
// a sanity run for the shipped content.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/groundbreak/groundbreak-server-go/internal/cards"
	"github.com/groundbreak/groundbreak-server-go/internal/game"
	"github.com/groundbreak/groundbreak-server-go/internal/movement"
)

var (
	catalogPath = flag.String("catalog", "", "card catalog JSON file (default: built-in catalog)")
	boardPath   = flag.String("board", "", "board JSON file (default: built-in board)")
	resultLimit = flag.Int("results", 10, "number of recent game results to list from the database")
)

func main() {
	flag.Parse()

	fmt.Println("=== Groundbreak Content Check ===")

	problems := 0
	problems += checkCatalog()
	problems += checkBoard()
	reportResults()

	if problems > 0 {
		log.Fatalf("content check failed with %d problem(s)", problems)
	}
	fmt.Println("\ncontent check passed")
}

func checkCatalog() int {
	catalog, label, err := loadCatalog()
	if err != nil {
		log.Fatalf("loading catalog: %v", err)
	}
	fmt.Printf("\ncatalog (%s): %d definitions\n", label, catalog.Size())

	problems := 0
	types := []game.CardType{
		game.CardTypeWork,
		game.CardTypeBank,
		game.CardTypeExpeditor,
		game.CardTypeLife,
		game.CardTypeInvestor,
	}
	for _, t := range types {
		ids := catalog.IDsByType(t)
		fmt.Printf("  deck %s: %d cards\n", t, len(ids))
		if len(ids) == 0 {
			fmt.Printf("  WARNING: deck %s is empty\n", t)
		}
		for _, id := range uniqueSorted(ids) {
			card, ok := catalog.Get(id)
			if !ok {
				continue
			}
			for _, spec := range []string{card.DrawSpec, card.DiscardSpec} {
				if spec == "" {
					continue
				}
				if _, _, err := cards.ParseDrawSpec(spec); err != nil {
					fmt.Printf("  ERROR: card %s has bad card spec %q: %v\n", id, spec, err)
					problems++
				}
			}
		}
	}
	return problems
}

func checkBoard() int {
	board, label, err := loadBoard()
	if err != nil {
		log.Fatalf("loading board: %v", err)
	}
	fmt.Printf("\nboard (%s): %d spaces, start %s\n", label, board.Size(), board.StartSpace())

	problems := 0

	// Walk the graph from the start so orphaned spaces and missing finishes
	// show up before a game ever reaches them.
	reachable := map[string]bool{}
	queue := []string{board.StartSpace()}
	terminals := 0
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if reachable[name] {
			continue
		}
		reachable[name] = true

		sp, ok := board.Space(name)
		if !ok {
			continue
		}
		if sp.Terminal {
			terminals++
		}
		for rng := range sp.DiceOutcomes {
			if err := checkRollRange(rng); err != nil {
				fmt.Printf("  ERROR: space %s dice outcome %q: %v\n", name, rng, err)
				problems++
			}
		}
		queue = append(queue, sp.Next...)
	}

	fmt.Printf("  reachable from start: %d\n", len(reachable))
	if unreachable := board.Size() - len(reachable); unreachable > 0 {
		fmt.Printf("  ERROR: %d space(s) unreachable from start\n", unreachable)
		problems++
	}
	if terminals == 0 {
		fmt.Println("  ERROR: no terminal space reachable from start")
		problems++
	}
	return problems
}

// checkRollRange accepts "N" or "N-M" with 1 <= N <= M <= 6, the same shapes
// the movement service resolves at runtime.
func checkRollRange(rng string) error {
	lo, hi := 0, 0
	parts := strings.SplitN(rng, "-", 2)
	var err error
	if lo, err = strconv.Atoi(strings.TrimSpace(parts[0])); err != nil {
		return fmt.Errorf("not a roll range")
	}
	hi = lo
	if len(parts) == 2 {
		if hi, err = strconv.Atoi(strings.TrimSpace(parts[1])); err != nil {
			return fmt.Errorf("not a roll range")
		}
	}
	if lo < 1 || hi > 6 || lo > hi {
		return fmt.Errorf("range %d-%d outside 1-6", lo, hi)
	}
	return nil
}

// reportResults lists recent finished games when DATABASE_URL points at the
// archive. Absence of the variable just skips the section.
func reportResults() {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		fmt.Println("\nDATABASE_URL not set; skipping archive report")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("pinging database: %v", err)
	}

	rows, err := pool.Query(ctx, `
		SELECT game_id, winner_id, end_reason, turns, finished_at
		FROM game_results
		ORDER BY finished_at DESC
		LIMIT $1
	`, *resultLimit)
	if err != nil {
		log.Fatalf("querying game_results: %v", err)
	}
	defer rows.Close()

	fmt.Println("\nrecent games:")
	count := 0
	for rows.Next() {
		var gameID, winnerID, endReason string
		var turns int
		var finishedAt time.Time
		if err := rows.Scan(&gameID, &winnerID, &endReason, &turns, &finishedAt); err != nil {
			log.Fatalf("scanning result: %v", err)
		}
		if winnerID == "" {
			winnerID = "(none)"
		}
		fmt.Printf("  %s  %-12s %3d turns  %s  %s\n",
			finishedAt.Format("2006-01-02 15:04"), winnerID, turns, gameID, endReason)
		count++
	}
	if err := rows.Err(); err != nil {
		log.Fatalf("reading results: %v", err)
	}
	if count == 0 {
		fmt.Println("  (no finished games recorded)")
	}
}

func loadCatalog() (*cards.Catalog, string, error) {
	if *catalogPath == "" {
		return cards.DefaultCatalog(), "built-in", nil
	}
	catalog, err := cards.Load(*catalogPath)
	return catalog, *catalogPath, err
}

func loadBoard() (*movement.Board, string, error) {
	if *boardPath == "" {
		return movement.DefaultBoard(), "built-in", nil
	}
	board, err := movement.LoadBoard(*boardPath)
	return board, *boardPath, err
}

func uniqueSorted(ids []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
