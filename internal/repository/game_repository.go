package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ErrNoSnapshot is returned when a game has nothing persisted yet.
var ErrNoSnapshot = errors.New("no snapshot for game")

// Snapshot is one persisted game state.
type Snapshot struct {
	GameID    string
	Turn      int
	Checksum  string
	State     []byte
	CreatedAt time.Time
}

// GameResult is one finished game.
type GameResult struct {
	GameID     string
	WinnerID   string
	EndReason  string
	Turns      int
	FinishedAt time.Time
}

// GameRepository stores snapshots and results.
type GameRepository struct {
	logger *zap.Logger
	db     *DB
}

// NewGameRepository builds a repository over the pool.
func NewGameRepository(db *DB, logger *zap.Logger) *GameRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GameRepository{logger: logger, db: db}
}

// EnsureSchema creates the tables if they do not exist.
func (r *GameRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS game_snapshots (
			game_id    TEXT        NOT NULL,
			turn       INT         NOT NULL,
			checksum   TEXT        NOT NULL,
			state      BYTEA       NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (game_id, turn)
		)
	`)
	if err != nil {
		return fmt.Errorf("creating game_snapshots: %w", err)
	}
	_, err = r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS game_results (
			game_id     TEXT        PRIMARY KEY,
			winner_id   TEXT        NOT NULL DEFAULT '',
			end_reason  TEXT        NOT NULL DEFAULT '',
			turns       INT         NOT NULL,
			finished_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("creating game_results: %w", err)
	}
	return nil
}

// SaveSnapshot upserts the state for one game turn.
func (r *GameRepository) SaveSnapshot(ctx context.Context, gameID string, turn int, checksum string, state []byte) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO game_snapshots (game_id, turn, checksum, state)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (game_id, turn)
		DO UPDATE SET checksum = EXCLUDED.checksum, state = EXCLUDED.state, created_at = now()
	`, gameID, turn, checksum, state)
	if err != nil {
		return fmt.Errorf("saving snapshot for %s turn %d: %w", gameID, turn, err)
	}
	r.logger.Debug("snapshot saved",
		zap.String("game_id", gameID),
		zap.Int("turn", turn),
		zap.Int("bytes", len(state)))
	return nil
}

// LatestSnapshot returns the newest persisted state of a game.
func (r *GameRepository) LatestSnapshot(ctx context.Context, gameID string) (*Snapshot, error) {
	var snap Snapshot
	err := r.db.QueryRow(ctx, `
		SELECT game_id, turn, checksum, state, created_at
		FROM game_snapshots
		WHERE game_id = $1
		ORDER BY turn DESC
		LIMIT 1
	`, gameID).Scan(&snap.GameID, &snap.Turn, &snap.Checksum, &snap.State, &snap.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("loading snapshot for %s: %w", gameID, err)
	}
	return &snap, nil
}

// RecordResult stores how a game ended.
func (r *GameRepository) RecordResult(ctx context.Context, gameID, winnerID, endReason string, turns int) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO game_results (game_id, winner_id, end_reason, turns)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (game_id)
		DO UPDATE SET winner_id = EXCLUDED.winner_id, end_reason = EXCLUDED.end_reason,
		              turns = EXCLUDED.turns, finished_at = now()
	`, gameID, winnerID, endReason, turns)
	if err != nil {
		return fmt.Errorf("recording result for %s: %w", gameID, err)
	}
	return nil
}

// RecentResults lists finished games, newest first.
func (r *GameRepository) RecentResults(ctx context.Context, limit int) ([]GameResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `
		SELECT game_id, winner_id, end_reason, turns, finished_at
		FROM game_results
		ORDER BY finished_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing results: %w", err)
	}
	defer rows.Close()

	var results []GameResult
	for rows.Next() {
		var res GameResult
		if err := rows.Scan(&res.GameID, &res.WinnerID, &res.EndReason, &res.Turns, &res.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning result: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
