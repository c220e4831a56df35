package game

import (
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/groundbreak/groundbreak-server-go/internal/game/events"
)

// Replay is the turn-by-turn record of one game: a full state snapshot per
// committed turn plus a playback cursor for stepping through them.
type Replay struct {
	GameID string

	mu     sync.RWMutex
	states []*GameState
	cursor int
}

// NewReplay creates an empty replay for a game.
func NewReplay(gameID string) *Replay {
	return &Replay{GameID: gameID}
}

// Record appends a snapshot. The state is cloned on the way in, so later
// mutations by the caller do not rewrite history.
func (r *Replay) Record(state *GameState) {
	if state == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state.Clone())
}

// Start resets the playback cursor to the first snapshot.
func (r *Replay) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cursor = 0
}

// Next returns the snapshot at the cursor and advances it, or nil past the
// last snapshot.
func (r *Replay) Next() *GameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor >= len(r.states) {
		return nil
	}
	state := r.states[r.cursor]
	r.cursor++
	return state
}

// Previous steps the cursor back and returns the snapshot there, or nil at
// the start.
func (r *Replay) Previous() *GameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor == 0 {
		return nil
	}
	r.cursor--
	return r.states[r.cursor]
}

// Skip moves the cursor by offset, clamped to the recorded range, and
// returns the snapshot at the new position.
func (r *Replay) Skip(offset int) *GameState {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.cursor + offset
	if next >= len(r.states) {
		next = len(r.states) - 1
	}
	if next < 0 {
		next = 0
	}
	r.cursor = next
	if r.cursor >= len(r.states) {
		return nil
	}
	return r.states[r.cursor]
}

// Len returns the number of recorded snapshots.
func (r *Replay) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.states)
}

// StateAt returns the snapshot at index without moving the cursor, or nil
// when out of range.
func (r *Replay) StateAt(index int) *GameState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if index < 0 || index >= len(r.states) {
		return nil
	}
	return r.states[index]
}

// replayHeader leads the encoded stream so a load can size and verify the
// snapshots that follow.
type replayHeader struct {
	GameID        string
	RecordedAt    time.Time
	Version       int
	StateCount    int
	FinalChecksum string
}

const replayVersion = 1

// SaveToFile writes the replay to <dir>/<gameID>.replay as a gzipped gob
// stream: header first, then each snapshot in order. The header carries the
// checksum of the final snapshot so a load can detect corruption.
func (r *Replay) SaveToFile(dir string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.states) == 0 {
		return fmt.Errorf("replay for game %s has no snapshots", r.GameID)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating replay directory: %w", err)
	}

	final, err := r.states[len(r.states)-1].ComputeChecksum()
	if err != nil {
		return fmt.Errorf("checksumming final snapshot: %w", err)
	}

	file, err := os.Create(replayPath(dir, r.GameID))
	if err != nil {
		return fmt.Errorf("creating replay file: %w", err)
	}
	defer file.Close()

	zw := gzip.NewWriter(file)
	enc := gob.NewEncoder(zw)

	header := replayHeader{
		GameID:        r.GameID,
		RecordedAt:    time.Now().UTC(),
		Version:       replayVersion,
		StateCount:    len(r.states),
		FinalChecksum: final.Hash,
	}
	if err := enc.Encode(&header); err != nil {
		return fmt.Errorf("encoding replay header: %w", err)
	}
	for i, state := range r.states {
		if err := enc.Encode(state); err != nil {
			return fmt.Errorf("encoding snapshot %d: %w", i, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flushing replay file: %w", err)
	}
	return nil
}

// LoadReplayFromFile reads a replay written by SaveToFile and verifies the
// final snapshot against the stored checksum.
func LoadReplayFromFile(dir, gameID string) (*Replay, error) {
	file, err := os.Open(replayPath(dir, gameID))
	if err != nil {
		return nil, fmt.Errorf("opening replay file: %w", err)
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("reading replay file: %w", err)
	}
	defer zr.Close()

	dec := gob.NewDecoder(zr)

	var header replayHeader
	if err := dec.Decode(&header); err != nil {
		return nil, fmt.Errorf("decoding replay header: %w", err)
	}
	if header.Version != replayVersion {
		return nil, fmt.Errorf("unsupported replay version %d", header.Version)
	}

	replay := NewReplay(header.GameID)
	for i := 0; i < header.StateCount; i++ {
		var state GameState
		if err := dec.Decode(&state); err != nil {
			return nil, fmt.Errorf("decoding snapshot %d: %w", i, err)
		}
		replay.states = append(replay.states, &state)
	}

	if header.StateCount > 0 {
		checksum, err := replay.states[len(replay.states)-1].ComputeChecksum()
		if err != nil {
			return nil, fmt.Errorf("checksumming final snapshot: %w", err)
		}
		if checksum.Hash != header.FinalChecksum {
			return nil, fmt.Errorf("replay for game %s is corrupt: checksum mismatch", header.GameID)
		}
	}
	return replay, nil
}

func replayPath(dir, gameID string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.replay", gameID))
}

// ReplayRecorder captures a replay for every game it is attached to and, when
// a directory is configured, writes the replay to disk as the game ends.
type ReplayRecorder struct {
	logger *zap.Logger
	dir    string

	mu      sync.RWMutex
	replays map[string]*Replay
}

// NewReplayRecorder creates a recorder. dir may be empty, in which case
// replays stay in memory only.
func NewReplayRecorder(dir string, logger *zap.Logger) *ReplayRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReplayRecorder{
		logger:  logger,
		dir:     dir,
		replays: make(map[string]*Replay),
	}
}

// Attach starts recording a game: the initial state is captured immediately,
// every committed turn adds a snapshot, and the game-over event flushes the
// replay to disk.
func (rr *ReplayRecorder) Attach(store *Store, bus *events.Bus) *Replay {
	replay := NewReplay(store.GameID())
	replay.Record(store.Snapshot())

	rr.mu.Lock()
	rr.replays[replay.GameID] = replay
	rr.mu.Unlock()

	bus.SubscribeTyped(events.EventTurnCommit, func(events.Event) {
		replay.Record(store.Snapshot())
	})
	bus.SubscribeTyped(events.EventGameEnded, func(events.Event) {
		replay.Record(store.Snapshot())
		if rr.dir == "" {
			return
		}
		if err := replay.SaveToFile(rr.dir); err != nil {
			rr.logger.Error("replay save failed",
				zap.String("game_id", replay.GameID),
				zap.Error(err))
			return
		}
		rr.logger.Info("replay saved",
			zap.String("game_id", replay.GameID),
			zap.Int("snapshots", replay.Len()),
			zap.String("dir", rr.dir))
	})
	return replay
}

// Get returns the in-memory replay for a game.
func (rr *ReplayRecorder) Get(gameID string) (*Replay, bool) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	replay, ok := rr.replays[gameID]
	return replay, ok
}

// Drop forgets a game's in-memory replay. Saved files are untouched.
func (rr *ReplayRecorder) Drop(gameID string) {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	delete(rr.replays, gameID)
}
