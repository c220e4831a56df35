package game

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/groundbreak/groundbreak-server-go/internal/game/events"
)

// TestReplayRecordClones verifies mutating a state after recording it does
// not rewrite history.
func TestReplayRecordClones(t *testing.T) {
	replay := NewReplay("game-123")
	gs := createTestState()
	replay.Record(gs)

	gs.Players["Avery"].Money = 0
	gs.Turn = 99

	recorded := replay.StateAt(0)
	require.NotNil(t, recorded)
	assert.Equal(t, 48000, recorded.Players["Avery"].Money)
	assert.Equal(t, 4, recorded.Turn)
}

// TestReplayPlayback verifies the cursor walks forward and backward over the
// recorded snapshots.
func TestReplayPlayback(t *testing.T) {
	replay := NewReplay("game-123")
	for turn := 1; turn <= 3; turn++ {
		gs := createTestState()
		gs.Turn = turn
		replay.Record(gs)
	}
	require.Equal(t, 3, replay.Len())

	replay.Start()
	assert.Equal(t, 1, replay.Next().Turn)
	assert.Equal(t, 2, replay.Next().Turn)
	assert.Equal(t, 3, replay.Next().Turn)
	assert.Nil(t, replay.Next(), "past the last snapshot")

	assert.Equal(t, 3, replay.Previous().Turn)
	assert.Equal(t, 2, replay.Previous().Turn)
	assert.Equal(t, 1, replay.Previous().Turn)
	assert.Nil(t, replay.Previous(), "before the first snapshot")
}

// TestReplaySkipClamps verifies Skip never walks off either end.
func TestReplaySkipClamps(t *testing.T) {
	replay := NewReplay("game-123")
	for turn := 1; turn <= 5; turn++ {
		gs := createTestState()
		gs.Turn = turn
		replay.Record(gs)
	}

	replay.Start()
	assert.Equal(t, 3, replay.Skip(2).Turn)
	assert.Equal(t, 5, replay.Skip(100).Turn)
	assert.Equal(t, 1, replay.Skip(-100).Turn)
}

// TestReplayStateAtOutOfRange verifies out-of-range lookups return nil.
func TestReplayStateAtOutOfRange(t *testing.T) {
	replay := NewReplay("game-123")
	replay.Record(createTestState())

	assert.Nil(t, replay.StateAt(-1))
	assert.Nil(t, replay.StateAt(1))
	assert.NotNil(t, replay.StateAt(0))
}

// TestReplaySaveLoadRoundtrip verifies a replay survives the file roundtrip
// with every snapshot and its checksum intact.
func TestReplaySaveLoadRoundtrip(t *testing.T) {
	dir := t.TempDir()

	replay := NewReplay("game-123")
	for turn := 1; turn <= 3; turn++ {
		gs := createTestState()
		gs.Turn = turn
		replay.Record(gs)
	}
	require.NoError(t, replay.SaveToFile(dir))

	loaded, err := LoadReplayFromFile(dir, "game-123")
	require.NoError(t, err)
	assert.Equal(t, "game-123", loaded.GameID)
	require.Equal(t, 3, loaded.Len())

	for i := 0; i < 3; i++ {
		want, err := replay.StateAt(i).ComputeChecksum()
		require.NoError(t, err)
		got, err := loaded.StateAt(i).ComputeChecksum()
		require.NoError(t, err)
		assert.Equal(t, want.Hash, got.Hash, "snapshot %d", i)
	}
}

// TestReplaySaveEmptyFails verifies an empty replay refuses to write a file.
func TestReplaySaveEmptyFails(t *testing.T) {
	err := NewReplay("game-123").SaveToFile(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no snapshots")
}

// TestLoadReplayMissingFile verifies a missing file surfaces as an error.
func TestLoadReplayMissingFile(t *testing.T) {
	_, err := LoadReplayFromFile(t.TempDir(), "nope")
	require.Error(t, err)
}

// TestLoadReplayGarbageFile verifies a non-replay file fails to load.
func TestLoadReplayGarbageFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.replay"), []byte("not gzip"), 0o644))

	_, err := LoadReplayFromFile(dir, "bad")
	require.Error(t, err)
}

// TestReplayRecorderAttach verifies the recorder captures the initial state,
// each committed turn and the final state, and flushes to disk when the game
// ends.
func TestReplayRecorderAttach(t *testing.T) {
	dir := t.TempDir()
	bus := events.NewBus()
	store, err := NewStore("game-rec", []PlayerSetup{
		{ID: "p1", Name: "Avery"},
		{ID: "p2", Name: "Blake"},
	}, 50000, "START-QUICK-PLAY-GUIDE", bus, zaptest.NewLogger(t))
	require.NoError(t, err)

	recorder := NewReplayRecorder(dir, zaptest.NewLogger(t))
	replay := recorder.Attach(store, bus)
	require.Equal(t, 1, replay.Len(), "initial state recorded on attach")

	require.NoError(t, store.UpdatePlayer("p1", func(p *Player) { p.Money += 500 }))
	store.CommitTurn()
	require.Equal(t, 2, replay.Len())

	store.IncrementTurn()
	store.CommitTurn()
	require.Equal(t, 3, replay.Len())

	store.EndGame("p1", "test over")
	require.Equal(t, 4, replay.Len(), "final state recorded on game end")

	got, ok := recorder.Get("game-rec")
	require.True(t, ok)
	assert.Same(t, replay, got)

	loaded, err := LoadReplayFromFile(dir, "game-rec")
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Len())
	final := loaded.StateAt(loaded.Len() - 1)
	assert.True(t, final.Ended)
	assert.Equal(t, "p1", final.WinnerID)
	assert.Equal(t, 50500, final.Players["p1"].Money)

	recorder.Drop("game-rec")
	_, ok = recorder.Get("game-rec")
	assert.False(t, ok)
}

// TestReplayRecorderNoDir verifies a recorder without a directory keeps the
// replay in memory and writes nothing.
func TestReplayRecorderNoDir(t *testing.T) {
	bus := events.NewBus()
	store, err := NewStore("game-mem", []PlayerSetup{{ID: "p1", Name: "Avery"}},
		1000, "START-QUICK-PLAY-GUIDE", bus, zaptest.NewLogger(t))
	require.NoError(t, err)

	recorder := NewReplayRecorder("", zaptest.NewLogger(t))
	replay := recorder.Attach(store, bus)

	store.CommitTurn()
	store.EndGame("p1", "done")
	assert.Equal(t, 3, replay.Len())

	_, err = LoadReplayFromFile("", "game-mem")
	require.Error(t, err)
}
