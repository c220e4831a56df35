package server

import (
	"sync"

	"github.com/groundbreak/groundbreak-server-go/internal/game/events"
)

// defaultHistoryLimit caps the per-game event backlog kept for late joiners.
const defaultHistoryLimit = 100

// History keeps a bounded tail of each game's event stream so clients that
// join mid-game can catch up before the live stream takes over.
type History struct {
	limit int

	mu     sync.RWMutex
	events map[string][]events.Event
}

// NewHistory creates a history with the given per-game limit; zero or
// negative means the default.
func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &History{
		limit:  limit,
		events: make(map[string][]events.Event),
	}
}

// Append records an event under its game, dropping the oldest entries past
// the limit.
func (h *History) Append(evt events.Event) {
	if evt.GameID == "" {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	tail := append(h.events[evt.GameID], evt)
	if len(tail) > h.limit {
		tail = tail[len(tail)-h.limit:]
	}
	h.events[evt.GameID] = tail
}

// Recent returns a copy of the recorded tail for a game, oldest first.
func (h *History) Recent(gameID string) []events.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	tail := h.events[gameID]
	if len(tail) == 0 {
		return nil
	}
	out := make([]events.Event, len(tail))
	copy(out, tail)
	return out
}

// Forget drops a game's backlog.
func (h *History) Forget(gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.events, gameID)
}
