package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType indicates the category of a game event.
type EventType string

const (
	// Game lifecycle events
	EventGameCreated EventType = "GAME_CREATED"
	EventGameEnded   EventType = "GAME_ENDED"

	// Turn flow events
	EventTurnStarted EventType = "TURN_STARTED"
	EventTurnEnded   EventType = "TURN_ENDED"
	EventTurnSkipped EventType = "TURN_SKIPPED"
	EventDiceRolled  EventType = "DICE_ROLLED"
	EventTurnCommit  EventType = "TURN_COMMITTED"
	EventTurnRevert  EventType = "TURN_REVERTED"

	// Resource events
	EventMoneyChanged EventType = "MONEY_CHANGED"
	EventTimeChanged  EventType = "TIME_CHANGED"
	EventLoanIssued   EventType = "LOAN_ISSUED"
	EventFeeCharged   EventType = "FEE_CHARGED"
	EventBankruptcy   EventType = "BANKRUPTCY"

	// Card events
	EventCardsDrawn     EventType = "CARDS_DRAWN"
	EventCardsDiscarded EventType = "CARDS_DISCARDED"
	EventCardPlayed     EventType = "CARD_PLAYED"
	EventCardActivated  EventType = "CARD_ACTIVATED"
	EventCardExpired    EventType = "CARD_EXPIRED"
	EventCardTransfer   EventType = "CARD_TRANSFERRED"

	// Movement events
	EventSpaceExited  EventType = "SPACE_EXITED"
	EventSpaceEntered EventType = "SPACE_ENTERED"

	// Choice events
	EventChoiceRequested EventType = "CHOICE_REQUESTED"
	EventChoiceResolved  EventType = "CHOICE_RESOLVED"

	// Effect events
	EventEffectApplied   EventType = "EFFECT_APPLIED"
	EventEffectFailed    EventType = "EFFECT_FAILED"
	EventEffectStored    EventType = "EFFECT_STORED"
	EventEffectExpired   EventType = "EFFECT_EXPIRED"
	EventBatchProcessed  EventType = "BATCH_PROCESSED"
	EventAutoAction      EventType = "AUTO_ACTION"

	// Negotiation events
	EventNegotiationStarted  EventType = "NEGOTIATION_STARTED"
	EventNegotiationOffer    EventType = "NEGOTIATION_OFFER"
	EventNegotiationAccepted EventType = "NEGOTIATION_ACCEPTED"
	EventNegotiationDeclined EventType = "NEGOTIATION_DECLINED"
)

// Event represents a state change that other subsystems may react to.
type Event struct {
	Type        EventType
	ID          string            // Unique event ID
	GameID      string            // Game the event belongs to
	PlayerID    string            // Player the event concerns, if any
	SourceID    string            // ID of the source (card, space, effect)
	Amount      int               // Numeric value (money, time, cards, dice)
	Description string            // Human-readable description
	Metadata    map[string]string // Additional metadata
	Timestamp   time.Time         // When the event occurred
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// Bus provides a synchronous publish/subscribe implementation with type filtering.
type Bus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewBus constructs a fresh event bus instance.
func NewBus() *Bus {
	return &Bus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *Bus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *Bus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	listener := TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	}
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], listener)
	return handle
}

// Unsubscribe removes the listener identified by the provided handle.
func (bus *Bus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously.
func (bus *Bus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, listener := range bus.listeners {
		listener(event)
	}

	if typedListeners, ok := bus.typedListeners[event.Type]; ok {
		for _, listener := range typedListeners {
			listener.Callback(event)
		}
	}
}

// PublishBatch publishes multiple events in order.
func (bus *Bus) PublishBatch(events []Event) {
	for _, event := range events {
		bus.Publish(event)
	}
}

// New creates an event with common fields populated.
func New(eventType EventType, gameID, playerID, sourceID string) Event {
	return Event{
		Type:      eventType,
		ID:        uuid.NewString(),
		GameID:    gameID,
		PlayerID:  playerID,
		SourceID:  sourceID,
		Timestamp: time.Now(),
		Metadata:  make(map[string]string),
	}
}

// NewWithAmount creates an event carrying a numeric value.
func NewWithAmount(eventType EventType, gameID, playerID, sourceID string, amount int) Event {
	evt := New(eventType, gameID, playerID, sourceID)
	evt.Amount = amount
	return evt
}
