package game

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/groundbreak/groundbreak-server-go/internal/game/events"
	"github.com/groundbreak/groundbreak-server-go/internal/game/targeting"
)

// engineHarness wires an effect engine over a real store and real target
// resolver, with every other collaborator scripted. Players use their id as
// display name so assertions on player-facing messages stay readable.
type engineHarness struct {
	t       *testing.T
	store   *Store
	bus     *events.Bus
	ledger  *fakeLedger
	cards   *fakeInventory
	choices *fakeChoices
	mover   *fakeMovement
	prompts *promptScript
	engine  *EffectEngine
	events  *eventRecorder
}

func newEngineHarness(t *testing.T, playerIDs ...string) *engineHarness {
	t.Helper()

	setups := make([]PlayerSetup, len(playerIDs))
	for i, id := range playerIDs {
		setups[i] = PlayerSetup{ID: id, Name: id}
	}

	bus := events.NewBus()
	recorder := &eventRecorder{}
	bus.Subscribe(recorder.capture)

	logger := zaptest.NewLogger(t)
	store, err := NewStore("test-game", setups, 10000, "START", bus, logger)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	ledger := newFakeLedger(store)
	cards := newFakeInventory()
	choices := &fakeChoices{}
	mover := &fakeMovement{phases: map[string]string{}}
	prompts := &promptScript{}
	targets := targeting.NewResolver(store, prompts.prompt, logger)

	engine := NewEffectEngine(store, ledger, cards, choices, mover, targets, bus, logger)

	return &engineHarness{
		t:       t,
		store:   store,
		bus:     bus,
		ledger:  ledger,
		cards:   cards,
		choices: choices,
		mover:   mover,
		prompts: prompts,
		engine:  engine,
		events:  recorder,
	}
}

func (h *engineHarness) player(id string) *Player {
	h.t.Helper()
	p, err := h.store.GetPlayer(id)
	if err != nil {
		h.t.Fatalf("failed to read player %s: %v", id, err)
	}
	return p
}

func (h *engineHarness) setPlayer(id string, mutate func(*Player)) {
	h.t.Helper()
	if err := h.store.UpdatePlayer(id, mutate); err != nil {
		h.t.Fatalf("failed to update player %s: %v", id, err)
	}
}

func (h *engineHarness) moveTo(id, space string) {
	h.setPlayer(id, func(p *Player) { p.CurrentSpace = space })
}

// ledgerCall records one call against the fake ledger.
type ledgerCall struct {
	Op         string
	PlayerID   string
	Amount     int
	Source     string
	Reason     string
	SourceType string
}

// fakeLedger applies resource changes directly to the store, so engine
// re-reads (bankruptcy sweeps, design fee totals) observe every change.
// Spends always go through; the real ledger's overdraft rules are covered in
// its own package.
type fakeLedger struct {
	store *Store

	scope        map[string]int
	scopeErr     error
	principal    map[string]int
	failSpendFor map[string]error

	calls []ledgerCall
}

func newFakeLedger(store *Store) *fakeLedger {
	return &fakeLedger{
		store:        store,
		scope:        map[string]int{},
		principal:    map[string]int{},
		failSpendFor: map[string]error{},
	}
}

func (f *fakeLedger) record(op, playerID string, amount int, source, reason, sourceType string) {
	f.calls = append(f.calls, ledgerCall{
		Op:         op,
		PlayerID:   playerID,
		Amount:     amount,
		Source:     source,
		Reason:     reason,
		SourceType: sourceType,
	})
}

func (f *fakeLedger) callsFor(op string) []ledgerCall {
	var out []ledgerCall
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeLedger) AddMoney(playerID string, amount int, source, reason string) error {
	f.record("AddMoney", playerID, amount, source, reason, "")
	return f.store.UpdatePlayer(playerID, func(p *Player) { p.Money += amount })
}

func (f *fakeLedger) SpendMoney(playerID string, amount int, source, reason, sourceType string) error {
	f.record("SpendMoney", playerID, amount, source, reason, sourceType)
	if err := f.failSpendFor[playerID]; err != nil {
		return err
	}
	return f.store.UpdatePlayer(playerID, func(p *Player) { p.Money -= amount })
}

func (f *fakeLedger) AddTime(playerID string, amount int, source, reason string) error {
	f.record("AddTime", playerID, amount, source, reason, "")
	return f.store.UpdatePlayer(playerID, func(p *Player) {
		p.TimeSpent -= amount
		if p.TimeSpent < 0 {
			p.TimeSpent = 0
		}
	})
}

func (f *fakeLedger) SpendTime(playerID string, amount int, source, reason string) error {
	f.record("SpendTime", playerID, amount, source, reason, "")
	return f.store.UpdatePlayer(playerID, func(p *Player) { p.TimeSpent += amount })
}

func (f *fakeLedger) ProjectScope(playerID string) (int, error) {
	if f.scopeErr != nil {
		return 0, f.scopeErr
	}
	return f.scope[playerID], nil
}

func (f *fakeLedger) OutstandingPrincipal(playerID string) (int, error) {
	return f.principal[playerID], nil
}

func (f *fakeLedger) RecordDesignFee(playerID string, amount int) error {
	f.record("RecordDesignFee", playerID, amount, "", "", "")
	return f.store.UpdatePlayer(playerID, func(p *Player) { p.DesignFeesPaid += amount })
}

func (f *fakeLedger) DesignFeeTotal(playerID string) (int, error) {
	p, err := f.store.GetPlayer(playerID)
	if err != nil {
		return 0, err
	}
	return p.DesignFeesPaid, nil
}

// fakeInventory tracks hands in memory. DrawCards serves results from the
// scripted queue when present and otherwise generates sequential ids.
type fakeInventory struct {
	hands       map[string]map[CardType][]string
	scripted    [][]string
	drawErr     error
	seq         int
	discarded   [][]string
	activations []string
	finalized   []string
	applied     []string
	applyErr    error
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{hands: map[string]map[CardType][]string{}}
}

func (f *fakeInventory) give(playerID string, cardType CardType, ids ...string) {
	if f.hands[playerID] == nil {
		f.hands[playerID] = map[CardType][]string{}
	}
	f.hands[playerID][cardType] = append(f.hands[playerID][cardType], ids...)
}

func (f *fakeInventory) DrawCards(playerID string, cardType CardType, count int, source, reason string) ([]string, error) {
	if f.drawErr != nil {
		return nil, f.drawErr
	}
	var drawn []string
	if len(f.scripted) > 0 {
		drawn = f.scripted[0]
		f.scripted = f.scripted[1:]
	} else {
		for i := 0; i < count; i++ {
			f.seq++
			drawn = append(drawn, fmt.Sprintf("%s-%d", cardType, f.seq))
		}
	}
	f.give(playerID, cardType, drawn...)
	return drawn, nil
}

func (f *fakeInventory) DiscardCards(playerID string, cardIDs []string, source, reason string) error {
	hand := f.hands[playerID]
	for _, id := range cardIDs {
		found := false
		for cardType, ids := range hand {
			for i, have := range ids {
				if have == id {
					hand[cardType] = append(append([]string(nil), ids[:i]...), ids[i+1:]...)
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return fmt.Errorf("card %s is not in %s's hand", id, playerID)
		}
	}
	f.discarded = append(f.discarded, append([]string(nil), cardIDs...))
	return nil
}

func (f *fakeInventory) PlayerCards(playerID string, cardType CardType) ([]string, error) {
	return append([]string(nil), f.hands[playerID][cardType]...), nil
}

func (f *fakeInventory) ActivateCard(playerID, cardID string, duration int) error {
	f.activations = append(f.activations, cardID)
	return nil
}

func (f *fakeInventory) FinalizePlayedCard(playerID, cardID string) error {
	f.finalized = append(f.finalized, cardID)
	return nil
}

func (f *fakeInventory) ApplyCardEffects(ctx context.Context, playerID, cardID string) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = append(f.applied, cardID)
	return nil
}

// choicePrompt records one prompt presented through the fake broker.
type choicePrompt struct {
	PlayerID string
	Kind     string
	Prompt   string
	Options  []ChoiceOption
}

// fakeChoices answers prompts from a scripted queue, falling back to the
// first option so incidental prompts resolve without setup.
type fakeChoices struct {
	answers []string
	err     error
	prompts []choicePrompt
}

func (f *fakeChoices) CreateChoice(ctx context.Context, playerID, kind, prompt string, options []ChoiceOption) (string, error) {
	f.prompts = append(f.prompts, choicePrompt{
		PlayerID: playerID,
		Kind:     kind,
		Prompt:   prompt,
		Options:  append([]ChoiceOption(nil), options...),
	})
	if f.err != nil {
		return "", f.err
	}
	if len(f.answers) > 0 {
		answer := f.answers[0]
		f.answers = f.answers[1:]
		return answer, nil
	}
	if len(options) > 0 {
		return options[0].ID, nil
	}
	return "", fmt.Errorf("no options offered")
}

type fakeMovement struct {
	phases  map[string]string
	moves   []string
	moveErr error
}

func (f *fakeMovement) MovePlayer(ctx context.Context, playerID, destination string) error {
	if f.moveErr != nil {
		return f.moveErr
	}
	f.moves = append(f.moves, playerID+"->"+destination)
	return nil
}

func (f *fakeMovement) SpacePhase(spaceName string) string {
	return f.phases[spaceName]
}

type fakeNegotiation struct {
	initiateOutcome NegotiationOutcome
	respondOutcome  NegotiationOutcome
	initiations     []string
	responses       []string
}

func (f *fakeNegotiation) Initiate(ctx context.Context, initiatorID, partnerID string) NegotiationOutcome {
	f.initiations = append(f.initiations, initiatorID+"->"+partnerID)
	return f.initiateOutcome
}

func (f *fakeNegotiation) Respond(ctx context.Context, negotiationID, playerID, response string, offer *NegotiationOffer) NegotiationOutcome {
	f.responses = append(f.responses, response)
	return f.respondOutcome
}

// promptScript drives the target resolver's interactive prompts.
type promptScript struct {
	answers []string
	err     error
	calls   int
}

func (ps *promptScript) prompt(ctx context.Context, playerID, prompt string, options []targeting.Option) (string, error) {
	ps.calls++
	if ps.err != nil {
		return "", ps.err
	}
	if len(ps.answers) > 0 {
		answer := ps.answers[0]
		ps.answers = ps.answers[1:]
		return answer, nil
	}
	if len(options) > 0 {
		return options[0].ID, nil
	}
	return "", fmt.Errorf("no options offered")
}

// eventRecorder captures everything published on the bus during a test.
type eventRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *eventRecorder) capture(evt events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *eventRecorder) ofType(eventType events.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []events.Event
	for _, evt := range r.events {
		if evt.Type == eventType {
			out = append(out, evt)
		}
	}
	return out
}
