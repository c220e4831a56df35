// Package movement owns the board and player relocation. Landing on a space
// feeds its entry effects into the engine; dice outcomes are expressed as
// conditional effects keyed by roll ranges.
package movement

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/groundbreak/groundbreak-server-go/internal/game"
)

// EffectSpec is one data-driven effect on a space.
type EffectSpec struct {
	Kind     string `json:"kind"`
	Amount   int    `json:"amount,omitempty"`
	Percent  int    `json:"percent,omitempty"`
	CardSpec string `json:"card_spec,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Space is one board position.
type Space struct {
	Name     string `json:"name"`
	Phase    string `json:"phase"`
	Terminal bool   `json:"terminal,omitempty"`
	// Next lists the spaces reachable from here. Spaces with RequiresDice
	// pick among them by dice roll instead of player choice.
	Next         []string `json:"next,omitempty"`
	RequiresDice bool     `json:"requires_dice,omitempty"`
	// Entry effects keyed by visit type.
	FirstVisit      []EffectSpec `json:"first_visit,omitempty"`
	SubsequentVisit []EffectSpec `json:"subsequent_visit,omitempty"`
	// DiceOutcomes maps roll ranges like "1-3" or "6" to effects.
	DiceOutcomes map[string][]EffectSpec `json:"dice_outcomes,omitempty"`
}

// Board is an immutable, validated space graph.
type Board struct {
	spaces map[string]*Space
	start  string
}

type boardFile struct {
	Start  string  `json:"start"`
	Spaces []Space `json:"spaces"`
}

// NewBoard validates the space graph.
func NewBoard(spaces []Space, start string) (*Board, error) {
	if len(spaces) == 0 {
		return nil, fmt.Errorf("board has no spaces")
	}
	b := &Board{spaces: make(map[string]*Space, len(spaces))}
	for i := range spaces {
		sp := spaces[i]
		if sp.Name == "" {
			return nil, fmt.Errorf("space %d has no name", i)
		}
		if _, dup := b.spaces[sp.Name]; dup {
			return nil, fmt.Errorf("duplicate space %s", sp.Name)
		}
		b.spaces[sp.Name] = &sp
	}
	for name, sp := range b.spaces {
		for _, next := range sp.Next {
			if _, ok := b.spaces[next]; !ok {
				return nil, fmt.Errorf("space %s references unknown space %s", name, next)
			}
		}
		if !sp.Terminal && len(sp.Next) == 0 {
			return nil, fmt.Errorf("space %s is a dead end", name)
		}
	}
	if _, ok := b.spaces[start]; !ok {
		return nil, fmt.Errorf("start space %s does not exist", start)
	}
	b.start = start
	return b, nil
}

// LoadBoard reads a board from a JSON file.
func LoadBoard(path string) (*Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading board: %w", err)
	}
	var bf boardFile
	if err := json.Unmarshal(data, &bf); err != nil {
		return nil, fmt.Errorf("parsing board %s: %w", path, err)
	}
	return NewBoard(bf.Spaces, bf.Start)
}

// Space looks up a space by name.
func (b *Board) Space(name string) (*Space, bool) {
	sp, ok := b.spaces[name]
	return sp, ok
}

// StartSpace returns where new players begin.
func (b *Board) StartSpace() string {
	return b.start
}

// Size returns the number of spaces.
func (b *Board) Size() int {
	return len(b.spaces)
}

// DefaultBoard is the standard project path from kickoff to handover.
func DefaultBoard() *Board {
	spaces := []Space{
		{
			Name:  "START-QUICK-PLAY-GUIDE",
			Phase: game.PhaseSetup,
			Next:  []string{"OWNER-SCOPE-INITIATION"},
			FirstVisit: []EffectSpec{
				{Kind: "log", Message: "Welcome to the project"},
			},
		},
		{
			Name:  "OWNER-SCOPE-INITIATION",
			Phase: game.PhaseSetup,
			Next:  []string{game.SpaceOwnerFundInitiation},
			FirstVisit: []EffectSpec{
				{Kind: "draw", CardSpec: "3 W"},
			},
			SubsequentVisit: []EffectSpec{
				{Kind: "draw", CardSpec: "1 W"},
			},
		},
		{
			Name:  game.SpaceOwnerFundInitiation,
			Phase: game.PhaseFunding,
			Next:  []string{"PM-DECISION-CHECK"},
			FirstVisit: []EffectSpec{
				{Kind: "draw", CardSpec: "1 B"},
			},
			SubsequentVisit: []EffectSpec{
				{Kind: "time", Amount: 1},
			},
		},
		{
			Name:  "PM-DECISION-CHECK",
			Phase: game.PhaseDesign,
			Next:  []string{"ARCH-INITIATION", "ENG-INITIATION"},
			FirstVisit: []EffectSpec{
				{Kind: "time", Amount: 1},
			},
			SubsequentVisit: []EffectSpec{
				{Kind: "time", Amount: 2},
			},
		},
		{
			Name:  "ARCH-INITIATION",
			Phase: game.PhaseDesign,
			Next:  []string{"ARCH-FEE-REVIEW"},
			FirstVisit: []EffectSpec{
				{Kind: "draw", CardSpec: "1 E"},
				{Kind: "time", Amount: 2},
			},
			SubsequentVisit: []EffectSpec{
				{Kind: "time", Amount: 1},
			},
		},
		{
			Name:  "ENG-INITIATION",
			Phase: game.PhaseDesign,
			Next:  []string{"ARCH-FEE-REVIEW"},
			FirstVisit: []EffectSpec{
				{Kind: "draw", CardSpec: "1 E"},
				{Kind: "time", Amount: 2},
			},
			SubsequentVisit: []EffectSpec{
				{Kind: "time", Amount: 1},
			},
		},
		{
			Name:  "ARCH-FEE-REVIEW",
			Phase: game.PhaseDesign,
			Next:  []string{"REG-DOB-FEE-REVIEW"},
			FirstVisit: []EffectSpec{
				{Kind: "fee_percent", Percent: 1},
			},
			SubsequentVisit: []EffectSpec{
				{Kind: "fee_percent", Percent: 1},
			},
		},
		{
			Name:         "REG-DOB-FEE-REVIEW",
			Phase:        game.PhaseRegulatory,
			Next:         []string{"CON-INITIATION", "REG-DOB-AUDIT"},
			RequiresDice: true,
			FirstVisit: []EffectSpec{
				{Kind: "time", Amount: 1},
			},
			SubsequentVisit: []EffectSpec{
				{Kind: "time", Amount: 1},
			},
			DiceOutcomes: map[string][]EffectSpec{
				"1-2": {
					{Kind: "time", Amount: 3},
					{Kind: "log", Message: "Filing rejected, resubmission required"},
				},
				"3-4": {
					{Kind: "money", Amount: -50000},
				},
				"5-6": {
					{Kind: "log", Message: "Filing approved on first pass"},
				},
			},
		},
		{
			Name:  "REG-DOB-AUDIT",
			Phase: game.PhaseRegulatory,
			Next:  []string{"CON-INITIATION"},
			FirstVisit: []EffectSpec{
				{Kind: "time", Amount: 4},
				{Kind: "skip_turn", Amount: 1},
			},
			SubsequentVisit: []EffectSpec{
				{Kind: "time", Amount: 4},
			},
		},
		{
			Name:  "CON-INITIATION",
			Phase: game.PhaseConstruction,
			Next:  []string{"CON-ISSUE-RESOLUTION"},
			FirstVisit: []EffectSpec{
				{Kind: "draw", CardSpec: "1 L"},
				{Kind: "time", Amount: 2},
			},
			SubsequentVisit: []EffectSpec{
				{Kind: "time", Amount: 2},
			},
		},
		{
			Name:         "CON-ISSUE-RESOLUTION",
			Phase:        game.PhaseConstruction,
			Next:         []string{game.SpaceFinish, "CON-ISSUE-RESOLUTION"},
			RequiresDice: true,
			FirstVisit: []EffectSpec{
				{Kind: "time", Amount: 2},
			},
			SubsequentVisit: []EffectSpec{
				{Kind: "time", Amount: 2},
			},
			DiceOutcomes: map[string][]EffectSpec{
				"1-3": {
					{Kind: "money", Amount: -25000},
					{Kind: "log", Message: "Site issue resolved with change order"},
				},
				"4-6": {
					{Kind: "log", Message: "Inspection passed"},
				},
			},
		},
		{
			Name:     game.SpaceFinish,
			Phase:    game.PhaseEnd,
			Terminal: true,
		},
	}
	board, err := NewBoard(spaces, "START-QUICK-PLAY-GUIDE")
	if err != nil {
		panic(fmt.Sprintf("default board invalid: %v", err))
	}
	return board
}
