// Package action defines the closed set of actions a country can take and
// the pruning step that narrows them to a scored shortlist.
package action

import (
	"fmt"

	"github.com/talgya/statecraft/internal/country"
)

// Kind tags an Action.
type Kind uint8

const (
	Pass Kind = iota
	Attack
	Invest
	Research
	Ally
	Pact
	Trade
	Fortify
	Move

	// NumKinds sizes per-kind tables. Keep it last.
	NumKinds
)

var kindNames = [NumKinds]string{
	Pass:     "Pass",
	Attack:   "Attack",
	Invest:   "Invest",
	Research: "Research",
	Ally:     "Ally",
	Pact:     "Pact",
	Trade:    "Trade",
	Fortify:  "Fortify",
	Move:     "Move",
}

func (k Kind) String() string {
	if k < NumKinds {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// IsDiplomacy reports whether k is Ally, Pact or Trade.
func (k Kind) IsDiplomacy() bool {
	return k == Ally || k == Pact || k == Trade
}

// Sector is an investment target.
type Sector uint8

const (
	Infrastructure Sector = iota
	Military
	Economy
	Technology
)

// Sectors lists every sector in declaration order.
var Sectors = [...]Sector{Infrastructure, Military, Economy, Technology}

func (s Sector) String() string {
	switch s {
	case Infrastructure:
		return "Infrastructure"
	case Military:
		return "Military"
	case Economy:
		return "Economy"
	case Technology:
		return "Technology"
	}
	return fmt.Sprintf("Sector(%d)", uint8(s))
}

// Tech is a research target.
type Tech uint8

const (
	MilitaryAdvancement Tech = iota
	EconomicEfficiency
	DiplomaticInfluence
	TechnologicalBreakthrough
)

// Techs lists every tech in declaration order.
var Techs = [...]Tech{MilitaryAdvancement, EconomicEfficiency, DiplomaticInfluence, TechnologicalBreakthrough}

func (t Tech) String() string {
	switch t {
	case MilitaryAdvancement:
		return "MilitaryAdvancement"
	case EconomicEfficiency:
		return "EconomicEfficiency"
	case DiplomaticInfluence:
		return "DiplomaticInfluence"
	case TechnologicalBreakthrough:
		return "TechnologicalBreakthrough"
	}
	return fmt.Sprintf("Tech(%d)", uint8(t))
}

// Action is one candidate decision. Only the field matching Kind is set:
// Target for Attack and diplomacy, Sector for Invest, Tech for Research,
// Tile for Fortify and Move.
type Action struct {
	Kind   Kind       `json:"kind"`
	Target country.ID `json:"target,omitempty"`
	Sector Sector     `json:"sector,omitempty"`
	Tech   Tech       `json:"tech,omitempty"`
	Tile   uint32     `json:"tile,omitempty"`
}

func NewPass() Action { return Action{Kind: Pass} }
func NewAttack(target country.ID) Action { return Action{Kind: Attack, Target: target} }
func NewInvest(s Sector) Action { return Action{Kind: Invest, Sector: s} }
func NewResearch(t Tech) Action { return Action{Kind: Research, Tech: t} }
func NewAlly(target country.ID) Action { return Action{Kind: Ally, Target: target} }
func NewPact(target country.ID) Action { return Action{Kind: Pact, Target: target} }
func NewTrade(target country.ID) Action { return Action{Kind: Trade, Target: target} }
func NewFortify(tile uint32) Action { return Action{Kind: Fortify, Tile: tile} }
func NewMove(tile uint32) Action { return Action{Kind: Move, Tile: tile} }

// String is the human-readable description recorded in decision logs.
func (a Action) String() string {
	switch a.Kind {
	case Pass:
		return "Pass"
	case Attack:
		return fmt.Sprintf("Attack country %d", a.Target)
	case Invest:
		return "Invest in " + a.Sector.String()
	case Research:
		return "Research " + a.Tech.String()
	case Ally:
		return fmt.Sprintf("Ally with country %d", a.Target)
	case Pact:
		return fmt.Sprintf("Sign pact with country %d", a.Target)
	case Trade:
		return fmt.Sprintf("Trade with country %d", a.Target)
	case Fortify:
		return fmt.Sprintf("Fortify tile %d", a.Tile)
	case Move:
		return fmt.Sprintf("Move to tile %d", a.Tile)
	}
	return a.Kind.String()
}
