// Package player models a match participant, human or virtual, and the
// roster operations applied when a match is configured.
package player

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/gridbrawl/internal/game/dice"
	"github.com/cory-johannsen/gridbrawl/internal/game/grid"
	"github.com/cory-johannsen/gridbrawl/internal/game/inventory"
)

// Team is a CTF side. TeamNone is used outside CTF.
type Team string

const (
	TeamNone Team = ""
	TeamRed  Team = "red"
	TeamBlue Team = "blue"
)

// Profile selects the scripted behavior of a virtual player.
type Profile string

const (
	ProfileHuman      Profile = ""
	ProfileAggressive Profile = "aggressive"
	ProfileDefensive  Profile = "defensive"
)

// Valid reports whether p is a known profile.
func (p Profile) Valid() bool {
	switch p {
	case ProfileHuman, ProfileAggressive, ProfileDefensive:
		return true
	}
	return false
}

// Stats is the character sheet chosen before joining.
type Stats struct {
	Life        int             `json:"life"`
	Speed       int             `json:"speed"`
	Attack      int             `json:"attack"`
	Defense     int             `json:"defense"`
	AttackDice  dice.Expression `json:"attackDice"`
	DefenseDice dice.Expression `json:"defenseDice"`
}

// Validate checks the sheet for usable values.
func (s Stats) Validate() error {
	var errs []error
	if s.Life <= 0 {
		errs = append(errs, fmt.Errorf("life must be > 0, got %d", s.Life))
	}
	if s.Speed <= 0 {
		errs = append(errs, fmt.Errorf("speed must be > 0, got %d", s.Speed))
	}
	if s.Attack < 0 || s.Defense < 0 {
		errs = append(errs, errors.New("attack and defense must be >= 0"))
	}
	if s.AttackDice.Sides < 2 || s.DefenseDice.Sides < 2 {
		errs = append(errs, errors.New("attack and defense dice must be set"))
	}
	return errors.Join(errs...)
}

// Player is one participant of a room and, once started, of its match.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Stats
	Profile Profile `json:"profile,omitempty"`

	MovementPts int           `json:"movementPts"`
	Actions     int           `json:"actions"`
	Position    grid.Position `json:"position"`
	Spawn       grid.Position `json:"spawn"`
	Team        Team          `json:"team,omitempty"`

	FleeAttempts   int `json:"fleeAttempts"`
	CurrentLife    int `json:"currentLife"`
	LastDiceResult int `json:"lastDiceResult"`
	Victories      int `json:"victories"`

	Inventory *inventory.Backpack `json:"-"`
	Agent     Agent               `json:"-"`
}

// New creates a Player with an empty backpack of the default capacity.
//
// Precondition: id and avatar are non-empty; agent is non-nil.
func New(id, name, avatar string, stats Stats, profile Profile, agent Agent) *Player {
	return &Player{
		ID:          id,
		Name:        name,
		Avatar:      avatar,
		Stats:       stats,
		Profile:     profile,
		CurrentLife: stats.Life,
		Inventory:   inventory.NewBackpack(inventory.DefaultCapacity),
		Agent:       agent,
	}
}

// IsVirtual reports whether the player is driven by an AI agent.
func (p *Player) IsVirtual() bool {
	return p.Agent != nil && p.Agent.IsVirtual()
}

// EffectiveSpeed is the movement allowance per turn including item bonuses.
func (p *Player) EffectiveSpeed() int {
	return p.Speed + p.Inventory.Bonus().Speed
}

// EffectiveAttack includes item bonuses.
func (p *Player) EffectiveAttack() int {
	return p.Attack + p.Inventory.Bonus().Attack
}

// EffectiveDefense includes item bonuses.
func (p *Player) EffectiveDefense() int {
	return p.Defense + p.Inventory.Bonus().Defense
}

// EffectiveMaxLife includes item bonuses.
func (p *Player) EffectiveMaxLife() int {
	return p.Life + p.Inventory.Bonus().Life
}

// ApplyDamage subtracts n from CurrentLife, flooring at 0.
//
// Precondition: n >= 0.
// Postcondition: CurrentLife >= 0.
func (p *Player) ApplyDamage(n int) {
	p.CurrentLife -= n
	if p.CurrentLife < 0 {
		p.CurrentLife = 0
	}
}

// Wounded reports whether the player has lost life in the current fight.
func (p *Player) Wounded() bool {
	return p.CurrentLife < p.EffectiveMaxLife()
}

// HasFlag reports whether the player carries the CTF flag.
func (p *Player) HasFlag() bool {
	return p.Inventory.Has(grid.Flag)
}

// OnSpawn reports whether the player stands on their own start position.
func (p *Player) OnSpawn() bool {
	return p.Position == p.Spawn
}

// Enemy reports whether other is an opponent of p.
func (p *Player) Enemy(other *Player, isCTF bool) bool {
	if other == nil || other.ID == p.ID {
		return false
	}
	return !isCTF || other.Team != p.Team
}

// ResetTurn restores the per-turn allowances.
func (p *Player) ResetTurn() {
	p.MovementPts = p.EffectiveSpeed()
	p.Actions = 1
}

// Snapshot is the wire view of a player including carried items.
type Snapshot struct {
	*Player
	Items []grid.Item `json:"items"`
}

// Snapshot returns the wire view of p.
func (p *Player) Snapshot() Snapshot {
	return Snapshot{Player: p, Items: p.Inventory.Items()}
}
