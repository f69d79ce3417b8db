// Package combat implements the one-on-one dice fight started between two
// adjacent players during a turn.
package combat

import (
	"errors"

	"github.com/cory-johannsen/gridbrawl/internal/game/dice"
	"github.com/cory-johannsen/gridbrawl/internal/game/player"
	"github.com/cory-johannsen/gridbrawl/internal/game/timer"
)

// ErrNoFleeAttempts is returned when the current fighter has used every flee attempt.
var ErrNoFleeAttempts = errors.New("combat: no flee attempts left")

// Settings are the fight constants.
type Settings struct {
	// FleeAttempts is how many times each fighter may try to escape per fight.
	FleeAttempts int
	// FleeChance is the escape probability in percent.
	FleeChance int
	// TurnSeconds is the combat countdown of a fighter who can still flee.
	TurnSeconds int
	// NoFleeTurnSeconds is the shorter countdown once flee attempts are gone.
	NoFleeTurnSeconds int
}

// DefaultSettings returns the standard fight constants.
func DefaultSettings() Settings {
	return Settings{FleeAttempts: 2, FleeChance: 30, TurnSeconds: 5, NoFleeTurnSeconds: 3}
}

// Clock is the countdown a Fight restarts on every exchange.
type Clock interface {
	Start(seconds int, mode timer.Mode)
}

// Result reports how a fight ended. Both fields are nil after a successful escape.
type Result struct {
	Winner *player.Player
	Loser  *player.Player
}

// Escaped reports whether the fight ended without a winner.
func (r Result) Escaped() bool {
	return r.Winner == nil
}

// Attack is the audit of one resolved attack.
type Attack struct {
	AttackerID   string          `json:"attackerId"`
	DefenderID   string          `json:"defenderId"`
	AttackRoll   dice.RollResult `json:"-"`
	DefenseRoll  dice.RollResult `json:"-"`
	AttackTotal  int             `json:"attackTotal"`
	DefenseTotal int             `json:"defenseTotal"`
	Damage       int             `json:"damage"`
	DefenderLife int             `json:"defenderLife"`
}

// Fight is an active duel.
//
// Invariant: exactly one fighter is current; life never drops below 0.
type Fight struct {
	fighters [2]*player.Player
	current  int
	clock    Clock
	settings Settings
	roller   *dice.Roller
}

// Start begins a fight with a as the first current fighter.
//
// Precondition: a and b are distinct non-nil players; clock and roller are non-nil.
// Postcondition: both fighters have full life and settings.FleeAttempts; the
// combat countdown is running for a.
func Start(a, b *player.Player, clock Clock, settings Settings, roller *dice.Roller) *Fight {
	for _, p := range []*player.Player{a, b} {
		p.FleeAttempts = settings.FleeAttempts
		p.CurrentLife = p.EffectiveMaxLife()
		p.LastDiceResult = 0
	}
	f := &Fight{fighters: [2]*player.Player{a, b}, clock: clock, settings: settings, roller: roller}
	f.startClock()
	return f
}

// Current returns the fighter whose move it is.
func (f *Fight) Current() *player.Player { return f.fighters[f.current] }

// Opponent returns the fighter waiting for their move.
func (f *Fight) Opponent() *player.Player { return f.fighters[1-f.current] }

// Fighters returns both participants in start order.
func (f *Fight) Fighters() [2]*player.Player { return f.fighters }

// Involves reports whether id is one of the fighters.
func (f *Fight) Involves(id string) bool {
	return f.fighters[0].ID == id || f.fighters[1].ID == id
}

// ChangeFighter passes the move to the opponent and restarts the countdown.
func (f *Fight) ChangeFighter() {
	f.current = 1 - f.current
	f.startClock()
}

func (f *Fight) startClock() {
	seconds := f.settings.TurnSeconds
	if f.Current().FleeAttempts <= 0 {
		seconds = f.settings.NoFleeTurnSeconds
	}
	f.clock.Start(seconds, timer.Combat)
}

// ResolveAttack rolls the current fighter's attack against the opponent's
// defense. In debug mode the attacker rolls its maximum face and the
// defender its minimum.
//
// Postcondition: returns a non-nil Result exactly when the defender's life
// reached 0; otherwise the move has passed to the defender.
func (f *Fight) ResolveAttack(debug bool) (Attack, *Result) {
	attacker, defender := f.Current(), f.Opponent()
	atkBias, defBias := dice.Fair, dice.Fair
	if debug {
		atkBias, defBias = dice.Highest, dice.Lowest
	}
	atkRoll := f.roller.Roll(attacker.AttackDice, atkBias)
	defRoll := f.roller.Roll(defender.DefenseDice, defBias)
	attacker.LastDiceResult = atkRoll.Total()
	defender.LastDiceResult = defRoll.Total()

	out := Attack{
		AttackerID:   attacker.ID,
		DefenderID:   defender.ID,
		AttackRoll:   atkRoll,
		DefenseRoll:  defRoll,
		AttackTotal:  attacker.EffectiveAttack() + atkRoll.Total(),
		DefenseTotal: defender.EffectiveDefense() + defRoll.Total(),
	}
	out.Damage = max(0, out.AttackTotal-out.DefenseTotal)
	defender.ApplyDamage(out.Damage)
	out.DefenderLife = defender.CurrentLife

	if defender.CurrentLife == 0 {
		return out, &Result{Winner: attacker, Loser: defender}
	}
	f.ChangeFighter()
	return out, nil
}

// AttemptFlee spends one flee attempt of the current fighter.
//
// Postcondition: on escape the fight is over; on failure the move has
// passed to the opponent; with no attempts left returns ErrNoFleeAttempts
// and nothing changes.
func (f *Fight) AttemptFlee() (bool, error) {
	cur := f.Current()
	if cur.FleeAttempts <= 0 {
		return false, ErrNoFleeAttempts
	}
	cur.FleeAttempts--
	if f.roller.Chance(f.settings.FleeChance) {
		return true, nil
	}
	f.ChangeFighter()
	return false, nil
}

// HandleRemoval resolves the fight when id leaves the match.
//
// Postcondition: returns nil when id is not a fighter; otherwise the other
// fighter is the winner.
func (f *Fight) HandleRemoval(id string) *Result {
	switch id {
	case f.fighters[0].ID:
		return &Result{Winner: f.fighters[1], Loser: f.fighters[0]}
	case f.fighters[1].ID:
		return &Result{Winner: f.fighters[0], Loser: f.fighters[1]}
	}
	return nil
}
