package ai

import (
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridbrawl/internal/game/dice"
	"github.com/cory-johannsen/gridbrawl/internal/game/grid"
	"github.com/cory-johannsen/gridbrawl/internal/game/player"
)

// VirtualAgent is the player.Agent of a bot.
type VirtualAgent struct {
	planner *Planner
	logger  *zap.Logger
}

// NewVirtualAgent wraps planner as a player.Agent.
func NewVirtualAgent(planner *Planner, logger *zap.Logger) *VirtualAgent {
	return &VirtualAgent{planner: planner, logger: logger}
}

func (a *VirtualAgent) IsVirtual() bool { return true }

// Decide plans the behave task and turns the first actionable step into an
// instruction. Nothing actionable ends the turn.
func (a *VirtualAgent) Decide(v player.View) player.Instruction {
	ws := NewWorldState(v)
	plan, err := a.planner.Plan(ws, TaskBehave)
	if err != nil {
		a.logger.Warn("planning failed", zap.String("bot", v.Self.ID), zap.Error(err))
		return player.EndTurn
	}
	for _, step := range plan {
		switch step.Action {
		case ActionEndTurn:
			return player.EndTurn
		case ActionPursue:
			target, ok := ws.ResolveTarget(step.Target)
			if !ok {
				return player.EndTurn
			}
			return computePath(ws, target)
		}
	}
	return player.EndTurn
}

// DecideFight plans the fight task. Anything but a flee with attempts left
// is an attack.
func (a *VirtualAgent) DecideFight(self *player.Player) player.FightAction {
	plan, err := a.planner.Plan(&WorldState{Self: self}, TaskFight)
	if err != nil {
		return player.FightAttack
	}
	for _, step := range plan {
		switch step.Action {
		case ActionFlee:
			if self.FleeAttempts > 0 {
				return player.FightFlee
			}
			return player.FightAttack
		case ActionAttack:
			return player.FightAttack
		}
	}
	return player.FightAttack
}

// DecideDrop keeps the flag and the items of the profile's preferred
// category, leaving the least valued of the carried items and found.
func (a *VirtualAgent) DecideDrop(self *player.Player, found grid.Item) grid.Item {
	prefer := grid.CategoryOffensive
	if self.Profile == player.ProfileDefensive {
		prefer = grid.CategoryDefensive
	}
	rank := func(it grid.Item) int {
		switch it.Category() {
		case grid.CategoryObjective:
			return 2
		case prefer:
			return 1
		}
		return 0
	}
	drop := found
	for _, it := range self.Inventory.Items() {
		if rank(it) < rank(drop) {
			drop = it
		}
	}
	return drop
}

// computePath turns a target into a move bounded by the remaining movement
// points. A closed door next to the bot is opened first; an adjacent enemy
// target is fought.
func computePath(ws *WorldState, target Target) player.Instruction {
	self := ws.Self
	if target.Enemy != nil && self.Position.Adjacent(target.Enemy.Position) {
		if self.Actions > 0 {
			return player.Instruction{Kind: player.InstructionInitFight, TargetID: target.Enemy.ID}
		}
		return player.EndTurn
	}

	steps := target.Path.Positions
	if target.Enemy != nil && len(steps) > 0 {
		steps = steps[:len(steps)-1]
	}
	walk := grid.Path{Positions: steps}
	truncated := walk.Truncate(ws.Grid, self.MovementPts, func(c *grid.Cell) bool {
		return c.Occupied() || c.Terrain == grid.ClosedDoor
	})

	if truncated.Len() == 0 {
		if len(steps) > 0 && self.Actions > 0 {
			next := ws.Grid.At(steps[0])
			if next.Terrain == grid.ClosedDoor && self.Position.Adjacent(next.Position) {
				return player.Instruction{Kind: player.InstructionOpenDoor, Target: next.Position}
			}
		}
		return player.EndTurn
	}
	return player.Instruction{Kind: player.InstructionMove, Path: truncated}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

func builtinRegistry() *Registry {
	defaultOnce.Do(func() {
		conds, err := NewConditions(dice.NewRoller(dice.NewCryptoSource(), zap.NewNop()))
		if err != nil {
			panic(err)
		}
		defaultRegistry, err = NewDefaultRegistry(conds, nil, zap.NewNop())
		if err != nil {
			panic(err)
		}
	})
	return defaultRegistry
}

// GetInstruction runs the builtin policy of bot's profile for one decision.
func GetInstruction(bot *player.Player, isCTF bool, players []*player.Player, g *grid.Grid) player.Instruction {
	agent, err := builtinRegistry().AgentFor(bot.Profile)
	if err != nil {
		return player.EndTurn
	}
	return agent.Decide(player.View{Self: bot, Players: players, Grid: g, IsCTF: isCTF})
}

// ProcessFightAction runs the builtin fight policy of bot's profile.
func ProcessFightAction(bot *player.Player) player.FightAction {
	agent, err := builtinRegistry().AgentFor(bot.Profile)
	if err != nil {
		return player.FightAttack
	}
	return agent.DecideFight(bot)
}
