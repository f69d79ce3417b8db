package match

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/gridbrawl/internal/game/player"
)

// scheduleBot asks a virtual active player for its next instruction after
// the think delay.
func (g *Game) scheduleBot() {
	p := g.Active()
	if p == nil || !p.IsVirtual() || !g.turnActive || g.over {
		return
	}
	g.cancelBotThink()
	gen := g.turnGen
	g.cancelBot = g.sched.After(g.settings.BotThinkDelay, func() {
		g.cancelBot = nil
		if gen != g.turnGen || g.over || g.fight != nil || g.movementInProgress {
			return
		}
		g.runBot(p)
	})
}

func (g *Game) runBot(p *player.Player) {
	g.botDecisions++
	if g.botDecisions > g.settings.MaxBotDecisions {
		g.logger.Debug("bot decision limit reached", zap.String("player", p.ID))
		g.endTurn()
		return
	}
	ins := p.Agent.Decide(player.View{Self: p, Players: g.Players(), Grid: g.grid, IsCTF: g.isCTF})
	g.logger.Debug("bot instruction", zap.String("player", p.ID), zap.String("kind", string(ins.Kind)))

	var ok bool
	switch ins.Kind {
	case player.InstructionMove:
		ok = g.ProcessPath(ins.Path, p.ID)
	case player.InstructionOpenDoor:
		ok = g.ChangeDoorState(ins.Target, p.ID)
	case player.InstructionInitFight:
		ok = g.InitFight(p.ID, ins.TargetID)
	}
	if !ok && g.Active() == p && !g.over {
		g.endTurn()
	}
}

// scheduleBotFight lets a virtual current fighter act after the think delay.
func (g *Game) scheduleBotFight() {
	f := g.fight
	if f == nil || !f.Current().IsVirtual() {
		return
	}
	g.cancelBotThink()
	cur := f.Current()
	g.cancelBot = g.sched.After(g.settings.BotThinkDelay, func() {
		g.cancelBot = nil
		if g.fight != f || f.Current() != cur {
			return
		}
		if cur.Agent.DecideFight(cur) == player.FightFlee && cur.FleeAttempts > 0 {
			g.FightFlee(cur.ID)
			return
		}
		g.resolveAttack()
	})
}

func (g *Game) cancelBotThink() {
	if g.cancelBot != nil {
		g.cancelBot()
		g.cancelBot = nil
	}
}
