package match

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/gridbrawl/internal/game/event"
	"github.com/cory-johannsen/gridbrawl/internal/game/grid"
	"github.com/cory-johannsen/gridbrawl/internal/game/player"
	"github.com/cory-johannsen/gridbrawl/internal/game/timer"
)

// StartTurn begins the turn of the current player. The movement countdown
// starts after the grace delay.
//
// Precondition: Configure returned true.
func (g *Game) StartTurn() {
	if !g.hasStarted || g.over || len(g.players) == 0 {
		return
	}
	g.cancelPending()
	g.turnGen++
	g.turnActive = false
	g.movementInProgress = false
	g.pendingEndTurn = false
	g.choice = nil
	g.botDecisions = 0

	p := g.Active()
	p.ResetTurn()
	g.refreshReachable()

	g.emit(event.Broadcast(event.TurnChanged, event.TurnPayload{
		PlayerID:    p.ID,
		MovementPts: p.MovementPts,
		Actions:     p.Actions,
	}))
	g.emit(event.Broadcast(event.PlayersUpdated, event.PlayersPayload{Players: g.Snapshots()}))

	gen := g.turnGen
	g.cancelGrace = g.sched.After(g.settings.GraceDelay, func() {
		g.cancelGrace = nil
		if gen != g.turnGen || g.over {
			return
		}
		g.turnActive = true
		g.timer.Start(g.settings.TurnSeconds, timer.Movement)
		if gen != g.turnGen {
			return
		}
		g.emit(event.Broadcast(event.TurnStarted, event.TurnPayload{
			PlayerID:    p.ID,
			MovementPts: p.MovementPts,
			Actions:     p.Actions,
		}))
		g.emitReachable()
		g.scheduleBot()
	})
}

// EndTurnRequested ends the turn of playerID, deferring until the current
// animation completes when one is running.
func (g *Game) EndTurnRequested(playerID string) {
	a := g.Active()
	if a == nil || a.ID != playerID || g.over {
		return
	}
	if g.fight != nil {
		g.logger.Debug("end turn ignored during fight", zap.String("player", playerID))
		return
	}
	if g.movementInProgress {
		g.pendingEndTurn = true
		return
	}
	g.endTurn()
}

// endTurn advances to the next player.
func (g *Game) endTurn() {
	if g.over || len(g.players) == 0 {
		return
	}
	g.timer.Reset()
	g.cancelPending()
	g.choice = nil
	g.current = (g.current + 1) % len(g.players)
	g.StartTurn()
}

// checkEligibility ends the turn when the active player can neither move nor act.
func (g *Game) checkEligibility() {
	if g.over || g.fight != nil || g.movementInProgress || !g.hasStarted {
		return
	}
	if g.pendingEndTurn {
		g.endTurn()
		return
	}
	p := g.Active()
	g.refreshReachable()
	if g.choice != nil {
		g.emitReachable()
		return
	}
	if len(g.reachable) > 0 || (p.Actions > 0 && player.CanAct(g.grid, p, g.players, g.isCTF)) {
		g.emitReachable()
		g.scheduleBot()
		return
	}
	g.logger.Debug("turn exhausted", zap.String("player", p.ID))
	g.endTurn()
}

func (g *Game) refreshReachable() {
	p := g.Active()
	if p == nil {
		g.reachable = map[grid.Position]grid.Path{}
		return
	}
	g.reachable = grid.FindReachablePaths(g.grid, p.Position, p.MovementPts)
}

func (g *Game) emitReachable() {
	p := g.Active()
	if p == nil || p.IsVirtual() {
		return
	}
	g.emit(event.Direct(p.ID, event.ReachablePaths, event.ReachablePayload{
		PlayerID: p.ID,
		Paths:    g.sortedReachable(),
	}))
}

// OnTimerTick implements timer.Listener.
func (g *Game) OnTimerTick(mode timer.Mode, remaining int) {
	g.emit(event.Broadcast(event.TimerUpdate, event.TimerPayload{Mode: string(mode), Remaining: remaining}))
}

// OnTimerExpired implements timer.Listener. An expired movement countdown
// ends the turn; an expired combat countdown attacks for the current fighter.
func (g *Game) OnTimerExpired(mode timer.Mode) {
	g.emit(event.Broadcast(event.TimerUpdate, event.TimerPayload{Mode: string(mode), Expired: true}))
	if g.over {
		return
	}
	switch mode {
	case timer.Movement:
		if a := g.Active(); a != nil && g.fight == nil {
			g.EndTurnRequested(a.ID)
		}
	case timer.Combat:
		if g.fight != nil {
			g.resolveAttack()
		}
	}
}

// gameOver ends the match.
func (g *Game) gameOver(winners []*player.Player, team player.Team, reason string) {
	if g.over {
		return
	}
	g.over = true
	g.fight = nil
	g.timer.Reset()
	g.cancelPending()
	ids := make([]string, len(winners))
	for i, w := range winners {
		ids[i] = w.ID
	}
	g.emit(event.Broadcast(event.GameOver, event.GameOverPayload{WinnerIDs: ids, Team: team, Reason: reason}))
	g.logger.Info("match over", zap.Strings("winners", ids), zap.String("reason", reason))
}

// checkFlagCapture ends a CTF match when p carries the flag onto their spawn.
func (g *Game) checkFlagCapture(p *player.Player) bool {
	if !g.isCTF || !p.HasFlag() || !p.OnSpawn() {
		return false
	}
	var team []*player.Player
	for _, q := range g.players {
		if q.Team == p.Team {
			team = append(team, q)
		}
	}
	g.gameOver(team, p.Team, ReasonFlagCaptured)
	return true
}

// Game over reasons.
const (
	ReasonVictories    = "victories"
	ReasonFlagCaptured = "flagCaptured"
	ReasonLastStanding = "lastPlayerStanding"
)
