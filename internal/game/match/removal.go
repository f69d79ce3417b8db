package match

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/gridbrawl/internal/game/event"
	"github.com/cory-johannsen/gridbrawl/internal/game/player"
)

// RemovePlayer takes playerID out of a running match. A fight they are in
// is lost, their items are dropped, and the turn passes on if it was theirs.
// The match ends when a single player remains.
func (g *Game) RemovePlayer(playerID string) {
	if !g.hasStarted {
		g.RemoveLobbyPlayer(playerID)
		return
	}
	idx := g.indexOf(playerID)
	if idx < 0 {
		return
	}
	p := g.players[idx]
	wasActive := idx == g.current
	fightEnded := false

	if g.fight != nil && g.fight.Involves(playerID) {
		res := g.fight.HandleRemoval(playerID)
		g.fight = nil
		g.cancelBotThink()
		fightEnded = true
		g.emit(event.Broadcast(event.FightEnd, event.FightEndPayload{WinnerID: res.Winner.ID, LoserID: res.Loser.ID}))
		g.emit(event.Direct(res.Winner.ID, event.Winner, event.PlayerPayload{PlayerID: res.Winner.ID}))
		res.Winner.Victories++
	}
	if wasActive {
		g.cancelPending()
		g.movementInProgress = false
		g.pendingEndTurn = false
	}
	if g.choice != nil && g.choice.playerID == playerID {
		g.choice = nil
	}

	if !g.over {
		g.DropItems(p)
	}
	g.grid.Clear(p.Position)
	g.players = append(g.players[:idx], g.players[idx+1:]...)
	if idx < g.current {
		g.current--
	}
	if len(g.players) > 0 {
		g.current %= len(g.players)
	}
	if g.admin == playerID {
		g.ToggleDebug(false)
	}
	g.emit(event.Broadcast(event.PlayerRemoved, event.PlayerPayload{PlayerID: playerID}))
	g.emit(event.Broadcast(event.PlayersUpdated, event.PlayersPayload{Players: g.Snapshots()}))
	g.logger.Info("player removed", zap.String("player", playerID), zap.Bool("active", wasActive))

	if g.over {
		return
	}
	if len(g.players) <= 1 {
		g.gameOver(g.players, player.TeamNone, ReasonLastStanding)
		return
	}
	if g.isCTF {
		if team, ok := soleTeam(g.players); ok {
			g.gameOver(g.players, team, ReasonLastStanding)
			return
		}
	}
	for _, q := range g.players {
		if !g.isCTF && q.Victories >= g.settings.VictoriesToWin {
			g.gameOver([]*player.Player{q}, player.TeamNone, ReasonVictories)
			return
		}
	}
	switch {
	case wasActive:
		g.timer.Reset()
		g.StartTurn()
	case fightEnded:
		if !g.timer.Resume() {
			g.timer.Stop()
		}
		g.checkEligibility()
	}
}

// soleTeam reports the team of players when only one team remains.
func soleTeam(players []*player.Player) (player.Team, bool) {
	team := players[0].Team
	for _, p := range players[1:] {
		if p.Team != team {
			return player.TeamNone, false
		}
	}
	return team, true
}
