package match

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/gridbrawl/internal/game/combat"
	"github.com/cory-johannsen/gridbrawl/internal/game/event"
	"github.com/cory-johannsen/gridbrawl/internal/game/player"
)

// InitFight starts a duel between the active player and an adjacent enemy,
// spending the active player's action. The faster fighter opens; ties go
// to the initiator.
func (g *Game) InitFight(playerID, targetID string) bool {
	if g.movementInProgress || g.fight != nil || g.choice != nil || !g.isActive(playerID) {
		return false
	}
	p := g.Active()
	target := g.Player(targetID)
	if p.Actions <= 0 || target == nil || !p.Enemy(target, g.isCTF) || !p.Position.Adjacent(target.Position) {
		g.logger.Debug("fight refused", zap.String("player", playerID), zap.String("target", targetID))
		return false
	}
	p.Actions--
	g.cancelBotThink()

	first, second := p, target
	if target.EffectiveSpeed() > p.EffectiveSpeed() {
		first, second = target, p
	}
	g.emit(event.Broadcast(event.FightInit, event.FightInitPayload{FirstID: first.ID, SecondID: second.ID}))
	g.fight = combat.Start(first, second, g.timer, g.settings.Combat, g.roller)
	g.logger.Info("fight started", zap.String("first", first.ID), zap.String("second", second.ID))
	g.scheduleBotFight()
	return true
}

// FightAttack resolves an attack by the current fighter.
func (g *Game) FightAttack(playerID string) bool {
	if g.fight == nil || g.fight.Current().ID != playerID {
		return false
	}
	g.resolveAttack()
	return true
}

// FightFlee makes the current fighter attempt to escape.
func (g *Game) FightFlee(playerID string) bool {
	f := g.fight
	if f == nil || f.Current().ID != playerID {
		return false
	}
	cur := f.Current()
	escaped, err := f.AttemptFlee()
	if err != nil {
		g.emit(event.Direct(playerID, event.Error, event.ErrorPayload{Intent: "fightFlee", Message: err.Error()}))
		return false
	}
	g.emit(event.Broadcast(event.FightFlee, event.FightFleePayload{
		PlayerID:     cur.ID,
		Escaped:      escaped,
		FleeAttempts: cur.FleeAttempts,
	}))
	if escaped {
		g.endFight(combat.Result{})
		return true
	}
	g.fighterChanged()
	return true
}

func (g *Game) resolveAttack() {
	atk, res := g.fight.ResolveAttack(g.debug)
	g.emit(event.Broadcast(event.FightAttack, event.FightAttackPayload{
		AttackerID:   atk.AttackerID,
		DefenderID:   atk.DefenderID,
		AttackRoll:   atk.AttackRoll.Total(),
		DefenseRoll:  atk.DefenseRoll.Total(),
		AttackTotal:  atk.AttackTotal,
		DefenseTotal: atk.DefenseTotal,
		Damage:       atk.Damage,
		DefenderLife: atk.DefenderLife,
	}))
	if res != nil {
		g.endFight(*res)
		return
	}
	g.fighterChanged()
}

func (g *Game) fighterChanged() {
	g.emit(event.Broadcast(event.FighterChanged, event.PlayerPayload{PlayerID: g.fight.Current().ID}))
	g.scheduleBotFight()
}

// endFight applies the outcome and hands control back to the turn.
func (g *Game) endFight(res combat.Result) {
	g.fight = nil
	g.cancelBotThink()
	payload := event.FightEndPayload{Escaped: res.Escaped()}
	if !res.Escaped() {
		payload.WinnerID, payload.LoserID = res.Winner.ID, res.Loser.ID
	}
	g.emit(event.Broadcast(event.FightEnd, payload))

	if !res.Escaped() {
		g.emit(event.Direct(res.Winner.ID, event.Winner, event.PlayerPayload{PlayerID: res.Winner.ID}))
		g.emit(event.Direct(res.Loser.ID, event.Loser, event.PlayerPayload{PlayerID: res.Loser.ID}))
		if g.applyDefeat(res.Winner, res.Loser) {
			return
		}
	}
	g.emit(event.Broadcast(event.PlayersUpdated, event.PlayersPayload{Players: g.Snapshots()}))

	if a := g.Active(); !res.Escaped() && a != nil && res.Loser.ID == a.ID {
		g.endTurn()
		return
	}
	if !g.timer.Resume() {
		g.timer.Stop()
	}
	g.checkEligibility()
}

// applyDefeat credits the winner and sends the loser home. It returns true
// when the match ended.
func (g *Game) applyDefeat(winner, loser *player.Player) bool {
	winner.Victories++
	g.DropItems(loser)
	g.MovePlayerToSpawn(loser)
	if !g.isCTF && winner.Victories >= g.settings.VictoriesToWin {
		g.gameOver([]*player.Player{winner}, player.TeamNone, ReasonVictories)
		return true
	}
	return false
}
