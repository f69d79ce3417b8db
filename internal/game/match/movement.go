package match

import (
	"errors"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridbrawl/internal/game/event"
	"github.com/cory-johannsen/gridbrawl/internal/game/grid"
	"github.com/cory-johannsen/gridbrawl/internal/game/inventory"
	"github.com/cory-johannsen/gridbrawl/internal/game/player"
)

// ProcessPath animates the active player along the reachable path to the
// destination of path, one cell per step interval.
//
// The server's own path to that destination is used; the client only
// chooses where to go.
//
// Postcondition: returns false and changes nothing when an end of turn is
// pending, an animation or fight is running, playerID is not the active
// player, or the destination is not reachable.
func (g *Game) ProcessPath(path grid.Path, playerID string) bool {
	if g.pendingEndTurn || g.movementInProgress || g.fight != nil || g.choice != nil || !g.isActive(playerID) {
		g.logger.Debug("move ignored", zap.String("player", playerID))
		return false
	}
	dest, ok := path.Destination()
	if !ok {
		return false
	}
	route, ok := g.reachable[dest]
	if !ok || route.Len() == 0 {
		g.logger.Debug("destination not reachable", zap.String("player", playerID), zap.Stringer("dest", dest))
		return false
	}
	g.movementInProgress = true
	g.scheduleStep(g.Active(), route.Positions, 0, 0)
	return true
}

func (g *Game) scheduleStep(p *player.Player, steps []grid.Position, i, spent int) {
	gen := g.turnGen
	g.cancelStep = g.sched.After(g.settings.StepInterval, func() {
		g.cancelStep = nil
		if gen != g.turnGen || g.over {
			return
		}
		g.step(p, steps, i, spent)
	})
}

func (g *Game) step(p *player.Player, steps []grid.Position, i, spent int) {
	to := steps[i]
	g.relocate(p, to)
	spent += g.grid.At(to).Terrain.Cost()

	halted := g.collect(p, to)
	if g.checkFlagCapture(p) {
		return
	}
	if halted || i == len(steps)-1 {
		g.finishMovement(p, spent)
		return
	}
	g.scheduleStep(p, steps, i+1, spent)
}

func (g *Game) finishMovement(p *player.Player, spent int) {
	g.movementInProgress = false
	p.MovementPts -= spent
	if p.MovementPts < 0 {
		p.MovementPts = 0
	}
	if g.pendingEndTurn {
		g.endTurn()
		return
	}
	g.checkEligibility()
}

// relocate moves p's avatar to to and announces it.
func (g *Game) relocate(p *player.Player, to grid.Position) {
	from := p.Position
	g.grid.Clear(from)
	g.grid.Place(p.Avatar, to)
	p.Position = to
	g.emit(event.Broadcast(event.PlayerMoved, event.MovedPayload{PlayerID: p.ID, From: from, To: to}))
}

// collect picks up the item at pos. It returns true when the backpack is
// full and movement must halt for an inventory choice.
func (g *Game) collect(p *player.Player, pos grid.Position) bool {
	cell := g.grid.At(pos)
	if !cell.Item.Collectible() {
		return false
	}
	found := cell.Item
	err := p.Inventory.Add(found)
	if errors.Is(err, inventory.ErrFull) {
		if p.IsVirtual() {
			g.resolveChoice(p, pos, found, p.Agent.DecideDrop(p, found))
			return true
		}
		g.choice = &pendingChoice{playerID: p.ID, position: pos, found: found}
		g.emit(event.Direct(p.ID, event.InventoryFull, event.ItemPayload{
			PlayerID: p.ID,
			Item:     found,
			Position: pos,
			Items:    append(p.Inventory.Items(), found),
		}))
		return true
	}
	if err != nil {
		g.logger.Warn("pickup failed", zap.String("player", p.ID), zap.Error(err))
		return false
	}
	cell.Item = grid.NoItem
	g.emit(event.Broadcast(event.ItemCollected, event.ItemPayload{PlayerID: p.ID, Item: found, Position: pos}))
	return false
}

// InventoryChoice resolves a full-backpack pickup: drop is left on the cell
// and the other items are kept. Dropping the found item leaves the backpack
// unchanged.
func (g *Game) InventoryChoice(playerID string, drop grid.Item) bool {
	c := g.choice
	if c == nil || c.playerID != playerID || g.over {
		return false
	}
	p := g.Player(playerID)
	if p == nil || (drop != c.found && !p.Inventory.Has(drop)) {
		return false
	}
	g.choice = nil
	g.resolveChoice(p, c.position, c.found, drop)
	if g.checkFlagCapture(p) {
		return true
	}
	g.checkEligibility()
	return true
}

func (g *Game) resolveChoice(p *player.Player, pos grid.Position, found, drop grid.Item) {
	if drop == found || !p.Inventory.Remove(drop) {
		return
	}
	cell := g.grid.At(pos)
	if err := p.Inventory.Add(found); err != nil {
		g.logger.Error("swap failed", zap.String("player", p.ID), zap.Error(err))
		return
	}
	cell.Item = drop
	g.emit(event.Broadcast(event.ItemCollected, event.ItemPayload{PlayerID: p.ID, Item: found, Position: pos}))
	g.emit(event.Broadcast(event.ItemDropped, event.ItemPayload{PlayerID: p.ID, Item: drop, Position: pos}))
}

// ChangeDoorState opens or closes the door at pos, spending the active
// player's action.
//
// Postcondition: returns false and changes nothing unless pos is an
// unoccupied door adjacent to the active player and an action remains.
func (g *Game) ChangeDoorState(pos grid.Position, playerID string) bool {
	if g.movementInProgress || g.fight != nil || g.choice != nil || !g.isActive(playerID) {
		return false
	}
	p := g.Active()
	cell := g.grid.At(pos)
	if p.Actions <= 0 || cell == nil || !cell.Terrain.IsDoor() || cell.Occupied() || !p.Position.Adjacent(pos) {
		return false
	}
	if cell.Terrain == grid.ClosedDoor {
		cell.Terrain = grid.OpenedDoor
	} else {
		cell.Terrain = grid.ClosedDoor
	}
	p.Actions--
	g.emit(event.Broadcast(event.DoorStateChanged, event.DoorPayload{Position: pos, Terrain: cell.Terrain}))
	g.checkEligibility()
	return true
}

// MovePlayerDebug teleports the active player to dest in debug mode.
func (g *Game) MovePlayerDebug(dest grid.Position, playerID string) bool {
	if !g.debug || g.movementInProgress || g.fight != nil || g.choice != nil || !g.isActive(playerID) {
		return false
	}
	cell := g.grid.At(dest)
	if cell == nil || cell.Occupied() || cell.Terrain == grid.Wall || cell.Terrain.IsDoor() {
		return false
	}
	p := g.Active()
	g.relocate(p, dest)
	g.collect(p, dest)
	if g.checkFlagCapture(p) {
		return true
	}
	g.checkEligibility()
	return true
}

// DropItems scatters p's backpack over the free neighboring cells in
// direction order. Items with no free cell are lost.
func (g *Game) DropItems(p *player.Player) {
	for _, item := range p.Inventory.Drain() {
		placed := false
		for _, n := range g.grid.Neighbors(p.Position) {
			c := g.grid.At(n)
			if c.Item != grid.NoItem || c.Occupied() || c.Terrain.IsDoor() || c.Terrain.Cost() == grid.Impassable {
				continue
			}
			c.Item = item
			g.emit(event.Broadcast(event.ItemDropped, event.ItemPayload{PlayerID: p.ID, Item: item, Position: n}))
			placed = true
			break
		}
		if !placed {
			g.logger.Info("item discarded, no free cell", zap.String("player", p.ID), zap.String("item", string(item)))
		}
	}
}

// MovePlayerToSpawn returns p to their spawn, or the nearest free cell when
// it is taken.
func (g *Game) MovePlayerToSpawn(p *player.Player) {
	g.grid.Clear(p.Position)
	dest, ok := grid.FindValidSpawn(g.grid, p.Spawn)
	if !ok {
		g.grid.Place(p.Avatar, p.Position)
		g.logger.Warn("no free cell to respawn", zap.String("player", p.ID))
		return
	}
	g.grid.Place(p.Avatar, p.Position)
	g.relocate(p, dest)
}
