package ai

import (
	"strings"

	"github.com/cory-johannsen/gridbrawl/internal/game/grid"
	"github.com/cory-johannsen/gridbrawl/internal/game/player"
)

// WorldState is the snapshot a bot plans from.
//
// Invariant: Self must not be nil. Grid may be nil when only fight
// decisions are planned.
type WorldState struct {
	Self    *player.Player
	Players []*player.Player
	Grid    *grid.Grid
	IsCTF   bool
}

// NewWorldState builds a WorldState from the match view.
func NewWorldState(v player.View) *WorldState {
	return &WorldState{Self: v.Self, Players: v.Players, Grid: v.Grid, IsCTF: v.IsCTF}
}

// Enemies returns the opponents of Self in roster order.
func (ws *WorldState) Enemies() []*player.Player {
	var out []*player.Player
	for _, p := range ws.Players {
		if ws.Self.Enemy(p, ws.IsCTF) {
			out = append(out, p)
		}
	}
	return out
}

// FlagCarrier returns the enemy holding the flag, or nil.
func (ws *WorldState) FlagCarrier() *player.Player {
	if !ws.IsCTF {
		return nil
	}
	for _, e := range ws.Enemies() {
		if e.HasFlag() {
			return e
		}
	}
	return nil
}

// AdjacentEnemy returns the first enemy next to Self, or nil.
func (ws *WorldState) AdjacentEnemy() *player.Player {
	for _, e := range ws.Enemies() {
		if ws.Self.Position.Adjacent(e.Position) {
			return e
		}
	}
	return nil
}

// Facts returns the self and world maps exposed to CEL guards and Lua hooks.
func (ws *WorldState) Facts() map[string]any {
	s := ws.Self
	self := map[string]any{
		"id":           s.ID,
		"profile":      string(s.Profile),
		"team":         string(s.Team),
		"life":         s.CurrentLife,
		"maxLife":      s.EffectiveMaxLife(),
		"wounded":      s.Wounded(),
		"fleeAttempts": s.FleeAttempts,
		"movementPts":  s.MovementPts,
		"actions":      s.Actions,
		"onSpawn":      s.OnSpawn(),
		"hasFlag":      s.HasFlag(),
		"items":        len(s.Inventory.Items()),
		"backpackFull": s.Inventory.Full(),
		"victories":    s.Victories,
	}
	world := map[string]any{
		"ctf":           ws.IsCTF,
		"enemies":       len(ws.Enemies()),
		"enemyHasFlag":  ws.FlagCarrier() != nil,
		"adjacentEnemy": ws.AdjacentEnemy() != nil,
	}
	return map[string]any{"self": self, "world": world}
}

// Target is a resolved destination of a pursue operator.
type Target struct {
	Position grid.Position
	Path     grid.Path
	// Enemy is set when the destination is an opponent.
	Enemy *player.Player
}

// ResolveTarget maps a target token to a reachable destination.
//
// Tokens: "own_spawn", "flag_carrier", "nearest_enemy", and
// "valuable:<offensive|defensive>" which picks the nearest candidate in the
// tiers flag, preferred items, other items, enemies.
//
// Postcondition: returns false when the token resolves to nothing reachable
// (paths may run through closed doors).
func (ws *WorldState) ResolveTarget(token string) (Target, bool) {
	if ws.Grid == nil {
		return Target{}, false
	}
	switch {
	case token == "own_spawn":
		if ws.Self.OnSpawn() {
			return Target{}, false
		}
		return ws.toCell(ws.Self.Spawn)
	case token == "flag_carrier":
		if c := ws.FlagCarrier(); c != nil {
			return ws.toEnemy(c)
		}
		return Target{}, false
	case token == "nearest_enemy":
		return ws.nearestEnemy()
	case strings.HasPrefix(token, "valuable"):
		prefer := grid.CategoryOffensive
		if strings.HasSuffix(token, ":defensive") {
			prefer = grid.CategoryDefensive
		}
		return ws.nearestValuable(prefer)
	}
	return Target{}, false
}

func (ws *WorldState) nearestValuable(prefer grid.Category) (Target, bool) {
	other := grid.CategoryDefensive
	if prefer == grid.CategoryDefensive {
		other = grid.CategoryOffensive
	}
	tiers := []grid.Category{grid.CategoryObjective}
	if !ws.Self.Inventory.Full() {
		tiers = append(tiers, prefer, other)
	}
	for _, cat := range tiers {
		if t, ok := ws.nearestItem(cat); ok {
			return t, true
		}
	}
	return ws.nearestEnemy()
}

func (ws *WorldState) nearestItem(cat grid.Category) (Target, bool) {
	var best Target
	found := false
	for _, c := range ws.Grid.Cells() {
		if !c.Item.Collectible() || c.Item.Category() != cat {
			continue
		}
		if cat == grid.CategoryObjective && !ws.IsCTF {
			continue
		}
		t, ok := ws.toCell(c.Position)
		if ok && (!found || t.Path.Cost < best.Path.Cost) {
			best, found = t, true
		}
	}
	return best, found
}

func (ws *WorldState) nearestEnemy() (Target, bool) {
	var best Target
	found := false
	for _, e := range ws.Enemies() {
		t, ok := ws.toEnemy(e)
		if ok && (!found || t.Path.Cost < best.Path.Cost) {
			best, found = t, true
		}
	}
	return best, found
}

func (ws *WorldState) toCell(pos grid.Position) (Target, bool) {
	path, ok := grid.FindPath(ws.Grid, ws.Self.Position, pos, grid.PathOptions{ThroughClosedDoors: true})
	if !ok {
		return Target{}, false
	}
	return Target{Position: pos, Path: path}, true
}

func (ws *WorldState) toEnemy(e *player.Player) (Target, bool) {
	if ws.Self.Position.Adjacent(e.Position) {
		return Target{Position: e.Position, Path: grid.Path{Positions: []grid.Position{e.Position}}, Enemy: e}, true
	}
	path, ok := grid.FindPath(ws.Grid, ws.Self.Position, e.Position, grid.PathOptions{ThroughClosedDoors: true, AllowOccupiedGoal: true})
	if !ok {
		return Target{}, false
	}
	return Target{Position: e.Position, Path: path, Enemy: e}, true
}
