package player

import (
	"sort"

	"github.com/cory-johannsen/gridbrawl/internal/game/dice"
	"github.com/cory-johannsen/gridbrawl/internal/game/grid"
)

// ByID returns the player with id, or nil.
func ByID(players []*Player, id string) *Player {
	for _, p := range players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// ByAvatar returns the player using avatar, or nil.
func ByAvatar(players []*Player, avatar string) *Player {
	if avatar == "" {
		return nil
	}
	for _, p := range players {
		if p.Avatar == avatar {
			return p
		}
	}
	return nil
}

// SortBySpeedDescending orders players fastest first. Equal-speed players
// are ordered by a fresh random draw on every call.
//
// Postcondition: for all i < j, players[i].EffectiveSpeed() >= players[j].EffectiveSpeed().
func SortBySpeedDescending(players []*Player, src dice.Source) {
	keys := make(map[string]int, len(players))
	for _, p := range players {
		keys[p.ID] = src.Intn(1 << 30)
	}
	sort.SliceStable(players, func(i, j int) bool {
		si, sj := players[i].EffectiveSpeed(), players[j].EffectiveSpeed()
		if si != sj {
			return si > sj
		}
		return keys[players[i].ID] < keys[players[j].ID]
	})
}

// AssignTeams splits players into two balanced CTF sides at random.
//
// Precondition: len(players) is even.
// Postcondition: exactly half the players are TeamRed, the rest TeamBlue.
func AssignTeams(players []*Player, src dice.Source) {
	order := append([]*Player(nil), players...)
	dice.Shuffle(src, len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	for i, p := range order {
		if i < len(order)/2 {
			p.Team = TeamRed
		} else {
			p.Team = TeamBlue
		}
	}
}

// AssignSpawnPoints shuffles spawns and gives one to each player in roster
// order, stamping the avatar into the cell.
//
// Precondition: len(spawns) >= len(players).
// Postcondition: returns the spawn cells now in use; Position == Spawn for each player.
func AssignSpawnPoints(players []*Player, spawns []grid.Position, g *grid.Grid, src dice.Source) []grid.Position {
	pool := append([]grid.Position(nil), spawns...)
	dice.Shuffle(src, len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	used := make([]grid.Position, 0, len(players))
	for i, p := range players {
		if i >= len(pool) {
			break
		}
		p.Position = pool[i]
		p.Spawn = pool[i]
		g.Place(p.Avatar, pool[i])
		used = append(used, pool[i])
	}
	return used
}

// CanAct reports whether p could spend an action from where it stands: an
// adjacent door to toggle or an adjacent opponent to fight.
func CanAct(g *grid.Grid, p *Player, players []*Player, isCTF bool) bool {
	for _, n := range g.Neighbors(p.Position) {
		cell := g.At(n)
		if cell.Terrain.IsDoor() {
			return true
		}
		if other := ByAvatar(players, cell.Occupant); p.Enemy(other, isCTF) {
			return true
		}
	}
	return false
}
