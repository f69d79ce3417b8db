package grid

// spawnable reports whether a player may be placed on c.
func spawnable(c *Cell) bool {
	if c.Occupied() || c.Terrain.IsDoor() {
		return false
	}
	return c.Terrain != Wall
}

// FindValidSpawn returns preferred when a player can stand there, otherwise
// the nearest such cell by breadth-first search in Directions order.
//
// Postcondition: returns false only when no free non-door, non-wall cell exists.
func FindValidSpawn(g *Grid, preferred Position) (Position, bool) {
	start := g.At(preferred)
	if start == nil {
		return Position{}, false
	}
	visited := map[Position]struct{}{preferred: {}}
	queue := []Position{preferred}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if spawnable(g.At(cur)) {
			return cur, true
		}
		for _, n := range g.Neighbors(cur) {
			if _, seen := visited[n]; seen {
				continue
			}
			visited[n] = struct{}{}
			queue = append(queue, n)
		}
	}
	return Position{}, false
}

// SpawnPoints returns every cell carrying the spawn marker in row-major order.
func SpawnPoints(g *Grid) []Position {
	var out []Position
	for i := range g.cells {
		if g.cells[i].Item == Spawn {
			out = append(out, g.cells[i].Position)
		}
	}
	return out
}

// RemoveUnusedSpawnPoints clears every spawn marker not listed in used.
//
// Postcondition: SpawnPoints(g) is a subset of used.
func RemoveUnusedSpawnPoints(g *Grid, used []Position) {
	keep := make(map[Position]struct{}, len(used))
	for _, p := range used {
		keep[p] = struct{}{}
	}
	for i := range g.cells {
		c := &g.cells[i]
		if c.Item != Spawn {
			continue
		}
		if _, ok := keep[c.Position]; !ok {
			c.Item = NoItem
		}
	}
}
