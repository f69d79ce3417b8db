package grid

import "container/heap"

// Path is an ordered walk that excludes its origin.
//
// Invariant: Cost == sum of the terrain cost of every entry in Positions.
type Path struct {
	Positions []Position `json:"positions"`
	Cost      int        `json:"cost"`
}

// Destination returns the last position of the path, or false when empty.
func (p Path) Destination() (Position, bool) {
	if len(p.Positions) == 0 {
		return Position{}, false
	}
	return p.Positions[len(p.Positions)-1], true
}

// Len returns the number of steps in the path.
func (p Path) Len() int {
	return len(p.Positions)
}

// Truncate returns the longest prefix of p whose terrain cost fits in budget.
// Cells for which stop returns true end the prefix before they are entered.
func (p Path) Truncate(g *Grid, budget int, stop func(*Cell) bool) Path {
	var out Path
	for _, pos := range p.Positions {
		cell := g.At(pos)
		if cell == nil || (stop != nil && stop(cell)) {
			break
		}
		cost := cell.Terrain.Cost()
		if cost == Impassable || out.Cost+cost > budget {
			break
		}
		out.Positions = append(out.Positions, pos)
		out.Cost += cost
	}
	return out
}

type pathNode struct {
	pos   Position
	cost  int
	seq   int
	index int
}

// pathQueue orders nodes by cost, then by discovery order so equal-cost
// ties resolve to the first-discovered frontier.
type pathQueue []*pathNode

func (q pathQueue) Len() int { return len(q) }

func (q pathQueue) Less(i, j int) bool {
	if q[i].cost == q[j].cost {
		return q[i].seq < q[j].seq
	}
	return q[i].cost < q[j].cost
}

func (q pathQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *pathQueue) Push(x any) {
	n := x.(*pathNode)
	n.index = len(*q)
	*q = append(*q, n)
}

func (q *pathQueue) Pop() any {
	old := *q
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*q = old[:len(old)-1]
	return n
}

// search is a single Dijkstra expansion from origin.
type search struct {
	dist map[Position]int
	prev map[Position]Position
}

// dijkstra expands from origin using costOf for each entered cell.
// Expansion stops at goal when stopAt is non-nil; budget < 0 means unbounded.
func dijkstra(g *Grid, origin Position, budget int, costOf func(Position) int, stopAt *Position) search {
	s := search{
		dist: map[Position]int{origin: 0},
		prev: make(map[Position]Position),
	}
	seq := 0
	pq := &pathQueue{}
	heap.Push(pq, &pathNode{pos: origin, cost: 0, seq: seq})

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(*pathNode)
		if cur.cost > s.dist[cur.pos] {
			continue
		}
		if stopAt != nil && cur.pos == *stopAt {
			break
		}
		for _, n := range g.Neighbors(cur.pos) {
			step := costOf(n)
			if step == Impassable {
				continue
			}
			next := cur.cost + step
			if budget >= 0 && next > budget {
				continue
			}
			if old, seen := s.dist[n]; seen && old <= next {
				continue
			}
			s.dist[n] = next
			s.prev[n] = cur.pos
			seq++
			heap.Push(pq, &pathNode{pos: n, cost: next, seq: seq})
		}
	}
	return s
}

func (s search) pathTo(origin, target Position) Path {
	var rev []Position
	for at := target; at != origin; at = s.prev[at] {
		rev = append(rev, at)
	}
	out := Path{Positions: make([]Position, len(rev)), Cost: s.dist[target]}
	for i, pos := range rev {
		out.Positions[len(rev)-1-i] = pos
	}
	return out
}

// FindReachablePaths returns the cheapest path to every cell reachable from
// origin with at most budget movement points.
//
// Precondition: origin is in bounds.
// Postcondition: origin is absent from the result; every Path.Cost <= budget;
// no returned cell is a wall, a closed door or occupied.
func FindReachablePaths(g *Grid, origin Position, budget int) map[Position]Path {
	if budget < 0 {
		return map[Position]Path{}
	}
	s := dijkstra(g, origin, budget, func(p Position) int { return g.At(p).Cost() }, nil)
	out := make(map[Position]Path, len(s.dist))
	for pos := range s.dist {
		if pos == origin {
			continue
		}
		out[pos] = s.pathTo(origin, pos)
	}
	return out
}

// PathOptions tunes FindPath for planning beyond the current turn.
type PathOptions struct {
	// ThroughClosedDoors plans through closed doors at the cost of an opened door.
	ThroughClosedDoors bool
	// AllowOccupiedGoal lets the goal cell be occupied, e.g. by an enemy.
	AllowOccupiedGoal bool
}

// FindPath returns the cheapest unbounded path from -> to.
//
// Postcondition: returns false when to is unreachable or equals from.
func FindPath(g *Grid, from, to Position, opts PathOptions) (Path, bool) {
	if !g.InBounds(from) || !g.InBounds(to) || from == to {
		return Path{}, false
	}
	costOf := func(p Position) int {
		cell := g.At(p)
		if cell.Occupied() && !(opts.AllowOccupiedGoal && p == to) {
			return Impassable
		}
		if opts.ThroughClosedDoors && cell.Terrain == ClosedDoor {
			return OpenedDoor.Cost()
		}
		return cell.Terrain.Cost()
	}
	s := dijkstra(g, from, -1, costOf, &to)
	if _, ok := s.dist[to]; !ok {
		return Path{}, false
	}
	return s.pathTo(from, to), true
}
