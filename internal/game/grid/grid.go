// Package grid models the square game board: terrain, occupancy, items and
// the cost-aware pathfinding used for movement and AI planning.
package grid

import (
	"fmt"
	"math"
)

// Impassable is the traversal cost of cells that can never be entered.
const Impassable = math.MaxInt32

// Position addresses a cell. X is the column and Y is the row.
type Position struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Add returns p offset by d.
func (p Position) Add(d Direction) Position {
	off := directionOffsets[d]
	return Position{X: p.X + off.X, Y: p.Y + off.Y}
}

// Adjacent reports whether q is one orthogonal step away from p.
func (p Position) Adjacent(q Position) bool {
	dx, dy := p.X-q.X, p.Y-q.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx+dy == 1
}

func (p Position) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Direction is one of the four orthogonal moves.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

// Directions is the fixed neighbor scan order shared by every grid search.
var Directions = [...]Direction{Up, Down, Left, Right}

var directionOffsets = [...]Position{
	Up:    {X: 0, Y: -1},
	Down:  {X: 0, Y: 1},
	Left:  {X: -1, Y: 0},
	Right: {X: 1, Y: 0},
}

// Terrain is the tile type of a cell.
type Terrain string

const (
	Floor      Terrain = "floor"
	Ice        Terrain = "ice"
	Water      Terrain = "water"
	Wall       Terrain = "wall"
	ClosedDoor Terrain = "closed_door"
	OpenedDoor Terrain = "opened_door"
)

// Cost returns the movement cost of entering a cell of this terrain.
//
// Postcondition: Wall, ClosedDoor and unknown terrain return Impassable.
func (t Terrain) Cost() int {
	switch t {
	case Ice:
		return 0
	case Floor, OpenedDoor:
		return 1
	case Water:
		return 2
	default:
		return Impassable
	}
}

// IsDoor reports whether t is a door in either state.
func (t Terrain) IsDoor() bool {
	return t == ClosedDoor || t == OpenedDoor
}

// Valid reports whether t is a known terrain.
func (t Terrain) Valid() bool {
	switch t {
	case Floor, Ice, Water, Wall, ClosedDoor, OpenedDoor:
		return true
	}
	return false
}

// Cell is one tile of the board.
type Cell struct {
	Position Position `json:"position"`
	Terrain  Terrain  `json:"terrain"`
	// Occupant is the avatar standing on the cell; empty when free.
	Occupant string `json:"occupant,omitempty"`
	Item     Item   `json:"item,omitempty"`
}

// Occupied reports whether a player stands on the cell.
func (c *Cell) Occupied() bool {
	return c.Occupant != ""
}

// Cost returns the planning cost of entering the cell.
//
// Postcondition: occupied cells return Impassable regardless of terrain.
func (c *Cell) Cost() int {
	if c.Occupied() {
		return Impassable
	}
	return c.Terrain.Cost()
}

// Grid is an N×N board stored row-major.
//
// Invariant: len(cells) == Size*Size; positions never change after New.
type Grid struct {
	Size  int
	cells []Cell
}

// New creates a Size×Size grid filled with Floor.
//
// Precondition: size > 0.
func New(size int) *Grid {
	if size <= 0 {
		panic("grid.New: size must be > 0")
	}
	g := &Grid{Size: size, cells: make([]Cell, size*size)}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			g.cells[y*size+x] = Cell{Position: Position{X: x, Y: y}, Terrain: Floor}
		}
	}
	return g
}

// InBounds reports whether p lies on the board.
func (g *Grid) InBounds(p Position) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < g.Size && p.Y < g.Size
}

// At returns the cell at p, or nil when p is out of bounds.
func (g *Grid) At(p Position) *Cell {
	if !g.InBounds(p) {
		return nil
	}
	return &g.cells[p.Y*g.Size+p.X]
}

// Cells returns every cell in row-major order. The slice aliases the grid.
func (g *Grid) Cells() []Cell {
	return g.cells
}

// Rows returns a row-major copy of the board for serialization.
func (g *Grid) Rows() [][]Cell {
	rows := make([][]Cell, g.Size)
	for y := range rows {
		rows[y] = append([]Cell(nil), g.cells[y*g.Size:(y+1)*g.Size]...)
	}
	return rows
}

// Clone returns a deep copy of g.
func (g *Grid) Clone() *Grid {
	return &Grid{Size: g.Size, cells: append([]Cell(nil), g.cells...)}
}

// Neighbors returns the in-bounds orthogonal neighbors of p in Directions order.
func (g *Grid) Neighbors(p Position) []Position {
	out := make([]Position, 0, len(Directions))
	for _, d := range Directions {
		if n := p.Add(d); g.InBounds(n) {
			out = append(out, n)
		}
	}
	return out
}

// Place stamps avatar onto p.
//
// Precondition: p is in bounds.
func (g *Grid) Place(avatar string, p Position) {
	g.At(p).Occupant = avatar
}

// Clear removes any occupant from p. Out-of-bounds positions are ignored.
func (g *Grid) Clear(p Position) {
	if c := g.At(p); c != nil {
		c.Occupant = ""
	}
}

// Find returns the position of avatar, or false when it is not on the board.
func (g *Grid) Find(avatar string) (Position, bool) {
	for i := range g.cells {
		if g.cells[i].Occupant == avatar {
			return g.cells[i].Position, true
		}
	}
	return Position{}, false
}
