// Package board defines the read-only map documents a match is created from
// and the providers that serve them.
package board

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/gridbrawl/internal/game/grid"
)

// MinSize and MaxSize bound the side length of a board.
const (
	MinSize = 4
	MaxSize = 30
)

// ErrNotFound is returned by providers for an unknown board name.
var ErrNotFound = errors.New("board: not found")

// Placement puts one item on a cell.
type Placement struct {
	Item     grid.Item
	Position grid.Position
}

// Board is a map document: terrain rows plus item placements.
//
// Invariant: after Validate succeeds, Rows is Size×Size and every placement
// sits on walkable, non-door terrain.
type Board struct {
	Name        string
	Description string
	IsCTF       bool
	Rows        []string
	Items       []Placement
}

// Size returns the side length of the board.
func (b *Board) Size() int { return len(b.Rows) }

// Validate checks the rows, the placements and the mode requirements.
func (b *Board) Validate() error {
	if b.Name == "" {
		return errors.New("board: name must not be empty")
	}
	if n := b.Size(); n < MinSize || n > MaxSize {
		return fmt.Errorf("board %q: size %d outside [%d, %d]", b.Name, n, MinSize, MaxSize)
	}
	g, err := grid.FromRows(b.Rows)
	if err != nil {
		return fmt.Errorf("board %q: %w", b.Name, err)
	}

	seen := make(map[grid.Position]bool, len(b.Items))
	spawns, flags := 0, 0
	for _, p := range b.Items {
		if !p.Item.Valid() || p.Item == grid.NoItem {
			return fmt.Errorf("board %q: unknown item %q", b.Name, p.Item)
		}
		cell := g.At(p.Position)
		if cell == nil {
			return fmt.Errorf("board %q: %s at %s is out of bounds", b.Name, p.Item, p.Position)
		}
		if cell.Terrain == grid.Wall || cell.Terrain.IsDoor() {
			return fmt.Errorf("board %q: %s at %s is on %s", b.Name, p.Item, p.Position, cell.Terrain)
		}
		if seen[p.Position] {
			return fmt.Errorf("board %q: two items at %s", b.Name, p.Position)
		}
		seen[p.Position] = true
		switch p.Item {
		case grid.Spawn:
			spawns++
		case grid.Flag:
			flags++
		}
	}
	if spawns < 2 {
		return fmt.Errorf("board %q: needs at least 2 spawn points, has %d", b.Name, spawns)
	}
	if b.IsCTF && flags != 1 {
		return fmt.Errorf("board %q: capture the flag needs exactly one flag, has %d", b.Name, flags)
	}
	if !b.IsCTF && flags != 0 {
		return fmt.Errorf("board %q: flag placed on a classic board", b.Name)
	}
	return nil
}

// Grid builds a fresh grid with every item placed.
//
// Precondition: Validate has succeeded.
func (b *Board) Grid() (*grid.Grid, error) {
	g, err := grid.FromRows(b.Rows)
	if err != nil {
		return nil, fmt.Errorf("board %q: %w", b.Name, err)
	}
	for _, p := range b.Items {
		cell := g.At(p.Position)
		if cell == nil {
			return nil, fmt.Errorf("board %q: %s at %s is out of bounds", b.Name, p.Item, p.Position)
		}
		cell.Item = p.Item
	}
	return g, nil
}

// Summary is the catalogue entry of a board.
type Summary struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Size        int    `json:"size"`
	IsCTF       bool   `json:"isCTF"`
	MaxPlayers  int    `json:"maxPlayers"`
}
