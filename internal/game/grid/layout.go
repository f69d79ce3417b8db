package grid

import (
	"fmt"
	"strings"
)

// Layout glyphs used by board documents and tests.
const (
	GlyphFloor      = '.'
	GlyphIce        = 'i'
	GlyphWater      = '~'
	GlyphWall       = '#'
	GlyphClosedDoor = 'D'
	GlyphOpenedDoor = 'd'
)

var glyphTerrain = map[rune]Terrain{
	GlyphFloor:      Floor,
	GlyphIce:        Ice,
	GlyphWater:      Water,
	GlyphWall:       Wall,
	GlyphClosedDoor: ClosedDoor,
	GlyphOpenedDoor: OpenedDoor,
}

// FromRows builds a square grid from one glyph string per row. Spaces are ignored.
//
// Precondition: every row has the same number of glyphs as there are rows.
// Postcondition: returns a descriptive error for ragged rows or unknown glyphs.
func FromRows(rows []string) (*Grid, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("grid: layout has no rows")
	}
	g := New(len(rows))
	for y, row := range rows {
		glyphs := []rune(strings.ReplaceAll(row, " ", ""))
		if len(glyphs) != g.Size {
			return nil, fmt.Errorf("grid: row %d has %d cells, want %d", y, len(glyphs), g.Size)
		}
		for x, r := range glyphs {
			t, ok := glyphTerrain[r]
			if !ok {
				return nil, fmt.Errorf("grid: row %d col %d: unknown glyph %q", y, x, r)
			}
			g.At(Position{X: x, Y: y}).Terrain = t
		}
	}
	return g, nil
}

// MustFromRows is FromRows that panics on error.
func MustFromRows(rows ...string) *Grid {
	g, err := FromRows(rows)
	if err != nil {
		panic(err)
	}
	return g
}

// Glyph returns the layout glyph for t.
func (t Terrain) Glyph() rune {
	for r, tt := range glyphTerrain {
		if tt == t {
			return r
		}
	}
	return '?'
}
