package inventory_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/gridbrawl/internal/game/grid"
	"github.com/cory-johannsen/gridbrawl/internal/game/inventory"
)

var collectibles = []grid.Item{grid.Flag, grid.Sword, grid.Boots, grid.Shield, grid.Amulet}

func TestBackpack_AddUntilFull(t *testing.T) {
	b := inventory.NewBackpack(inventory.DefaultCapacity)
	require.NoError(t, b.Add(grid.Sword))
	require.NoError(t, b.Add(grid.Shield))

	err := b.Add(grid.Boots)

	assert.ErrorIs(t, err, inventory.ErrFull)
	assert.Equal(t, []grid.Item{grid.Sword, grid.Shield}, b.Items())
}

func TestBackpack_RejectsMarkers(t *testing.T) {
	b := inventory.NewBackpack(2)
	assert.Error(t, b.Add(grid.Spawn))
	assert.Error(t, b.Add(grid.NoItem))
	assert.Zero(t, b.Len())
}

func TestBackpack_RemoveAndDrain(t *testing.T) {
	b := inventory.NewBackpack(2)
	require.NoError(t, b.Add(grid.Flag))
	require.NoError(t, b.Add(grid.Amulet))

	assert.True(t, b.Remove(grid.Flag))
	assert.False(t, b.Remove(grid.Flag))
	assert.False(t, b.Has(grid.Flag))

	assert.Equal(t, []grid.Item{grid.Amulet}, b.Drain())
	assert.Zero(t, b.Len())
}

func TestBackpack_Bonus(t *testing.T) {
	b := inventory.NewBackpack(2)
	require.NoError(t, b.Add(grid.Sword))
	require.NoError(t, b.Add(grid.Boots))
	assert.Equal(t, grid.Bonus{Attack: 2, Speed: 2}, b.Bonus())
}

func TestBackpack_NeverExceedsCapacity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		capacity := rapid.IntRange(0, 4).Draw(rt, "capacity")
		b := inventory.NewBackpack(capacity)
		ops := rapid.SliceOf(rapid.SampledFrom(collectibles)).Draw(rt, "ops")
		for i, it := range ops {
			if i%3 == 2 {
				b.Remove(it)
				continue
			}
			_ = b.Add(it)
			assert.LessOrEqual(rt, b.Len(), capacity)
		}
	})
}
