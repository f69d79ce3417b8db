// Package inventory holds the bounded set of items a player carries during a match.
package inventory

import (
	"errors"
	"fmt"

	"github.com/cory-johannsen/gridbrawl/internal/game/grid"
)

// DefaultCapacity is the number of items a player may carry.
const DefaultCapacity = 2

// ErrFull is returned by Add when the backpack is at capacity.
var ErrFull = errors.New("inventory: backpack full")

// Backpack is an ordered, capacity-limited list of carried items.
//
// Invariant: Len() <= Capacity().
type Backpack struct {
	capacity int
	items    []grid.Item
}

// NewBackpack creates an empty Backpack.
//
// Precondition: capacity >= 0.
func NewBackpack(capacity int) *Backpack {
	if capacity < 0 {
		panic("inventory.NewBackpack: capacity must be >= 0")
	}
	return &Backpack{capacity: capacity}
}

// Capacity returns the item limit.
func (b *Backpack) Capacity() int { return b.capacity }

// Len returns how many items are carried.
func (b *Backpack) Len() int { return len(b.items) }

// Full reports whether another item would exceed capacity.
func (b *Backpack) Full() bool { return len(b.items) >= b.capacity }

// Add appends item.
//
// Precondition: item is collectible.
// Postcondition: on ErrFull the backpack is unchanged.
func (b *Backpack) Add(item grid.Item) error {
	if !item.Collectible() {
		return fmt.Errorf("inventory: %q cannot be carried", item)
	}
	if b.Full() {
		return ErrFull
	}
	b.items = append(b.items, item)
	return nil
}

// Remove drops the first occurrence of item and reports whether it was carried.
func (b *Backpack) Remove(item grid.Item) bool {
	for i, it := range b.items {
		if it == item {
			b.items = append(b.items[:i], b.items[i+1:]...)
			return true
		}
	}
	return false
}

// Has reports whether item is carried.
func (b *Backpack) Has(item grid.Item) bool {
	for _, it := range b.items {
		if it == item {
			return true
		}
	}
	return false
}

// Items returns a copy of the carried items in pickup order.
func (b *Backpack) Items() []grid.Item {
	return append([]grid.Item(nil), b.items...)
}

// Drain empties the backpack and returns what it held.
func (b *Backpack) Drain() []grid.Item {
	out := b.items
	b.items = nil
	return out
}

// Bonus returns the summed stat modifiers of every carried item.
func (b *Backpack) Bonus() grid.Bonus {
	var total grid.Bonus
	for _, it := range b.items {
		bonus := it.Bonus()
		total.Attack += bonus.Attack
		total.Defense += bonus.Defense
		total.Speed += bonus.Speed
		total.Life += bonus.Life
	}
	return total
}
