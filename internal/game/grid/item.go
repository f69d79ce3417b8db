package grid

// Item is the kind of object lying on a cell or carried in a backpack.
type Item string

const (
	NoItem Item = ""
	// Spawn marks a start position; it is never picked up.
	Spawn  Item = "spawn"
	Flag   Item = "flag"
	Sword  Item = "sword"
	Boots  Item = "boots"
	Shield Item = "shield"
	Amulet Item = "amulet"
)

// Category groups items by how the AI values them.
type Category string

const (
	CategoryNone      Category = ""
	CategoryObjective Category = "objective"
	CategoryOffensive Category = "offensive"
	CategoryDefensive Category = "defensive"
)

// Bonus is the stat modifier an item grants while carried.
type Bonus struct {
	Attack  int
	Defense int
	Speed   int
	Life    int
}

type itemInfo struct {
	category Category
	bonus    Bonus
}

var itemTable = map[Item]itemInfo{
	Flag:   {category: CategoryObjective},
	Sword:  {category: CategoryOffensive, bonus: Bonus{Attack: 2}},
	Boots:  {category: CategoryOffensive, bonus: Bonus{Speed: 2}},
	Shield: {category: CategoryDefensive, bonus: Bonus{Defense: 2}},
	Amulet: {category: CategoryDefensive, bonus: Bonus{Life: 2}},
}

// Collectible reports whether the item can be picked up.
func (i Item) Collectible() bool {
	_, ok := itemTable[i]
	return ok
}

// Valid reports whether i is a known item or marker.
func (i Item) Valid() bool {
	return i == NoItem || i == Spawn || i.Collectible()
}

// Category returns the item's AI category.
func (i Item) Category() Category {
	return itemTable[i].category
}

// Bonus returns the stat modifier granted while carrying i.
func (i Item) Bonus() Bonus {
	return itemTable[i].bonus
}
