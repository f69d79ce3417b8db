package player

import "github.com/cory-johannsen/gridbrawl/internal/game/grid"

// InstructionKind is the action a virtual player asks the match to perform.
type InstructionKind string

const (
	InstructionMove      InstructionKind = "move"
	InstructionOpenDoor  InstructionKind = "openDoor"
	InstructionInitFight InstructionKind = "initFight"
	InstructionEndTurn   InstructionKind = "endTurn"
)

// Instruction is one decision of an agent during its turn.
type Instruction struct {
	Kind InstructionKind
	// Path is set for InstructionMove.
	Path grid.Path
	// Target is the door cell for InstructionOpenDoor.
	Target grid.Position
	// TargetID is the opponent for InstructionInitFight.
	TargetID string
}

// EndTurn is the instruction that yields the turn.
var EndTurn = Instruction{Kind: InstructionEndTurn}

// FightAction is one decision of an agent while it is the current fighter.
type FightAction string

const (
	FightAttack FightAction = "attack"
	FightFlee   FightAction = "flee"
)

// View is the read-only match state an agent decides from.
type View struct {
	Self    *Player
	Players []*Player
	Grid    *grid.Grid
	IsCTF   bool
}

// Agent drives a participant. Human agents never decide; the match waits for
// their intents instead.
type Agent interface {
	IsVirtual() bool
	Decide(v View) Instruction
	DecideFight(self *Player) FightAction
	// DecideDrop picks which of the carried items or found to leave behind
	// when the backpack is full.
	DecideDrop(self *Player, found grid.Item) grid.Item
}

// Human is the Agent of a player controlled through a client connection.
type Human struct{}

func (Human) IsVirtual() bool { return false }

func (Human) Decide(View) Instruction { return EndTurn }

func (Human) DecideFight(*Player) FightAction { return FightAttack }

func (Human) DecideDrop(_ *Player, found grid.Item) grid.Item { return found }
