// Package dice provides the randomness abstraction and die rolls used by
// fights, flee attempts and every random tie-break in a match.
package dice

import "fmt"

// Source is the randomness provider for rolls and shuffles.
//
// Implementations MUST be safe for concurrent use.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// Bias forces every die of a roll to one end of its range.
type Bias int

const (
	// Fair rolls uniformly.
	Fair Bias = iota
	// Highest forces the maximum face, used for debug-mode attackers.
	Highest
	// Lowest forces face 1, used for debug-mode defenders.
	Lowest
)

func (b Bias) String() string {
	switch b {
	case Highest:
		return "highest"
	case Lowest:
		return "lowest"
	default:
		return "fair"
	}
}

// RollResult is the audit trail of one evaluated expression.
//
// Postcondition: Total() == sum(Faces) + Modifier.
type RollResult struct {
	Expression string
	Faces      []int
	Modifier   int
	Bias       Bias
}

// Total returns the sum of all faces plus the modifier.
func (r RollResult) Total() int {
	total := r.Modifier
	for _, f := range r.Faces {
		total += f
	}
	return total
}

// String renders the roll as "1d6+1 [4] +1 = 5".
//
// Precondition: r.Expression is non-empty.
func (r RollResult) String() string {
	if r.Expression == "" {
		panic("dice: RollResult.String called without an expression")
	}
	return fmt.Sprintf("%s %v %+d = %d", r.Expression, r.Faces, r.Modifier, r.Total())
}
