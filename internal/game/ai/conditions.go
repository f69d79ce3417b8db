package ai

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/cory-johannsen/gridbrawl/internal/game/dice"
)

// Conditions compiles and evaluates method guards written in CEL.
//
// Guards see two map variables, self and world (see WorldState.Facts), and a
// roll(expr) function returning a dice total.
//
// Conditions is safe for concurrent use.
type Conditions struct {
	env *cel.Env

	mu       sync.Mutex
	programs map[string]cel.Program
}

// NewConditions builds the CEL environment.
//
// Precondition: roller must be non-nil.
func NewConditions(roller *dice.Roller) (*Conditions, error) {
	env, err := cel.NewEnv(
		cel.Variable("self", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("world", cel.MapType(cel.StringType, cel.DynType)),
		cel.Function("roll",
			cel.Overload("roll_string",
				[]*cel.Type{cel.StringType},
				cel.IntType,
				cel.UnaryBinding(func(arg ref.Val) ref.Val {
					s, ok := arg.Value().(string)
					if !ok {
						return types.NewErr("roll: expected a dice expression")
					}
					expr, err := dice.Parse(s)
					if err != nil {
						return types.NewErr("roll: %v", err)
					}
					return types.Int(roller.Roll(expr, dice.Fair).Total())
				}),
			),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("ai.NewConditions: %w", err)
	}
	return &Conditions{env: env, programs: make(map[string]cel.Program)}, nil
}

// Compile checks expr and caches its program.
//
// Postcondition: a nil return guarantees expr type-checks to bool.
func (c *Conditions) Compile(expr string) error {
	_, err := c.program(expr)
	return err
}

// Eval evaluates expr against facts.
//
// Postcondition: an empty expr is true.
func (c *Conditions) Eval(expr string, facts map[string]any) (bool, error) {
	if expr == "" {
		return true, nil
	}
	prg, err := c.program(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(facts)
	if err != nil {
		return false, fmt.Errorf("ai.Conditions: evaluating %q: %w", expr, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("ai.Conditions: %q did not yield a bool", expr)
	}
	return b, nil
}

func (c *Conditions) program(expr string) (cel.Program, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prg, ok := c.programs[expr]; ok {
		return prg, nil
	}
	ast, iss := c.env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("ai.Conditions: compiling %q: %w", expr, iss.Err())
	}
	if t := ast.OutputType(); !t.IsExactType(cel.BoolType) && !t.IsExactType(cel.DynType) {
		return nil, fmt.Errorf("ai.Conditions: %q has type %v, want bool", expr, t)
	}
	prg, err := c.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("ai.Conditions: %w", err)
	}
	c.programs[expr] = prg
	return prg, nil
}
