package ai

import (
	"fmt"

	"go.uber.org/zap"
)

// ScriptCaller evaluates Lua precondition hooks.
type ScriptCaller interface {
	// CallPredicate calls the named Lua function in scope's VM with the facts
	// table and reports whether it returned true. A missing hook is false.
	CallPredicate(scope, hook string, facts map[string]any) (bool, error)
}

// PlannedAction is one primitive action produced by the planner.
type PlannedAction struct {
	Action string
	Target string
}

// Planner evaluates an HTN domain for one bot profile.
//
// Invariant: domain and conds are not nil.
type Planner struct {
	domain *Domain
	conds  *Conditions
	caller ScriptCaller
	logger *zap.Logger
}

// NewPlanner constructs a Planner. caller may be nil, in which case methods
// with a Lua precondition never apply.
//
// Precondition: domain, conds and logger must not be nil.
func NewPlanner(domain *Domain, conds *Conditions, caller ScriptCaller, logger *zap.Logger) *Planner {
	if domain == nil {
		panic("ai.NewPlanner: domain must not be nil")
	}
	if conds == nil {
		panic("ai.NewPlanner: conds must not be nil")
	}
	return &Planner{domain: domain, conds: conds, caller: caller, logger: logger}
}

// Domain returns the planner's domain.
func (p *Planner) Domain() *Domain { return p.domain }

// Plan decomposes root against state and returns the ordered primitive actions.
//
// Precondition: state and state.Self must not be nil.
// Postcondition: returns a non-nil slice (may be empty); guard failures are
// logged and treated as false.
func (p *Planner) Plan(state *WorldState, root string) ([]PlannedAction, error) {
	if state == nil || state.Self == nil {
		return nil, fmt.Errorf("ai.Planner.Plan: state and state.Self must not be nil")
	}
	facts := state.Facts()
	taskQueue := []string{root}
	result := []PlannedAction{}

	const maxDepth = 32
	steps := 0

	for len(taskQueue) > 0 && steps < maxDepth {
		steps++
		current := taskQueue[0]
		taskQueue = taskQueue[1:]

		if op, ok := p.domain.OperatorByID(current); ok {
			result = append(result, PlannedAction{Action: op.Action, Target: op.Target})
			continue
		}

		method := p.findApplicableMethod(current, facts)
		if method == nil {
			continue
		}
		taskQueue = append(append([]string(nil), method.Subtasks...), taskQueue...)
	}
	return result, nil
}

// findApplicableMethod returns the first Method for taskID whose guards
// pass, in declaration order.
func (p *Planner) findApplicableMethod(taskID string, facts map[string]any) *Method {
	for _, m := range p.domain.MethodsForTask(taskID) {
		ok, err := p.conds.Eval(m.When, facts)
		if err != nil {
			p.logger.Warn("guard failed", zap.String("domain", p.domain.ID), zap.String("method", m.ID), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		if m.Precondition != "" {
			if p.caller == nil {
				continue
			}
			ok, err = p.caller.CallPredicate(p.domain.ID, m.Precondition, facts)
			if err != nil || !ok {
				continue
			}
		}
		return m
	}
	return nil
}
