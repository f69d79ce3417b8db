package ai

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridbrawl/internal/game/player"
)

// Registry indexes Planners by domain ID.
//
// Invariant: each domain ID is registered at most once.
type Registry struct {
	planners map[string]*Planner
	conds    *Conditions
	caller   ScriptCaller
	logger   *zap.Logger
}

// NewRegistry returns an empty Registry.
//
// Precondition: conds and logger must not be nil; caller may be nil.
func NewRegistry(conds *Conditions, caller ScriptCaller, logger *zap.Logger) *Registry {
	return &Registry{planners: make(map[string]*Planner), conds: conds, caller: caller, logger: logger}
}

// Register compiles every guard of domain and stores a Planner for it.
//
// Postcondition: returns error on domain ID collision or an invalid guard.
func (r *Registry) Register(domain *Domain) error {
	if _, exists := r.planners[domain.ID]; exists {
		return fmt.Errorf("ai.Registry: domain %q already registered", domain.ID)
	}
	for _, m := range domain.Methods {
		if m.When == "" {
			continue
		}
		if err := r.conds.Compile(m.When); err != nil {
			return fmt.Errorf("ai.Registry: domain %q method %q: %w", domain.ID, m.ID, err)
		}
	}
	r.planners[domain.ID] = NewPlanner(domain, r.conds, r.caller, r.logger)
	return nil
}

// PlannerFor returns the Planner for domainID, or false if not registered.
func (r *Registry) PlannerFor(domainID string) (*Planner, bool) {
	p, ok := r.planners[domainID]
	return p, ok
}

// AgentFor returns a VirtualAgent driven by the domain named after profile.
func (r *Registry) AgentFor(profile player.Profile) (*VirtualAgent, error) {
	p, ok := r.planners[string(profile)]
	if !ok {
		return nil, fmt.Errorf("ai.Registry: no domain for profile %q", profile)
	}
	return NewVirtualAgent(p, r.logger), nil
}

// NewDefaultRegistry registers the builtin domains merged with extra.
func NewDefaultRegistry(conds *Conditions, caller ScriptCaller, logger *zap.Logger, extra ...*Domain) (*Registry, error) {
	r := NewRegistry(conds, caller, logger)
	for _, d := range Merge(Builtin(), extra) {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}
