// Package ai implements the Hierarchical Task Network (HTN) planner that
// drives virtual players.
//
// HTN planning decomposes abstract tasks into primitive operators via ordered
// methods. Method guards are CEL expressions over the bot's facts, optionally
// combined with a Lua precondition hook; operators map to match instructions
// and fight actions.
package ai

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Root tasks the planner starts from.
const (
	TaskBehave = "behave"
	TaskFight  = "fight"
)

// Operator actions.
const (
	ActionPursue  = "pursue"
	ActionEndTurn = "end_turn"
	ActionAttack  = "attack"
	ActionFlee    = "flee"
)

var validActions = map[string]struct{}{
	ActionPursue:  {},
	ActionEndTurn: {},
	ActionAttack:  {},
	ActionFlee:    {},
}

// Task is an abstract goal that can be decomposed by methods.
//
// Precondition: ID must be non-empty.
type Task struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
}

// Method decomposes a task into an ordered list of subtasks or operator IDs.
//
// Precondition: TaskID, ID, and Subtasks must be non-empty.
type Method struct {
	TaskID string `yaml:"task"`
	ID     string `yaml:"id"`
	// When is a CEL expression over self and world; empty always passes.
	When string `yaml:"when"`
	// Precondition is a Lua function name; empty always passes.
	Precondition string   `yaml:"precondition"`
	Subtasks     []string `yaml:"subtasks"`
}

// Operator is a primitive action.
//
// Precondition: ID and Action must be non-empty.
type Operator struct {
	ID     string `yaml:"id"`
	Action string `yaml:"action"` // "pursue", "end_turn", "attack", "flee"
	Target string `yaml:"target"` // see WorldState.ResolveTarget
}

// Domain holds the full HTN domain of one bot profile.
//
// Invariant: all Task, Method, and Operator IDs are unique within their slice.
type Domain struct {
	ID          string      `yaml:"id"`
	Description string      `yaml:"description"`
	Tasks       []*Task     `yaml:"tasks"`
	Methods     []*Method   `yaml:"methods"`
	Operators   []*Operator `yaml:"operators"`
}

// idSet records the IDs of one section of a domain and rejects repeats.
type idSet map[string]struct{}

func (s idSet) add(kind, id string) error {
	if id == "" {
		return fmt.Errorf("%s with empty id", kind)
	}
	if _, dup := s[id]; dup {
		return fmt.Errorf("duplicate %s id %q", kind, id)
	}
	s[id] = struct{}{}
	return nil
}

func (s idSet) has(id string) bool {
	_, ok := s[id]
	return ok
}

// Validate checks the domain's structure.
//
// Postcondition: nil return guarantees non-empty unique IDs, known operator
// actions, methods that decompose declared tasks, and subtasks that each
// name a task or an operator.
func (d *Domain) Validate() error {
	if d.ID == "" {
		return errors.New("ai: domain id must not be empty")
	}
	if err := d.validate(); err != nil {
		return fmt.Errorf("ai: domain %q: %w", d.ID, err)
	}
	return nil
}

func (d *Domain) validate() error {
	if len(d.Tasks) == 0 {
		return errors.New("no tasks")
	}
	tasks := idSet{}
	for _, t := range d.Tasks {
		if err := tasks.add("task", t.ID); err != nil {
			return err
		}
	}

	ops := idSet{}
	for _, op := range d.Operators {
		if err := ops.add("operator", op.ID); err != nil {
			return err
		}
		if _, ok := validActions[op.Action]; !ok {
			return fmt.Errorf("operator %q: unknown action %q", op.ID, op.Action)
		}
	}

	methods := idSet{}
	for _, m := range d.Methods {
		if err := methods.add("method", m.ID); err != nil {
			return err
		}
		if !tasks.has(m.TaskID) {
			return fmt.Errorf("method %q decomposes unknown task %q", m.ID, m.TaskID)
		}
		if len(m.Subtasks) == 0 {
			return fmt.Errorf("method %q has no subtasks", m.ID)
		}
		for _, sub := range m.Subtasks {
			if !tasks.has(sub) && !ops.has(sub) {
				return fmt.Errorf("method %q: subtask %q is neither a task nor an operator", m.ID, sub)
			}
		}
	}
	return nil
}

// OperatorByID returns the operator with the given ID, or false if not found.
func (d *Domain) OperatorByID(id string) (*Operator, bool) {
	for _, op := range d.Operators {
		if op.ID == id {
			return op, true
		}
	}
	return nil, false
}

// MethodsForTask returns all methods that decompose taskID, in declaration order.
func (d *Domain) MethodsForTask(taskID string) []*Method {
	var out []*Method
	for _, m := range d.Methods {
		if m.TaskID == taskID {
			out = append(out, m)
		}
	}
	return out
}

// yamlDomainFile wraps the YAML top-level key.
type yamlDomainFile struct {
	Domain *Domain `yaml:"domain"`
}

// ParseDomain decodes and validates one YAML domain document.
func ParseDomain(data []byte) (*Domain, error) {
	var f yamlDomainFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ai.ParseDomain: %w", err)
	}
	if f.Domain == nil {
		return nil, errors.New("ai.ParseDomain: missing top-level 'domain' key")
	}
	if err := f.Domain.Validate(); err != nil {
		return nil, err
	}
	return f.Domain, nil
}

// LoadDomains parses every *.yaml file of dir, stopping at the first
// invalid document.
func LoadDomains(dir string) ([]*Domain, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("ai.LoadDomains: reading %q: %w", dir, err)
	}
	var domains []*Domain
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".yaml" {
			continue
		}
		d, err := parseDomainFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("ai.LoadDomains: %w", err)
		}
		domains = append(domains, d)
	}
	return domains, nil
}

func parseDomainFile(path string) (*Domain, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := ParseDomain(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return d, nil
}

//go:embed domains/*.yaml
var builtinFS embed.FS

// Builtin returns the aggressive and defensive domains shipped with the server.
func Builtin() []*Domain {
	entries, err := builtinFS.ReadDir("domains")
	if err != nil {
		panic(fmt.Sprintf("ai.Builtin: %v", err))
	}
	out := make([]*Domain, 0, len(entries))
	for _, e := range entries {
		data, err := builtinFS.ReadFile("domains/" + e.Name())
		if err != nil {
			panic(fmt.Sprintf("ai.Builtin: %v", err))
		}
		d, err := ParseDomain(data)
		if err != nil {
			panic(fmt.Sprintf("ai.Builtin: %s: %v", e.Name(), err))
		}
		out = append(out, d)
	}
	return out
}

// Merge returns base with every domain of overrides replacing the base
// domain of the same ID, and new IDs appended.
func Merge(base, overrides []*Domain) []*Domain {
	out := append([]*Domain(nil), base...)
	for _, o := range overrides {
		replaced := false
		for i, b := range out {
			if b.ID == o.ID {
				out[i] = o
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, o)
		}
	}
	return out
}
