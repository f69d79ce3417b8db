package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/gridbrawl/internal/game/dice"
)

// GlobalScope is the reserved key for shared scripts loaded via LoadGlobal.
// Hook calls fall back to this VM when no scope VM is found.
const GlobalScope = "__global__"

// vm is one sandboxed LState. An LState is single-threaded, so every call
// holds mu for its whole duration.
type vm struct {
	mu    sync.Mutex
	L     *lua.LState
	limit int
}

// Manager owns one sandboxed LState per scope and exposes hook dispatch.
// A scope is usually an AI domain ID.
//
// Manager is safe for concurrent use. Rooms run on their own goroutines and
// may call the same scope concurrently; those calls are serialized per VM.
type Manager struct {
	mu     sync.RWMutex
	vms    map[string]*vm
	roller *dice.Roller
	logger *zap.Logger
}

// NewManager creates a Manager.
//
// Precondition: roller and logger must be non-nil.
// Postcondition: Returns a non-nil Manager with no VMs.
func NewManager(roller *dice.Roller, logger *zap.Logger) *Manager {
	return &Manager{
		vms:    make(map[string]*vm),
		roller: roller,
		logger: logger,
	}
}

// LoadScope creates a sandboxed VM for scope, registers the arena module,
// then executes every *.lua file in scriptDir in lexicographic order.
// Loading a scope twice replaces the previous VM.
//
// Precondition: scope must be non-empty; scriptDir must be a readable directory.
// Postcondition: Scope VM is registered; returns error on Lua load failure.
func (m *Manager) LoadScope(scope, scriptDir string, instLimit int) error {
	if scope == "" {
		return fmt.Errorf("scripting: empty scope")
	}
	return m.loadInto(scope, scriptDir, instLimit)
}

// LoadGlobal creates the shared VM used as a fallback by every scope.
//
// Precondition: scriptDir must be a readable directory.
// Postcondition: Global VM is registered; returns error on Lua load failure.
func (m *Manager) LoadGlobal(scriptDir string, instLimit int) error {
	return m.loadInto(GlobalScope, scriptDir, instLimit)
}

// Scopes returns the loaded scope keys in sorted order.
func (m *Manager) Scopes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.vms))
	for k := range m.vms {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) loadInto(key, scriptDir string, instLimit int) error {
	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, key, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	L := NewSandboxedState(instLimit)
	m.RegisterModules(L, key)
	for _, path := range luaFiles {
		if err := L.DoFile(path); err != nil {
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, key, err)
		}
	}

	next := &vm{L: L, limit: instLimit}
	m.mu.Lock()
	old := m.vms[key]
	m.vms[key] = next
	m.mu.Unlock()

	if old != nil {
		old.mu.Lock()
		old.L.Close()
		old.mu.Unlock()
	}
	m.logger.Debug("scripting: scope loaded",
		zap.String("scope", key),
		zap.Int("files", len(luaFiles)),
	)
	return nil
}

// lookup returns scope's VM, the global VM, or nil.
func (m *Manager) lookup(scope string) *vm {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.vms[scope]; ok {
		return v
	}
	return m.vms[GlobalScope]
}

// call runs hook in v with a fresh instruction budget. ok is false when the
// hook is not a defined function.
func (v *vm) call(hook string, args []lua.LValue) (ret lua.LValue, ok bool, err error) {
	fn := v.L.GetGlobal(hook)
	if fn.Type() != lua.LTFunction {
		return lua.LNil, false, nil
	}
	cancel := Rearm(v.L, v.limit)
	defer cancel()
	if err := v.L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}, args...); err != nil {
		return lua.LNil, true, err
	}
	ret = v.L.Get(-1)
	v.L.Pop(1)
	return ret, true, nil
}

// CallHook calls the named Lua global function in scope's VM. If the scope
// has no VM, the global VM is tried as a fallback. Returns (LNil, nil) if the
// hook is not defined or no VM exists. Lua runtime errors, including an
// exhausted instruction budget, are logged at Warn level and never propagated.
//
// Precondition: args must be valid lua.LValue instances.
// Postcondition: Returns the first return value of the hook, or LNil.
func (m *Manager) CallHook(scope, hook string, args ...lua.LValue) (lua.LValue, error) {
	v := m.lookup(scope)
	if v == nil {
		m.logger.Info("scripting: no VM for scope",
			zap.String("scope", scope),
			zap.String("hook", hook),
		)
		return lua.LNil, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	ret, _, err := v.call(hook, args)
	if err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("scope", scope),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return lua.LNil, nil
	}
	return ret, nil
}

// CallPredicate calls hook with facts converted to a Lua table and reports
// whether it returned a truthy value. A missing VM or hook yields false
// without error; a Lua runtime error is returned.
func (m *Manager) CallPredicate(scope, hook string, facts map[string]any) (bool, error) {
	v := m.lookup(scope)
	if v == nil {
		return false, nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	ret, defined, err := v.call(hook, []lua.LValue{ToLua(v.L, facts)})
	if err != nil {
		m.logger.Warn("scripting: predicate failed",
			zap.String("scope", scope),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return false, fmt.Errorf("scripting: %s/%s: %w", scope, hook, err)
	}
	if !defined {
		return false, nil
	}
	return lua.LVAsBool(ret), nil
}

// Close releases every VM.
func (m *Manager) Close() {
	m.mu.Lock()
	vms := m.vms
	m.vms = make(map[string]*vm)
	m.mu.Unlock()
	for _, v := range vms {
		v.mu.Lock()
		v.L.Close()
		v.mu.Unlock()
	}
}

// ToLua converts Go fact values into Lua values. Maps become tables keyed by
// string, slices become sequences, and unsupported types become nil.
func ToLua(L *lua.LState, v any) lua.LValue {
	switch x := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(x)
	case int:
		return lua.LNumber(x)
	case int64:
		return lua.LNumber(x)
	case float64:
		return lua.LNumber(x)
	case string:
		return lua.LString(x)
	case []string:
		t := L.NewTable()
		for _, s := range x {
			t.Append(lua.LString(s))
		}
		return t
	case []any:
		t := L.NewTable()
		for _, e := range x {
			t.Append(ToLua(L, e))
		}
		return t
	case map[string]any:
		t := L.NewTable()
		for k, e := range x {
			t.RawSetString(k, ToLua(L, e))
		}
		return t
	default:
		return lua.LNil
	}
}
