// Package scripting runs bot decision predicates in sandboxed GopherLua VMs.
// It only depends on the dice package; match state reaches Lua as plain
// fact tables built by the caller.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"
)

// DefaultInstructionLimit is the opcode budget of a load or predicate call
// when the configuration leaves it at zero.
const DefaultInstructionLimit = 100_000

// safeLibs are the only standard libraries a predicate can reach.
var safeLibs = []lua.LGFunction{lua.OpenBase, lua.OpenTable, lua.OpenString, lua.OpenMath}

// strippedGlobals are removed from the base library after it is opened.
var strippedGlobals = []string{"dofile", "loadfile", "load", "loadstring", "collectgarbage", "require", "print"}

// opBudget cancels itself once the VM has polled Done more than its
// allowance. GopherLua polls Done once per opcode while a context is set.
type opBudget struct {
	context.Context
	cancel context.CancelFunc
	left   atomic.Int64
}

func (b *opBudget) Done() <-chan struct{} {
	if b.left.Add(-1) < 0 {
		b.cancel()
	}
	return b.Context.Done()
}

func newOpBudget(ops int) *opBudget {
	ctx, cancel := context.WithCancel(context.Background())
	b := &opBudget{Context: ctx, cancel: cancel}
	b.left.Store(int64(ops))
	return b
}

func normalizeLimit(instLimit int) int {
	if instLimit <= 0 {
		return DefaultInstructionLimit
	}
	return instLimit
}

// NewSandboxedState returns a VM with only the base, table, string and math
// libraries, without the loader and I/O globals, and with an opcode budget
// of instLimit (0 selects DefaultInstructionLimit).
//
// Postcondition: the caller owns the state and must Close it.
func NewSandboxedState(instLimit int) *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, open := range safeLibs {
		open(L)
	}
	for _, name := range strippedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	Rearm(L, instLimit)
	return L
}

// Rearm gives L a fresh budget of instLimit opcodes, so a VM that ran out
// can be called again. The returned func releases the budget's context.
func Rearm(L *lua.LState, instLimit int) context.CancelFunc {
	b := newOpBudget(normalizeLimit(instLimit))
	L.SetContext(b)
	return b.cancel
}
