package scripting_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/gridbrawl/internal/game/dice"
	"github.com/cory-johannsen/gridbrawl/internal/scripting"
)

func runScript(t *testing.T, mgr *scripting.Manager, luaSrc, hook string, args ...lua.LValue) lua.LValue {
	t.Helper()
	dir := writeTempLua(t, "test.lua", luaSrc)
	scope := "modtest_" + t.Name()
	require.NoError(t, mgr.LoadScope(scope, dir, 0))
	ret, err := mgr.CallHook(scope, hook, args...)
	require.NoError(t, err)
	return ret
}

func TestArenaLog_AllLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := zap.New(core)
	mgr := scripting.NewManager(dice.NewRoller(dice.NewCryptoSource(), logger), logger)

	runScript(t, mgr, `
		function do_all_logs()
			arena.log.debug("d")
			arena.log.info("i")
			arena.log.warn("w")
			arena.log.error("e")
		end
	`, "do_all_logs")

	levels := map[string]bool{}
	for _, e := range logs.FilterField(zap.String("source", "lua")).All() {
		levels[e.Level.String()] = true
	}
	assert.Equal(t, map[string]bool{"debug": true, "info": true, "warn": true, "error": true}, levels)
}

func TestArenaRoll_UsesRoller(t *testing.T) {
	logger := zap.NewNop()
	mgr := scripting.NewManager(dice.NewRoller(dice.NewSequence(2, 0), logger), logger)

	ret := runScript(t, mgr, `function r() return arena.roll("2d6+1") end`, "r")

	assert.Equal(t, lua.LNumber(3+1+1), ret)
}

func TestArenaRoll_BadExpressionIsNil(t *testing.T) {
	mgr, logs := newTestManager(t)
	ret := runScript(t, mgr, `function r() return arena.roll("bogus") end`, "r")
	assert.Equal(t, lua.LNil, ret)
	assert.Equal(t, 1, logs.FilterMessage("scripting: bad dice expression").Len())
}

func TestArenaDiceRoll_ReturnsTable(t *testing.T) {
	mgr, _ := newTestManager(t)
	ret := runScript(t, mgr, `
		function do_roll()
			local r = arena.dice.roll("1d6")
			if type(r.dice) ~= "number" then error("dice field missing") end
			if #r.faces ~= 1 then error("faces missing") end
			return r.total
		end
	`, "do_roll")
	n, ok := ret.(lua.LNumber)
	require.True(t, ok, "expected LNumber, got %T", ret)
	assert.GreaterOrEqual(t, int(n), 1)
	assert.LessOrEqual(t, int(n), 6)
}

func TestProperty_DiceRoll_TotalEqualsDicePlusModifier(t *testing.T) {
	mgr, _ := newTestManager(t)
	require.NoError(t, mgr.LoadScope("inv", writeTempLua(t, "inv.lua", `
		function check_invariant(expr)
			local r = arena.dice.roll(expr)
			return r.total == r.dice + r.modifier
		end
	`), 0))
	rapid.Check(t, func(rt *rapid.T) {
		expr := rapid.SampledFrom([]string{"1d6", "2d6", "1d4", "1d8+2", "3d4-1"}).Draw(rt, "expr")
		ret, err := mgr.CallHook("inv", "check_invariant", lua.LString(expr))
		require.NoError(rt, err)
		assert.Equal(rt, lua.LTrue, ret, "total must equal dice + modifier for expr %s", expr)
	})
}
