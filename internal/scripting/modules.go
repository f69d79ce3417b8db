package scripting

import (
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/cory-johannsen/gridbrawl/internal/game/dice"
)

// RegisterModules registers the arena table into L:
//
//	arena.roll(expr)           -> total
//	arena.dice.roll(expr)      -> {total, dice, modifier, faces}
//	arena.log.debug/info/warn/error(msg)
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: arena global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState, scope string) {
	arena := L.NewTable()

	diceTbl := L.NewTable()
	L.SetField(diceTbl, "roll", L.NewFunction(m.luaDiceRoll))
	L.SetField(arena, "dice", diceTbl)
	L.SetField(arena, "roll", L.NewFunction(func(L *lua.LState) int {
		res, ok := m.roll(L)
		if !ok {
			return 1
		}
		L.Push(lua.LNumber(res.Total()))
		return 1
	}))

	logger := m.logger.With(zap.String("scope", scope))
	logTbl := L.NewTable()
	for name, fn := range map[string]func(string, ...zap.Field){
		"debug": logger.Debug,
		"info":  logger.Info,
		"warn":  logger.Warn,
		"error": logger.Error,
	} {
		L.SetField(logTbl, name, L.NewFunction(func(L *lua.LState) int {
			fn(L.CheckString(1), zap.String("source", "lua"))
			return 0
		}))
	}
	L.SetField(arena, "log", logTbl)

	L.SetGlobal("arena", arena)
}

// roll parses the first argument and rolls it. On a bad expression nil is
// pushed and ok is false.
func (m *Manager) roll(L *lua.LState) (dice.RollResult, bool) {
	expr, err := dice.Parse(L.CheckString(1))
	if err != nil {
		m.logger.Warn("scripting: bad dice expression", zap.Error(err))
		L.Push(lua.LNil)
		return dice.RollResult{}, false
	}
	return m.roller.Roll(expr, dice.Fair), true
}

func (m *Manager) luaDiceRoll(L *lua.LState) int {
	res, ok := m.roll(L)
	if !ok {
		return 1
	}
	faces := L.NewTable()
	sum := 0
	for _, f := range res.Faces {
		faces.Append(lua.LNumber(f))
		sum += f
	}
	t := L.NewTable()
	L.SetField(t, "total", lua.LNumber(res.Total()))
	L.SetField(t, "dice", lua.LNumber(sum))
	L.SetField(t, "modifier", lua.LNumber(res.Modifier))
	L.SetField(t, "faces", faces)
	L.Push(t)
	return 1
}
