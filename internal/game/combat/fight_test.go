package combat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/gridbrawl/internal/game/combat"
	"github.com/cory-johannsen/gridbrawl/internal/game/dice"
	"github.com/cory-johannsen/gridbrawl/internal/game/player"
	"github.com/cory-johannsen/gridbrawl/internal/game/timer"
)

type clockCall struct {
	seconds int
	mode    timer.Mode
}

type fakeClock struct{ calls []clockCall }

func (c *fakeClock) Start(seconds int, mode timer.Mode) {
	c.calls = append(c.calls, clockCall{seconds: seconds, mode: mode})
}

func (c *fakeClock) last() clockCall { return c.calls[len(c.calls)-1] }

func fighter(id string, life, atk, def int) *player.Player {
	stats := player.Stats{Life: life, Speed: 4, Attack: atk, Defense: def, AttackDice: dice.D4, DefenseDice: dice.D4}
	return player.New(id, id, id, stats, player.ProfileHuman, player.Human{})
}

func roller(src dice.Source) *dice.Roller {
	return dice.NewRoller(src, zap.NewNop())
}

func TestStart_ResetsFightersAndStartsClock(t *testing.T) {
	a, b := fighter("a", 6, 4, 4), fighter("b", 4, 4, 4)
	a.CurrentLife, b.FleeAttempts = 1, 0
	clock := &fakeClock{}

	f := combat.Start(a, b, clock, combat.DefaultSettings(), roller(dice.NewSequence(0)))

	assert.Same(t, a, f.Current())
	assert.Equal(t, 6, a.CurrentLife)
	assert.Equal(t, 2, b.FleeAttempts)
	assert.Equal(t, clockCall{seconds: 5, mode: timer.Combat}, clock.last())
}

func TestResolveAttack_DebugDiceKillsDefender(t *testing.T) {
	a, b := fighter("a", 4, 4, 0), fighter("b", 2, 0, 1)
	f := combat.Start(a, b, &fakeClock{}, combat.DefaultSettings(), roller(dice.NewSequence(0)))

	attack, res := f.ResolveAttack(true)

	assert.Equal(t, 8, attack.AttackTotal)
	assert.Equal(t, 2, attack.DefenseTotal)
	assert.Equal(t, 6, attack.Damage)
	assert.Equal(t, 0, b.CurrentLife)
	require.NotNil(t, res)
	assert.Same(t, a, res.Winner)
	assert.Same(t, b, res.Loser)
}

func TestResolveAttack_NoDamageSwitchesFighter(t *testing.T) {
	a, b := fighter("a", 4, 0, 0), fighter("b", 4, 0, 9)
	f := combat.Start(a, b, &fakeClock{}, combat.DefaultSettings(), roller(dice.NewSequence(0)))

	attack, res := f.ResolveAttack(false)

	assert.Nil(t, res)
	assert.Zero(t, attack.Damage)
	assert.Equal(t, 4, b.CurrentLife)
	assert.Same(t, b, f.Current())
}

func TestAttemptFlee_FailureSwitchesAndShortensClock(t *testing.T) {
	a, b := fighter("a", 4, 0, 0), fighter("b", 4, 0, 0)
	clock := &fakeClock{}
	f := combat.Start(a, b, clock, combat.DefaultSettings(), roller(dice.NewSequence(99)))

	escaped, err := f.AttemptFlee()
	require.NoError(t, err)
	assert.False(t, escaped)
	assert.Equal(t, 1, a.FleeAttempts)
	assert.Same(t, b, f.Current())

	_, _ = f.AttemptFlee()
	_, _ = f.AttemptFlee()
	assert.Equal(t, 0, a.FleeAttempts)
	require.Same(t, b, f.Current())

	_, res := f.ResolveAttack(false)
	require.Nil(t, res)
	assert.Same(t, a, f.Current())
	assert.Equal(t, clockCall{seconds: 3, mode: timer.Combat}, clock.last(),
		"a fighter without flee attempts gets the short countdown")
}

func TestAttemptFlee_SuccessAndExhaustion(t *testing.T) {
	a, b := fighter("a", 4, 0, 0), fighter("b", 4, 0, 0)
	f := combat.Start(a, b, &fakeClock{}, combat.Settings{FleeAttempts: 1, FleeChance: 30, TurnSeconds: 5, NoFleeTurnSeconds: 3},
		roller(dice.NewSequence(10)))

	escaped, err := f.AttemptFlee()
	require.NoError(t, err)
	assert.True(t, escaped)

	escaped, err = f.AttemptFlee()
	assert.ErrorIs(t, err, combat.ErrNoFleeAttempts)
	assert.False(t, escaped)
	assert.Equal(t, 0, a.FleeAttempts)
}

func TestHandleRemoval(t *testing.T) {
	a, b := fighter("a", 4, 0, 0), fighter("b", 4, 0, 0)
	f := combat.Start(a, b, &fakeClock{}, combat.DefaultSettings(), roller(dice.NewSequence(0)))

	res := f.HandleRemoval("b")
	require.NotNil(t, res)
	assert.Same(t, a, res.Winner)
	assert.Nil(t, f.HandleRemoval("stranger"))
	assert.True(t, f.Involves("a"))
	assert.False(t, f.Involves("c"))
}

func TestFight_LifeNeverNegative(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := fighter("a", rapid.IntRange(1, 8).Draw(rt, "lifeA"), rapid.IntRange(0, 8).Draw(rt, "atkA"), rapid.IntRange(0, 8).Draw(rt, "defA"))
		b := fighter("b", rapid.IntRange(1, 8).Draw(rt, "lifeB"), rapid.IntRange(0, 8).Draw(rt, "atkB"), rapid.IntRange(0, 8).Draw(rt, "defB"))
		f := combat.Start(a, b, &fakeClock{}, combat.DefaultSettings(), roller(dice.NewSeededSource(rapid.Uint64().Draw(rt, "seed"))))
		debug := rapid.Bool().Draw(rt, "debug")

		for i := 0; i < 50; i++ {
			_, res := f.ResolveAttack(debug)
			assert.GreaterOrEqual(rt, a.CurrentLife, 0)
			assert.GreaterOrEqual(rt, b.CurrentLife, 0)
			if res != nil {
				assert.Equal(rt, 0, res.Loser.CurrentLife)
				assert.NotSame(rt, res.Winner, res.Loser)
				return
			}
			assert.Positive(rt, a.CurrentLife)
			assert.Positive(rt, b.CurrentLife)
		}
	})
}
