// Package timer implements the per-match countdown used for movement turns
// and combat turns, including the pause of a movement turn during a fight.
package timer

import "time"

// DefaultPeriod is the tick interval of a countdown.
const DefaultPeriod = time.Second

// Mode distinguishes the two countdowns a match runs.
type Mode string

const (
	Movement Mode = "movement"
	Combat   Mode = "combat"
)

// State is the observable phase of a Timer.
type State int

const (
	Idle State = iota
	MovementRunning
	CombatRunning
	// MovementPaused is reported while a combat countdown runs over a saved
	// movement countdown.
	MovementPaused
)

func (s State) String() string {
	switch s {
	case MovementRunning:
		return "movement_running"
	case CombatRunning:
		return "combat_running"
	case MovementPaused:
		return "movement_paused"
	default:
		return "idle"
	}
}

// Listener receives countdown notifications on the scheduler's goroutine.
type Listener interface {
	OnTimerTick(mode Mode, remaining int)
	OnTimerExpired(mode Mode)
}

// Timer is a single countdown that can hold one paused movement countdown.
// It is not safe for concurrent use; the owning match serializes access.
type Timer struct {
	sched    Scheduler
	listener Listener
	period   time.Duration

	mode      Mode
	running   bool
	remaining int
	paused    int
	hasPaused bool
	gen       int
	cancel    Cancel
}

// New creates an idle Timer.
//
// Precondition: sched and listener are non-nil; period > 0.
func New(sched Scheduler, listener Listener, period time.Duration) *Timer {
	if period <= 0 {
		period = DefaultPeriod
	}
	return &Timer{sched: sched, listener: listener, period: period}
}

// Start begins a countdown of seconds periods in mode, superseding any
// running countdown. A running movement countdown is saved when a combat
// countdown replaces it.
//
// Postcondition: OnTimerTick(mode, seconds) has been delivered, or
// OnTimerExpired(mode) when seconds <= 0.
func (t *Timer) Start(seconds int, mode Mode) {
	switch {
	case mode == Combat && t.running && t.mode == Movement:
		t.paused = t.remaining
		t.hasPaused = true
	case mode == Movement:
		t.hasPaused = false
		t.paused = 0
	}
	t.halt()
	t.mode = mode
	t.remaining = seconds
	if seconds <= 0 {
		t.listener.OnTimerExpired(mode)
		return
	}
	t.running = true
	gen := t.gen
	t.listener.OnTimerTick(mode, t.remaining)
	if gen == t.gen {
		t.schedule()
	}
}

// Resume restarts the saved movement countdown after a fight.
//
// Postcondition: returns false and changes nothing unless a movement
// countdown was paused.
func (t *Timer) Resume() bool {
	if !t.hasPaused {
		return false
	}
	remaining := t.paused
	t.hasPaused = false
	t.paused = 0
	t.Start(remaining, Movement)
	return true
}

// Stop cancels periodic activity. The paused movement value is kept.
func (t *Timer) Stop() {
	t.halt()
}

// Reset stops the countdown and discards any paused movement value.
func (t *Timer) Reset() {
	t.halt()
	t.hasPaused = false
	t.paused = 0
}

// State reports the current phase.
func (t *Timer) State() State {
	switch {
	case t.running && t.mode == Combat && t.hasPaused:
		return MovementPaused
	case t.running && t.mode == Combat:
		return CombatRunning
	case t.running:
		return MovementRunning
	case t.hasPaused:
		return MovementPaused
	default:
		return Idle
	}
}

// Remaining returns the periods left in the running countdown.
func (t *Timer) Remaining() int { return t.remaining }

// Paused returns the saved movement periods, if any.
func (t *Timer) Paused() (int, bool) { return t.paused, t.hasPaused }

// Mode returns the mode of the latest countdown.
func (t *Timer) Mode() Mode { return t.mode }

func (t *Timer) halt() {
	t.gen++
	t.running = false
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

func (t *Timer) schedule() {
	gen := t.gen
	t.cancel = t.sched.After(t.period, func() { t.tick(gen) })
}

func (t *Timer) tick(gen int) {
	if gen != t.gen || !t.running {
		return
	}
	t.remaining--
	if t.remaining <= 0 {
		t.remaining = 0
		t.running = false
		t.cancel = nil
		t.listener.OnTimerExpired(t.mode)
		return
	}
	t.listener.OnTimerTick(t.mode, t.remaining)
	if gen == t.gen {
		t.schedule()
	}
}
