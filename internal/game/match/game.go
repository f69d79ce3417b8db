// Package match is the authoritative engine of one game: turn order,
// animated movement, items, doors, fights, CTF and win conditions.
//
// A Game is not safe for concurrent use. Every method, including the
// callbacks delivered through the Scheduler, must run on the goroutine that
// owns the room.
package match

import (
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridbrawl/internal/game/combat"
	"github.com/cory-johannsen/gridbrawl/internal/game/dice"
	"github.com/cory-johannsen/gridbrawl/internal/game/event"
	"github.com/cory-johannsen/gridbrawl/internal/game/grid"
	"github.com/cory-johannsen/gridbrawl/internal/game/player"
	"github.com/cory-johannsen/gridbrawl/internal/game/timer"
)

var (
	ErrStarted     = errors.New("match: already started")
	ErrFull        = errors.New("match: roster full")
	ErrAvatarTaken = errors.New("match: avatar taken")
	ErrDuplicateID = errors.New("match: player already in roster")
)

// Settings are the timing and rule constants of a match.
type Settings struct {
	TurnSeconds    int
	TimerPeriod    time.Duration
	GraceDelay     time.Duration
	StepInterval   time.Duration
	BotThinkDelay  time.Duration
	VictoriesToWin int
	// MaxBotDecisions bounds how many instructions a virtual player may issue per turn.
	MaxBotDecisions int
	Combat          combat.Settings
}

// DefaultSettings returns the standard rules.
func DefaultSettings() Settings {
	return Settings{
		TurnSeconds:     30,
		TimerPeriod:     time.Second,
		GraceDelay:      3 * time.Second,
		StepInterval:    150 * time.Millisecond,
		BotThinkDelay:   time.Second,
		VictoriesToWin:  3,
		MaxBotDecisions: 16,
		Combat:          combat.DefaultSettings(),
	}
}

// Deps are the collaborators a Game needs.
type Deps struct {
	Scheduler timer.Scheduler
	Roller    *dice.Roller
	Sink      event.Sink
	Logger    *zap.Logger
}

// MaxPlayersFor returns the roster limit of a board of the given size.
// Boards up to 10 cells a side hold 2, up to 15 hold 4, larger ones 6.
func MaxPlayersFor(size int) int {
	switch {
	case size <= 10:
		return 2
	case size <= 15:
		return 4
	default:
		return 6
	}
}

// pendingChoice is an unresolved full-inventory pickup.
type pendingChoice struct {
	playerID string
	position grid.Position
	found    grid.Item
}

// Game is the state of one match.
type Game struct {
	board      string
	grid       *grid.Grid
	isCTF      bool
	maxPlayers int
	settings   Settings

	players []*player.Player
	current int

	hasStarted bool
	turnActive bool
	over       bool
	debug      bool
	admin      string

	timer     *timer.Timer
	fight     *combat.Fight
	reachable map[grid.Position]grid.Path

	movementInProgress bool
	pendingEndTurn     bool
	choice             *pendingChoice
	turnGen            int
	botDecisions       int

	cancelGrace timer.Cancel
	cancelStep  timer.Cancel
	cancelBot   timer.Cancel

	sched  timer.Scheduler
	roller *dice.Roller
	sink   event.Sink
	logger *zap.Logger
}

// New creates a Game in the lobby phase on g.
//
// Precondition: g is non-nil; every field of deps is non-nil.
func New(board string, g *grid.Grid, isCTF bool, settings Settings, deps Deps) *Game {
	game := &Game{
		board:      board,
		grid:       g,
		isCTF:      isCTF,
		maxPlayers: MaxPlayersFor(g.Size),
		settings:   settings,
		reachable:  map[grid.Position]grid.Path{},
		sched:      deps.Scheduler,
		roller:     deps.Roller,
		sink:       deps.Sink,
		logger:     deps.Logger.With(zap.String("board", board)),
	}
	game.timer = timer.New(deps.Scheduler, game, settings.TimerPeriod)
	return game
}

func (g *Game) Board() string            { return g.board }
func (g *Game) Grid() *grid.Grid         { return g.grid }
func (g *Game) IsCTF() bool              { return g.isCTF }
func (g *Game) MaxPlayers() int          { return g.maxPlayers }
func (g *Game) HasStarted() bool         { return g.hasStarted }
func (g *Game) IsOver() bool             { return g.over }
func (g *Game) Debug() bool              { return g.debug }
func (g *Game) Fight() *combat.Fight     { return g.fight }
func (g *Game) TimerState() timer.State  { return g.timer.State() }
func (g *Game) MovementInProgress() bool { return g.movementInProgress }
func (g *Game) PendingEndTurn() bool     { return g.pendingEndTurn }
func (g *Game) Players() []*player.Player {
	return append([]*player.Player(nil), g.players...)
}

// Player returns the participant with id, or nil.
func (g *Game) Player(id string) *player.Player {
	return player.ByID(g.players, id)
}

// Active returns the player whose turn it is, or nil before the start.
func (g *Game) Active() *player.Player {
	if !g.hasStarted || len(g.players) == 0 {
		return nil
	}
	return g.players[g.current]
}

// Snapshots returns the wire view of the roster.
func (g *Game) Snapshots() []player.Snapshot {
	out := make([]player.Snapshot, len(g.players))
	for i, p := range g.players {
		out[i] = p.Snapshot()
	}
	return out
}

// SetAdmin records the player whose departure disables debug mode.
func (g *Game) SetAdmin(id string) { g.admin = id }

// AddPlayer appends p to the lobby roster.
//
// Postcondition: on error the roster is unchanged.
func (g *Game) AddPlayer(p *player.Player) error {
	switch {
	case g.hasStarted:
		return ErrStarted
	case len(g.players) >= g.maxPlayers:
		return ErrFull
	case player.ByID(g.players, p.ID) != nil:
		return ErrDuplicateID
	case player.ByAvatar(g.players, p.Avatar) != nil:
		return ErrAvatarTaken
	}
	g.players = append(g.players, p)
	return nil
}

// RemoveLobbyPlayer drops id from the roster before the match starts.
func (g *Game) RemoveLobbyPlayer(id string) bool {
	if g.hasStarted {
		return false
	}
	for i, p := range g.players {
		if p.ID == id {
			g.players = append(g.players[:i], g.players[i+1:]...)
			return true
		}
	}
	return false
}

// Configure prepares the board and roster for the first turn.
//
// Postcondition: returns false and changes nothing when already started,
// when a CTF roster is odd, or when the board has too few spawn points.
func (g *Game) Configure() bool {
	if g.hasStarted || len(g.players) == 0 {
		return false
	}
	if g.isCTF && len(g.players)%2 != 0 {
		g.logger.Info("refusing odd ctf roster", zap.Int("players", len(g.players)))
		return false
	}
	spawns := grid.SpawnPoints(g.grid)
	if len(spawns) < len(g.players) {
		g.logger.Warn("board has too few spawn points",
			zap.Int("spawns", len(spawns)),
			zap.Int("players", len(g.players)),
		)
		return false
	}

	src := g.roller.Source()
	if g.isCTF {
		player.AssignTeams(g.players, src)
	}
	player.SortBySpeedDescending(g.players, src)
	used := player.AssignSpawnPoints(g.players, spawns, g.grid, src)
	grid.RemoveUnusedSpawnPoints(g.grid, used)
	for _, p := range g.players {
		p.CurrentLife = p.EffectiveMaxLife()
	}

	g.hasStarted = true
	g.current = 0
	g.emit(event.Broadcast(event.GameStarted, event.GameStartedPayload{
		Board:   g.board,
		IsCTF:   g.isCTF,
		Grid:    g.grid.Rows(),
		Players: g.Snapshots(),
	}))
	g.logger.Info("match configured", zap.Int("players", len(g.players)), zap.Bool("ctf", g.isCTF))
	return true
}

// ToggleDebug switches debug mode.
func (g *Game) ToggleDebug(enabled bool) {
	if g.debug == enabled {
		return
	}
	g.debug = enabled
	g.emit(event.Broadcast(event.DebugStateChanged, event.DebugPayload{Enabled: enabled}))
}

// ReachablePath returns the active player's current path to dest.
func (g *Game) ReachablePath(dest grid.Position) (grid.Path, bool) {
	p, ok := g.reachable[dest]
	return p, ok
}

// Close stops every timer and pending callback. The Game is inert afterwards.
func (g *Game) Close() {
	g.over = true
	g.timer.Reset()
	g.cancelPending()
}

func (g *Game) emit(evt event.Event) {
	g.sink.Emit(evt)
}

func (g *Game) cancelPending() {
	for _, c := range []*timer.Cancel{&g.cancelGrace, &g.cancelStep, &g.cancelBot} {
		if *c != nil {
			(*c)()
			*c = nil
		}
	}
}

func (g *Game) sortedReachable() []grid.Path {
	out := make([]grid.Path, 0, len(g.reachable))
	for _, p := range g.reachable {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		a, _ := out[i].Destination()
		b, _ := out[j].Destination()
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
	return out
}

func (g *Game) indexOf(id string) int {
	for i, p := range g.players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// isActive reports whether id may act in the current turn.
func (g *Game) isActive(id string) bool {
	a := g.Active()
	return a != nil && a.ID == id && g.turnActive && !g.over
}
