// Package room hosts one match per access code. Every room runs a single
// goroutine that owns its match: client intents, timer ticks, animation
// steps and bot think delays all reach the match through the room inbox.
package room

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridbrawl/internal/game/ai"
	"github.com/cory-johannsen/gridbrawl/internal/game/board"
	"github.com/cory-johannsen/gridbrawl/internal/game/dice"
	"github.com/cory-johannsen/gridbrawl/internal/game/event"
	"github.com/cory-johannsen/gridbrawl/internal/game/match"
	"github.com/cory-johannsen/gridbrawl/internal/game/player"
	"github.com/cory-johannsen/gridbrawl/internal/game/timer"
	"github.com/cory-johannsen/gridbrawl/internal/observability"
)

// ChatHistoryLimit is how many chat messages a room keeps.
const ChatHistoryLimit = 100

// MaxChatLength bounds one chat message in bytes.
const MaxChatLength = 500

// Close reasons carried by roomClosed.
const (
	ReasonOrganizerLeft = "organizerLeft"
	ReasonNoHumans      = "noHumansLeft"
	ReasonGameOver      = "gameOver"
	ReasonShutdown      = "shutdown"
)

// Members delivers events to connected clients and releases their
// membership when they leave the room.
type Members interface {
	Send(uid string, evt event.Event) error
	Detach(uid, code string)
}

// Agents builds the decision policy of a virtual player.
type Agents interface {
	AgentFor(profile player.Profile) (*ai.VirtualAgent, error)
}

// Deps are the collaborators shared by every room of a Manager.
type Deps struct {
	Members Members
	Agents  Agents
	Roller  *dice.Roller
	Logger  *zap.Logger
	// Scheduler overrides the wall-clock loop scheduler. Tests pass a
	// timer.ManualScheduler and advance it through Room.exec.
	Scheduler timer.Scheduler
	// NewID returns fresh virtual player IDs.
	NewID func() string
	Now   func() time.Time
}

// Room is one lobby and its match.
type Room struct {
	code      string
	board     *board.Board
	organizer string

	// Fields below are owned by the loop goroutine.
	game    *match.Game
	locked  bool
	closed  bool
	members map[string]bool
	chat    []event.ChatPayload

	inbox     chan func()
	done      chan struct{}
	closeOnce sync.Once
	onClose   func(code string)

	deps   Deps
	logger *zap.Logger
}

func newRoom(code string, b *board.Board, organizer string, settings match.Settings, deps Deps, onClose func(string)) (*Room, error) {
	g, err := b.Grid()
	if err != nil {
		return nil, err
	}
	r := &Room{
		code:      code,
		board:     b,
		organizer: organizer,
		members:   map[string]bool{organizer: true},
		inbox:     make(chan func(), 64),
		done:      make(chan struct{}),
		onClose:   onClose,
		deps:      deps,
		logger:    observability.RoomLogger(deps.Logger, code),
	}
	sched := deps.Scheduler
	if sched == nil {
		sched = timer.NewLoopScheduler(r.post)
	}
	r.game = match.New(b.Name, g, b.IsCTF, settings, match.Deps{
		Scheduler: sched,
		Roller:    deps.Roller,
		Sink:      event.SinkFunc(r.route),
		Logger:    r.logger,
	})
	return r, nil
}

// Code returns the room's access code.
func (r *Room) Code() string { return r.code }

// Organizer returns the ID of the client that created the room.
func (r *Room) Organizer() string { return r.organizer }

// Done is closed once the room has shut down.
func (r *Room) Done() <-chan struct{} { return r.done }

// Run drives the room until it closes or ctx is cancelled.
func (r *Room) Run(ctx context.Context) {
	r.logger.Info("room opened", zap.String("board", r.board.Name), zap.String("organizer", r.organizer))
	for {
		select {
		case fn := <-r.inbox:
			fn()
			if r.closed {
				return
			}
		case <-ctx.Done():
			r.shutdown(ReasonShutdown)
			return
		}
	}
}

// post hands fn to the loop. It gives up once the room is closed.
func (r *Room) post(fn func()) {
	select {
	case r.inbox <- fn:
	case <-r.done:
	}
}

// exec runs fn on the loop and waits for its result.
func (r *Room) exec(fn func() error) error {
	errc := make(chan error, 1)
	select {
	case r.inbox <- func() {
		if r.closed {
			errc <- ErrRoomClosed
			return
		}
		errc <- fn()
	}:
	case <-r.done:
		return ErrRoomClosed
	}
	select {
	case err := <-errc:
		return err
	case <-r.done:
		select {
		case err := <-errc:
			return err
		default:
			return ErrRoomClosed
		}
	}
}

// route stamps the room code on evt and delivers it to its recipients.
func (r *Room) route(evt event.Event) {
	evt.Room = r.code
	if evt.To != "" {
		if r.members[evt.To] {
			r.send(evt.To, evt)
		}
		return
	}
	for uid := range r.members {
		r.send(uid, evt)
	}
}

func (r *Room) send(uid string, evt event.Event) {
	if err := r.deps.Members.Send(uid, evt); err != nil {
		r.logger.Debug("dropping event", zap.String("to", uid), zap.String("type", string(evt.Type)), zap.Error(err))
	}
}

// info is the lobby snapshot.
func (r *Room) info() event.RoomInfo {
	return event.RoomInfo{
		Code:      r.code,
		Board:     r.board.Name,
		Organizer: r.organizer,
		Locked:    r.locked,
		Started:   r.game.HasStarted(),
		MaxPlayer: r.game.MaxPlayers(),
		Players:   r.game.Snapshots(),
	}
}

// Info returns the lobby snapshot.
func (r *Room) Info() (event.RoomInfo, error) {
	var info event.RoomInfo
	err := r.exec(func() error {
		info = r.info()
		return nil
	})
	return info, err
}

// ChatHistory returns up to ChatHistoryLimit messages, oldest first.
func (r *Room) ChatHistory() ([]event.ChatPayload, error) {
	var out []event.ChatPayload
	err := r.exec(func() error {
		out = append([]event.ChatPayload(nil), r.chat...)
		return nil
	})
	return out, err
}

// shutdown tells every member the room is gone and stops the match.
//
// Postcondition: the loop exits after the current callback returns.
func (r *Room) shutdown(reason string) {
	if r.closed {
		return
	}
	r.closed = true
	r.route(event.Broadcast(event.RoomClosed, event.RoomClosedPayload{Reason: reason}))
	for uid := range r.members {
		r.deps.Members.Detach(uid, r.code)
	}
	r.members = map[string]bool{}
	r.game.Close()
	r.closeOnce.Do(func() {
		close(r.done)
		if r.onClose != nil {
			r.onClose(r.code)
		}
	})
	r.logger.Info("room closed", zap.String("reason", reason))
}

// Close shuts the room down from outside the loop.
func (r *Room) Close(reason string) {
	_ = r.exec(func() error {
		r.shutdown(reason)
		return nil
	})
}
