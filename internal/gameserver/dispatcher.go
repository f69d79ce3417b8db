// Package gameserver exposes rooms to clients over gRPC and WebSocket.
// Both transports decode the same JSON intents and hand them to one
// Dispatcher; events flow back through each client's session outbox.
package gameserver

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridbrawl/internal/game/event"
	"github.com/cory-johannsen/gridbrawl/internal/game/room"
	"github.com/cory-johannsen/gridbrawl/internal/game/session"
)

var (
	// ErrNotInRoom is returned for room intents from a client outside any room.
	ErrNotInRoom = errors.New("not in a room")
	// ErrAlreadyInRoom is returned when a client in a room creates or joins another.
	ErrAlreadyInRoom = errors.New("already in a room")
	// ErrMissingStats is returned for joinRoom without a character sheet.
	ErrMissingStats = errors.New("joinRoom requires stats")
)

// Dispatcher routes decoded intents to the room registry and reports
// refusals to the requester as error events.
type Dispatcher struct {
	rooms    *room.Manager
	sessions *session.Manager
	logger   *zap.Logger
}

// NewDispatcher creates a Dispatcher.
//
// Precondition: rooms, sessions and logger must be non-nil.
func NewDispatcher(rooms *room.Manager, sessions *session.Manager, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{rooms: rooms, sessions: sessions, logger: logger}
}

// Connect registers uid and greets it with its player ID.
//
// Postcondition: on success the caller must eventually call Disconnect(uid).
func (d *Dispatcher) Connect(uid string) (*session.Session, error) {
	sess, err := d.sessions.Connect(uid)
	if err != nil {
		return nil, err
	}
	if err := d.sessions.Send(uid, event.Direct(uid, event.Connected, event.ConnectedPayload{PlayerID: uid})); err != nil {
		d.logger.Warn("greeting client", zap.String("uid", uid), zap.Error(err))
	}
	return sess, nil
}

// Disconnect removes uid from its room, then drops its session. It is the
// transport-level disconnect intent.
func (d *Dispatcher) Disconnect(uid string) {
	if code := d.sessions.RoomOf(uid); code != "" {
		if r, err := d.rooms.Get(code); err == nil {
			if err := r.Leave(uid); err != nil && !errors.Is(err, room.ErrRoomClosed) && !errors.Is(err, room.ErrNotMember) {
				d.logger.Warn("leaving room on disconnect", zap.String("uid", uid), zap.String("room", code), zap.Error(err))
			}
		}
	}
	if _, err := d.sessions.Disconnect(uid); err != nil && !errors.Is(err, session.ErrNotFound) {
		d.logger.Warn("dropping session", zap.String("uid", uid), zap.Error(err))
	}
}

// Dispatch executes in for in.PlayerID. A refusal becomes an error event
// addressed to the requester only.
func (d *Dispatcher) Dispatch(ctx context.Context, in event.Intent) {
	err := d.handle(ctx, in)
	if err == nil {
		return
	}
	d.logger.Debug("intent refused",
		zap.String("uid", in.PlayerID),
		zap.String("intent", string(in.Type)),
		zap.Error(err),
	)
	d.ReportError(in.PlayerID, string(in.Type), err)
}

// ReportError sends an error event to uid.
func (d *Dispatcher) ReportError(uid, intent string, err error) {
	evt := event.Direct(uid, event.Error, event.ErrorPayload{Intent: intent, Message: err.Error()})
	if sendErr := d.sessions.Send(uid, evt); sendErr != nil {
		d.logger.Debug("dropping error event", zap.String("uid", uid), zap.Error(sendErr))
	}
}

func (d *Dispatcher) handle(ctx context.Context, in event.Intent) error {
	uid := in.PlayerID
	switch in.Type {
	case event.IntentCreateRoom:
		return d.createRoom(ctx, uid, in.Board)
	case event.IntentJoinRoom:
		return d.joinRoom(uid, in)
	case event.IntentDisconnect:
		d.Disconnect(uid)
		return nil
	}

	r, err := d.currentRoom(uid)
	if err != nil {
		return err
	}
	switch in.Type {
	case event.IntentLockRoom:
		return r.Lock(uid)
	case event.IntentUnlockRoom:
		return r.Unlock(uid)
	case event.IntentAddVirtualPlayer:
		return r.AddVirtualPlayer(uid, in.Profile)
	case event.IntentExpelPlayer:
		return r.Expel(uid, in.TargetID)
	case event.IntentLeaveRoom:
		return r.Leave(uid)
	case event.IntentStartGame:
		return r.Start(uid)
	case event.IntentChatMessage:
		return r.Chat(uid, in.Message)
	default:
		return r.Handle(in)
	}
}

func (d *Dispatcher) currentRoom(uid string) (*room.Room, error) {
	code := d.sessions.RoomOf(uid)
	if code == "" {
		return nil, ErrNotInRoom
	}
	return d.rooms.Get(code)
}

func (d *Dispatcher) createRoom(ctx context.Context, uid, boardName string) error {
	if d.sessions.RoomOf(uid) != "" {
		return ErrAlreadyInRoom
	}
	r, err := d.rooms.Create(ctx, uid, boardName)
	if err != nil {
		return err
	}
	if _, err := d.sessions.SetRoom(uid, r.Code()); err != nil {
		r.Close(room.ReasonShutdown)
		return fmt.Errorf("attaching organizer: %w", err)
	}
	info, err := r.Info()
	if err != nil {
		return err
	}
	evt := event.Direct(uid, event.RoomCreated, info)
	evt.Room = r.Code()
	return d.sessions.Send(uid, evt)
}

func (d *Dispatcher) joinRoom(uid string, in event.Intent) error {
	if current := d.sessions.RoomOf(uid); current != "" && current != in.Code {
		return ErrAlreadyInRoom
	}
	if in.Stats == nil {
		return ErrMissingStats
	}
	r, err := d.rooms.Get(in.Code)
	if err != nil {
		return err
	}
	if _, err := d.sessions.SetRoom(uid, r.Code()); err != nil {
		return err
	}
	err = r.Join(room.JoinRequest{PlayerID: uid, Name: in.Name, Avatar: in.Avatar, Stats: *in.Stats})
	if err != nil && uid != r.Organizer() {
		d.sessions.Detach(uid, r.Code())
	}
	return err
}
