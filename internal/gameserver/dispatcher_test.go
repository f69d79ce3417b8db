package gameserver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/gridbrawl/internal/game/ai"
	"github.com/cory-johannsen/gridbrawl/internal/game/board"
	"github.com/cory-johannsen/gridbrawl/internal/game/dice"
	"github.com/cory-johannsen/gridbrawl/internal/game/event"
	"github.com/cory-johannsen/gridbrawl/internal/game/match"
	"github.com/cory-johannsen/gridbrawl/internal/game/player"
	"github.com/cory-johannsen/gridbrawl/internal/game/room"
	"github.com/cory-johannsen/gridbrawl/internal/game/session"
	"github.com/cory-johannsen/gridbrawl/internal/game/timer"
)

type stack struct {
	dispatcher *Dispatcher
	sessions   *session.Manager
	rooms      *room.Manager
	boards     board.Provider
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := zaptest.NewLogger(t)
	roller := dice.NewRoller(dice.NewSeededSource(3), logger)
	conds, err := ai.NewConditions(roller)
	require.NoError(t, err)
	agents, err := ai.NewDefaultRegistry(conds, nil, logger)
	require.NoError(t, err)
	boards, err := board.NewDirProvider("../../content/boards")
	require.NoError(t, err)

	sessions := session.NewManager(64)
	ctx, cancel := context.WithCancel(context.Background())
	rooms := room.NewManager(ctx, boards, match.DefaultSettings(), room.Deps{
		Members:   sessions,
		Agents:    agents,
		Roller:    roller,
		Logger:    logger,
		Scheduler: timer.NewManualScheduler(),
		NewID:     uuid.NewString,
		Now:       time.Now,
	})
	t.Cleanup(func() {
		rooms.Shutdown()
		cancel()
	})
	return &stack{
		dispatcher: NewDispatcher(rooms, sessions, logger),
		sessions:   sessions,
		rooms:      rooms,
		boards:     boards,
	}
}

type wireEvent struct {
	Type    event.Type      `json:"type"`
	Room    string          `json:"room"`
	Payload json.RawMessage `json:"payload"`
}

// next returns the next event of type want delivered to sess, skipping others.
func next(t *testing.T, sess *session.Session, want event.Type) wireEvent {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data, ok := <-sess.Outbox.Events():
			require.True(t, ok, "outbox closed while waiting for %s", want)
			var evt wireEvent
			require.NoError(t, json.Unmarshal(data, &evt))
			if evt.Type == want {
				return evt
			}
		case <-deadline:
			t.Fatalf("no %s event", want)
		}
	}
}

func okStats() *player.Stats {
	return &player.Stats{Life: 6, Speed: 4, Attack: 4, Defense: 4, AttackDice: dice.D6, DefenseDice: dice.D4}
}

func TestDispatcher_ConnectGreets(t *testing.T) {
	s := newStack(t)
	sess, err := s.dispatcher.Connect("u1")
	require.NoError(t, err)

	evt := next(t, sess, event.Connected)
	var payload event.ConnectedPayload
	require.NoError(t, json.Unmarshal(evt.Payload, &payload))
	assert.Equal(t, "u1", payload.PlayerID)

	_, err = s.dispatcher.Connect("u1")
	assert.ErrorIs(t, err, session.ErrDuplicate)
}

func TestDispatcher_CreateJoinAndStart(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	org, err := s.dispatcher.Connect("org")
	require.NoError(t, err)
	guest, err := s.dispatcher.Connect("guest")
	require.NoError(t, err)

	s.dispatcher.Dispatch(ctx, event.Intent{Type: event.IntentCreateRoom, PlayerID: "org", Board: "arena"})
	created := next(t, org, event.RoomCreated)
	var info event.RoomInfo
	require.NoError(t, json.Unmarshal(created.Payload, &info))
	assert.Equal(t, "arena", info.Board)
	code := created.Room
	require.Len(t, code, 4)
	assert.Equal(t, code, s.sessions.RoomOf("org"))

	s.dispatcher.Dispatch(ctx, event.Intent{Type: event.IntentJoinRoom, PlayerID: "org", Code: code, Name: "Ann", Avatar: "avatar-01", Stats: okStats()})
	next(t, org, event.RoomJoined)

	s.dispatcher.Dispatch(ctx, event.Intent{Type: event.IntentJoinRoom, PlayerID: "guest", Code: code, Name: "Bob", Avatar: "avatar-02", Stats: okStats()})
	next(t, guest, event.RoomJoined)
	assert.Equal(t, code, s.sessions.RoomOf("guest"))

	locked := next(t, org, event.RoomLocked)
	assert.JSONEq(t, `{"locked":true}`, string(locked.Payload), "arena holds two players")

	s.dispatcher.Dispatch(ctx, event.Intent{Type: event.IntentStartGame, PlayerID: "org"})
	next(t, guest, event.GameStarted)
	next(t, guest, event.TurnChanged)
}

func TestDispatcher_RefusalsBecomeErrorEvents(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	u, err := s.dispatcher.Connect("u1")
	require.NoError(t, err)

	s.dispatcher.Dispatch(ctx, event.Intent{Type: event.IntentLockRoom, PlayerID: "u1"})
	evt := next(t, u, event.Error)
	var payload event.ErrorPayload
	require.NoError(t, json.Unmarshal(evt.Payload, &payload))
	assert.Equal(t, string(event.IntentLockRoom), payload.Intent)
	assert.Equal(t, ErrNotInRoom.Error(), payload.Message)

	s.dispatcher.Dispatch(ctx, event.Intent{Type: event.IntentCreateRoom, PlayerID: "u1", Board: "nowhere"})
	next(t, u, event.Error)

	s.dispatcher.Dispatch(ctx, event.Intent{Type: event.IntentJoinRoom, PlayerID: "u1", Code: "0000", Stats: okStats()})
	next(t, u, event.Error)
	s.dispatcher.Dispatch(ctx, event.Intent{Type: event.IntentJoinRoom, PlayerID: "u1", Code: "0000"})
	evt = next(t, u, event.Error)
	require.NoError(t, json.Unmarshal(evt.Payload, &payload))
	assert.Equal(t, ErrMissingStats.Error(), payload.Message)
	assert.Empty(t, s.sessions.RoomOf("u1"))
}

func TestDispatcher_FailedJoinDetaches(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	org, err := s.dispatcher.Connect("org")
	require.NoError(t, err)
	guest, err := s.dispatcher.Connect("guest")
	require.NoError(t, err)

	s.dispatcher.Dispatch(ctx, event.Intent{Type: event.IntentCreateRoom, PlayerID: "org", Board: "fortress"})
	code := next(t, org, event.RoomCreated).Room
	s.dispatcher.Dispatch(ctx, event.Intent{Type: event.IntentLockRoom, PlayerID: "org"})

	s.dispatcher.Dispatch(ctx, event.Intent{Type: event.IntentJoinRoom, PlayerID: "guest", Code: code, Name: "Bob", Avatar: "avatar-02", Stats: okStats()})
	evt := next(t, guest, event.Error)
	var payload event.ErrorPayload
	require.NoError(t, json.Unmarshal(evt.Payload, &payload))
	assert.Equal(t, room.ErrRoomLocked.Error(), payload.Message)
	assert.Empty(t, s.sessions.RoomOf("guest"))
}

func TestDispatcher_DisconnectOrganizerClosesLobby(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	org, err := s.dispatcher.Connect("org")
	require.NoError(t, err)
	guest, err := s.dispatcher.Connect("guest")
	require.NoError(t, err)

	s.dispatcher.Dispatch(ctx, event.Intent{Type: event.IntentCreateRoom, PlayerID: "org", Board: "fortress"})
	code := next(t, org, event.RoomCreated).Room
	s.dispatcher.Dispatch(ctx, event.Intent{Type: event.IntentJoinRoom, PlayerID: "guest", Code: code, Name: "Bob", Avatar: "avatar-02", Stats: okStats()})
	next(t, guest, event.RoomJoined)

	s.dispatcher.Disconnect("org")
	closed := next(t, guest, event.RoomClosed)
	assert.JSONEq(t, `{"reason":"organizerLeft"}`, string(closed.Payload))
	assert.Empty(t, s.sessions.RoomOf("guest"))
	assert.Equal(t, 0, s.rooms.Len())
	_, ok := s.sessions.Get("org")
	assert.False(t, ok)
}

func TestDispatcher_ChatAndBots(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	org, err := s.dispatcher.Connect("org")
	require.NoError(t, err)

	s.dispatcher.Dispatch(ctx, event.Intent{Type: event.IntentCreateRoom, PlayerID: "org", Board: "fortress"})
	code := next(t, org, event.RoomCreated).Room
	s.dispatcher.Dispatch(ctx, event.Intent{Type: event.IntentJoinRoom, PlayerID: "org", Code: code, Name: "Ann", Avatar: "avatar-01", Stats: okStats()})
	next(t, org, event.RoomJoined)

	s.dispatcher.Dispatch(ctx, event.Intent{Type: event.IntentChatMessage, PlayerID: "org", Message: "glhf"})
	chat := next(t, org, event.ChatMessage)
	var msg event.ChatPayload
	require.NoError(t, json.Unmarshal(chat.Payload, &msg))
	assert.Equal(t, "Ann", msg.Author)
	assert.Equal(t, "glhf", msg.Text)

	s.dispatcher.Dispatch(ctx, event.Intent{Type: event.IntentAddVirtualPlayer, PlayerID: "org", Profile: player.ProfileDefensive})
	updated := next(t, org, event.PlayersUpdated)
	var roster event.PlayersPayload
	require.NoError(t, json.Unmarshal(updated.Payload, &roster))
	assert.Len(t, roster.Players, 2)
}
