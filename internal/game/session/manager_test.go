package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/gridbrawl/internal/game/event"
)

func TestOutbox_PushAndDrain(t *testing.T) {
	o := NewOutbox("test", 4)
	require.NoError(t, o.Push([]byte("hello")))
	assert.Equal(t, []byte("hello"), <-o.Events())
	assert.Zero(t, o.Dropped())
}

func TestOutbox_PushAfterClose(t *testing.T) {
	o := NewOutbox("test", 4)
	o.Close()
	assert.True(t, o.Closed())
	assert.ErrorIs(t, o.Push([]byte("late")), ErrOutboxClosed)
	_, open := <-o.Events()
	assert.False(t, open)
}

func TestOutbox_FullQueueDrops(t *testing.T) {
	o := NewOutbox("test", 1)
	require.NoError(t, o.Push([]byte("first")))
	assert.ErrorIs(t, o.Push([]byte("second")), ErrOutboxFull)
	assert.ErrorIs(t, o.Push([]byte("third")), ErrOutboxFull)
	assert.Equal(t, 2, o.Dropped())
	assert.Equal(t, []byte("first"), <-o.Events())
}

func TestOutbox_CloseTwice(t *testing.T) {
	o := NewOutbox("test", 0)
	o.Close()
	o.Close()
	assert.True(t, o.Closed())
	assert.Equal(t, DefaultOutboxSize, cap(o.events))
}

func TestManager_ConnectDuplicate(t *testing.T) {
	m := NewManager(4)
	sess, err := m.Connect("u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", sess.Outbox.UID())
	assert.False(t, sess.ConnectedAt.IsZero())

	_, err = m.Connect("u1")
	assert.ErrorIs(t, err, ErrDuplicate)
	_, err = m.Connect("")
	assert.Error(t, err)
	assert.Equal(t, 1, m.Count())
}

func TestManager_SetRoomAndDisconnect(t *testing.T) {
	m := NewManager(4)
	sess, err := m.Connect("u1")
	require.NoError(t, err)
	_, err = m.Connect("u2")
	require.NoError(t, err)

	old, err := m.SetRoom("u1", "1234")
	require.NoError(t, err)
	assert.Empty(t, old)
	_, err = m.SetRoom("u2", "1234")
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, m.InRoom("1234"))
	assert.Equal(t, "1234", m.RoomOf("u1"))

	old, err = m.SetRoom("u2", "")
	require.NoError(t, err)
	assert.Equal(t, "1234", old)
	assert.Equal(t, []string{"u1"}, m.InRoom("1234"))

	code, err := m.Disconnect("u1")
	require.NoError(t, err)
	assert.Equal(t, "1234", code)
	assert.True(t, sess.Outbox.Closed())
	assert.Empty(t, m.InRoom("1234"))
	assert.Empty(t, m.RoomOf("u1"))

	_, err = m.Disconnect("u1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.SetRoom("ghost", "1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestManager_DisconnectReportsRoomLeft(t *testing.T) {
	m := NewManager(4)
	_, err := m.Connect("lobby")
	require.NoError(t, err)
	_, err = m.Connect("seated")
	require.NoError(t, err)
	_, err = m.SetRoom("seated", "9876")
	require.NoError(t, err)

	code, err := m.Disconnect("seated")
	require.NoError(t, err)
	assert.Equal(t, "9876", code)

	code, err = m.Disconnect("lobby")
	require.NoError(t, err)
	assert.Empty(t, code)
	assert.Zero(t, m.Count())
}

func TestManager_SendEncodesEvent(t *testing.T) {
	m := NewManager(4)
	sess, err := m.Connect("u1")
	require.NoError(t, err)

	require.NoError(t, m.Send("u1", event.Event{Type: event.RoomLocked, Room: "1234", Payload: event.RoomLockedPayload{Locked: true}}))

	var got map[string]any
	require.NoError(t, json.Unmarshal(<-sess.Outbox.Events(), &got))
	assert.Equal(t, "roomLocked", got["type"])
	assert.Equal(t, "1234", got["room"])
	assert.Equal(t, map[string]any{"locked": true}, got["payload"])

	assert.ErrorIs(t, m.Send("ghost", event.Event{Type: event.Error}), ErrNotFound)
}

func TestManager_ConcurrentSetRoom(t *testing.T) {
	m := NewManager(4)
	rooms := []string{"1000", "2000", "3000"}
	n := 30
	for i := 0; i < n; i++ {
		_, err := m.Connect(fmt.Sprintf("u%d", i))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_, _ = m.SetRoom(fmt.Sprintf("u%d", i), rooms[i%len(rooms)])
		}(i)
	}
	wg.Wait()

	total := 0
	for _, room := range rooms {
		total += len(m.InRoom(room))
	}
	assert.Equal(t, n, total)
}

func TestPropertyRoomOccupancyConsistent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := NewManager(4)
		rooms := []string{"", "1111", "2222", "3333"}
		numSessions := rapid.IntRange(1, 20).Draw(t, "num_sessions")
		for i := 0; i < numSessions; i++ {
			_, _ = m.Connect(fmt.Sprintf("p%d", i))
		}

		numMoves := rapid.IntRange(0, numSessions*2).Draw(t, "num_moves")
		for i := 0; i < numMoves; i++ {
			idx := rapid.IntRange(0, numSessions-1).Draw(t, "move_session")
			roomIdx := rapid.IntRange(0, len(rooms)-1).Draw(t, "move_room")
			_, _ = m.SetRoom(fmt.Sprintf("p%d", idx), rooms[roomIdx])
		}

		numRemoves := rapid.IntRange(0, numSessions/2).Draw(t, "num_removes")
		for i := 0; i < numRemoves; i++ {
			idx := rapid.IntRange(0, numSessions-1).Draw(t, "remove_session")
			_, _ = m.Disconnect(fmt.Sprintf("p%d", idx))
		}

		inRooms, roomless := 0, 0
		for _, room := range rooms[1:] {
			inRooms += len(m.InRoom(room))
		}
		for i := 0; i < numSessions; i++ {
			if s, ok := m.Get(fmt.Sprintf("p%d", i)); ok && s.RoomCode == "" {
				roomless++
			}
		}
		if inRooms+roomless != m.Count() {
			t.Fatalf("room occupancy %d + roomless %d != session count %d", inRooms, roomless, m.Count())
		}
	})
}

func TestManager_DetachOnlyMatchingRoom(t *testing.T) {
	m := NewManager(4)
	_, err := m.Connect("u1")
	require.NoError(t, err)
	_, err = m.SetRoom("u1", "2222")
	require.NoError(t, err)

	m.Detach("u1", "1111")
	assert.Equal(t, "2222", m.RoomOf("u1"), "a stale room must not detach the session")

	m.Detach("u1", "2222")
	assert.Empty(t, m.RoomOf("u1"))
	m.Detach("ghost", "2222")
}
