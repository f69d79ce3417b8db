package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cory-johannsen/gridbrawl/internal/game/event"
)

var (
	// ErrDuplicate is returned when a UID is already connected.
	ErrDuplicate = errors.New("session: already connected")
	// ErrNotFound is returned for an unknown UID.
	ErrNotFound = errors.New("session: not found")
)

// Session is one connected client.
type Session struct {
	// UID is the connection identifier, also used as the player ID in a match.
	UID string
	// RoomCode is the access code of the joined room, empty in between rooms.
	RoomCode string
	// ConnectedAt is when the transport accepted the connection.
	ConnectedAt time.Time
	// Outbox queues the encoded events for the client's transport writer.
	Outbox *Outbox
}

// Manager tracks all connected sessions and room membership.
// All methods are safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	rooms    map[string]map[string]bool // code → set of UIDs
	buffer   int
	now      func() time.Time
}

// NewManager creates an empty session Manager. bufferSize bounds each
// client's pending event queue; 0 uses DefaultOutboxSize.
func NewManager(bufferSize int) *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		rooms:    make(map[string]map[string]bool),
		buffer:   bufferSize,
		now:      time.Now,
	}
}

// Connect registers a new session.
//
// Precondition: uid must be non-empty.
// Postcondition: Returns the created Session, or ErrDuplicate.
func (m *Manager) Connect(uid string) (*Session, error) {
	if uid == "" {
		return nil, fmt.Errorf("session: empty uid")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[uid]; exists {
		return nil, fmt.Errorf("%w: %q", ErrDuplicate, uid)
	}
	sess := &Session{
		UID:         uid,
		ConnectedAt: m.now(),
		Outbox:      NewOutbox(uid, m.buffer),
	}
	m.sessions[uid] = sess
	return sess, nil
}

// Disconnect removes a session, its room membership, and closes its outbox.
//
// Postcondition: Returns the room code the session was in, or ErrNotFound.
func (m *Manager) Disconnect(uid string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, exists := m.sessions[uid]
	if !exists {
		return "", fmt.Errorf("%w: %q", ErrNotFound, uid)
	}
	code := sess.RoomCode
	m.leaveLocked(sess)
	sess.Outbox.Close()
	delete(m.sessions, uid)
	return code, nil
}

// SetRoom moves a session into the room with the given code. An empty code
// leaves the current room.
//
// Postcondition: Returns the previous room code, or ErrNotFound.
func (m *Manager) SetRoom(uid, code string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, exists := m.sessions[uid]
	if !exists {
		return "", fmt.Errorf("%w: %q", ErrNotFound, uid)
	}
	old := sess.RoomCode
	m.leaveLocked(sess)
	sess.RoomCode = code
	if code != "" {
		if m.rooms[code] == nil {
			m.rooms[code] = make(map[string]bool)
		}
		m.rooms[code][uid] = true
	}
	return old, nil
}

// Detach leaves room code if uid is still in it. Unknown uids are ignored.
func (m *Manager) Detach(uid, code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[uid]; ok && sess.RoomCode == code {
		m.leaveLocked(sess)
	}
}

func (m *Manager) leaveLocked(sess *Session) {
	if rs, ok := m.rooms[sess.RoomCode]; ok {
		delete(rs, sess.UID)
		if len(rs) == 0 {
			delete(m.rooms, sess.RoomCode)
		}
	}
	sess.RoomCode = ""
}

// Send encodes evt and pushes it to uid's outbox.
//
// Postcondition: Returns ErrNotFound for an unknown uid, or the push error.
func (m *Manager) Send(uid string, evt event.Event) error {
	m.mu.RLock()
	sess, ok := m.sessions[uid]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, uid)
	}
	data, err := event.Encode(evt)
	if err != nil {
		return err
	}
	return sess.Outbox.Push(data)
}

// InRoom returns the sorted UIDs of the sessions in the given room.
func (m *Manager) InRoom(code string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	uids := make([]string, 0, len(m.rooms[code]))
	for uid := range m.rooms[code] {
		uids = append(uids, uid)
	}
	sort.Strings(uids)
	return uids
}

// Get returns the session for the given UID.
//
// Postcondition: Returns (session, true) if found, or (nil, false) otherwise.
func (m *Manager) Get(uid string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[uid]
	return sess, ok
}

// RoomOf returns the room code uid is in, or "".
func (m *Manager) RoomOf(uid string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sess, ok := m.sessions[uid]; ok {
		return sess.RoomCode
	}
	return ""
}

// Count returns the number of connected sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
