package room

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/gridbrawl/internal/game/board"
	"github.com/cory-johannsen/gridbrawl/internal/game/match"
)

// codeAttempts bounds the random draws for a free access code.
const codeAttempts = 64

// Manager is the registry of live rooms keyed by access code.
// All methods are safe for concurrent use.
type Manager struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	ctx      context.Context
	boards   board.Provider
	settings match.Settings
	deps     Deps
	wg       sync.WaitGroup
}

// NewManager creates an empty registry. Rooms run until they close or ctx
// is cancelled.
//
// Precondition: boards and every field of deps except Scheduler are non-nil.
func NewManager(ctx context.Context, boards board.Provider, settings match.Settings, deps Deps) *Manager {
	return &Manager{
		rooms:    make(map[string]*Room),
		ctx:      ctx,
		boards:   boards,
		settings: settings,
		deps:     deps,
	}
}

// Create opens a room on the named board with organizer as its owner and
// starts its loop.
//
// Postcondition: the room is registered under a fresh 4-digit code.
func (m *Manager) Create(ctx context.Context, organizer, boardName string) (*Room, error) {
	b, err := m.boards.GetBoard(ctx, boardName)
	if err != nil {
		return nil, fmt.Errorf("creating room: %w", err)
	}

	m.mu.Lock()
	code, err := m.freeCodeLocked()
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	r, err := newRoom(code, b, organizer, m.settings, m.deps, m.remove)
	if err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("creating room: %w", err)
	}
	m.rooms[code] = r
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		r.Run(m.ctx)
	}()
	return r, nil
}

func (m *Manager) freeCodeLocked() (string, error) {
	src := m.deps.Roller.Source()
	for i := 0; i < codeAttempts; i++ {
		code := fmt.Sprintf("%04d", 1000+src.Intn(9000))
		if _, taken := m.rooms[code]; !taken {
			return code, nil
		}
	}
	return "", ErrNoFreeCode
}

// remove is the onClose callback of every room.
func (m *Manager) remove(code string) {
	m.mu.Lock()
	delete(m.rooms, code)
	n := len(m.rooms)
	m.mu.Unlock()
	m.deps.Logger.Debug("room unregistered", zap.String("room", code), zap.Int("rooms", n))
}

// Get returns the room with the given code.
func (m *Manager) Get(code string) (*Room, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rooms[code]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrRoomNotFound, code)
	}
	return r, nil
}

// Codes returns the codes of the live rooms, sorted.
func (m *Manager) Codes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.rooms))
	for code := range m.rooms {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of live rooms.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Shutdown closes every room and waits for their loops to exit.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()
	for _, r := range rooms {
		r.Close(ReasonShutdown)
	}
	m.wg.Wait()
}
