package room

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/gridbrawl/internal/game/ai"
	"github.com/cory-johannsen/gridbrawl/internal/game/board"
	"github.com/cory-johannsen/gridbrawl/internal/game/dice"
	"github.com/cory-johannsen/gridbrawl/internal/game/event"
	"github.com/cory-johannsen/gridbrawl/internal/game/grid"
	"github.com/cory-johannsen/gridbrawl/internal/game/match"
	"github.com/cory-johannsen/gridbrawl/internal/game/player"
	"github.com/cory-johannsen/gridbrawl/internal/game/timer"
)

// fakeMembers records every delivery per client.
type fakeMembers struct {
	mu       sync.Mutex
	events   map[string][]event.Event
	detached map[string][]string
}

func newFakeMembers() *fakeMembers {
	return &fakeMembers{events: map[string][]event.Event{}, detached: map[string][]string{}}
}

func (f *fakeMembers) Send(uid string, evt event.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[uid] = append(f.events[uid], evt)
	return nil
}

func (f *fakeMembers) Detach(uid, code string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detached[uid] = append(f.detached[uid], code)
}

func (f *fakeMembers) of(uid string, t event.Type) []event.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []event.Event
	for _, e := range f.events[uid] {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (f *fakeMembers) wasDetached(uid string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.detached[uid]) > 0
}

type fixture struct {
	mgr     *Manager
	members *fakeMembers
	sched   *timer.ManualScheduler
}

func openBoard(name string, size int) *board.Board {
	rows := make([]string, size)
	for i := range rows {
		rows[i] = strings.Repeat(".", size)
	}
	last := size - 1
	return &board.Board{
		Name: name,
		Rows: rows,
		Items: []board.Placement{
			{Item: grid.Spawn, Position: grid.Position{X: 0, Y: 0}},
			{Item: grid.Spawn, Position: grid.Position{X: last, Y: last}},
			{Item: grid.Spawn, Position: grid.Position{X: last, Y: 0}},
			{Item: grid.Spawn, Position: grid.Position{X: 0, Y: last}},
		},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	roller := dice.NewRoller(dice.NewSeededSource(7), logger)
	conds, err := ai.NewConditions(roller)
	require.NoError(t, err)
	agents, err := ai.NewDefaultRegistry(conds, nil, logger)
	require.NoError(t, err)

	var (
		idMu sync.Mutex
		next int
	)
	f := &fixture{members: newFakeMembers(), sched: timer.NewManualScheduler()}
	deps := Deps{
		Members:   f.members,
		Agents:    agents,
		Roller:    roller,
		Logger:    logger,
		Scheduler: f.sched,
		NewID: func() string {
			idMu.Lock()
			defer idMu.Unlock()
			next++
			return fmt.Sprintf("bot-%d", next)
		},
		Now: func() time.Time { return time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC) },
	}
	ctx, cancel := context.WithCancel(context.Background())
	provider := board.NewStaticProvider(openBoard("duel", 4), openBoard("square", 11))
	f.mgr = NewManager(ctx, provider, match.DefaultSettings(), deps)
	t.Cleanup(func() {
		f.mgr.Shutdown()
		cancel()
	})
	return f
}

func stats() player.Stats {
	return player.Stats{Life: 6, Speed: 4, Attack: 4, Defense: 4, AttackDice: dice.D6, DefenseDice: dice.D4}
}

func join(t *testing.T, r *Room, id, name, avatar string) {
	t.Helper()
	require.NoError(t, r.Join(JoinRequest{PlayerID: id, Name: name, Avatar: avatar, Stats: stats()}))
}

// advance moves the virtual clock on the room loop.
func (f *fixture) advance(t *testing.T, r *Room, d time.Duration) {
	t.Helper()
	require.NoError(t, r.exec(func() error {
		f.sched.Advance(d)
		return nil
	}))
}

func TestManager_CreateAndGet(t *testing.T) {
	f := newFixture(t)
	r, err := f.mgr.Create(context.Background(), "org", "duel")
	require.NoError(t, err)

	assert.Len(t, r.Code(), 4)
	assert.GreaterOrEqual(t, r.Code(), "1000")
	assert.Equal(t, "org", r.Organizer())

	got, err := f.mgr.Get(r.Code())
	require.NoError(t, err)
	assert.Same(t, r, got)
	assert.Equal(t, []string{r.Code()}, f.mgr.Codes())

	info, err := r.Info()
	require.NoError(t, err)
	assert.Equal(t, "duel", info.Board)
	assert.Equal(t, 2, info.MaxPlayer)
	assert.False(t, info.Started)
}

func TestManager_UnknownBoardAndRoom(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.Create(context.Background(), "org", "nowhere")
	assert.ErrorIs(t, err, board.ErrNotFound)

	_, err = f.mgr.Get("0000")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestManager_CodesAreUnique(t *testing.T) {
	f := newFixture(t)
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		r, err := f.mgr.Create(context.Background(), fmt.Sprintf("org-%d", i), "duel")
		require.NoError(t, err)
		assert.False(t, seen[r.Code()], "duplicate code %s", r.Code())
		seen[r.Code()] = true
	}
	assert.Equal(t, 20, f.mgr.Len())
}

func TestJoin_NotifiesJoinerAndRoom(t *testing.T) {
	f := newFixture(t)
	r, err := f.mgr.Create(context.Background(), "org", "square")
	require.NoError(t, err)
	join(t, r, "org", "Ann", "avatar-01")
	join(t, r, "p2", "Bob", "avatar-02")

	joined := f.members.of("p2", event.RoomJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, r.Code(), joined[0].Room)
	info := joined[0].Payload.(event.RoomInfo)
	assert.Len(t, info.Players, 2)

	assert.Len(t, f.members.of("org", event.PlayersUpdated), 2)
	assert.Len(t, f.members.of("p2", event.PlayersUpdated), 1)
}

func TestJoin_DeduplicatesNames(t *testing.T) {
	f := newFixture(t)
	r, err := f.mgr.Create(context.Background(), "org", "square")
	require.NoError(t, err)
	join(t, r, "org", "Ann", "avatar-01")
	join(t, r, "p2", "Ann", "avatar-02")
	join(t, r, "p3", "  Ann ", "avatar-03")

	info, err := r.Info()
	require.NoError(t, err)
	var names []string
	for _, p := range info.Players {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"Ann", "Ann-2", "Ann-3"}, names)
}

func TestJoin_Rejections(t *testing.T) {
	f := newFixture(t)
	r, err := f.mgr.Create(context.Background(), "org", "square")
	require.NoError(t, err)
	join(t, r, "org", "Ann", "avatar-01")

	err = r.Join(JoinRequest{PlayerID: "org", Name: "Ann", Avatar: "avatar-05", Stats: stats()})
	assert.ErrorIs(t, err, ErrAlreadyJoined)

	err = r.Join(JoinRequest{PlayerID: "p2", Name: "Bob", Avatar: "avatar-01", Stats: stats()})
	assert.ErrorIs(t, err, ErrAvatarTaken)

	err = r.Join(JoinRequest{PlayerID: "p2", Name: "Bob", Avatar: "", Stats: stats()})
	assert.ErrorIs(t, err, ErrAvatarTaken)

	err = r.Join(JoinRequest{PlayerID: "p2", Name: "Bob", Avatar: "avatar-02", Stats: player.Stats{}})
	assert.ErrorIs(t, err, ErrInvalidStats)

	require.NoError(t, r.Lock("org"))
	err = r.Join(JoinRequest{PlayerID: "p2", Name: "Bob", Avatar: "avatar-02", Stats: stats()})
	assert.ErrorIs(t, err, ErrRoomLocked)
}

func TestJoin_OrganizerMayJoinLockedRoom(t *testing.T) {
	f := newFixture(t)
	r, err := f.mgr.Create(context.Background(), "org", "square")
	require.NoError(t, err)
	require.NoError(t, r.Lock("org"))
	join(t, r, "org", "Ann", "avatar-01")
}

func TestJoin_FullRoomLocksItself(t *testing.T) {
	f := newFixture(t)
	r, err := f.mgr.Create(context.Background(), "org", "square")
	require.NoError(t, err)
	join(t, r, "org", "Ann", "avatar-01")
	join(t, r, "p2", "Bob", "avatar-02")
	join(t, r, "p3", "Cid", "avatar-03")
	assert.Empty(t, f.members.of("org", event.RoomLocked))
	join(t, r, "p4", "Dee", "avatar-04")

	locked := f.members.of("org", event.RoomLocked)
	require.Len(t, locked, 1)
	assert.True(t, locked[0].Payload.(event.RoomLockedPayload).Locked)

	err = r.Join(JoinRequest{PlayerID: "p5", Name: "Eve", Avatar: "avatar-05", Stats: stats()})
	assert.ErrorIs(t, err, ErrRoomLocked)
	assert.ErrorIs(t, r.Unlock("org"), ErrRoomFull)
}

func TestLockUnlock_OrganizerOnly(t *testing.T) {
	f := newFixture(t)
	r, err := f.mgr.Create(context.Background(), "org", "square")
	require.NoError(t, err)
	join(t, r, "org", "Ann", "avatar-01")
	join(t, r, "p2", "Bob", "avatar-02")

	assert.ErrorIs(t, r.Lock("p2"), ErrNotOrganizer)
	assert.ErrorIs(t, r.Unlock("p2"), ErrNotOrganizer)

	require.NoError(t, r.Lock("org"))
	require.NoError(t, r.Unlock("org"))
	locked := f.members.of("p2", event.RoomLocked)
	require.Len(t, locked, 2)
	assert.False(t, locked[1].Payload.(event.RoomLockedPayload).Locked)
}

func TestAddVirtualPlayer(t *testing.T) {
	f := newFixture(t)
	r, err := f.mgr.Create(context.Background(), "org", "square")
	require.NoError(t, err)
	join(t, r, "org", "Ann", "avatar-01")

	assert.ErrorIs(t, r.AddVirtualPlayer("p2", player.ProfileAggressive), ErrNotOrganizer)
	assert.ErrorIs(t, r.AddVirtualPlayer("org", player.ProfileHuman), ErrUnknownProfile)
	assert.ErrorIs(t, r.AddVirtualPlayer("org", player.Profile("sneaky")), ErrUnknownProfile)

	require.NoError(t, r.AddVirtualPlayer("org", player.ProfileAggressive))
	require.NoError(t, r.AddVirtualPlayer("org", player.ProfileAggressive))
	require.NoError(t, r.AddVirtualPlayer("org", player.ProfileDefensive))

	info, err := r.Info()
	require.NoError(t, err)
	require.Len(t, info.Players, 4)
	assert.Equal(t, "Bot Aggressive", info.Players[1].Name)
	assert.Equal(t, "Bot Aggressive-2", info.Players[2].Name)
	assert.Equal(t, "Bot Defensive", info.Players[3].Name)
	assert.True(t, info.Locked, "the fourth player fills the room")

	avatars := map[string]bool{}
	for _, p := range info.Players {
		assert.NoError(t, p.Stats.Validate())
		assert.False(t, avatars[p.Avatar], "avatar %s reused", p.Avatar)
		avatars[p.Avatar] = true
	}
	assert.ErrorIs(t, r.AddVirtualPlayer("org", player.ProfileDefensive), ErrRoomFull)
}

func TestStart_Preconditions(t *testing.T) {
	f := newFixture(t)
	r, err := f.mgr.Create(context.Background(), "org", "duel")
	require.NoError(t, err)
	join(t, r, "org", "Ann", "avatar-01")

	assert.ErrorIs(t, r.Start("org"), ErrNotLocked)
	require.NoError(t, r.Lock("org"))
	assert.ErrorIs(t, r.Start("org"), ErrInvalidRoster)
	assert.ErrorIs(t, r.Handle(event.Intent{Type: event.IntentEndTurn, PlayerID: "org"}), ErrGameNotStarted)

	require.NoError(t, r.Unlock("org"))
	join(t, r, "p2", "Bob", "avatar-02")
	assert.ErrorIs(t, r.Start("p2"), ErrNotOrganizer)

	require.NoError(t, r.Start("org"))
	assert.ErrorIs(t, r.Start("org"), ErrGameStarted)
	assert.ErrorIs(t, r.Unlock("org"), ErrGameStarted)
	assert.ErrorIs(t, r.AddVirtualPlayer("org", player.ProfileAggressive), ErrGameStarted)

	require.Len(t, f.members.of("p2", event.GameStarted), 1)
	require.Len(t, f.members.of("p2", event.TurnChanged), 1)
	info, err := r.Info()
	require.NoError(t, err)
	assert.True(t, info.Started)
}

func TestStart_TurnClockRunsOnTheLoop(t *testing.T) {
	f := newFixture(t)
	r, err := f.mgr.Create(context.Background(), "org", "duel")
	require.NoError(t, err)
	join(t, r, "org", "Ann", "avatar-01")
	join(t, r, "p2", "Bob", "avatar-02")
	require.NoError(t, r.Start("org"))

	assert.Empty(t, f.members.of("org", event.TurnStarted), "grace delay has not elapsed")
	f.advance(t, r, match.DefaultSettings().GraceDelay)
	require.Len(t, f.members.of("org", event.TurnStarted), 1)

	ticks := len(f.members.of("org", event.TimerUpdate))
	require.Positive(t, ticks)
	f.advance(t, r, 2*time.Second)
	assert.Greater(t, len(f.members.of("org", event.TimerUpdate)), ticks)
}

func TestHandle_ToggleDebugIsOrganizerOnly(t *testing.T) {
	f := newFixture(t)
	r, err := f.mgr.Create(context.Background(), "org", "duel")
	require.NoError(t, err)
	join(t, r, "org", "Ann", "avatar-01")
	join(t, r, "p2", "Bob", "avatar-02")
	require.NoError(t, r.Start("org"))

	err = r.Handle(event.Intent{Type: event.IntentToggleDebug, PlayerID: "p2", Enabled: true})
	assert.ErrorIs(t, err, ErrNotOrganizer)
	require.NoError(t, r.Handle(event.Intent{Type: event.IntentToggleDebug, PlayerID: "org", Enabled: true}))
	assert.Len(t, f.members.of("p2", event.DebugStateChanged), 1)

	assert.Error(t, r.Handle(event.Intent{Type: event.IntentChatMessage, PlayerID: "org"}))
}

func TestLeave_OrganizerMidMatchTurnsDebugOff(t *testing.T) {
	f := newFixture(t)
	r, err := f.mgr.Create(context.Background(), "org", "square")
	require.NoError(t, err)
	join(t, r, "org", "Ann", "avatar-01")
	join(t, r, "p2", "Bob", "avatar-02")
	join(t, r, "p3", "Cid", "avatar-03")
	require.NoError(t, r.Lock("org"))
	require.NoError(t, r.Start("org"))
	require.NoError(t, r.Handle(event.Intent{Type: event.IntentToggleDebug, PlayerID: "org", Enabled: true}))

	require.NoError(t, r.Leave("org"))

	changes := f.members.of("p2", event.DebugStateChanged)
	require.Len(t, changes, 2)
	assert.False(t, changes[1].Payload.(event.DebugPayload).Enabled)
	info, err := r.Info()
	require.NoError(t, err)
	assert.Len(t, info.Players, 2, "the match goes on without the organizer")

	require.NoError(t, r.Leave("p2"))
	assert.Len(t, f.members.of("p3", event.DebugStateChanged), 2, "guests leaving leave debug alone")
}

func TestChat(t *testing.T) {
	f := newFixture(t)
	r, err := f.mgr.Create(context.Background(), "org", "square")
	require.NoError(t, err)
	join(t, r, "org", "Ann", "avatar-01")

	assert.ErrorIs(t, r.Chat("stranger", "hi"), ErrNotMember)
	assert.ErrorIs(t, r.Chat("org", "   "), ErrEmptyMessage)

	require.NoError(t, r.Chat("org", strings.Repeat("x", MaxChatLength+20)))
	msgs := f.members.of("org", event.ChatMessage)
	require.Len(t, msgs, 1)
	payload := msgs[0].Payload.(event.ChatPayload)
	assert.Equal(t, "Ann", payload.Author)
	assert.Len(t, payload.Text, MaxChatLength)

	for i := 0; i < ChatHistoryLimit+5; i++ {
		require.NoError(t, r.Chat("org", fmt.Sprintf("msg %d", i)))
	}
	history, err := r.ChatHistory()
	require.NoError(t, err)
	require.Len(t, history, ChatHistoryLimit)
	assert.Equal(t, "msg 5", history[0].Text)
	assert.Equal(t, fmt.Sprintf("msg %d", ChatHistoryLimit+4), history[len(history)-1].Text)
}

func TestLeave_OrganizerClosesLobby(t *testing.T) {
	f := newFixture(t)
	r, err := f.mgr.Create(context.Background(), "org", "square")
	require.NoError(t, err)
	join(t, r, "org", "Ann", "avatar-01")
	join(t, r, "p2", "Bob", "avatar-02")

	require.NoError(t, r.Leave("org"))
	<-r.Done()

	closed := f.members.of("p2", event.RoomClosed)
	require.Len(t, closed, 1)
	assert.Equal(t, ReasonOrganizerLeft, closed[0].Payload.(event.RoomClosedPayload).Reason)
	assert.True(t, f.members.wasDetached("p2"))
	assert.Equal(t, 0, f.mgr.Len())

	assert.ErrorIs(t, r.Join(JoinRequest{PlayerID: "p3", Name: "Cid", Avatar: "avatar-03", Stats: stats()}), ErrRoomClosed)
}

func TestLeave_GuestLeavesLobby(t *testing.T) {
	f := newFixture(t)
	r, err := f.mgr.Create(context.Background(), "org", "square")
	require.NoError(t, err)
	join(t, r, "org", "Ann", "avatar-01")
	join(t, r, "p2", "Bob", "avatar-02")

	require.NoError(t, r.Leave("p2"))
	assert.ErrorIs(t, r.Leave("p2"), ErrNotMember)

	removed := f.members.of("org", event.PlayerRemoved)
	require.Len(t, removed, 1)
	assert.Equal(t, "p2", removed[0].Payload.(event.PlayerPayload).PlayerID)
	assert.True(t, f.members.wasDetached("p2"))

	info, err := r.Info()
	require.NoError(t, err)
	assert.Len(t, info.Players, 1)
}

func TestLeave_LastHumanClosesMatch(t *testing.T) {
	f := newFixture(t)
	r, err := f.mgr.Create(context.Background(), "org", "duel")
	require.NoError(t, err)
	join(t, r, "org", "Ann", "avatar-01")
	require.NoError(t, r.AddVirtualPlayer("org", player.ProfileDefensive))
	require.NoError(t, r.Start("org"))

	require.NoError(t, r.Leave("org"))
	<-r.Done()
	assert.Equal(t, 0, f.mgr.Len())
	assert.True(t, f.members.wasDetached("org"))
}

func TestExpel(t *testing.T) {
	f := newFixture(t)
	r, err := f.mgr.Create(context.Background(), "org", "square")
	require.NoError(t, err)
	join(t, r, "org", "Ann", "avatar-01")
	join(t, r, "p2", "Bob", "avatar-02")

	assert.ErrorIs(t, r.Expel("p2", "org"), ErrNotOrganizer)
	assert.ErrorIs(t, r.Expel("org", "org"), ErrCannotExpelSelf)
	assert.ErrorIs(t, r.Expel("org", "ghost"), ErrNotMember)

	require.NoError(t, r.Expel("org", "p2"))
	closed := f.members.of("p2", event.RoomClosed)
	require.Len(t, closed, 1)
	assert.Equal(t, "expelled", closed[0].Payload.(event.RoomClosedPayload).Reason)
	assert.Len(t, f.members.of("org", event.PlayerRemoved), 1)
	assert.Empty(t, f.members.of("p2", event.PlayerRemoved), "expelled players stop receiving room events")
}

func TestManager_ShutdownClosesRooms(t *testing.T) {
	f := newFixture(t)
	r, err := f.mgr.Create(context.Background(), "org", "square")
	require.NoError(t, err)
	join(t, r, "org", "Ann", "avatar-01")

	f.mgr.Shutdown()
	<-r.Done()
	closed := f.members.of("org", event.RoomClosed)
	require.Len(t, closed, 1)
	assert.Equal(t, ReasonShutdown, closed[0].Payload.(event.RoomClosedPayload).Reason)
	assert.Equal(t, 0, f.mgr.Len())
}

func TestJoin_NamesStayUnique(t *testing.T) {
	f := newFixture(t)
	rapid.Check(t, func(rt *rapid.T) {
		r, err := f.mgr.Create(context.Background(), "org", "square")
		if err != nil {
			rt.Fatalf("create: %v", err)
		}
		defer r.Close(ReasonShutdown)

		names := rapid.SliceOfN(rapid.SampledFrom([]string{"Ann", "Bob", "Ann-2", ""}), 1, 4).Draw(rt, "names")
		for i, name := range names {
			req := JoinRequest{PlayerID: fmt.Sprintf("p%d", i), Name: name, Avatar: fmt.Sprintf("avatar-%02d", i+1), Stats: stats()}
			if i == 0 {
				req.PlayerID = "org"
			}
			if err := r.Join(req); err != nil {
				rt.Fatalf("join %d: %v", i, err)
			}
		}
		info, err := r.Info()
		if err != nil {
			rt.Fatalf("info: %v", err)
		}
		seen := map[string]bool{}
		for _, p := range info.Players {
			if seen[p.Name] {
				rt.Fatalf("duplicate name %q", p.Name)
			}
			seen[p.Name] = true
		}
	})
}
