// Package event defines the typed inbound intents and outbound events that
// flow between clients and a room.
package event

import (
	"sync"
	"time"

	"github.com/cory-johannsen/gridbrawl/internal/game/grid"
	"github.com/cory-johannsen/gridbrawl/internal/game/player"
)

// Type names an outbound event.
type Type string

const (
	Connected         Type = "connected"
	RoomCreated       Type = "roomCreated"
	RoomJoined        Type = "roomJoined"
	RoomLocked        Type = "roomLocked"
	RoomClosed        Type = "roomClosed"
	PlayersUpdated    Type = "playersUpdated"
	PlayerRemoved     Type = "playerRemoved"
	ChatMessage       Type = "chatMessage"
	Error             Type = "error"
	GameStarted       Type = "gameStarted"
	TurnChanged       Type = "turnChanged"
	TurnStarted       Type = "turnStarted"
	ReachablePaths    Type = "reachablePaths"
	PlayerMoved       Type = "playerMoved"
	ItemCollected     Type = "itemCollected"
	InventoryFull     Type = "inventoryFull"
	ItemDropped       Type = "itemDropped"
	DoorStateChanged  Type = "doorStateChanged"
	DebugStateChanged Type = "debugStateChanged"
	FightInit         Type = "fightInit"
	FightAttack       Type = "fightAttack"
	FightFlee         Type = "fightFlee"
	FighterChanged    Type = "fighterChanged"
	FightEnd          Type = "fightEnd"
	Winner            Type = "winner"
	Loser             Type = "loser"
	TimerUpdate       Type = "timerUpdate"
	GameOver          Type = "gameOver"
)

// Event is one outbound notification. To is empty for a room-wide broadcast.
type Event struct {
	Type    Type   `json:"type"`
	Room    string `json:"room,omitempty"`
	To      string `json:"-"`
	Payload any    `json:"payload,omitempty"`
}

// Broadcast returns a room-wide event.
func Broadcast(t Type, payload any) Event {
	return Event{Type: t, Payload: payload}
}

// Direct returns an event addressed to one player.
func Direct(to string, t Type, payload any) Event {
	return Event{Type: t, To: to, Payload: payload}
}

// Sink receives events produced by the match engine and the room.
type Sink interface {
	Emit(evt Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Emit(evt Event) { f(evt) }

// Recorder is a Sink that keeps every event, for tests and replays.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Emit(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

// Events returns a copy of everything recorded.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events of type t in order.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many events of type t were recorded.
func (r *Recorder) Count(t Type) int {
	return len(r.OfType(t))
}

// Last returns the latest event of type t.
func (r *Recorder) Last(t Type) (Event, bool) {
	evts := r.OfType(t)
	if len(evts) == 0 {
		return Event{}, false
	}
	return evts[len(evts)-1], true
}

// Reset discards recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

// Payloads.

type RoomInfo struct {
	Code      string            `json:"code"`
	Board     string            `json:"board"`
	Organizer string            `json:"organizer"`
	Locked    bool              `json:"locked"`
	Started   bool              `json:"started"`
	MaxPlayer int               `json:"maxPlayers"`
	Players   []player.Snapshot `json:"players"`
}

type ConnectedPayload struct {
	PlayerID string `json:"playerId"`
}

type RoomLockedPayload struct {
	Locked bool `json:"locked"`
}

type RoomClosedPayload struct {
	Reason string `json:"reason"`
}

type PlayersPayload struct {
	Players []player.Snapshot `json:"players"`
}

type PlayerPayload struct {
	PlayerID string `json:"playerId"`
}

type ChatPayload struct {
	Author string    `json:"author"`
	Text   string    `json:"text"`
	At     time.Time `json:"at"`
}

type ErrorPayload struct {
	Intent  string `json:"intent,omitempty"`
	Message string `json:"message"`
}

type GameStartedPayload struct {
	Board   string            `json:"board"`
	IsCTF   bool              `json:"isCTF"`
	Grid    [][]grid.Cell     `json:"grid"`
	Players []player.Snapshot `json:"players"`
}

type TurnPayload struct {
	PlayerID    string `json:"playerId"`
	MovementPts int    `json:"movementPts"`
	Actions     int    `json:"actions"`
}

type ReachablePayload struct {
	PlayerID string      `json:"playerId"`
	Paths    []grid.Path `json:"paths"`
}

type MovedPayload struct {
	PlayerID string        `json:"playerId"`
	From     grid.Position `json:"from"`
	To       grid.Position `json:"to"`
}

type ItemPayload struct {
	PlayerID string        `json:"playerId"`
	Item     grid.Item     `json:"item"`
	Position grid.Position `json:"position"`
	Items    []grid.Item   `json:"items,omitempty"`
}

type DoorPayload struct {
	Position grid.Position `json:"position"`
	Terrain  grid.Terrain  `json:"terrain"`
}

type DebugPayload struct {
	Enabled bool `json:"enabled"`
}

type FightInitPayload struct {
	FirstID  string `json:"firstId"`
	SecondID string `json:"secondId"`
}

type FightAttackPayload struct {
	AttackerID   string `json:"attackerId"`
	DefenderID   string `json:"defenderId"`
	AttackRoll   int    `json:"attackRoll"`
	DefenseRoll  int    `json:"defenseRoll"`
	AttackTotal  int    `json:"attackTotal"`
	DefenseTotal int    `json:"defenseTotal"`
	Damage       int    `json:"damage"`
	DefenderLife int    `json:"defenderLife"`
}

type FightFleePayload struct {
	PlayerID     string `json:"playerId"`
	Escaped      bool   `json:"escaped"`
	FleeAttempts int    `json:"fleeAttempts"`
}

type FightEndPayload struct {
	WinnerID string `json:"winnerId,omitempty"`
	LoserID  string `json:"loserId,omitempty"`
	Escaped  bool   `json:"escaped"`
}

type TimerPayload struct {
	Mode      string `json:"mode"`
	Remaining int    `json:"remaining"`
	Expired   bool   `json:"expired,omitempty"`
}

type GameOverPayload struct {
	WinnerIDs []string    `json:"winnerIds"`
	Team      player.Team `json:"team,omitempty"`
	Reason    string      `json:"reason"`
}
