package event

import (
	"encoding/json"
	"fmt"

	"github.com/cory-johannsen/gridbrawl/internal/game/grid"
	"github.com/cory-johannsen/gridbrawl/internal/game/player"
)

// IntentType names an inbound request.
type IntentType string

const (
	IntentCreateRoom       IntentType = "createRoom"
	IntentJoinRoom         IntentType = "joinRoom"
	IntentLockRoom         IntentType = "lockRoom"
	IntentUnlockRoom       IntentType = "unlockRoom"
	IntentAddVirtualPlayer IntentType = "addVirtualPlayer"
	IntentExpelPlayer      IntentType = "expelPlayer"
	IntentLeaveRoom        IntentType = "leaveRoom"
	IntentStartGame        IntentType = "startGame"
	IntentMove             IntentType = "move"
	IntentDebugMove        IntentType = "debugMove"
	IntentEndTurn          IntentType = "endTurn"
	IntentToggleDoor       IntentType = "toggleDoor"
	IntentToggleDebug      IntentType = "toggleDebug"
	IntentInitFight        IntentType = "initFight"
	IntentAttack           IntentType = "attack"
	IntentFlee             IntentType = "flee"
	IntentInventoryChoice  IntentType = "inventoryChoice"
	IntentChatMessage      IntentType = "chatMessage"
	// IntentDisconnect is synthesized by transports when a connection drops.
	IntentDisconnect IntentType = "disconnect"
)

var knownIntents = map[IntentType]struct{}{
	IntentCreateRoom: {}, IntentJoinRoom: {}, IntentLockRoom: {}, IntentUnlockRoom: {},
	IntentAddVirtualPlayer: {}, IntentExpelPlayer: {}, IntentLeaveRoom: {}, IntentStartGame: {},
	IntentMove: {}, IntentDebugMove: {}, IntentEndTurn: {}, IntentToggleDoor: {},
	IntentToggleDebug: {}, IntentInitFight: {}, IntentAttack: {}, IntentFlee: {},
	IntentInventoryChoice: {}, IntentChatMessage: {}, IntentDisconnect: {},
}

// Intent is one inbound request. PlayerID is filled in by the transport
// from the connection, never from the payload.
type Intent struct {
	Type     IntentType `json:"type"`
	PlayerID string     `json:"-"`

	Code  string `json:"code,omitempty"`
	Board string `json:"board,omitempty"`

	Name    string         `json:"name,omitempty"`
	Avatar  string         `json:"avatar,omitempty"`
	Stats   *player.Stats  `json:"stats,omitempty"`
	Profile player.Profile `json:"profile,omitempty"`

	Position *grid.Position `json:"position,omitempty"`
	TargetID string         `json:"targetId,omitempty"`
	Item     grid.Item      `json:"item,omitempty"`
	Enabled  bool           `json:"enabled,omitempty"`
	Message  string         `json:"message,omitempty"`
}

// DecodeIntent parses a JSON intent and rejects unknown types.
func DecodeIntent(data []byte) (Intent, error) {
	var in Intent
	if err := json.Unmarshal(data, &in); err != nil {
		return Intent{}, fmt.Errorf("event: decoding intent: %w", err)
	}
	if _, ok := knownIntents[in.Type]; !ok {
		return Intent{}, fmt.Errorf("event: unknown intent type %q", in.Type)
	}
	return in, nil
}

// Encode renders evt as JSON.
func Encode(evt Event) ([]byte, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("event: encoding %s: %w", evt.Type, err)
	}
	return data, nil
}
