package event_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/gridbrawl/internal/game/event"
	"github.com/cory-johannsen/gridbrawl/internal/game/grid"
)

func TestDecodeIntent(t *testing.T) {
	in, err := event.DecodeIntent([]byte(`{"type":"move","position":{"x":2,"y":3}}`))
	require.NoError(t, err)
	assert.Equal(t, event.IntentMove, in.Type)
	require.NotNil(t, in.Position)
	assert.Equal(t, grid.Position{X: 2, Y: 3}, *in.Position)
}

func TestDecodeIntent_JoinWithStats(t *testing.T) {
	in, err := event.DecodeIntent([]byte(`{"type":"joinRoom","code":"1234","name":"Ayla","avatar":"knight",
		"stats":{"life":6,"speed":4,"attack":4,"defense":4,"attackDice":"d6","defenseDice":"d4"}}`))
	require.NoError(t, err)
	require.NotNil(t, in.Stats)
	assert.Equal(t, 6, in.Stats.AttackDice.Sides)
	assert.NoError(t, in.Stats.Validate())
}

func TestDecodeIntent_Rejects(t *testing.T) {
	_, err := event.DecodeIntent([]byte(`{"type":"teleport"}`))
	assert.Error(t, err)
	_, err = event.DecodeIntent([]byte(`{`))
	assert.Error(t, err)
}

func TestEncode_OmitsRecipient(t *testing.T) {
	data, err := event.Encode(event.Direct("p1", event.TurnChanged, event.TurnPayload{PlayerID: "p1", MovementPts: 4, Actions: 1}))
	require.NoError(t, err)
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "turnChanged", raw["type"])
	_, hasTo := raw["To"]
	assert.False(t, hasTo)
}

func TestRecorder(t *testing.T) {
	var rec event.Recorder
	rec.Emit(event.Broadcast(event.TurnChanged, nil))
	rec.Emit(event.Broadcast(event.PlayerMoved, event.MovedPayload{PlayerID: "a"}))
	rec.Emit(event.Broadcast(event.PlayerMoved, event.MovedPayload{PlayerID: "b"}))

	assert.Equal(t, 2, rec.Count(event.PlayerMoved))
	last, ok := rec.Last(event.PlayerMoved)
	require.True(t, ok)
	assert.Equal(t, "b", last.Payload.(event.MovedPayload).PlayerID)
	rec.Reset()
	assert.Empty(t, rec.Events())
}
