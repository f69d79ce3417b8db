package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/gridbrawl/internal/config"
)

func TestNewLogger_JSON(t *testing.T) {
	cfg := config.LoggingConfig{Level: "info", Format: "json"}
	logger, err := NewLogger(cfg, "gridbrawl")
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewLogger_Console(t *testing.T) {
	cfg := config.LoggingConfig{Level: "debug", Format: "console"}
	logger, err := NewLogger(cfg, "")
	require.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	cfg := config.LoggingConfig{Level: "trace", Format: "json"}
	_, err := NewLogger(cfg, "gridbrawl")
	assert.Error(t, err)
}

func TestNewLogger_InvalidFormat(t *testing.T) {
	cfg := config.LoggingConfig{Level: "info", Format: "xml"}
	_, err := NewLogger(cfg, "gridbrawl")
	assert.Error(t, err)
}

func TestNewLogger_LevelIsApplied(t *testing.T) {
	logger, err := NewLogger(config.LoggingConfig{Level: "warn", Format: "json"}, "gridbrawl")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zap.InfoLevel))
	assert.True(t, logger.Core().Enabled(zap.WarnLevel))
}

func TestRoomLogger_AddsRoomField(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	RoomLogger(zap.New(core), "4821").Info("opened")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "4821", logs.All()[0].ContextMap()["room"])
}

func TestClientLogger_AddsClientFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	ClientLogger(zap.New(core), "u-1", "websocket").Info("connected")

	require.Equal(t, 1, logs.Len())
	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, "u-1", ctx["uid"])
	assert.Equal(t, "websocket", ctx["transport"])
}

func TestNewLogger_JSONEntryShape(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(config.LoggingConfig{Level: "info", Format: "json"}, "gridbrawl-1", zapcore.AddSync(&buf))
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("room opened", zap.String("room", "4821"))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "exactly one entry is written")
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "room opened", entry["msg"])
	assert.Equal(t, "gridbrawl-1", entry["instance"])
	assert.Equal(t, "4821", entry["room"])
	assert.Contains(t, entry, "caller")
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}T`, entry["ts"])
}

func TestNewLogger_NoInstanceField(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(config.LoggingConfig{Level: "debug", Format: "json"}, "", zapcore.AddSync(&buf))
	require.NoError(t, err)
	logger.Debug("tick")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.NotContains(t, entry, "instance")
}
