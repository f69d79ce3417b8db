// Package observability provides structured logging for the match server.
package observability

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/gridbrawl/internal/config"
)

// encoders maps a configured log format to its zapcore encoder.
var encoders = map[string]func(zapcore.EncoderConfig) zapcore.Encoder{
	"json":    zapcore.NewJSONEncoder,
	"console": zapcore.NewConsoleEncoder,
}

// NewLogger creates a structured logger writing to stderr. Every entry
// carries the instance name when one is given.
//
// Precondition: cfg.Level must be one of "debug", "info", "warn", "error".
// Precondition: cfg.Format must be "json" or "console".
// Postcondition: Returns a configured zap.Logger or a non-nil error.
func NewLogger(cfg config.LoggingConfig, instance string) (*zap.Logger, error) {
	return newLogger(cfg, instance, zapcore.Lock(os.Stderr))
}

func newLogger(cfg config.LoggingConfig, instance string, out zapcore.WriteSyncer) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", cfg.Level, err)
	}
	newEncoder, ok := encoders[cfg.Format]
	if !ok {
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	core := zapcore.NewCore(newEncoder(encoderConfig(cfg.Format)), out, zap.NewAtomicLevelAt(level))
	opts := []zap.Option{zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)}
	if instance != "" {
		opts = append(opts, zap.Fields(zap.String("instance", instance)))
	}
	return zap.New(core, opts...), nil
}

func encoderConfig(format string) zapcore.EncoderConfig {
	ec := zap.NewProductionEncoderConfig()
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "console" {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		ec.EncodeDuration = zapcore.StringDurationEncoder
	}
	return ec
}

// RoomLogger scopes logger to one room.
func RoomLogger(logger *zap.Logger, code string) *zap.Logger {
	return logger.With(zap.String("room", code))
}

// ClientLogger scopes logger to one connected client and its transport.
func ClientLogger(logger *zap.Logger, uid, transport string) *zap.Logger {
	return logger.With(zap.String("uid", uid), zap.String("transport", transport))
}
