// Package logging wraps go.uber.org/zap with the process-wide logger
// and a small set of context-scoped fields (room, user, correlation
// id) that every call site can thread through without re-declaring them.
package logging

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	logger *zap.Logger
	once   sync.Once
)

type contextKey string

const (
	CorrelationIDKey contextKey = "correlation_id"
	RoomCodeKey      contextKey = "room_code"
	UserIDKey        contextKey = "user_id"
)

// Initialize sets up the global logger. development selects a
// human-readable, color-coded encoder; production selects a
// JSON encoder with an ISO8601 timestamp.
func Initialize(development bool) error {
	var err error
	once.Do(func() {
		var cfg zap.Config
		if development {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		} else {
			cfg = zap.NewProductionConfig()
			cfg.EncoderConfig.TimeKey = "timestamp"
			cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		}
		cfg.OutputPaths = []string{"stdout"}
		cfg.ErrorOutputPaths = []string{"stderr"}

		logger, err = cfg.Build(zap.AddCallerSkip(1))
	})
	return err
}

// L returns the global logger instance, falling back to a development
// logger if Initialize was never called (e.g. in tests).
func L() *zap.Logger {
	if logger == nil {
		l, _ := zap.NewDevelopment()
		return l
	}
	return logger
}

// WithRoomCode returns a context carrying code for later log calls.
func WithRoomCode(ctx context.Context, code string) context.Context {
	return context.WithValue(ctx, RoomCodeKey, code)
}

// WithUserID returns a context carrying userID for later log calls.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func Info(ctx context.Context, msg string, fields ...zap.Field) {
	L().Info(msg, contextFields(ctx, fields)...)
}

func Warn(ctx context.Context, msg string, fields ...zap.Field) {
	L().Warn(msg, contextFields(ctx, fields)...)
}

func Error(ctx context.Context, msg string, fields ...zap.Field) {
	L().Error(msg, contextFields(ctx, fields)...)
}

func contextFields(ctx context.Context, fields []zap.Field) []zap.Field {
	if ctx == nil {
		return fields
	}
	if v, ok := ctx.Value(CorrelationIDKey).(string); ok {
		fields = append(fields, zap.String("correlation_id", v))
	}
	if v, ok := ctx.Value(RoomCodeKey).(string); ok {
		fields = append(fields, zap.String("room_code", v))
	}
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		fields = append(fields, zap.String("user_id", v))
	}
	return fields
}
