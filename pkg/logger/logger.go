package logger

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu           sync.RWMutex
	globalLogger *zap.Logger
)

// parseLevel maps a config level name to a zap level, defaulting to info
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Init initializes the global logger.
// Production uses JSON with ISO8601 timestamps; development uses a coloured console encoder.
func Init(level string, environment string) error {
	zapLevel := parseLevel(level)

	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if environment == "development" {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := config.Build(
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	Set(logger)
	return nil
}

// Set replaces the global logger. Tests use it with zaptest/observer loggers.
func Set(l *zap.Logger) {
	mu.Lock()
	globalLogger = l
	mu.Unlock()
}

// Get returns the global logger, or a no-op logger before Init
func Get() *zap.Logger {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	if l == nil {
		return zap.NewNop()
	}
	return l
}

// Named returns a child logger for one component
func Named(component string) *zap.Logger {
	return Get().WithOptions(zap.AddCallerSkip(-1)).Named(component)
}

// Sync flushes any buffered log entries
func Sync() error {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	if l != nil {
		return l.Sync()
	}
	return nil
}

func Debug(msg string, fields ...zap.Field) { Get().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { Get().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { Get().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Get().Error(msg, fields...) }

// Fatal logs and exits the process
func Fatal(msg string, fields ...zap.Field) { Get().Fatal(msg, fields...) }

// Field helpers

func String(key, value string) zap.Field            { return zap.String(key, value) }
func Int(key string, value int) zap.Field           { return zap.Int(key, value) }
func Int64(key string, value int64) zap.Field       { return zap.Int64(key, value) }
func Float64(key string, value float64) zap.Field   { return zap.Float64(key, value) }
func Bool(key string, value bool) zap.Field         { return zap.Bool(key, value) }
func Duration(key string, d time.Duration) zap.Field { return zap.Duration(key, d) }
func Time(key string, value time.Time) zap.Field    { return zap.Time(key, value) }
func ErrorField(err error) zap.Field                { return zap.Error(err) }
func Any(key string, value interface{}) zap.Field   { return zap.Any(key, value) }

// Symbol tags an entry with the instrument it concerns
func Symbol(symbol string) zap.Field { return zap.String("symbol", symbol) }

// Optional logs a possibly undefined oscillator value; undefined is logged as null
func Optional(key string, value float64, ok bool) zap.Field {
	if !ok {
		return zap.Reflect(key, nil)
	}
	return zap.Float64(key, value)
}

// JSON returns a zap.Field that marshals the value as JSON
func JSON(key string, value interface{}) zap.Field {
	data, err := json.Marshal(value)
	if err != nil {
		return zap.String(key, fmt.Sprintf("<json-marshal-error: %v>", err))
	}
	return zap.String(key, string(data))
}
