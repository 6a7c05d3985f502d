// Package logger holds the process-wide zap logger and the context fields
// stamped on transfer log lines.
//
// A transfer stores its identifier, the warehouse kind and the running stage
// in its context with ContextWith. Code that logs on behalf of a transfer
// derives its logger with WithContext so every line carries those fields.
package logger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	global *zap.Logger
)

type contextKey string

const (
	// TransferIDKey carries the transfer identifier
	TransferIDKey contextKey = "transfer_id"
	// WarehouseKey carries the warehouse kind
	WarehouseKey contextKey = "warehouse"
	// StageKey carries the orchestrator stage
	StageKey contextKey = "stage"
)

// contextKeys lists the keys WithContext copies, in field order.
var contextKeys = []contextKey{TransferIDKey, WarehouseKey, StageKey}

// Config selects the global logger's level and output.
type Config struct {
	Level       string
	Development bool
	Encoding    string // json or console
	OutputPaths []string
}

// Init builds a logger from cfg and installs it as the global logger.
func Init(cfg Config) error {
	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	global = l
	mu.Unlock()
	return nil
}

// newLogger starts from zap's production (or development) preset. Logs go to
// stderr unless OutputPaths says otherwise, keeping stdout for results.
func newLogger(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Sampling = nil
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.MessageKey = "message"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	if cfg.Encoding != "" {
		zc.Encoding = cfg.Encoding
	}
	if len(cfg.OutputPaths) > 0 {
		zc.OutputPaths = cfg.OutputPaths
	}

	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l, nil
}

// Get returns the global logger, installing an info-level JSON logger on
// first use when Init was never called.
func Get() *zap.Logger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		var err error
		if global, err = newLogger(Config{}); err != nil {
			global = zap.NewNop()
		}
	}
	return global
}

// ContextWith returns a copy of ctx carrying value under key.
func ContextWith(ctx context.Context, key contextKey, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

// Fields returns the transfer fields stored in ctx.
func Fields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			fields = append(fields, zap.String(string(key), v))
		}
	}
	return fields
}

// WithContext returns base (the global logger when nil) with the transfer
// fields stored in ctx.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	base = OrDefault(base)
	if fields := Fields(ctx); len(fields) > 0 {
		return base.With(fields...)
	}
	return base
}

// OrDefault returns l, or the global logger when l is nil.
func OrDefault(l *zap.Logger) *zap.Logger {
	if l == nil {
		return Get()
	}
	return l
}

// With creates a child of the global logger.
func With(fields ...zap.Field) *zap.Logger {
	return Get().With(fields...)
}

// Sync flushes the global logger.
func Sync() error {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l == nil {
		return nil
	}
	return l.Sync()
}
