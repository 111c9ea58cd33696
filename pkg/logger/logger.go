// Package logger is a small key/value logging facade over zap.
//
//	log := logger.Default().With("component", "engine")
//	log.Warn("autocompaction failed", "error", err)
package logger

import (
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger logs messages with alternating key/value pairs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	// With returns a logger that adds keysAndValues to every entry.
	With(keysAndValues ...any) Logger
	Sync() error
}

type zapLogger struct {
	s *zap.SugaredLogger
}

// New wraps l.
func New(l *zap.Logger) Logger {
	return &zapLogger{s: l.Sugar()}
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return New(zap.NewNop())
}

// NewProduction returns a JSON logger writing info and above to stderr.
func NewProduction() (Logger, error) {
	l, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return New(l), nil
}

// NewDevelopment returns a console logger writing debug and above to stderr.
func NewDevelopment() (Logger, error) {
	l, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return New(l), nil
}

// NewWithLevel returns a production logger with the given minimum level, one
// of "debug", "info", "warn" or "error".
func NewWithLevel(level string) (Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return New(l), nil
}

// MustProduction is NewProduction that panics on error.
func MustProduction() Logger {
	l, err := NewProduction()
	if err != nil {
		panic(err)
	}
	return l
}

func (z *zapLogger) Debug(msg string, keysAndValues ...any) { z.s.Debugw(msg, keysAndValues...) }
func (z *zapLogger) Info(msg string, keysAndValues ...any)  { z.s.Infow(msg, keysAndValues...) }
func (z *zapLogger) Warn(msg string, keysAndValues ...any)  { z.s.Warnw(msg, keysAndValues...) }
func (z *zapLogger) Error(msg string, keysAndValues ...any) { z.s.Errorw(msg, keysAndValues...) }

func (z *zapLogger) With(keysAndValues ...any) Logger {
	return &zapLogger{s: z.s.With(keysAndValues...)}
}

func (z *zapLogger) Sync() error {
	return z.s.Sync()
}

var defaultLogger atomic.Value

func init() {
	defaultLogger.Store(holder{NewNop()})
}

type holder struct{ Logger }

// Default returns the global logger. It discards everything until
// [SetDefault] is called.
func Default() Logger {
	return defaultLogger.Load().(holder).Logger
}

// SetDefault replaces the global logger. A nil l restores the no-op logger.
func SetDefault(l Logger) {
	if l == nil {
		l = NewNop()
	}
	defaultLogger.Store(holder{l})
}

// SyncDefault flushes the global logger.
func SyncDefault() {
	_ = Default().Sync()
}
