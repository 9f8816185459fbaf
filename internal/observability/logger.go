// Package observability provides the logging, metrics and tracing hooks shared
// by the backend service and the dashboard synchronization layer.
package observability

import (
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured logging surface used across the module. Arguments
// after msg are alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NoopLogger discards all log entries.
type NoopLogger struct{}

func (NoopLogger) Debug(string, ...any) {}
func (NoopLogger) Info(string, ...any)  {}
func (NoopLogger) Warn(string, ...any)  {}
func (NoopLogger) Error(string, ...any) {}

// ZapLogger adapts a zap logger to Logger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger wraps l. A nil logger yields a no-op zap logger.
func NewZapLogger(l *zap.Logger) *ZapLogger {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapLogger{sugar: l.Sugar()}
}

// NewProductionLogger builds a JSON zap logger writing to w at info level, or
// debug level when verbose is set.
func NewProductionLogger(w io.Writer, verbose bool) *zap.Logger {
	level := zapcore.InfoLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	enc := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), level))
}

// Named returns a child logger scoped to name.
func (l *ZapLogger) Named(name string) *ZapLogger {
	return &ZapLogger{sugar: l.sugar.Named(name)}
}

func (l *ZapLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *ZapLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *ZapLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *ZapLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

// Sync flushes buffered entries.
func (l *ZapLogger) Sync() error { return l.sugar.Sync() }

// OrNoop returns l, or a NoopLogger when l is nil.
func OrNoop(l Logger) Logger {
	if l == nil {
		return NoopLogger{}
	}
	return l
}
