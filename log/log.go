// Package log provides the structured logging used across the engine's
// packages. Every worker process configures exactly one Default logger
// at startup, tagged with its rank so log aggregation can attribute a
// line to one of the W cooperating processes.
package log

import (
	"context"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log level constants.
const (
	LevelDebug = "debug"
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
	LevelFatal = "fatal"
)

var zapLevel = zap.NewAtomicLevelAt(zapcore.InfoLevel)

// Default is the process-wide logger. Replace it (e.g. in tests) with
// any value implementing Logger.
var Default Logger = newZapLogger(1)

// ContextDefault is used by the *Context helpers below; it is a
// separate zap logger so caller-skip tuning doesn't have to match
// Default's call depth.
var ContextDefault Logger = newZapLogger(2)

// sugaredLogger adapts *zap.SugaredLogger to Logger: zap's own With
// returns a concrete *zap.SugaredLogger, not the Logger interface.
type sugaredLogger struct {
	*zap.SugaredLogger
}

func (s sugaredLogger) With(args ...any) Logger {
	return sugaredLogger{s.SugaredLogger.With(args...)}
}

func newZapLogger(callerSkip int) Logger {
	return sugaredLogger{zap.New(
		zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderConfig),
			zapcore.AddSync(os.Stdout),
			zapLevel,
		),
		zap.AddCaller(),
		zap.AddCallerSkip(callerSkip),
	).Sugar()}
}

// SetWorkerRank tags every subsequent Default/ContextDefault log line
// with the calling process's rank in the W-worker cluster.
func SetWorkerRank(rank int) {
	Default = Default.With("rank", rank)
	ContextDefault = ContextDefault.With("rank", rank)
}

// SetInstanceID tags every subsequent Default/ContextDefault log line
// with a process-run correlation id, distinguishing this worker
// process's logs from a prior crashed or restarted process at the
// same rank (cmd/grapeworker generates one fresh id per process start
// with uuid.NewString and calls this once during startup).
func SetInstanceID(id string) {
	Default = Default.With("instance_id", id)
	ContextDefault = ContextDefault.With("instance_id", id)
}

// SetLevel sets the log level. Valid levels: "debug", "info", "warn",
// "error", "fatal"; anything else resets to "info".
func SetLevel(level string) {
	switch level {
	case LevelDebug:
		zapLevel.SetLevel(zapcore.DebugLevel)
	case LevelInfo:
		zapLevel.SetLevel(zapcore.InfoLevel)
	case LevelWarn:
		zapLevel.SetLevel(zapcore.WarnLevel)
	case LevelError:
		zapLevel.SetLevel(zapcore.ErrorLevel)
	case LevelFatal:
		zapLevel.SetLevel(zapcore.FatalLevel)
	default:
		zapLevel.SetLevel(zapcore.InfoLevel)
	}
}

var encoderConfig = zapcore.EncoderConfig{
	TimeKey:        "ts",
	LevelKey:       "lvl",
	NameKey:        "name",
	CallerKey:      "caller",
	MessageKey:     "message",
	StacktraceKey:  "stacktrace",
	LineEnding:     zapcore.DefaultLineEnding,
	EncodeLevel:    zapcore.CapitalColorLevelEncoder,
	EncodeTime:     zapcore.RFC3339TimeEncoder,
	EncodeDuration: zapcore.SecondsDurationEncoder,
	EncodeCaller:   zapcore.ShortCallerEncoder,
}

// Logger is the logging interface used throughout the engine.
type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
	Fatal(args ...any)
	Fatalf(format string, args ...any)
	// With returns a Logger that always includes the given key-value
	// pairs (matching zap.SugaredLogger.With's argument convention).
	With(args ...any) Logger
}

// Debug logs to DEBUG log.
func Debug(args ...any) { Default.Debug(args...) }

// DebugContext logs to DEBUG log using ContextDefault; by default the
// context value itself is not inspected.
var DebugContext = func(_ context.Context, args ...any) { ContextDefault.Debug(args...) }

// Debugf logs to DEBUG log with formatting.
func Debugf(format string, args ...any) { Default.Debugf(format, args...) }

// Info logs to INFO log.
func Info(args ...any) { Default.Info(args...) }

// Infof logs to INFO log with formatting.
func Infof(format string, args ...any) { Default.Infof(format, args...) }

// Warn logs to WARN log.
func Warn(args ...any) { Default.Warn(args...) }

// Warnf logs to WARN log with formatting.
func Warnf(format string, args ...any) { Default.Warnf(format, args...) }

// Error logs to ERROR log.
func Error(args ...any) { Default.Error(args...) }

// Errorf logs to ERROR log with formatting.
func Errorf(format string, args ...any) { Default.Errorf(format, args...) }

// Fatal logs to FATAL log then exits.
func Fatal(args ...any) { Default.Fatal(args...) }

// Fatalf logs to FATAL log with formatting then exits.
func Fatalf(format string, args ...any) { Default.Fatalf(format, args...) }
