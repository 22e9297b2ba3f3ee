// Package logger provides structured logging for educrawler.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
)

// LevelTrace sits below debug and is used for per-poll messages.
const LevelTrace = slog.LevelDebug - 4

// Verbosity levels accepted by LevelForVerbosity.
const (
	VerbosityMinimal = 0 // warnings and errors
	VerbosityNormal  = 1 // + info
	VerbosityDebug   = 2 // + debug
	VerbosityAll     = 3 // + trace
)

var (
	defaultLogger *slog.Logger
	mu            sync.RWMutex
)

func init() {
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// Options configures the logger.
type Options struct {
	Level  slog.Level   // Minimum level (default: info)
	Debug  bool         // Lower the level to at least debug
	Quiet  bool         // Only show errors
	JSON   bool         // Output as JSON
	Output io.Writer    // Output destination (default: stderr)
	Logger *slog.Logger // Custom logger (overrides all other options)
}

// Init initializes the logger with the specified options.
func Init(opts Options) {
	mu.Lock()
	defer mu.Unlock()

	if opts.Logger != nil {
		defaultLogger = opts.Logger
		return
	}

	output := opts.Output
	if output == nil {
		output = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{
		Level:       LevelFor(opts),
		ReplaceAttr: replaceLevelName,
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(output, handlerOpts)
	}

	defaultLogger = slog.New(handler)
}

// LevelFor maps options to the minimum slog level that is emitted.
func LevelFor(opts Options) slog.Level {
	if opts.Quiet {
		return slog.LevelError
	}
	if opts.Debug && opts.Level > slog.LevelDebug {
		return slog.LevelDebug
	}
	return opts.Level
}

// LevelForVerbosity maps a 0..3 verbosity to a slog level.
func LevelForVerbosity(verbosity int) slog.Level {
	switch {
	case verbosity <= VerbosityMinimal:
		return slog.LevelWarn
	case verbosity == VerbosityNormal:
		return slog.LevelInfo
	case verbosity == VerbosityDebug:
		return slog.LevelDebug
	default:
		return LevelTrace
	}
}

// replaceLevelName prints LevelTrace as TRACE instead of DEBUG-4.
func replaceLevelName(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey {
		if level, ok := a.Value.Any().(slog.Level); ok && level == LevelTrace {
			a.Value = slog.StringValue("TRACE")
		}
	}
	return a
}

// SetLogger sets a custom slog.Logger.
func SetLogger(l *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = l
}

func current() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return defaultLogger
}

// Trace logs a per-poll message. Only emitted at VerbosityAll.
func Trace(msg string, args ...any) {
	current().Log(context.Background(), LevelTrace, msg, args...)
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	current().Debug(msg, args...)
}

// Info logs an info message.
func Info(msg string, args ...any) {
	current().Info(msg, args...)
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	current().Warn(msg, args...)
}

// Error logs an error message.
func Error(msg string, args ...any) {
	current().Error(msg, args...)
}

// With returns a logger with the given attributes.
func With(args ...any) *slog.Logger {
	return current().With(args...)
}

// DebugContext logs a debug message with context.
func DebugContext(ctx context.Context, msg string, args ...any) {
	current().DebugContext(ctx, msg, args...)
}

// InfoContext logs an info message with context.
func InfoContext(ctx context.Context, msg string, args ...any) {
	current().InfoContext(ctx, msg, args...)
}

// ErrorContext logs an error message with context.
func ErrorContext(ctx context.Context, msg string, args ...any) {
	current().ErrorContext(ctx, msg, args...)
}
