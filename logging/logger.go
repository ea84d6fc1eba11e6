// Package logging defines the minimal Logger interface the framework logs
// through, plus slog-backed implementations. Callers can plug any structured
// logger; the built-in LoomLogger renders text or JSON via log/slog.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// LogLevel selects the minimum severity a logger emits.
type LogLevel int

const (
	// LogLevelDebug emits everything.
	LogLevelDebug LogLevel = iota
	// LogLevelInfo is the default level.
	LogLevelInfo
	// LogLevelWarn emits warnings and errors only.
	LogLevelWarn
	// LogLevelError emits errors only.
	LogLevelError
)

// String returns the level name.
func (l LogLevel) String() string {
	switch l {
	case LogLevelDebug:
		return "DEBUG"
	case LogLevelInfo:
		return "INFO"
	case LogLevelWarn:
		return "WARN"
	case LogLevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevel) slogLevel() slog.Level {
	switch l {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Logger is the logging interface the framework depends on. Arguments are
// alternating key/value pairs, slog style.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// NoOpLogger discards everything. Used as the default when no logger is
// configured and in tests.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, ...any) {}
func (NoOpLogger) Info(string, ...any)  {}
func (NoOpLogger) Warn(string, ...any)  {}
func (NoOpLogger) Error(string, ...any) {}

// LoomLogger is a Logger backed by log/slog. Contextual attributes added via
// the With* methods ride on every entry; the With* methods return copies, so
// a shared base logger stays untouched.
type LoomLogger struct {
	logger *slog.Logger
}

// LoggerConfig configures LoomLogger construction.
type LoggerConfig struct {
	Level     LogLevel
	Format    string // "json" (default) or "text"
	Output    io.Writer
	AddSource bool
}

// DefaultLoggerConfig returns JSON output at info level on stdout.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{Level: LogLevelInfo, Format: "json", Output: os.Stdout}
}

// NewLogger builds a LoomLogger from cfg, or from defaults when cfg is nil.
func NewLogger(cfg *LoggerConfig) *LoomLogger {
	if cfg == nil {
		cfg = DefaultLoggerConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: cfg.Level.slogLevel(), AddSource: cfg.AddSource}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return &LoomLogger{logger: slog.New(handler)}
}

// NewSlogLogger is a shorthand constructor for the common case.
func NewSlogLogger(level LogLevel, format string, addSource bool) *LoomLogger {
	cfg := DefaultLoggerConfig()
	cfg.Level = level
	if format != "" {
		cfg.Format = format
	}
	cfg.AddSource = addSource
	return NewLogger(cfg)
}

// NewSlogAdapter wraps an existing *slog.Logger.
func NewSlogAdapter(logger *slog.Logger) *LoomLogger {
	return &LoomLogger{logger: logger}
}

func (l *LoomLogger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l *LoomLogger) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l *LoomLogger) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l *LoomLogger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// With returns a logger that attaches the given key/value pairs to every
// entry.
func (l *LoomLogger) With(args ...any) *LoomLogger {
	return &LoomLogger{logger: l.logger.With(args...)}
}

// WithComponent tags entries with a logical component name (agent, flow,
// runner).
func (l *LoomLogger) WithComponent(component string) *LoomLogger {
	return l.With("component", component)
}

// WithSession tags entries with session and run identifiers.
func (l *LoomLogger) WithSession(sessionID, runID string) *LoomLogger {
	return l.With("session_id", sessionID, "run_id", runID)
}
