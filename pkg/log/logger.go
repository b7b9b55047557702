// Package log provides the structured logging facade used across the server.
// It exposes a small leveled Logger interface with typed Fields, backed by the
// standard library slog so output handling stays boring.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Level represents the severity of a log message.
type Level int

// Log levels
const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a level name ("debug", "info", ...) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	}
	return InfoLevel, fmt.Errorf("log: unknown level %q", s)
}

// Field is a single structured key/value attached to a log entry.
type Field struct {
	Key   string
	Value any
}

// Str returns a string field.
func Str(key, value string) Field { return Field{Key: key, Value: value} }

// Int returns an int field.
func Int(key string, value int) Field { return Field{Key: key, Value: value} }

// Int64 returns an int64 field.
func Int64(key string, value int64) Field { return Field{Key: key, Value: value} }

// Dur returns a duration field.
func Dur(key string, value time.Duration) Field { return Field{Key: key, Value: value} }

// Err returns an error field under the conventional "error" key.
func Err(err error) Field { return Field{Key: "error", Value: err} }

// Component tags entries with the emitting component name.
func Component(name string) Field { return Field{Key: "component", Value: name} }

// Any returns a field holding an arbitrary value.
func Any(key string, value any) Field { return Field{Key: key, Value: value} }

// Logger is the leveled logging interface components receive by injection.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a logger that attaches the given fields to every entry.
	With(fields ...Field) Logger

	// WithComponent tags entries with a component name.
	WithComponent(name string) Logger

	SetLevel(level Level)
	GetLevel() Level
}

// Format selects the output encoding.
type Format int

// Output formats
const (
	TextFormat Format = iota
	JSONFormat
)

// Option configures a BaseLogger.
type Option func(*BaseLogger)

// WithLevel sets the minimum level.
func WithLevel(level Level) Option {
	return func(l *BaseLogger) { l.level.Set(toSlogLevel(level)) }
}

// WithFormat selects text or JSON output.
func WithFormat(format Format) Option {
	return func(l *BaseLogger) { l.format = format }
}

// WithWriter directs output to w instead of stderr.
func WithWriter(w io.Writer) Option {
	return func(l *BaseLogger) { l.writer = w }
}

// BaseLogger implements Logger on top of a slog handler.
type BaseLogger struct {
	level  *slog.LevelVar
	format Format
	writer io.Writer
	sl     *slog.Logger
}

// NewLogger builds a logger. Defaults: info level, text format, stderr.
func NewLogger(options ...Option) Logger {
	l := &BaseLogger{level: new(slog.LevelVar), writer: os.Stderr}
	l.level.Set(slog.LevelInfo)
	for _, opt := range options {
		opt(l)
	}
	hopts := &slog.HandlerOptions{Level: l.level}
	var h slog.Handler
	if l.format == JSONFormat {
		h = slog.NewJSONHandler(l.writer, hopts)
	} else {
		h = slog.NewTextHandler(l.writer, hopts)
	}
	l.sl = slog.New(h)
	return l
}

// Config is the declarative form used by config files and flags.
type Config struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// ApplyConfig builds a logger from a declarative Config.
func ApplyConfig(cfg *Config) (Logger, error) {
	level := InfoLevel
	if cfg.Level != "" {
		parsed, err := ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		level = parsed
	}
	format := TextFormat
	switch strings.ToLower(cfg.Format) {
	case "", "text":
	case "json":
		format = JSONFormat
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}
	return NewLogger(WithLevel(level), WithFormat(format)), nil
}

func (l *BaseLogger) Debug(msg string, fields ...Field) { l.log(slog.LevelDebug, msg, fields) }
func (l *BaseLogger) Info(msg string, fields ...Field)  { l.log(slog.LevelInfo, msg, fields) }
func (l *BaseLogger) Warn(msg string, fields ...Field)  { l.log(slog.LevelWarn, msg, fields) }
func (l *BaseLogger) Error(msg string, fields ...Field) { l.log(slog.LevelError, msg, fields) }

func (l *BaseLogger) log(level slog.Level, msg string, fields []Field) {
	l.sl.LogAttrs(context.Background(), level, msg, attrs(fields)...)
}

// With returns a logger carrying the extra fields on every entry.
func (l *BaseLogger) With(fields ...Field) Logger {
	clone := *l
	args := make([]any, 0, len(fields))
	for _, a := range attrs(fields) {
		args = append(args, a)
	}
	clone.sl = l.sl.With(args...)
	return &clone
}

// WithComponent tags entries with a component name.
func (l *BaseLogger) WithComponent(name string) Logger {
	return l.With(Component(name))
}

// SetLevel adjusts the minimum level for this logger and its derivatives.
func (l *BaseLogger) SetLevel(level Level) { l.level.Set(toSlogLevel(level)) }

// GetLevel reports the current minimum level.
func (l *BaseLogger) GetLevel() Level { return fromSlogLevel(l.level.Level()) }

func attrs(fields []Field) []slog.Attr {
	out := make([]slog.Attr, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

func toSlogLevel(level Level) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case WarnLevel:
		return slog.LevelWarn
	case ErrorLevel:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func fromSlogLevel(level slog.Level) Level {
	switch {
	case level <= slog.LevelDebug:
		return DebugLevel
	case level < slog.LevelWarn:
		return InfoLevel
	case level < slog.LevelError:
		return WarnLevel
	default:
		return ErrorLevel
	}
}
