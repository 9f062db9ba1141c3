package metrics

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Level represents a logging level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelSilent // Disables all logging
)

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo:
		return zerolog.InfoLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	case LevelSilent:
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel parses a level string, defaulting to LevelInfo on an unknown
// value.
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return LevelDebug
	case "INFO":
		return LevelInfo
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	case "SILENT", "OFF", "NONE":
		return LevelSilent
	default:
		return LevelInfo
	}
}

// Fields represents structured log fields attached to one event.
type Fields map[string]any

// Format specifies the log output format.
type Format int

const (
	FormatText Format = iota // zerolog.ConsoleWriter
	FormatJSON               // zerolog's native wire format
)

// Logger wraps zerolog.Logger behind the functional-options construction
// pattern and the event/fields call shape pkg/router.Logger and
// pkg/clientconn.Logger expect.
type Logger struct {
	base zerolog.Logger
	name string
}

// LoggerOption configures a Logger.
type LoggerOption func(*config)

type config struct {
	out    io.Writer
	level  Level
	format Format
	fields Fields
	name   string
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) LoggerOption {
	return func(c *config) { c.out = w }
}

// WithLevel sets the minimum log level.
func WithLevel(level Level) LoggerOption {
	return func(c *config) { c.level = level }
}

// WithFormat sets the output format.
func WithFormat(format Format) LoggerOption {
	return func(c *config) { c.format = format }
}

// WithFields sets default fields applied to every event from this logger.
func WithFields(fields Fields) LoggerOption {
	return func(c *config) { c.fields = fields }
}

// WithName sets the logger name, attached as the "logger" field.
func WithName(name string) LoggerOption {
	return func(c *config) { c.name = name }
}

// NewLogger creates a new Logger with the given options.
func NewLogger(opts ...LoggerOption) *Logger {
	cfg := &config{
		out:    os.Stdout,
		level:  LevelInfo,
		format: FormatJSON,
		fields: make(Fields),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var w io.Writer = cfg.out
	if cfg.format == FormatText {
		w = zerolog.ConsoleWriter{Out: cfg.out, TimeFormat: "15:04:05.000"}
	}

	zl := zerolog.New(w).With().Timestamp().Logger().Level(cfg.level.zerolog())
	if cfg.name != "" {
		zl = zl.With().Str("logger", cfg.name).Logger()
	}
	ctx := zl.With()
	for k, v := range cfg.fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{base: ctx.Logger(), name: cfg.name}
}

// With returns a new Logger with additional default fields merged in.
func (l *Logger) With(fields Fields) *Logger {
	ctx := l.base.With()
	for k, v := range fields {
		ctx = ctx.Interface(k, v)
	}
	return &Logger{base: ctx.Logger(), name: l.name}
}

// Named returns a new Logger whose name is dotted onto the parent's.
func (l *Logger) Named(name string) *Logger {
	newName := name
	if l.name != "" {
		newName = l.name + "." + name
	}
	return &Logger{base: l.base.With().Str("logger", newName).Logger(), name: newName}
}

// SetLevel changes the logger's minimum level in place.
func (l *Logger) SetLevel(level Level) {
	l.base = l.base.Level(level.zerolog())
}

func (l *Logger) event(e *zerolog.Event, msg string, fields Fields) {
	for k, v := range fields {
		e = e.Interface(k, v)
	}
	e.Msg(msg)
}

// Debug logs event at debug level with the given fields.
func (l *Logger) Debug(event string, fields map[string]any) {
	l.event(l.base.Debug(), event, fields)
}

// Info logs event at info level with the given fields.
func (l *Logger) Info(event string, fields map[string]any) {
	l.event(l.base.Info(), event, fields)
}

// Warn logs event at warn level with the given fields.
func (l *Logger) Warn(event string, fields map[string]any) {
	l.event(l.base.Warn(), event, fields)
}

// Error logs event at error level with the given fields.
func (l *Logger) Error(event string, fields map[string]any) {
	l.event(l.base.Error(), event, fields)
}

var (
	globalLogger   *Logger
	globalLoggerMu sync.RWMutex
)

func init() {
	globalLogger = NewLogger()
}

// SetLogger sets the process-wide default logger.
func SetLogger(l *Logger) {
	globalLoggerMu.Lock()
	defer globalLoggerMu.Unlock()
	globalLogger = l
}

// GetLogger returns the process-wide default logger.
func GetLogger() *Logger {
	globalLoggerMu.RLock()
	defer globalLoggerMu.RUnlock()
	return globalLogger
}

// NullLogger returns a Logger that discards all output.
func NullLogger() *Logger {
	return NewLogger(WithLevel(LevelSilent))
}

// TestLogger returns a Logger suitable for test output: debug level, text
// format.
func TestLogger(w io.Writer) *Logger {
	return NewLogger(
		WithOutput(w),
		WithLevel(LevelDebug),
		WithFormat(FormatText),
	)
}

// ProductionLogger returns a Logger suitable for production: info level,
// JSON format.
func ProductionLogger(w io.Writer) *Logger {
	return NewLogger(
		WithOutput(w),
		WithLevel(LevelInfo),
		WithFormat(FormatJSON),
	)
}
