// Package logger is the structured logging facade shared by the track server
// and racectl. Records go through a single slog handler whose level and
// format come from configuration.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Output formats understood by WithFormat.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// callers skipped when capturing the source: runtime.Callers, log and the
// level method.
const callerSkip = 3

// Logger defines the logging interface.
type Logger interface {
	Info(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Fatal(ctx context.Context, msg string, fields ...Field)

	Named(name string) Logger
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value interface{}
}

// Field constructors.
func String(key, val string) Field          { return Field{Key: key, Value: val} }
func Int(key string, val int) Field         { return Field{Key: key, Value: val} }
func Float64(key string, val float64) Field { return Field{Key: key, Value: val} }
func Bool(key string, val bool) Field       { return Field{Key: key, Value: val} }
func Any(key string, val interface{}) Field { return Field{Key: key, Value: val} }
func Error(err error) Field                 { return Field{Key: "error", Value: err} }

// ErrNilWriter is returned when Init is given a nil output.
var ErrNilWriter = errors.New("logger: nil writer")

// Option configures Init.
type Option func(*settings)

type settings struct {
	out    io.Writer
	format string
	level  string
}

// WithWriter sends records to w instead of stdout. racectl points this at
// stderr so its tables own stdout.
func WithWriter(w io.Writer) Option {
	return func(s *settings) { s.out = w }
}

// WithFormat selects FormatText or FormatJSON.
func WithFormat(format string) Option {
	return func(s *settings) { s.format = format }
}

// WithLevel sets the initial level by name, see SetLevelString.
func WithLevel(level string) Option {
	return func(s *settings) { s.level = level }
}

// handlerLogger implements Logger on a slog.Handler.
type handlerLogger struct {
	h slog.Handler
}

func (l *handlerLogger) Named(name string) Logger {
	return &handlerLogger{h: l.h.WithGroup(name)}
}

func (l *handlerLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelInfo, msg, fields)
}

func (l *handlerLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelError, msg, fields)
}

func (l *handlerLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelDebug, msg, fields)
}

func (l *handlerLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelWarn, msg, fields)
}

func (l *handlerLogger) Fatal(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, slog.LevelError, msg, fields)
	os.Exit(1)
}

func (l *handlerLogger) log(ctx context.Context, level slog.Level, msg string, fields []Field) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.h.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(callerSkip, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	for _, f := range fields {
		r.AddAttrs(slog.Any(f.Key, f.Value))
	}
	_ = l.h.Handle(ctx, r)
}

var (
	global   Logger
	levelVar slog.LevelVar
)

// Init installs the global logger. Without options it writes text records
// at info level to stdout. Calling it again replaces the handler, which is
// how the binaries apply the configured format once config is loaded.
func Init(opts ...Option) error {
	s := settings{out: os.Stdout, format: FormatText, level: "info"}
	for _, opt := range opts {
		opt(&s)
	}
	if s.out == nil {
		return ErrNilWriter
	}
	level, err := parseLevel(s.level)
	if err != nil {
		return err
	}

	hopts := &slog.HandlerOptions{Level: &levelVar, AddSource: true, ReplaceAttr: relativeSource}
	var h slog.Handler
	switch strings.ToLower(s.format) {
	case "", FormatText:
		h = slog.NewTextHandler(s.out, hopts)
	case FormatJSON:
		h = slog.NewJSONHandler(s.out, hopts)
	default:
		return fmt.Errorf("logger: unknown format %q", s.format)
	}

	levelVar.Set(level)
	global = &handlerLogger{h: h}
	return nil
}

// relativeSource renders the source attribute as path:line relative to the
// working directory.
func relativeSource(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 || a.Key != slog.SourceKey {
		return a
	}
	src, ok := a.Value.Any().(*slog.Source)
	if !ok || src == nil {
		return a
	}
	file := filepath.Base(src.File)
	if cwd, err := os.Getwd(); err == nil {
		if rel, err := filepath.Rel(cwd, src.File); err == nil {
			file = rel
		}
	}
	return slog.String(slog.SourceKey, fmt.Sprintf("%s:%d", file, src.Line))
}

// Get returns the global logger.
func Get() Logger {
	if global == nil {
		panic("logger not initialized; call logger.Init first")
	}
	return global
}

// Named creates a named logger.
func Named(name string) Logger {
	return Get().Named(name)
}

// Sync flushes buffered log entries. slog handlers write through.
func Sync() error { return nil }

// SetLevel updates the level of the global handler.
func SetLevel(level slog.Level) { levelVar.Set(level) }

// SetLevelString parses and sets the logging level.
// Accepts: debug, info, warn/warning, error (case-insensitive).
func SetLevelString(level string) error {
	l, err := parseLevel(level)
	if err != nil {
		return err
	}
	SetLevel(l)
	return nil
}

func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level: %s", level)
}
