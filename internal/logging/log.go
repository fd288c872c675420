// Package logging holds the process-wide structured logger.
// Every record carries a component attribute so output from the volume reader,
// the container parser and the stream engine can be told apart and filtered.
package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

// Component identifies a subsystem for log filtering.
type Component string

const (
	ComponentVolume    Component = "volume"
	ComponentContainer Component = "container"
	ComponentStream    Component = "stream"
	ComponentCLI       Component = "cli"
)

// Format selects the handler used by SetFormat.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

var (
	defaultLogger *slog.Logger
	level         = new(slog.LevelVar)
	mu            sync.RWMutex
)

func init() {
	level.Set(slog.LevelWarn)
	defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// SetLevel sets the minimum level of the default logger.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// Level returns the current minimum level.
func Level() slog.Level {
	return level.Level()
}

// SetLogger replaces the default logger.
func SetLogger(logger *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	defaultLogger = logger
}

// SetFormat rebuilds the default logger on w with the given format and the current level.
func SetFormat(w io.Writer, format Format) {
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch format {
	case FormatJSON:
		h = slog.NewJSONHandler(w, opts)
	default:
		h = slog.NewTextHandler(w, opts)
	}
	SetLogger(slog.New(h))
}

// Logger returns the default logger scoped to component.
func Logger(component Component) *slog.Logger {
	mu.RLock()
	logger := defaultLogger
	mu.RUnlock()
	return logger.With("component", string(component))
}

func Debug(component Component, msg string, args ...any) {
	Logger(component).Debug(msg, args...)
}

func Info(component Component, msg string, args ...any) {
	Logger(component).Info(msg, args...)
}

func Warn(component Component, msg string, args ...any) {
	Logger(component).Warn(msg, args...)
}

func Error(component Component, msg string, args ...any) {
	Logger(component).Error(msg, args...)
}
