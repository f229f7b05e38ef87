// Package logging provides the component-scoped slog logger shared by the
// session, bridge, header and trace packages.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Component identifies a subsystem for log filtering.
type Component string

const (
	ComponentSession Component = "session"
	ComponentFifo    Component = "fifo"
	ComponentIrq     Component = "irq"
	ComponentSim     Component = "sim"
	ComponentBridge  Component = "bridge"
	ComponentHeader  Component = "header"
	ComponentTrace   Component = "trace"
	ComponentCLI     Component = "cli"
)

// Format selects the handler used by the default logger.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

var (
	level  = new(slog.LevelVar)
	mu     sync.RWMutex
	output io.Writer = os.Stderr
	format Format
	base   *slog.Logger
)

func init() {
	level.Set(slog.LevelWarn)
	base = newLogger(output, format)
}

func newLogger(w io.Writer, f Format) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if f == FormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetLevel sets the minimum level for every component.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// Level returns the current minimum level.
func Level() slog.Level {
	return level.Level()
}

// SetFormat switches the default handler between text and JSON output.
func SetFormat(f Format) {
	mu.Lock()
	defer mu.Unlock()
	format = f
	base = newLogger(output, f)
}

// ParseFormat maps "text" or "json" to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("logging: unknown format %q", s)
	}
}

// SetOutput redirects the default logger.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	base = newLogger(w, format)
}

// SetLogger replaces the default logger entirely.
func SetLogger(l *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	base = l
}

// For returns a logger tagged with the component.
func For(c Component) *slog.Logger {
	mu.RLock()
	l := base
	mu.RUnlock()
	return l.With("component", string(c))
}
