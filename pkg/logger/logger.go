// Package logger builds the slog loggers used across the interceptor.
// Output is gated by the debug switch of the interceptor configuration:
// with debug on every level is written, with debug off only errors are.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Format selects the slog handler.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseFormat parses a string into a Format. Unknown values fall back to text.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON
	default:
		return FormatText
	}
}

// Options configures the logger.
type Options struct {
	Output io.Writer
	Format Format
	Debug  bool

	// Switch, when set, overrides Debug and lets the level change later.
	Switch *Switch
}

// Switch is a debug switch that can be flipped after a logger is built.
type Switch struct {
	level slog.LevelVar
}

// NewSwitch creates a switch in the given position.
func NewSwitch(debug bool) *Switch {
	s := &Switch{}
	s.Set(debug)
	return s
}

// Set moves the switch.
func (s *Switch) Set(debug bool) {
	s.level.Set(Level(debug))
}

// Debug reports whether debug output is on.
func (s *Switch) Debug() bool {
	return s.level.Level() == slog.LevelDebug
}

// DefaultOptions returns sensible defaults for the logger.
func DefaultOptions() Options {
	return Options{
		Output: os.Stderr,
		Format: FormatText,
	}
}

// New creates a slog.Logger with the given options.
func New(opts Options) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{
		Level: Level(opts.Debug),
	}
	if opts.Switch != nil {
		handlerOpts.Level = &opts.Switch.level
	}

	var handler slog.Handler
	if opts.Format == FormatJSON {
		handler = slog.NewJSONHandler(opts.Output, handlerOpts)
	} else {
		handler = slog.NewTextHandler(opts.Output, handlerOpts)
	}

	return slog.New(handler)
}

// Level returns the minimum level for the given debug switch.
func Level(debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	return slog.LevelError
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// Common attribute constructors, so the same keys are used everywhere.
func Element(element string) slog.Attr  { return slog.String("element", element) }
func Function(name string) slog.Attr    { return slog.String("function", name) }
func Verb(name string) slog.Attr        { return slog.String("verb", name) }
func StatementID(id string) slog.Attr   { return slog.String("statement_id", id) }
func Endpoint(url string) slog.Attr     { return slog.String("endpoint", url) }
func Attempt(n int) slog.Attr           { return slog.Int("attempt", n) }
func Latency(d time.Duration) slog.Attr { return slog.Duration("latency", d) }

// Err creates an error attribute.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Any("error", nil)
	}
	return slog.String("error", err.Error())
}
