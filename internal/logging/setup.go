// Package logging builds the slog handlers used across the process.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/atlanticdynamic/payscript/internal/logging/writers"
	"github.com/charmbracelet/log"
)

// Format selects the handler encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// Valid reports whether f names a known format. The empty format means text.
func (f Format) Valid() bool {
	return f == "" || f == FormatText || f == FormatJSON
}

// levels maps configuration level names. trace is debug with caller reporting.
var levels = map[string]slog.Level{
	"trace":   slog.LevelDebug,
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"":        slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// ParseLevel converts a level name.
func ParseLevel(name string) (slog.Level, error) {
	level, ok := levels[strings.ToLower(name)]
	if !ok {
		return slog.LevelInfo, fmt.Errorf("unknown log level: %q", name)
	}
	return level, nil
}

func isTrace(name string) bool {
	return strings.EqualFold(name, "trace")
}

// NewTextHandler returns a charmbracelet/log handler writing to w, or stderr when w is nil.
// Timestamps are shown from debug level down.
func NewTextHandler(level string, w io.Writer) slog.Handler {
	if w == nil {
		w = os.Stderr
	}
	lvl, _ := ParseLevel(level)
	return log.NewWithOptions(w, log.Options{
		Level:           log.Level(lvl),
		ReportTimestamp: lvl <= slog.LevelDebug,
		ReportCaller:    isTrace(level),
	})
}

// NewJSONHandler returns a slog JSON handler writing to w, or stdout when w is nil.
func NewJSONHandler(level string, w io.Writer) slog.Handler {
	if w == nil {
		w = os.Stdout
	}
	lvl, _ := ParseLevel(level)
	return slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:     lvl,
		AddSource: isTrace(level),
	})
}

// Setup opens output and builds the handler for format and level. The returned closer releases
// the destination.
func Setup(format Format, level, output string) (slog.Handler, io.Closer, error) {
	if !format.Valid() {
		return nil, nil, fmt.Errorf("unknown log format: %q", format)
	}
	if _, err := ParseLevel(level); err != nil {
		return nil, nil, err
	}
	w, err := writers.Open(output)
	if err != nil {
		return nil, nil, err
	}
	if format == FormatJSON {
		return NewJSONHandler(level, w), w, nil
	}
	return NewTextHandler(level, w), w, nil
}
