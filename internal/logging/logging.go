// ABOUTME: Construction of the structured logger injected into every component
// ABOUTME: Wraps charmbracelet/log; components never reach for a global logger
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

// New creates a logger writing to w at the named level (debug, info, warn, error).
// Unknown levels fall back to info.
func New(w io.Writer, level string) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Prefix:          "ragcore",
		ReportTimestamp: true,
	})
}

// ForCLI picks the level from the verbose/quiet flags
func ForCLI(w io.Writer, verbose, quiet bool) *log.Logger {
	switch {
	case verbose:
		return New(w, "debug")
	case quiet:
		return New(w, "error")
	default:
		return New(w, "warn")
	}
}

// Discard returns a logger that drops everything
func Discard() *log.Logger {
	return log.New(io.Discard)
}

// OrDiscard returns l, or a discarding logger when l is nil
func OrDiscard(l *log.Logger) *log.Logger {
	if l == nil {
		return Discard()
	}
	return l
}
