// Package debug holds the process-wide output level of the CLI and builds
// the structured logger handed to the runner.
//
// There are three levels. Quiet prints failures only; normal adds the
// per-item lines and summaries; verbose also prints which engine is being
// worked on and which time bounds are applied. COCKPIT_DEBUG=1 implies
// verbose and additionally turns on debug-level slog output.
package debug

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Level is how much the CLI prints.
type Level int

const (
	LevelQuiet Level = iota - 1
	LevelNormal
	LevelVerbose
)

var (
	traceEnv           = os.Getenv("COCKPIT_DEBUG") != ""
	level              = LevelNormal
	errOut   io.Writer = os.Stderr
)

// SetVerbose switches between verbose and normal output.
func SetVerbose(verbose bool) {
	if verbose {
		level = LevelVerbose
	} else if level == LevelVerbose {
		level = LevelNormal
	}
}

// SetQuiet switches between quiet and normal output.
func SetQuiet(quiet bool) {
	if quiet {
		level = LevelQuiet
	} else if level == LevelQuiet {
		level = LevelNormal
	}
}

// CurrentLevel returns the effective level.
func CurrentLevel() Level {
	if traceEnv {
		return LevelVerbose
	}
	return level
}

// Enabled reports whether verbose lines are printed.
func Enabled() bool {
	return CurrentLevel() >= LevelVerbose
}

// IsQuiet reports whether only failures are printed.
func IsQuiet() bool {
	return CurrentLevel() == LevelQuiet
}

// Logf writes a verbose line to stderr.
func Logf(format string, args ...any) {
	Verbosef(errOut, format, args...)
}

// Verbosef writes to w only at verbose level.
func Verbosef(w io.Writer, format string, args ...any) {
	if Enabled() {
		fmt.Fprintf(w, format, args...)
	}
}

// NewLogger returns the runner's logger. Engine level failures are logged at
// verbose level, every phase transition with COCKPIT_DEBUG. Otherwise the
// logger discards everything because the CLI renders outcomes itself.
func NewLogger(w io.Writer) *slog.Logger {
	switch {
	case traceEnv:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case level == LevelVerbose:
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelWarn}))
	default:
		return slog.New(slog.DiscardHandler)
	}
}
