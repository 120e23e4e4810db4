package main

import (
	"errors"
	"fmt"
	"io"
)

// errRunFailed is returned after a run whose report was already printed but
// which had failures; main exits 1 without printing anything else.
var errRunFailed = errors.New("run had failures")

// hintError is an error with an actionable suggestion for the operator.
type hintError struct {
	err  error
	hint string
}

func (e *hintError) Error() string { return e.err.Error() }
func (e *hintError) Unwrap() error { return e.err }

// withHint attaches hint to err.
func withHint(err error, hint string) error {
	return &hintError{err: err, hint: hint}
}

// reportError writes err to w the way every command reports failures:
//
//	Error: <message>
//	Hint: <suggestion>
func reportError(w io.Writer, err error) {
	if errors.Is(err, errRunFailed) {
		return
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	var h *hintError
	if errors.As(err, &h) && h.hint != "" {
		fmt.Fprintf(w, "Hint: %s\n", h.hint)
	}
}

// warn writes a non-fatal warning to w.
func warn(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "Warning: "+format+"\n", args...)
}
