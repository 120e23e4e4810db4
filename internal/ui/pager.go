package ui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"
)

// PagerOptions controls pager behavior.
type PagerOptions struct {
	// NoPager disables the pager (--no-pager flag)
	NoPager bool
}

// pager is the resolved paging setup for one write.
type pager struct {
	// argv of the pager; empty disables paging.
	command []string
	// rows of the terminal, 0 when stdout is not one.
	rows int
}

// detectPager resolves the pager from opts, COCKPIT_NO_PAGER, COCKPIT_PAGER
// and PAGER, defaulting to less. Paging only happens on a terminal.
func detectPager(opts PagerOptions) pager {
	if opts.NoPager || os.Getenv("COCKPIT_NO_PAGER") != "" {
		return pager{}
	}
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return pager{}
	}
	_, rows, err := term.GetSize(fd)
	if err != nil {
		rows = 0
	}
	cmd := os.Getenv("COCKPIT_PAGER")
	if cmd == "" {
		cmd = os.Getenv("PAGER")
	}
	if cmd == "" {
		cmd = "less"
	}
	return pager{command: strings.Fields(cmd), rows: rows}
}

func lineCount(content string) int {
	if content == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(content, "\n"), "\n") + 1
}

// write sends content to w, through the pager when it does not fit on
// screen. A table that fits is printed as is.
func (p pager) write(w io.Writer, content string) error {
	if len(p.command) == 0 || (p.rows > 0 && lineCount(content) < p.rows) {
		_, err := fmt.Fprint(w, content)
		return err
	}

	cmd := exec.Command(p.command[0], p.command[1:]...) // #nosec G204 - pager is the operator's own setting
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = w
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	// -R keeps colors, -F quits if it fits, -X leaves the table on screen.
	if os.Getenv("LESS") == "" {
		cmd.Env = append(cmd.Env, "LESS=-RFX")
	}
	return cmd.Run()
}

// ToPager writes content to stdout, paged when it is taller than the
// terminal.
func ToPager(content string, opts PagerOptions) error {
	return detectPager(opts).write(os.Stdout, content)
}
