package ui

import (
	"strings"
	"unicode/utf8"
)

// DefaultMessageWidth bounds exception messages in list tables.
const DefaultMessageWidth = 120

const ellipsis = "..."

// Truncate cuts text to at most maxLen runes, marking the cut with "...".
func Truncate(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	keep := maxLen - len(ellipsis)
	if keep <= 0 {
		return ellipsis
	}
	return string([]rune(text)[:keep]) + ellipsis
}

// FirstLine returns the first non-blank line of text, trimmed. Engine
// exception messages often carry a stack trace after it.
func FirstLine(text string) string {
	for line := range strings.Lines(text) {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

// Summarize fits a multi-line engine message into one table cell.
func Summarize(text string, maxLen int) string {
	return Truncate(FirstLine(text), maxLen)
}
