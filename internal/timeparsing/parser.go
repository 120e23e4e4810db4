// Package timeparsing turns the --from/--to filter arguments into instants.
//
// Parsing is layered and the first layer that accepts the input wins:
//  1. Compact duration (-30m, -6h, -1d, +2w, -3mo)
//  2. Absolute timestamp (2016-02-23T09:00:00, RFC 3339, date-only)
//  3. Natural language (yesterday 9am, 3 days ago)
package timeparsing

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// compactDurationRe matches compact duration patterns: [+-]?(\d+)(m|h|d|w|mo|y)
// Examples: -30m, +6h, -1d, +2w, -3mo, 1y
var compactDurationRe = regexp.MustCompile(`^([+-]?)(\d+)(mo|[mhdwy])$`)

// ParseCompactDuration parses compact duration syntax relative to now.
//
// Units: m minutes, h hours, d days, w weeks, mo months, y years. No sign means
// positive, so a filter for "the last six hours" is written -6h.
func ParseCompactDuration(s string, now time.Time) (time.Time, error) {
	matches := compactDurationRe.FindStringSubmatch(s)
	if matches == nil {
		return time.Time{}, fmt.Errorf("not a compact duration: %q", s)
	}

	amount, err := strconv.Atoi(matches[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid duration amount: %q", matches[2])
	}
	if matches[1] == "-" {
		amount = -amount
	}
	return applyDuration(now, amount, matches[3]), nil
}

func applyDuration(base time.Time, amount int, unit string) time.Time {
	switch unit {
	case "m":
		return base.Add(time.Duration(amount) * time.Minute)
	case "h":
		return base.Add(time.Duration(amount) * time.Hour)
	case "d":
		return base.AddDate(0, 0, amount)
	case "w":
		return base.AddDate(0, 0, amount*7)
	case "mo":
		return base.AddDate(0, amount, 0)
	case "y":
		return base.AddDate(amount, 0, 0)
	default:
		return base
	}
}

// IsCompactDuration returns true if the string matches compact duration syntax.
func IsCompactDuration(s string) bool {
	return compactDurationRe.MatchString(s)
}

// Layouts without a zone are read in loc.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700", // as the engine writes them
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses an absolute timestamp. Inputs without an offset are
// taken to be in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("not a timestamp: %q", s)
}

var (
	nlpOnce   sync.Once
	nlpParser *when.Parser
)

func parser() *when.Parser {
	nlpOnce.Do(func() {
		nlpParser = when.New(nil)
		nlpParser.Add(en.All...)
		nlpParser.Add(common.All...)
	})
	return nlpParser
}

// ParseNaturalLanguage parses English expressions relative to now.
func ParseNaturalLanguage(s string, now time.Time) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, errors.New("empty time expression")
	}
	r, err := parser().Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing %q: %w", s, err)
	}
	if r == nil {
		return time.Time{}, fmt.Errorf("not a time expression: %q", s)
	}
	return r.Time, nil
}

// ParseRelativeTime runs every layer in order. Timestamps without an offset
// use now's location.
func ParseRelativeTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("empty time expression")
	}
	if IsCompactDuration(s) {
		return ParseCompactDuration(s, now)
	}
	if t, err := ParseTimestamp(s, now.Location()); err == nil {
		return t, nil
	}
	t, err := ParseNaturalLanguage(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot parse %q: use an ISO timestamp (2016-02-23T09:00:00), a duration like -6h, or an expression like \"yesterday 9am\"", s)
	}
	return t, nil
}
