package main

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/spf13/pflag"

	"github.com/steveyegge/cockpit/internal/correlate"
	"github.com/steveyegge/cockpit/internal/timeparsing"
)

// filterFlags are the failed job filters shared by list, retry and cancel.
type filterFlags struct {
	processInstanceID string
	activityID        string
	message           string
	from              string
	to                string
}

func (f *filterFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.processInstanceID, "process-instance-id", "i", "", "Only failed jobs of this process instance")
	fs.StringVar(&f.activityID, "activity-id", "", "Only incidents raised by this activity")
	fs.StringVarP(&f.message, "message", "m", "", "Regular expression matched against incident and exception messages")
	fs.StringVar(&f.from, "from", "", "Only incidents after this time (2016-02-23T09:00:00, -30m, -6h, -2mo, \"yesterday 9am\")")
	fs.StringVar(&f.to, "to", "", "Only incidents before this time")
	fs.StringVar(&f.from, "from-timestamp", "", "Alias for --from")
	fs.StringVar(&f.to, "to-timestamp", "", "Alias for --to")
	_ = fs.MarkHidden("from-timestamp")
	_ = fs.MarkHidden("to-timestamp")
}

func (f *filterFlags) hasMessageOrTime() bool {
	return f.message != "" || f.from != "" || f.to != ""
}

func (f *filterFlags) empty() bool {
	return f.processInstanceID == "" && f.activityID == "" && !f.hasMessageOrTime()
}

// validate checks flag combinations. Bulk actions refuse to run without a
// filter so that a bare `cockpit retry --all` cannot touch every job.
func (f *filterFlags) validate(requireFilter bool) error {
	if f.processInstanceID != "" && f.hasMessageOrTime() {
		return errors.New("--process-instance-id does not support additional filters")
	}
	if requireFilter && f.empty() {
		return withHint(errors.New("this action requires a filter"),
			"pass --process-instance-id, --activity-id, --message, --from or --to")
	}
	return nil
}

// build compiles the flags into a correlate.Filter. Relative times are
// resolved against now.
func (f *filterFlags) build(now time.Time) (correlate.Filter, error) {
	filter := correlate.Filter{
		ProcessInstanceID: f.processInstanceID,
		ActivityID:        f.activityID,
	}
	if f.message != "" {
		re, err := regexp.Compile(f.message)
		if err != nil {
			return filter, fmt.Errorf("invalid --message pattern: %w", err)
		}
		filter.Message = re
	}
	if f.from != "" {
		t, err := timeparsing.ParseRelativeTime(f.from, now)
		if err != nil {
			return filter, fmt.Errorf("--from: %w", err)
		}
		filter.From = &t
	}
	if f.to != "" {
		t, err := timeparsing.ParseRelativeTime(f.to, now)
		if err != nil {
			return filter, fmt.Errorf("--to: %w", err)
		}
		filter.To = &t
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return filter, fmt.Errorf("--from (%s) must be before --to (%s)", filter.From.Format(time.RFC3339), filter.To.Format(time.RFC3339))
	}
	return filter, nil
}
