package remediate

import (
	"errors"
	"fmt"

	"github.com/steveyegge/cockpit/internal/types"
)

// Action is the remediation requested by the operator.
type Action string

const (
	ActionList           Action = "list"
	ActionRetry          Action = "retry"
	ActionCancel         Action = "cancel"
	ActionCancelInstance Action = "cancel-instance"
	ActionStats          Action = "stats"
)

// ItemKind says what a single ItemResult did.
type ItemKind string

const (
	KindRetry  ItemKind = "retry"
	KindCancel ItemKind = "cancel"
	// KindLookup records a failed parent lookup during a cascade.
	KindLookup ItemKind = "lookup"
)

// ItemStatus is the outcome of one per-item action.
type ItemStatus string

const (
	StatusOK      ItemStatus = "ok"
	StatusFailed  ItemStatus = "failed"
	StatusSkipped ItemStatus = "skipped"
)

// ItemResult is the outcome of one retry, cancel or lookup.
type ItemResult struct {
	Engine            string     `json:"engine"`
	Kind              ItemKind   `json:"kind"`
	Status            ItemStatus `json:"status"`
	ProcessInstanceID string     `json:"process_instance_id"`
	ExecutionID       string     `json:"execution_id,omitempty"`
	JobID             string     `json:"job_id,omitempty"`
	Depth             int        `json:"depth,omitempty"` // cascade level, 0 is the instance asked for
	Reason            string     `json:"reason,omitempty"`
	Error             string     `json:"error,omitempty"`

	Err error `json:"-"`
}

// Outcome collects everything one action produced on one engine.
type Outcome struct {
	Engine     string             `json:"engine"`
	Action     Action             `json:"action"`
	FailedJobs []types.FailedJob  `json:"failed_jobs,omitempty"`
	Statistics []types.Statistics `json:"statistics,omitempty"`
	Items      []ItemResult       `json:"items,omitempty"`
}

// Count returns how many items ended with the given status.
func (o *Outcome) Count(status ItemStatus) int {
	if o == nil {
		return 0
	}
	n := 0
	for _, item := range o.Items {
		if item.Status == status {
			n++
		}
	}
	return n
}

// HasFailures reports whether any item failed.
func (o *Outcome) HasFailures() bool {
	return o.Count(StatusFailed) > 0
}

// Err joins the errors of all failed items, or returns nil.
func (o *Outcome) Err() error {
	if o == nil {
		return nil
	}
	var errs []error
	for _, item := range o.Items {
		if item.Status != StatusFailed {
			continue
		}
		if item.Err != nil {
			errs = append(errs, item.Err)
		} else {
			errs = append(errs, fmt.Errorf("%s %s: %s", item.Kind, item.ProcessInstanceID, item.Error))
		}
	}
	return errors.Join(errs...)
}
