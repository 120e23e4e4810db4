package remediate

import (
	"context"
	"errors"
	"fmt"

	"github.com/steveyegge/cockpit/internal/correlate"
)

// ErrCascadeTooDeep marks an instance whose parent chain exceeded
// MaxCascadeDepth.
var ErrCascadeTooDeep = errors.New("parent chain too deep")

// CancelFiltered cancels the process instance of every matching failed job,
// cascading to parents. Instances reached twice in one batch are only
// canceled once.
func (o *Orchestrator) CancelFiltered(ctx context.Context, filter correlate.Filter) (*Outcome, error) {
	out := o.newOutcome(ActionCancel)
	failed, err := o.FailedJobs(ctx, filter)
	if err != nil {
		return out, err
	}

	o.phase(PhaseActing)
	visited := make(map[string]bool)
	for _, fj := range failed {
		if err := o.cascade(ctx, fj.ProcessInstanceID, 0, visited, out); err != nil {
			return out, err
		}
	}
	o.phase(PhaseDone)
	return out, nil
}

// CancelInstance cancels one process instance and every ancestor of it,
// whether or not it has incidents.
func (o *Orchestrator) CancelInstance(ctx context.Context, id string) (*Outcome, error) {
	out := o.newOutcome(ActionCancelInstance)
	if id == "" {
		return out, fmt.Errorf("cancel-instance requires a process instance id")
	}
	o.phase(PhaseActing)
	if err := o.cascade(ctx, id, 0, make(map[string]bool), out); err != nil {
		return out, err
	}
	o.phase(PhaseDone)
	return out, nil
}

// cascade cancels id, then climbs to its parents:
//
//  1. look up the parents of id before touching it, so the chain is known
//     even if the delete fails;
//  2. delete id; a failure is recorded and does not stop the cascade;
//  3. recurse into every parent found in step 1.
//
// visited stops cyclic parent chains. MaxCascadeDepth bounds the climb, and
// an instance beyond it is recorded as failed.
// Only context cancellation is returned as an error.
func (o *Orchestrator) cascade(ctx context.Context, id string, depth int, visited map[string]bool, out *Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if visited[id] {
		o.record(out, ItemResult{
			Kind:              KindCancel,
			Status:            StatusSkipped,
			ProcessInstanceID: id,
			Depth:             depth,
			Reason:            "already canceled in this run",
		})
		return nil
	}
	maxDepth := o.MaxCascadeDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxCascadeDepth
	}
	if depth > maxDepth {
		// The instance and everything above it are left running.
		o.record(out, ItemResult{
			Kind:              KindCancel,
			Status:            StatusFailed,
			ProcessInstanceID: id,
			Depth:             depth,
			Err:               fmt.Errorf("%w: deeper than %d levels, not canceled", ErrCascadeTooDeep, maxDepth),
		})
		return nil
	}
	visited[id] = true

	parents, lookupErr := o.Gateway.ListSubProcessInstances(ctx, id)

	item := ItemResult{
		Kind:              KindCancel,
		Status:            StatusOK,
		ProcessInstanceID: id,
		Depth:             depth,
	}
	if err := o.Gateway.DeleteProcessInstance(ctx, id); err != nil {
		item.Status = StatusFailed
		item.Err = err
	}
	o.record(out, item)

	if lookupErr != nil {
		o.record(out, ItemResult{
			Kind:              KindLookup,
			Status:            StatusFailed,
			ProcessInstanceID: id,
			Depth:             depth,
			Err:               lookupErr,
		})
		return nil
	}

	for _, parent := range parents {
		if err := o.cascade(ctx, parent.ID, depth+1, visited, out); err != nil {
			return err
		}
	}
	return nil
}
