package remediate

import (
	"context"

	"github.com/steveyegge/cockpit/internal/correlate"
)

// Retry resets the retry count of every matching failed job to RetryCount.
// A failure on one job is recorded and the batch moves on; the returned
// error is only set when the batch could not run at all or ctx was canceled.
func (o *Orchestrator) Retry(ctx context.Context, filter correlate.Filter) (*Outcome, error) {
	out := o.newOutcome(ActionRetry)
	failed, err := o.FailedJobs(ctx, filter)
	if err != nil {
		return out, err
	}

	o.phase(PhaseActing)
	for _, fj := range failed {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		item := ItemResult{
			Kind:              KindRetry,
			Status:            StatusOK,
			ProcessInstanceID: fj.ProcessInstanceID,
			ExecutionID:       fj.ExecutionID,
			JobID:             fj.ID,
		}
		if err := o.Gateway.PutRetries(ctx, fj.ID, RetryCount); err != nil {
			item.Status = StatusFailed
			item.Err = err
		}
		o.record(out, item)
	}
	o.phase(PhaseDone)
	return out, nil
}
