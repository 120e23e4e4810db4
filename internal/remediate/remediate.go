// Package remediate finds the failed jobs of one engine and lists, retries or
// cancels them.
//
// Every action first runs the same pipeline:
//
//	FetchingIncidents → FetchingJobs → Correlating → Filtering → Acting → Done
//
// Acting never starts before both fetches and both filters are complete, and
// items are acted on one at a time so results come back in order.
package remediate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/steveyegge/cockpit/internal/correlate"
	"github.com/steveyegge/cockpit/internal/types"
)

// Gateway is the engine surface the orchestrator needs.
type Gateway interface {
	Name() string
	GetIncidents(ctx context.Context, processInstanceID, activityID string) ([]types.Incident, error)
	GetJobs(ctx context.Context, processInstanceID string) ([]types.Job, error)
	PutRetries(ctx context.Context, jobID string, retries int) error
	ListSubProcessInstances(ctx context.Context, id string) ([]types.ProcessInstance, error)
	DeleteProcessInstance(ctx context.Context, id string) error
	GetStatistics(ctx context.Context) ([]types.Statistics, error)
}

// Phase is a step of the per-engine pipeline.
type Phase string

const (
	PhaseFetchingIncidents Phase = "fetching-incidents"
	PhaseFetchingJobs      Phase = "fetching-jobs"
	PhaseCorrelating       Phase = "correlating"
	PhaseFiltering         Phase = "filtering"
	PhaseActing            Phase = "acting"
	PhaseDone              Phase = "done"
)

// DefaultMaxCascadeDepth bounds how many parent levels a cancel climbs.
const DefaultMaxCascadeDepth = 64

// RetryCount is what a retried job's remaining retries are reset to.
const RetryCount = 1

// Orchestrator runs remediation actions against one engine.
type Orchestrator struct {
	Gateway         Gateway
	MaxCascadeDepth int
	Logger          *slog.Logger

	// Callbacks for UI feedback (optional).
	OnItem  func(ItemResult)
	OnPhase func(Phase)
}

// New creates an orchestrator for gw.
func New(gw Gateway) *Orchestrator {
	return &Orchestrator{
		Gateway:         gw,
		MaxCascadeDepth: DefaultMaxCascadeDepth,
	}
}

// Engine returns the name of the engine being remediated.
func (o *Orchestrator) Engine() string {
	return o.Gateway.Name()
}

func (o *Orchestrator) log() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

func (o *Orchestrator) phase(p Phase) {
	o.log().Debug("phase", "engine", o.Engine(), "phase", string(p))
	if o.OnPhase != nil {
		o.OnPhase(p)
	}
}

func (o *Orchestrator) record(out *Outcome, item ItemResult) {
	item.Engine = o.Engine()
	if item.Err != nil && item.Error == "" {
		item.Error = item.Err.Error()
	}
	out.Items = append(out.Items, item)

	log := o.log().With("engine", item.Engine, "kind", string(item.Kind), "process_instance_id", item.ProcessInstanceID)
	switch item.Status {
	case StatusFailed:
		log.Warn("remediation failed", "error", item.Error)
	case StatusSkipped:
		log.Info("remediation skipped", "reason", item.Reason)
	default:
		log.Info("remediation done", "job_id", item.JobID)
	}
	if o.OnItem != nil {
		o.OnItem(item)
	}
}

func (o *Orchestrator) newOutcome(action Action) *Outcome {
	return &Outcome{Engine: o.Engine(), Action: action}
}

// FailedJobs fetches incidents and jobs, joins them and applies the filter.
// Each returned record carries the engine name.
func (o *Orchestrator) FailedJobs(ctx context.Context, filter correlate.Filter) ([]types.FailedJob, error) {
	o.phase(PhaseFetchingIncidents)
	incidents, err := o.Gateway.GetIncidents(ctx, filter.ProcessInstanceID, filter.ActivityID)
	if err != nil {
		return nil, err
	}

	o.phase(PhaseFetchingJobs)
	jobs, err := o.Gateway.GetJobs(ctx, filter.ProcessInstanceID)
	if err != nil {
		return nil, err
	}

	o.phase(PhaseCorrelating)
	failed := correlate.Join(incidents, jobs)

	o.phase(PhaseFiltering)
	failed = correlate.FilterByMessage(correlate.FilterByTime(failed, filter.From, filter.To), filter.Message)

	for i := range failed {
		failed[i].ProcessEngine = o.Engine()
	}
	o.log().Debug("correlated failed jobs",
		"engine", o.Engine(),
		"incidents", len(incidents),
		"jobs", len(jobs),
		"failed_jobs", len(failed),
	)
	return failed, nil
}

// List returns the failed jobs matching filter. An empty result is not an
// error; the renderer prints nothing for it.
func (o *Orchestrator) List(ctx context.Context, filter correlate.Filter) (*Outcome, error) {
	out := o.newOutcome(ActionList)
	failed, err := o.FailedJobs(ctx, filter)
	if err != nil {
		return out, err
	}
	out.FailedJobs = failed
	o.phase(PhaseDone)
	return out, nil
}

// Stats returns per-definition instance and incident counts.
func (o *Orchestrator) Stats(ctx context.Context) (*Outcome, error) {
	out := o.newOutcome(ActionStats)
	stats, err := o.Gateway.GetStatistics(ctx)
	if err != nil {
		return out, err
	}
	out.Statistics = stats
	return out, nil
}

// Request describes one action to run.
type Request struct {
	Action            Action
	Filter            correlate.Filter
	ProcessInstanceID string // only for ActionCancelInstance
}

// Run dispatches req to the matching action.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Outcome, error) {
	switch req.Action {
	case ActionList:
		return o.List(ctx, req.Filter)
	case ActionRetry:
		return o.Retry(ctx, req.Filter)
	case ActionCancel:
		return o.CancelFiltered(ctx, req.Filter)
	case ActionCancelInstance:
		return o.CancelInstance(ctx, req.ProcessInstanceID)
	case ActionStats:
		return o.Stats(ctx)
	default:
		return nil, fmt.Errorf("unknown action %q", req.Action)
	}
}
