// Package correlate joins incidents with jobs and narrows the result with
// operator filters.
package correlate

import (
	"regexp"
	"time"

	"github.com/steveyegge/cockpit/internal/types"
)

// Join pairs every incident with the job running on the same execution.
// Incidents without a job, and jobs without an incident, are dropped.
// Result order follows the incidents. If several jobs share an execution
// the last one wins.
func Join(incidents []types.Incident, jobs []types.Job) []types.FailedJob {
	jobByExecution := make(map[string]types.Job, len(jobs))
	for _, job := range jobs {
		jobByExecution[job.ExecutionID] = job
	}

	seen := make(map[string]bool, len(incidents))
	failed := make([]types.FailedJob, 0, len(incidents))
	for _, incident := range incidents {
		job, ok := jobByExecution[incident.ExecutionID]
		if !ok || seen[incident.ExecutionID] {
			continue
		}
		seen[incident.ExecutionID] = true
		failed = append(failed, types.NewFailedJob(incident, job))
	}
	return failed
}

// FilterByTime keeps records whose incident timestamp lies strictly between
// from and to. A nil bound leaves that side open.
func FilterByTime(failed []types.FailedJob, from, to *time.Time) []types.FailedJob {
	if from == nil && to == nil {
		return failed
	}
	kept := make([]types.FailedJob, 0, len(failed))
	for _, fj := range failed {
		ts := fj.IncidentTimestamp.Time
		if from != nil && !from.Before(ts) {
			continue
		}
		if to != nil && !ts.Before(*to) {
			continue
		}
		kept = append(kept, fj)
	}
	return kept
}

// FilterByMessage keeps records where pattern is found in the exception
// message or in the incident message. Missing messages search as "".
// A nil pattern keeps everything.
func FilterByMessage(failed []types.FailedJob, pattern *regexp.Regexp) []types.FailedJob {
	if pattern == nil {
		return failed
	}
	kept := make([]types.FailedJob, 0, len(failed))
	for _, fj := range failed {
		if pattern.MatchString(fj.ExceptionText()) || pattern.MatchString(fj.IncidentText()) {
			kept = append(kept, fj)
		}
	}
	return kept
}

// Filter is the operator's selection of failed jobs.
// ProcessInstanceID and ActivityID are applied by the engine when fetching.
type Filter struct {
	ProcessInstanceID string
	ActivityID        string
	Message           *regexp.Regexp
	From              *time.Time
	To                *time.Time
}

// IsEmpty reports whether the filter selects every failed job.
func (f Filter) IsEmpty() bool {
	return f.ProcessInstanceID == "" && f.ActivityID == "" && f.Message == nil && f.From == nil && f.To == nil
}

// Apply joins incidents with jobs, then filters by time and message.
func (f Filter) Apply(incidents []types.Incident, jobs []types.Job) []types.FailedJob {
	return FilterByMessage(FilterByTime(Join(incidents, jobs), f.From, f.To), f.Message)
}
