package engine

import (
	"context"
	"fmt"
	"net/url"

	"github.com/steveyegge/cockpit/internal/types"
)

// GetIncidents returns failed-job incidents, optionally narrowed to one
// process instance and/or activity.
func (g *Gateway) GetIncidents(ctx context.Context, processInstanceID, activityID string) ([]types.Incident, error) {
	params := url.Values{}
	params.Set("incidentType", "failedJob")
	if processInstanceID != "" {
		params.Set("processInstanceId", processInstanceID)
	}
	if activityID != "" {
		params.Set("activityId", activityID)
	}

	var incidents []types.Incident
	if err := g.getJSON(ctx, "/incident", params, &incidents); err != nil {
		return nil, fmt.Errorf("fetch incidents: %w", err)
	}
	return incidents, nil
}

// GetJobs returns jobs that currently carry an exception.
func (g *Gateway) GetJobs(ctx context.Context, processInstanceID string) ([]types.Job, error) {
	params := url.Values{}
	params.Set("withException", "true")
	if processInstanceID != "" {
		params.Set("processInstanceId", processInstanceID)
	}

	var jobs []types.Job
	if err := g.getJSON(ctx, "/job", params, &jobs); err != nil {
		return nil, fmt.Errorf("fetch jobs: %w", err)
	}
	return jobs, nil
}

// PutRetries sets the remaining retry count of a job. Setting the same count
// twice leaves the job in the same state.
func (g *Gateway) PutRetries(ctx context.Context, jobID string, retries int) error {
	apiPath := fmt.Sprintf("/job/%s/retries", url.PathEscape(jobID))
	if err := g.putJSON(ctx, apiPath, map[string]int{"retries": retries}); err != nil {
		return fmt.Errorf("set retries for job %s: %w", jobID, err)
	}
	return nil
}

// ListSubProcessInstances returns the instances whose sub process instance
// is id, i.e. the parents of id. A top-level instance yields none.
func (g *Gateway) ListSubProcessInstances(ctx context.Context, id string) ([]types.ProcessInstance, error) {
	params := url.Values{}
	params.Set("subProcessInstance", id)

	var instances []types.ProcessInstance
	if err := g.getJSON(ctx, "/process-instance/", params, &instances); err != nil {
		return nil, fmt.Errorf("find parents of process instance %s: %w", id, err)
	}
	return instances, nil
}

// DeleteProcessInstance terminates a running process instance.
func (g *Gateway) DeleteProcessInstance(ctx context.Context, id string) error {
	apiPath := fmt.Sprintf("/process-instance/%s", url.PathEscape(id))
	if err := g.delete(ctx, apiPath); err != nil {
		return fmt.Errorf("delete process instance %s: %w", id, err)
	}
	return nil
}

// GetStatistics returns per-definition instance and incident counts.
func (g *Gateway) GetStatistics(ctx context.Context) ([]types.Statistics, error) {
	params := url.Values{}
	params.Set("incidents", "true")

	var stats []types.Statistics
	if err := g.getJSON(ctx, "/process-instance/statistics", params, &stats); err != nil {
		return nil, fmt.Errorf("fetch statistics: %w", err)
	}
	return stats, nil
}
