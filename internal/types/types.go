// Package types defines the records cockpit reads from a process engine and
// the merged views it builds from them.
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// EngineTimeLayout is the date format used by the engine REST API,
// e.g. "2016-02-23T09:00:00.000+0100".
const EngineTimeLayout = "2006-01-02T15:04:05.000-0700"

// EngineTime is a timestamp decoded from the engine's wire format.
// RFC 3339 values are accepted as well.
type EngineTime struct {
	time.Time
}

// UnmarshalJSON decodes an engine timestamp; null leaves the zero time.
func (t *EngineTime) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("engine time: %w", err)
	}
	if s == "" {
		return nil
	}
	for _, layout := range []string{EngineTimeLayout, time.RFC3339Nano, "2006-01-02T15:04:05-0700"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("engine time: unrecognized timestamp %q", s)
}

// MarshalJSON encodes the timestamp in the engine's wire format.
func (t EngineTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Format(EngineTimeLayout))
}

// String formats the timestamp the way the engine does.
func (t EngineTime) String() string {
	if t.IsZero() {
		return ""
	}
	return t.Format(EngineTimeLayout)
}

// Incident is a recorded failure attached to an execution.
type Incident struct {
	ID                  string     `json:"id"`
	ProcessInstanceID   string     `json:"processInstanceId"`
	ProcessDefinitionID string     `json:"processDefinitionId,omitempty"`
	ExecutionID         string     `json:"executionId"`
	ActivityID          string     `json:"activityId"`
	IncidentTimestamp   EngineTime `json:"incidentTimestamp"`
	IncidentMessage     *string    `json:"incidentMessage"`
}

// Job is a retryable unit of asynchronous work.
type Job struct {
	ID                   string  `json:"id"`
	ExecutionID          string  `json:"executionId"`
	ProcessInstanceID    string  `json:"processInstanceId,omitempty"`
	ProcessDefinitionKey string  `json:"processDefinitionKey,omitempty"`
	Retries              int     `json:"retries"`
	ExceptionMessage     *string `json:"exceptionMessage"`
}

// FailedJob joins one Incident with the Job sharing its execution.
// ID is the job id; the incident's own id is kept in IncidentID.
type FailedJob struct {
	ID                   string     `json:"id"`
	IncidentID           string     `json:"incidentId"`
	ExecutionID          string     `json:"executionId"`
	ProcessInstanceID    string     `json:"processInstanceId"`
	ProcessDefinitionID  string     `json:"processDefinitionId,omitempty"`
	ProcessDefinitionKey string     `json:"processDefinitionKey,omitempty"`
	ActivityID           string     `json:"activityId"`
	IncidentTimestamp    EngineTime `json:"incidentTimestamp"`
	IncidentMessage      *string    `json:"incidentMessage"`
	ExceptionMessage     *string    `json:"exceptionMessage"`
	Retries              int        `json:"retries"`
	ProcessEngine        string     `json:"processEngine,omitempty"`
}

// NewFailedJob merges an incident with its job. Fields defined on both
// records take the job's value whenever the job carries one.
func NewFailedJob(incident Incident, job Job) FailedJob {
	fj := FailedJob{
		ID:                   incident.ID,
		IncidentID:           incident.ID,
		ExecutionID:          incident.ExecutionID,
		ProcessInstanceID:    incident.ProcessInstanceID,
		ProcessDefinitionID:  incident.ProcessDefinitionID,
		ProcessDefinitionKey: job.ProcessDefinitionKey,
		ActivityID:           incident.ActivityID,
		IncidentTimestamp:    incident.IncidentTimestamp,
		IncidentMessage:      incident.IncidentMessage,
		ExceptionMessage:     job.ExceptionMessage,
		Retries:              job.Retries,
	}
	if job.ID != "" {
		fj.ID = job.ID
	}
	if job.ExecutionID != "" {
		fj.ExecutionID = job.ExecutionID
	}
	if job.ProcessInstanceID != "" {
		fj.ProcessInstanceID = job.ProcessInstanceID
	}
	return fj
}

// ExceptionText returns the job's exception message, or "" when absent.
func (f FailedJob) ExceptionText() string {
	return deref(f.ExceptionMessage)
}

// IncidentText returns the incident message, or "" when absent.
func (f FailedJob) IncidentText() string {
	return deref(f.IncidentMessage)
}

// ProcessInstance is a running workflow instance. ParentID is empty for
// top-level instances.
type ProcessInstance struct {
	ID           string `json:"id"`
	DefinitionID string `json:"definitionId,omitempty"`
	BusinessKey  string `json:"businessKey,omitempty"`
	ParentID     string `json:"parentId,omitempty"`
	Suspended    bool   `json:"suspended"`
	Ended        bool   `json:"ended"`
}

// IncidentCount is one entry of the per-type incident breakdown in engine
// statistics.
type IncidentCount struct {
	IncidentType  string `json:"incidentType"`
	IncidentCount int    `json:"incidentCount"`
}

// Statistics summarises running instances and incidents for one definition.
type Statistics struct {
	ID         string          `json:"id"`
	Instances  int             `json:"instances"`
	FailedJobs int             `json:"failedJobs"`
	Incidents  []IncidentCount `json:"incidents"`
	Definition struct {
		ID   string `json:"id"`
		Key  string `json:"key"`
		Name string `json:"name"`
	} `json:"definition"`
}

// TotalIncidents sums the incident counts across all incident types.
func (s Statistics) TotalIncidents() int {
	total := 0
	for _, c := range s.Incidents {
		total += c.IncidentCount
	}
	return total
}

// StringPtr returns a pointer to s. Handy for building nullable fields.
func StringPtr(s string) *string {
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
