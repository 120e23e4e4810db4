package remediate

import (
	"context"
	"errors"
	"maps"
	"net/http"
	"reflect"
	"regexp"
	"slices"
	"testing"
	"time"

	"github.com/steveyegge/cockpit/internal/correlate"
	"github.com/steveyegge/cockpit/internal/engine"
	"github.com/steveyegge/cockpit/internal/testutil/fakeengine"
	"github.com/steveyegge/cockpit/internal/types"
)

func newOrchestrator(t *testing.T, srv *fakeengine.Server, name string) *Orchestrator {
	t.Helper()
	gw, err := engine.NewGateway(srv.URL, name)
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	return New(gw)
}

func mustCompile(t *testing.T, pattern string) *regexp.Regexp {
	t.Helper()
	re, err := regexp.Compile(pattern)
	if err != nil {
		t.Fatalf("compile %q: %v", pattern, err)
	}
	return re
}

func TestFailedJobsPhasesAndEngineName(t *testing.T) {
	srv := fakeengine.New(t)
	eng := srv.AddEngine("order-engine")
	eng.AddFailedJob("p1", "e1", "j1", "boom")

	o := newOrchestrator(t, srv, "order-engine")
	var phases []Phase
	o.OnPhase = func(p Phase) { phases = append(phases, p) }

	out, err := o.List(context.Background(), correlate.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out.FailedJobs) != 1 {
		t.Fatalf("got %d failed jobs, want 1", len(out.FailedJobs))
	}
	if fj := out.FailedJobs[0]; fj.ProcessEngine != "order-engine" || fj.ProcessDefinitionKey != "order" {
		t.Errorf("failed job engine/key = %q/%q", fj.ProcessEngine, fj.ProcessDefinitionKey)
	}
	want := []Phase{
		PhaseFetchingIncidents,
		PhaseFetchingJobs,
		PhaseCorrelating,
		PhaseFiltering,
		PhaseDone,
	}
	if !slices.Equal(phases, want) {
		t.Errorf("phases = %v, want %v", phases, want)
	}
}

func TestListEmptyIsNotAnError(t *testing.T) {
	srv := fakeengine.New(t)
	srv.AddEngine("order-engine")

	out, err := newOrchestrator(t, srv, "order-engine").List(context.Background(), correlate.Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out.FailedJobs) != 0 || out.Action != ActionList {
		t.Errorf("outcome = %+v", out)
	}
}

func TestListAppliesFilters(t *testing.T) {
	srv := fakeengine.New(t)
	eng := srv.AddEngine("order-engine")
	base := time.Date(2016, 2, 23, 9, 0, 0, 0, time.UTC)
	eng.AddFailedJobAt("p1", "e1", "j1", "NullPointerException", base)
	eng.AddFailedJobAt("p2", "e2", "j2", "Connection timed out", base.Add(time.Hour))
	eng.AddFailedJobAt("p3", "e3", "j3", "Connection refused", base.Add(2*time.Hour))
	// incident without job and job without incident are dropped
	eng.Incidents = append(eng.Incidents, eng.Incidents[0])
	eng.Incidents[len(eng.Incidents)-1].ExecutionID = "orphan"

	from := base
	to := base.Add(2 * time.Hour)
	out, err := newOrchestrator(t, srv, "order-engine").List(context.Background(), correlate.Filter{
		Message: regexp.MustCompile("Connection"),
		From:    &from,
		To:      &to,
	})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out.FailedJobs) != 1 || out.FailedJobs[0].ID != "j2" {
		t.Errorf("failed jobs = %+v, want only j2", out.FailedJobs)
	}
}

func TestListByProcessInstance(t *testing.T) {
	srv := fakeengine.New(t)
	eng := srv.AddEngine("order-engine")
	eng.AddFailedJob("p1", "e1", "j1", "boom")
	eng.AddFailedJob("p2", "e2", "j2", "boom")

	out, err := newOrchestrator(t, srv, "order-engine").List(context.Background(), correlate.Filter{ProcessInstanceID: "p2"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(out.FailedJobs) != 1 || out.FailedJobs[0].ProcessInstanceID != "p2" {
		t.Errorf("failed jobs = %+v, want only p2", out.FailedJobs)
	}
}

func TestFetchErrorPropagates(t *testing.T) {
	srv := fakeengine.New(t)
	eng := srv.AddEngine("order-engine")
	eng.FailFetch = http.StatusInternalServerError

	_, err := newOrchestrator(t, srv, "order-engine").Retry(context.Background(), correlate.Filter{})
	if !engine.IsStatus(err, http.StatusInternalServerError) {
		t.Fatalf("Retry error = %v, want a 500", err)
	}
	if len(eng.Retries) != 0 {
		t.Errorf("retries = %v, want none", eng.Retries)
	}
}

func TestRetry(t *testing.T) {
	srv := fakeengine.New(t)
	eng := srv.AddEngine("order-engine")
	eng.AddFailedJob("p1", "e1", "j1", "boom")
	eng.AddFailedJob("p2", "e2", "j2", "boom")

	o := newOrchestrator(t, srv, "order-engine")
	var reported []ItemResult
	o.OnItem = func(item ItemResult) { reported = append(reported, item) }

	out, err := o.Retry(context.Background(), correlate.Filter{Message: regexp.MustCompile("boom")})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if want := map[string]int{"j1": 1, "j2": 1}; !maps.Equal(eng.Retries, want) {
		t.Errorf("retries = %v, want %v", eng.Retries, want)
	}
	if len(out.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(out.Items))
	}
	if !reflect.DeepEqual(out.Items, reported) {
		t.Errorf("OnItem saw %+v, outcome has %+v", reported, out.Items)
	}

	want := ItemResult{
		Engine:            "order-engine",
		Kind:              KindRetry,
		Status:            StatusOK,
		ProcessInstanceID: "p1",
		ExecutionID:       "e1",
		JobID:             "j1",
	}
	if first := out.Items[0]; !reflect.DeepEqual(first, want) {
		t.Errorf("first item = %+v, want %+v", first, want)
	}
	if err := out.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}
}

func TestRetryIsIdempotent(t *testing.T) {
	srv := fakeengine.New(t)
	eng := srv.AddEngine("order-engine")
	eng.AddFailedJob("p1", "e1", "j1", "boom")
	o := newOrchestrator(t, srv, "order-engine")

	for i := 0; i < 2; i++ {
		if _, err := o.Retry(context.Background(), correlate.Filter{ProcessInstanceID: "p1"}); err != nil {
			t.Fatalf("Retry #%d: %v", i+1, err)
		}
		if got := eng.Retries["j1"]; got != 1 {
			t.Errorf("after retry #%d j1 retries = %d, want 1", i+1, got)
		}
	}
}

func TestRetryContinuesAfterFailure(t *testing.T) {
	srv := fakeengine.New(t)
	eng := srv.AddEngine("order-engine")
	eng.AddFailedJob("p1", "e1", "j1", "boom")
	eng.AddFailedJob("p2", "e2", "j2", "boom")
	eng.AddFailedJob("p3", "e3", "j3", "boom")
	eng.FailRetries = map[string]int{"j2": http.StatusInternalServerError}

	out, err := newOrchestrator(t, srv, "order-engine").Retry(context.Background(), correlate.Filter{})
	if err != nil {
		t.Fatalf("per-job failures are collected, not returned: %v", err)
	}
	if len(out.Items) != 3 {
		t.Fatalf("got %d items, want 3", len(out.Items))
	}
	wantStatus := []ItemStatus{StatusOK, StatusFailed, StatusOK}
	for i, item := range out.Items {
		if item.Status != wantStatus[i] {
			t.Errorf("item %d status = %s, want %s", i, item.Status, wantStatus[i])
		}
	}
	if out.Items[1].Error == "" {
		t.Error("failed item has no error text")
	}
	if want := map[string]int{"j1": 1, "j3": 1}; !maps.Equal(eng.Retries, want) {
		t.Errorf("retries = %v, want %v", eng.Retries, want)
	}
	if !out.HasFailures() || out.Count(StatusOK) != 2 || out.Err() == nil {
		t.Errorf("HasFailures=%v ok=%d Err=%v", out.HasFailures(), out.Count(StatusOK), out.Err())
	}
}

func TestRetryStopsOnCanceledContext(t *testing.T) {
	srv := fakeengine.New(t)
	eng := srv.AddEngine("order-engine")
	eng.AddFailedJob("p1", "e1", "j1", "boom")
	eng.AddFailedJob("p2", "e2", "j2", "boom")

	ctx, cancel := context.WithCancel(context.Background())
	o := newOrchestrator(t, srv, "order-engine")
	o.OnItem = func(ItemResult) { cancel() }

	out, err := o.Retry(ctx, correlate.Filter{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Retry error = %v, want context.Canceled", err)
	}
	if len(out.Items) != 1 {
		t.Errorf("partial outcome has %d items, want 1", len(out.Items))
	}
}

func TestRunDispatch(t *testing.T) {
	srv := fakeengine.New(t)
	srv.AddEngine("order-engine")
	o := newOrchestrator(t, srv, "order-engine")

	for _, action := range []Action{ActionList, ActionRetry, ActionCancel, ActionStats} {
		out, err := o.Run(context.Background(), Request{Action: action})
		if err != nil {
			t.Fatalf("Run(%s): %v", action, err)
		}
		if out.Action != action {
			t.Errorf("Run(%s) action = %s", action, out.Action)
		}
	}

	if _, err := o.Run(context.Background(), Request{Action: "explode"}); err == nil {
		t.Error("Run(explode) succeeded")
	}
}

func TestStats(t *testing.T) {
	srv := fakeengine.New(t)
	eng := srv.AddEngine("order-engine")
	eng.Statistics = []types.Statistics{{ID: "order:1:x", Instances: 3}}

	out, err := newOrchestrator(t, srv, "order-engine").Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if len(out.Statistics) != 1 || out.Statistics[0].Instances != 3 {
		t.Errorf("statistics = %+v", out.Statistics)
	}
}
