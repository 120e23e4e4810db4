package correlate

import (
	"regexp"
	"testing"
	"time"

	"github.com/steveyegge/cockpit/internal/types"
)

func at(sec int64) types.EngineTime {
	return types.EngineTime{Time: time.Unix(sec, 0).UTC()}
}

func ptime(sec int64) *time.Time {
	t := time.Unix(sec, 0).UTC()
	return &t
}

func exampleIncidents() []types.Incident {
	return []types.Incident{
		{ID: "i1", ExecutionID: "e1", ProcessInstanceID: "p1", IncidentTimestamp: at(100), IncidentMessage: types.StringPtr("boom")},
	}
}

func exampleJobs() []types.Job {
	return []types.Job{
		{ID: "j1", ExecutionID: "e1", ExceptionMessage: types.StringPtr("boom-detail")},
	}
}

func TestJoinExample(t *testing.T) {
	failed := Join(exampleIncidents(), exampleJobs())
	if len(failed) != 1 {
		t.Fatalf("Join() returned %d records, want 1", len(failed))
	}
	fj := failed[0]
	if fj.ExceptionText() != "boom-detail" {
		t.Errorf("exceptionMessage = %q, want boom-detail", fj.ExceptionText())
	}
	if fj.IncidentText() != "boom" {
		t.Errorf("incidentMessage = %q, want boom", fj.IncidentText())
	}
	if fj.ID != "j1" {
		t.Errorf("id = %q, want job id j1", fj.ID)
	}
	if fj.ProcessInstanceID != "p1" {
		t.Errorf("processInstanceId = %q, want p1", fj.ProcessInstanceID)
	}
}

func TestJoinIsInner(t *testing.T) {
	incidents := []types.Incident{
		{ID: "i1", ExecutionID: "e1"},
		{ID: "i2", ExecutionID: "e2"}, // no job
		{ID: "i3", ExecutionID: "e3"},
	}
	jobs := []types.Job{
		{ID: "j3", ExecutionID: "e3"},
		{ID: "j4", ExecutionID: "e4"}, // no incident
		{ID: "j1", ExecutionID: "e1"},
	}

	failed := Join(incidents, jobs)
	if len(failed) != 2 {
		t.Fatalf("Join() returned %d records, want 2", len(failed))
	}
	if failed[0].ExecutionID != "e1" || failed[1].ExecutionID != "e3" {
		t.Errorf("Join() order = [%s %s], want incident order [e1 e3]", failed[0].ExecutionID, failed[1].ExecutionID)
	}
}

func TestJoinOneRecordPerExecution(t *testing.T) {
	incidents := []types.Incident{
		{ID: "i1", ExecutionID: "e1"},
		{ID: "i1b", ExecutionID: "e1"},
	}
	jobs := []types.Job{
		{ID: "j1", ExecutionID: "e1"},
		{ID: "j1b", ExecutionID: "e1"},
	}

	failed := Join(incidents, jobs)
	if len(failed) != 1 {
		t.Fatalf("Join() returned %d records, want exactly one per execution", len(failed))
	}
	if failed[0].ID != "j1b" {
		t.Errorf("id = %q, want last job j1b", failed[0].ID)
	}
}

func TestJoinEmpty(t *testing.T) {
	if got := Join(nil, exampleJobs()); len(got) != 0 {
		t.Errorf("Join(nil, jobs) = %v, want empty", got)
	}
	if got := Join(exampleIncidents(), nil); len(got) != 0 {
		t.Errorf("Join(incidents, nil) = %v, want empty", got)
	}
}

func TestFilterByTime(t *testing.T) {
	failed := Join(exampleIncidents(), exampleJobs())

	tests := []struct {
		name string
		from *time.Time
		to   *time.Time
		want int
	}{
		{"no bounds", nil, nil, 1},
		{"strictly inside", ptime(50), ptime(150), 1},
		{"from equals timestamp", ptime(100), ptime(150), 0},
		{"to equals timestamp", ptime(50), ptime(100), 0},
		{"only from, before", ptime(99), nil, 1},
		{"only from, after", ptime(101), nil, 0},
		{"only to, after", nil, ptime(101), 1},
		{"only to, before", nil, ptime(99), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterByTime(failed, tt.from, tt.to)
			if len(got) != tt.want {
				t.Errorf("FilterByTime() kept %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestFilterByMessage(t *testing.T) {
	failed := []types.FailedJob{
		{ID: "a", ExceptionMessage: types.StringPtr("NullPointerException in OrderService")},
		{ID: "b", IncidentMessage: types.StringPtr("Connection timed out")},
		{ID: "c"},
	}

	tests := []struct {
		name    string
		pattern *regexp.Regexp
		want    []string
	}{
		{"nil pattern keeps all", nil, []string{"a", "b", "c"}},
		{"exception field", regexp.MustCompile("NullPointer"), []string{"a"}},
		{"incident field", regexp.MustCompile("timed out"), []string{"b"}},
		{"search not full match", regexp.MustCompile("Order"), []string{"a"}},
		{"regex alternation", regexp.MustCompile("Null|Connection"), []string{"a", "b"}},
		{"empty pattern matches nil messages", regexp.MustCompile(""), []string{"a", "b", "c"}},
		{"no match", regexp.MustCompile("OutOfMemory"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterByMessage(failed, tt.pattern)
			var ids []string
			for _, fj := range got {
				ids = append(ids, fj.ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("FilterByMessage() = %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Errorf("FilterByMessage()[%d] = %s, want %s", i, ids[i], tt.want[i])
				}
			}
		})
	}
}

func TestFilterApply(t *testing.T) {
	f := Filter{
		Message: regexp.MustCompile("boom"),
		From:    ptime(50),
		To:      ptime(150),
	}
	got := f.Apply(exampleIncidents(), exampleJobs())
	if len(got) != 1 {
		t.Fatalf("Apply() kept %d, want 1", len(got))
	}

	f.From = ptime(100)
	if got := f.Apply(exampleIncidents(), exampleJobs()); len(got) != 0 {
		t.Errorf("Apply() with from on the boundary kept %d, want 0", len(got))
	}
}

func TestFilterIsEmpty(t *testing.T) {
	if !(Filter{}).IsEmpty() {
		t.Error("zero Filter should be empty")
	}
	if (Filter{ProcessInstanceID: "p1"}).IsEmpty() {
		t.Error("Filter with an instance id should not be empty")
	}
	if (Filter{To: ptime(1)}).IsEmpty() {
		t.Error("Filter with a time bound should not be empty")
	}
}
