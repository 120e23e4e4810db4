// Package fakeengine serves an in-memory process engine REST API over
// httptest for gateway, orchestrator and runner tests.
//
// Usage:
//
//	func TestSomething(t *testing.T) {
//	    srv := fakeengine.New(t)
//	    eng := srv.AddEngine("order-engine")
//	    eng.AddFailedJob("p1", "e1", "j1", "boom")
//	    gw, _ := engine.NewGateway(srv.URL, "order-engine")
//	    ...
//	}
package fakeengine

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/steveyegge/cockpit/internal/types"
)

const sessionCookie = "JSESSIONID"

// Call is one request the server received.
type Call struct {
	Engine string
	Method string
	Path   string
}

// Engine is the state of one named engine.
type Engine struct {
	Name      string
	Incidents []types.Incident
	Jobs      []types.Job
	// Parents maps a process instance to the instances that called it.
	Parents    map[string][]string
	Statistics []types.Statistics

	// Username/Password enable credential login; Token enables bearer auth.
	// With neither set every request is accepted.
	Username string
	Password string
	Token    string

	FailLogin   int            // status returned by login when non-zero
	FailDelete  map[string]int // instance id -> status
	FailRetries map[string]int // job id -> status
	FailLookup  map[string]int // instance id -> status for parent lookups
	FailFetch   int            // status returned by incident and job fetches

	// Observed effects.
	Deleted   []string
	Retries   map[string]int
	Logins    int
	Logouts   int
	sessionID string
}

// AddFailedJob registers a matching incident/job pair at the given time.
func (e *Engine) AddFailedJob(processInstanceID, executionID, jobID, message string) {
	e.AddFailedJobAt(processInstanceID, executionID, jobID, message, time.Date(2016, 2, 23, 9, 0, 0, 0, time.UTC))
}

// AddFailedJobAt is AddFailedJob with an explicit incident timestamp.
func (e *Engine) AddFailedJobAt(processInstanceID, executionID, jobID, message string, at time.Time) {
	e.Incidents = append(e.Incidents, types.Incident{
		ID:                "inc-" + jobID,
		ProcessInstanceID: processInstanceID,
		ExecutionID:       executionID,
		ActivityID:        "ServiceTask_1",
		IncidentTimestamp: types.EngineTime{Time: at},
		IncidentMessage:   types.StringPtr(message),
	})
	e.Jobs = append(e.Jobs, types.Job{
		ID:                   jobID,
		ExecutionID:          executionID,
		ProcessInstanceID:    processInstanceID,
		ProcessDefinitionKey: "order",
		ExceptionMessage:     types.StringPtr(message + " (detail)"),
	})
}

// SetParent records that child was started by parent.
func (e *Engine) SetParent(child, parent string) {
	if e.Parents == nil {
		e.Parents = make(map[string][]string)
	}
	e.Parents[child] = append(e.Parents[child], parent)
}

// Server is the httptest server holding every engine.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	engines map[string]*Engine
	calls   []Call
}

// New starts a server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{engines: make(map[string]*Engine)}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/admin/auth/user/{engine}/login/cockpit", s.handleLogin)
	mux.HandleFunc("POST /api/admin/auth/user/{engine}/logout", s.handleLogout)
	mux.HandleFunc("GET /engine/{engine}/incident", s.authed(s.handleIncidents))
	mux.HandleFunc("GET /engine/{engine}/job", s.authed(s.handleJobs))
	mux.HandleFunc("PUT /engine/{engine}/job/{id}/retries", s.authed(s.handleRetries))
	mux.HandleFunc("GET /engine/{engine}/process-instance/{$}", s.authed(s.handleParents))
	mux.HandleFunc("GET /engine/{engine}/process-instance/statistics", s.authed(s.handleStatistics))
	mux.HandleFunc("DELETE /engine/{engine}/process-instance/{id}", s.authed(s.handleDelete))

	s.Server = httptest.NewServer(s.record(mux))
	t.Cleanup(s.Close)
	return s
}

// AddEngine registers a new engine with no data.
func (s *Server) AddEngine(name string) *Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := &Engine{Name: name, Retries: make(map[string]int)}
	s.engines[name] = e
	return e
}

// Calls returns a copy of every request received so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// CallsFor returns the requests made against one engine.
func (s *Server) CallsFor(engine string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Engine == engine {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls = append(s.calls, Call{Engine: engineFromPath(r.URL.Path), Method: r.Method, Path: r.URL.Path})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func engineFromPath(p string) string {
	for _, prefix := range []string{"/engine/", "/api/admin/auth/user/"} {
		if rest, ok := strings.CutPrefix(p, prefix); ok {
			name, _, _ := strings.Cut(rest, "/")
			return name
		}
	}
	return ""
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) *Engine {
	e, ok := s.engines[r.PathValue("engine")]
	if !ok {
		writeError(w, http.StatusNotFound, "engine not found")
		return nil
	}
	return e
}

func (s *Server) authed(h func(http.ResponseWriter, *http.Request, *Engine)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		e := s.lookup(w, r)
		if e == nil {
			return
		}
		if e.Token != "" && r.Header.Get("Authorization") != "Bearer "+e.Token {
			writeError(w, http.StatusUnauthorized, "missing or invalid bearer token")
			return
		}
		if e.Username != "" {
			c, err := r.Cookie(sessionCookie)
			if err != nil || e.sessionID == "" || c.Value != e.sessionID {
				writeError(w, http.StatusUnauthorized, "not logged in")
				return
			}
		}
		h(w, r, e)
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(w, r)
	if e == nil {
		return
	}
	if e.FailLogin != 0 {
		writeError(w, e.FailLogin, "login failed")
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if r.PostForm.Get("username") != e.Username || r.PostForm.Get("password") != e.Password {
		writeError(w, http.StatusUnauthorized, "bad credentials")
		return
	}
	e.Logins++
	e.sessionID = "session-" + e.Name
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: e.sessionID, Path: "/"})
	writeJSON(w, map[string]string{"userId": e.Username})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.lookup(w, r)
	if e == nil {
		return
	}
	e.Logouts++
	e.sessionID = ""
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleIncidents(w http.ResponseWriter, r *http.Request, e *Engine) {
	if e.FailFetch != 0 {
		writeError(w, e.FailFetch, "incident query failed")
		return
	}
	q := r.URL.Query()
	if q.Get("incidentType") != "failedJob" {
		writeError(w, http.StatusBadRequest, "expected incidentType=failedJob")
		return
	}
	out := []types.Incident{}
	for _, inc := range e.Incidents {
		if pid := q.Get("processInstanceId"); pid != "" && inc.ProcessInstanceID != pid {
			continue
		}
		if aid := q.Get("activityId"); aid != "" && inc.ActivityID != aid {
			continue
		}
		out = append(out, inc)
	}
	writeJSON(w, out)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request, e *Engine) {
	if e.FailFetch != 0 {
		writeError(w, e.FailFetch, "job query failed")
		return
	}
	q := r.URL.Query()
	if q.Get("withException") != "true" {
		writeError(w, http.StatusBadRequest, "expected withException=true")
		return
	}
	out := []types.Job{}
	for _, job := range e.Jobs {
		if pid := q.Get("processInstanceId"); pid != "" && job.ProcessInstanceID != pid {
			continue
		}
		out = append(out, job)
	}
	writeJSON(w, out)
}

func (s *Server) handleRetries(w http.ResponseWriter, r *http.Request, e *Engine) {
	id := r.PathValue("id")
	if status := e.FailRetries[id]; status != 0 {
		writeError(w, status, "cannot set retries")
		return
	}
	var body struct {
		Retries int `json:"retries"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	e.Retries[id] = body.Retries
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleParents(w http.ResponseWriter, r *http.Request, e *Engine) {
	child := r.URL.Query().Get("subProcessInstance")
	if status := e.FailLookup[child]; status != 0 {
		writeError(w, status, "lookup failed")
		return
	}
	out := []types.ProcessInstance{}
	for _, parent := range e.Parents[child] {
		out = append(out, types.ProcessInstance{ID: parent, DefinitionID: "order:1:fake"})
	}
	writeJSON(w, out)
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request, e *Engine) {
	out := e.Statistics
	if out == nil {
		out = []types.Statistics{}
	}
	writeJSON(w, out)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, e *Engine) {
	id := r.PathValue("id")
	if status := e.FailDelete[id]; status != 0 {
		writeError(w, status, "cannot delete process instance "+id)
		return
	}
	if slices.Contains(e.Deleted, id) {
		writeError(w, http.StatusNotFound, "process instance "+id+" does not exist")
		return
	}
	e.Deleted = append(e.Deleted, id)
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"type": "RestException", "message": msg})
}
