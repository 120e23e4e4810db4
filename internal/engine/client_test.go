package engine

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	gw, err := NewGateway(server.URL, "order-engine")
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	return gw
}

// expectRequest checks method and path from inside a handler.
func expectRequest(t *testing.T, r *http.Request, method, path string) {
	t.Helper()
	if r.Method != method || r.URL.Path != path {
		t.Errorf("request = %s %s, want %s %s", r.Method, r.URL.Path, method, path)
	}
}

func expectQuery(t *testing.T, r *http.Request, key, want string) {
	t.Helper()
	if got := r.URL.Query().Get(key); got != want {
		t.Errorf("query %s = %q, want %q", key, got, want)
	}
}

func TestNewGateway(t *testing.T) {
	gw, err := NewGateway("https://bpm.example.com/", "default")
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}

	if gw.BaseURL != "https://bpm.example.com" {
		t.Errorf("BaseURL = %q, want trailing slash trimmed", gw.BaseURL)
	}
	if gw.Name() != "default" {
		t.Errorf("Name() = %q", gw.Name())
	}
	if gw.HTTPClient.Jar == nil {
		t.Error("each gateway needs its own cookie jar")
	}
	if gw.HTTPClient.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", gw.HTTPClient.Timeout, DefaultTimeout)
	}
	if got := gw.Header("Accept"); got != acceptHeader {
		t.Errorf("Accept = %q", got)
	}
}

func TestNewGatewayRequiresURLAndEngine(t *testing.T) {
	if _, err := NewGateway("", "default"); err == nil {
		t.Error("NewGateway without a URL succeeded")
	}
	if _, err := NewGateway("https://bpm.example.com", ""); err == nil {
		t.Error("NewGateway without an engine succeeded")
	}
}

func TestNewGatewayDistinctJars(t *testing.T) {
	a, err := NewGateway("https://bpm.example.com", "a")
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewGateway("https://bpm.example.com", "b")
	if err != nil {
		t.Fatal(err)
	}
	if a.HTTPClient.Jar == b.HTTPClient.Jar {
		t.Error("gateways share a cookie jar")
	}
}

func TestWithTLSVerifyDisabled(t *testing.T) {
	gw, err := NewGateway("https://bpm.example.com", "default", WithTLSVerify(false))
	if err != nil {
		t.Fatal(err)
	}
	tr, ok := gw.HTTPClient.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("Transport = %T, want a cloned *http.Transport", gw.HTTPClient.Transport)
	}
	if !tr.TLSClientConfig.InsecureSkipVerify {
		t.Error("InsecureSkipVerify = false")
	}

	gw, err = NewGateway("https://bpm.example.com", "default", WithTLSVerify(true))
	if err != nil {
		t.Fatal(err)
	}
	if gw.HTTPClient.Transport != nil {
		t.Errorf("verified gateway has custom transport %T", gw.HTTPClient.Transport)
	}
}

func TestGetIncidents(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		expectRequest(t, r, http.MethodGet, "/engine/order-engine/incident")
		expectQuery(t, r, "incidentType", "failedJob")
		expectQuery(t, r, "processInstanceId", "p1")
		expectQuery(t, r, "activityId", "ServiceTask_1")
		if got := r.Header.Get("Accept"); got != acceptHeader {
			t.Errorf("Accept = %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{
			"id": "inc-1",
			"processInstanceId": "p1",
			"executionId": "e1",
			"activityId": "ServiceTask_1",
			"incidentTimestamp": "2016-02-23T09:00:00.000+0100",
			"incidentMessage": "boom"
		}]`))
	})

	incidents, err := gw.GetIncidents(context.Background(), "p1", "ServiceTask_1")
	if err != nil {
		t.Fatalf("GetIncidents: %v", err)
	}
	if len(incidents) != 1 {
		t.Fatalf("got %d incidents, want 1", len(incidents))
	}
	inc := incidents[0]
	if inc.ExecutionID != "e1" {
		t.Errorf("ExecutionID = %q", inc.ExecutionID)
	}
	if inc.IncidentMessage == nil || *inc.IncidentMessage != "boom" {
		t.Errorf("IncidentMessage = %v", inc.IncidentMessage)
	}
	if inc.IncidentTimestamp.IsZero() {
		t.Error("IncidentTimestamp not parsed")
	}
}

func TestGetIncidentsOmitsEmptyFilters(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Has("processInstanceId") || q.Has("activityId") {
			t.Errorf("empty filters sent: %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`[]`))
	})

	incidents, err := gw.GetIncidents(context.Background(), "", "")
	if err != nil {
		t.Fatalf("GetIncidents: %v", err)
	}
	if len(incidents) != 0 {
		t.Errorf("got %d incidents", len(incidents))
	}
}

func TestGetJobs(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		expectRequest(t, r, http.MethodGet, "/engine/order-engine/job")
		expectQuery(t, r, "withException", "true")
		_, _ = w.Write([]byte(`[
			{"id": "j1", "executionId": "e1", "retries": 0, "exceptionMessage": "boom-detail"},
			{"id": "j2", "executionId": "e2", "retries": 0, "exceptionMessage": null}
		]`))
	})

	jobs, err := gw.GetJobs(context.Background(), "")
	if err != nil {
		t.Fatalf("GetJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
	if jobs[0].ID != "j1" {
		t.Errorf("first job = %q", jobs[0].ID)
	}
	if jobs[1].ExceptionMessage != nil {
		t.Errorf("null exceptionMessage decoded as %q", *jobs[1].ExceptionMessage)
	}
}

func TestPutRetries(t *testing.T) {
	var calls int
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		expectRequest(t, r, http.MethodPut, "/engine/order-engine/job/j1/retries")
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}

		var body map[string]int
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if len(body) != 1 || body["retries"] != 1 {
			t.Errorf("body = %v, want {retries: 1}", body)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := gw.PutRetries(ctx, "j1", 1); err != nil {
			t.Fatalf("PutRetries #%d: %v", i+1, err)
		}
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestListSubProcessInstances(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		expectRequest(t, r, http.MethodGet, "/engine/order-engine/process-instance/")
		expectQuery(t, r, "subProcessInstance", "child")
		_, _ = w.Write([]byte(`[{"id": "parent", "definitionId": "order:1:x", "ended": false}]`))
	})

	parents, err := gw.ListSubProcessInstances(context.Background(), "child")
	if err != nil {
		t.Fatalf("ListSubProcessInstances: %v", err)
	}
	if len(parents) != 1 || parents[0].ID != "parent" {
		t.Errorf("parents = %+v", parents)
	}
}

func TestDeleteProcessInstance(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		expectRequest(t, r, http.MethodDelete, "/engine/order-engine/process-instance/p1")
		w.WriteHeader(http.StatusNoContent)
	})

	if err := gw.DeleteProcessInstance(context.Background(), "p1"); err != nil {
		t.Fatalf("DeleteProcessInstance: %v", err)
	}
}

func TestGetStatistics(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		expectRequest(t, r, http.MethodGet, "/engine/order-engine/process-instance/statistics")
		expectQuery(t, r, "incidents", "true")
		_, _ = w.Write([]byte(`[{"id": "order:1:x", "instances": 4, "failedJobs": 1,
			"incidents": [{"incidentType": "failedJob", "incidentCount": 1}],
			"definition": {"key": "order"}}]`))
	})

	stats, err := gw.GetStatistics(context.Background())
	if err != nil {
		t.Fatalf("GetStatistics: %v", err)
	}
	if len(stats) != 1 || stats[0].TotalIncidents() != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestRequestErrorOnNon2xx(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"type":"InvalidRequestException","message":"not found"}`))
	})

	err := gw.DeleteProcessInstance(context.Background(), "gone")
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *RequestError in chain, got %T: %v", err, err)
	}
	if reqErr.Engine != "order-engine" || reqErr.Method != http.MethodDelete || reqErr.Path != "/process-instance/gone" {
		t.Errorf("RequestError = %s %s on %s", reqErr.Method, reqErr.Path, reqErr.Engine)
	}
	if reqErr.StatusCode != http.StatusNotFound || !strings.Contains(reqErr.Body, "not found") {
		t.Errorf("RequestError status %d body %q", reqErr.StatusCode, reqErr.Body)
	}
	if !IsStatus(err, http.StatusNotFound) || StatusCode(err) != http.StatusNotFound {
		t.Errorf("IsStatus/StatusCode disagree with %v", err)
	}
}

func TestRequestErrorNoRetry(t *testing.T) {
	attempts := 0
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := gw.GetJobs(context.Background(), "")
	if !IsStatus(err, http.StatusServiceUnavailable) {
		t.Fatalf("GetJobs error = %v, want a 503", err)
	}
	if attempts != 1 {
		t.Errorf("gateway must not retry on its own, got %d attempts", attempts)
	}
}

func TestRequestErrorBodyTruncated(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(strings.Repeat("x", 2000)))
	})

	_, err := gw.GetIncidents(context.Background(), "", "")
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *RequestError, got %v", err)
	}
	if len(reqErr.Body) != maxErrorBody {
		t.Errorf("body length = %d, want %d", len(reqErr.Body), maxErrorBody)
	}
}

func TestAdminPostAndHeaders(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		expectRequest(t, r, http.MethodPost, "/api/admin/auth/user/order-engine/login/cockpit")
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type = %q", ct)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer abc" {
			t.Errorf("Authorization = %q", auth)
		}

		body, _ := io.ReadAll(r.Body)
		if string(body) != "password=secret&username=demo" {
			t.Errorf("body = %q", body)
		}
		w.WriteHeader(http.StatusOK)
	})

	gw.SetHeader("Authorization", "Bearer abc")
	err := gw.AdminPost(context.Background(), "/login/cockpit", map[string][]string{
		"username": {"demo"},
		"password": {"secret"},
	})
	if err != nil {
		t.Fatalf("AdminPost: %v", err)
	}
}

func TestAdminPostFailsLoudly(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := gw.AdminPost(context.Background(), "/login/cockpit", nil)
	if !IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("AdminPost error = %v, want a 401", err)
	}
}

func TestSessionCookieKeptPerGateway(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/login/cockpit") {
			http.SetCookie(w, &http.Cookie{Name: "JSESSIONID", Value: "abc", Path: "/"})
			return
		}
		if c, err := r.Cookie("JSESSIONID"); err != nil || c.Value != "abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	ctx := context.Background()
	first, err := NewGateway(server.URL, "a")
	if err != nil {
		t.Fatal(err)
	}
	if err := first.AdminPost(ctx, "/login/cockpit", nil); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := first.GetJobs(ctx, ""); err != nil {
		t.Fatalf("GetJobs with session: %v", err)
	}

	second, err := NewGateway(server.URL, "b")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := second.GetJobs(ctx, ""); !IsStatus(err, http.StatusUnauthorized) {
		t.Errorf("session must not leak into another gateway, got %v", err)
	}
}
