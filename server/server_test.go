package server

import (
	"context"
	"bufio"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/vaultflow/auth"
	"github.com/kbukum/vaultflow/component"
	apperrors "github.com/kbukum/vaultflow/errors"
	"github.com/kbukum/vaultflow/scheduler"
	"github.com/kbukum/vaultflow/sse"
)

type fakeJobs struct {
	mu        sync.Mutex
	jobs      map[string]scheduler.JobInfo
	triggered []string
}

func newFakeJobs(ids ...string) *fakeJobs {
	f := &fakeJobs{jobs: make(map[string]scheduler.JobInfo)}
	for _, id := range ids {
		f.jobs[id] = scheduler.JobInfo{ID: id, Schedule: "*/5 * * * *", State: scheduler.StateIdle}
	}
	return f
}

func (f *fakeJobs) Jobs() []scheduler.JobInfo {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]scheduler.JobInfo, 0, len(f.jobs))
	for _, j := range f.jobs {
		out = append(out, j)
	}
	return out
}

func (f *fakeJobs) Job(id string) (scheduler.JobInfo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[id]
	return j, ok
}

func (f *fakeJobs) Trigger(id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.jobs[id]; !ok {
		return false, apperrors.NotFound("job", id)
	}
	f.triggered = append(f.triggered, id)
	return true, nil
}

func newTestServer(t *testing.T, admin *Admin) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := New(Config{Host: "127.0.0.1", Port: 0}, nil)
	admin.Register(s.Engine())
	return s
}

func do(t *testing.T, h http.Handler, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		components []component.Health
		wantStatus int
		want       string
	}{
		{"no components", nil, http.StatusOK, "up"},
		{"degraded", []component.Health{
			{Name: "scheduler", Status: component.StatusHealthy},
			{Name: "qdrant", Status: component.StatusDegraded},
		}, http.StatusOK, "degraded"},
		{"unhealthy", []component.Health{
			{Name: "qdrant", Status: component.StatusDegraded},
			{Name: "scheduler", Status: component.StatusUnhealthy},
		}, http.StatusServiceUnavailable, "down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, &Admin{
				Service: "vaultflow",
				Health:  func(context.Context) []component.Health { return tt.components },
			})
			rec := do(t, s.Handler(), http.MethodGet, "/health", "")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			body := decode(t, rec)
			if body["status"] != tt.want || body["service"] != "vaultflow" {
				t.Errorf("body = %v", body)
			}
			if rec.Header().Get("X-Request-Id") == "" {
				t.Error("missing request id header")
			}
		})
	}
}

func TestVersionAndSteps(t *testing.T) {
	s := newTestServer(t, &Admin{Steps: func() []string { return []string{"echo", "search_web"} }})

	rec := do(t, s.Handler(), http.MethodGet, "/version", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("version status = %d", rec.Code)
	}
	if data, _ := decode(t, rec)["data"].(map[string]any); data["version"] == nil {
		t.Errorf("version body = %s", rec.Body.String())
	}

	rec = do(t, s.Handler(), http.MethodGet, "/steps", "")
	if got := strings.TrimSpace(rec.Body.String()); got != `{"data":["echo","search_web"]}` {
		t.Errorf("steps body = %s", got)
	}
}

func TestJobs_NoAuth(t *testing.T) {
	jobs := newFakeJobs("daily-digest")
	s := newTestServer(t, &Admin{Jobs: jobs})

	rec := do(t, s.Handler(), http.MethodGet, "/jobs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	if data := decode(t, rec)["data"].([]any); len(data) != 1 {
		t.Errorf("jobs = %v", data)
	}

	rec = do(t, s.Handler(), http.MethodGet, "/jobs/daily-digest", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if data := decode(t, rec)["data"].(map[string]any); data["id"] != "daily-digest" || data["state"] != "idle" {
		t.Errorf("job = %v", data)
	}

	rec = do(t, s.Handler(), http.MethodGet, "/jobs/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing status = %d", rec.Code)
	}
	errBody := decode(t, rec)["error"].(map[string]any)
	if errBody["code"] != string(apperrors.ErrCodeNotFound) {
		t.Errorf("error = %v", errBody)
	}

	rec = do(t, s.Handler(), http.MethodPost, "/jobs/daily-digest/trigger", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("trigger status = %d", rec.Code)
	}
	if data := decode(t, rec)["data"].(map[string]any); data["dispatched"] != true {
		t.Errorf("trigger = %v", data)
	}
	if len(jobs.triggered) != 1 {
		t.Errorf("triggered = %v", jobs.triggered)
	}
}

func TestJobs_Auth(t *testing.T) {
	svc, err := auth.NewService(auth.Config{Secret: "0123456789abcdef0123"})
	if err != nil {
		t.Fatal(err)
	}
	full, _ := svc.Generate("ops", time.Hour)
	readOnly, _ := svc.Generate("viewer", time.Hour, auth.ScopeRead)

	jobs := newFakeJobs("inbox")
	s := newTestServer(t, &Admin{Jobs: jobs, Tokens: svc})

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		want   int
	}{
		{"no token", http.MethodGet, "/jobs", "", http.StatusUnauthorized},
		{"bad token", http.MethodGet, "/jobs", "garbage", http.StatusUnauthorized},
		{"read ok", http.MethodGet, "/jobs", readOnly, http.StatusOK},
		{"trigger forbidden", http.MethodPost, "/jobs/inbox/trigger", readOnly, http.StatusForbidden},
		{"trigger ok", http.MethodPost, "/jobs/inbox/trigger", full, http.StatusAccepted},
		{"trigger unknown", http.MethodPost, "/jobs/nope/trigger", full, http.StatusNotFound},
		{"health open", http.MethodGet, "/health", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s.Handler(), tt.method, tt.path, tt.token)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestTrigger_RateLimited(t *testing.T) {
	s := newTestServer(t, &Admin{Jobs: newFakeJobs("inbox"), TriggerRate: 0.001})

	var codes []int
	for range 5 {
		codes = append(codes, do(t, s.Handler(), http.MethodPost, "/jobs/inbox/trigger", "").Code)
	}
	if codes[0] != http.StatusAccepted {
		t.Errorf("first trigger = %d", codes[0])
	}
	if codes[4] != http.StatusTooManyRequests {
		t.Errorf("codes = %v, want the last one limited", codes)
	}
}

func TestJobEvents(t *testing.T) {
	hub := sse.NewHub(nil)
	go hub.Run()
	defer hub.Stop()

	s := newTestServer(t, &Admin{Jobs: newFakeJobs("digest"), Events: hub})
	ts := httptest.NewServer(s.Engine())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/jobs/events?job=digest", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /jobs/events: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	lines := bufio.NewScanner(resp.Body)
	var got []string
	for lines.Scan() {
		if line := lines.Text(); line != "" {
			got = append(got, line)
		}
		if len(got) == 2 {
			hub.Publish("digest", sse.EventTypeJob, sse.JobEvent{ID: "digest", From: "idle", To: "firing"})
		}
		if len(got) == 4 {
			break
		}
	}
	if len(got) != 4 || got[0] != "event: connected" || got[2] != "event: job" || !strings.Contains(got[3], `"to":"firing"`) {
		t.Errorf("stream = %q", got)
	}

	// a job id route still resolves next to /jobs/events
	if rec := do(t, s.Engine(), http.MethodGet, "/jobs/digest", ""); rec.Code != http.StatusOK {
		t.Errorf("/jobs/digest = %d", rec.Code)
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := New(Config{}, nil)
	s.Engine().GET("/boom", func(*gin.Context) { panic("boom") })

	rec := do(t, s.Handler(), http.MethodGet, "/boom", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if decode(t, rec)["error"] == nil {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestServer_StartStop(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s := New(Config{Port: freePort(t)}, nil)
	(&Admin{}).Register(s.Engine())
	sc := NewComponent(s)

	if h := sc.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Errorf("health before start = %v", h.Status)
	}
	if err := sc.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = sc.Stop(context.Background()) }()

	if h := sc.Health(context.Background()); h.Status != component.StatusHealthy {
		t.Errorf("health after start = %v", h.Status)
	}
	resp, err := http.Get("http://" + s.Addr() + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if d := sc.Describe(); d.Type != "server" || d.Details != s.Addr() {
		t.Errorf("describe = %+v", d)
	}
}

func TestComponent_Routes(t *testing.T) {
	s := newTestServer(t, &Admin{})
	routes := NewComponent(s).Routes()
	if len(routes) != 6 {
		t.Fatalf("routes = %d, want 6", len(routes))
	}
	if routes[0].Path != "/jobs" {
		t.Errorf("first route = %+v", routes[0])
	}
	last := routes[len(routes)-1]
	if !systemPaths[last.Path] {
		t.Errorf("system routes should sort last, got %+v", last)
	}
}

func TestFormatHandlerName(t *testing.T) {
	tests := []struct{ in, want string }{
		{"github.com/kbukum/vaultflow/server.(*Admin).trigger-fm", "Admin.trigger"},
		{"main.handler", "handler"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := formatHandlerName(tt.in); got != tt.want {
			t.Errorf("formatHandlerName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConfig(t *testing.T) {
	var c Config
	c.ApplyDefaults()
	if c.Addr() != "127.0.0.1:8765" || c.TriggerRate != 1 {
		t.Errorf("defaults = %+v", c)
	}
	bad := []Config{{Port: 70000}, {ReadTimeout: -1}, {TriggerRate: -2}}
	for _, b := range bad {
		if err := b.Validate(); err == nil {
			t.Errorf("Validate(%+v) = nil", b)
		}
	}
}
