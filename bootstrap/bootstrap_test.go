package bootstrap

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/vaultflow/agent"
	"github.com/kbukum/vaultflow/config"
	"github.com/kbukum/vaultflow/logger"
	"github.com/kbukum/vaultflow/search"
	"github.com/kbukum/vaultflow/server"
)

var fixedNow = time.Date(2024, 3, 5, 9, 30, 0, 0, time.UTC)

func testConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	cfg := &config.AppConfig{}
	cfg.Vault.Path = t.TempDir()
	cfg.Agents.Timezone = "UTC"
	qdrant := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{},"status":"ok"}`))
	}))
	t.Cleanup(qdrant.Close)
	cfg.Vector.URL = qdrant.URL
	return cfg
}

func newTestApp(t *testing.T, cfg *config.AppConfig, opts ...Option) *App {
	t.Helper()
	opts = append([]Option{
		WithLogger(logger.NewNop()),
		WithClock(func() time.Time { return fixedNow }),
		WithSummaryOutput(nil),
		WithGracefulTimeout(5 * time.Second),
	}, opts...)
	app, err := NewApp(cfg, opts...)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	return app
}

func parseAgents(t *testing.T, doc string) []agent.Config {
	t.Helper()
	cfgs, err := agent.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("agent.Parse: %v", err)
	}
	return cfgs
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	vaultDir := filepath.Join(dir, "vault")
	path := filepath.Join(dir, "vaultflow.yaml")
	content := "environment: staging\n" +
		"vault:\n  path: " + vaultDir + "\n" +
		"scheduler:\n  workers: 2\n" +
		"server:\n  enabled: true\n  port: 9100\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AI_STACK_QDRANT_COLLECTION", "notes")

	cfg, err := LoadConfig(path, "")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Environment != "staging" || cfg.Vault.Path != vaultDir {
		t.Errorf("loaded = %s %s", cfg.Environment, cfg.Vault.Path)
	}
	if cfg.Scheduler.Workers != 2 || !cfg.Server.Enabled || cfg.Server.Port != 9100 {
		t.Errorf("scheduler/server = %+v %+v", cfg.Scheduler, cfg.Server)
	}
	if cfg.Vector.Collection != "notes" {
		t.Errorf("env override not applied: %q", cfg.Vector.Collection)
	}
	if cfg.Vault.Folders.Daily != "Notes/Journal/Daily" || cfg.Scheduler.Tick != time.Second {
		t.Error("defaults not applied")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vaultflow.yaml")
	if err := os.WriteFile(path, []byte("environment: moon\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path, ""); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestNewApp(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	if n := app.Steps.Len(); n != 34 {
		t.Errorf("registered steps = %d, want 34", n)
	}
	if app.Deps.Vault == nil || app.Deps.Index == nil || app.Deps.Transcriber == nil {
		t.Errorf("deps not wired: %+v", app.Deps)
	}
	if _, ok := app.Deps.Services["qdrant"]; !ok {
		t.Error("qdrant readiness check missing")
	}
	if app.Components.Get("telemetry") != nil {
		t.Error("telemetry registered while disabled")
	}
	if app.Runner.Registry() != app.Steps {
		t.Error("runner should resolve from the app registry")
	}
}

func TestNewApp_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Environment = "moon"
	if _, err := NewApp(cfg, WithLogger(logger.NewNop())); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewApp_HashEmbedder(t *testing.T) {
	cfg := testConfig(t)
	cfg.Vector.EmbedModel = "hash"
	cfg.Vector.VectorSize = 32
	app := newTestApp(t, cfg)
	vecs, err := app.Deps.Index.Embedder().Embed(context.Background(), []string{"hello"})
	if err != nil || len(vecs[0]) != 32 {
		t.Fatalf("Embed = %v, %v", vecs, err)
	}
}

func TestRunTask_Lifecycle(t *testing.T) {
	app := newTestApp(t, testConfig(t))

	var order []string
	app.OnStart(func(context.Context) error { order = append(order, "start"); return nil })
	app.OnReady(func(context.Context) error { order = append(order, "ready"); return nil })
	app.OnStop(func(context.Context) error { order = append(order, "stop"); return nil })

	cfgs := parseAgents(t, "id: hello\npipeline:\n  - step: echo\n    with: {msg: hi}\n")
	err := app.RunTask(context.Background(), func(ctx context.Context) error {
		order = append(order, "task")
		out, err := app.Runner.Run(ctx, &cfgs[0])
		if err != nil {
			return err
		}
		if out["last_msg"] != "hi" {
			t.Errorf("out = %v", out)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
	if got := strings.Join(order, ","); got != "start,ready,task,stop" {
		t.Errorf("order = %s", got)
	}
}

func TestRunTask_TaskErrorWins(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	app.OnStop(func(context.Context) error { return errors.New("stop failed") })

	want := errors.New("task failed")
	if err := app.RunTask(context.Background(), func(context.Context) error { return want }); !errors.Is(err, want) {
		t.Errorf("err = %v, want task error", err)
	}
	if err := app.RunTask(context.Background(), func(context.Context) error { return nil }); err == nil {
		t.Error("stop error should surface when the task succeeds")
	}
}

func TestRunTask_HookFailure(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	app.OnStart(func(context.Context) error { return errors.New("boom") })
	ran := false
	err := app.RunTask(context.Background(), func(context.Context) error { ran = true; return nil })
	if err == nil || ran {
		t.Errorf("err = %v, ran = %v", err, ran)
	}
}

const agentsDoc = `
- id: digest
  schedule: {cron: "0 8 * * *"}
  pipeline: [{step: echo, with: {msg: morning}}]
- id: broken
  schedule: {cron: "not a cron"}
  pipeline: [{step: echo}]
- id: off
  enabled: false
  schedule: {cron: "* * * * *"}
  pipeline: [{step: echo}]
`

func TestSchedule(t *testing.T) {
	var summary bytes.Buffer
	app := newTestApp(t, testConfig(t), WithSummaryOutput(&summary))

	skipped, err := app.Schedule(parseAgents(t, agentsDoc))
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(skipped) != 2 {
		t.Fatalf("skipped = %+v, want broken and off", skipped)
	}
	if app.Components.Get("scheduler") == nil {
		t.Fatal("scheduler not registered")
	}
	if app.Components.Get("http-server") != nil {
		t.Error("admin server registered while disabled")
	}
	info, ok := app.Scheduler.Job("digest")
	if !ok || !info.Next.Equal(time.Date(2024, 3, 6, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("digest job = %+v", info)
	}
	if _, err := app.Schedule(nil); err == nil {
		t.Error("second Schedule should fail")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := app.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	out := summary.String()
	for _, want := range []string{"digest", "broken: skipped", "Health Check"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
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

func TestSchedule_AdminServer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Enabled = true
	cfg.Server.Port = freePort(t)
	cfg.Server.AdminSecret = "0123456789abcdef-secret"
	cfg.Server.Events = true
	app := newTestApp(t, cfg)

	if _, err := app.Schedule(parseAgents(t, agentsDoc)); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	srv, ok := app.Components.Get("http-server").(*server.Component)
	if !ok {
		t.Fatal("admin server not registered")
	}

	tokens, err := app.TokenService()
	if err != nil {
		t.Fatalf("TokenService: %v", err)
	}
	token, err := tokens.Generate("ops", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	err = app.RunTask(context.Background(), func(ctx context.Context) error {
		base := "http://" + srv.Describe().Details

		resp, err := http.Get(base + "/jobs")
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("anonymous /jobs = %d", resp.StatusCode)
		}

		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, base+"/jobs", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err = http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		var body struct {
			Data []struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return err
		}
		if len(body.Data) != 1 || body.Data[0].ID != "digest" {
			t.Errorf("jobs = %+v", body.Data)
		}

		streamCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		req, _ = http.NewRequestWithContext(streamCtx, http.MethodGet, base+"/jobs/events", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		stream, err := http.DefaultClient.Do(req)
		if err != nil {
			return err
		}
		defer stream.Body.Close()
		first, _ := bufio.NewReader(stream.Body).ReadString('\n')
		if first != "event: connected\n" {
			t.Errorf("events stream starts with %q", first)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunTask: %v", err)
	}
}

func TestTokenService_NoSecret(t *testing.T) {
	app := newTestApp(t, testConfig(t))
	if _, err := app.TokenService(); err == nil {
		t.Error("expected error without admin secret")
	}
}

func TestCappedSearcher(t *testing.T) {
	inner := &recordingSearcher{}
	c := capped{Searcher: inner, max: 10}
	for _, tt := range []struct{ in, want int }{{0, 10}, {5, 5}, {50, 10}} {
		c.Search(context.Background(), "q", tt.in)
		if inner.limit != tt.want {
			t.Errorf("limit %d -> %d, want %d", tt.in, inner.limit, tt.want)
		}
	}
}

type recordingSearcher struct {
	limit int
}

func (r *recordingSearcher) Search(_ context.Context, _ string, limit int) search.Iterator {
	r.limit = limit
	return search.FromSlice(nil)
}

func TestSchedule_LifecycleHooks(t *testing.T) {
	var logs bytes.Buffer
	log := logger.NewWithWriter(&logger.Config{Level: "debug", Format: "json"}, "vaultflow", &logs)
	app := newTestApp(t, testConfig(t), WithLogger(log))

	if _, err := app.Schedule(parseAgents(t, agentsDoc)); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if len(app.onStart) != 1 || len(app.onStop) != 1 {
		t.Fatalf("hooks = %d start, %d stop; want 1 each", len(app.onStart), len(app.onStop))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := app.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var totals []string
	sc := bufio.NewScanner(&logs)
	for sc.Scan() {
		var line map[string]any
		if err := json.Unmarshal(sc.Bytes(), &line); err != nil {
			continue
		}
		if line["message"] == "Job totals" {
			totals = append(totals, line["job"].(string))
			if line["runs"] != float64(0) {
				t.Errorf("runs = %v, want 0", line["runs"])
			}
		}
	}
	if !slices.Contains(totals, "digest") {
		t.Errorf("job totals logged for %v, want digest", totals)
	}
	if !strings.Contains(logs.String(), "Vector collection ready") {
		t.Errorf("vector collection not prepared on start:\n%s", logs.String())
	}
}
