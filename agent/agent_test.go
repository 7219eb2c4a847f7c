package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/vaultflow/errors"
	"github.com/kbukum/vaultflow/step"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agents.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParse_SingleMapping(t *testing.T) {
	cfgs, err := Parse([]byte(`
id: echo_agent
inputs: {}
pipeline:
  - step: echo
    with: {msg: hi}
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfgs) != 1 || cfgs[0].ID != "echo_agent" {
		t.Fatalf("cfgs = %+v", cfgs)
	}
	if cfgs[0].Pipeline[0].Step != "echo" || cfgs[0].Pipeline[0].With["msg"] != "hi" {
		t.Errorf("pipeline = %+v", cfgs[0].Pipeline)
	}
}

func TestParse_Sequence(t *testing.T) {
	cfgs, err := Parse([]byte(`
- id: a
  pipeline: [{step: echo}]
- id: b
  schedule: {cron: "*/5 * * * *"}
  pipeline: [{step: echo}]
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfgs) != 2 || cfgs[1].ID != "b" {
		t.Fatalf("cfgs = %+v", cfgs)
	}
	if cfgs[1].Schedule.Expr != "*/5 * * * *" {
		t.Errorf("mapping schedule = %q", cfgs[1].Schedule.Expr)
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	for _, doc := range []string{"", "   \n", "~\n", "# only a comment\n"} {
		cfgs, err := Parse([]byte(doc))
		if err != nil || len(cfgs) != 0 {
			t.Errorf("Parse(%q) = %v, %v", doc, cfgs, err)
		}
	}
}

func TestParse_InvalidShapes(t *testing.T) {
	tests := map[string]string{
		"scalar":      "just text",
		"broken yaml": "id: [unclosed",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); !errors.Is(err, errors.ErrCodeConfiguration) {
				t.Errorf("expected CONFIGURATION error, got %v", err)
			}
		})
	}
}

func TestParse_BadAgentKeepsOthers(t *testing.T) {
	reg := step.NewRegistry()
	reg.MustRegister(step.New("echo", noop))

	cfgs, err := Parse([]byte(`
- id: good
  schedule: "0 9 * * *"
  pipeline: [{step: echo}]
- id: bad
  retries: two
  pipeline: [{step: echo}]
- 42
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(cfgs) != 3 {
		t.Fatalf("cfgs = %d, want 3", len(cfgs))
	}
	if cfgs[0].ID != "good" || cfgs[0].Problem() != "" {
		t.Errorf("good agent = %+v", cfgs[0])
	}
	if cfgs[1].ID != "bad" || !strings.Contains(cfgs[1].Problem(), "agents[1]") {
		t.Errorf("bad agent = %q %q", cfgs[1].ID, cfgs[1].Problem())
	}
	if !strings.Contains(cfgs[2].Problem(), "must be a mapping") {
		t.Errorf("scalar item problem = %q", cfgs[2].Problem())
	}

	if _, err := Select(cfgs, "good"); err != nil {
		t.Errorf("Select(good): %v", err)
	}
	if _, err := Select(cfgs, "bad"); !errors.Is(err, errors.ErrCodeConfiguration) {
		t.Errorf("Select(bad) = %v, want CONFIGURATION", err)
	}

	report := Validate(cfgs, reg)
	if len(report.Issues) != 2 || report.Issues[0].AgentID != "bad" || report.Issues[0].Field != "definition" {
		t.Errorf("issues = %+v", report.Issues)
	}
}

func TestParse_SingleBadAgent(t *testing.T) {
	cfgs, err := Parse([]byte("id: x\npipeline: 3\n"))
	if err != nil || len(cfgs) != 1 {
		t.Fatalf("Parse = %+v, %v", cfgs, err)
	}
	if cfgs[0].ID != "x" || cfgs[0].Problem() == "" {
		t.Errorf("cfg = %q %q", cfgs[0].ID, cfgs[0].Problem())
	}
	if _, err := Select(cfgs, ""); !errors.Is(err, errors.ErrCodeConfiguration) {
		t.Errorf("Select = %v, want CONFIGURATION", err)
	}
}

func TestParse_MissingIDTolerated(t *testing.T) {
	cfgs, err := Parse([]byte("pipeline: [{step: echo}]\n"))
	if err != nil || len(cfgs) != 1 || cfgs[0].ID != "" {
		t.Fatalf("Parse = %+v, %v", cfgs, err)
	}
}

func TestDefaults(t *testing.T) {
	cfgs, _ := Parse([]byte("id: x\npipeline: [{step: echo}]\n"))
	cfg := cfgs[0]
	if !cfg.IsEnabled() {
		t.Error("enabled by default")
	}
	if cfg.RetryCount() != 2 {
		t.Errorf("RetryCount = %d", cfg.RetryCount())
	}
	if cfg.BackoffDuration() != 500*time.Millisecond {
		t.Errorf("BackoffDuration = %v", cfg.BackoffDuration())
	}
	if cfg.Schedule.IsSet() {
		t.Error("no schedule declared")
	}
}

func TestExplicitValues(t *testing.T) {
	cfgs, _ := Parse([]byte("id: x\nenabled: false\nretries: 0\nbackoff: 1.5\npipeline: []\n"))
	cfg := cfgs[0]
	if cfg.IsEnabled() || cfg.RetryCount() != 0 || cfg.BackoffDuration() != 1500*time.Millisecond {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestScheduleShapes(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		problem bool
		parseOK bool
	}{
		{"string", `schedule: "0 9 * * *"`, false, true},
		{"mapping", `schedule: {cron: "0 9 * * 1"}`, false, true},
		{"number", `schedule: 5`, true, false},
		{"list", `schedule: [a, b]`, true, false},
		{"mapping without cron", `schedule: {every: 5m}`, true, false},
		{"four fields", `schedule: "0 9 * *"`, false, false},
		{"six fields", `schedule: "0 0 9 * * *"`, false, false},
		{"descriptor", `schedule: "@daily"`, false, false},
		{"garbage fields", `schedule: "a b c d e"`, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfgs, err := Parse([]byte("id: x\n" + tc.doc + "\n"))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			s := cfgs[0].Schedule
			if !s.IsSet() {
				t.Fatal("schedule should be set")
			}
			if (s.Problem() != "") != tc.problem {
				t.Errorf("Problem() = %q", s.Problem())
			}
			if _, err := s.Parse(); (err == nil) != tc.parseOK {
				t.Errorf("Parse() err = %v", err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "id: a\npipeline: [{step: echo}]\n")
	cfgs, err := Load(path)
	if err != nil || len(cfgs) != 1 {
		t.Fatalf("Load = %v, %v", cfgs, err)
	}

	// Edits are picked up on the next call.
	if err := os.WriteFile(path, []byte("- id: a\n- id: b\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfgs, _ = Load(path)
	if len(cfgs) != 2 {
		t.Errorf("expected reload to see 2 agents, got %d", len(cfgs))
	}
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestFindAndSelect(t *testing.T) {
	cfgs := []Config{{ID: "a"}, {ID: "b"}}

	if c, err := Find(cfgs, "b"); err != nil || c.ID != "b" {
		t.Errorf("Find(b) = %v, %v", c, err)
	}
	if _, err := Find(cfgs, "zzz"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Find(zzz) err = %v", err)
	}
	if _, err := Select(cfgs, ""); !errors.Is(err, errors.ErrCodeConfiguration) {
		t.Errorf("Select without id on a list should fail, got %v", err)
	}
	if c, err := Select(cfgs[:1], ""); err != nil || c.ID != "a" {
		t.Errorf("Select single = %v, %v", c, err)
	}
	if _, err := Select(nil, ""); err == nil {
		t.Error("Select on empty document should fail")
	}
}

func noop(context.Context, step.Params, step.Context) (step.Context, error) { return nil, nil }

func TestValidate(t *testing.T) {
	reg := step.NewRegistry()
	reg.MustRegister(step.New("echo", noop))

	cfgs, err := Parse([]byte(`
- id: good
  schedule: "0 9 * * *"
  pipeline: [{step: echo}]
- id: good
  pipeline: [{step: echo}]
- id: bad
  schedule: "0 0 9 * * *"
  retries: -1
  pipeline:
    - step: nope
    - with: {x: 1}
- pipeline: []
`))
	if err != nil {
		t.Fatal(err)
	}

	report := Validate(cfgs, reg)
	if report.OK() {
		t.Fatal("expected issues")
	}

	want := []string{
		"good: id: duplicate id",
		`bad: pipeline[0].step: unknown step "nope"`,
		"bad: pipeline[1].step: is required",
		"bad: retries:",
		"bad: schedule: invalid cron",
		"(no id): id: is required",
		"(no id): pipeline: must contain at least one step",
	}
	msg := report.Err().Error()
	for _, w := range want {
		if !strings.Contains(msg, w) {
			t.Errorf("report missing %q in:\n%s", w, msg)
		}
	}
}

func TestValidate_Clean(t *testing.T) {
	reg := step.NewRegistry()
	reg.MustRegister(step.New("echo", noop))
	cfgs := []Config{{ID: "a", Schedule: Cron("*/10 * * * *"), Pipeline: []Entry{{Step: "echo"}}}}

	report := Validate(cfgs, reg)
	if !report.OK() || report.Err() != nil {
		t.Errorf("unexpected issues %v", report.Issues)
	}
}
