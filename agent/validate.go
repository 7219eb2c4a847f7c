package agent

import (
	"fmt"
	"strings"

	"github.com/kbukum/vaultflow/errors"
	"github.com/kbukum/vaultflow/step"
	"github.com/kbukum/vaultflow/validation"
)

// StepLookup is the part of the step registry validation needs.
type StepLookup interface {
	Lookup(name string) (step.Step, bool)
}

// Issue is one problem found in an agent document.
type Issue struct {
	AgentID string `json:"agent_id"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	id := i.AgentID
	if id == "" {
		id = "(no id)"
	}
	return fmt.Sprintf("%s: %s: %s", id, i.Field, i.Message)
}

// Report collects the issues of a validation pass.
type Report struct {
	Agents int
	Issues []Issue
}

// OK reports whether no issues were found.
func (r *Report) OK() bool { return len(r.Issues) == 0 }

// Err returns a CONFIGURATION error listing every issue, or nil.
func (r *Report) Err() error {
	if r.OK() {
		return nil
	}
	lines := make([]string, len(r.Issues))
	for i, issue := range r.Issues {
		lines[i] = issue.String()
	}
	return errors.Configuration("", strings.Join(lines, "; ")).WithDetail("issues", r.Issues)
}

func (r *Report) add(id, field, msg string) {
	r.Issues = append(r.Issues, Issue{AgentID: id, Field: field, Message: msg})
}

// Validate checks every agent against the registry: struct rules, step
// names, schedule syntax and id uniqueness. It never stops at the first issue.
func Validate(cfgs []Config, steps StepLookup) *Report {
	report := &Report{Agents: len(cfgs)}
	seen := make(map[string]int, len(cfgs))

	for i := range cfgs {
		cfg := &cfgs[i]

		if p := cfg.Problem(); p != "" {
			report.add(cfg.ID, "definition", p)
			continue
		}

		if err := validation.Validate(cfg); err != nil {
			if appErr, ok := errors.AsAppError(err); ok {
				if fields, ok := appErr.Details["fields"].([]validation.FieldError); ok {
					for _, f := range fields {
						report.add(cfg.ID, f.Field, f.Message)
					}
				}
			}
		}

		if cfg.ID != "" {
			if first, dup := seen[cfg.ID]; dup {
				report.add(cfg.ID, "id", fmt.Sprintf("duplicate id, first defined at position %d", first))
			} else {
				seen[cfg.ID] = i
			}
		}

		if len(cfg.Pipeline) == 0 {
			report.add(cfg.ID, "pipeline", "must contain at least one step")
		}
		for j, entry := range cfg.Pipeline {
			if entry.Step == "" {
				continue
			}
			if _, ok := steps.Lookup(entry.Step); !ok {
				report.add(cfg.ID, fmt.Sprintf("pipeline[%d].step", j), fmt.Sprintf("unknown step %q", entry.Step))
			}
		}

		if cfg.Schedule.IsSet() {
			if _, err := cfg.Schedule.Parse(); err != nil {
				report.add(cfg.ID, "schedule", err.Error())
			}
		}
	}
	return report
}
