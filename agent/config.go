package agent

import (
	"fmt"
	"time"

	"go.yaml.in/yaml/v3"
)

// Defaults applied when an agent omits the field.
const (
	DefaultRetries = 2
	DefaultBackoff = 500 * time.Millisecond
)

// Config is one agent definition.
type Config struct {
	ID          string         `yaml:"id" validate:"required"`
	Description string         `yaml:"description,omitempty"`
	Enabled     *bool          `yaml:"enabled,omitempty"`
	Schedule    Schedule       `yaml:"schedule,omitempty"`
	Retries     *int           `yaml:"retries,omitempty" validate:"omitempty,gte=0"`
	Backoff     *float64       `yaml:"backoff,omitempty" validate:"omitempty,gte=0"`
	Inputs      map[string]any `yaml:"inputs,omitempty"`
	Filters     map[string]any `yaml:"filters,omitempty"`
	Pipeline    []Entry        `yaml:"pipeline" validate:"dive"`

	problem string
}

// Invalid returns a placeholder for an agent whose definition could not be
// decoded. It keeps its place in the document so the agent is skipped
// rather than failing the whole load.
func Invalid(id, problem string) Config {
	return Config{ID: id, problem: problem}
}

// Problem describes why the definition could not be decoded, or "".
func (c *Config) Problem() string { return c.problem }

// Entry is one step invocation in a pipeline.
type Entry struct {
	Step string         `yaml:"step" validate:"required"`
	With map[string]any `yaml:"with,omitempty"`
}

// IsEnabled reports whether the agent may be scheduled. Absent means enabled.
func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// RetryCount returns the number of retries after a failed run.
func (c *Config) RetryCount() int {
	if c.Retries == nil {
		return DefaultRetries
	}
	return *c.Retries
}

// BackoffDuration returns the base delay before the first retry.
func (c *Config) BackoffDuration() time.Duration {
	if c.Backoff == nil {
		return DefaultBackoff
	}
	return time.Duration(*c.Backoff * float64(time.Second))
}

// Schedule is a five-field cron expression. In YAML it is either a plain
// string or a mapping with a "cron" key. Any other shape is kept as a
// problem so the scheduler can skip the agent instead of failing the load.
type Schedule struct {
	Expr    string
	problem string
	set     bool
}

// Cron builds a Schedule from an expression.
func Cron(expr string) Schedule {
	return Schedule{Expr: expr, set: true}
}

// IsSet reports whether the agent declared a schedule at all.
func (s Schedule) IsSet() bool { return s.set }

// Problem describes why a declared schedule has an unusable shape, or "".
func (s Schedule) Problem() string { return s.problem }

// IsZero lets yaml omit an unset schedule.
func (s Schedule) IsZero() bool { return !s.set }

// UnmarshalYAML accepts "expr" and {cron: "expr"}.
func (s *Schedule) UnmarshalYAML(node *yaml.Node) error {
	s.set = true
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*s = Schedule{}
			return nil
		}
		if node.Tag != "!!str" {
			s.problem = fmt.Sprintf("schedule must be a string, got %s", node.Value)
			return nil
		}
		s.Expr = node.Value
	case yaml.MappingNode:
		var m map[string]any
		if err := node.Decode(&m); err != nil {
			return err
		}
		expr, ok := m["cron"].(string)
		if !ok {
			s.problem = "schedule mapping must have a string 'cron' key"
			return nil
		}
		s.Expr = expr
	default:
		s.problem = "schedule must be a string or a {cron: ...} mapping"
	}
	return nil
}

// MarshalYAML writes the schedule back as a plain string.
func (s Schedule) MarshalYAML() (any, error) {
	return s.Expr, nil
}
