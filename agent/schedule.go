package agent

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/kbukum/vaultflow/validation"
)

// Parse checks the schedule shape and compiles the cron expression.
// Only classic five-field expressions are accepted: six-field (seconds)
// forms and "@every"-style descriptors are rejected.
func (s Schedule) Parse() (cron.Schedule, error) {
	if !s.set {
		return nil, fmt.Errorf("no schedule")
	}
	if s.problem != "" {
		return nil, fmt.Errorf("%s", s.problem)
	}
	if err := validation.Var(s.Expr, "cron5"); err != nil {
		return nil, fmt.Errorf("invalid cron %q: expected 5 fields", s.Expr)
	}
	sched, err := cron.ParseStandard(s.Expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron %q: %w", s.Expr, err)
	}
	return sched, nil
}
