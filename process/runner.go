package process

import (
	"context"
	"time"

	"github.com/kbukum/vaultflow/resilience"
)

// RunnerConfig configures a Runner. Nil policies are skipped.
type RunnerConfig struct {
	// Timeout bounds each attempt. Zero means no timeout.
	Timeout        time.Duration
	GracePeriod    time.Duration
	Retry          *resilience.RetryConfig
	CircuitBreaker *resilience.CircuitBreakerConfig
}

// Runner executes commands with persistent resilience state: repeated
// crashes trip the breaker for every later call.
type Runner struct {
	cfg     RunnerConfig
	breaker *resilience.CircuitBreaker
}

// NewRunner creates a Runner.
func NewRunner(cfg RunnerConfig) *Runner {
	r := &Runner{cfg: cfg}
	if cfg.CircuitBreaker != nil {
		r.breaker = resilience.NewCircuitBreaker(*cfg.CircuitBreaker)
	}
	return r
}

// Run executes cmd through the retry and breaker chain.
func (r *Runner) Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.GracePeriod == 0 {
		cmd.GracePeriod = r.cfg.GracePeriod
	}
	attempt := func() (*Result, error) {
		var res *Result
		call := func() error {
			actx := ctx
			if r.cfg.Timeout > 0 {
				var cancel context.CancelFunc
				actx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
				defer cancel()
			}
			var err error
			res, err = Run(actx, cmd)
			return err
		}
		if r.breaker != nil {
			return res, r.breaker.Execute(call)
		}
		return res, call()
	}
	if r.cfg.Retry == nil {
		return attempt()
	}
	return resilience.Retry(ctx, *r.cfg.Retry, attempt)
}
