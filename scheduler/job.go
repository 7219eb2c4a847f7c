package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kbukum/vaultflow/agent"
)

// Job is one scheduled agent. Fields are guarded by the owning Scheduler.
type Job struct {
	cfg  agent.Config
	spec cron.Schedule

	state   State
	next    time.Time
	index   int
	lastRun time.Time
	lastErr error

	runs     int
	failures int
	skipped  int
}

// JobInfo is a point-in-time view of a Job.
type JobInfo struct {
	ID       string    `json:"id"`
	Schedule string    `json:"schedule"`
	State    State     `json:"state"`
	Next     time.Time `json:"next"`
	LastRun  time.Time `json:"last_run,omitzero"`
	LastErr  string    `json:"last_error,omitempty"`
	Runs     int       `json:"runs"`
	Failures int       `json:"failures"`
	Skipped  int       `json:"skipped"`
}

func (j *Job) info() JobInfo {
	info := JobInfo{
		ID:       j.cfg.ID,
		Schedule: j.cfg.Schedule.Expr,
		State:    j.state,
		Next:     j.next,
		LastRun:  j.lastRun,
		Runs:     j.runs,
		Failures: j.failures,
		Skipped:  j.skipped,
	}
	if j.lastErr != nil {
		info.LastErr = j.lastErr.Error()
	}
	return info
}

// Skip records an agent that Add did not schedule.
type Skip struct {
	ID     string
	Reason error
}
