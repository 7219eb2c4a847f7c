package scheduler

import (
	"container/heap"
	"context"
	stderrors "errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/vaultflow/agent"
	"github.com/kbukum/vaultflow/component"
	"github.com/kbukum/vaultflow/errors"
	"github.com/kbukum/vaultflow/logger"
	"github.com/kbukum/vaultflow/observability"
	"github.com/kbukum/vaultflow/resilience"
	"github.com/kbukum/vaultflow/step"
)

// Defaults used when no option overrides them.
const (
	DefaultWorkers      = 4
	DefaultTick         = time.Second
	DefaultMisfireGrace = 300 * time.Second
)

// ErrDisabled is the skip reason for agents with enabled: false.
var ErrDisabled = stderrors.New("agent is disabled")

// Runner executes one agent pipeline.
type Runner interface {
	Run(ctx context.Context, cfg *agent.Config) (step.Context, error)
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option { return func(s *Scheduler) { s.clock = c } }

// WithLocation sets the time zone cron expressions are evaluated in.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithWorkers bounds the number of concurrently executing jobs.
func WithWorkers(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithTick sets how often the timer loop checks for due jobs.
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithMisfireGrace sets how late a firing may start before it is dropped.
func WithMisfireGrace(d time.Duration) Option {
	return func(s *Scheduler) { s.grace = d }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Scheduler) { s.log = l.WithComponent("scheduler") }
}

// WithMetrics records attempt, skip and activity metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

// WithSleep replaces the wait between retry attempts.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Scheduler) { s.sleep = fn }
}

// WithTransitionHook observes every job state change.
// The hook runs with the scheduler lock held and must not call back into it.
func WithTransitionHook(fn func(id string, from, to State)) Option {
	return func(s *Scheduler) { s.onTransition = fn }
}

// Scheduler fires jobs on their cron schedules.
type Scheduler struct {
	runner       Runner
	clock        Clock
	loc          *time.Location
	workers      int
	tick         time.Duration
	grace        time.Duration
	log          *logger.Logger
	metrics      *observability.Metrics
	sleep        func(context.Context, time.Duration) error
	onTransition func(id string, from, to State)

	bulkhead *resilience.Bulkhead

	mu      sync.Mutex
	jobs    map[string]*Job
	queue   fireQueue
	running bool

	// shutdown is canceled by Stop. It bounds retry sleeps and waits for a
	// worker slot; pipelines already running are left to finish.
	shutdown context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}
	inflight sync.WaitGroup
}

// New creates a Scheduler that executes jobs through r.
func New(r Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner:  r,
		clock:   SystemClock{},
		loc:     time.Local,
		workers: DefaultWorkers,
		tick:    DefaultTick,
		grace:   DefaultMisfireGrace,
		log:     logger.NewNop(),
		sleep:   resilience.SleepContext,
		jobs:    make(map[string]*Job),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.bulkhead = resilience.NewBulkhead(resilience.BulkheadConfig{
		Name:          "scheduler",
		MaxConcurrent: s.workers,
		MaxWait:       -1,
		OnReject: func(name string, err error) {
			s.log.Warn("job dispatch abandoned", logger.Fields("bulkhead", name, logger.FieldError, err))
		},
	})
	s.shutdown, s.cancel = context.WithCancel(context.Background())
	return s
}

// Add registers a job for every usable agent and reports the rest.
func (s *Scheduler) Add(cfgs []agent.Config) []Skip {
	var skips []Skip
	skip := func(id string, reason error) {
		skips = append(skips, Skip{ID: id, Reason: reason})
		s.log.Warn("agent not scheduled", logger.Fields(logger.FieldAgentID, id, "reason", reason.Error()))
	}

	now := s.clock.Now()
	for i := range cfgs {
		cfg := cfgs[i]
		if p := cfg.Problem(); p != "" {
			skip(cfg.ID, errors.Configuration(cfg.ID, p))
			continue
		}
		if cfg.ID == "" {
			skip("", errors.Configuration("", "agent id is required"))
			continue
		}
		if !cfg.IsEnabled() {
			skip(cfg.ID, ErrDisabled)
			continue
		}
		spec, err := cfg.Schedule.Parse()
		if err != nil {
			skip(cfg.ID, errors.Configuration(cfg.ID, "schedule: "+err.Error()))
			continue
		}

		s.mu.Lock()
		if _, dup := s.jobs[cfg.ID]; dup {
			s.mu.Unlock()
			skip(cfg.ID, errors.Configuration(cfg.ID, "duplicate agent id"))
			continue
		}
		job := &Job{cfg: cfg, spec: spec, state: StateIdle}
		job.next = spec.Next(now.In(s.loc))
		s.jobs[cfg.ID] = job
		heap.Push(&s.queue, job)
		s.mu.Unlock()

		s.log.Info("agent scheduled", logger.Fields(
			logger.FieldAgentID, cfg.ID,
			"schedule", cfg.Schedule.Expr,
			"next", job.next.Format(time.RFC3339),
		))
	}
	return skips
}

// Name implements component.Component.
func (s *Scheduler) Name() string { return "scheduler" }

// Start launches the timer loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already started")
	}
	if s.shutdown.Err() != nil {
		return fmt.Errorf("scheduler is stopped")
	}
	s.running = true
	s.loopDone = make(chan struct{})

	go s.loop(ctx, s.loopDone)
	s.log.Info("scheduler started", logger.Fields(
		"jobs", len(s.jobs),
		"workers", s.workers,
		"timezone", s.loc.String(),
	))
	return nil
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.shutdown.Done():
			return
		case <-ticker.C:
			s.RunDue(s.clock.Now())
		}
	}
}

// Stop ends the timer loop and waits for running jobs until ctx is done.
// Retry sleeps end early; pipelines in progress are never interrupted.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.cancel()

	s.mu.Lock()
	loopDone := s.loopDone
	s.running = false
	s.mu.Unlock()
	if loopDone != nil {
		<-loopDone
	}

	finished := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn("scheduler stopped with jobs still running")
		return ctx.Err()
	}
}

// Health implements component.Component.
func (s *Scheduler) Health(ctx context.Context) component.Health {
	s.mu.Lock()
	defer s.mu.Unlock()

	h := component.Health{Name: s.Name(), Status: component.StatusHealthy}
	switch {
	case s.shutdown.Err() != nil:
		h.Status = component.StatusUnhealthy
		h.Message = "stopped"
	case !s.running:
		h.Status = component.StatusDegraded
		h.Message = "not started"
	default:
		h.Message = fmt.Sprintf("%d jobs", len(s.jobs))
	}
	return h
}

// Describe implements component.Describable.
func (s *Scheduler) Describe() component.Description {
	s.mu.Lock()
	defer s.mu.Unlock()
	return component.Description{
		Name:    "Scheduler",
		Type:    "scheduler",
		Details: fmt.Sprintf("jobs=%d workers=%d tz=%s", len(s.jobs), s.workers, s.loc),
	}
}

// RunDue fires every job whose next fire time is at or before now.
// The timer loop calls it each tick.
func (s *Scheduler) RunDue(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for s.queue.Len() > 0 && !s.queue[0].next.After(now) {
		job := s.queue[0]
		due := job.next
		if late := now.Sub(due); s.grace > 0 && late > s.grace {
			job.skipped++
			s.metrics.RecordSkip(context.Background(), job.cfg.ID, "misfire")
			s.log.Warn("missed firing dropped", logger.Fields(
				logger.FieldAgentID, job.cfg.ID,
				"due", due.Format(time.RFC3339),
				"late", late.String(),
			))
		} else {
			s.dispatchLocked(job, "schedule")
		}
		// Missed fire times collapse: the next one is always after now.
		job.next = job.spec.Next(now.In(s.loc))
		heap.Fix(&s.queue, job.index)
	}
}

// Trigger fires job id immediately, subject to the same coalescing as a
// scheduled firing. It reports whether a run was dispatched.
func (s *Scheduler) Trigger(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown.Err() != nil {
		return false, fmt.Errorf("scheduler is stopped")
	}
	job, ok := s.jobs[id]
	if !ok {
		return false, errors.NotFound("job", id)
	}
	return s.dispatchLocked(job, "manual"), nil
}

// Jobs returns a snapshot of every job ordered by id.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobInfo, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job.info())
	}
	slices.SortFunc(out, func(a, b JobInfo) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Job returns a snapshot of job id.
func (s *Scheduler) Job(id string) (JobInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return JobInfo{}, false
	}
	return job.info(), true
}

// Wait blocks until no job is executing.
func (s *Scheduler) Wait() {
	s.inflight.Wait()
}

func (s *Scheduler) dispatchLocked(job *Job, trigger string) bool {
	if job.state != StateIdle {
		job.skipped++
		s.metrics.RecordSkip(context.Background(), job.cfg.ID, "coalesced")
		s.log.Info("firing coalesced, job still running", logger.Fields(
			logger.FieldAgentID, job.cfg.ID,
			logger.FieldStatus, job.state.String(),
			"trigger", trigger,
		))
		return false
	}
	s.setStateLocked(job, StateFiring)
	job.lastRun = s.clock.Now()

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		err := s.bulkhead.Execute(s.shutdown, func() error {
			s.execute(job)
			return nil
		})
		if err != nil {
			s.mu.Lock()
			s.setStateLocked(job, StateIdle)
			s.mu.Unlock()
		}
	}()
	return true
}

func (s *Scheduler) execute(job *Job) {
	cfg := job.cfg
	ctx := context.WithoutCancel(s.shutdown)
	log := s.log.WithFields(logger.Fields(logger.FieldAgentID, cfg.ID))

	s.metrics.JobStarted(ctx)
	defer s.metrics.JobFinished(ctx)

	maxAttempts := max(cfg.RetryCount(), 0) + 1
	attempt := 0
	retryCfg := resilience.RetryConfig{
		MaxAttempts:    maxAttempts,
		InitialBackoff: cfg.BackoffDuration(),
		BackoffFactor:  2,
		RetryIf:        func(error) bool { return true },
		OnRetry: func(n int, err error, wait time.Duration) {
			s.mu.Lock()
			s.setStateLocked(job, StateRetrying)
			s.mu.Unlock()
			log.Warn("job attempt failed, retrying", logger.Fields(
				logger.FieldAttempt, n,
				"max_attempts", maxAttempts,
				"retry_in", wait.String(),
				logger.FieldError, err,
			))
		},
		Sleep: s.sleep,
	}

	err := resilience.RetryFunc(s.shutdown, retryCfg, func() error {
		attempt++
		s.mu.Lock()
		if job.state != StateFiring {
			s.setStateLocked(job, StateFiring)
		}
		s.mu.Unlock()

		actx, span := observability.StartSpan(ctx, observability.SpanJobAttempt)
		defer span.End()
		observability.SetSpanAttribute(actx, observability.AttrAgentID, cfg.ID)
		observability.SetSpanAttribute(actx, observability.AttrAttempt, attempt)

		_, err := s.runner.Run(actx, &cfg)
		s.metrics.RecordAttempt(actx, cfg.ID, err)
		if err != nil {
			observability.SetSpanError(actx, err)
		}
		return err
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		job.runs++
		job.lastErr = nil
		s.setStateLocked(job, StateSucceeded)
		log.Info("job succeeded", logger.Fields(logger.FieldAttempt, attempt))
	} else {
		job.failures++
		job.lastErr = err
		s.setStateLocked(job, StateExhausted)
		s.metrics.RecordError(ctx, string(errors.CodeOf(err)), "scheduler")
		log.Error("job failed after all attempts", logger.Fields(
			logger.FieldAttempt, attempt,
			logger.FieldError, err,
		))
	}
	s.setStateLocked(job, StateIdle)
}

func (s *Scheduler) setStateLocked(job *Job, to State) {
	from := job.state
	job.state = to
	if s.onTransition != nil && from != to {
		s.onTransition(job.cfg.ID, from, to)
	}
}
