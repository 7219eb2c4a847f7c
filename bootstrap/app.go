package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kbukum/vaultflow/agent"
	"github.com/kbukum/vaultflow/auth"
	"github.com/kbukum/vaultflow/component"
	"github.com/kbukum/vaultflow/config"
	"github.com/kbukum/vaultflow/logger"
	"github.com/kbukum/vaultflow/observability"
	"github.com/kbukum/vaultflow/runner"
	"github.com/kbukum/vaultflow/scheduler"
	"github.com/kbukum/vaultflow/server"
	"github.com/kbukum/vaultflow/sse"
	"github.com/kbukum/vaultflow/step"
	"github.com/kbukum/vaultflow/steps"
)

// App owns the process lifecycle: logger, step registry, runner and the
// long-running components (telemetry, scheduler, admin server).
//
//	app, err := bootstrap.NewApp(cfg)
//	sched, _ := app.Schedule(agents)
//	err = app.Run(ctx)
type App struct {
	Name       string
	Version    string
	Cfg        *config.AppConfig
	Components *component.Registry
	Logger     *logger.Logger
	Summary    *Summary

	Deps      *steps.Deps
	Steps     *step.Registry
	Runner    *runner.Runner
	Metrics   *observability.Metrics
	Scheduler *scheduler.Scheduler

	clock           func() time.Time
	gracefulTimeout time.Duration

	onStart []Hook
	onReady []Hook
	onStop  []Hook
}

// NewApp validates cfg and wires every step with its dependencies.
func NewApp(cfg *config.AppConfig, opts ...Option) (*App, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	o := resolveOptions(opts)

	app := &App{
		Name:            cfg.Name,
		Version:         cfg.Version,
		Cfg:             cfg,
		clock:           o.clock,
		gracefulTimeout: 15 * time.Second,
	}
	if app.clock == nil {
		app.clock = time.Now
	}
	if o.gracefulTimeout != nil {
		app.gracefulTimeout = *o.gracefulTimeout
	}

	if o.logger != nil {
		app.Logger = o.logger
	} else {
		logger.Init(cfg.Logging, cfg.Name)
		app.Logger = logger.GetGlobalLogger()
	}
	app.Components = component.NewRegistry(app.Logger)

	summaryOut := o.summaryOut
	if summaryOut == nil {
		summaryOut = os.Stderr
	}
	app.Summary = NewSummary(cfg.Name, cfg.Version, summaryOut)

	if err := app.initTelemetry(); err != nil {
		return nil, err
	}

	deps := o.deps
	if deps == nil {
		var err error
		if deps, err = BuildDeps(cfg, app.Logger, app.clock); err != nil {
			return nil, err
		}
	}
	app.Deps = deps

	app.Steps = step.NewRegistry()
	if err := steps.RegisterAll(app.Steps, deps); err != nil {
		return nil, err
	}
	app.Runner = runner.New(app.Steps,
		runner.WithLogger(app.Logger),
		runner.WithMetrics(app.Metrics),
	)
	return app, nil
}

// initTelemetry registers the OTLP exporters as a component. Metric
// instruments are created on the global meter up front; they start
// exporting once the provider is installed.
func (a *App) initTelemetry() error {
	obs := a.Cfg.Observability
	if obs.MetricsEnabled {
		m, err := observability.NewMetrics(observability.Meter())
		if err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
		a.Metrics = m
	}
	if !obs.TracingEnabled && !obs.MetricsEnabled {
		return nil
	}

	var shutdown []func(context.Context) error
	start := func(ctx context.Context) error {
		if obs.TracingEnabled {
			tp, err := observability.InitTracer(ctx, observability.TracerConfig{
				ServiceName:    a.Name,
				ServiceVersion: a.Version,
				Environment:    a.Cfg.Environment,
				Endpoint:       obs.Endpoint,
				Insecure:       obs.Insecure,
				SampleRate:     obs.SampleRate,
			})
			if err != nil {
				return err
			}
			shutdown = append(shutdown, tp.Shutdown)
		}
		if obs.MetricsEnabled {
			mp, err := observability.InitMeter(ctx, observability.MeterConfig{
				ServiceName:    a.Name,
				ServiceVersion: a.Version,
				Environment:    a.Cfg.Environment,
				Endpoint:       obs.Endpoint,
				Insecure:       obs.Insecure,
			})
			if err != nil {
				return err
			}
			shutdown = append(shutdown, mp.Shutdown)
		}
		return nil
	}
	stop := func(ctx context.Context) error {
		var firstErr error
		for _, fn := range shutdown {
			if err := fn(ctx); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return firstErr
	}
	return a.Components.Register(component.Func("telemetry", start, stop))
}

// Schedule registers the scheduler for agents, plus the admin server when
// enabled. Agents that cannot be scheduled are returned.
func (a *App) Schedule(agents []agent.Config) ([]scheduler.Skip, error) {
	if a.Scheduler != nil {
		return nil, fmt.Errorf("scheduler already configured")
	}
	loc, err := a.Cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", a.Cfg.Agents.Timezone, err)
	}
	sc := a.Cfg.Scheduler
	opts := []scheduler.Option{
		scheduler.WithClock(clockFunc(a.clock)),
		scheduler.WithLocation(loc),
		scheduler.WithWorkers(sc.Workers),
		scheduler.WithTick(sc.Tick),
		scheduler.WithMisfireGrace(sc.MisfireGrace),
		scheduler.WithLogger(a.Logger),
		scheduler.WithMetrics(a.Metrics),
	}
	var events *sse.Hub
	if a.Cfg.Server.Enabled && a.Cfg.Server.Events {
		events = sse.NewHub(a.Logger)
		opts = append(opts, scheduler.WithTransitionHook(func(id string, from, to scheduler.State) {
			events.Publish(id, sse.EventTypeJob, sse.JobEvent{ID: id, From: from.String(), To: to.String(), At: a.clock()})
		}))
		// The hub starts before the scheduler and stops after it.
		if err := a.Components.Register(sse.NewComponent(events, "/jobs/events")); err != nil {
			return nil, err
		}
	}
	sched := scheduler.New(a.Runner, opts...)
	skipped := sched.Add(agents)
	for _, s := range skipped {
		a.Summary.TrackSkip(s.ID, s.Reason.Error())
	}
	for _, j := range sched.Jobs() {
		a.Summary.TrackJob(j.ID, j.Schedule, j.Next)
	}
	if err := a.Components.Register(sched); err != nil {
		return nil, err
	}
	a.Scheduler = sched
	if a.Deps != nil && a.Deps.Index != nil {
		a.OnStart(a.warmIndex)
	}
	a.OnStop(a.logJobTotals)

	if a.Cfg.Server.Enabled {
		if err := a.registerAdmin(sched, events); err != nil {
			return nil, err
		}
	}
	return skipped, nil
}

// warmIndex creates the vector collection before the first job fires. A
// failure is logged; index_vault retries on its own run.
func (a *App) warmIndex(ctx context.Context) error {
	start := time.Now()
	if err := a.Deps.Index.Ensure(ctx); err != nil {
		a.Logger.Warn("Vector collection not ready", logger.ErrorFields("ensure_collection", err))
		return nil
	}
	a.Logger.Debug("Vector collection ready", logger.DurationFields("ensure_collection", time.Since(start)))
	return nil
}

func (a *App) logJobTotals(context.Context) error {
	for _, j := range a.Scheduler.Jobs() {
		a.Logger.Info("Job totals", logger.Fields("job", j.ID, "runs", j.Runs, "failures", j.Failures, "skipped", j.Skipped))
	}
	return nil
}

func (a *App) registerAdmin(sched *scheduler.Scheduler, events *sse.Hub) error {
	var tokens *auth.Service
	if secret := a.Cfg.Server.AdminSecret; secret != "" {
		svc, err := auth.NewService(auth.Config{Secret: secret})
		if err != nil {
			return err
		}
		tokens = svc
	} else {
		a.Logger.Warn("admin API has no secret; job routes are unauthenticated")
	}

	srvCfg := server.Config{Host: a.Cfg.Server.Host, Port: a.Cfg.Server.Port}
	srv := server.New(srvCfg, a.Logger)
	admin := &server.Admin{
		Service:     a.Name,
		Jobs:        sched,
		Steps:       a.Steps.Keys,
		Health:      a.Components.HealthAll,
		TriggerRate: a.Cfg.Server.TriggerRate,
		Events:      events,
		Log:         a.Logger,
	}
	if tokens != nil {
		admin.Tokens = tokens
	}
	admin.Register(srv.Engine())
	return a.Components.Register(server.NewComponent(srv))
}

// TokenService returns the admin token service, or an error when no
// admin secret is configured.
func (a *App) TokenService() (*auth.Service, error) {
	return auth.NewService(auth.Config{Secret: a.Cfg.Server.AdminSecret})
}

type clockFunc func() time.Time

func (f clockFunc) Now() time.Time { return f() }

// ReadyCheck verifies that all registered components are healthy.
func (a *App) ReadyCheck(ctx context.Context) error {
	var unhealthy []string
	for _, h := range a.Components.HealthAll(ctx) {
		if h.Status != component.StatusHealthy {
			detail := h.Name + "=" + string(h.Status)
			if h.Message != "" {
				detail += "(" + h.Message + ")"
			}
			unhealthy = append(unhealthy, detail)
		}
	}
	if len(unhealthy) > 0 {
		return fmt.Errorf("unhealthy components: %v", unhealthy)
	}
	return nil
}

// Run starts every component and blocks until a signal or ctx is done,
// then shuts down. Running jobs finish before the scheduler stops.
func (a *App) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		return err
	}
	a.Logger.Info("Application ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)
	return a.stop()
}

// RunTask starts the components, runs task with a context canceled on
// SIGINT/SIGTERM, and shuts down when it returns. The task error wins
// over a shutdown error.
func (a *App) RunTask(ctx context.Context, task func(ctx context.Context) error) error {
	if err := a.startup(ctx); err != nil {
		return err
	}

	taskCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	taskErr := task(taskCtx)
	if stopErr := a.stop(); stopErr != nil && taskErr == nil {
		return stopErr
	}
	return taskErr
}

func (a *App) startup(ctx context.Context) error {
	start := time.Now()
	a.Logger.Debug("Starting application", logger.Fields("name", a.Name, "version", a.Version))

	if err := a.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("failed to start components: %w", err)
	}
	if err := runHooks(ctx, a.onStart); err != nil {
		return fmt.Errorf("onStart hook failed: %w", err)
	}
	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("Ready check reported issues", logger.Fields("error", err.Error()))
	}
	if err := runHooks(ctx, a.onReady); err != nil {
		return fmt.Errorf("onReady hook failed: %w", err)
	}

	a.Logger.Debug("Application started", logger.DurationFields("startup", time.Since(start)))
	if a.Scheduler != nil {
		a.Summary.SetStartupDuration(time.Since(start))
		a.Summary.Display(ctx, a.Components)
	}
	return nil
}

// WaitForSignal blocks until SIGINT/SIGTERM or ctx is done.
func (a *App) WaitForSignal(ctx context.Context) os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		a.Logger.Info("Received shutdown signal", logger.Fields("signal", sig.String()))
		return sig
	case <-ctx.Done():
		a.Logger.Info("Context canceled, shutting down")
		return nil
	}
}

// Shutdown stops hooks and components. Use when managing the lifecycle
// yourself.
func (a *App) Shutdown(context.Context) error {
	return a.stop()
}

func (a *App) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	var shutdownErr error
	if err := runHooks(ctx, a.onStop); err != nil {
		a.Logger.Error("OnStop hook error", logger.ErrorFields("shutdown", err))
		shutdownErr = err
	}
	if err := a.Components.StopAll(ctx); err != nil {
		a.Logger.Error("Shutdown completed with errors", logger.Fields("error", err.Error()))
		if shutdownErr == nil {
			shutdownErr = err
		}
	}
	a.Logger.Debug("Application shutdown complete")
	return shutdownErr
}
