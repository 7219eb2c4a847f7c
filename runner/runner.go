package runner

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/vaultflow/agent"
	"github.com/kbukum/vaultflow/logger"
	"github.com/kbukum/vaultflow/observability"
	"github.com/kbukum/vaultflow/step"
)

// Invocation is one planned step call.
type Invocation struct {
	Step string
	With map[string]any
}

// Reporter observes step completions of a lenient run.
type Reporter interface {
	OnStepDone(name string, out step.Context, err error)
	OnStepSkipped(name string, reason string)
}

// Runner executes pipelines.
type Runner struct {
	registry *step.Registry
	log      *logger.Logger
	metrics  *observability.Metrics
	newRunID func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger; the default discards output.
func WithLogger(l *logger.Logger) Option {
	return func(r *Runner) { r.log = l.WithComponent("runner") }
}

// WithMetrics records run and step metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithRunIDs overrides run id generation.
func WithRunIDs(fn func() string) Option {
	return func(r *Runner) { r.newRunID = fn }
}

// New creates a Runner over reg.
func New(reg *step.Registry, opts ...Option) *Runner {
	r := &Runner{
		registry: reg,
		log:      logger.NewNop(),
		newRunID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the registry the runner resolves steps from.
func (r *Runner) Registry() *step.Registry { return r.registry }

// InitialContext builds the starting state of a run: a copy of inputs with
// the reserved "filters" key set to filters, or to an empty mapping.
func InitialContext(inputs, filters map[string]any) step.Context {
	run := step.Context(inputs).Clone()
	if filters == nil {
		filters = map[string]any{}
	}
	run[step.FiltersKey] = filters
	return run
}

// Run executes cfg's pipeline in order and returns the final Context.
func (r *Runner) Run(ctx context.Context, cfg *agent.Config) (step.Context, error) {
	runID := r.newRunID()
	log := r.log.WithFields(logger.Fields(logger.FieldAgentID, cfg.ID, logger.FieldRunID, runID))

	ctx, span := observability.StartSpan(ctx, observability.SpanPipelineRun)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrAgentID, cfg.ID)
	observability.SetSpanAttribute(ctx, observability.AttrRunID, runID)

	start := time.Now()
	log.Info("pipeline started", logger.Fields("steps", len(cfg.Pipeline)))

	run, err := r.execute(ctx, log, cfg)

	r.metrics.RecordRun(ctx, cfg.ID, err, time.Since(start))
	if err != nil {
		observability.SetSpanError(ctx, err)
		log.Error("pipeline failed", logger.Fields(
			logger.FieldError, err,
			logger.FieldDuration, time.Since(start).Milliseconds(),
		))
		return nil, err
	}
	log.Info("pipeline finished", logger.Fields(logger.FieldDuration, time.Since(start).Milliseconds()))
	return run, nil
}

func (r *Runner) execute(ctx context.Context, log *logger.Logger, cfg *agent.Config) (step.Context, error) {
	run := InitialContext(cfg.Inputs, cfg.Filters)

	for i, entry := range cfg.Pipeline {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, ok := r.lookup(entry.Step, log)
		if !ok {
			r.metrics.RecordError(ctx, "UNKNOWN_STEP", "runner")
			log.Debug("partial context before unknown step", logger.Fields("keys", sortedKeys(run), "index", i))
			return nil, r.registry.Unknown(entry.Step)
		}

		params := step.ResolveParams(entry.With, run)
		out, err := s.Execute(ctx, params, run)
		if err != nil {
			log.Debug("partial context before failed step", logger.Fields("keys", sortedKeys(run), "index", i))
			return nil, err
		}
		run = step.Merge(run, out)
	}
	return run, nil
}

// RunLenient executes planned from an empty Context. Unknown steps are
// skipped; the first error ends the run. The accumulated Context is always
// returned. reporter may be nil.
func (r *Runner) RunLenient(ctx context.Context, planned []Invocation, reporter Reporter) step.Context {
	runID := r.newRunID()
	log := r.log.WithFields(logger.Fields(logger.FieldRunID, runID))
	run := step.Context{}

	for _, entry := range planned {
		if ctx.Err() != nil {
			break
		}
		s, ok := r.lookup(entry.Step, log)
		if !ok {
			log.Warn("skipping unknown step", logger.Fields(logger.FieldStep, entry.Step))
			if reporter != nil {
				reporter.OnStepSkipped(entry.Step, r.registry.Unknown(entry.Step).Error())
			}
			continue
		}

		out, err := s.Execute(ctx, step.ResolveParams(entry.With, run), run)
		if reporter != nil {
			reporter.OnStepDone(entry.Step, out, err)
		}
		if err != nil {
			log.Warn("stopping after failed step", logger.Fields(logger.FieldStep, entry.Step, logger.FieldError, err))
			break
		}
		run = step.Merge(run, out)
	}
	return run
}

// lookup resolves name and wraps the step with logging, metrics and tracing.
func (r *Runner) lookup(name string, log *logger.Logger) (step.Step, bool) {
	s, ok := r.registry.Lookup(name)
	if !ok {
		return nil, false
	}
	s = WithTracing(s)
	s = WithLogging(s, log)
	if r.metrics != nil {
		s = WithStepMetrics(s, r.metrics)
	}
	return s, true
}

func sortedKeys(run step.Context) []string {
	return slices.Sorted(maps.Keys(run))
}
