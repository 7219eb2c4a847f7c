package runner

import (
	"context"
	"time"

	"github.com/kbukum/vaultflow/logger"
	"github.com/kbukum/vaultflow/observability"
	"github.com/kbukum/vaultflow/step"
)

// WithTracing wraps s so each execution runs in a "step.<name>" span.
func WithTracing(s step.Step) step.Step {
	return &tracingStep{inner: s}
}

type tracingStep struct{ inner step.Step }

func (t *tracingStep) Name() string { return t.inner.Name() }

func (t *tracingStep) Execute(ctx context.Context, params step.Params, run step.Context) (step.Context, error) {
	ctx, span := observability.StartSpan(ctx, observability.SpanStepPrefix+"."+t.inner.Name())
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrStep, t.inner.Name())

	out, err := t.inner.Execute(ctx, params, run)
	if err != nil {
		observability.SetSpanError(ctx, err)
	}
	return out, err
}

// WithStepMetrics wraps s with execution count and duration metrics.
func WithStepMetrics(s step.Step, m *observability.Metrics) step.Step {
	return &metricsStep{inner: s, metrics: m}
}

type metricsStep struct {
	inner   step.Step
	metrics *observability.Metrics
}

func (m *metricsStep) Name() string { return m.inner.Name() }

func (m *metricsStep) Execute(ctx context.Context, params step.Params, run step.Context) (step.Context, error) {
	start := time.Now()
	out, err := m.inner.Execute(ctx, params, run)
	m.metrics.RecordStep(ctx, m.inner.Name(), err, time.Since(start))
	return out, err
}

// WithLogging wraps s with debug logs on success and error logs on failure.
func WithLogging(s step.Step, log *logger.Logger) step.Step {
	return &loggingStep{inner: s, log: log}
}

type loggingStep struct {
	inner step.Step
	log   *logger.Logger
}

func (l *loggingStep) Name() string { return l.inner.Name() }

func (l *loggingStep) Execute(ctx context.Context, params step.Params, run step.Context) (step.Context, error) {
	start := time.Now()
	out, err := l.inner.Execute(ctx, params, run)

	fields := logger.Fields(
		logger.FieldStep, l.inner.Name(),
		logger.FieldDuration, time.Since(start).Milliseconds(),
	)
	if err != nil {
		fields[logger.FieldError] = err.Error()
		l.log.WithContext(ctx).Error("step failed", fields)
		return out, err
	}
	if msg, ok := out["error"]; ok {
		fields["reported"] = msg
		l.log.WithContext(ctx).Warn("step reported an error", fields)
		return out, nil
	}
	fields["keys"] = len(out)
	l.log.WithContext(ctx).Debug("step completed", fields)
	return out, nil
}
