package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/vaultflow/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Endpoint       string
	Insecure       bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// InitMeter installs an OTLP/HTTP meter provider as the global provider.
// The returned provider must be shut down on exit.
func InitMeter(ctx context.Context, config MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion, config.Environment)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	var readerOpts []sdkmetric.PeriodicReaderOption
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))
	return mp, nil
}

// Meter returns the vaultflow meter from the global provider.
func Meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// Metrics holds the pipeline instruments.
type Metrics struct {
	runTotal     metric.Int64Counter
	runDuration  metric.Float64Histogram
	stepTotal    metric.Int64Counter
	stepDuration metric.Float64Histogram
	jobAttempts  metric.Int64Counter
	jobSkipped   metric.Int64Counter
	jobsActive   metric.Int64UpDownCounter
	errorTotal   metric.Int64Counter
}

// NewMetrics creates metric instruments on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)
	if m.runTotal, err = meter.Int64Counter("pipeline.runs",
		metric.WithDescription("Pipeline runs by agent and outcome")); err != nil {
		return nil, fmt.Errorf("creating pipeline.runs counter: %w", err)
	}
	if m.runDuration, err = meter.Float64Histogram("pipeline.run.duration",
		metric.WithDescription("Duration of pipeline runs"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating pipeline.run.duration histogram: %w", err)
	}
	if m.stepTotal, err = meter.Int64Counter("step.executions",
		metric.WithDescription("Step executions by step and outcome")); err != nil {
		return nil, fmt.Errorf("creating step.executions counter: %w", err)
	}
	if m.stepDuration, err = meter.Float64Histogram("step.duration",
		metric.WithDescription("Duration of step executions"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("creating step.duration histogram: %w", err)
	}
	if m.jobAttempts, err = meter.Int64Counter("job.attempts",
		metric.WithDescription("Scheduled job attempts by agent and outcome")); err != nil {
		return nil, fmt.Errorf("creating job.attempts counter: %w", err)
	}
	if m.jobSkipped, err = meter.Int64Counter("job.skipped",
		metric.WithDescription("Job firings dropped by coalescing or misfire")); err != nil {
		return nil, fmt.Errorf("creating job.skipped counter: %w", err)
	}
	if m.jobsActive, err = meter.Int64UpDownCounter("job.active",
		metric.WithDescription("Jobs currently executing")); err != nil {
		return nil, fmt.Errorf("creating job.active counter: %w", err)
	}
	if m.errorTotal, err = meter.Int64Counter("errors",
		metric.WithDescription("Errors by code and component")); err != nil {
		return nil, fmt.Errorf("creating errors counter: %w", err)
	}
	return &m, nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordRun records one pipeline run.
func (m *Metrics) RecordRun(ctx context.Context, agentID string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.runTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent", agentID),
		attribute.String("status", status(err)),
	))
	m.runDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("agent", agentID)))
}

// RecordStep records one step execution.
func (m *Metrics) RecordStep(ctx context.Context, stepName string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.stepTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("step", stepName),
		attribute.String("status", status(err)),
	))
	m.stepDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("step", stepName)))
}

// RecordAttempt records one scheduled job attempt.
func (m *Metrics) RecordAttempt(ctx context.Context, agentID string, err error) {
	if m == nil {
		return
	}
	m.jobAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent", agentID),
		attribute.String("status", status(err)),
	))
}

// RecordSkip records a dropped firing; reason is "coalesced" or "misfire".
func (m *Metrics) RecordSkip(ctx context.Context, agentID, reason string) {
	if m == nil {
		return
	}
	m.jobSkipped.Add(ctx, 1, metric.WithAttributes(
		attribute.String("agent", agentID),
		attribute.String("reason", reason),
	))
}

// JobStarted and JobFinished track the number of executing jobs.
func (m *Metrics) JobStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.jobsActive.Add(ctx, 1)
}

func (m *Metrics) JobFinished(ctx context.Context) {
	if m == nil {
		return
	}
	m.jobsActive.Add(ctx, -1)
}

// RecordError records an error by code and component.
func (m *Metrics) RecordError(ctx context.Context, code, component string) {
	if m == nil {
		return
	}
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", code),
		attribute.String("component", component),
	))
}
