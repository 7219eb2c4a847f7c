// Package observability wires OpenTelemetry tracing and metrics for
// vaultflow. InitTracer and InitMeter install OTLP/HTTP exporters as the
// global providers; Metrics holds the instruments recorded for pipeline
// runs, step executions and scheduled job attempts. A nil *Metrics is valid
// and records nothing, so callers never need to guard.
package observability
