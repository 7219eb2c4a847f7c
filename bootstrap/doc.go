// Package bootstrap assembles a vaultflow process from its configuration:
// logger, step dependencies, the step registry and runner, and the
// long-running components (telemetry exporters, the cron scheduler and the
// admin API).
//
// One-shot commands use RunTask; the schedule command uses Schedule + Run,
// which blocks until SIGINT/SIGTERM and then stops components in reverse
// registration order.
package bootstrap
