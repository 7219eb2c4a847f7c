// Package errors provides the structured error type shared by vaultflow
// packages. An AppError carries a machine-readable code, a human message,
// a retryable flag, an HTTP status for the admin API and optional details.
//
// Step implementations use two channels for failure: broken preconditions
// such as a missing required parameter are returned as errors and abort the
// run, while informational failures are reported in the step output under
// the "error" key and let the pipeline continue.
package errors
