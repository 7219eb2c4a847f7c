// Package runner executes agent pipelines against a step registry.
//
// Run is the strict policy used by the CLI and the scheduler: an unknown step
// aborts the run before anything executes past it, and a step error is
// returned unchanged. RunLenient is the interactive policy: unknown steps are
// skipped with a warning and the first failing step ends the run, returning
// the state gathered so far.
package runner
