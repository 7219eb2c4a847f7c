// Package process runs external commands with process-group cancellation,
// and builds a speech-to-text Transcriber on top of them.
//
// Run sends SIGTERM to the whole process group when the context ends and
// SIGKILL after the grace period. Runner adds a timeout, retries and a
// circuit breaker for commands that are invoked repeatedly.
package process
