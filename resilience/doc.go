// Package resilience provides the fault-tolerance primitives used by
// vaultflow: exponential-backoff retry for agent jobs and vector store calls,
// a bulkhead that bounds the scheduler's worker pool, and a circuit breaker
// plus token-bucket rate limiter for outbound HTTP.
//
//	_, err := resilience.Retry(ctx, resilience.RetryConfig{
//	    MaxAttempts:    retries + 1,
//	    InitialBackoff: backoff,
//	    BackoffFactor:  2,
//	}, func() (step.Context, error) {
//	    return runner.Run(ctx, cfg)
//	})
package resilience
