// Package breaker provides fault isolation for queue-driven work steps: a
// three-state circuit breaker that stops hammering a failing downstream
// dependency, and an executor that adds per-call timeouts, bounded retries
// with increasing backoff, and an optional simplified fallback request for
// retries. Breaker state lives in memory and resets on process restart.
package breaker
