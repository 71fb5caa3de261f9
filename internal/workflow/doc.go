// Package workflow coordinates queue consumption. A Manager runs one
// goroutine per registered lane: each lane pops items from a named queue,
// runs its handler behind a retrying circuit breaker, and routes the result
// to a downstream queue or the outcome archive. Lanes publish heartbeats
// while they run and periodically reclaim items orphaned by crashed
// consumers, so a restarted process resumes exactly where the fleet left
// off.
package workflow
