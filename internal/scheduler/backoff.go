package scheduler

import "time"

// retryDelay computes the exponential backoff before a failed unit's
// next attempt: 2^(attempt-1) seconds, capped at max. attempt is the
// number of the attempt that just failed, so the first retry (after
// attempt 1) waits one second. Grounded on the doubling-with-cap shape
// of _examples/gogazub-task-service/internal/core/backoff.go's
// ExpJitter, with the jitter term dropped — spec §9 asks that tests
// not assert exact delays, and a deterministic cap is easier to test
// against than a jittered one.
func retryDelay(attempt int, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	shift := attempt - 1
	if shift > 30 {
		return max
	}
	d := time.Duration(1<<uint(shift)) * time.Second
	if d <= 0 || d > max {
		return max
	}
	return d
}
