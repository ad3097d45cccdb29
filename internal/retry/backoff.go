package retry

import "time"

// ExponentialBackoff returns base * 2^attempt.
func ExponentialBackoff(attempt int, base time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return base * (1 << attempt)
}

// Backoff is ExponentialBackoff capped at ceiling. A non-positive ceiling
// disables the cap.
func Backoff(attempt int, base, ceiling time.Duration) time.Duration {
	if attempt > 30 {
		attempt = 30
	}
	d := ExponentialBackoff(attempt, base)
	if ceiling > 0 && d > ceiling {
		return ceiling
	}
	return d
}
