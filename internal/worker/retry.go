package worker

import (
	"math"
	"time"
)

// maxBackoff bounds the computed delay when no MaxDelay is configured.
const maxBackoff = 24 * time.Hour

// RetryPolicy defines exponential backoff parameters. MaxRetries of zero retries forever.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// Next reports whether something that already failed retryCount times may be attempted
// again, and the minimum wait before doing so. The wait never drops below InitialDelay.
func (r RetryPolicy) Next(retryCount int) (bool, time.Duration) {
	if retryCount < 0 {
		retryCount = 0
	}
	retry := r.MaxRetries <= 0 || retryCount < r.MaxRetries
	return retry, r.NextDelay(retryCount + 1)
}

// NextDelay returns delay for a given attempt (1-based) with clamping.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = time.Second
	}
	if r.BackoffFactor < 1 {
		r.BackoffFactor = 2
	}

	limit := r.MaxDelay
	if limit <= 0 {
		limit = maxBackoff
	}
	if limit < r.InitialDelay {
		limit = r.InitialDelay
	}

	delay := float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(attempt-1))
	if math.IsInf(delay, 0) || delay > float64(limit) {
		return limit
	}
	d := time.Duration(delay)
	if d < r.InitialDelay {
		d = r.InitialDelay
	}
	return d
}
