// Package retry provides the fixed-delay retry policy used for detail fetches.
package retry

import "time"

const (
	// DefaultMaxAttempts bounds the total number of fetch attempts.
	DefaultMaxAttempts = 4
	// DefaultDelay is the pause between two attempts.
	DefaultDelay = 5 * time.Second
)

// Policy retries every transient failure a fixed number of times with a
// constant delay.
type Policy struct {
	maxAttempts int
	delay       time.Duration
}

// New builds a policy. Non-positive values fall back to the defaults.
func New(maxAttempts int, delay time.Duration) *Policy {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if delay < 0 {
		delay = DefaultDelay
	}
	return &Policy{maxAttempts: maxAttempts, delay: delay}
}

// MaxAttempts returns the attempt bound.
func (p *Policy) MaxAttempts() int {
	return p.maxAttempts
}

// ShouldRetry reports whether another attempt may follow the given failed
// attempt (1-based). Client timeouts are retried like any other failure.
func (p *Policy) ShouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	return attempt < p.maxAttempts
}

// Backoff returns the wait duration before the next attempt.
func (p *Policy) Backoff(int) time.Duration {
	return p.delay
}
