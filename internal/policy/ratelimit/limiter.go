// Package ratelimit spaces detail-page fetches and browser interactions.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/JakeFAU/jobsearch-crawler/internal/metrics"
	"golang.org/x/time/rate"
)

// Limiter enforces a minimum interval between successive fetches and a fixed
// settle delay after browser interactions.
type Limiter struct {
	fetches     *rate.Limiter
	interaction time.Duration
}

// Config holds rate limiter configuration.
type Config struct {
	// SuccessiveFetch is the minimum spacing between the start of two fetches.
	SuccessiveFetch time.Duration
	// Interaction is the pause after typing or clicking.
	Interaction time.Duration
}

// New creates a new Limiter.
func New(cfg Config) *Limiter {
	limit := rate.Inf
	if cfg.SuccessiveFetch > 0 {
		limit = rate.Every(cfg.SuccessiveFetch)
	}
	return &Limiter{
		fetches:     rate.NewLimiter(limit, 1),
		interaction: cfg.Interaction,
	}
}

// Acquire blocks until the next fetch may begin, respecting the context.
func (l *Limiter) Acquire(ctx context.Context) error {
	start := time.Now()
	if err := l.fetches.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	// A token that was available immediately is not a delay.
	if duration := time.Since(start); duration > time.Millisecond {
		metrics.ObserveRateLimitDelay(duration)
	}
	return nil
}

// Settle pauses for the interaction delay so the page can react.
func (l *Limiter) Settle(ctx context.Context) error {
	if l.interaction <= 0 {
		return nil
	}
	timer := time.NewTimer(l.interaction)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("settle: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
