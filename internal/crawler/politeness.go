package crawler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobsearch-crawler/internal/metrics"
)

// PoliteFetcher wraps a Fetcher with slot acquisition and bounded retries.
// Every detail fetch of every workflow goes through it.
type PoliteFetcher struct {
	fetcher Fetcher
	limiter SlotLimiter
	retry   RetryPolicy
	logger  *zap.Logger
	pauser  pauseController
}

// NewPoliteFetcher wires the fetch discipline around fetcher.
func NewPoliteFetcher(fetcher Fetcher, limiter SlotLimiter, retry RetryPolicy, logger *zap.Logger) *PoliteFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PoliteFetcher{
		fetcher: fetcher,
		limiter: limiter,
		retry:   retry,
		logger:  logger.Named("fetch"),
		pauser:  &timerPauseController{},
	}
}

// Fetch GETs url. Non-200 responses are returned as-is; transport failures
// are retried and, once the policy gives up, reported as ErrNetwork.
func (p *PoliteFetcher) Fetch(ctx context.Context, url string) (FetchResponse, error) {
	req := FetchRequest{URL: url}
	for attempt := 1; ; attempt++ {
		if err := p.limiter.Acquire(ctx); err != nil {
			return FetchResponse{}, fmt.Errorf("acquire fetch slot: %w", err)
		}
		resp, err := p.fetcher.Fetch(ctx, req)
		if err == nil {
			metrics.ObserveFetch(resp.StatusCode, resp.Duration)
			return resp, nil
		}
		metrics.ObserveFetch(0, resp.Duration)

		if ctx.Err() != nil {
			return FetchResponse{}, fmt.Errorf("fetch %s: %w", url, err)
		}
		if !p.retry.ShouldRetry(err, attempt) {
			return FetchResponse{}, fmt.Errorf("%w: fetch %s after %d attempts: %w", ErrNetwork, url, attempt, err)
		}

		delay := p.retry.Backoff(attempt)
		p.logger.Warn("fetch failed, retrying",
			zap.String("url", url),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		metrics.ObserveFetchRetry()
		if err := p.pauser.Pause(ctx, delay); err != nil {
			return FetchResponse{}, fmt.Errorf("fetch %s: %w", url, err)
		}
	}
}

// pauseController abstracts how the fetcher waits between attempts.
type pauseController interface {
	Pause(ctx context.Context, delay time.Duration) error
}

type timerPauseController struct{}

func (p *timerPauseController) Pause(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
