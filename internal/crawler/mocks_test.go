package crawler

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockFetcher is a mock implementation of the Fetcher interface.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, req FetchRequest) (FetchResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(FetchResponse), args.Error(1)
}

// MockRetryPolicy is a mock implementation of the RetryPolicy interface.
type MockRetryPolicy struct {
	mock.Mock
}

func (m *MockRetryPolicy) ShouldRetry(err error, attempt int) bool {
	args := m.Called(err, attempt)
	return args.Bool(0)
}

func (m *MockRetryPolicy) Backoff(attempt int) time.Duration {
	args := m.Called(attempt)
	return args.Get(0).(time.Duration)
}

// countingLimiter counts slot acquisitions without waiting.
type countingLimiter struct {
	acquired int
	settled  int
}

func (l *countingLimiter) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.acquired++
	return nil
}

func (l *countingLimiter) Settle(context.Context) error {
	l.settled++
	return nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }
