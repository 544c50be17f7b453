// Package memory contains an in-memory publisher for tests and dry runs.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
)

// Publisher stores published events for inspection.
type Publisher struct {
	mu     sync.RWMutex
	events []crawler.JobValidated
	err    error
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// NewFailing returns a Publisher that records every event and then fails
// with err.
func NewFailing(err error) *Publisher {
	return &Publisher{err: err}
}

// Publish records the event.
func (p *Publisher) Publish(_ context.Context, event crawler.JobValidated) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

// Events returns a copy of the recorded events.
func (p *Publisher) Events() []crawler.JobValidated {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]crawler.JobValidated, len(p.events))
	copy(out, p.events)
	return out
}
