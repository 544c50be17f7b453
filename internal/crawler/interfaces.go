package crawler

import (
	"context"
	"time"
)

// JobStore persists jobs, search terms and their validity associations.
// It is the only writer of crawl state.
type JobStore interface {
	RecordOutcome(ctx context.Context, outcome Outcome) error
	LookupValidities(ctx context.Context, jobID string) (map[string]bool, error)
	Count(ctx context.Context, valid bool) (int, error)
	ListAssociations(ctx context.Context, filter AssociationFilter) ([]Association, error)
	ListJobs(ctx context.Context, onlyValid bool) ([]Job, error)
	ListTerms(ctx context.Context) ([]SearchTerm, error)
	TermValidities(ctx context.Context) (map[string]map[string]bool, error)
	RefreshFields(ctx context.Context, jobID string, fields JobFields) error
	Close()
}

// CursorStore persists the single resumption cursor.
type CursorStore interface {
	Load(ctx context.Context) (Cursor, bool, error)
	Save(ctx context.Context, cursor Cursor) error
	Clear(ctx context.Context) error
}

// Fetcher performs one HTTP GET.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Element is a handle to a node in the rendered page.
type Element interface {
	// Attribute reads the live attribute value. It returns ErrStaleElement
	// when the node has been detached from the document.
	Attribute(ctx context.Context, name string) (string, error)
}

// Browser is the automation capability the navigator drives.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	Find(ctx context.Context, selector string) ([]Element, error)
	Clear(ctx context.Context, element Element) error
	Type(ctx context.Context, element Element, text string) error
	PressEnter(ctx context.Context, element Element) error
	Click(ctx context.Context, element Element) error
	CurrentHTML(ctx context.Context) (string, error)
	CurrentURL(ctx context.Context) (string, error)
	Close() error
}

// Navigator walks the search result pages of the listings site.
type Navigator interface {
	SubmitSearch(ctx context.Context, term string) error
	JumpToPage(ctx context.Context, term string, page int) (bool, error)
	CollectResultLinks(ctx context.Context) ([]string, error)
	AdvancePage(ctx context.Context) (bool, error)
}

// SlotLimiter spaces network fetches and browser interactions.
type SlotLimiter interface {
	Acquire(ctx context.Context) error
	Settle(ctx context.Context) error
}

// RetryPolicy decides whether and when a failed fetch is retried.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Publisher announces newly validated jobs.
type Publisher interface {
	Publish(ctx context.Context, event JobValidated) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}

// NoopPublisher discards events.
type NoopPublisher struct{}

// Publish implements Publisher.
func (NoopPublisher) Publish(context.Context, JobValidated) error { return nil }
