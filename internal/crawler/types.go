package crawler

import (
	"net/http"
	"time"
)

// Classification is the outcome of classifying one (job, term) pair.
type Classification int

// Classification values. Skipped* pairs were already recorded and were not
// fetched; New* pairs were fetched and recorded during this call.
const (
	SkippedValid Classification = iota + 1
	SkippedInvalid
	NewValid
	NewInvalid
)

// Symbol returns the single-character progress marker for the classification.
func (c Classification) Symbol() string {
	switch c {
	case SkippedValid:
		return "X"
	case SkippedInvalid:
		return "x"
	case NewValid:
		return "V"
	case NewInvalid:
		return "I"
	default:
		return "?"
	}
}

// String implements fmt.Stringer.
func (c Classification) String() string {
	switch c {
	case SkippedValid:
		return "skipped_valid"
	case SkippedInvalid:
		return "skipped_invalid"
	case NewValid:
		return "new_valid"
	case NewInvalid:
		return "new_invalid"
	default:
		return "unknown"
	}
}

// Valid reports whether the classification carries a positive validity.
func (c Classification) Valid() bool {
	return c == SkippedValid || c == NewValid
}

// Skipped reports whether the pair was answered from the store.
func (c Classification) Skipped() bool {
	return c == SkippedValid || c == SkippedInvalid
}

// JobFields holds the auxiliary values extracted from a detail page.
// A nil pointer means the value was not extracted.
type JobFields struct {
	Title       *string
	Employer    *string
	Location    *string
	WorkType    *string
	Salary      *string
	PostingDate *time.Time
}

// Empty reports whether no field was extracted.
func (f JobFields) Empty() bool {
	return f.Title == nil && f.Employer == nil && f.Location == nil &&
		f.WorkType == nil && f.Salary == nil && f.PostingDate == nil
}

// Job is a persisted job posting.
type Job struct {
	ID                  string
	URL                 string
	Fields              JobFields
	Comments            *string
	Requirements        *string
	FollowUp            *string
	Highlight           *string
	Applied             *string
	Contact             *string
	ApplicationComments *string
	UpdatedAt           time.Time
}

// SearchTerm is a persisted keyword phrase.
type SearchTerm struct {
	ID        int64
	Text      string
	UpdatedAt time.Time
}

// Association records the validity of one (job, term) pair.
type Association struct {
	JobID     string
	JobURL    string
	Term      string
	Valid     bool
	UpdatedAt time.Time
}

// AssociationFilter narrows ListAssociations. Nil fields match everything.
type AssociationFilter struct {
	Valid *bool
	Term  *string
}

// Outcome is one classification result handed to the store.
type Outcome struct {
	Term   string
	URL    string
	JobID  string
	Fields JobFields
	Valid  bool
}

// Cursor is the persisted resumption point of a crawl.
type Cursor struct {
	SearchTerm string `json:"search_term"`
	PageNumber int    `json:"page_number"`
}

// FetchRequest captures everything needed to fetch a detail page.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// JobValidated is published when a (job, term) pair validates for the first time.
type JobValidated struct {
	RunID       string     `json:"run_id,omitempty"`
	JobID       string     `json:"job_id"`
	URL         string     `json:"url"`
	Term        string     `json:"term"`
	Title       *string    `json:"title,omitempty"`
	Employer    *string    `json:"employer,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Salary      *string    `json:"salary,omitempty"`
	PostingDate *time.Time `json:"posting_date,omitempty"`
	ValidatedAt time.Time  `json:"validated_at"`
}
