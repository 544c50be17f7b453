package crawler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobsearch-crawler/internal/metrics"
)

// DetailFetcher fetches one detail page under the polite fetch discipline.
type DetailFetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// ClassifierOptions carries the optional collaborators of a Classifier.
type ClassifierOptions struct {
	Publisher Publisher
	Clock     Clock
	RunID     string
	Logger    *zap.Logger
}

// Inspection is the verdict reached from one detail page.
type Inspection struct {
	StatusCode int
	Valid      bool
	Fields     JobFields
}

// Classifier decides, for each observed link and term, whether the pair is
// already known or must be validated against the live detail page.
type Classifier struct {
	store     JobStore
	fetcher   DetailFetcher
	parser    *DetailParser
	publisher Publisher
	clock     Clock
	runID     string
	logger    *zap.Logger
}

// NewClassifier builds a Classifier.
func NewClassifier(store JobStore, fetcher DetailFetcher, parser *DetailParser, opts ClassifierOptions) *Classifier {
	c := &Classifier{
		store:     store,
		fetcher:   fetcher,
		parser:    parser,
		publisher: opts.Publisher,
		clock:     opts.Clock,
		runID:     opts.RunID,
		logger:    opts.Logger,
	}
	if c.publisher == nil {
		c.publisher = NoopPublisher{}
	}
	if c.clock == nil {
		c.clock = systemClock{}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.Named("classifier")
	return c
}

// Classify answers (url, term) from the store when possible, otherwise
// fetches the detail page, records the outcome and reports it.
func (c *Classifier) Classify(ctx context.Context, rawURL, term string) (Classification, error) {
	canonical, err := CanonicalURL(rawURL)
	if err != nil {
		return 0, err
	}
	jobID, err := JobIDFromURL(canonical)
	if err != nil {
		return 0, err
	}

	validities, err := c.store.LookupValidities(ctx, jobID)
	if err != nil {
		return 0, fmt.Errorf("lookup %s: %w", jobID, err)
	}
	if valid, ok := validities[term]; ok {
		result := SkippedInvalid
		if valid {
			result = SkippedValid
		}
		metrics.ObserveLink(term, result.String())
		return result, nil
	}

	inspection, err := c.Inspect(ctx, canonical, term)
	if err != nil {
		return 0, err
	}
	outcome := Outcome{
		Term:   term,
		URL:    canonical,
		JobID:  jobID,
		Fields: inspection.Fields,
		Valid:  inspection.Valid,
	}
	if err := c.store.RecordOutcome(ctx, outcome); err != nil {
		return 0, fmt.Errorf("record %s for %q: %w", jobID, term, err)
	}

	result := NewInvalid
	if inspection.Valid {
		result = NewValid
		c.publish(ctx, outcome)
	}
	metrics.ObserveLink(term, result.String())
	return result, nil
}

// Inspect fetches the detail page at url and decides whether term appears
// in its visible text. Fields are only extracted for valid pages.
func (c *Classifier) Inspect(ctx context.Context, url, term string) (Inspection, error) {
	resp, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		return Inspection{}, err
	}
	verdict := c.Evaluate(url, resp, []string{term})
	return Inspection{
		StatusCode: resp.StatusCode,
		Valid:      verdict.Valid[term],
		Fields:     verdict.Fields,
	}, nil
}

// Verdict holds the validity of several terms against one detail page.
type Verdict struct {
	Valid  map[string]bool
	Fields JobFields
}

// AnyValid reports whether at least one term validated.
func (v Verdict) AnyValid() bool {
	for _, ok := range v.Valid {
		if ok {
			return true
		}
	}
	return false
}

// Evaluate matches every term against an already fetched detail page.
// A non-200 or unparseable page invalidates all terms. Fields are extracted
// once when any term validates.
func (c *Classifier) Evaluate(url string, resp FetchResponse, terms []string) Verdict {
	verdict := Verdict{Valid: make(map[string]bool, len(terms))}
	for _, term := range terms {
		verdict.Valid[term] = false
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("detail page not available",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
		)
		return verdict
	}

	text, err := c.parser.Text(resp.Body)
	if err != nil {
		c.logger.Warn("unparseable detail page", zap.String("url", url), zap.Error(err))
		return verdict
	}
	for _, term := range terms {
		verdict.Valid[term] = NewPhraseMatcher(term).Match(text)
	}
	if verdict.AnyValid() {
		verdict.Fields = c.ExtractFields(url, resp.Body)
	}
	return verdict
}

// ExtractFields parses every auxiliary field from a detail page body.
// Misses are logged and leave the field nil.
func (c *Classifier) ExtractFields(url string, body []byte) JobFields {
	detail, err := c.parser.Parse(body, c.clock.Now(), true)
	if err != nil {
		c.logger.Warn("unparseable detail page", zap.String("url", url), zap.Error(err))
		return JobFields{}
	}
	for _, miss := range detail.Misses {
		c.logger.Debug("field not extracted", zap.String("url", url), zap.Error(miss))
	}
	return detail.Fields
}

func (c *Classifier) publish(ctx context.Context, outcome Outcome) {
	event := JobValidated{
		RunID:       c.runID,
		JobID:       outcome.JobID,
		URL:         outcome.URL,
		Term:        outcome.Term,
		Title:       outcome.Fields.Title,
		Employer:    outcome.Fields.Employer,
		Location:    outcome.Fields.Location,
		Salary:      outcome.Fields.Salary,
		PostingDate: outcome.Fields.PostingDate,
		ValidatedAt: c.clock.Now().UTC(),
	}
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Warn("publish job validated failed",
			zap.String("job_id", outcome.JobID),
			zap.String("term", outcome.Term),
			zap.Error(err),
		)
	}
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
