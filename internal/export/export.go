// Package export writes the job table as a CSV spreadsheet with one 0/1
// column per search term.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
)

// ContentType is the media type of exported objects.
const ContentType = "text/csv"

// jobColumns are the fixed leading columns, in order.
var jobColumns = []string{
	"job_id",
	"job_url",
	"title",
	"employer",
	"location",
	"work_type",
	"salary",
	"posting_date",
	"comments",
	"requirements",
	"follow_up",
	"highlight",
	"applied",
	"contact",
	"application_comments",
	"updated_at",
}

// Source is the read side of the job store used by the exporter.
type Source interface {
	ListJobs(ctx context.Context, onlyValid bool) ([]crawler.Job, error)
	ListTerms(ctx context.Context) ([]crawler.SearchTerm, error)
	TermValidities(ctx context.Context) (map[string]map[string]bool, error)
}

// BlobStore persists a finished export.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Exporter renders the store contents as CSV.
type Exporter struct {
	source Source
	logger *zap.Logger
}

// New constructs an Exporter.
func New(source Source, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{source: source, logger: logger.Named("export")}
}

// Header returns the column names for the given terms.
func Header(terms []crawler.SearchTerm) []string {
	header := make([]string, 0, len(jobColumns)+len(terms)+1)
	header = append(header, jobColumns...)
	for _, term := range terms {
		header = append(header, term.Text)
	}
	return append(header, "valid_term_count")
}

// Write renders every job to w and returns the number of data rows.
func (e *Exporter) Write(ctx context.Context, w io.Writer) (int, error) {
	terms, err := e.source.ListTerms(ctx)
	if err != nil {
		return 0, fmt.Errorf("list terms: %w", err)
	}
	jobs, err := e.source.ListJobs(ctx, false)
	if err != nil {
		return 0, fmt.Errorf("list jobs: %w", err)
	}
	validities, err := e.source.TermValidities(ctx)
	if err != nil {
		return 0, fmt.Errorf("term validities: %w", err)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(Header(terms)); err != nil {
		return 0, fmt.Errorf("write header: %w", err)
	}
	for _, job := range jobs {
		if err := cw.Write(row(job, terms, validities[job.ID])); err != nil {
			return 0, fmt.Errorf("write job %s: %w", job.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("flush csv: %w", err)
	}
	return len(jobs), nil
}

// Export renders the CSV and stores it at path through blobs. It returns the
// URI of the stored object.
func (e *Exporter) Export(ctx context.Context, blobs BlobStore, path string) (string, int, error) {
	var buf bytes.Buffer
	rows, err := e.Write(ctx, &buf)
	if err != nil {
		return "", 0, err
	}
	uri, err := blobs.PutObject(ctx, path, ContentType, &buf)
	if err != nil {
		return "", 0, fmt.Errorf("store export: %w", err)
	}
	e.logger.Info("export written", zap.String("uri", uri), zap.Int("rows", rows))
	return uri, rows, nil
}

func row(job crawler.Job, terms []crawler.SearchTerm, valid map[string]bool) []string {
	var posted string
	if job.Fields.PostingDate != nil {
		posted = job.Fields.PostingDate.Format(time.DateOnly)
	}
	var updated string
	if !job.UpdatedAt.IsZero() {
		updated = job.UpdatedAt.UTC().Format(time.RFC3339)
	}
	out := []string{
		job.ID,
		job.URL,
		deref(job.Fields.Title),
		deref(job.Fields.Employer),
		deref(job.Fields.Location),
		deref(job.Fields.WorkType),
		deref(job.Fields.Salary),
		posted,
		deref(job.Comments),
		deref(job.Requirements),
		deref(job.FollowUp),
		deref(job.Highlight),
		deref(job.Applied),
		deref(job.Contact),
		deref(job.ApplicationComments),
		updated,
	}
	count := 0
	for _, term := range terms {
		if valid[term.Text] {
			count++
			out = append(out, "1")
			continue
		}
		out = append(out, "0")
	}
	return append(out, strconv.Itoa(count))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
