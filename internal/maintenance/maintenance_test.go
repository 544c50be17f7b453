package maintenance_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
	"github.com/JakeFAU/jobsearch-crawler/internal/maintenance"
	"github.com/JakeFAU/jobsearch-crawler/internal/storage/memory"
)

type stubFetcher struct {
	pages map[string]crawler.FetchResponse
	errs  map[string]error
	calls map[string]int
}

func newStubFetcher() *stubFetcher {
	return &stubFetcher{
		pages: make(map[string]crawler.FetchResponse),
		errs:  make(map[string]error),
		calls: make(map[string]int),
	}
}

func (f *stubFetcher) Fetch(_ context.Context, url string) (crawler.FetchResponse, error) {
	f.calls[url]++
	if err := f.errs[url]; err != nil {
		return crawler.FetchResponse{}, err
	}
	resp, ok := f.pages[url]
	if !ok {
		return crawler.FetchResponse{URL: url, StatusCode: http.StatusNotFound}, nil
	}
	return resp, nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func detailPage(title, salary, body string) crawler.FetchResponse {
	html := fmt.Sprintf(`<html><body>
<h1 data-automation="job-detail-title">%s</h1>
<span data-automation="job-detail-salary">%s</span>
<p>%s</p>
</body></html>`, title, salary, body)
	return crawler.FetchResponse{StatusCode: http.StatusOK, Body: []byte(html)}
}

func newRunner(store *memory.JobStore, fetcher *stubFetcher, progress *bytes.Buffer) *maintenance.Runner {
	parser := crawler.NewDetailParser(crawler.DetailSelectors{
		Title:  `h1[data-automation="job-detail-title"]`,
		Salary: `span[data-automation="job-detail-salary"]`,
	}, time.UTC)
	evaluator := crawler.NewClassifier(store, fetcher, parser, crawler.ClassifierOptions{
		Clock: fixedClock{now: time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC)},
	})
	var out io.Writer
	if progress != nil {
		out = progress
	}
	return maintenance.New(store, fetcher, evaluator, crawler.NewProgressReporter(out), zap.NewNop())
}

func record(t *testing.T, store *memory.JobStore, id, term string, valid bool, fields crawler.JobFields) {
	t.Helper()
	require.NoError(t, store.RecordOutcome(context.Background(), crawler.Outcome{
		Term:   term,
		URL:    "https://jobs.example.com/job/" + id,
		JobID:  id,
		Valid:  valid,
		Fields: fields,
	}))
}

func strPtr(s string) *string { return &s }

func TestRevalidateFlipsInvalidPairsAndFetchesOncePerJob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewJobStore()
	record(t, store, "1", "python", false, crawler.JobFields{})
	record(t, store, "1", "rust", false, crawler.JobFields{})
	record(t, store, "2", "python", false, crawler.JobFields{})
	record(t, store, "3", "python", true, crawler.JobFields{})

	fetcher := newStubFetcher()
	fetcher.pages["https://jobs.example.com/job/1"] = detailPage("Backend Dev", "$150k", "Python and Rust services")
	fetcher.pages["https://jobs.example.com/job/2"] = detailPage("Frontend Dev", "", "React only")

	var progress bytes.Buffer
	report, err := newRunner(store, fetcher, &progress).Revalidate(ctx, maintenance.RevalidateOptions{})
	require.NoError(t, err)
	require.Equal(t, maintenance.RevalidateReport{Jobs: 2, Associations: 3, NowValid: 2, NowInvalid: 1}, report)
	require.Equal(t, "VVI", progress.String())
	require.Equal(t, 1, fetcher.calls["https://jobs.example.com/job/1"])
	require.Zero(t, fetcher.calls["https://jobs.example.com/job/3"])

	validities, err := store.LookupValidities(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"python": true, "rust": true}, validities)

	job, ok := store.Job("1")
	require.True(t, ok)
	require.Equal(t, "Backend Dev", *job.Fields.Title)
	require.Equal(t, "$150k", *job.Fields.Salary)
}

func TestRevalidateAllOverwritesStaleValidity(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewJobStore()
	record(t, store, "1", "golang", true, crawler.JobFields{Title: strPtr("Go Dev")})
	record(t, store, "1", "java", true, crawler.JobFields{})

	fetcher := newStubFetcher()
	fetcher.pages["https://jobs.example.com/job/1"] = detailPage("Go Dev", "", "We use JavaScript and golang")

	report, err := newRunner(store, fetcher, nil).Revalidate(ctx, maintenance.RevalidateOptions{All: true, Term: "java"})
	require.NoError(t, err)
	require.Equal(t, 1, report.NowInvalid)

	validities, err := store.LookupValidities(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"golang": true, "java": false}, validities)
}

func TestRevalidateCountsNetworkFailures(t *testing.T) {
	t.Parallel()

	store := memory.NewJobStore()
	record(t, store, "1", "python", false, crawler.JobFields{})
	record(t, store, "2", "python", false, crawler.JobFields{})

	fetcher := newStubFetcher()
	fetcher.errs["https://jobs.example.com/job/1"] = fmt.Errorf("%w: timeout", crawler.ErrNetwork)
	fetcher.pages["https://jobs.example.com/job/2"] = detailPage("Dev", "", "python")

	report, err := newRunner(store, fetcher, nil).Revalidate(context.Background(), maintenance.RevalidateOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, 1, report.NowValid)
}

func TestRevalidateStopsWhenCanceled(t *testing.T) {
	t.Parallel()

	store := memory.NewJobStore()
	record(t, store, "1", "python", false, crawler.JobFields{})
	fetcher := newStubFetcher()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newRunner(store, fetcher, nil).Revalidate(ctx, maintenance.RevalidateOptions{})
	require.True(t, errors.Is(err, context.Canceled))
	require.Empty(t, fetcher.calls)
}

func TestBackfillRefreshesFieldsWithoutBlanking(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewJobStore()
	record(t, store, "1", "python", true, crawler.JobFields{Title: strPtr("Old Title"), Employer: strPtr("Acme")})
	record(t, store, "2", "python", true, crawler.JobFields{Salary: strPtr("$90k")})
	record(t, store, "3", "python", false, crawler.JobFields{})
	record(t, store, "4", "python", true, crawler.JobFields{})

	fetcher := newStubFetcher()
	fetcher.pages["https://jobs.example.com/job/1"] = detailPage("New Title", "$200k", "python")
	fetcher.pages["https://jobs.example.com/job/2"] = detailPage("Second", "$95k", "python")

	report, err := newRunner(store, fetcher, nil).Backfill(ctx, maintenance.BackfillOptions{})
	require.NoError(t, err)
	require.Equal(t, maintenance.BackfillReport{Updated: 2, Failed: 1}, report)
	require.Zero(t, fetcher.calls["https://jobs.example.com/job/3"])

	job, ok := store.Job("1")
	require.True(t, ok)
	require.Equal(t, "New Title", *job.Fields.Title)
	require.Equal(t, "$200k", *job.Fields.Salary)
	require.Equal(t, "Acme", *job.Fields.Employer)
}

func TestBackfillOnlyMissingSalary(t *testing.T) {
	t.Parallel()

	store := memory.NewJobStore()
	record(t, store, "1", "python", true, crawler.JobFields{Salary: strPtr("$90k")})
	record(t, store, "2", "python", true, crawler.JobFields{})

	fetcher := newStubFetcher()
	fetcher.pages["https://jobs.example.com/job/2"] = detailPage("Dev", "$100k", "python")

	report, err := newRunner(store, fetcher, nil).Backfill(context.Background(), maintenance.BackfillOptions{OnlyMissingSalary: true})
	require.NoError(t, err)
	require.Equal(t, maintenance.BackfillReport{Updated: 1, Skipped: 1}, report)
	require.Zero(t, fetcher.calls["https://jobs.example.com/job/1"])

	job, ok := store.Job("2")
	require.True(t, ok)
	require.Equal(t, "$100k", *job.Fields.Salary)
}
