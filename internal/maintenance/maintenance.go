// Package maintenance re-checks stored jobs against their live detail pages:
// Revalidate recomputes term validity and Backfill refreshes extracted fields.
package maintenance

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
)

// Store is the part of the job store maintenance needs.
type Store interface {
	ListAssociations(ctx context.Context, filter crawler.AssociationFilter) ([]crawler.Association, error)
	ListJobs(ctx context.Context, onlyValid bool) ([]crawler.Job, error)
	RecordOutcome(ctx context.Context, outcome crawler.Outcome) error
	RefreshFields(ctx context.Context, jobID string, fields crawler.JobFields) error
}

// Evaluator judges fetched detail pages.
type Evaluator interface {
	Evaluate(url string, resp crawler.FetchResponse, terms []string) crawler.Verdict
	ExtractFields(url string, body []byte) crawler.JobFields
}

// Runner executes maintenance passes. Fetches go through the same polite
// fetcher as crawling.
type Runner struct {
	store     Store
	fetcher   crawler.DetailFetcher
	evaluator Evaluator
	progress  *crawler.ProgressReporter
	logger    *zap.Logger
}

// New builds a Runner.
func New(store Store, fetcher crawler.DetailFetcher, evaluator Evaluator, progress *crawler.ProgressReporter, logger *zap.Logger) *Runner {
	if progress == nil {
		progress = crawler.NewProgressReporter(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		store:     store,
		fetcher:   fetcher,
		evaluator: evaluator,
		progress:  progress,
		logger:    logger.Named("maintenance"),
	}
}

// RevalidateOptions selects the associations to re-check.
type RevalidateOptions struct {
	// Term restricts the pass to one search term when non-empty.
	Term string
	// All re-checks valid associations too, not only invalid ones.
	All bool
}

// RevalidateReport summarizes a revalidation pass.
type RevalidateReport struct {
	Jobs         int
	Associations int
	NowValid     int
	NowInvalid   int
	Failed       int
}

// Revalidate refetches each selected job once and overwrites the validity of
// every selected association with the fresh verdict.
func (r *Runner) Revalidate(ctx context.Context, opts RevalidateOptions) (RevalidateReport, error) {
	var report RevalidateReport
	opCtx := context.WithoutCancel(ctx)

	filter := crawler.AssociationFilter{}
	if !opts.All {
		invalid := false
		filter.Valid = &invalid
	}
	if opts.Term != "" {
		term := opts.Term
		filter.Term = &term
	}
	assocs, err := r.store.ListAssociations(opCtx, filter)
	if err != nil {
		return report, fmt.Errorf("list associations: %w", err)
	}

	for _, group := range groupByJob(assocs) {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("revalidate interrupted before job %s: %w", group.jobID, err)
		}
		report.Jobs++

		resp, err := r.fetcher.Fetch(opCtx, group.url)
		if err != nil {
			if !errors.Is(err, crawler.ErrNetwork) {
				return report, err
			}
			r.logger.Warn("revalidate fetch failed", zap.String("job_id", group.jobID), zap.Error(err))
			report.Failed += len(group.terms)
			continue
		}

		verdict := r.evaluator.Evaluate(group.url, resp, group.terms)
		for _, term := range group.terms {
			valid := verdict.Valid[term]
			outcome := crawler.Outcome{
				Term:  term,
				URL:   group.url,
				JobID: group.jobID,
				Valid: valid,
			}
			if valid {
				outcome.Fields = verdict.Fields
			}
			if err := r.store.RecordOutcome(opCtx, outcome); err != nil {
				return report, fmt.Errorf("record %s for %q: %w", group.jobID, term, err)
			}
			report.Associations++
			if valid {
				report.NowValid++
				r.progress.Link(crawler.NewValid)
			} else {
				report.NowInvalid++
				r.progress.Link(crawler.NewInvalid)
			}
		}
	}

	r.logger.Info("revalidate finished",
		zap.Int("jobs", report.Jobs),
		zap.Int("associations", report.Associations),
		zap.Int("now_valid", report.NowValid),
		zap.Int("now_invalid", report.NowInvalid),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// BackfillOptions narrows a backfill pass.
type BackfillOptions struct {
	OnlyMissingSalary bool
}

// BackfillReport summarizes a backfill pass.
type BackfillReport struct {
	Updated int
	Skipped int
	Failed  int
}

// Backfill refetches every job with a valid association and refreshes its
// extracted fields. Extracted values overwrite stored ones; misses never
// blank a stored value.
func (r *Runner) Backfill(ctx context.Context, opts BackfillOptions) (BackfillReport, error) {
	var report BackfillReport
	opCtx := context.WithoutCancel(ctx)

	jobs, err := r.store.ListJobs(opCtx, true)
	if err != nil {
		return report, fmt.Errorf("list jobs: %w", err)
	}

	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("backfill interrupted before job %s: %w", job.ID, err)
		}
		if opts.OnlyMissingSalary && job.Fields.Salary != nil {
			report.Skipped++
			continue
		}

		resp, err := r.fetcher.Fetch(opCtx, job.URL)
		if err != nil {
			if !errors.Is(err, crawler.ErrNetwork) {
				return report, err
			}
			r.logger.Warn("backfill fetch failed", zap.String("job_id", job.ID), zap.Error(err))
			report.Failed++
			continue
		}
		if resp.StatusCode != http.StatusOK {
			r.logger.Debug("backfill page not available",
				zap.String("job_id", job.ID),
				zap.Int("status", resp.StatusCode),
			)
			report.Failed++
			continue
		}

		fields := r.evaluator.ExtractFields(job.URL, resp.Body)
		if fields.Empty() {
			report.Failed++
			continue
		}
		if err := r.store.RefreshFields(opCtx, job.ID, fields); err != nil {
			return report, fmt.Errorf("refresh %s: %w", job.ID, err)
		}
		report.Updated++
	}

	r.logger.Info("backfill finished",
		zap.Int("updated", report.Updated),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

type jobGroup struct {
	jobID string
	url   string
	terms []string
}

// groupByJob keeps the first-seen order of jobs and terms.
func groupByJob(assocs []crawler.Association) []jobGroup {
	index := make(map[string]int)
	var groups []jobGroup
	for _, a := range assocs {
		i, ok := index[a.JobID]
		if !ok {
			i = len(groups)
			index[a.JobID] = i
			groups = append(groups, jobGroup{jobID: a.JobID, url: a.JobURL})
		}
		groups[i].terms = append(groups[i].terms, a.Term)
	}
	return groups
}
