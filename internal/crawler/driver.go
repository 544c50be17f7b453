package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/JakeFAU/jobsearch-crawler/internal/metrics"
)

// LinkClassifier classifies one (link, term) pair.
type LinkClassifier interface {
	Classify(ctx context.Context, rawURL, term string) (Classification, error)
}

// RunSummary reports the effect of one crawl run.
type RunSummary struct {
	ValidBefore   int
	InvalidBefore int
	ValidAfter    int
	InvalidAfter  int
	Pages         int
	Resumed       bool
	Counts        map[Classification]int
}

// ValidRead is the number of jobs that became valid during the run.
func (s RunSummary) ValidRead() int { return s.ValidAfter - s.ValidBefore }

// InvalidRead is the number of jobs that became invalid during the run.
func (s RunSummary) InvalidRead() int { return s.InvalidAfter - s.InvalidBefore }

// Report prints the before and after counts.
func (s RunSummary) Report(w io.Writer) {
	_, _ = fmt.Fprintf(w, "Initial Validated links #%d\n", s.ValidBefore)
	_, _ = fmt.Fprintf(w, "Initial Invalidated links #%d\n", s.InvalidBefore)
	_, _ = fmt.Fprintf(w, "Validated links: %d\n", s.ValidAfter)
	_, _ = fmt.Fprintf(w, "Invalidated links: %d\n", s.InvalidAfter)
	_, _ = fmt.Fprintf(w, "Valid links read: %d\n", s.ValidRead())
	_, _ = fmt.Fprintf(w, "Invalid links read: %d\n", s.InvalidRead())
}

// Driver runs the resumable crawl over every configured search term.
// It owns the browser and the store and releases both when Run returns.
type Driver struct {
	terms      []string
	navigator  Navigator
	classifier LinkClassifier
	store      JobStore
	cursors    CursorStore
	browser    io.Closer
	progress   *ProgressReporter
	logger     *zap.Logger
}

// DriverDeps bundles the collaborators of a Driver.
type DriverDeps struct {
	Navigator  Navigator
	Classifier LinkClassifier
	Store      JobStore
	Cursors    CursorStore
	Browser    io.Closer
	Progress   *ProgressReporter
	Logger     *zap.Logger
}

// NewDriver builds a Driver for terms, crawled in the given order.
func NewDriver(terms []string, deps DriverDeps) *Driver {
	d := &Driver{
		terms:      append([]string(nil), terms...),
		navigator:  deps.Navigator,
		classifier: deps.Classifier,
		store:      deps.Store,
		cursors:    deps.Cursors,
		browser:    deps.Browser,
		progress:   deps.Progress,
		logger:     deps.Logger,
	}
	if d.progress == nil {
		d.progress = NewProgressReporter(nil)
	}
	if d.logger == nil {
		d.logger = zap.NewNop()
	}
	d.logger = d.logger.Named("driver")
	return d
}

// Run crawls every term. On completion the cursor is cleared. On
// cancellation or a fatal error the current position is checkpointed and the
// error is returned. Cancellation is observed between steps only.
func (d *Driver) Run(ctx context.Context) (summary RunSummary, err error) {
	summary.Counts = make(map[Classification]int)
	// Steps run to completion even once ctx is canceled.
	opCtx := context.WithoutCancel(ctx)

	defer d.release()

	summary.ValidBefore, summary.InvalidBefore, err = d.counts(opCtx)
	if err != nil {
		return summary, err
	}
	d.logger.Info("crawl starting",
		zap.Int("terms", len(d.terms)),
		zap.Int("valid_jobs", summary.ValidBefore),
		zap.Int("invalid_jobs", summary.InvalidBefore),
	)

	startIdx, startPage, resumed, err := d.resumePoint(opCtx)
	if err != nil {
		return summary, err
	}
	summary.Resumed = resumed

	var position Cursor
	defer func() {
		if err == nil || position.SearchTerm == "" {
			return
		}
		if saveErr := d.cursors.Save(opCtx, position); saveErr != nil {
			d.logger.Error("checkpoint on shutdown failed", zap.Error(saveErr))
			err = errors.Join(err, saveErr)
			return
		}
		d.logger.Info("checkpoint saved",
			zap.String("term", position.SearchTerm),
			zap.Int("page", position.PageNumber),
		)
	}()

	for i := startIdx; i < len(d.terms); i++ {
		term := d.terms[i]
		page := 1
		if i == startIdx {
			page = startPage
		}
		position = Cursor{SearchTerm: term, PageNumber: page}
		if err := ctx.Err(); err != nil {
			return summary, d.interrupted(position, err)
		}
		if err := d.checkpoint(opCtx, position); err != nil {
			return summary, err
		}

		hasResults := true
		if page > 1 {
			hasResults, err = d.navigator.JumpToPage(opCtx, term, page)
		} else {
			err = d.navigator.SubmitSearch(opCtx, term)
		}
		if err != nil {
			return summary, fmt.Errorf("start term %q: %w", term, err)
		}
		if !hasResults {
			d.logger.Info("no results at resume page", zap.String("term", term), zap.Int("page", page))
			continue
		}

		for {
			if err := ctx.Err(); err != nil {
				return summary, d.interrupted(position, err)
			}
			links, err := d.navigator.CollectResultLinks(opCtx)
			if err != nil {
				return summary, fmt.Errorf("collect %q page %d: %w", term, page, err)
			}
			for _, link := range links {
				if err := ctx.Err(); err != nil {
					return summary, d.interrupted(position, err)
				}
				result, err := d.classifier.Classify(opCtx, link, term)
				if errors.Is(err, ErrInvalidJobURL) {
					d.logger.Warn("skipping link", zap.String("url", link), zap.Error(err))
					continue
				}
				if err != nil {
					return summary, fmt.Errorf("classify %s for %q: %w", link, term, err)
				}
				summary.Counts[result]++
				d.progress.Link(result)
			}
			d.progress.PageDone(term, page, len(links))
			metrics.ObservePage(term)
			summary.Pages++
			d.logger.Info("page processed",
				zap.String("term", term),
				zap.Int("page", page),
				zap.Int("links", len(links)),
			)

			position = Cursor{SearchTerm: term, PageNumber: page + 1}
			if err := d.checkpoint(opCtx, position); err != nil {
				return summary, err
			}
			if err := ctx.Err(); err != nil {
				return summary, d.interrupted(position, err)
			}
			more, err := d.navigator.AdvancePage(opCtx)
			if err != nil {
				return summary, fmt.Errorf("advance %q past page %d: %w", term, page, err)
			}
			if !more {
				break
			}
			page++
		}
		d.logger.Info("term finished", zap.String("term", term), zap.Int("pages", page))
	}

	if err := d.cursors.Clear(opCtx); err != nil {
		return summary, fmt.Errorf("clear cursor: %w", err)
	}
	position = Cursor{}

	summary.ValidAfter, summary.InvalidAfter, err = d.counts(opCtx)
	if err != nil {
		return summary, err
	}
	d.logger.Info("crawl finished",
		zap.Int("pages", summary.Pages),
		zap.Int("valid_read", summary.ValidRead()),
		zap.Int("invalid_read", summary.InvalidRead()),
	)
	return summary, nil
}

func (d *Driver) resumePoint(ctx context.Context) (int, int, bool, error) {
	cursor, ok, err := d.cursors.Load(ctx)
	if err != nil {
		return 0, 0, false, fmt.Errorf("load cursor: %w", err)
	}
	if !ok {
		return 0, 1, false, nil
	}
	for i, term := range d.terms {
		if term != cursor.SearchTerm {
			continue
		}
		page := cursor.PageNumber
		if page < 1 {
			page = 1
		}
		d.logger.Info("resuming crawl", zap.String("term", term), zap.Int("page", page))
		return i, page, true, nil
	}
	d.logger.Warn("cursor term not configured, starting over", zap.String("term", cursor.SearchTerm))
	return 0, 1, false, nil
}

func (d *Driver) checkpoint(ctx context.Context, position Cursor) error {
	if err := d.cursors.Save(ctx, position); err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

func (d *Driver) counts(ctx context.Context) (int, int, error) {
	valid, err := d.store.Count(ctx, true)
	if err != nil {
		return 0, 0, fmt.Errorf("count valid: %w", err)
	}
	invalid, err := d.store.Count(ctx, false)
	if err != nil {
		return 0, 0, fmt.Errorf("count invalid: %w", err)
	}
	return valid, invalid, nil
}

func (d *Driver) interrupted(position Cursor, err error) error {
	return fmt.Errorf("crawl interrupted at %q page %d: %w", position.SearchTerm, position.PageNumber, err)
}

// release closes the browser before the store.
func (d *Driver) release() {
	if d.browser != nil {
		if err := d.browser.Close(); err != nil {
			d.logger.Warn("close browser", zap.Error(err))
		}
	}
	if d.store != nil {
		d.store.Close()
	}
}
