// Package app initializes and holds the services a command needs, acting as
// the composition root between configuration and the crawler packages.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	chromedpbrowser "github.com/JakeFAU/jobsearch-crawler/internal/browser/chromedp"
	filecheckpoint "github.com/JakeFAU/jobsearch-crawler/internal/checkpoint/file"
	redischeckpoint "github.com/JakeFAU/jobsearch-crawler/internal/checkpoint/redis"
	"github.com/JakeFAU/jobsearch-crawler/internal/clock/system"
	"github.com/JakeFAU/jobsearch-crawler/internal/config"
	"github.com/JakeFAU/jobsearch-crawler/internal/crawler"
	"github.com/JakeFAU/jobsearch-crawler/internal/export"
	collyfetcher "github.com/JakeFAU/jobsearch-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/jobsearch-crawler/internal/id/uuid"
	"github.com/JakeFAU/jobsearch-crawler/internal/maintenance"
	"github.com/JakeFAU/jobsearch-crawler/internal/metrics"
	"github.com/JakeFAU/jobsearch-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/jobsearch-crawler/internal/policy/retry"
	"github.com/JakeFAU/jobsearch-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/jobsearch-crawler/internal/storage/gcs"
	"github.com/JakeFAU/jobsearch-crawler/internal/storage/local"
	"github.com/JakeFAU/jobsearch-crawler/internal/storage/memory"
	"github.com/JakeFAU/jobsearch-crawler/internal/storage/postgres"
)

// ErrNoDatabase is returned by operations that require db.dsn.
var ErrNoDatabase = errors.New("db.dsn is not configured")

// Run states reported to metrics.
const (
	RunCompleted   = "completed"
	RunInterrupted = "interrupted"
	RunFailed      = "failed"
)

// BrowserFactory launches the automation capability.
type BrowserFactory func(cfg config.Config) (crawler.Browser, error)

// App holds configuration, the logger and the long-lived clients opened for
// one command. Close releases the clients.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	out        io.Writer
	clock      *system.Clock
	limiter    *ratelimit.Limiter
	newBrowser BrowserFactory
	closers    []func()
}

// Option customizes an App.
type Option func(*App)

// WithBrowserFactory replaces the Chrome launcher.
func WithBrowserFactory(f BrowserFactory) Option {
	return func(a *App) { a.newBrowser = f }
}

// New builds an App. Progress and reports are written to out.
func New(cfg config.Config, logger *zap.Logger, out io.Writer, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if out == nil {
		out = io.Discard
	}
	loc, err := cfg.Crawler.Location()
	if err != nil {
		return nil, err
	}
	a := &App{
		cfg:    cfg,
		logger: logger,
		out:    out,
		clock:  system.New(loc),
		limiter: ratelimit.New(ratelimit.Config{
			SuccessiveFetch: cfg.Delays.SuccessiveFetch,
			Interaction:     cfg.Delays.Interaction,
		}),
		newBrowser: launchChrome,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Close releases every client opened through the App, newest first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// OnClose registers f to run on Close. Closers run in reverse order.
func (a *App) OnClose(f func()) {
	a.closers = append(a.closers, f)
}

// OpenStore opens the configured job store. The relational store is migrated
// before use; without a DSN an in-memory store is returned.
func (a *App) OpenStore(ctx context.Context) (crawler.JobStore, error) {
	if a.cfg.DB.DSN == "" {
		a.logger.Warn("db.dsn not set, using in-memory store; results are not persisted")
		return memory.NewJobStore(), nil
	}
	store, err := a.openPostgres(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// Migrate creates the relational schema.
func (a *App) Migrate(ctx context.Context) error {
	if a.cfg.DB.DSN == "" {
		return ErrNoDatabase
	}
	store, err := a.openPostgres(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Migrate(ctx)
}

func (a *App) openPostgres(ctx context.Context) (*postgres.JobStore, error) {
	store, err := postgres.New(ctx, postgres.Config{
		DSN:             a.cfg.DB.DSN,
		MaxConns:        a.cfg.DB.MaxConns,
		MinConns:        a.cfg.DB.MinConns,
		MaxConnLifetime: a.cfg.DB.MaxConnLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}
	return store, nil
}

// OpenCursors opens the configured resumption cursor backend.
func (a *App) OpenCursors(ctx context.Context) (crawler.CursorStore, error) {
	switch a.cfg.Checkpoint.Backend {
	case config.CheckpointRedis:
		store, err := redischeckpoint.New(ctx, a.cfg.Checkpoint.RedisURL, a.cfg.Checkpoint.RedisKey)
		if err != nil {
			return nil, err
		}
		a.OnClose(func() {
			if err := store.Close(); err != nil {
				a.logger.Warn("close redis checkpoint", zap.Error(err))
			}
		})
		return store, nil
	default:
		return filecheckpoint.New(a.cfg.Checkpoint.Path)
	}
}

// OpenPublisher returns the Pub/Sub publisher when configured and a no-op
// publisher otherwise.
func (a *App) OpenPublisher(ctx context.Context) (crawler.Publisher, error) {
	if !a.cfg.PubSub.Enabled() {
		return crawler.NoopPublisher{}, nil
	}
	pub, err := pubsub.New(ctx, a.cfg.PubSub.ProjectID, a.cfg.PubSub.Topic)
	if err != nil {
		return nil, err
	}
	a.OnClose(func() {
		if err := pub.Close(); err != nil {
			a.logger.Warn("close pubsub publisher", zap.Error(err))
		}
	})
	return pub, nil
}

// PoliteFetcher builds the paced, retrying detail page fetcher.
func (a *App) PoliteFetcher() *crawler.PoliteFetcher {
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent: a.cfg.Crawler.UserAgent,
		Timeout:   a.cfg.Delays.RequestTimeout,
	})
	policy := retry.New(a.cfg.Delays.MaxAttempts, a.cfg.Delays.Retry)
	return crawler.NewPoliteFetcher(fetcher, a.limiter, policy, a.logger)
}

// Classifier builds a link classifier over store.
func (a *App) Classifier(store crawler.JobStore, fetcher crawler.DetailFetcher, publisher crawler.Publisher, runID string) *crawler.Classifier {
	site := a.cfg.Site
	parser := crawler.NewDetailParser(crawler.DetailSelectors{
		Title:    site.TitleSelector,
		Employer: site.EmployerSelector,
		Location: site.LocationSelector,
		WorkType: site.WorkTypeSelector,
		Salary:   site.SalarySelector,
		Posted:   site.PostedSelector,
	}, a.clock.Location())
	return crawler.NewClassifier(store, fetcher, parser, crawler.ClassifierOptions{
		Publisher: publisher,
		Clock:     a.clock,
		RunID:     runID,
		Logger:    a.logger,
	})
}

// Progress returns the symbol stream writer, or a discarding one when
// progress output is disabled.
func (a *App) Progress() *crawler.ProgressReporter {
	if !a.cfg.Crawler.ShowProgress {
		return crawler.NewProgressReporter(nil)
	}
	return crawler.NewProgressReporter(a.out)
}

// NewDriver assembles one crawl run. The returned Driver owns the store and
// the browser and releases both when Run returns.
func (a *App) NewDriver(ctx context.Context) (*crawler.Driver, error) {
	runID, err := uuid.New().NewID()
	if err != nil {
		return nil, err
	}
	logger := a.logger.With(zap.String("run_id", runID))

	cursors, err := a.OpenCursors(ctx)
	if err != nil {
		return nil, err
	}
	publisher, err := a.OpenPublisher(ctx)
	if err != nil {
		return nil, err
	}
	store, err := a.OpenStore(ctx)
	if err != nil {
		return nil, err
	}
	browser, err := a.newBrowser(a.cfg)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	site := a.cfg.Site
	navigator := crawler.NewBrowserNavigator(browser, a.limiter, crawler.NavigatorConfig{
		BaseURL:             site.ListingURL(),
		SearchInputSelector: site.SearchInputSelector,
		ResultLinkSelector:  site.ResultLinkSelector,
		NextPageSelector:    site.NextPageSelector,
		KeywordsParam:       site.KeywordsParam,
		PageParam:           site.PageParam,
		StaleRetries:        a.cfg.Navigator.StaleRetries,
		StaleTolerance:      a.cfg.Navigator.StaleTolerance,
		MinPartialRatio:     a.cfg.Navigator.MinPartialRatio,
	}, logger)
	classifier := a.Classifier(store, a.PoliteFetcher(), publisher, runID)

	return crawler.NewDriver(a.cfg.Crawler.SearchTerms, crawler.DriverDeps{
		Navigator:  navigator,
		Classifier: classifier,
		Store:      store,
		Cursors:    cursors,
		Browser:    browser,
		Progress:   a.Progress(),
		Logger:     logger,
	}), nil
}

// RunCrawl performs one full crawl run and prints its report.
func (a *App) RunCrawl(ctx context.Context) (crawler.RunSummary, error) {
	if len(a.cfg.Crawler.SearchTerms) == 0 {
		return crawler.RunSummary{}, errors.New("crawler.search_terms is empty")
	}
	driver, err := a.NewDriver(ctx)
	if err != nil {
		metrics.ObserveRun(RunFailed)
		return crawler.RunSummary{}, err
	}
	started := time.Now()
	summary, err := driver.Run(ctx)
	switch {
	case err == nil:
		metrics.ObserveRun(RunCompleted)
		summary.Report(a.out)
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		metrics.ObserveRun(RunInterrupted)
	default:
		metrics.ObserveRun(RunFailed)
	}
	a.logger.Info("crawl run ended", zap.Duration("elapsed", time.Since(started)), zap.Bool("resumed", summary.Resumed))
	return summary, err
}

// Maintenance opens the store and builds a maintenance runner over it. The
// caller closes the returned store.
func (a *App) Maintenance(ctx context.Context) (*maintenance.Runner, crawler.JobStore, error) {
	store, err := a.OpenStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	fetcher := a.PoliteFetcher()
	evaluator := a.Classifier(store, fetcher, crawler.NoopPublisher{}, "")
	return maintenance.New(store, fetcher, evaluator, a.Progress(), a.logger), store, nil
}

// OpenBlobStore resolves an export destination. gs://bucket/object uploads
// to Cloud Storage; anything else is a local file path.
func (a *App) OpenBlobStore(ctx context.Context, dest string) (export.BlobStore, string, error) {
	if strings.HasPrefix(dest, "gs://") {
		bucket, object, err := gcs.ParseURI(dest)
		if err != nil {
			return nil, "", err
		}
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("create storage client: %w", err)
		}
		a.OnClose(func() {
			if err := client.Close(); err != nil {
				a.logger.Warn("close storage client", zap.Error(err))
			}
		})
		blobs, err := gcs.New(client, gcs.Config{Bucket: bucket})
		if err != nil {
			return nil, "", err
		}
		return blobs, object, nil
	}

	abs, err := filepath.Abs(dest)
	if err != nil {
		return nil, "", fmt.Errorf("resolve export path: %w", err)
	}
	blobs, err := local.New(local.Config{BaseDir: filepath.Dir(abs)})
	if err != nil {
		return nil, "", err
	}
	return blobs, filepath.Base(abs), nil
}

func launchChrome(cfg config.Config) (crawler.Browser, error) {
	return chromedpbrowser.New(chromedpbrowser.Config{
		Headless:          cfg.Browser.Headless,
		UserAgent:         cfg.Crawler.UserAgent,
		ExecPath:          cfg.Browser.ExecPath,
		NavigationTimeout: cfg.Browser.NavTimeout,
	})
}
