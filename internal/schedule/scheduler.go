// Package schedule runs the crawl workflow periodically on a cron spec.
package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one scheduled unit of work.
type Job func(ctx context.Context) error

// Scheduler wraps robfig/cron. Overlapping runs are skipped.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	logger *zap.Logger
	entry  cron.EntryID
}

// New creates a Scheduler for spec, e.g. "@every 24h" or "0 6 * * *".
func New(spec string, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	cl := cronLogger{logger: logger.Sugar()}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		spec:   spec,
		logger: logger,
	}, nil
}

// Run registers job, runs it once immediately and then on every tick until
// ctx is canceled. It waits for an in-flight run to finish before returning.
func (s *Scheduler) Run(ctx context.Context, job Job) error {
	if err := s.register(ctx, job); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("spec", s.spec))

	go s.Trigger()

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// Trigger runs the registered job now through the same wrappers as a tick.
func (s *Scheduler) Trigger() {
	entry := s.cron.Entry(s.entry)
	if entry.WrappedJob == nil {
		return
	}
	entry.WrappedJob.Run()
}

func (s *Scheduler) register(ctx context.Context, job Job) error {
	if job == nil {
		return errors.New("schedule job is required")
	}
	id, err := s.cron.AddFunc(s.spec, func() {
		if ctx.Err() != nil {
			return
		}
		s.logger.Info("scheduled run started")
		if err := job(ctx); err != nil {
			s.logger.Error("scheduled run failed", zap.Error(err))
			return
		}
		s.logger.Info("scheduled run finished")
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.entry = id
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
