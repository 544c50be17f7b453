// Package cmd defines and implements the CLI commands for the jobcrawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobsearch-crawler/internal/app"
	"github.com/JakeFAU/jobsearch-crawler/internal/config"
	"github.com/JakeFAU/jobsearch-crawler/internal/logging"
	"github.com/JakeFAU/jobsearch-crawler/internal/metrics"
)

var cfgFile string

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// session is what PersistentPreRunE stores for subcommands.
type session struct {
	app         *app.App
	logger      *zap.Logger
	stopMetrics context.CancelFunc
}

// newApp is the application factory. It's a variable so tests can swap in
// fakes.
var newApp = func(cfg config.Config, logger *zap.Logger, cmd *cobra.Command) (*app.App, error) {
	return app.New(cfg, logger, cmd.OutOrStdout())
}

// rootCommand is the cobra tree plus the session its pre-run opened.
type rootCommand struct {
	*cobra.Command
	session *session
}

// release closes the session opened by the last run, including when the
// command failed and cobra skipped its post-run hooks.
func (r *rootCommand) release() {
	s := r.session
	if s == nil {
		return
	}
	r.session = nil
	s.stopMetrics()
	s.app.Close()
	_ = s.logger.Sync()
}

// newRootCmd creates and configures the root command.
func newRootCmd() *rootCommand {
	root := &rootCommand{}
	cmd := &cobra.Command{
		Use:   "jobcrawler",
		Short: "Keyword-validating job board crawler.",
		Long: `jobcrawler searches a job board for each configured keyword phrase,
walks the result pages, and confirms every listing actually mentions the
phrase before recording it. Interrupted crawls resume from the last page.`,
		SilenceUsage: true,
		// Without a subcommand the crawl runs.
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, nil)
		},

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(logging.Config{
				Development: cfg.Logging.Development,
				Level:       cfg.Logging.Level,
			})
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(logger)

			appInstance, err := newApp(cfg, logger, cmd)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			s := &session{app: appInstance, logger: logger, stopMetrics: func() {}}
			if addr := cfg.Metrics.ListenAddr; addr != "" {
				metricsCtx, cancel := context.WithCancel(cmd.Context())
				s.stopMetrics = cancel
				go func() {
					if err := metrics.Serve(metricsCtx, addr, logger); err != nil {
						logger.Error("metrics server failed", zap.Error(err))
					}
				}()
			}

			root.session = s
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, s))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON)")

	cmd.AddCommand(
		newCrawlCmd(),
		newStatsCmd(),
		newRevalidateCmd(),
		newBackfillCmd(),
		newExportCmd(),
		newScheduleCmd(),
		newMigrateCmd(),
	)
	root.Command = cmd
	return root
}

func resolveApp(ctx context.Context) (*app.App, error) {
	s, ok := ctx.Value(appKey).(*session)
	if !ok || s == nil {
		return nil, errors.New("application services not initialized")
	}
	return s.app, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command
// context; commands checkpoint and return.
func Execute() {
	bootstrap, err := logging.New(logging.Config{})
	if err == nil {
		zap.ReplaceGlobals(bootstrap)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root := newRootCmd()
	err = root.ExecuteContext(ctx)
	root.release()
	stop()
	if err != nil {
		zap.L().Fatal("Command execution failed", zap.Error(err))
	}
}
