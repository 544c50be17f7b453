package cmd

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobsearch-crawler/internal/app"
)

// newCrawlCmd creates the 'crawl' subcommand, the default workflow.
func newCrawlCmd() *cobra.Command {
	var terms []string
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl every search term, resuming from the saved cursor",
		Long: `Searches the listings site for each configured term, classifies every
result link and records the outcome. The cursor is saved after each page so an
interrupted crawl continues where it stopped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, terms)
		},
	}
	cmd.Flags().StringSliceVar(&terms, "terms", nil, "override crawler.search_terms (comma separated)")
	return cmd
}

func runCrawl(cmd *cobra.Command, terms []string) error {
	a, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	if len(terms) > 0 {
		override, err := withTerms(a, terms, cmd)
		if err != nil {
			return err
		}
		defer override.Close()
		a = override
	}
	_, err = a.RunCrawl(cmd.Context())
	if errors.Is(err, context.Canceled) {
		a.Logger().Warn("crawl interrupted; the next run resumes from the saved cursor", zap.Error(err))
	}
	return err
}

// withTerms rebuilds a with a different term list.
func withTerms(a *app.App, terms []string, cmd *cobra.Command) (*app.App, error) {
	cfg := a.Config()
	cfg.Crawler.SearchTerms = terms
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return newApp(cfg, a.Logger(), cmd)
}
