package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/jobsearch-crawler/internal/schedule"
)

func newScheduleCmd() *cobra.Command {
	var spec string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the crawl now and then on a cron schedule",
		Long: `Runs one crawl immediately and then on every tick of the cron spec
until interrupted. A tick that fires while a crawl is still running is skipped.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if spec == "" {
				spec = a.Config().Schedule.Spec
			}
			scheduler, err := schedule.New(spec, a.Logger())
			if err != nil {
				return err
			}
			return scheduler.Run(cmd.Context(), func(ctx context.Context) error {
				_, err := a.RunCrawl(ctx)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&spec, "spec", "", `cron spec, e.g. "@every 24h" (default schedule.spec)`)
	return cmd
}
