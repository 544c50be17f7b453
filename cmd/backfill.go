package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/jobsearch-crawler/internal/maintenance"
)

func newBackfillCmd() *cobra.Command {
	var opts maintenance.BackfillOptions
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Refresh title, employer, salary and posting date of valid jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			runner, store, err := a.Maintenance(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			report, err := runner.Backfill(cmd.Context(), opts)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Updated %d jobs, skipped %d, failed %d\n",
				report.Updated, report.Skipped, report.Failed)
			return err
		},
	}
	cmd.Flags().BoolVar(&opts.OnlyMissingSalary, "only-missing-salary", false, "skip jobs that already have a salary")
	return cmd
}
