package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/jobsearch-crawler/internal/maintenance"
)

func newRevalidateCmd() *cobra.Command {
	var opts maintenance.RevalidateOptions
	cmd := &cobra.Command{
		Use:   "revalidate",
		Short: "Re-check stored job/term pairs against the live detail pages",
		Long: `Refetches the detail page of every job with an invalid association
(or every association with --all) and overwrites the stored validity.`,
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

			report, err := runner.Revalidate(cmd.Context(), opts)
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "\nRevalidated %d pairs across %d jobs: %d valid, %d invalid, %d failed\n",
				report.Associations, report.Jobs, report.NowValid, report.NowInvalid, report.Failed)
			return err
		},
	}
	cmd.Flags().StringVar(&opts.Term, "term", "", "only revalidate this search term")
	cmd.Flags().BoolVar(&opts.All, "all", false, "revalidate valid pairs too")
	return cmd
}
