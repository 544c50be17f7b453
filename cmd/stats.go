package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print the number of valid and invalid jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			store, err := a.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			valid, err := store.Count(cmd.Context(), true)
			if err != nil {
				return fmt.Errorf("count valid: %w", err)
			}
			invalid, err := store.Count(cmd.Context(), false)
			if err != nil {
				return fmt.Errorf("count invalid: %w", err)
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Validated links: %d\n", valid)
			_, _ = fmt.Fprintf(out, "Invalidated links: %d\n", invalid)
			return nil
		},
	}
}
