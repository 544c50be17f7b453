package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/jobsearch-crawler/internal/export"
)

func newExportCmd() *cobra.Command {
	var dest string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all jobs as CSV to a file or gs:// object",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if dest == "" {
				dest = a.Config().Export.Path
			}
			store, err := a.OpenStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			blobs, object, err := a.OpenBlobStore(cmd.Context(), dest)
			if err != nil {
				return err
			}
			uri, rows, err := export.New(store, a.Logger()).Export(cmd.Context(), blobs, object)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Exported %d jobs to %s\n", rows, uri)
			return nil
		},
	}
	cmd.Flags().StringVar(&dest, "out", "", "destination path or gs://bucket/object (default export.path)")
	return cmd
}
