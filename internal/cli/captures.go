package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldsync/inspector/internal/app"
)

func newCapturesCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "captures",
		Short: "Maintain locally stored photo captures",
	}

	var dryRun bool
	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Remove capture files no session or pending upload references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Sweeper.Sweep(ctx, dryRun)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if ok, err := e.printJSON(out, res); ok {
					return err
				}
				verb := "Removed"
				if dryRun {
					verb = "Would remove"
				}
				for _, uri := range res.Orphans {
					fmt.Fprintf(out, "%s %s\n", verb, uri)
				}
				fmt.Fprintf(out, "Scanned %d files, %d orphaned, %d removed\n", res.FilesScanned, len(res.Orphans), res.Removed)
				for _, msg := range res.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", msg)
				}
				return nil
			})
		},
	}
	sweep.Flags().BoolVar(&dryRun, "dry-run", false, "Report orphaned files without removing them")
	cmd.AddCommand(sweep)

	return cmd
}
