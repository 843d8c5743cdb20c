package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fieldsync/inspector/internal/app"
)

func newSyncCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run sync cycles against the remote store",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "push",
		Short: "Upload every eligible queue entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Engine.RecoverInterrupted(ctx); err != nil {
					return err
				}
				res, err := a.Engine.PushData(ctx)
				if err != nil {
					return fmt.Errorf("push failed: %w", err)
				}
				out := cmd.OutOrStdout()
				if ok, err := e.printJSON(out, res); ok {
					return err
				}
				fmt.Fprintf(out, "Processed: %d\n", res.Processed)
				fmt.Fprintf(out, "Succeeded: %d\n", res.Succeeded)
				fmt.Fprintf(out, "Failed:    %d\n", res.Failed)
				fmt.Fprintf(out, "Waiting:   %d\n", res.Waiting)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "pull",
		Short: "Refresh the equipment mirror for tracked properties",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
				res, err := a.Engine.PullData(ctx)
				out := cmd.OutOrStdout()
				if res != nil {
					if ok, jerr := e.printJSON(out, res); ok {
						if jerr != nil {
							return jerr
						}
					} else {
						fmt.Fprintf(out, "Properties: %d\n", res.Properties)
						fmt.Fprintf(out, "Equipment:  %d\n", res.Equipment)
						fmt.Fprintf(out, "Records:    %d\n", res.Records)
						for _, id := range res.Failed {
							fmt.Fprintf(out, "Failed:     %s\n", id)
						}
					}
				}
				if err != nil {
					return fmt.Errorf("pull failed: %w", err)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show queue counts and the last sync error",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
				status, err := a.Engine.Status(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if ok, err := e.printJSON(out, status); ok {
					return err
				}
				fmt.Fprintf(out, "Pending:  %d\n", status.Pending)
				fmt.Fprintf(out, "Retrying: %d\n", status.Retrying)
				fmt.Fprintf(out, "Failed:   %d\n", status.Failed)
				if status.LastError != "" {
					fmt.Fprintf(out, "Last error: %s\n", status.LastError)
				}
				return nil
			})
		},
	})

	return cmd
}
