package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldsync/inspector/internal/app"
)

func newSessionCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect locally stored maintenance sessions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
				summaries, err := a.Sessions.List(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if ok, err := e.printJSON(out, summaries); ok {
					return err
				}
				if len(summaries) == 0 {
					fmt.Fprintln(out, "No sessions")
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "KEY\tEQUIPMENT\tSTEP\tUPDATED\tUPLOADED")
				for _, s := range summaries {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n",
						s.SessionKey, s.EquipmentID, s.CurrentStep, s.LastUpdated.Local().Format(time.RFC3339), s.IsUploaded)
				}
				return tw.Flush()
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <key>",
		Short: "Show a session and what blocks its current step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
				resp, err := a.Sessions.Validate(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if ok, err := e.printJSON(out, resp); ok {
					return err
				}

				s := resp.Session
				fmt.Fprintf(out, "Session:     %s\n", s.SessionKey)
				fmt.Fprintf(out, "Equipment:   %s\n", s.EquipmentID)
				fmt.Fprintf(out, "Step:        %s\n", s.CurrentStep)
				fmt.Fprintf(out, "Photos:      %d pre, %d post\n", len(s.PrePhotos), len(s.PostPhotos))
				fmt.Fprintf(out, "Checked:     %d items, %d measurements\n", len(s.Checklist), len(s.Measurements))
				if s.FinalizedAt != nil {
					fmt.Fprintf(out, "Finalized:   %s\n", s.FinalizedAt.Local().Format(time.RFC3339))
				}
				fmt.Fprintf(out, "Uploaded:    %t\n", s.IsUploaded)
				if resp.CanAdvance {
					fmt.Fprintln(out, "Current step is complete")
					return nil
				}
				fmt.Fprintln(out, "Blocking issues:")
				for _, issue := range resp.Issues {
					if issue.ItemID != "" {
						fmt.Fprintf(out, "  - [%s] %s: %s\n", issue.Code, issue.ItemID, issue.Message)
					} else {
						fmt.Fprintf(out, "  - [%s] %s\n", issue.Code, issue.Message)
					}
				}
				return nil
			})
		},
	})

	return cmd
}
