package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fieldsync/inspector/internal/app"
	"github.com/fieldsync/inspector/internal/models"
)

func newQueueCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and repair the outbound sync queue",
	}

	var status string
	list := &cobra.Command{
		Use:   "list",
		Short: "List queue entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := models.SyncStatus(status)
			if filter != "" && !filter.IsValid() {
				return fmt.Errorf("unknown status %q", status)
			}
			return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
				entries, err := a.Queue.List(ctx, filter)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if ok, err := e.printJSON(out, models.SyncQueueListResponse{Entries: entries, TotalCount: len(entries)}); ok {
					return err
				}
				return printEntries(out, entries)
			})
		},
	}
	list.Flags().StringVar(&status, "status", "", "Only show entries in this state (pending, syncing, done, error, fatal_error)")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "retry <id>",
		Short: "Re-arm an entry that failed permanently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
				entry, err := a.Engine.Retry(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if ok, err := e.printJSON(out, entry); ok {
					return err
				}
				fmt.Fprintf(out, "Entry %s is %s again\n", entry.ID, entry.Status)
				return nil
			})
		},
	})

	return cmd
}

func printEntries(w io.Writer, entries []*models.SyncQueueEntry) error {
	if len(entries) == 0 {
		fmt.Fprintln(w, "Queue is empty")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSESSION\tSTATUS\tATTEMPTS\tNEXT ATTEMPT\tLAST ERROR")
	for _, entry := range entries {
		next := "-"
		if entry.NextAttemptAt != nil {
			next = entry.NextAttemptAt.Local().Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			entry.ID, entry.EntityType, entry.SessionKey, entry.Status, entry.Attempts, next, entry.LastError)
	}
	return tw.Flush()
}
