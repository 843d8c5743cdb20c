package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fieldsync/inspector/internal/app"
	"github.com/fieldsync/inspector/internal/models"
)

func newEquipmentCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "equipment",
		Short: "Browse the local equipment mirror",
	}

	var filter models.EquipmentFilter
	var eqType string
	list := &cobra.Command{
		Use:   "list <propertyId>",
		Short: "List mirrored equipment for a property",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Type = models.EquipmentType(eqType)
			return e.withApp(cmd, func(ctx context.Context, a *app.App) error {
				equipment, err := a.Equipment.Query(ctx, args[0], filter)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if ok, err := e.printJSON(out, models.EquipmentListResponse{Equipment: equipment, TotalCount: len(equipment)}); ok {
					return err
				}
				if len(equipment) == 0 {
					fmt.Fprintf(out, "No equipment mirrored for %s; run `inspectctl sync pull` first\n", args[0])
					return nil
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tTYPE\tSUBTYPE\tCIRCUITS\tLOCATION")
				for _, eq := range equipment {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n",
						eq.ID, eq.Name, eq.Type, eq.Subtype, len(eq.Circuits), eq.Location)
				}
				return tw.Flush()
			})
		},
	}
	list.Flags().StringVar(&eqType, "type", "", "Only show this equipment type")
	list.Flags().StringVar(&filter.Subtype, "subtype", "", "Only show this subtype")
	list.Flags().StringVar(&filter.Search, "search", "", "Match name or location")
	cmd.AddCommand(list)

	return cmd
}
