package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/smazurov/pingnode/internal/dm"
	"github.com/smazurov/pingnode/internal/ipping"
)

// CreateResourcesCmd creates the resources command.
func CreateResourcesCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "resources",
		Short: "Print the IP Ping resource table",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return WriteResources(os.Stdout, ipping.Resources(), jsonOut)
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print the table as JSON")
	return cmd
}

type resourceRow struct {
	ID         dm.ResourceID `json:"id"`
	Name       string        `json:"name"`
	Kind       dm.Kind       `json:"kind"`
	Operations string        `json:"operations"`
}

// WriteResources prints defs as a table or JSON.
func WriteResources(w io.Writer, defs []dm.ResourceDef, jsonOut bool) error {
	if jsonOut {
		rows := make([]resourceRow, 0, len(defs))
		for _, def := range defs {
			rows = append(rows, resourceRow{ID: def.ID, Name: def.Name, Kind: def.Kind, Operations: def.Ops.String()})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"object_id": ipping.ObjectID,
			"resources": rows,
		})
	}

	fmt.Fprintf(w, "Object %d (IP Ping)\n", ipping.ObjectID)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tOPS")
	for _, def := range defs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", def.ID, def.Name, def.Kind, def.Ops)
	}
	return tw.Flush()
}
