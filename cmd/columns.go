package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/diligence-dashboard/internal/columns"
	"github.com/sells-group/diligence-dashboard/internal/model"
)

var columnsCmd = &cobra.Command{
	Use:   "columns",
	Short: "Show the effective column configuration",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		reset, _ := cmd.Flags().GetBool("reset")

		env, err := initDashboard(ctx, "export")
		if err != nil {
			return err
		}
		defer env.Close()

		if reset {
			if _, err := env.Dashboard.ResetColumns(ctx); err != nil {
				return err
			}
		}

		formatColumns(cmd.OutOrStdout(), env.Dashboard.Columns())
		return nil
	},
}

func formatColumns(w io.Writer, cols []model.ColumnSpec) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ORDER\tKEY\tLABEL\tKIND\tVISIBLE\n")
	for _, c := range cols {
		visible := "no"
		if c.Visible {
			visible = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", c.Order, c.Key, c.Label, c.Kind, visible)
	}
	tw.Flush() //nolint:errcheck
	fmt.Fprintf(w, "\nschema version %d\n", columns.Version())
}

func init() {
	columnsCmd.Flags().Bool("reset", false, "restore the default column configuration first")
	rootCmd.AddCommand(columnsCmd)
}
