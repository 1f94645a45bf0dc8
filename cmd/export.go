package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/diligence-dashboard/internal/export"
	"github.com/sells-group/diligence-dashboard/internal/table"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the company table with saved overrides applied",
	Long: "Loads the company CSV, applies the saved overrides and any --filter/--sort " +
		"flags, and writes the result as CSV or XLSX.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		filters, _ := cmd.Flags().GetStringArray("filter")
		sortCol, _ := cmd.Flags().GetString("sort")
		desc, _ := cmd.Flags().GetBool("desc")
		output, _ := cmd.Flags().GetString("output")
		format, _ := cmd.Flags().GetString("format")

		if output == "" {
			output = cfg.Export.Filename
		}
		format, err := exportFormat(format, output)
		if err != nil {
			return err
		}

		env, err := initDashboard(ctx, "export")
		if err != nil {
			return err
		}
		defer env.Close()

		d := env.Dashboard
		d.Reload(ctx)

		for _, f := range filters {
			col, text, ok := strings.Cut(f, "=")
			if !ok {
				return eris.Errorf("export: filter %q must be column=text", f)
			}
			if _, err := d.ApplyFilter(col, text); err != nil {
				return eris.Wrap(err, "export: apply filter")
			}
		}
		if sortCol != "" {
			dir := table.Asc
			if desc {
				dir = table.Desc
			}
			if _, err := d.SetSort(sortCol, dir); err != nil {
				return eris.Wrap(err, "export: sort")
			}
		}

		sheet := d.Export()
		if err := writeSheet(output, format, sheet); err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("output", output),
			zap.String("format", format),
			zap.Int("rows", len(sheet.Rows)),
		)
		fmt.Fprintf(os.Stderr, "Wrote %d companies to %s\n", len(sheet.Rows), output)
		return nil
	},
}

// exportFormat resolves the output format, inferring it from the file
// extension when not given.
func exportFormat(format, output string) (string, error) {
	if format == "" {
		if strings.EqualFold(filepath.Ext(output), ".xlsx") {
			return "xlsx", nil
		}
		return "csv", nil
	}
	switch strings.ToLower(format) {
	case "csv":
		return "csv", nil
	case "xlsx":
		return "xlsx", nil
	default:
		return "", eris.Errorf("export: unsupported format %q", format)
	}
}

func writeSheet(path, format string, sheet export.Sheet) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = eris.Wrapf(cerr, "export: close %s", path)
		}
	}()

	var write func(io.Writer, export.Sheet) error = export.WriteCSV
	if format == "xlsx" {
		write = export.WriteXLSX
	}
	return write(f, sheet)
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "output file (default from config)")
	exportCmd.Flags().String("format", "", "output format: csv or xlsx (default from extension)")
	exportCmd.Flags().StringArray("filter", nil, "column filter as column=text (repeatable)")
	exportCmd.Flags().String("sort", "", "column to sort by")
	exportCmd.Flags().Bool("desc", false, "sort descending")
	rootCmd.AddCommand(exportCmd)
}
