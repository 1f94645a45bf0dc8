package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/diligence-dashboard/internal/company"
)

var oshaConsolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Merge yearly OSHA files into one row per company",
	Long: `Reads one OSHA file per year (the year is taken from a "_<yyyy>" file name
suffix), sums establishments per company, and joins companies across years by
EIN, then by normalized name. The pipe-delimited output carries
annual_average_employees_<year> and total_hours_worked_<year> columns and can be
passed to "dashboard aggregate --osha".

Examples:
  dashboard osha consolidate -i osha_2022.csv -i osha_2023.csv -o osha_all.tsv`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "osha.consolidate"))

		inputs, _ := cmd.Flags().GetStringArray("input")
		output, _ := cmd.Flags().GetString("output")

		years, err := company.LoadYears(ctx, inputs)
		if err != nil {
			return eris.Wrap(err, "osha consolidate: load years")
		}
		for _, y := range years {
			log.Info("loaded osha year",
				zap.String("path", y.Path),
				zap.String("year", y.Label),
				zap.Int("companies", y.Len()),
			)
		}

		result, err := company.ConsolidateYears(years)
		if err != nil {
			return err
		}
		if err := writeResult(output, result); err != nil {
			return err
		}

		log.Info("osha consolidate complete",
			zap.String("output", output),
			zap.Int("companies", len(result.Rows)),
		)
		fmt.Fprintf(os.Stderr, "Wrote %d companies across %d years to %s\n",
			len(result.Rows), len(years), output)
		return nil
	},
}

func init() {
	oshaConsolidateCmd.Flags().StringArrayP("input", "i", nil, "yearly OSHA file named <name>_<yyyy>.<ext> (repeatable)")
	oshaConsolidateCmd.Flags().StringP("output", "o", "", "output file")
	_ = oshaConsolidateCmd.MarkFlagRequired("input")
	_ = oshaConsolidateCmd.MarkFlagRequired("output")
	oshaCmd.AddCommand(oshaConsolidateCmd)
}
