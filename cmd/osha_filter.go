package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/diligence-dashboard/internal/company"
	"github.com/sells-group/diligence-dashboard/internal/fetcher"
)

var oshaFilterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Narrow an OSHA establishment file to a company list",
	Long: `Keeps the establishments of an OSHA ITA300A extract whose company matches a
filter list by normalized name and sums them per company.

With --from input (default) one row is written per matched OSHA company. With
--from filter one row is written per filter company, blank when OSHA has no
match.

Examples:
  dashboard osha filter -i ita300a_2024.csv --filter targets.tsv -o subset.tsv
  dashboard osha filter -i ita300a_2024.csv --filter targets.tsv --from filter -o subset.tsv`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "osha.filter"))

		input, _ := cmd.Flags().GetString("input")
		filterPath, _ := cmd.Flags().GetString("filter")
		output, _ := cmd.Flags().GetString("output")
		from, _ := cmd.Flags().GetString("from")

		mode, err := company.ParseFilterMode(from)
		if err != nil {
			return err
		}

		var (
			tbl    *fetcher.Table
			filter []company.FilterEntry
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			tbl, err = company.ReadTable(gctx, input)
			return err
		})
		g.Go(func() error {
			var err error
			filter, err = company.LoadFilter(gctx, filterPath)
			return err
		})
		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "osha filter: load inputs")
		}

		result, err := company.FilterEstablishments(tbl, filter, mode)
		if err != nil {
			return err
		}
		if err := writeResult(output, result); err != nil {
			return err
		}

		log.Info("osha filter complete",
			zap.String("output", output),
			zap.String("mode", string(mode)),
			zap.Int("companies", len(result.Rows)),
		)
		fmt.Fprintf(os.Stderr, "Wrote %d companies to %s\n", len(result.Rows), output)
		return nil
	},
}

func init() {
	oshaFilterCmd.Flags().StringP("input", "i", "", "OSHA establishment file")
	oshaFilterCmd.Flags().String("filter", "", "company list with company_name, state and website columns")
	oshaFilterCmd.Flags().StringP("output", "o", "", "output file")
	oshaFilterCmd.Flags().String("from", string(company.FromInput), "row source: input or filter")
	_ = oshaFilterCmd.MarkFlagRequired("input")
	_ = oshaFilterCmd.MarkFlagRequired("filter")
	_ = oshaFilterCmd.MarkFlagRequired("output")
	oshaCmd.AddCommand(oshaFilterCmd)
}
