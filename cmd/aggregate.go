package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/diligence-dashboard/internal/company"
)

var (
	aggOSHA    string
	aggAdded   []string
	aggCombine []string
	aggOutput  string
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Merge OSHA data with company lists into one table",
	Long: `Matches companies across an OSHA extract and one or more company lists by
normalized name and writes a pipe-delimited table.

Rows from --added lists that match no OSHA company become new rows; --combine
lists only annotate existing ones. Inputs may be .csv, .tsv (pipe-delimited)
or .xlsx.

Examples:
  dashboard aggregate --osha osha_2024.tsv --added grata.csv --output merged.tsv
  dashboard aggregate --osha osha.tsv --added a.xlsx --combine crm.csv --output out.tsv`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if len(aggAdded) == 0 && len(aggCombine) == 0 {
			return company.ErrNoLists
		}

		var (
			osha    *company.OSHAData
			added   []company.List
			combine []company.List
		)

		g, gctx := errgroup.WithContext(ctx)
		if aggOSHA != "" {
			g.Go(func() error {
				var err error
				osha, err = company.LoadOSHA(gctx, aggOSHA)
				return err
			})
		}
		g.Go(func() error {
			var err error
			added, err = company.LoadLists(gctx, aggAdded)
			return err
		})
		g.Go(func() error {
			var err error
			combine, err = company.LoadLists(gctx, aggCombine)
			return err
		})
		if err := g.Wait(); err != nil {
			return eris.Wrap(err, "aggregate: load inputs")
		}

		result, err := company.Aggregate(osha, added, combine)
		if err != nil {
			return err
		}

		if err := writeResult(aggOutput, result); err != nil {
			return err
		}

		stats := result.Stats()
		zap.L().Info("aggregate complete",
			zap.String("output", aggOutput),
			zap.Int("rows", len(result.Rows)),
			zap.Int("from_osha", stats.FromOSHA),
			zap.Int("from_lists", stats.FromLists),
		)
		fmt.Fprintf(os.Stderr, "Wrote %d companies to %s (%d OSHA, %d list-only)\n",
			len(result.Rows), aggOutput, stats.FromOSHA, stats.FromLists)
		return nil
	},
}

func writeResult(path string, r *company.Result) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "write result: create %s", path)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = eris.Wrapf(cerr, "write result: close %s", path)
		}
	}()
	return company.Write(f, r)
}

func init() {
	aggregateCmd.Flags().StringVar(&aggOSHA, "osha", "", "OSHA extract (single-year or consolidated)")
	aggregateCmd.Flags().StringArrayVar(&aggAdded, "added", nil, "company list whose unmatched rows are added (repeatable)")
	aggregateCmd.Flags().StringArrayVar(&aggCombine, "combine", nil, "company list that only annotates matched rows (repeatable)")
	aggregateCmd.Flags().StringVarP(&aggOutput, "output", "o", "", "output file")
	_ = aggregateCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(aggregateCmd)
}
