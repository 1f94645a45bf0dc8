package main

import (
	"github.com/spf13/cobra"
)

var oshaCmd = &cobra.Command{
	Use:   "osha",
	Short: "Prepare OSHA extracts for aggregation",
	Long:  "Consolidate yearly OSHA filings and narrow establishment files to a target company list.",
}

func init() {
	rootCmd.AddCommand(oshaCmd)
}
