package main

import (
	"github.com/spf13/cobra"

	"github.com/suppscan/score-cli/internal/backfill"
)

var backfillFormsCmd = &cobra.Command{
	Use:   "forms",
	Short: "Resolve ingredient form text",
	Long: `Walks the product catalogue for one source and resolves form text
for every ingredient row whose extracted tokens map to exactly one known
form key. Rows that already carry form text are never overwritten.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runBackfill(cmd, backfill.ModeForms)
	},
}

func init() {
	addBackfillFlags(backfillFormsCmd)
	backfillCmd.AddCommand(backfillFormsCmd)
}
