package main

import (
	"github.com/spf13/cobra"

	"github.com/suppscan/score-cli/internal/backfill"
)

var backfillScoresCmd = &cobra.Command{
	Use:   "scores",
	Short: "Compute v4 score bundles",
	Long: `Walks the product catalogue for one source and computes a score
bundle per product. Products whose stored score already matches the current
inputs hash and score version are skipped unless --force is set.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runBackfill(cmd, backfill.ModeScores)
	},
}

func init() {
	addBackfillFlags(backfillScoresCmd)
	backfillCmd.AddCommand(backfillScoresCmd)
}
