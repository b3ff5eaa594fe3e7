package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/suppscan/score-cli/internal/diag"
	"github.com/suppscan/score-cli/internal/source"
)

var diagYieldCmd = &cobra.Command{
	Use:   "yield",
	Short: "Sample resolution yield for one source",
	Long: `Samples active ingredient rows, runs the resolution pipeline over
each without writing, and reports classification counts, ratios, and the
most frequent unmapped tokens and conflicted ingredients.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sourceName, _ := cmd.Flags().GetString("source")
		sample, _ := cmd.Flags().GetInt("sample")
		if sample <= 0 {
			sample = cfg.Diag.SampleSize
		}

		if err := cfg.Validate("diag"); err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		report, err := diag.BuildYield(ctx, st, source.NewRegistry(), sourceName, cfg.Scoring.DatasetVersion, sample)
		if err != nil {
			return err
		}

		if out, _ := cmd.Flags().GetString("out"); out != "" {
			if err := diag.WriteReport(out, report); err != nil {
				return err
			}
		}

		fmt.Printf("Sampled %d rows: writable %.2f%%, conflict %.2f%%\n",
			report.SampleSize, report.WritableRatio()*100, report.ConflictRatio()*100)
		for class, n := range report.Counts {
			fmt.Printf("  %-22s %d\n", class, n)
		}
		return nil
	},
}

func init() {
	diagYieldCmd.Flags().String("source", "", "product source to sample (dsld, nhpd)")
	diagYieldCmd.Flags().Int("sample", 0, "rows to sample (default from config)")
	diagYieldCmd.Flags().String("out", "", "write the report JSON to this path")
	_ = diagYieldCmd.MarkFlagRequired("source")
	diagCmd.AddCommand(diagYieldCmd)
}
