package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/suppscan/score-cli/internal/backfill"
	"github.com/suppscan/score-cli/internal/source"
)

var backfillReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Reprocess products from the failure journal",
	Long: `Reads the failure journal, deduplicates to the most recent entry
per product, and reruns the full resolve-and-score pipeline for each with
force semantics. New failures append to the same journal.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("store"); err != nil {
			return err
		}

		failuresPath, _ := cmd.Flags().GetString("failures")
		if failuresPath == "" {
			failuresPath = cfg.Backfill.FailuresPath
		}
		if failuresPath == "" {
			return eris.New("replay: --failures or backfill.failures_path is required")
		}

		concurrency, _ := cmd.Flags().GetInt("concurrency")
		if concurrency <= 0 {
			concurrency = cfg.Backfill.Concurrency
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		journal, err := backfill.OpenJournal(failuresPath)
		if err != nil {
			return err
		}
		defer journal.Close()

		orch := backfill.New(st, source.NewRegistry(), journal, cfg.Scoring.DatasetVersion)
		summary, err := orch.Replay(ctx, backfill.ReplayOptions{
			FailuresPath: failuresPath,
			Concurrency:  concurrency,
			DryRun:       dryRun,
		})
		if err != nil {
			return eris.Wrap(err, "backfill replay")
		}

		if out, _ := cmd.Flags().GetString("summary-out"); out != "" {
			if err := backfill.WriteSummary(out, summary); err != nil {
				return err
			}
		}

		printSummary(summary)
		return nil
	},
}

func init() {
	backfillReplayCmd.Flags().String("failures", "", "failure journal path (default from config)")
	backfillReplayCmd.Flags().Int("concurrency", 0, "worker pool size (default from config)")
	backfillReplayCmd.Flags().Bool("dry-run", false, "reprocess without writing")
	backfillReplayCmd.Flags().String("summary-out", "", "write run summary JSON to this path")
	backfillCmd.AddCommand(backfillReplayCmd)
}
