package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/suppscan/score-cli/internal/backfill"
	"github.com/suppscan/score-cli/internal/source"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Resumable batch jobs over the product catalogue",
}

func init() {
	rootCmd.AddCommand(backfillCmd)
}

// addBackfillFlags registers the flag set shared by the forms and scores
// subcommands.
func addBackfillFlags(cmd *cobra.Command) {
	cmd.Flags().String("source", "", "product source to process (dsld, nhpd)")
	cmd.Flags().Int("batch-size", 0, "page size (default from config)")
	cmd.Flags().Int("concurrency", 0, "worker pool size (default from config)")
	cmd.Flags().Int64("start-after", 0, "resume after this product id")
	cmd.Flags().Int64("end-id", 0, "stop at this product id (0 = unbounded)")
	cmd.Flags().Duration("time-budget", 0, "stop starting new pages after this duration (0 = unbounded)")
	cmd.Flags().Bool("dry-run", false, "classify and compute without writing")
	cmd.Flags().Bool("force", false, "ignore checkpoint and existing-score skip")
	cmd.Flags().String("failures", "", "failure journal path (default from config)")
	cmd.Flags().String("checkpoint", "", "checkpoint file path (default from config)")
	cmd.Flags().String("summary-out", "", "write run summary JSON to this path")
	_ = cmd.MarkFlagRequired("source")
}

// parseBackfillOpts combines flags with config defaults.
func parseBackfillOpts(cmd *cobra.Command, mode backfill.Mode) (backfill.Options, error) {
	sourceName, _ := cmd.Flags().GetString("source")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	concurrency, _ := cmd.Flags().GetInt("concurrency")
	startAfter, _ := cmd.Flags().GetInt64("start-after")
	endID, _ := cmd.Flags().GetInt64("end-id")
	timeBudget, _ := cmd.Flags().GetDuration("time-budget")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	force, _ := cmd.Flags().GetBool("force")
	checkpoint, _ := cmd.Flags().GetString("checkpoint")

	if batchSize <= 0 {
		batchSize = cfg.Backfill.BatchSize
	}
	if concurrency <= 0 {
		concurrency = cfg.Backfill.Concurrency
	}
	if checkpoint == "" {
		checkpoint = cfg.Backfill.CheckpointPath
	}

	if batchSize <= 0 || concurrency <= 0 {
		return backfill.Options{}, eris.New("backfill: batch size and concurrency must be positive")
	}

	return backfill.Options{
		Mode:           mode,
		Source:         sourceName,
		BatchSize:      batchSize,
		Concurrency:    concurrency,
		StartAfter:     startAfter,
		EndID:          endID,
		TimeBudget:     timeBudget,
		DryRun:         dryRun,
		Force:          force,
		CheckpointPath: checkpoint,
	}, nil
}

// runBackfill is the shared body of the forms and scores subcommands.
func runBackfill(cmd *cobra.Command, mode backfill.Mode) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cfg.Validate("backfill"); err != nil {
		return err
	}

	opts, err := parseBackfillOpts(cmd, mode)
	if err != nil {
		return err
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	failuresPath, _ := cmd.Flags().GetString("failures")
	if failuresPath == "" {
		failuresPath = cfg.Backfill.FailuresPath
	}
	var journal *backfill.Journal
	if failuresPath != "" {
		journal, err = backfill.OpenJournal(failuresPath)
		if err != nil {
			return err
		}
		defer journal.Close()
	}

	orch := backfill.New(st, source.NewRegistry(), journal, cfg.Scoring.DatasetVersion)
	summary, err := orch.Run(ctx, opts)
	if err != nil {
		return eris.Wrapf(err, "backfill %s", mode)
	}

	if out, _ := cmd.Flags().GetString("summary-out"); out != "" {
		if err := backfill.WriteSummary(out, summary); err != nil {
			return err
		}
	}

	printSummary(summary)
	return nil
}

func printSummary(s *backfill.Summary) {
	fmt.Printf("%s complete: %d items, %d written, %d skipped, %d skipped-existing, %d failed (%s)\n",
		s.Mode, s.Stats.Items, s.Stats.Written, s.Stats.Skipped, s.Stats.SkippedExisting, s.Stats.Failed, s.Elapsed)
	if s.TimeBudgetHit {
		fmt.Println("time budget reached; rerun to continue from checkpoint")
	}
}
