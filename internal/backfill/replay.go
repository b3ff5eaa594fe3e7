package backfill

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/suppscan/score-cli/internal/model"
	"github.com/suppscan/score-cli/internal/store"
	"github.com/suppscan/score-cli/internal/taxonomy"
)

// ReplayOptions configures a journal replay run.
type ReplayOptions struct {
	FailuresPath string
	Concurrency  int
	DryRun       bool
}

// Replay reprocesses every product named in the failure journal, deduplicated
// to the most recent entry per (source, source id). Each product runs the
// full pipeline with force semantics: existing scores are recomputed even
// when the inputs hash matches. New failures append to the same journal.
func (o *Orchestrator) Replay(ctx context.Context, opts ReplayOptions) (*Summary, error) {
	log := zap.L().With(zap.String("mode", "replay"))

	entries, err := ReadJournal(opts.FailuresPath)
	if err != nil {
		return nil, err
	}
	entries = DedupeLatest(entries)

	summary := &Summary{
		Mode:      "replay",
		DryRun:    opts.DryRun,
		Force:     true,
		StartedAt: time.Now().UTC(),
	}
	if len(entries) == 0 {
		log.Info("journal empty, nothing to replay")
		summary.FinishedAt = summary.StartedAt
		summary.Elapsed = "0s"
		return summary, nil
	}

	snap, err := taxonomy.LoadSnapshot(ctx, o.store, o.datasetVersion)
	if err != nil {
		return nil, eris.Wrap(err, "replay: load taxonomy snapshot")
	}
	resolver := taxonomy.NewResolver(snap)

	log.Info("starting replay",
		zap.Int("entries", len(entries)),
		zap.Int("concurrency", opts.Concurrency),
		zap.Bool("dry_run", opts.DryRun),
	)

	outcomes := make([]model.Outcome, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i, entry := range entries {
		g.Go(func() error {
			outcomes[i] = o.replayOne(gctx, snap, resolver, entry, opts.DryRun)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "replay: process entries")
	}

	var stats model.CheckpointStats
	for _, oc := range outcomes {
		stats.Add(oc)
	}

	summary.FinishedAt = time.Now().UTC()
	summary.Elapsed = summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond).String()
	summary.Stats = stats

	log.Info("replay complete",
		zap.Int("items", stats.Items),
		zap.Int("written", stats.Written),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)

	return summary, nil
}

func (o *Orchestrator) replayOne(ctx context.Context, snap *taxonomy.Snapshot, resolver *taxonomy.Resolver, entry model.FailureEntry, dryRun bool) model.Outcome {
	adapter, err := o.adapters.Get(entry.Source)
	if err != nil {
		return model.Outcome{
			Kind:     model.OutcomeSkipped,
			Source:   entry.Source,
			SourceID: entry.SourceID,
			Reason:   "unknown_source",
		}
	}

	rec, err := o.store.GetProduct(ctx, entry.Source, entry.SourceID)
	if err != nil {
		return o.fail(store.ProductRecord{Source: entry.Source, SourceID: entry.SourceID}, nil, entry.Stage, err)
	}
	if rec == nil {
		return model.Outcome{
			Kind:     model.OutcomeSkipped,
			Source:   entry.Source,
			SourceID: entry.SourceID,
			Reason:   "product_missing",
		}
	}

	return o.processItem(ctx, adapter, snap, resolver, *rec, Options{
		Mode:   ModeAll,
		Source: entry.Source,
		DryRun: dryRun,
		Force:  true,
	})
}
