package backfill

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/suppscan/score-cli/internal/model"
	"github.com/suppscan/score-cli/internal/resilience"
	"github.com/suppscan/score-cli/internal/scoring"
	"github.com/suppscan/score-cli/internal/source"
	"github.com/suppscan/score-cli/internal/store"
	"github.com/suppscan/score-cli/internal/taxonomy"
)

// Mode selects which pipeline stages a run executes.
type Mode string

const (
	// ModeForms resolves ingredient form text only.
	ModeForms Mode = "forms"
	// ModeScores computes score bundles only.
	ModeScores Mode = "scores"
	// ModeAll runs form resolution then scoring per product. Used by replay.
	ModeAll Mode = "all"
)

// Options configures one backfill run.
type Options struct {
	Mode           Mode
	Source         string
	BatchSize      int
	Concurrency    int
	StartAfter     int64
	EndID          int64
	TimeBudget     time.Duration
	DryRun         bool
	Force          bool
	CheckpointPath string
}

// Orchestrator walks the products table for one source in id order and runs
// the resolution/scoring pipeline over each product with a bounded worker
// pool. Progress is checkpointed after every page so an interrupted run
// resumes where it left off.
type Orchestrator struct {
	store          store.Store
	adapters       *source.Registry
	engine         *scoring.Engine
	journal        *Journal
	datasetVersion string
}

// New builds an orchestrator. journal may be nil, in which case failures are
// only counted and logged.
func New(st store.Store, adapters *source.Registry, journal *Journal, datasetVersion string) *Orchestrator {
	return &Orchestrator{
		store:          st,
		adapters:       adapters,
		engine:         scoring.NewEngine(datasetVersion),
		journal:        journal,
		datasetVersion: datasetVersion,
	}
}

// Run executes the backfill until the id range is exhausted, the time budget
// expires, or the context is cancelled. In-flight items always drain before
// the run stops; only new pages are cut off.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Summary, error) {
	log := zap.L().With(
		zap.String("mode", string(opts.Mode)),
		zap.String("source", opts.Source),
	)

	adapter, err := o.adapters.Get(opts.Source)
	if err != nil {
		return nil, eris.Wrap(err, "backfill: resolve source adapter")
	}

	snap, err := taxonomy.LoadSnapshot(ctx, o.store, o.datasetVersion)
	if err != nil {
		return nil, eris.Wrap(err, "backfill: load taxonomy snapshot")
	}
	resolver := taxonomy.NewResolver(snap)

	cursor := opts.StartAfter
	var stats model.CheckpointStats

	// Resume from the checkpoint unless --force discards it.
	if opts.CheckpointPath != "" && !opts.Force {
		cp, err := LoadCheckpoint(opts.CheckpointPath)
		if err != nil {
			return nil, err
		}
		if cp != nil && cp.Source == opts.Source && cp.NextStart > cursor {
			cursor = cp.NextStart
			stats = cp.Stats
			log.Info("resuming from checkpoint",
				zap.Int64("next_start", cursor),
				zap.Int("items_done", stats.Items),
			)
		}
	}

	startedAt := time.Now().UTC()
	var deadline time.Time
	if opts.TimeBudget > 0 {
		deadline = startedAt.Add(opts.TimeBudget)
	}

	summary := &Summary{
		Mode:      string(opts.Mode),
		Source:    opts.Source,
		DryRun:    opts.DryRun,
		Force:     opts.Force,
		StartedAt: startedAt,
	}

	log.Info("starting backfill",
		zap.Int64("start_after", cursor),
		zap.Int64("end_id", opts.EndID),
		zap.Int("batch_size", opts.BatchSize),
		zap.Int("concurrency", opts.Concurrency),
		zap.Bool("dry_run", opts.DryRun),
	)

	exhausted := false
	for {
		if err := ctx.Err(); err != nil {
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			summary.TimeBudgetHit = true
			log.Info("time budget exhausted, stopping after drained page")
			break
		}

		page, err := o.store.ListProductsPage(ctx, opts.Source, cursor, opts.EndID, opts.BatchSize)
		if err != nil {
			return nil, eris.Wrap(err, "backfill: list products page")
		}
		if len(page) == 0 {
			exhausted = true
			break
		}

		outcomes := make([]model.Outcome, len(page))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Concurrency)
		for i, rec := range page {
			g.Go(func() error {
				outcomes[i] = o.processItem(gctx, adapter, snap, resolver, rec, opts)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, eris.Wrap(err, "backfill: process page")
		}

		stats.Pages++
		for _, oc := range outcomes {
			stats.Add(oc)
		}
		cursor = page[len(page)-1].ID

		if opts.CheckpointPath != "" && !opts.DryRun {
			cp := &model.Checkpoint{
				Source:    opts.Source,
				LastID:    cursor,
				NextStart: cursor,
				Stats:     stats,
				UpdatedAt: time.Now().UTC(),
			}
			if err := SaveCheckpoint(opts.CheckpointPath, cp); err != nil {
				return nil, err
			}
		}

		log.Info("page complete",
			zap.Int64("last_id", cursor),
			zap.Int("items", stats.Items),
			zap.Int("written", stats.Written),
			zap.Int("skipped_existing", stats.SkippedExisting),
			zap.Int("failed", stats.Failed),
		)

		if len(page) < opts.BatchSize {
			exhausted = true
			break
		}
	}

	// After the range is exhausted the cursor points past the last id, so a
	// resumed run would see nothing. Rewind the checkpoint to the run's own
	// start; the next invocation rescans and skip-existing accounting keeps
	// it cheap.
	if exhausted && opts.CheckpointPath != "" && !opts.DryRun {
		cp := &model.Checkpoint{
			Source:    opts.Source,
			LastID:    cursor,
			NextStart: opts.StartAfter,
			Stats:     stats,
			UpdatedAt: time.Now().UTC(),
		}
		if err := SaveCheckpoint(opts.CheckpointPath, cp); err != nil {
			return nil, err
		}
		log.Info("range exhausted, checkpoint rewound",
			zap.Int64("last_id", cursor),
			zap.Int64("next_start", opts.StartAfter),
		)
	}

	summary.FinishedAt = time.Now().UTC()
	summary.Elapsed = summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond).String()
	summary.LastID = cursor
	summary.Stats = stats

	log.Info("backfill complete",
		zap.Int("items", stats.Items),
		zap.Int("written", stats.Written),
		zap.Int("skipped", stats.Skipped),
		zap.Int("skipped_existing", stats.SkippedExisting),
		zap.Int("failed", stats.Failed),
		zap.String("elapsed", summary.Elapsed),
	)

	return summary, nil
}

// processItem runs the configured stages over one product. Failures never
// abort the page: they are journaled and folded into counters.
func (o *Orchestrator) processItem(ctx context.Context, adapter source.Adapter, snap *taxonomy.Snapshot, resolver *taxonomy.Resolver, rec store.ProductRecord, opts Options) model.Outcome {
	rows, err := o.store.GetProductIngredients(ctx, rec.Source, rec.SourceID)
	if err != nil {
		return o.fail(rec, nil, model.StageResolve, err)
	}

	outcome := model.Outcome{Kind: model.OutcomeSkipped, Source: rec.Source, SourceID: rec.SourceID}

	if opts.Mode == ModeForms || opts.Mode == ModeAll {
		formsSet := 0
		for i := range rows {
			tokens := taxonomy.ExtractTokens(adapter.Label(rows[i].Payload))
			verdict := resolver.Resolve(rows[i], tokens)
			if !verdict.Writable() {
				continue
			}
			if opts.DryRun {
				rows[i].FormText = verdict.FormText
				formsSet++
				continue
			}
			wrote, err := o.store.SetFormText(ctx, rows[i].ID, verdict.FormText)
			if err != nil {
				return o.fail(rec, rows, model.StageIngredientUp, err)
			}
			if wrote {
				// Keep the in-memory row current so a same-run score
				// sees the resolved form.
				rows[i].FormText = verdict.FormText
				formsSet++
			}
		}
		if formsSet > 0 {
			outcome.Kind = model.OutcomeWritten
			outcome.FormsSet = formsSet
		} else {
			outcome.Reason = "no_writable_rows"
		}
	}

	if opts.Mode == ModeScores || opts.Mode == ModeAll {
		mult := scoring.DeriveMultiplier(adapter, rec.Payload)
		hash := scoring.InputsHash(rows, mult, o.datasetVersion)

		if !opts.Force {
			existing, err := o.store.GetScore(ctx, rec.Source, rec.SourceID)
			if err != nil {
				return o.fail(rec, rows, model.StageCompute, err)
			}
			if existing != nil && existing.InputsHash == hash && existing.ScoreVersion == scoring.ScoreVersion {
				outcome.Kind = model.OutcomeSkippedExisting
				outcome.Reason = "inputs_unchanged"
				return outcome
			}
		}

		score := o.engine.ComputeWithSnapshot(snap, scoring.Input{
			Source:     rec.Source,
			SourceID:   rec.SourceID,
			Rows:       rows,
			Multiplier: mult,
		})
		if score == nil {
			if outcome.Kind != model.OutcomeWritten {
				outcome.Kind = model.OutcomeSkipped
				outcome.Reason = "no_active_rows"
			}
			return outcome
		}

		if !opts.DryRun {
			if err := o.store.UpsertScore(ctx, score); err != nil {
				return o.fail(rec, rows, model.StageScoreUp, err)
			}
		}
		outcome.Kind = model.OutcomeWritten
		outcome.ScoreDone = true
	}

	return outcome
}

// fail journals the error and returns a failed outcome. rows are the
// ingredient rows in hand when the stage failed; nil when the failure
// happened before they were fetched.
func (o *Orchestrator) fail(rec store.ProductRecord, rows []model.ProductIngredient, stage model.Stage, err error) model.Outcome {
	entry := model.FailureEntry{
		At:                time.Now().UTC(),
		Source:            rec.Source,
		SourceID:          rec.SourceID,
		CanonicalSourceID: rec.CanonicalSourceID,
		Stage:             stage,
		StatusCode:        resilience.StatusCode(err),
		TraceID:           uuid.NewString(),
		Message:           err.Error(),
		Code:              resilience.Classify(err),
		Details:           eris.ToJSON(err, false),
		Hint:              failureHint(err),
		Payload:           payloadSummary(rec, rows),
	}

	log := zap.L().With(
		zap.String("source", rec.Source),
		zap.String("source_id", rec.SourceID),
		zap.String("stage", string(stage)),
		zap.String("trace_id", entry.TraceID),
	)
	log.Error("item failed", zap.Error(err))

	if o.journal != nil {
		if jErr := o.journal.Append(entry); jErr != nil {
			log.Warn("failed to journal entry", zap.Error(jErr))
		}
	}

	return model.Outcome{
		Kind:     model.OutcomeFailed,
		Source:   rec.Source,
		SourceID: rec.SourceID,
		Reason:   string(stage),
	}
}

func failureHint(err error) string {
	if resilience.IsTransient(err) {
		return "transient failure; rerun with `backfill replay` once the upstream recovers"
	}
	return "permanent failure; inspect the payload summary and fix the source data before replaying"
}

// payloadSummary captures enough of the failed item to diagnose the journal
// entry without re-querying the store.
func payloadSummary(rec store.ProductRecord, rows []model.ProductIngredient) map[string]any {
	summary := map[string]any{
		"product_id": rec.ID,
	}
	if rows == nil {
		return summary
	}

	var active, unresolved, missingID, missingAmount int
	for _, r := range rows {
		if r.Active {
			active++
		}
		if !r.Resolved() {
			unresolved++
		}
		if r.IngredientID == nil {
			missingID++
		}
		if r.Amount == nil {
			missingAmount++
		}
	}
	summary["ingredient_rows"] = len(rows)
	summary["active_rows"] = active
	summary["unresolved_rows"] = unresolved
	summary["rows_missing_ingredient_id"] = missingID
	summary["rows_missing_amount"] = missingAmount
	return summary
}
