// Package scoring computes the versioned, hashable product score bundle
// from resolved ingredient rows and a daily-dose multiplier.
package scoring

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/suppscan/score-cli/internal/model"
	"github.com/suppscan/score-cli/internal/taxonomy"
)

// ScoreVersion tags every bundle this engine produces. Bump it whenever the
// formula changes; the orchestrator recomputes stored scores whose version
// differs.
const ScoreVersion = "v4"

// goalTags maps name-key substrings to best-fit goal tags.
var goalTags = map[string]string{
	"magnesium":    "sleep",
	"melatonin":    "sleep",
	"ashwagandha":  "stress",
	"rhodiola":     "stress",
	"zinc":         "immune",
	"elderberry":   "immune",
	"vitamin c":    "immune",
	"creatine":     "performance",
	"beta alanine": "performance",
	"omega":        "heart",
	"fish oil":     "heart",
	"coq10":        "heart",
	"probiotic":    "gut",
	"glucosamine":  "joints",
	"collagen":     "joints",
	"lutein":       "vision",
	"iron":         "energy",
	"b12":          "energy",
}

// Input is everything the engine needs for one (source, source id) pair.
type Input struct {
	Source     string
	SourceID   string
	Rows       []model.ProductIngredient
	Multiplier Multiplier
}

// Engine computes v4 score bundles.
type Engine struct {
	datasetVersion string
}

// NewEngine creates an engine for a dataset version tag.
func NewEngine(datasetVersion string) *Engine {
	return &Engine{datasetVersion: datasetVersion}
}

// Compute loads a fresh taxonomy snapshot and scores one product. A
// reference-data fetch failure is the only hard error; callers treat it as
// retryable transport failure.
func (e *Engine) Compute(ctx context.Context, src taxonomy.Source, in Input) (*model.ProductScore, error) {
	snap, err := taxonomy.LoadSnapshot(ctx, src, e.datasetVersion)
	if err != nil {
		return nil, eris.Wrap(err, "scoring: load snapshot")
	}
	return e.ComputeWithSnapshot(snap, in), nil
}

// ComputeWithSnapshot scores one product against a pre-loaded snapshot. It
// is a pure function of its inputs: the cached and uncached paths produce
// identical bundles for identical inputs. Returns nil (no score, no error)
// when there are zero usable ingredient rows.
func (e *Engine) ComputeWithSnapshot(snap *taxonomy.Snapshot, in Input) *model.ProductScore {
	pin := gatherPillarInputs(in.Rows, in.Multiplier, snap)
	if pin.activeRows == 0 {
		zap.L().Debug("no usable ingredient rows, skipping score",
			zap.String("source", in.Source),
			zap.String("source_id", in.SourceID),
		)
		return nil
	}

	pillars := model.Pillars{
		Effectiveness: round2(effectivenessPillar(pin)),
		Safety:        round2(safetyPillar(pin)),
		Integrity:     round2(integrityPillar(pin)),
	}

	overall := round2(weightEffectiveness*pillars.Effectiveness +
		weightSafety*pillars.Safety +
		weightIntegrity*pillars.Integrity)

	score := &model.ProductScore{
		Source:       in.Source,
		SourceID:     in.SourceID,
		ScoreVersion: ScoreVersion,
		Overall:      overall,
		Pillars:      pillars,
		Confidence:   confidenceLabel(pin),
		BestFitGoals: bestFitGoals(in.Rows),
		Flags:        buildFlags(pin),
		Highlights:   buildHighlights(pin),
		Evidence: model.Evidence{
			FormCoverageRatio: round2(pin.coverage),
			ActiveRows:        pin.activeRows,
			ResolvedRows:      pin.resolvedRows,
			Multiplier:        in.Multiplier.Value,
			MultiplierSource:  in.Multiplier.Source,
			DefaultReason:     in.Multiplier.DefaultReason,
			DatasetVersion:    e.datasetVersion,
		},
		InputsHash: InputsHash(in.Rows, in.Multiplier, e.datasetVersion),
		ComputedAt: time.Now().UTC(),
	}

	return score
}

// bestFitGoals tags the product with goals its active ingredients serve.
// Output order is deterministic: sorted unique tags.
func bestFitGoals(rows []model.ProductIngredient) []string {
	seen := make(map[string]bool)
	var goals []string
	for _, r := range rows {
		if !r.Active {
			continue
		}
		for needle, tag := range goalTags {
			if strings.Contains(r.NameKey, needle) && !seen[tag] {
				seen[tag] = true
				goals = append(goals, tag)
			}
		}
	}
	sort.Strings(goals)
	return goals
}

func buildFlags(in pillarInputs) []string {
	var flags []string
	for _, name := range in.limitBreaches {
		flags = append(flags, fmt.Sprintf("exceeds_upper_limit:%s", name))
	}
	for _, tag := range in.interactionTags {
		flags = append(flags, fmt.Sprintf("interaction:%s", tag))
	}
	sort.Strings(flags)
	return flags
}

func buildHighlights(in pillarInputs) []string {
	var highlights []string
	for _, vf := range in.verifiedForms {
		highlights = append(highlights, fmt.Sprintf("verified_form:%s", vf))
	}
	if in.coverage >= coverageHigh {
		highlights = append(highlights, "fully_resolved_forms")
	}
	sort.Strings(highlights)
	return highlights
}
