package scoring

import (
	"fmt"
	"math"
	"strings"

	"github.com/suppscan/score-cli/internal/model"
	"github.com/suppscan/score-cli/internal/taxonomy"
)

// Pillar blend weights for the v4 formula. Fixed, not tunable at call time.
const (
	weightEffectiveness = 0.45
	weightSafety        = 0.35
	weightIntegrity     = 0.20
)

// Confidence thresholds on form coverage ratio.
const (
	coverageHigh     = 0.8
	coverageModerate = 0.4
)

// pillarInputs aggregates everything the pillar functions read, computed in
// one pass over the active rows.
type pillarInputs struct {
	activeRows         int
	resolvedRows       int
	coverage           float64
	avgPotency         float64
	amountCompleteness float64
	verifiedFraction   float64
	avgParseConfidence float64
	limitBreaches      []string
	interactionTags    []string
	verifiedForms      []string
}

func gatherPillarInputs(rows []model.ProductIngredient, mult Multiplier, snap *taxonomy.Snapshot) pillarInputs {
	var in pillarInputs
	var potencySum float64
	var potencyN int
	var withAmount int
	var confidenceSum float64
	var resolvedForms int
	seenTag := make(map[string]bool)

	for _, r := range rows {
		if !r.Active {
			continue
		}
		in.activeRows++
		confidenceSum += r.ParseConfidence

		if r.Amount != nil && r.Unit != "" {
			withAmount++
		}

		if !r.Resolved() {
			continue
		}
		in.resolvedRows++

		id := *r.IngredientID
		// Writable verdicts may join several matched token texts with ", ".
		// The potency factor keys on the first, split before normalization
		// collapses the separators.
		formText := r.FormText
		if i := strings.IndexByte(formText, ','); i >= 0 {
			formText = formText[:i]
		}
		formKey := taxonomy.Normalize(formText)

		potencySum += snap.PotencyFactor(id, formKey)
		potencyN++

		if f, ok := snap.Form(id, formKey); ok {
			resolvedForms++
			if f.AuditStatus == model.AuditVerified {
				in.verifiedFraction++
				in.verifiedForms = append(in.verifiedForms, fmt.Sprintf("%s %s", r.NameKey, f.FormKey))
			}
		}

		if limit, ok := snap.Limit(id); ok {
			if limit.DailyUpperLimit != nil && r.Amount != nil &&
				strings.EqualFold(r.Unit, limit.Unit) &&
				*r.Amount*mult.Value > *limit.DailyUpperLimit {
				in.limitBreaches = append(in.limitBreaches, r.NameKey)
			}
			for _, tag := range limit.InteractionTags {
				if !seenTag[tag] {
					seenTag[tag] = true
					in.interactionTags = append(in.interactionTags, tag)
				}
			}
		}
	}

	if in.activeRows > 0 {
		in.coverage = float64(in.resolvedRows) / float64(in.activeRows)
		in.amountCompleteness = float64(withAmount) / float64(in.activeRows)
		in.avgParseConfidence = confidenceSum / float64(in.activeRows)
	}
	if potencyN > 0 {
		in.avgPotency = potencySum / float64(potencyN)
	} else {
		in.avgPotency = 1
	}
	if resolvedForms > 0 {
		in.verifiedFraction = in.verifiedFraction / float64(resolvedForms)
	}

	return in
}

// effectivenessPillar blends form coverage with the relative potency of the
// resolved forms. An unresolved product can still score through coverage of
// zero plus the neutral potency baseline.
func effectivenessPillar(in pillarInputs) float64 {
	potency := clamp01(in.avgPotency / 1.5)
	return clamp100((0.6*in.coverage + 0.4*potency) * 100)
}

// safetyPillar starts from a clean slate and deducts for daily-exposure
// limit breaches and known interaction tags.
func safetyPillar(in pillarInputs) float64 {
	score := 100.0
	score -= math.Min(float64(len(in.limitBreaches))*25, 75)
	score -= math.Min(float64(len(in.interactionTags))*10, 30)
	return clamp100(score)
}

// integrityPillar measures dataset completeness: amount/unit presence,
// verified-form share, and upstream parse confidence.
func integrityPillar(in pillarInputs) float64 {
	return clamp100((0.5*in.amountCompleteness + 0.3*in.verifiedFraction + 0.2*in.avgParseConfidence) * 100)
}

// confidenceLabel derives the discrete label from coverage thresholds and
// dataset completeness.
func confidenceLabel(in pillarInputs) model.ConfidenceLabel {
	switch {
	case in.coverage >= coverageHigh && in.amountCompleteness >= 0.5:
		return model.ConfidenceHigh
	case in.coverage >= coverageModerate:
		return model.ConfidenceModerate
	case in.coverage > 0:
		return model.ConfidenceLow
	default:
		return model.ConfidenceMinimal
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(v, 1))
}

func clamp100(v float64) float64 {
	return math.Max(0, math.Min(v, 100))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
