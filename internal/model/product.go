package model

import "time"

// ProductIngredient is one ingredient occurrence inside one source product
// record. Rows are created by upstream ingestion; this pipeline only fills
// FormText (and only while it is empty).
type ProductIngredient struct {
	ID                int64    `json:"id"`
	Source            string   `json:"source"`
	SourceID          string   `json:"source_id"`
	CanonicalSourceID string   `json:"canonical_source_id"`
	IngredientID      *int64   `json:"ingredient_id,omitempty"`
	RawName           string   `json:"raw_name"`
	NameKey           string   `json:"name_key"`
	FormText          string   `json:"form_text,omitempty"`
	RawAmount         *float64 `json:"raw_amount,omitempty"`
	RawUnit           string   `json:"raw_unit,omitempty"`
	Amount            *float64 `json:"amount,omitempty"`
	Unit              string   `json:"unit,omitempty"`
	Basis             string   `json:"basis,omitempty"`
	Active            bool     `json:"active"`
	ParseConfidence   float64  `json:"parse_confidence"`

	// Payload carries the raw source-specific fields for this occurrence,
	// decoded from the store's jsonb column. Source adapters read it; the
	// pipeline never writes it.
	Payload map[string]any `json:"payload,omitempty"`
}

// Resolved reports whether the occurrence has both an ingredient id and a
// populated form text.
func (pi ProductIngredient) Resolved() bool {
	return pi.IngredientID != nil && pi.FormText != ""
}

// ConfidenceLabel classifies how much of a product's data backed its score.
type ConfidenceLabel string

const (
	ConfidenceHigh     ConfidenceLabel = "high"
	ConfidenceModerate ConfidenceLabel = "moderate"
	ConfidenceLow      ConfidenceLabel = "low"
	ConfidenceMinimal  ConfidenceLabel = "minimal"
)

// Pillars holds the three pillar scores, each clamped to [0, 100].
type Pillars struct {
	Effectiveness float64 `json:"effectiveness"`
	Safety        float64 `json:"safety"`
	Integrity     float64 `json:"integrity"`
}

// Evidence is the structured explanation payload stored with each score.
// FormCoverageRatio is consumed by the diagnostics drift gate.
type Evidence struct {
	FormCoverageRatio float64  `json:"formCoverageRatio"`
	ActiveRows        int      `json:"activeRows"`
	ResolvedRows      int      `json:"resolvedRows"`
	Multiplier        float64  `json:"multiplier"`
	MultiplierSource  string   `json:"multiplierSource"`
	DefaultReason     string   `json:"defaultReason,omitempty"`
	DatasetVersion    string   `json:"datasetVersion"`
	Notes             []string `json:"notes,omitempty"`
}

// ProductScore is the computed bundle for one (source, source id) pair,
// upserted keyed on that pair.
type ProductScore struct {
	Source       string          `json:"source"`
	SourceID     string          `json:"source_id"`
	ScoreVersion string          `json:"score_version"`
	Overall      float64         `json:"overall"`
	Pillars      Pillars         `json:"pillars"`
	Confidence   ConfidenceLabel `json:"confidence"`
	BestFitGoals []string        `json:"best_fit_goals,omitempty"`
	Flags        []string        `json:"flags,omitempty"`
	Highlights   []string        `json:"highlights,omitempty"`
	Evidence     Evidence        `json:"evidence"`
	InputsHash   string          `json:"inputs_hash"`
	ComputedAt   time.Time       `json:"computed_at"`
}
