package model

import "time"

// Stage identifies where in the pipeline a unit of work failed.
type Stage string

const (
	StageResolve      Stage = "resolve_forms"
	StageCompute      Stage = "compute_score"
	StageIngredientUp Stage = "product_ingredients_upsert"
	StageScoreUp      Stage = "product_scores_upsert"
)

// OutcomeKind is the per-item result folded into run counters.
type OutcomeKind string

const (
	OutcomeWritten         OutcomeKind = "written"
	OutcomeSkippedExisting OutcomeKind = "skipped-existing"
	OutcomeSkipped         OutcomeKind = "skipped"
	OutcomeFailed          OutcomeKind = "failed"
)

// Outcome is returned by a worker for one processed item.
type Outcome struct {
	Kind      OutcomeKind `json:"kind"`
	Source    string      `json:"source"`
	SourceID  string      `json:"source_id"`
	Reason    string      `json:"reason,omitempty"`
	FormsSet  int         `json:"forms_set,omitempty"`
	ScoreDone bool        `json:"score_done,omitempty"`
}

// FailureEntry is one append-only failure journal record. Entries are never
// mutated; replay reads them back and reprocesses.
type FailureEntry struct {
	At                time.Time      `json:"at"`
	Source            string         `json:"source"`
	SourceID          string         `json:"source_id"`
	CanonicalSourceID string         `json:"canonical_source_id,omitempty"`
	Stage             Stage          `json:"stage"`
	StatusCode        int            `json:"status_code,omitempty"`
	TraceID           string         `json:"trace_id"`
	Message           string         `json:"message"`
	Code              string         `json:"code,omitempty"`
	Details           map[string]any `json:"details,omitempty"`
	Hint              string         `json:"hint,omitempty"`
	Payload           map[string]any `json:"payload,omitempty"`
}

// CheckpointStats are the running counters carried in the checkpoint file.
type CheckpointStats struct {
	Pages           int `json:"pages"`
	Items           int `json:"items"`
	Written         int `json:"written"`
	SkippedExisting int `json:"skipped_existing"`
	Skipped         int `json:"skipped"`
	Failed          int `json:"failed"`
}

// Add folds one outcome into the counters.
func (s *CheckpointStats) Add(o Outcome) {
	s.Items++
	switch o.Kind {
	case OutcomeWritten:
		s.Written++
	case OutcomeSkippedExisting:
		s.SkippedExisting++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Failed++
	}
}

// Checkpoint is the per-source cursor state, overwritten after every page.
type Checkpoint struct {
	Source    string          `json:"source"`
	LastID    int64           `json:"last_id"`
	NextStart int64           `json:"next_start"`
	Stats     CheckpointStats `json:"stats"`
	UpdatedAt time.Time       `json:"updated_at"`
}
