package backfill

import (
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/suppscan/score-cli/internal/model"
)

// Summary is the structured result of one run, written to --summary-out.
type Summary struct {
	Mode          string                `json:"mode"`
	Source        string                `json:"source"`
	DryRun        bool                  `json:"dry_run"`
	Force         bool                  `json:"force,omitempty"`
	StartedAt     time.Time             `json:"started_at"`
	FinishedAt    time.Time             `json:"finished_at"`
	Elapsed       string                `json:"elapsed"`
	TimeBudgetHit bool                  `json:"time_budget_hit,omitempty"`
	LastID        int64                 `json:"last_id"`
	Stats         model.CheckpointStats `json:"stats"`
}

// WriteSummary writes the summary as indented JSON.
func WriteSummary(path string, s *Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return eris.Wrap(err, "summary: marshal")
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "summary: write %s", path)
	}
	return nil
}
