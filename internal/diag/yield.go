package diag

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/suppscan/score-cli/internal/source"
	"github.com/suppscan/score-cli/internal/store"
	"github.com/suppscan/score-cli/internal/taxonomy"
)

// topOffenderCount caps the offender lists so reports stay readable.
const topOffenderCount = 10

// Offender is one frequently-failing token or ingredient.
type Offender struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// YieldReport summarizes how a sample of product ingredient rows classifies
// under the current taxonomy. Its ratios feed the drift gate.
type YieldReport struct {
	Source         string             `json:"source"`
	DatasetVersion string             `json:"dataset_version"`
	SampleSize     int                `json:"sample_size"`
	GeneratedAt    time.Time          `json:"generated_at"`
	Counts         map[string]int     `json:"counts"`
	Ratios         map[string]float64 `json:"ratios"`
	// TopUnmapped are the tokens that most often failed to reach a form key.
	TopUnmapped []Offender `json:"top_unmapped,omitempty"`
	// TopConflicted are the ingredient name keys that most often produced a
	// taxonomy conflict.
	TopConflicted []Offender `json:"top_conflicted,omitempty"`
}

// WritableRatio is the fraction of sampled rows that resolved or were
// already resolved.
func (r *YieldReport) WritableRatio() float64 {
	if r.SampleSize == 0 {
		return 0
	}
	resolved := r.Counts[string(taxonomy.ClassWritable)] + r.Counts[string(taxonomy.ClassAlreadySet)]
	return float64(resolved) / float64(r.SampleSize)
}

// ConflictRatio is the fraction of sampled rows classified as a taxonomy
// conflict.
func (r *YieldReport) ConflictRatio() float64 {
	if r.SampleSize == 0 {
		return 0
	}
	return float64(r.Counts[string(taxonomy.ClassConflict)]) / float64(r.SampleSize)
}

// BuildYield samples active product ingredient rows for one source and runs
// the resolution pipeline over each without writing anything.
func BuildYield(ctx context.Context, st store.Store, adapters *source.Registry, sourceName, datasetVersion string, sampleSize int) (*YieldReport, error) {
	adapter, err := adapters.Get(sourceName)
	if err != nil {
		return nil, eris.Wrap(err, "diag: resolve source adapter")
	}

	snap, err := taxonomy.LoadSnapshot(ctx, st, datasetVersion)
	if err != nil {
		return nil, eris.Wrap(err, "diag: load taxonomy snapshot")
	}
	resolver := taxonomy.NewResolver(snap)

	rows, err := st.SampleProductIngredients(ctx, sourceName, sampleSize)
	if err != nil {
		return nil, eris.Wrap(err, "diag: sample product ingredients")
	}

	report := &YieldReport{
		Source:         sourceName,
		DatasetVersion: datasetVersion,
		SampleSize:     len(rows),
		GeneratedAt:    time.Now().UTC(),
		Counts:         make(map[string]int),
		Ratios:         make(map[string]float64),
	}

	unmapped := make(map[string]int)
	conflicted := make(map[string]int)

	for _, pi := range rows {
		tokens := taxonomy.ExtractTokens(adapter.Label(pi.Payload))
		verdict := resolver.Resolve(pi, tokens)
		report.Counts[string(verdict.Class)]++

		switch verdict.Class {
		case taxonomy.ClassNoMap:
			for _, t := range tokens {
				unmapped[t.Text]++
			}
		case taxonomy.ClassConflict:
			conflicted[pi.NameKey]++
		}
	}

	if report.SampleSize > 0 {
		for class, n := range report.Counts {
			report.Ratios[class] = float64(n) / float64(report.SampleSize)
		}
	}
	report.TopUnmapped = topOffenders(unmapped)
	report.TopConflicted = topOffenders(conflicted)

	zap.L().Info("yield report built",
		zap.String("source", sourceName),
		zap.Int("sample_size", report.SampleSize),
		zap.Float64("writable_ratio", report.WritableRatio()),
		zap.Float64("conflict_ratio", report.ConflictRatio()),
	)

	return report, nil
}

// topOffenders sorts by count descending, then name, and truncates.
func topOffenders(counts map[string]int) []Offender {
	out := make([]Offender, 0, len(counts))
	for name, n := range counts {
		out = append(out, Offender{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > topOffenderCount {
		out = out[:topOffenderCount]
	}
	return out
}

// WriteReport writes a yield report as indented JSON.
func WriteReport(path string, report *YieldReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return eris.Wrap(err, "diag: marshal report")
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "diag: write report %s", path)
	}
	return nil
}

// ReadReport loads a previously written yield report.
func ReadReport(path string) (*YieldReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "diag: read report %s", path)
	}
	var report YieldReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, eris.Wrapf(err, "diag: parse report %s", path)
	}
	return &report, nil
}
