package diag

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Gate holds the drift thresholds a taxonomy change must satisfy before it
// ships. Loaded from a YAML file checked in next to the taxonomy workbook.
type Gate struct {
	// MinWritableRatio is the floor for the after-report's resolved fraction.
	MinWritableRatio float64 `yaml:"min_writable_ratio"`
	// MaxConflictRatio is the ceiling for the after-report's conflict fraction.
	MaxConflictRatio float64 `yaml:"max_conflict_ratio"`
	// MinYieldImprovement is the minimum writable-ratio gain over the before
	// report. Zero allows a flat result; negative allows a bounded regression.
	MinYieldImprovement float64 `yaml:"min_yield_improvement"`
}

// LoadGate reads gate thresholds from a YAML file.
func LoadGate(path string) (Gate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Gate{}, eris.Wrapf(err, "diag: read gate %s", path)
	}
	var g Gate
	if err := yaml.Unmarshal(data, &g); err != nil {
		return Gate{}, eris.Wrapf(err, "diag: parse gate %s", path)
	}
	return g, nil
}

// DriftResult is the gate verdict for a before/after report pair.
type DriftResult struct {
	BeforeWritable float64  `json:"before_writable"`
	AfterWritable  float64  `json:"after_writable"`
	BeforeConflict float64  `json:"before_conflict"`
	AfterConflict  float64  `json:"after_conflict"`
	Improvement    float64  `json:"improvement"`
	Violations     []string `json:"violations,omitempty"`
	Pass           bool     `json:"pass"`
}

// CompareDrift evaluates an after report against a before report and the
// gate thresholds. Every violated threshold is reported, not just the first.
func CompareDrift(before, after *YieldReport, gate Gate) *DriftResult {
	res := &DriftResult{
		BeforeWritable: before.WritableRatio(),
		AfterWritable:  after.WritableRatio(),
		BeforeConflict: before.ConflictRatio(),
		AfterConflict:  after.ConflictRatio(),
	}
	res.Improvement = res.AfterWritable - res.BeforeWritable

	if res.AfterWritable < gate.MinWritableRatio {
		res.Violations = append(res.Violations, fmt.Sprintf(
			"writable ratio %.4f below floor %.4f", res.AfterWritable, gate.MinWritableRatio))
	}
	if res.AfterConflict > gate.MaxConflictRatio {
		res.Violations = append(res.Violations, fmt.Sprintf(
			"conflict ratio %.4f above ceiling %.4f", res.AfterConflict, gate.MaxConflictRatio))
	}
	if res.Improvement < gate.MinYieldImprovement {
		res.Violations = append(res.Violations, fmt.Sprintf(
			"yield improvement %.4f below minimum %.4f", res.Improvement, gate.MinYieldImprovement))
	}

	res.Pass = len(res.Violations) == 0
	return res
}
