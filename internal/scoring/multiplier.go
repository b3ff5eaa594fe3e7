package scoring

import "github.com/suppscan/score-cli/internal/source"

// DefaultReasonNoDosing is recorded when a product payload carries no usable
// dosing metadata and the multiplier falls back to 1.
const DefaultReasonNoDosing = "no_dosing_metadata"

// Multiplier normalizes a per-serving dose to a per-day exposure.
type Multiplier struct {
	Value float64 `json:"value"`
	// Source tags where the value came from (e.g. "nhpd.dose"), or
	// "default" when no dosing metadata was present.
	Source        string `json:"source"`
	DefaultReason string `json:"default_reason,omitempty"`
}

// DeriveMultiplier computes the daily multiplier from a product's raw
// payload via its source adapter. It always returns a usable multiplier so
// the explanation payload stays auditable.
func DeriveMultiplier(adapter source.Adapter, productPayload map[string]any) Multiplier {
	if adapter != nil && productPayload != nil {
		if d, ok := adapter.Dosing(productPayload); ok && d.ServingsPerDay > 0 {
			return Multiplier{Value: d.ServingsPerDay, Source: d.Provenance}
		}
	}
	return Multiplier{Value: 1, Source: "default", DefaultReason: DefaultReasonNoDosing}
}
