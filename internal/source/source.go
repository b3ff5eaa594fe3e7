// Package source isolates source-specific payload shapes behind adapters
// that return one normalized label shape. Each external label-facts source
// stores its raw record fields under different names; the "pick first
// present key" logic lives here and nowhere else.
package source

import (
	"sort"
	"strconv"

	"github.com/rotisserie/eris"
)

// Label is the normalized per-ingredient label shape consumed by the form
// token extractor.
type Label struct {
	Name               string
	ProperName         string
	SourceMaterial     string
	ExtractType        string
	RatioNumerator     string
	RatioDenominator   string
	PotencyConstituent string
	PotencyAmount      float64
	PotencyUnit        string
	DriedHerbEquiv     bool
}

// Dosing is the normalized product-level dosing metadata used to derive the
// daily multiplier.
type Dosing struct {
	ServingsPerDay  float64
	FrequencyPerDay float64
	// Field names the values came from, for the explanation payload.
	Provenance string
}

// Adapter normalizes one source's raw payloads.
type Adapter interface {
	// Name returns the source tag (e.g., "dsld", "nhpd").
	Name() string

	// Label extracts the normalized label shape from a raw ingredient payload.
	Label(raw map[string]any) Label

	// Dosing extracts dosing metadata from a raw product payload. The bool
	// is false when the payload carries no usable dosing information.
	Dosing(raw map[string]any) (Dosing, bool)
}

// Registry holds the known source adapters keyed by source tag.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry builds a registry with all built-in adapters.
func NewRegistry() *Registry {
	r := &Registry{adapters: make(map[string]Adapter)}
	for _, a := range []Adapter{&DSLD{}, &NHPD{}} {
		r.adapters[a.Name()] = a
	}
	return r
}

// Get returns the adapter for a source tag.
func (r *Registry) Get(source string) (Adapter, error) {
	a, ok := r.adapters[source]
	if !ok {
		return nil, eris.Errorf("source: no adapter registered for %q", source)
	}
	return a, nil
}

// Names returns the registered source tags, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// firstString returns the first non-empty string value among keys.
func firstString(raw map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// firstNumber returns the first numeric value among keys, accepting JSON
// numbers and numeric strings.
func firstNumber(raw map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := raw[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		case string:
			if f, err := strconv.ParseFloat(n, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// firstBool returns the first boolean value among keys.
func firstBool(raw map[string]any, keys ...string) bool {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if b, ok := v.(bool); ok {
				return b
			}
			if s, ok := v.(string); ok && (s == "true" || s == "yes" || s == "y") {
				return true
			}
		}
	}
	return false
}

// subMap returns a nested payload object if present.
func subMap(raw map[string]any, keys ...string) map[string]any {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			if m, ok := v.(map[string]any); ok {
				return m
			}
		}
	}
	return nil
}
