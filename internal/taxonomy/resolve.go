package taxonomy

import (
	"sort"
	"strings"

	"github.com/suppscan/score-cli/internal/model"
)

// Classification is the five-way resolution verdict for one occurrence.
type Classification string

const (
	// ClassNoTokens: the extractor produced nothing.
	ClassNoTokens Classification = "no_tokens"
	// ClassNoMap: the ingredient has no known forms, or no token mapped.
	ClassNoMap Classification = "no_map_to_form_key"
	// ClassConflict: an alias reached a form key outside the ingredient's
	// known-form set while the ingredient does have known forms. Signals a
	// stale or wrong alias; takes precedence over ambiguity.
	ClassConflict Classification = "taxonomy_conflict"
	// ClassAmbiguous: tokens reached two or more distinct form keys.
	ClassAmbiguous Classification = "ambiguous_tokens"
	// ClassAlreadySet: the occurrence already has form text; no write.
	ClassAlreadySet Classification = "already_nonempty"
	// ClassWritable: exactly one form key reached; safe to write.
	ClassWritable Classification = "writable"
)

// Verdict is the outcome of resolving one occurrence.
type Verdict struct {
	Class    Classification `json:"class"`
	FormKey  string         `json:"form_key,omitempty"`
	FormText string         `json:"form_text,omitempty"`
	// ConflictKeys lists alias targets outside the known-form set, for
	// diagnostics.
	ConflictKeys []string `json:"conflict_keys,omitempty"`
	// Candidates lists the distinct form keys reached when ambiguous.
	Candidates []string `json:"candidates,omitempty"`
}

// Writable reports whether the verdict permits a form-text write.
func (v Verdict) Writable() bool { return v.Class == ClassWritable }

// Resolver maps extracted tokens to canonical form keys against a taxonomy
// snapshot. Resolution is deterministic for a fixed snapshot and token set.
type Resolver struct {
	snap *Snapshot
}

// NewResolver creates a resolver over a loaded snapshot.
func NewResolver(snap *Snapshot) *Resolver {
	return &Resolver{snap: snap}
}

// Resolve classifies one occurrence. The classification is intentionally
// conservative: anything short of exactly one unambiguous, known form key
// leaves the row unresolved rather than risking a wrong write.
func (r *Resolver) Resolve(pi model.ProductIngredient, tokens []Token) Verdict {
	if pi.FormText != "" {
		return Verdict{Class: ClassAlreadySet}
	}
	if len(tokens) == 0 {
		return Verdict{Class: ClassNoTokens}
	}
	if pi.IngredientID == nil {
		return Verdict{Class: ClassNoMap}
	}

	known := r.snap.KnownForms(*pi.IngredientID)

	// formKeys is the candidate set; matchedTokens remembers which token
	// text reached each key so the write can be reproduced exactly.
	formKeys := make(map[string]bool)
	matchedTokens := make(map[string][]string)
	var conflictKeys []string

	for _, tok := range tokens {
		norm := Normalize(tok.Text)
		if norm == "" {
			norm = tok.Text
		}

		// Direct match against the ingredient's known form keys.
		if _, ok := known[norm]; ok {
			formKeys[norm] = true
			matchedTokens[norm] = append(matchedTokens[norm], tok.Text)
			continue
		}

		alias, ok := r.snap.LookupAlias(*pi.IngredientID, norm)
		if !ok {
			continue
		}

		if _, ok := known[alias.FormKey]; !ok {
			if len(known) > 0 {
				conflictKeys = append(conflictKeys, alias.FormKey)
			}
			continue
		}

		formKeys[alias.FormKey] = true
		matchedTokens[alias.FormKey] = append(matchedTokens[alias.FormKey], tok.Text)
	}

	// Conflict takes priority over ambiguity: a bad alias is a taxonomy
	// defect and must surface even when other tokens resolved cleanly.
	if len(conflictKeys) > 0 {
		sort.Strings(conflictKeys)
		return Verdict{Class: ClassConflict, ConflictKeys: dedupe(conflictKeys)}
	}

	if len(formKeys) == 0 {
		return Verdict{Class: ClassNoMap}
	}

	if len(formKeys) > 1 {
		candidates := make([]string, 0, len(formKeys))
		for k := range formKeys {
			candidates = append(candidates, k)
		}
		sort.Strings(candidates)
		return Verdict{Class: ClassAmbiguous, Candidates: candidates}
	}

	var formKey string
	for k := range formKeys {
		formKey = k
	}

	texts := dedupe(matchedTokens[formKey])
	sort.Strings(texts)

	return Verdict{
		Class:    ClassWritable,
		FormKey:  formKey,
		FormText: strings.Join(texts, ", "),
	}
}

func dedupe(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := ss[:0]
	for _, s := range ss {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
