package taxonomy

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/suppscan/score-cli/internal/model"
)

// Source is the read side of the alias & taxonomy store the snapshot needs.
type Source interface {
	ListForms(ctx context.Context) ([]model.IngredientForm, error)
	ListAliases(ctx context.Context) ([]model.FormAlias, error)
	ListLimits(ctx context.Context) ([]model.IngredientLimit, error)
}

// Snapshot is an in-process copy of the form taxonomy and alias tables,
// loaded once per run. The tables are read-only for the duration of a run,
// so the snapshot is safe for concurrent readers.
type Snapshot struct {
	DatasetVersion string

	forms  map[int64]map[string]model.IngredientForm
	scoped map[int64]map[string]model.FormAlias
	global map[string]model.FormAlias
	limits map[int64]model.IngredientLimit
}

// LoadSnapshot reads the full taxonomy from the store.
func LoadSnapshot(ctx context.Context, src Source, datasetVersion string) (*Snapshot, error) {
	forms, err := src.ListForms(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "taxonomy: load forms")
	}
	aliases, err := src.ListAliases(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "taxonomy: load aliases")
	}
	limits, err := src.ListLimits(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "taxonomy: load limits")
	}
	return NewSnapshot(forms, aliases, limits, datasetVersion), nil
}

// NewSnapshot builds a snapshot from already-fetched rows.
func NewSnapshot(forms []model.IngredientForm, aliases []model.FormAlias, limits []model.IngredientLimit, datasetVersion string) *Snapshot {
	s := &Snapshot{
		DatasetVersion: datasetVersion,
		forms:          make(map[int64]map[string]model.IngredientForm),
		scoped:         make(map[int64]map[string]model.FormAlias),
		global:         make(map[string]model.FormAlias),
		limits:         make(map[int64]model.IngredientLimit),
	}

	for _, l := range limits {
		s.limits[l.IngredientID] = l
	}

	for _, f := range forms {
		m, ok := s.forms[f.IngredientID]
		if !ok {
			m = make(map[string]model.IngredientForm)
			s.forms[f.IngredientID] = m
		}
		m[f.FormKey] = f
	}

	for _, a := range aliases {
		key := a.Normalized
		if key == "" {
			key = Normalize(a.Alias)
		}
		if a.Global() {
			s.global[key] = a
			continue
		}
		m, ok := s.scoped[a.IngredientID]
		if !ok {
			m = make(map[string]model.FormAlias)
			s.scoped[a.IngredientID] = m
		}
		m[key] = a
	}

	return s
}

// KnownForms returns the form keys recognized for an ingredient. The map is
// shared; callers must not mutate it.
func (s *Snapshot) KnownForms(ingredientID int64) map[string]model.IngredientForm {
	return s.forms[ingredientID]
}

// LookupAlias resolves a normalized token to an alias, consulting
// ingredient-scoped aliases first and global aliases only when no scoped
// alias matches.
func (s *Snapshot) LookupAlias(ingredientID int64, normalized string) (model.FormAlias, bool) {
	if m, ok := s.scoped[ingredientID]; ok {
		if a, ok := m[normalized]; ok {
			return a, true
		}
	}
	a, ok := s.global[normalized]
	return a, ok
}

// Limit returns the safety reference row for an ingredient, if any.
func (s *Snapshot) Limit(ingredientID int64) (model.IngredientLimit, bool) {
	l, ok := s.limits[ingredientID]
	return l, ok
}

// Form returns the full form row when both ingredient and key are known.
func (s *Snapshot) Form(ingredientID int64, formKey string) (model.IngredientForm, bool) {
	if m, ok := s.forms[ingredientID]; ok {
		f, ok := m[formKey]
		return f, ok
	}
	return model.IngredientForm{}, false
}

// PotencyFactor returns the relative potency factor recorded for a form, or
// 1 when the form is unknown or carries no factor.
func (s *Snapshot) PotencyFactor(ingredientID int64, formKey string) float64 {
	if m, ok := s.forms[ingredientID]; ok {
		if f, ok := m[formKey]; ok && f.PotencyFactor > 0 {
			return f.PotencyFactor
		}
	}
	return 1
}
