// Package store provides the narrow reference-store contract the pipeline
// depends on, with Postgres and SQLite implementations.
package store

import (
	"context"

	"github.com/suppscan/score-cli/internal/model"
)

// ProductRecord is one source product row, the unit of pagination for the
// backfill orchestrator.
type ProductRecord struct {
	ID                int64          `json:"id"`
	Source            string         `json:"source"`
	SourceID          string         `json:"source_id"`
	CanonicalSourceID string         `json:"canonical_source_id"`
	Payload           map[string]any `json:"payload,omitempty"`
}

// Store is the persistence contract for the resolution and scoring pipeline.
// Reads of taxonomy tables satisfy taxonomy.Source.
type Store interface {
	// Taxonomy reference data (read-only during a run).
	ListForms(ctx context.Context) ([]model.IngredientForm, error)
	ListAliases(ctx context.Context) ([]model.FormAlias, error)
	ListLimits(ctx context.Context) ([]model.IngredientLimit, error)

	// Taxonomy curation (used by `taxonomy import` only).
	UpsertForms(ctx context.Context, forms []model.IngredientForm) (int64, error)
	UpsertAliases(ctx context.Context, aliases []model.FormAlias) (int64, error)

	// Product reads.
	ListProductsPage(ctx context.Context, source string, afterID, endID int64, limit int) ([]ProductRecord, error)
	GetProduct(ctx context.Context, source, sourceID string) (*ProductRecord, error)
	GetProductIngredients(ctx context.Context, source, sourceID string) ([]model.ProductIngredient, error)
	SampleProductIngredients(ctx context.Context, source string, limit int) ([]model.ProductIngredient, error)

	// SetFormText fills the form-text field of one occurrence. The update
	// is conditional on the field still being empty; false means a
	// concurrent resolution won the race and nothing was written.
	SetFormText(ctx context.Context, id int64, formText string) (bool, error)

	// Scores.
	GetScore(ctx context.Context, source, sourceID string) (*model.ProductScore, error)
	UpsertScore(ctx context.Context, score *model.ProductScore) error

	// Lifecycle.
	Migrate(ctx context.Context) error
	Close()
}
