package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suppscan/score-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(st.Close)
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

// --- Taxonomy ---

func TestSQLite_Forms_UpsertAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := st.UpsertForms(ctx, []model.IngredientForm{
		{IngredientID: 1, FormKey: "gluconate", Label: "Gluconate",
			AuditStatus: model.AuditVerified, Confidence: 0.95, PotencyFactor: 1.2},
		{IngredientID: 1, FormKey: "citrate", Label: "Citrate",
			AuditStatus: model.AuditDerived, Confidence: 0.7, PotencyFactor: 1.0},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	forms, err := st.ListForms(ctx)
	require.NoError(t, err)
	require.Len(t, forms, 2)
	// Ordered by ingredient_id, form_key.
	assert.Equal(t, "citrate", forms[0].FormKey)
	assert.Equal(t, "gluconate", forms[1].FormKey)
	assert.Equal(t, model.AuditVerified, forms[1].AuditStatus)
	assert.Equal(t, 1.2, forms[1].PotencyFactor)
}

func TestSQLite_Forms_UpsertUpdatesOnConflict(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertForms(ctx, []model.IngredientForm{
		{IngredientID: 1, FormKey: "gluconate", AuditStatus: model.AuditDerived, PotencyFactor: 1.0},
	})
	require.NoError(t, err)

	_, err = st.UpsertForms(ctx, []model.IngredientForm{
		{IngredientID: 1, FormKey: "gluconate", AuditStatus: model.AuditVerified, PotencyFactor: 1.2},
	})
	require.NoError(t, err)

	forms, err := st.ListForms(ctx)
	require.NoError(t, err)
	require.Len(t, forms, 1)
	assert.Equal(t, model.AuditVerified, forms[0].AuditStatus)
	assert.Equal(t, 1.2, forms[0].PotencyFactor)
}

func TestSQLite_Aliases_UpsertAndList(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	n, err := st.UpsertAliases(ctx, []model.FormAlias{
		{Alias: "Zinc Gluconate", Normalized: "zinc gluconate", FormKey: "gluconate",
			IngredientID: 1, Confidence: 0.9, AuditStatus: model.AuditVerified, Source: "curated"},
		{Alias: "bisglycinate", Normalized: "bisglycinate", FormKey: "glycinate",
			IngredientID: 0, Confidence: 0.8, AuditStatus: model.AuditDerived},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	aliases, err := st.ListAliases(ctx)
	require.NoError(t, err)
	require.Len(t, aliases, 2)
	// Global alias (ingredient_id 0) sorts first.
	assert.Equal(t, "bisglycinate", aliases[0].Normalized)
	assert.Equal(t, int64(0), aliases[0].IngredientID)
	assert.Equal(t, "gluconate", aliases[1].FormKey)
	assert.Equal(t, "curated", aliases[1].Source)
}

func TestSQLite_Limits_DecodesInteractionTags(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.db.ExecContext(ctx,
		`INSERT INTO ingredient_limits (ingredient_id, daily_upper_limit, unit, interaction_tags)
		 VALUES (1, 40, 'mg', '["copper_depletion"]'), (2, NULL, '', NULL)`)
	require.NoError(t, err)

	limits, err := st.ListLimits(ctx)
	require.NoError(t, err)
	require.Len(t, limits, 2)
	require.NotNil(t, limits[0].DailyUpperLimit)
	assert.Equal(t, 40.0, *limits[0].DailyUpperLimit)
	assert.Equal(t, []string{"copper_depletion"}, limits[0].InteractionTags)
	assert.Nil(t, limits[1].DailyUpperLimit)
	assert.Nil(t, limits[1].InteractionTags)
}

// --- Products ---

func seedSQLiteProducts(t *testing.T, st *SQLiteStore) {
	t.Helper()
	ctx := context.Background()
	_, err := st.db.ExecContext(ctx,
		`INSERT INTO products (source, source_id, payload)
		 VALUES ('dsld', 'p1', '{"servingsPerDay":2}'), ('dsld', 'p2', NULL), ('nhpd', 'n1', NULL)`)
	require.NoError(t, err)
}

func TestSQLite_ListProductsPage_Pagination(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedSQLiteProducts(t, st)
	ctx := context.Background()

	page, err := st.ListProductsPage(ctx, "dsld", 0, 0, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "p1", page[0].SourceID)
	assert.Equal(t, 2.0, page[0].Payload["servingsPerDay"])

	page, err = st.ListProductsPage(ctx, "dsld", page[0].ID, 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "p2", page[0].SourceID)
}

func TestSQLite_ListProductsPage_EndID(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedSQLiteProducts(t, st)

	page, err := st.ListProductsPage(context.Background(), "dsld", 0, 1, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(1), page[0].ID)
}

func TestSQLite_GetProduct_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	rec, err := st.GetProduct(context.Background(), "dsld", "absent")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

// --- Product ingredients ---

func seedSQLiteIngredients(t *testing.T, st *SQLiteStore) {
	t.Helper()
	_, err := st.db.ExecContext(context.Background(),
		`INSERT INTO product_ingredients
		   (source, source_id, ingredient_id, raw_name, name_key, form_text, amount, unit, active, parse_confidence, payload)
		 VALUES
		   ('dsld', 'p1', 1, 'Zinc (as Zinc Gluconate)', 'zinc', NULL, 15, 'mg', 1, 0.9, '{"name":"Zinc (as Zinc Gluconate)"}'),
		   ('dsld', 'p1', 2, 'Magnesium', 'magnesium', 'citrate', 200, 'mg', 0, 0.8, NULL)`)
	require.NoError(t, err)
}

func TestSQLite_GetProductIngredients(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedSQLiteIngredients(t, st)

	rows, err := st.GetProductIngredients(context.Background(), "dsld", "p1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "zinc", rows[0].NameKey)
	assert.Equal(t, "", rows[0].FormText)
	require.NotNil(t, rows[0].Amount)
	assert.Equal(t, 15.0, *rows[0].Amount)
	assert.Equal(t, "Zinc (as Zinc Gluconate)", rows[0].Payload["name"])
	assert.Equal(t, "citrate", rows[1].FormText)
	assert.False(t, rows[1].Active)
}

func TestSQLite_SampleProductIngredients_ActiveOnly(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedSQLiteIngredients(t, st)

	rows, err := st.SampleProductIngredients(context.Background(), "dsld", 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "zinc", rows[0].NameKey)
}

func TestSQLite_SetFormText_OnlyFillsEmpty(t *testing.T) {
	st := newTestSQLiteStore(t)
	seedSQLiteIngredients(t, st)
	ctx := context.Background()

	rows, err := st.GetProductIngredients(ctx, "dsld", "p1")
	require.NoError(t, err)
	empty, filled := rows[0], rows[1]

	wrote, err := st.SetFormText(ctx, empty.ID, "gluconate")
	require.NoError(t, err)
	assert.True(t, wrote)

	// Second write loses the still-empty condition.
	wrote, err = st.SetFormText(ctx, empty.ID, "citrate")
	require.NoError(t, err)
	assert.False(t, wrote)

	wrote, err = st.SetFormText(ctx, filled.ID, "malate")
	require.NoError(t, err)
	assert.False(t, wrote)

	rows, err = st.GetProductIngredients(ctx, "dsld", "p1")
	require.NoError(t, err)
	assert.Equal(t, "gluconate", rows[0].FormText)
	assert.Equal(t, "citrate", rows[1].FormText)
}

// --- Scores ---

func TestSQLite_Score_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	in := &model.ProductScore{
		Source:       "dsld",
		SourceID:     "p1",
		ScoreVersion: "v4",
		Overall:      82.5,
		Pillars:      model.Pillars{Effectiveness: 78, Safety: 90, Integrity: 75},
		Confidence:   model.ConfidenceHigh,
		BestFitGoals: []string{"immune"},
		Highlights:   []string{"fully_resolved_forms"},
		Evidence: model.Evidence{
			FormCoverageRatio: 1,
			ActiveRows:        2,
			ResolvedRows:      2,
			Multiplier:        2,
			MultiplierSource:  "nhpd.dose",
			DatasetVersion:    "2025-08",
		},
		InputsHash: "abc123",
		ComputedAt: time.Date(2025, 8, 29, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, st.UpsertScore(ctx, in))

	out, err := st.GetScore(ctx, "dsld", "p1")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, in.ScoreVersion, out.ScoreVersion)
	assert.Equal(t, in.Overall, out.Overall)
	assert.Equal(t, in.Pillars, out.Pillars)
	assert.Equal(t, in.Confidence, out.Confidence)
	assert.Equal(t, in.BestFitGoals, out.BestFitGoals)
	assert.Equal(t, in.Highlights, out.Highlights)
	assert.Equal(t, in.Evidence, out.Evidence)
	assert.Equal(t, in.InputsHash, out.InputsHash)
	assert.True(t, in.ComputedAt.Equal(out.ComputedAt))
}

func TestSQLite_Score_UpsertReplacesOnConflict(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := &model.ProductScore{
		Source: "dsld", SourceID: "p1", ScoreVersion: "v4",
		Overall: 50, Confidence: model.ConfidenceLow,
		InputsHash: "old", ComputedAt: time.Now().UTC(),
	}
	require.NoError(t, st.UpsertScore(ctx, base))

	base.Overall = 82.5
	base.InputsHash = "new"
	require.NoError(t, st.UpsertScore(ctx, base))

	out, err := st.GetScore(ctx, "dsld", "p1")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, 82.5, out.Overall)
	assert.Equal(t, "new", out.InputsHash)
}

func TestSQLite_GetScore_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	out, err := st.GetScore(context.Background(), "dsld", "absent")
	require.NoError(t, err)
	assert.Nil(t, out)
}
