package diag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/suppscan/score-cli/internal/backfill"
	"github.com/suppscan/score-cli/internal/model"
	"github.com/suppscan/score-cli/internal/source"
	"github.com/suppscan/score-cli/internal/store"
	"github.com/suppscan/score-cli/internal/taxonomy"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// diagStore is a read-only in-memory Store for handler tests.
type diagStore struct {
	forms       []model.IngredientForm
	aliases     []model.FormAlias
	limits      []model.IngredientLimit
	products    map[string]*store.ProductRecord
	ingredients map[string][]model.ProductIngredient
}

func key(source, sourceID string) string { return source + "|" + sourceID }

func (d *diagStore) ListForms(context.Context) ([]model.IngredientForm, error) {
	return d.forms, nil
}

func (d *diagStore) ListAliases(context.Context) ([]model.FormAlias, error) {
	return d.aliases, nil
}

func (d *diagStore) ListLimits(context.Context) ([]model.IngredientLimit, error) {
	return d.limits, nil
}

func (d *diagStore) UpsertForms(context.Context, []model.IngredientForm) (int64, error) {
	return 0, nil
}

func (d *diagStore) UpsertAliases(context.Context, []model.FormAlias) (int64, error) {
	return 0, nil
}

func (d *diagStore) ListProductsPage(context.Context, string, int64, int64, int) ([]store.ProductRecord, error) {
	return nil, nil
}

func (d *diagStore) GetProduct(_ context.Context, source, sourceID string) (*store.ProductRecord, error) {
	return d.products[key(source, sourceID)], nil
}

func (d *diagStore) GetProductIngredients(_ context.Context, source, sourceID string) ([]model.ProductIngredient, error) {
	return d.ingredients[key(source, sourceID)], nil
}

func (d *diagStore) SampleProductIngredients(_ context.Context, sourceName string, limit int) ([]model.ProductIngredient, error) {
	var out []model.ProductIngredient
	for _, rows := range d.ingredients {
		for _, pi := range rows {
			if pi.Source == sourceName && len(out) < limit {
				out = append(out, pi)
			}
		}
	}
	return out, nil
}

func (d *diagStore) SetFormText(context.Context, int64, string) (bool, error) {
	return false, nil
}

func (d *diagStore) GetScore(context.Context, string, string) (*model.ProductScore, error) {
	return nil, nil
}

func (d *diagStore) UpsertScore(context.Context, *model.ProductScore) error { return nil }
func (d *diagStore) Migrate(context.Context) error                          { return nil }
func (d *diagStore) Close()                                                 {}

func seedDiagStore() *diagStore {
	zinc := int64(1)
	amt := 15.0
	return &diagStore{
		forms: []model.IngredientForm{
			{IngredientID: 1, FormKey: "gluconate", Label: "Gluconate",
				AuditStatus: model.AuditVerified, Confidence: 0.95, PotencyFactor: 1.2},
		},
		products: map[string]*store.ProductRecord{
			key("dsld", "p1"): {
				ID: 1, Source: "dsld", SourceID: "p1",
				Payload: map[string]any{"servingsPerDay": 2.0},
			},
		},
		ingredients: map[string][]model.ProductIngredient{
			key("dsld", "p1"): {
				{
					ID: 11, Source: "dsld", SourceID: "p1",
					IngredientID: &zinc, RawName: "Zinc (as Zinc Gluconate)",
					NameKey: "zinc", Amount: &amt, Unit: "mg",
					Active: true, ParseConfidence: 0.9,
					Payload: map[string]any{"name": "Zinc (as Zinc Gluconate)"},
				},
			},
		},
	}
}

func newTestServer(checkpointPath string) *Server {
	return NewServer(seedDiagStore(), source.NewRegistry(), "2025-08", 100, checkpointPath)
}

func TestServer_Healthz(t *testing.T) {
	router := newTestServer("").Router()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestServer_Yield_RequiresSource(t *testing.T) {
	router := newTestServer("").Router()

	req := httptest.NewRequest(http.MethodGet, "/v1/yield", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "source query parameter is required")
}

func TestServer_Yield_ReportsClassCounts(t *testing.T) {
	router := newTestServer("").Router()

	req := httptest.NewRequest(http.MethodGet, "/v1/yield?source=dsld", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var report YieldReport
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &report))
	assert.Equal(t, "dsld", report.Source)
	assert.Equal(t, 1, report.SampleSize)
	assert.Equal(t, 1, report.Counts[string(taxonomy.ClassWritable)])
}

func TestServer_Yield_RejectsBadSample(t *testing.T) {
	router := newTestServer("").Router()

	req := httptest.NewRequest(http.MethodGet, "/v1/yield?source=dsld&sample=zero", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestServer_Resolve_UnknownSource(t *testing.T) {
	router := newTestServer("").Router()

	req := httptest.NewRequest(http.MethodGet, "/v1/resolve/openfda/p1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "unknown source")
}

func TestServer_Resolve_ReturnsVerdicts(t *testing.T) {
	router := newTestServer("").Router()

	req := httptest.NewRequest(http.MethodGet, "/v1/resolve/dsld/p1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var verdicts []struct {
		Row     model.ProductIngredient `json:"row"`
		Verdict taxonomy.Verdict        `json:"verdict"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &verdicts))
	require.Len(t, verdicts, 1)
	assert.Equal(t, taxonomy.ClassWritable, verdicts[0].Verdict.Class)
	assert.Equal(t, "gluconate", verdicts[0].Verdict.FormKey)
}

func TestServer_Resolve_NoRows(t *testing.T) {
	router := newTestServer("").Router()

	req := httptest.NewRequest(http.MethodGet, "/v1/resolve/dsld/absent", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestServer_Score_ComputesFreshBundle(t *testing.T) {
	router := newTestServer("").Router()

	req := httptest.NewRequest(http.MethodGet, "/v1/score/dsld/p1", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var score model.ProductScore
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &score))
	assert.Equal(t, "v4", score.ScoreVersion)
	assert.Greater(t, score.Overall, 0.0)
	assert.Equal(t, 2.0, score.Evidence.Multiplier)
	assert.NotEmpty(t, score.InputsHash)
}

func TestServer_Score_ProductMissing(t *testing.T) {
	router := newTestServer("").Router()

	req := httptest.NewRequest(http.MethodGet, "/v1/score/dsld/absent", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "product not found")
}

func TestServer_Checkpoint_NotConfigured(t *testing.T) {
	router := newTestServer("").Router()

	req := httptest.NewRequest(http.MethodGet, "/v1/checkpoint", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "no checkpoint configured")
}

func TestServer_Checkpoint_ServesState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	require.NoError(t, backfill.SaveCheckpoint(path, &model.Checkpoint{
		Source:    "dsld",
		LastID:    42,
		NextStart: 42,
		UpdatedAt: time.Now().UTC(),
	}))

	router := newTestServer(path).Router()

	req := httptest.NewRequest(http.MethodGet, "/v1/checkpoint", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)

	var cp model.Checkpoint
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cp))
	assert.Equal(t, "dsld", cp.Source)
	assert.Equal(t, int64(42), cp.LastID)
}
