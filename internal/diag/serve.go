package diag

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/suppscan/score-cli/internal/backfill"
	"github.com/suppscan/score-cli/internal/model"
	"github.com/suppscan/score-cli/internal/scoring"
	"github.com/suppscan/score-cli/internal/source"
	"github.com/suppscan/score-cli/internal/store"
	"github.com/suppscan/score-cli/internal/taxonomy"
)

// Server exposes read-only diagnostics over HTTP: yield sampling, per-product
// resolution verdicts, and ad-hoc score computation. Nothing it serves
// writes to the store.
type Server struct {
	store          store.Store
	adapters       *source.Registry
	datasetVersion string
	sampleSize     int
	checkpointPath string
}

// NewServer builds a diagnostics server. checkpointPath may be empty when no
// backfill checkpoint is configured.
func NewServer(st store.Store, adapters *source.Registry, datasetVersion string, sampleSize int, checkpointPath string) *Server {
	return &Server{
		store:          st,
		adapters:       adapters,
		datasetVersion: datasetVersion,
		sampleSize:     sampleSize,
		checkpointPath: checkpointPath,
	}
}

// Router assembles the chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/v1/yield", s.handleYield)
	r.Get("/v1/checkpoint", s.handleCheckpoint)
	r.Get("/v1/resolve/{source}/{sourceID}", s.handleResolve)
	r.Get("/v1/score/{source}/{sourceID}", s.handleScore)

	return r
}

func (s *Server) handleYield(w http.ResponseWriter, r *http.Request) {
	sourceName := r.URL.Query().Get("source")
	if sourceName == "" {
		writeError(w, http.StatusBadRequest, "source query parameter is required")
		return
	}
	sample := s.sampleSize
	if v := r.URL.Query().Get("sample"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "sample must be a positive integer")
			return
		}
		sample = n
	}

	report, err := BuildYield(r.Context(), s.store, s.adapters, sourceName, s.datasetVersion, sample)
	if err != nil {
		zap.L().Error("yield request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "yield sampling failed")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCheckpoint(w http.ResponseWriter, _ *http.Request) {
	if s.checkpointPath == "" {
		writeError(w, http.StatusNotFound, "no checkpoint configured")
		return
	}
	cp, err := backfill.LoadCheckpoint(s.checkpointPath)
	if err != nil {
		zap.L().Error("checkpoint read failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "checkpoint read failed")
		return
	}
	if cp == nil {
		writeError(w, http.StatusNotFound, "no checkpoint on disk")
		return
	}
	writeJSON(w, http.StatusOK, cp)
}

// rowVerdict pairs one ingredient row with its resolution verdict.
type rowVerdict struct {
	Row     model.ProductIngredient `json:"row"`
	Tokens  []taxonomy.Token        `json:"tokens,omitempty"`
	Verdict taxonomy.Verdict        `json:"verdict"`
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	sourceName := chi.URLParam(r, "source")
	sourceID := chi.URLParam(r, "sourceID")

	adapter, err := s.adapters.Get(sourceName)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown source")
		return
	}

	snap, err := taxonomy.LoadSnapshot(r.Context(), s.store, s.datasetVersion)
	if err != nil {
		zap.L().Error("snapshot load failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "taxonomy snapshot unavailable")
		return
	}
	resolver := taxonomy.NewResolver(snap)

	rows, err := s.store.GetProductIngredients(r.Context(), sourceName, sourceID)
	if err != nil {
		zap.L().Error("ingredient fetch failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "ingredient fetch failed")
		return
	}
	if len(rows) == 0 {
		writeError(w, http.StatusNotFound, "no ingredient rows for product")
		return
	}

	verdicts := make([]rowVerdict, 0, len(rows))
	for _, pi := range rows {
		tokens := taxonomy.ExtractTokens(adapter.Label(pi.Payload))
		verdicts = append(verdicts, rowVerdict{
			Row:     pi,
			Tokens:  tokens,
			Verdict: resolver.Resolve(pi, tokens),
		})
	}
	writeJSON(w, http.StatusOK, verdicts)
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	sourceName := chi.URLParam(r, "source")
	sourceID := chi.URLParam(r, "sourceID")

	adapter, err := s.adapters.Get(sourceName)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown source")
		return
	}

	rec, err := s.store.GetProduct(r.Context(), sourceName, sourceID)
	if err != nil {
		zap.L().Error("product fetch failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "product fetch failed")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}

	rows, err := s.store.GetProductIngredients(r.Context(), sourceName, sourceID)
	if err != nil {
		zap.L().Error("ingredient fetch failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "ingredient fetch failed")
		return
	}

	engine := scoring.NewEngine(s.datasetVersion)
	score, err := engine.Compute(r.Context(), s.store, scoring.Input{
		Source:     sourceName,
		SourceID:   sourceID,
		Rows:       rows,
		Multiplier: scoring.DeriveMultiplier(adapter, rec.Payload),
	})
	if err != nil {
		zap.L().Error("score computation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "score computation failed")
		return
	}
	if score == nil {
		writeError(w, http.StatusUnprocessableEntity, "no usable ingredient rows")
		return
	}
	writeJSON(w, http.StatusOK, score)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("response encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
