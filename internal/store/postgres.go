package store

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/suppscan/score-cli/internal/config"
	"github.com/suppscan/score-cli/internal/db"
	"github.com/suppscan/score-cli/internal/model"
	"github.com/suppscan/score-cli/internal/resilience"
)

// PostgresStore implements Store over a pgx connection pool. Every remote
// call passes through the shared rate limiter and the injected retry policy,
// since the store is a rate-limited shared service.
type PostgresStore struct {
	pool    db.Pool
	limiter *rate.Limiter
	retry   resilience.Policy
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, cfg config.StoreConfig) (*PostgresStore, error) {
	if cfg.DatabaseURL == "" {
		return nil, eris.New("postgres: no database_url configured")
	}

	pgxCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	if cfg.MaxConns > 0 {
		pgxCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	return NewPostgresWithPool(pool, cfg, pool.Close), nil
}

// NewPostgresWithPool wraps an existing pool (pgxmock in tests).
func NewPostgresWithPool(pool db.Pool, cfg config.StoreConfig, closeFn func()) *PostgresStore {
	perSec := cfg.RatePerSec
	if perSec <= 0 {
		perSec = 20
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 10
	}

	policy := resilience.FromConfig(
		cfg.Retry.MaxAttempts,
		cfg.Retry.InitialBackoffMs,
		cfg.Retry.MaxBackoffMs,
		cfg.Retry.Multiplier,
		cfg.Retry.JitterFraction,
	)

	return &PostgresStore{
		pool:    pool,
		limiter: rate.NewLimiter(rate.Limit(perSec), burst),
		retry:   policy,
		closeFn: closeFn,
	}
}

// do runs one remote call under the rate limiter and retry policy.
func do[T any](ctx context.Context, s *PostgresStore, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	policy := s.retry
	policy.OnRetry = resilience.RetryLogger(op)
	return resilience.DoVal(ctx, policy, func(ctx context.Context) (T, error) {
		var zero T
		if err := s.limiter.Wait(ctx); err != nil {
			return zero, err
		}
		return fn(ctx)
	})
}

func (s *PostgresStore) ListForms(ctx context.Context) ([]model.IngredientForm, error) {
	return do(ctx, s, "list_forms", func(ctx context.Context) ([]model.IngredientForm, error) {
		rows, err := s.pool.Query(ctx,
			`SELECT ingredient_id, form_key, label, audit_status, confidence, potency_factor
			 FROM ingredient_forms ORDER BY ingredient_id, form_key`)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list forms")
		}
		defer rows.Close()

		var forms []model.IngredientForm
		for rows.Next() {
			var f model.IngredientForm
			if err := rows.Scan(&f.IngredientID, &f.FormKey, &f.Label, &f.AuditStatus, &f.Confidence, &f.PotencyFactor); err != nil {
				return nil, eris.Wrap(err, "postgres: scan form")
			}
			forms = append(forms, f)
		}
		return forms, rows.Err()
	})
}

func (s *PostgresStore) ListAliases(ctx context.Context) ([]model.FormAlias, error) {
	return do(ctx, s, "list_aliases", func(ctx context.Context) ([]model.FormAlias, error) {
		rows, err := s.pool.Query(ctx,
			`SELECT id, alias, normalized, form_key, ingredient_id, confidence, audit_status, source
			 FROM form_aliases ORDER BY id`)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list aliases")
		}
		defer rows.Close()

		var aliases []model.FormAlias
		for rows.Next() {
			var a model.FormAlias
			if err := rows.Scan(&a.ID, &a.Alias, &a.Normalized, &a.FormKey, &a.IngredientID, &a.Confidence, &a.AuditStatus, &a.Source); err != nil {
				return nil, eris.Wrap(err, "postgres: scan alias")
			}
			aliases = append(aliases, a)
		}
		return aliases, rows.Err()
	})
}

func (s *PostgresStore) ListLimits(ctx context.Context) ([]model.IngredientLimit, error) {
	return do(ctx, s, "list_limits", func(ctx context.Context) ([]model.IngredientLimit, error) {
		rows, err := s.pool.Query(ctx,
			`SELECT ingredient_id, daily_upper_limit, unit, interaction_tags
			 FROM ingredient_limits ORDER BY ingredient_id`)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list limits")
		}
		defer rows.Close()

		var limits []model.IngredientLimit
		for rows.Next() {
			var l model.IngredientLimit
			var tags []byte
			if err := rows.Scan(&l.IngredientID, &l.DailyUpperLimit, &l.Unit, &tags); err != nil {
				return nil, eris.Wrap(err, "postgres: scan limit")
			}
			if tags != nil {
				_ = json.Unmarshal(tags, &l.InteractionTags)
			}
			limits = append(limits, l)
		}
		return limits, rows.Err()
	})
}

func (s *PostgresStore) UpsertForms(ctx context.Context, forms []model.IngredientForm) (int64, error) {
	rows := make([][]any, 0, len(forms))
	for _, f := range forms {
		rows = append(rows, []any{f.IngredientID, f.FormKey, f.Label, string(f.AuditStatus), f.Confidence, f.PotencyFactor})
	}
	return do(ctx, s, "upsert_forms", func(ctx context.Context) (int64, error) {
		return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
			Table:        "ingredient_forms",
			Columns:      []string{"ingredient_id", "form_key", "label", "audit_status", "confidence", "potency_factor"},
			ConflictKeys: []string{"ingredient_id", "form_key"},
		}, rows)
	})
}

func (s *PostgresStore) UpsertAliases(ctx context.Context, aliases []model.FormAlias) (int64, error) {
	rows := make([][]any, 0, len(aliases))
	for _, a := range aliases {
		rows = append(rows, []any{a.Alias, a.Normalized, a.FormKey, a.IngredientID, a.Confidence, string(a.AuditStatus), a.Source})
	}
	return do(ctx, s, "upsert_aliases", func(ctx context.Context) (int64, error) {
		return db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
			Table:        "form_aliases",
			Columns:      []string{"alias", "normalized", "form_key", "ingredient_id", "confidence", "audit_status", "source"},
			ConflictKeys: []string{"ingredient_id", "normalized"},
		}, rows)
	})
}

func (s *PostgresStore) ListProductsPage(ctx context.Context, source string, afterID, endID int64, limit int) ([]ProductRecord, error) {
	return do(ctx, s, "list_products_page", func(ctx context.Context) ([]ProductRecord, error) {
		query := `SELECT id, source, source_id, canonical_source_id, payload
			 FROM products WHERE source = $1 AND id > $2`
		args := []any{source, afterID}
		if endID > 0 {
			query += ` AND id <= $3`
			args = append(args, endID)
		}
		query += ` ORDER BY id ASC LIMIT ` + itoa(limit)

		rows, err := s.pool.Query(ctx, query, args...)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: list products page")
		}
		defer rows.Close()

		var records []ProductRecord
		for rows.Next() {
			r, err := scanProduct(rows)
			if err != nil {
				return nil, err
			}
			records = append(records, *r)
		}
		return records, rows.Err()
	})
}

func (s *PostgresStore) GetProduct(ctx context.Context, source, sourceID string) (*ProductRecord, error) {
	return do(ctx, s, "get_product", func(ctx context.Context) (*ProductRecord, error) {
		rows, err := s.pool.Query(ctx,
			`SELECT id, source, source_id, canonical_source_id, payload
			 FROM products WHERE source = $1 AND source_id = $2`, source, sourceID)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: get product")
		}
		defer rows.Close()

		if !rows.Next() {
			return nil, rows.Err()
		}
		return scanProduct(rows)
	})
}

func scanProduct(rows pgx.Rows) (*ProductRecord, error) {
	var r ProductRecord
	var payload []byte
	if err := rows.Scan(&r.ID, &r.Source, &r.SourceID, &r.CanonicalSourceID, &payload); err != nil {
		return nil, eris.Wrap(err, "postgres: scan product")
	}
	if payload != nil {
		_ = json.Unmarshal(payload, &r.Payload)
	}
	return &r, nil
}

const productIngredientCols = `id, source, source_id, canonical_source_id, ingredient_id, raw_name,
	 name_key, form_text, raw_amount, raw_unit, amount, unit, basis, active, parse_confidence, payload`

func (s *PostgresStore) GetProductIngredients(ctx context.Context, source, sourceID string) ([]model.ProductIngredient, error) {
	return do(ctx, s, "get_product_ingredients", func(ctx context.Context) ([]model.ProductIngredient, error) {
		rows, err := s.pool.Query(ctx,
			`SELECT `+productIngredientCols+`
			 FROM product_ingredients WHERE source = $1 AND source_id = $2 ORDER BY id`, source, sourceID)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: get product ingredients")
		}
		defer rows.Close()
		return scanProductIngredients(rows)
	})
}

func (s *PostgresStore) SampleProductIngredients(ctx context.Context, source string, limit int) ([]model.ProductIngredient, error) {
	return do(ctx, s, "sample_product_ingredients", func(ctx context.Context) ([]model.ProductIngredient, error) {
		rows, err := s.pool.Query(ctx,
			`SELECT `+productIngredientCols+`
			 FROM product_ingredients WHERE source = $1 AND active ORDER BY id DESC LIMIT `+itoa(limit), source)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: sample product ingredients")
		}
		defer rows.Close()
		return scanProductIngredients(rows)
	})
}

func scanProductIngredients(rows pgx.Rows) ([]model.ProductIngredient, error) {
	var items []model.ProductIngredient
	for rows.Next() {
		var pi model.ProductIngredient
		var formText, rawUnit, unit, basis *string
		var payload []byte
		err := rows.Scan(&pi.ID, &pi.Source, &pi.SourceID, &pi.CanonicalSourceID, &pi.IngredientID,
			&pi.RawName, &pi.NameKey, &formText, &pi.RawAmount, &rawUnit, &pi.Amount, &unit,
			&basis, &pi.Active, &pi.ParseConfidence, &payload)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan product ingredient")
		}
		pi.FormText = deref(formText)
		pi.RawUnit = deref(rawUnit)
		pi.Unit = deref(unit)
		pi.Basis = deref(basis)
		if payload != nil {
			_ = json.Unmarshal(payload, &pi.Payload)
		}
		items = append(items, pi)
	}
	return items, rows.Err()
}

func (s *PostgresStore) SetFormText(ctx context.Context, id int64, formText string) (bool, error) {
	return do(ctx, s, "set_form_text", func(ctx context.Context) (bool, error) {
		tag, err := s.pool.Exec(ctx,
			`UPDATE product_ingredients SET form_text = $1
			 WHERE id = $2 AND (form_text IS NULL OR form_text = '')`, formText, id)
		if err != nil {
			return false, eris.Wrapf(err, "postgres: set form text for %d", id)
		}
		return tag.RowsAffected() > 0, nil
	})
}

func (s *PostgresStore) GetScore(ctx context.Context, source, sourceID string) (*model.ProductScore, error) {
	return do(ctx, s, "get_score", func(ctx context.Context) (*model.ProductScore, error) {
		rows, err := s.pool.Query(ctx,
			`SELECT source, source_id, score_version, overall, effectiveness, safety, integrity,
			        confidence, best_fit_goals, flags, highlights, evidence, inputs_hash, computed_at
			 FROM product_scores WHERE source = $1 AND source_id = $2`, source, sourceID)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: get score")
		}
		defer rows.Close()

		if !rows.Next() {
			return nil, rows.Err()
		}

		var sc model.ProductScore
		var goals, flags, highlights, evidence []byte
		err = rows.Scan(&sc.Source, &sc.SourceID, &sc.ScoreVersion, &sc.Overall,
			&sc.Pillars.Effectiveness, &sc.Pillars.Safety, &sc.Pillars.Integrity,
			&sc.Confidence, &goals, &flags, &highlights, &evidence, &sc.InputsHash, &sc.ComputedAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan score")
		}
		_ = json.Unmarshal(goals, &sc.BestFitGoals)
		_ = json.Unmarshal(flags, &sc.Flags)
		_ = json.Unmarshal(highlights, &sc.Highlights)
		_ = json.Unmarshal(evidence, &sc.Evidence)
		return &sc, nil
	})
}

func (s *PostgresStore) UpsertScore(ctx context.Context, score *model.ProductScore) error {
	goals, _ := json.Marshal(score.BestFitGoals)
	flags, _ := json.Marshal(score.Flags)
	highlights, _ := json.Marshal(score.Highlights)
	evidence, _ := json.Marshal(score.Evidence)

	_, err := do(ctx, s, "upsert_score", func(ctx context.Context) (struct{}, error) {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO product_scores
			   (source, source_id, score_version, overall, effectiveness, safety, integrity,
			    confidence, best_fit_goals, flags, highlights, evidence, inputs_hash, computed_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			 ON CONFLICT (source, source_id) DO UPDATE SET
			   score_version = EXCLUDED.score_version,
			   overall = EXCLUDED.overall,
			   effectiveness = EXCLUDED.effectiveness,
			   safety = EXCLUDED.safety,
			   integrity = EXCLUDED.integrity,
			   confidence = EXCLUDED.confidence,
			   best_fit_goals = EXCLUDED.best_fit_goals,
			   flags = EXCLUDED.flags,
			   highlights = EXCLUDED.highlights,
			   evidence = EXCLUDED.evidence,
			   inputs_hash = EXCLUDED.inputs_hash,
			   computed_at = EXCLUDED.computed_at`,
			score.Source, score.SourceID, score.ScoreVersion, score.Overall,
			score.Pillars.Effectiveness, score.Pillars.Safety, score.Pillars.Integrity,
			string(score.Confidence), goals, flags, highlights, evidence,
			score.InputsHash, score.ComputedAt)
		if err != nil {
			return struct{}{}, eris.Wrapf(err, "postgres: upsert score for %s/%s", score.Source, score.SourceID)
		}
		return struct{}{}, nil
	})
	return err
}

func (s *PostgresStore) Close() {
	if s.closeFn != nil {
		s.closeFn()
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func itoa(n int) string {
	if n <= 0 {
		n = 100
	}
	return strconv.Itoa(n)
}
