package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/suppscan/score-cli/internal/model"
)

// SQLiteStore implements Store over a local SQLite file for fixture-based
// runs. No rate limiting or retries: there is no network between us and the
// data.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (or creates) a SQLite database at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: open %s", path)
	}
	// SQLite handles one writer at a time.
	sqlDB.SetMaxOpenConns(1)
	return &SQLiteStore{db: sqlDB}, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ingredients (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    name          TEXT NOT NULL,
    canonical_key TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS ingredient_forms (
    ingredient_id  INTEGER NOT NULL,
    form_key       TEXT NOT NULL,
    label          TEXT NOT NULL DEFAULT '',
    audit_status   TEXT NOT NULL DEFAULT 'derived',
    confidence     REAL NOT NULL DEFAULT 0,
    potency_factor REAL NOT NULL DEFAULT 1,
    PRIMARY KEY (ingredient_id, form_key)
);
CREATE TABLE IF NOT EXISTS form_aliases (
    id            INTEGER,
    alias         TEXT NOT NULL,
    normalized    TEXT NOT NULL,
    form_key      TEXT NOT NULL,
    ingredient_id INTEGER NOT NULL DEFAULT 0,
    confidence    REAL NOT NULL DEFAULT 0,
    audit_status  TEXT NOT NULL DEFAULT 'derived',
    source        TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (ingredient_id, normalized)
);
CREATE TABLE IF NOT EXISTS ingredient_limits (
    ingredient_id     INTEGER PRIMARY KEY,
    daily_upper_limit REAL,
    unit              TEXT NOT NULL DEFAULT '',
    interaction_tags  TEXT
);
CREATE TABLE IF NOT EXISTS products (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    source              TEXT NOT NULL,
    source_id           TEXT NOT NULL,
    canonical_source_id TEXT NOT NULL DEFAULT '',
    payload             TEXT,
    UNIQUE (source, source_id)
);
CREATE TABLE IF NOT EXISTS product_ingredients (
    id                  INTEGER PRIMARY KEY AUTOINCREMENT,
    source              TEXT NOT NULL,
    source_id           TEXT NOT NULL,
    canonical_source_id TEXT NOT NULL DEFAULT '',
    ingredient_id       INTEGER,
    raw_name            TEXT NOT NULL,
    name_key            TEXT NOT NULL,
    form_text           TEXT,
    raw_amount          REAL,
    raw_unit            TEXT,
    amount              REAL,
    unit                TEXT,
    basis               TEXT,
    active              INTEGER NOT NULL DEFAULT 1,
    parse_confidence    REAL NOT NULL DEFAULT 0,
    payload             TEXT,
    UNIQUE (source, source_id, name_key)
);
CREATE TABLE IF NOT EXISTS product_scores (
    source         TEXT NOT NULL,
    source_id      TEXT NOT NULL,
    score_version  TEXT NOT NULL,
    overall        REAL NOT NULL,
    effectiveness  REAL NOT NULL,
    safety         REAL NOT NULL,
    integrity      REAL NOT NULL,
    confidence     TEXT NOT NULL,
    best_fit_goals TEXT,
    flags          TEXT,
    highlights     TEXT,
    evidence       TEXT,
    inputs_hash    TEXT NOT NULL,
    computed_at    TIMESTAMP NOT NULL,
    PRIMARY KEY (source, source_id)
);
`

// Migrate creates the schema. SQLite is for local fixtures, so a single
// idempotent script stands in for migration tracking.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	return nil
}

func (s *SQLiteStore) ListForms(ctx context.Context) ([]model.IngredientForm, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ingredient_id, form_key, label, audit_status, confidence, potency_factor
		 FROM ingredient_forms ORDER BY ingredient_id, form_key`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list forms")
	}
	defer rows.Close()

	var forms []model.IngredientForm
	for rows.Next() {
		var f model.IngredientForm
		if err := rows.Scan(&f.IngredientID, &f.FormKey, &f.Label, &f.AuditStatus, &f.Confidence, &f.PotencyFactor); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan form")
		}
		forms = append(forms, f)
	}
	return forms, rows.Err()
}

func (s *SQLiteStore) ListAliases(ctx context.Context) ([]model.FormAlias, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT COALESCE(id, 0), alias, normalized, form_key, ingredient_id, confidence, audit_status, source
		 FROM form_aliases ORDER BY ingredient_id, normalized`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list aliases")
	}
	defer rows.Close()

	var aliases []model.FormAlias
	for rows.Next() {
		var a model.FormAlias
		if err := rows.Scan(&a.ID, &a.Alias, &a.Normalized, &a.FormKey, &a.IngredientID, &a.Confidence, &a.AuditStatus, &a.Source); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan alias")
		}
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}

func (s *SQLiteStore) ListLimits(ctx context.Context) ([]model.IngredientLimit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ingredient_id, daily_upper_limit, unit, interaction_tags
		 FROM ingredient_limits ORDER BY ingredient_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list limits")
	}
	defer rows.Close()

	var limits []model.IngredientLimit
	for rows.Next() {
		var l model.IngredientLimit
		var tags sql.NullString
		if err := rows.Scan(&l.IngredientID, &l.DailyUpperLimit, &l.Unit, &tags); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan limit")
		}
		if tags.Valid {
			_ = json.Unmarshal([]byte(tags.String), &l.InteractionTags)
		}
		limits = append(limits, l)
	}
	return limits, rows.Err()
}

func (s *SQLiteStore) UpsertForms(ctx context.Context, forms []model.IngredientForm) (int64, error) {
	var n int64
	for _, f := range forms {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO ingredient_forms (ingredient_id, form_key, label, audit_status, confidence, potency_factor)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (ingredient_id, form_key) DO UPDATE SET
			   label = excluded.label, audit_status = excluded.audit_status,
			   confidence = excluded.confidence, potency_factor = excluded.potency_factor`,
			f.IngredientID, f.FormKey, f.Label, string(f.AuditStatus), f.Confidence, f.PotencyFactor)
		if err != nil {
			return n, eris.Wrapf(err, "sqlite: upsert form %d/%s", f.IngredientID, f.FormKey)
		}
		n++
	}
	return n, nil
}

func (s *SQLiteStore) UpsertAliases(ctx context.Context, aliases []model.FormAlias) (int64, error) {
	var n int64
	for _, a := range aliases {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO form_aliases (alias, normalized, form_key, ingredient_id, confidence, audit_status, source)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (ingredient_id, normalized) DO UPDATE SET
			   alias = excluded.alias, form_key = excluded.form_key,
			   confidence = excluded.confidence, audit_status = excluded.audit_status,
			   source = excluded.source`,
			a.Alias, a.Normalized, a.FormKey, a.IngredientID, a.Confidence, string(a.AuditStatus), a.Source)
		if err != nil {
			return n, eris.Wrapf(err, "sqlite: upsert alias %q", a.Alias)
		}
		n++
	}
	return n, nil
}

func (s *SQLiteStore) ListProductsPage(ctx context.Context, source string, afterID, endID int64, limit int) ([]ProductRecord, error) {
	query := `SELECT id, source, source_id, canonical_source_id, payload
	 FROM products WHERE source = ? AND id > ?`
	args := []any{source, afterID}
	if endID > 0 {
		query += ` AND id <= ?`
		args = append(args, endID)
	}
	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list products page")
	}
	defer rows.Close()

	var records []ProductRecord
	for rows.Next() {
		var r ProductRecord
		var payload sql.NullString
		if err := rows.Scan(&r.ID, &r.Source, &r.SourceID, &r.CanonicalSourceID, &payload); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan product")
		}
		if payload.Valid {
			_ = json.Unmarshal([]byte(payload.String), &r.Payload)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *SQLiteStore) GetProduct(ctx context.Context, source, sourceID string) (*ProductRecord, error) {
	var r ProductRecord
	var payload sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, source, source_id, canonical_source_id, payload
		 FROM products WHERE source = ? AND source_id = ?`, source, sourceID).
		Scan(&r.ID, &r.Source, &r.SourceID, &r.CanonicalSourceID, &payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get product")
	}
	if payload.Valid {
		_ = json.Unmarshal([]byte(payload.String), &r.Payload)
	}
	return &r, nil
}

func (s *SQLiteStore) GetProductIngredients(ctx context.Context, source, sourceID string) ([]model.ProductIngredient, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, source_id, canonical_source_id, ingredient_id, raw_name, name_key,
		        form_text, raw_amount, raw_unit, amount, unit, basis, active, parse_confidence, payload
		 FROM product_ingredients WHERE source = ? AND source_id = ? ORDER BY id`, source, sourceID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get product ingredients")
	}
	defer rows.Close()
	return scanSQLiteIngredients(rows)
}

func (s *SQLiteStore) SampleProductIngredients(ctx context.Context, source string, limit int) ([]model.ProductIngredient, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, source_id, canonical_source_id, ingredient_id, raw_name, name_key,
		        form_text, raw_amount, raw_unit, amount, unit, basis, active, parse_confidence, payload
		 FROM product_ingredients WHERE source = ? AND active = 1 ORDER BY id DESC LIMIT ?`, source, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: sample product ingredients")
	}
	defer rows.Close()
	return scanSQLiteIngredients(rows)
}

func scanSQLiteIngredients(rows *sql.Rows) ([]model.ProductIngredient, error) {
	var items []model.ProductIngredient
	for rows.Next() {
		var pi model.ProductIngredient
		var formText, rawUnit, unit, basis, payload sql.NullString
		err := rows.Scan(&pi.ID, &pi.Source, &pi.SourceID, &pi.CanonicalSourceID, &pi.IngredientID,
			&pi.RawName, &pi.NameKey, &formText, &pi.RawAmount, &rawUnit, &pi.Amount, &unit,
			&basis, &pi.Active, &pi.ParseConfidence, &payload)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan product ingredient")
		}
		pi.FormText = formText.String
		pi.RawUnit = rawUnit.String
		pi.Unit = unit.String
		pi.Basis = basis.String
		if payload.Valid {
			_ = json.Unmarshal([]byte(payload.String), &pi.Payload)
		}
		items = append(items, pi)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) SetFormText(ctx context.Context, id int64, formText string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE product_ingredients SET form_text = ?
		 WHERE id = ? AND (form_text IS NULL OR form_text = '')`, formText, id)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: set form text for %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) GetScore(ctx context.Context, source, sourceID string) (*model.ProductScore, error) {
	var sc model.ProductScore
	var goals, flags, highlights, evidence sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT source, source_id, score_version, overall, effectiveness, safety, integrity,
		        confidence, best_fit_goals, flags, highlights, evidence, inputs_hash, computed_at
		 FROM product_scores WHERE source = ? AND source_id = ?`, source, sourceID).
		Scan(&sc.Source, &sc.SourceID, &sc.ScoreVersion, &sc.Overall,
			&sc.Pillars.Effectiveness, &sc.Pillars.Safety, &sc.Pillars.Integrity,
			&sc.Confidence, &goals, &flags, &highlights, &evidence, &sc.InputsHash, &sc.ComputedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get score")
	}
	if goals.Valid {
		_ = json.Unmarshal([]byte(goals.String), &sc.BestFitGoals)
	}
	if flags.Valid {
		_ = json.Unmarshal([]byte(flags.String), &sc.Flags)
	}
	if highlights.Valid {
		_ = json.Unmarshal([]byte(highlights.String), &sc.Highlights)
	}
	if evidence.Valid {
		_ = json.Unmarshal([]byte(evidence.String), &sc.Evidence)
	}
	return &sc, nil
}

func (s *SQLiteStore) UpsertScore(ctx context.Context, score *model.ProductScore) error {
	goals, _ := json.Marshal(score.BestFitGoals)
	flags, _ := json.Marshal(score.Flags)
	highlights, _ := json.Marshal(score.Highlights)
	evidence, _ := json.Marshal(score.Evidence)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO product_scores
		   (source, source_id, score_version, overall, effectiveness, safety, integrity,
		    confidence, best_fit_goals, flags, highlights, evidence, inputs_hash, computed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (source, source_id) DO UPDATE SET
		   score_version = excluded.score_version, overall = excluded.overall,
		   effectiveness = excluded.effectiveness, safety = excluded.safety,
		   integrity = excluded.integrity, confidence = excluded.confidence,
		   best_fit_goals = excluded.best_fit_goals, flags = excluded.flags,
		   highlights = excluded.highlights, evidence = excluded.evidence,
		   inputs_hash = excluded.inputs_hash, computed_at = excluded.computed_at`,
		score.Source, score.SourceID, score.ScoreVersion, score.Overall,
		score.Pillars.Effectiveness, score.Pillars.Safety, score.Pillars.Integrity,
		string(score.Confidence), string(goals), string(flags), string(highlights), string(evidence),
		score.InputsHash, score.ComputedAt)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert score for %s/%s", score.Source, score.SourceID)
	}
	return nil
}

func (s *SQLiteStore) Close() {
	_ = s.db.Close()
}
