// Package store is the Sketch Store: durable, transactional storage
// for templates, pages, their sketches, and the LSH band index, backed by
// Postgres via pgx/pgxpool, adapted from the engine's original forensics
// persistence layer.
package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/templateguard/simengine/pkg/models"
)

//go:embed schema.sql
var schemaSQL string

// Store is the Postgres-backed Sketch Store.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// Connect opens the pool and verifies connectivity, matching the
// fail-fast-at-startup convention the engine has always used for its
// database dependency.
func Connect(ctx context.Context, connStr string, logger *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping failed: %w", err)
	}
	logger.Info("connected to sketch store")
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema applies the embedded schema, idempotently (every statement is
// CREATE ... IF NOT EXISTS).
func (s *Store) InitSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	s.logger.Info("sketch store schema initialized")
	return nil
}

// Pool exposes the underlying pool for callers that need transactions that
// don't fit the Store's higher-level methods, such as a migration
// ShadowRunner, which takes a *pgxpool.Pool.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// PutTemplate inserts or replaces a template record, its three sketch
// variants, and its LSH band rows in one transaction.
func (s *Store) PutTemplate(ctx context.Context, tmpl models.Template, sketches models.TemplateSketches, bandRows map[models.Variant][]models.BandRow) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO templates (id, url, creator, created_at, updated_at, last_full_index_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			url = EXCLUDED.url,
			creator = EXCLUDED.creator,
			updated_at = EXCLUDED.updated_at,
			last_full_index_at = EXCLUDED.last_full_index_at
	`, tmpl.ID, tmpl.URL, tmpl.Creator, tmpl.CreatedAt, tmpl.UpdatedAt, tmpl.LastFullIndexAt)
	if err != nil {
		return fmt.Errorf("upsert template: %w", err)
	}

	for variant, sketch := range map[models.Variant]models.Sketch{
		models.VariantCSS:      sketches.CSS,
		models.VariantHTML:     sketches.HTML,
		models.VariantCombined: sketches.Combined,
	} {
		_, err = tx.Exec(ctx, `
			INSERT INTO template_sketches (template_id, variant, dimension, minhash_values, shingle_count, format_version, pattern_table_ver, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (template_id, variant) DO UPDATE SET
				dimension = EXCLUDED.dimension,
				minhash_values = EXCLUDED.minhash_values,
				shingle_count = EXCLUDED.shingle_count,
				format_version = EXCLUDED.format_version,
				pattern_table_ver = EXCLUDED.pattern_table_ver,
				updated_at = EXCLUDED.updated_at
		`, tmpl.ID, int16(variant), sketch.Dimension, encodeValues(sketch.Values), sketch.ShingleCount, int16(sketch.FormatVersion), sketch.PatternTableVer, sketches.UpdatedAt)
		if err != nil {
			return fmt.Errorf("upsert template_sketches(%s): %w", variant, err)
		}

		if _, err := tx.Exec(ctx, `DELETE FROM template_band_index WHERE owner_id = $1 AND variant = $2`, tmpl.ID, int16(variant)); err != nil {
			return fmt.Errorf("clear band index(%s): %w", variant, err)
		}
		for _, row := range bandRows[variant] {
			_, err = tx.Exec(ctx, `
				INSERT INTO template_band_index (band_index, band_hash, variant, owner_id)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT DO NOTHING
			`, row.BandIndex, int64(row.BandHash), int16(variant), row.OwnerID)
			if err != nil {
				return fmt.Errorf("insert band row(%s): %w", variant, err)
			}
		}
	}

	return tx.Commit(ctx)
}

// PutPage inserts or replaces a page and its single combined-variant sketch
// plus band rows, in one transaction.
func (s *Store) PutPage(ctx context.Context, page models.Page, sketch models.PageSketch, bandRows []models.BandRow) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO pages (page_id, template_id, url, path, page_type, type_confidence, html_bytes, unique_class_count, max_dom_depth, indexed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (page_id) DO UPDATE SET
			url = EXCLUDED.url, path = EXCLUDED.path, page_type = EXCLUDED.page_type,
			type_confidence = EXCLUDED.type_confidence, html_bytes = EXCLUDED.html_bytes,
			unique_class_count = EXCLUDED.unique_class_count, max_dom_depth = EXCLUDED.max_dom_depth,
			indexed_at = EXCLUDED.indexed_at
	`, page.PageID, page.TemplateID, page.URL, page.Path, string(page.PageType), page.TypeConfidence, page.HTMLBytes, page.UniqueClassCount, page.MaxDOMDepth, page.IndexedAt)
	if err != nil {
		return fmt.Errorf("upsert page: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO page_sketches (page_id, dimension, minhash_values, shingle_count, format_version, pattern_table_ver)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (page_id) DO UPDATE SET
			dimension = EXCLUDED.dimension, minhash_values = EXCLUDED.minhash_values,
			shingle_count = EXCLUDED.shingle_count, format_version = EXCLUDED.format_version,
			pattern_table_ver = EXCLUDED.pattern_table_ver
	`, page.PageID, sketch.Sketch.Dimension, encodeValues(sketch.Sketch.Values), sketch.Sketch.ShingleCount, int16(sketch.Sketch.FormatVersion), sketch.Sketch.PatternTableVer)
	if err != nil {
		return fmt.Errorf("upsert page_sketches: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM page_band_index WHERE owner_id = $1`, page.PageID); err != nil {
		return fmt.Errorf("clear page band index: %w", err)
	}
	for _, row := range bandRows {
		if _, err := tx.Exec(ctx, `
			INSERT INTO page_band_index (band_index, band_hash, owner_id)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, row.BandIndex, int64(row.BandHash), row.OwnerID); err != nil {
			return fmt.Errorf("insert page band row: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// GetTemplateSketches loads a template's three stored sketch variants.
// Returns models.ErrNotFound if the template has no stored sketches.
func (s *Store) GetTemplateSketches(ctx context.Context, templateID string) (models.TemplateSketches, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT variant, dimension, minhash_values, shingle_count, format_version, pattern_table_ver, updated_at
		FROM template_sketches WHERE template_id = $1
	`, templateID)
	if err != nil {
		return models.TemplateSketches{}, err
	}
	defer rows.Close()

	result := models.TemplateSketches{TemplateID: templateID}
	found := false
	for rows.Next() {
		var variant int16
		var dimension, shingleCount, patternVer int
		var formatVersion int16
		var raw []byte
		var updatedAt time.Time
		if err := rows.Scan(&variant, &dimension, &raw, &shingleCount, &formatVersion, &patternVer, &updatedAt); err != nil {
			return models.TemplateSketches{}, err
		}
		sketch, err := decodeSketch(raw, dimension, models.Variant(variant), shingleCount, uint8(formatVersion), patternVer)
		if err != nil {
			return models.TemplateSketches{}, fmt.Errorf("%w: %v", models.ErrStorageConflict, err)
		}
		found = true
		switch models.Variant(variant) {
		case models.VariantCSS:
			result.CSS = sketch
		case models.VariantHTML:
			result.HTML = sketch
		case models.VariantCombined:
			result.Combined = sketch
		}
		result.UpdatedAt = updatedAt
	}
	if err := rows.Err(); err != nil {
		return models.TemplateSketches{}, err
	}
	if !found {
		return models.TemplateSketches{}, models.ErrNotFound
	}
	return result, nil
}

// GetTemplate loads the template row itself.
func (s *Store) GetTemplate(ctx context.Context, templateID string) (models.Template, error) {
	var t models.Template
	err := s.pool.QueryRow(ctx, `
		SELECT id, url, creator, created_at, updated_at, last_full_index_at
		FROM templates WHERE id = $1
	`, templateID).Scan(&t.ID, &t.URL, &t.Creator, &t.CreatedAt, &t.UpdatedAt, &t.LastFullIndexAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Template{}, models.ErrNotFound
	}
	if err != nil {
		return models.Template{}, err
	}
	return t, nil
}

// DeleteTemplate removes a template and its band-index rows and its pages'
// band-index rows in one transaction; ON DELETE CASCADE removes its
// sketches, pages, and page sketches.
func (s *Store) DeleteTemplate(ctx context.Context, templateID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM page_band_index WHERE owner_id IN (SELECT page_id FROM pages WHERE template_id = $1)`, templateID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM template_band_index WHERE owner_id = $1`, templateID); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM templates WHERE id = $1`, templateID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return tx.Commit(ctx)
}

// LookupCandidateTemplates returns distinct owner ids sharing at least one
// band hash with the given band rows, excluding selfID and — when
// excludeCreator is non-empty — templates owned by the same creator.
func (s *Store) LookupCandidateTemplates(ctx context.Context, variant models.Variant, bandRows []models.BandRow, selfID string, excludeCreator string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, row := range bandRows {
		rows, err := s.pool.Query(ctx, `
			SELECT DISTINCT owner_id FROM template_band_index
			WHERE band_index = $1 AND band_hash = $2 AND variant = $3 AND owner_id != $4
		`, row.BandIndex, int64(row.BandHash), int16(variant), selfID)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var owner string
			if err := rows.Scan(&owner); err != nil {
				rows.Close()
				return nil, err
			}
			seen[owner] = struct{}{}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}

	if excludeCreator != "" {
		for owner := range seen {
			var creator string
			err := s.pool.QueryRow(ctx, `SELECT creator FROM templates WHERE id = $1`, owner).Scan(&creator)
			if err == nil && creator == excludeCreator {
				delete(seen, owner)
			}
		}
	}

	out := make([]string, 0, len(seen))
	for owner := range seen {
		out = append(out, owner)
	}
	return out, nil
}

// LookupCandidatePages returns distinct page ids sharing a band hash with
// the given rows, used for cross-template page-pair alignment.
func (s *Store) LookupCandidatePages(ctx context.Context, bandRows []models.BandRow, excludeTemplateID string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, row := range bandRows {
		rows, err := s.pool.Query(ctx, `
			SELECT DISTINCT pbi.owner_id FROM page_band_index pbi
			JOIN pages p ON p.page_id = pbi.owner_id
			WHERE pbi.band_index = $1 AND pbi.band_hash = $2 AND p.template_id != $3
		`, row.BandIndex, int64(row.BandHash), excludeTemplateID)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var pageID string
			if err := rows.Scan(&pageID); err != nil {
				rows.Close()
				return nil, err
			}
			seen[pageID] = struct{}{}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	out := make([]string, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	return out, nil
}

// GetPageSketch loads one page's sketch, returning models.ErrNotFound if
// absent.
func (s *Store) GetPageSketch(ctx context.Context, pageID string) (models.PageSketch, error) {
	var dimension, shingleCount, patternVer int
	var formatVersion int16
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT dimension, minhash_values, shingle_count, format_version, pattern_table_ver
		FROM page_sketches WHERE page_id = $1
	`, pageID).Scan(&dimension, &raw, &shingleCount, &formatVersion, &patternVer)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.PageSketch{}, models.ErrNotFound
	}
	if err != nil {
		return models.PageSketch{}, err
	}
	sketch, err := decodeSketch(raw, dimension, models.VariantCombined, shingleCount, uint8(formatVersion), patternVer)
	if err != nil {
		return models.PageSketch{}, fmt.Errorf("%w: %v", models.ErrStorageConflict, err)
	}
	return models.PageSketch{PageID: pageID, Sketch: sketch, ShingleCount: shingleCount}, nil
}

// GetPage returns one page's metadata by id.
func (s *Store) GetPage(ctx context.Context, pageID string) (models.Page, error) {
	var p models.Page
	var pageType string
	err := s.pool.QueryRow(ctx, `
		SELECT page_id, template_id, url, path, page_type, type_confidence, html_bytes, unique_class_count, max_dom_depth, indexed_at
		FROM pages WHERE page_id = $1
	`, pageID).Scan(&p.PageID, &p.TemplateID, &p.URL, &p.Path, &pageType, &p.TypeConfidence, &p.HTMLBytes, &p.UniqueClassCount, &p.MaxDOMDepth, &p.IndexedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Page{}, models.ErrNotFound
	}
	if err != nil {
		return models.Page{}, err
	}
	p.PageType = models.PageType(pageType)
	return p, nil
}

// GetPageType returns just a page's classified type, the narrow lookup the
// Analyzer's page alignment needs per candidate without fetching the whole
// row.
func (s *Store) GetPageType(ctx context.Context, pageID string) (models.PageType, error) {
	var pageType string
	err := s.pool.QueryRow(ctx, `SELECT page_type FROM pages WHERE page_id = $1`, pageID).Scan(&pageType)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", models.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return models.PageType(pageType), nil
}

// ListPages returns every page belonging to templateID.
func (s *Store) ListPages(ctx context.Context, templateID string) ([]models.Page, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT page_id, template_id, url, path, page_type, type_confidence, html_bytes, unique_class_count, max_dom_depth, indexed_at
		FROM pages WHERE template_id = $1
	`, templateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []models.Page
	for rows.Next() {
		var p models.Page
		var pageType string
		if err := rows.Scan(&p.PageID, &p.TemplateID, &p.URL, &p.Path, &pageType, &p.TypeConfidence, &p.HTMLBytes, &p.UniqueClassCount, &p.MaxDOMDepth, &p.IndexedAt); err != nil {
			return nil, err
		}
		p.PageType = models.PageType(pageType)
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// ListTemplatesPage returns one page of templates ordered by id, for the
// backfill runner's caller-driven limit/offset paging.
func (s *Store) ListTemplatesPage(ctx context.Context, limit, offset int) ([]models.Template, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, url, creator, created_at, updated_at, last_full_index_at
		FROM templates ORDER BY id LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []models.Template
	for rows.Next() {
		var t models.Template
		if err := rows.Scan(&t.ID, &t.URL, &t.Creator, &t.CreatedAt, &t.UpdatedAt, &t.LastFullIndexAt); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// CountTemplates reports the total template count for backfill progress
// reporting.
func (s *Store) CountTemplates(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM templates`).Scan(&count)
	return count, err
}

// PutCaseBaseline inserts a case baseline. Baselines are append-only:
// calling this twice for the same case_id is a conflict.
func (s *Store) PutCaseBaseline(ctx context.Context, baseline models.CaseBaseline) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO case_baselines (case_id, original_template_id, alleged_copy_url, baseline_dimension, baseline_values, baseline_shingle_count, baseline_similarity, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, baseline.CaseID, baseline.OriginalTemplateID, baseline.AllegedCopyURL,
		baseline.AllegedCopyBaseline.Dimension, encodeValues(baseline.AllegedCopyBaseline.Values),
		baseline.AllegedCopyBaseline.ShingleCount, baseline.BaselineSimilarity, baseline.CapturedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return models.ErrStorageConflict
	}
	return err
}

// GetCaseBaseline loads a case's immutable baseline.
func (s *Store) GetCaseBaseline(ctx context.Context, caseID string) (models.CaseBaseline, error) {
	var b models.CaseBaseline
	var dimension, shingleCount int
	var raw []byte
	err := s.pool.QueryRow(ctx, `
		SELECT case_id, original_template_id, alleged_copy_url, baseline_dimension, baseline_values, baseline_shingle_count, baseline_similarity, captured_at
		FROM case_baselines WHERE case_id = $1
	`, caseID).Scan(&b.CaseID, &b.OriginalTemplateID, &b.AllegedCopyURL, &dimension, &raw, &shingleCount, &b.BaselineSimilarity, &b.CapturedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.CaseBaseline{}, models.ErrNotFound
	}
	if err != nil {
		return models.CaseBaseline{}, err
	}
	sketch, err := decodeSketch(raw, dimension, models.VariantCombined, shingleCount, models.FormatVersion, 0)
	if err != nil {
		return models.CaseBaseline{}, fmt.Errorf("%w: %v", models.ErrStorageConflict, err)
	}
	b.AllegedCopyBaseline = sketch
	return b, nil
}

// ListCaseIDs returns every tracked case, for the drift poller's per-tick
// sweep. There is no open/closed status column: a case with a "resolved"
// rescan verdict is still polled again on the next tick, since a resolved
// copy could always be put back up.
func (s *Store) ListCaseIDs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT case_id FROM case_baselines`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// AppendRescan adds one rescan record to a case's append-only history.
func (s *Store) AppendRescan(ctx context.Context, record models.RescanRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rescans (case_id, drift_from_baseline, current_similarity, previous_similarity, verdict, scanned_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, record.CaseID, record.DriftFromBaseline, record.CurrentSimilarity, record.PreviousSimilarity, string(record.Verdict), record.ScannedAt)
	return err
}

// ListRescans returns a case's rescan history, most recent first.
func (s *Store) ListRescans(ctx context.Context, caseID string) ([]models.RescanRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT case_id, drift_from_baseline, current_similarity, previous_similarity, verdict, scanned_at
		FROM rescans WHERE case_id = $1 ORDER BY scanned_at DESC
	`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.RescanRecord
	for rows.Next() {
		var r models.RescanRecord
		var verdict string
		if err := rows.Scan(&r.CaseID, &r.DriftFromBaseline, &r.CurrentSimilarity, &r.PreviousSimilarity, &verdict, &r.ScannedAt); err != nil {
			return nil, err
		}
		r.Verdict = models.RescanVerdict(verdict)
		records = append(records, r)
	}
	return records, rows.Err()
}

// LatestRescanSimilarity returns the most recent rescan's CurrentSimilarity,
// used as PreviousSimilarity when appending the next rescan. Returns
// baseline similarity if no rescan has happened yet.
func (s *Store) LatestRescanSimilarity(ctx context.Context, caseID string, baselineSimilarity float64) (float64, error) {
	var sim float64
	err := s.pool.QueryRow(ctx, `
		SELECT current_similarity FROM rescans WHERE case_id = $1 ORDER BY scanned_at DESC LIMIT 1
	`, caseID).Scan(&sim)
	if errors.Is(err, pgx.ErrNoRows) {
		return baselineSimilarity, nil
	}
	if err != nil {
		return 0, err
	}
	return sim, nil
}
