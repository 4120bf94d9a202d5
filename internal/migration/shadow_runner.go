// Package migration is the Migration Shadow Runner: when sketch_dimension or a shingle k-parameter
// changes, ShadowRunner recomputes a sample of owner pairs under both the
// old and new config and reports the Jaccard delta, so a config change's
// blast radius is visible before every stored sketch is invalidated by a
// corpus-wide backfill. Adapted from the engine's original shadow-mode
// A/B heuristic comparator, which ran a candidate heuristic alongside
// production the same way before promoting it.
package migration

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/templateguard/simengine/internal/fingerprint"
	"github.com/templateguard/simengine/pkg/models"
)

// SketchParams is the subset of config that affects sketch shape: the
// MinHash dimension and the two shingle k-parameters. A ShadowRunner
// compares sketches built under an "old" and a "new" SketchParams.
type SketchParams struct {
	Dimension    int
	CSSShingleK  int
	HTMLShingleK int
}

// OwnerContent is the raw material needed to rebuild shingles at an
// arbitrary k: class tokens, parsed CSS rules, and the raw CSS/HTML text
// the k-gram shingles slide over. Rebuilding from raw content rather than
// from a fixed shingle set is what lets the runner test a k-parameter
// change, not just a dimension change.
type OwnerContent struct {
	OwnerID   string
	ClassAttrs []string
	Rules     models.RuleMap
	CSSText   string
	HTMLText  string
}

// Pair is one owner-pair comparison to run under both configs. Pairs
// typically come from the retriever's current candidate set, since those
// are exactly the comparisons a config change could flip.
type Pair struct {
	A OwnerContent
	B OwnerContent
}

// ShadowResult captures one pair's divergence between old and new config.
type ShadowResult struct {
	OwnerAID   string    `json:"ownerAId"`
	OwnerBID   string    `json:"ownerBId"`
	OldJaccard float64   `json:"oldJaccard"`
	NewJaccard float64   `json:"newJaccard"`
	Delta      float64   `json:"delta"`
	SnapshotID int64     `json:"snapshotId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// divergenceThreshold is how large |delta| must be before a pair is logged
// as a divergence; small deltas are expected MinHash estimation noise.
const divergenceThreshold = 0.15

// ShadowRunner computes sketches under two configs for a sample of owner
// pairs and persists the comparison, never touching the production
// template_sketches table.
type ShadowRunner struct {
	pool       *pgxpool.Pool
	logger     *zap.Logger
	snapshotID int64

	oldHasher *fingerprint.MinHasher
	newHasher *fingerprint.MinHasher
	old       SketchParams
	new_      SketchParams
}

// NewShadowRunner builds a runner comparing oldParams against newParams.
// pool may be nil, in which case results are computed and logged but never
// persisted — useful for a one-off simctl dry run.
func NewShadowRunner(pool *pgxpool.Pool, logger *zap.Logger, snapshotID int64, oldParams, newParams SketchParams) *ShadowRunner {
	return &ShadowRunner{
		pool:       pool,
		logger:     logger,
		snapshotID: snapshotID,
		oldHasher:  fingerprint.NewMinHasher(oldParams.Dimension),
		newHasher:  fingerprint.NewMinHasher(newParams.Dimension),
		old:        oldParams,
		new_:       newParams,
	}
}

// buildShingles rebuilds the combined-variant shingle set for one owner
// under the given k-parameters.
func buildShingles(content OwnerContent, params SketchParams) fingerprint.ShingleSet {
	return fingerprint.Union(
		fingerprint.CSSClassShingles(content.ClassAttrs),
		fingerprint.CSSDeclarationShingles(content.Rules),
		fingerprint.CharacterKGramShingles(content.CSSText, params.CSSShingleK),
		fingerprint.CharacterKGramShingles(content.HTMLText, params.HTMLShingleK),
	)
}

// RunShadowComparison computes pair's Jaccard estimate under both configs
// and persists the comparison. It never feeds either sketch back into the
// production store or band index.
func (sr *ShadowRunner) RunShadowComparison(ctx context.Context, pair Pair) (*ShadowResult, error) {
	oldSketchA := sr.oldHasher.Sketch(buildShingles(pair.A, sr.old), models.VariantCombined, 0)
	oldSketchB := sr.oldHasher.Sketch(buildShingles(pair.B, sr.old), models.VariantCombined, 0)
	newSketchA := sr.newHasher.Sketch(buildShingles(pair.A, sr.new_), models.VariantCombined, 0)
	newSketchB := sr.newHasher.Sketch(buildShingles(pair.B, sr.new_), models.VariantCombined, 0)

	oldJaccard, err := fingerprint.EstimateJaccard(oldSketchA, oldSketchB)
	if err != nil {
		return nil, err
	}
	newJaccard, err := fingerprint.EstimateJaccard(newSketchA, newSketchB)
	if err != nil {
		return nil, err
	}

	result := &ShadowResult{
		OwnerAID:   pair.A.OwnerID,
		OwnerBID:   pair.B.OwnerID,
		OldJaccard: oldJaccard,
		NewJaccard: newJaccard,
		Delta:      newJaccard - oldJaccard,
		SnapshotID: sr.snapshotID,
		CreatedAt:  time.Now(),
	}

	if abs(result.Delta) >= divergenceThreshold {
		sr.logger.Warn("shadow migration divergence",
			zap.String("owner_a", result.OwnerAID), zap.String("owner_b", result.OwnerBID),
			zap.Float64("old_jaccard", result.OldJaccard), zap.Float64("new_jaccard", result.NewJaccard),
			zap.Float64("delta", result.Delta))
	}

	if sr.pool != nil {
		if err := sr.persist(ctx, result); err != nil {
			return result, err
		}
	}

	return result, nil
}

func (sr *ShadowRunner) persist(ctx context.Context, result *ShadowResult) error {
	const sql = `INSERT INTO shadow_results
		(owner_a_id, owner_b_id, old_jaccard, new_jaccard, delta, snapshot_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := sr.pool.Exec(ctx, sql,
		result.OwnerAID, result.OwnerBID, result.OldJaccard, result.NewJaccard, result.Delta,
		result.SnapshotID, result.CreatedAt)
	return err
}

// GenerateDriftReport summarizes every shadow comparison recorded under
// this runner's snapshot: how many pairs ran, how many diverged past
// divergenceThreshold, and the average delta magnitude.
func (sr *ShadowRunner) GenerateDriftReport(ctx context.Context) (totalRuns, divergences int, avgAbsDelta float64, err error) {
	const sql = `SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE ABS(delta) >= $2),
		COALESCE(AVG(ABS(delta)), 0)
		FROM shadow_results WHERE snapshot_id = $1`
	row := sr.pool.QueryRow(ctx, sql, sr.snapshotID, divergenceThreshold)
	err = row.Scan(&totalRuns, &divergences, &avgAbsDelta)
	return
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
