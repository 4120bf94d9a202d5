package indexing

import (
	"context"
	"time"

	"github.com/templateguard/simengine/internal/analyzer"
	"github.com/templateguard/simengine/internal/fingerprint"
	"github.com/templateguard/simengine/pkg/models"
)

// RescanLookup is the narrow store surface Rescan needs beyond the Engine
// itself: the original template's current sketches and the case's most
// recent rescan similarity (to seed PreviousSimilarity).
type RescanLookup interface {
	GetTemplateSketches(ctx context.Context, templateID string) (models.TemplateSketches, error)
	LatestRescanSimilarity(ctx context.Context, caseID string, baselineSimilarity float64) (float64, error)
}

// Rescan runs the drift decision tree for one case baseline: fetch the
// alleged copy fresh, compare it against its own captured baseline sketch
// (drift) and against the original template (current similarity), and
// classify the result. Shared by the API's POST /rescan handler and the
// Drift Poller's ticker-driven sweep so the two never diverge.
func Rescan(ctx context.Context, engine *Engine, lookup RescanLookup, thresholds analyzer.DriftThresholds, baseline models.CaseBaseline) (models.RescanRecord, error) {
	original, err := lookup.GetTemplateSketches(ctx, baseline.OriginalTemplateID)
	if err != nil {
		return models.RescanRecord{}, err
	}

	fp, err := engine.FingerprintPage(ctx, baseline.AllegedCopyURL)
	if err != nil {
		return models.RescanRecord{}, err
	}

	ownChange, err := fingerprint.EstimateJaccard(baseline.AllegedCopyBaseline, fp.Combined)
	if err != nil {
		return models.RescanRecord{}, err
	}
	drift := 1 - ownChange

	currentSimilarity, err := fingerprint.EstimateJaccard(original.Combined, fp.Combined)
	if err != nil {
		return models.RescanRecord{}, err
	}

	previousSimilarity, err := lookup.LatestRescanSimilarity(ctx, baseline.CaseID, baseline.BaselineSimilarity)
	if err != nil {
		return models.RescanRecord{}, err
	}

	driftResult := analyzer.EvaluateDrift(baseline.BaselineSimilarity, currentSimilarity, drift, thresholds)

	return models.RescanRecord{
		CaseID:             baseline.CaseID,
		DriftFromBaseline:  driftResult.Drift,
		CurrentSimilarity:  driftResult.CurrentSimilarity,
		PreviousSimilarity: previousSimilarity,
		Verdict:            driftResult.Verdict,
		ScannedAt:          time.Now(),
	}, nil
}
