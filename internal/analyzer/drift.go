package analyzer

import "github.com/templateguard/simengine/pkg/models"

// DriftThresholds configures the rescan decision tree. Values
// come from internal/config.Config; kept as a plain struct here so this
// package doesn't depend on config's viper/YAML machinery.
type DriftThresholds struct {
	ResolvedSimilarity   float64 // current similarity below this => no longer similar
	ResolvedMinimumDrift float64 // AND drift from baseline at least this large => genuinely changed
	InsufficientMax      float64 // drift below this => nothing meaningful changed
}

// EvaluateDrift runs the rescan decision tree. baselineSimilarity is the
// similarity captured at report time; currentSimilarity is freshly
// computed against the same original template. Drift is 1 - Jaccard(captured
// sketch, live sketch) of the alleged copy itself, not a similarity delta —
// it measures how much the alleged copy's own page has changed since the
// baseline was taken, independent of whether it still resembles the
// original.
func EvaluateDrift(baselineSimilarity, currentSimilarity, drift float64, t DriftThresholds) models.DriftResult {
	verdict := classifyDrift(currentSimilarity, drift, t)
	return models.DriftResult{
		Drift:             drift,
		CurrentSimilarity: currentSimilarity,
		Verdict:           verdict,
	}
}

func classifyDrift(currentSimilarity, drift float64, t DriftThresholds) models.RescanVerdict {
	switch {
	case currentSimilarity < t.ResolvedSimilarity && drift >= t.ResolvedMinimumDrift:
		return models.RescanResolved
	case drift < t.InsufficientMax:
		return models.RescanInsufficientChanges
	default:
		return models.RescanStillSimilar
	}
}
