package analyzer

import (
	"github.com/templateguard/simengine/internal/fingerprint"
	"github.com/templateguard/simengine/pkg/models"
)

// Input bundles everything the Analyzer needs for one pairwise comparison.
// CSS/Structural are optional — when a caller only has sketches for
// one or both sides (e.g. a quick /scan before a full /compare), Compare
// degrades to the sketch-only SimilarityResult and leaves Evidence partially
// populated rather than failing.
type Input struct {
	SketchA, SketchB models.Sketch

	RulesA, RulesB models.RuleMap // nil if unavailable

	StructuralA, StructuralB []models.StructuralPattern // nil if unavailable

	RuleOverlapFloor   float64
	RuleMinCommonDecls int
}

// Compare runs the full comparison pipeline for a single pair of documents:
// Jaccard estimation, confidence banding, identical-rule mining, and
// structural scoring, combining whichever evidence is available into one
// overall confidence.
func Compare(in Input) (models.SimilarityResult, models.Evidence) {
	result := compareSketches(in.SketchA, in.SketchB)

	var evidence models.Evidence
	var signals []Signal
	signals = append(signals, Signal{Probability: result.Jaccard, Group: DepGroupNone})

	if in.RulesA != nil && in.RulesB != nil {
		floor := in.RuleOverlapFloor
		if floor == 0 {
			floor = 0.5
		}
		minDecls := in.RuleMinCommonDecls
		if minDecls == 0 {
			minDecls = 2
		}
		matches := MineIdenticalRules(in.RulesA, in.RulesB, floor, minDecls)
		evidence.IdenticalRules = matches
		evidence.PropertyCombinations = PropertyCombinations(matches)

		if len(matches) > 0 {
			signals = append(signals, Signal{Probability: ruleConfidence(matches), Group: DepGroupMarkupReuse})
		}
	}

	if in.StructuralA != nil && in.StructuralB != nil {
		score := CompareStructuralPatterns(in.StructuralA, in.StructuralB)
		evidence.Structural = score
		if len(score.Matches) > 0 {
			signals = append(signals, Signal{Probability: score.Score, Group: DepGroupMarkupReuse})
		}
	}

	if len(signals) > 1 {
		result.Jaccard = CombineSignals(signals)
	}

	return result, evidence
}

// compareSketches is the Jaccard-only comparison, used on its own
// when richer evidence (rule maps, structural patterns) is unavailable.
func compareSketches(a, b models.Sketch) models.SimilarityResult {
	if a.IsEmpty() || b.IsEmpty() {
		return models.SimilarityResult{Indeterminate: true, Variant: a.Variant}
	}

	jaccard, err := fingerprint.EstimateJaccard(a, b)
	if err != nil {
		return models.SimilarityResult{Indeterminate: true, Variant: a.Variant}
	}

	minCard := a.ShingleCount
	if b.ShingleCount < minCard {
		minCard = b.ShingleCount
	}

	return models.SimilarityResult{
		Jaccard:       jaccard,
		Confidence:    models.ConfidenceFor(minCard),
		Variant:       a.Variant,
		ShingleCountA: a.ShingleCount,
		ShingleCountB: b.ShingleCount,
	}
}

// ruleConfidence derives a [0,1] probability-like signal from how many
// identical rules matched and how tight their overlap was, weighting
// property combinations (3+ shared declarations) higher than single-
// declaration matches since they are far less likely by chance.
func ruleConfidence(matches []models.IdenticalRule) float64 {
	if len(matches) == 0 {
		return 0
	}
	var sum float64
	for _, m := range matches {
		weight := m.OverlapRatio
		if m.IsPropertyCombo {
			weight = weight*0.5 + 0.5
		}
		sum += weight
	}
	avg := sum / float64(len(matches))
	if avg > 0.99 {
		avg = 0.99
	}
	return avg
}
