package analyzer

import (
	"sort"

	"github.com/templateguard/simengine/pkg/models"
)

// CompareStructuralPatterns computes the depth-weighted structural match
// score between two documents' pattern lists. For every
// (parent_tag, child signature) pattern shared by both sides, the credited
// weight is the minimum of the two sides' weights — a pattern that recurs
// far more often in one document than the other is credited only as much
// as its scarcer occurrence supports.
func CompareStructuralPatterns(a, b []models.StructuralPattern) models.StructuralScore {
	bIndex := make(map[string]models.StructuralPattern, len(b))
	for _, p := range b {
		bIndex[patternKey(p)] = p
	}

	var matches []models.StructuralMatch
	var totalWeightA float64
	for _, pa := range a {
		totalWeightA += pa.Weight * float64(pa.Count)
		pb, ok := bIndex[patternKey(pa)]
		if !ok {
			continue
		}
		credited := min(pa.Weight*float64(pa.Count), pb.Weight*float64(pb.Count))
		matches = append(matches, models.StructuralMatch{
			Pattern:       pa,
			MatchedWeight: credited,
		})
	}

	var matchedSum float64
	for _, m := range matches {
		matchedSum += m.MatchedWeight
	}

	score := 0.0
	if totalWeightA > 0 {
		score = matchedSum / totalWeightA
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].MatchedWeight > matches[j].MatchedWeight
	})
	reported := matches
	if len(reported) > 20 {
		reported = reported[:20]
	}

	return models.StructuralScore{Score: score, Matches: reported}
}

func patternKey(p models.StructuralPattern) string {
	return p.ParentTag + "[" + p.ChildSignature + "]"
}
