// Package analyzer is the Analyzer: given two sketches and, when
// available, the richer CSS rule maps and structural patterns behind them,
// it produces a SimilarityResult and supporting Evidence, plus the
// rescan/drift decision tree for existing cases.
package analyzer

import (
	"sort"

	"github.com/templateguard/simengine/pkg/models"
)

// MineIdenticalRules finds selectors present in both rule maps whose common
// declarations clear the overlap-ratio floor and minimum-common-declaration
// count. Reset/framework selectors are already dropped from the rule maps
// upstream by indexing.Engine.FingerprintPage; this function only applies
// the overlap gate.
func MineIdenticalRules(a, b models.RuleMap, overlapFloor float64, minCommonDecls int) []models.IdenticalRule {
	var matches []models.IdenticalRule

	for selector, declsA := range a {
		declsB, ok := b[selector]
		if !ok {
			continue
		}

		common := commonDeclarations(declsA, declsB)
		if len(common) < minCommonDecls {
			continue
		}

		denom := len(declSet(declsA))
		if len(declSet(declsB)) > denom {
			denom = len(declSet(declsB))
		}
		if denom == 0 {
			continue
		}
		overlap := float64(len(common)) / float64(denom)
		if overlap < overlapFloor {
			continue
		}

		matches = append(matches, models.IdenticalRule{
			Selector:        selector,
			CommonDecls:     common,
			OverlapRatio:    overlap,
			IsPropertyCombo: len(common) >= 3,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if len(matches[i].CommonDecls) != len(matches[j].CommonDecls) {
			return len(matches[i].CommonDecls) > len(matches[j].CommonDecls)
		}
		return matches[i].OverlapRatio > matches[j].OverlapRatio
	})
	return matches
}

// PropertyCombinations filters MineIdenticalRules' output down to the
// higher-confidence subset where three or more declarations matched
// together — a single matching
// declaration like "display:flex" is common by chance, three matching
// together in the same rule much less so.
func PropertyCombinations(matches []models.IdenticalRule) []models.IdenticalRule {
	var combos []models.IdenticalRule
	for _, m := range matches {
		if m.IsPropertyCombo {
			combos = append(combos, m)
		}
	}
	return combos
}

func declSet(decls []models.CSSDeclaration) map[models.CSSDeclaration]struct{} {
	set := make(map[models.CSSDeclaration]struct{}, len(decls))
	for _, d := range decls {
		set[d] = struct{}{}
	}
	return set
}

func commonDeclarations(a, b []models.CSSDeclaration) []models.CSSDeclaration {
	setB := declSet(b)
	var common []models.CSSDeclaration
	seen := make(map[models.CSSDeclaration]struct{})
	for _, d := range a {
		if _, ok := seen[d]; ok {
			continue
		}
		if _, ok := setB[d]; ok {
			common = append(common, d)
			seen[d] = struct{}{}
		}
	}
	return common
}
