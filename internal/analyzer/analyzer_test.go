package analyzer

import (
	"testing"

	"github.com/templateguard/simengine/internal/fingerprint"
	"github.com/templateguard/simengine/pkg/models"
)

func TestCompareIdenticalSketchesHighConfidence(t *testing.T) {
	hasher := fingerprint.NewMinHasher(128)
	set := fingerprint.CharacterKGramShingles("a template body with plenty of repeated markup structure", 7)
	sketch := hasher.Sketch(set, models.VariantCombined, 1)

	result, _ := Compare(Input{SketchA: sketch, SketchB: sketch})
	if result.Jaccard < 0.99 {
		t.Fatalf("expected near-1.0 jaccard for identical sketches, got %f", result.Jaccard)
	}
}

func TestCompareEmptySketchIsIndeterminate(t *testing.T) {
	hasher := fingerprint.NewMinHasher(128)
	sketch := hasher.Sketch(fingerprint.CharacterKGramShingles("content", 7), models.VariantCSS, 1)
	empty := models.EmptySketch(128, models.VariantCSS)

	result, _ := Compare(Input{SketchA: sketch, SketchB: empty})
	if !result.Indeterminate {
		t.Fatal("expected indeterminate result when one sketch is empty")
	}
}

func TestCompareCombinesRuleEvidence(t *testing.T) {
	hasher := fingerprint.NewMinHasher(128)
	setA := fingerprint.CharacterKGramShingles("somewhat similar content blocks", 7)
	setB := fingerprint.CharacterKGramShingles("somewhat similar content blurbs", 7)
	a := hasher.Sketch(setA, models.VariantCombined, 1)
	b := hasher.Sketch(setB, models.VariantCombined, 1)

	rules := models.RuleMap{
		".hero": {
			{Property: "display", Value: "flex"},
			{Property: "padding", Value: "2rem"},
			{Property: "color", Value: "blue"},
		},
	}

	result, evidence := Compare(Input{
		SketchA: a, SketchB: b,
		RulesA: rules, RulesB: rules,
		RuleOverlapFloor: 0.5, RuleMinCommonDecls: 2,
	})

	if len(evidence.IdenticalRules) == 0 {
		t.Fatal("expected identical rule evidence")
	}
	if len(evidence.PropertyCombinations) == 0 {
		t.Fatal("expected a property combination (3 shared declarations)")
	}
	if result.Jaccard <= 0 {
		t.Fatalf("expected positive combined confidence, got %f", result.Jaccard)
	}
}
