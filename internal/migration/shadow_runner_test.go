package migration

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/templateguard/simengine/pkg/models"
)

func TestRunShadowComparisonIdenticalContentZeroDelta(t *testing.T) {
	content := OwnerContent{
		OwnerID:    "owner-a",
		ClassAttrs: []string{"btn btn-primary", "nav nav-main"},
		Rules: models.RuleMap{
			".btn": {{Property: "color", Value: "red"}},
		},
		CSSText:  ".btn { color: red; }",
		HTMLText: "<div class=\"btn\"><span>hi</span></div>",
	}
	pair := Pair{A: content, B: content}

	params := SketchParams{Dimension: 64, CSSShingleK: 5, HTMLShingleK: 7}
	runner := NewShadowRunner(nil, zap.NewNop(), 1, params, params)

	result, err := runner.RunShadowComparison(context.Background(), pair)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.OldJaccard != 1.0 || result.NewJaccard != 1.0 {
		t.Fatalf("expected identical content to estimate Jaccard 1.0 under both configs, got old=%f new=%f", result.OldJaccard, result.NewJaccard)
	}
	if result.Delta != 0 {
		t.Fatalf("expected zero delta for unchanged config, got %f", result.Delta)
	}
}

func TestRunShadowComparisonDisjointContentLowJaccard(t *testing.T) {
	a := OwnerContent{OwnerID: "owner-a", CSSText: "aaaaaaaaaaaaaaaaaaaa", HTMLText: "<div>aaaaaaaaaaaa</div>"}
	b := OwnerContent{OwnerID: "owner-b", CSSText: "zzzzzzzzzzzzzzzzzzzz", HTMLText: "<span>zzzzzzzzzzzz</span>"}

	params := SketchParams{Dimension: 64, CSSShingleK: 5, HTMLShingleK: 7}
	runner := NewShadowRunner(nil, zap.NewNop(), 1, params, params)

	result, err := runner.RunShadowComparison(context.Background(), Pair{A: a, B: b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.OldJaccard > 0.3 {
		t.Fatalf("expected low Jaccard for disjoint content, got %f", result.OldJaccard)
	}
}

func TestRunShadowComparisonDimensionChangeDoesNotError(t *testing.T) {
	a := OwnerContent{OwnerID: "owner-a", CSSText: ".x{color:red}", HTMLText: "<div class=\"x\">hi</div>"}
	b := OwnerContent{OwnerID: "owner-b", CSSText: ".x{color:red}", HTMLText: "<div class=\"x\">hi</div>"}

	oldParams := SketchParams{Dimension: 64, CSSShingleK: 5, HTMLShingleK: 7}
	newParams := SketchParams{Dimension: 128, CSSShingleK: 4, HTMLShingleK: 6}
	runner := NewShadowRunner(nil, zap.NewNop(), 7, oldParams, newParams)

	result, err := runner.RunShadowComparison(context.Background(), Pair{A: a, B: b})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.SnapshotID != 7 {
		t.Fatalf("expected snapshot id to round-trip, got %d", result.SnapshotID)
	}
}

func TestNewShadowRunnerKeepsNilPoolForDryRun(t *testing.T) {
	params := SketchParams{Dimension: 64, CSSShingleK: 5, HTMLShingleK: 7}
	runner := NewShadowRunner(nil, zap.NewNop(), 1, params, params)
	if runner.pool != nil {
		t.Fatal("expected nil pool to be preserved for dry-run mode")
	}
}
