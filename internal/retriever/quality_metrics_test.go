package retriever

import "testing"

func TestAdjustedRandIndexPerfectAgreement(t *testing.T) {
	predicted := []int{0, 0, 1, 1, 2}
	groundTruth := []int{5, 5, 9, 9, 3}
	ari := AdjustedRandIndex(predicted, groundTruth)
	if ari < 0.999 {
		t.Fatalf("expected near-perfect ARI for relabeled identical partitions, got %f", ari)
	}
}

func TestAdjustedRandIndexDisagreement(t *testing.T) {
	predicted := []int{0, 0, 0, 0}
	groundTruth := []int{0, 1, 2, 3}
	ari := AdjustedRandIndex(predicted, groundTruth)
	if ari > 0.5 {
		t.Fatalf("expected low ARI for maximally disagreeing partitions, got %f", ari)
	}
}

func TestVariationOfInformationZeroForIdenticalPartitions(t *testing.T) {
	predicted := []int{0, 0, 1, 1}
	groundTruth := []int{0, 0, 1, 1}
	vi := VariationOfInformation(predicted, groundTruth)
	if vi > 1e-9 {
		t.Fatalf("expected ~0 VI for identical partitions, got %f", vi)
	}
}

func TestUnionFindGroupsMerge(t *testing.T) {
	parent := NewUnionFind(5)
	Union(parent, 0, 1)
	Union(parent, 1, 2)
	Union(parent, 3, 4)

	groups := GroupsFromUnionFind(parent)
	if groups[0] != groups[1] || groups[1] != groups[2] {
		t.Fatalf("expected 0,1,2 in same group: %v", groups)
	}
	if groups[3] != groups[4] {
		t.Fatalf("expected 3,4 in same group: %v", groups)
	}
	if groups[0] == groups[3] {
		t.Fatalf("expected {0,1,2} and {3,4} to be different groups: %v", groups)
	}
}
