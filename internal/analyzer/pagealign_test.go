package analyzer

import (
	"context"
	"testing"

	"github.com/templateguard/simengine/pkg/models"
)

type fakePage struct {
	sketch   models.Sketch
	pageType models.PageType
}

type fakePageStore struct {
	pages map[string]fakePage
	// templateOf maps a pageID to its owning template, for exclusion.
	templateOf map[string]string
}

func (s *fakePageStore) LookupCandidatePages(ctx context.Context, bandRows []models.BandRow, excludeTemplateID string) ([]string, error) {
	var ids []string
	for id, tmpl := range s.templateOf {
		if tmpl == excludeTemplateID {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *fakePageStore) GetPageSketch(ctx context.Context, pageID string) (models.PageSketch, error) {
	p, ok := s.pages[pageID]
	if !ok {
		return models.PageSketch{}, models.ErrNotFound
	}
	return models.PageSketch{PageID: pageID, Sketch: p.sketch, ShingleCount: p.sketch.ShingleCount}, nil
}

func (s *fakePageStore) GetPageType(ctx context.Context, pageID string) (models.PageType, error) {
	p, ok := s.pages[pageID]
	if !ok {
		return "", models.ErrNotFound
	}
	return p.pageType, nil
}

func sketchFromValues(values ...uint64) models.Sketch {
	return models.Sketch{
		Dimension:     len(values),
		Variant:       models.VariantCombined,
		Values:        values,
		ShingleCount:  len(values) * 10,
		FormatVersion: models.FormatVersion,
	}
}

func TestAlignPagesMatchesSamePageType(t *testing.T) {
	store := &fakePageStore{
		pages: map[string]fakePage{
			"a::home":    {sketch: sketchFromValues(1, 2, 3, 4), pageType: models.PageHome},
			"b::home":    {sketch: sketchFromValues(1, 2, 3, 5), pageType: models.PageHome},
			"b::contact": {sketch: sketchFromValues(9, 9, 9, 9), pageType: models.PageContact},
		},
		templateOf: map[string]string{
			"b::home":    "b",
			"b::contact": "b",
		},
	}

	pagesA := []models.Page{
		{PageID: "a::home", TemplateID: "a", PageType: models.PageHome},
	}

	alignment, err := AlignPages(context.Background(), store, 2, 2, 0.1, pagesA, "b")
	if err != nil {
		t.Fatalf("AlignPages returned error: %v", err)
	}
	if len(alignment.SuspiciousPages) != 1 {
		t.Fatalf("expected one aligned page pair, got %d", len(alignment.SuspiciousPages))
	}
	pair := alignment.SuspiciousPages[0]
	if pair.PageA != "a::home" || pair.PageB != "b::home" {
		t.Fatalf("expected a::home aligned to b::home, got %+v", pair)
	}
	if pair.PageType != models.PageHome {
		t.Fatalf("expected page type home, got %s", pair.PageType)
	}
	if alignment.OverallSimilarity != pair.Jaccard {
		t.Fatalf("expected overall similarity to equal the single pair's jaccard, got %v vs %v", alignment.OverallSimilarity, pair.Jaccard)
	}
}

func TestAlignPagesSkipsPageWithNoMatchingType(t *testing.T) {
	store := &fakePageStore{
		pages: map[string]fakePage{
			"a::pricing": {sketch: sketchFromValues(1, 2, 3, 4), pageType: models.PagePricing},
			"b::home":    {sketch: sketchFromValues(1, 2, 3, 4), pageType: models.PageHome},
		},
		templateOf: map[string]string{
			"b::home": "b",
		},
	}

	pagesA := []models.Page{
		{PageID: "a::pricing", TemplateID: "a", PageType: models.PagePricing},
	}

	alignment, err := AlignPages(context.Background(), store, 2, 2, 0.1, pagesA, "b")
	if err != nil {
		t.Fatalf("AlignPages returned error: %v", err)
	}
	if len(alignment.SuspiciousPages) != 0 {
		t.Fatalf("expected no aligned pairs when no candidate shares the page type, got %+v", alignment.SuspiciousPages)
	}
	if alignment.OverallSimilarity != 0 {
		t.Fatalf("expected zero overall similarity with no aligned pairs, got %v", alignment.OverallSimilarity)
	}
}

func TestAlignPagesAveragesAcrossMultiplePages(t *testing.T) {
	store := &fakePageStore{
		pages: map[string]fakePage{
			"a::home":    {sketch: sketchFromValues(1, 2, 3, 4), pageType: models.PageHome},
			"a::contact": {sketch: sketchFromValues(5, 6, 7, 8), pageType: models.PageContact},
			"b::home":    {sketch: sketchFromValues(1, 2, 3, 4), pageType: models.PageHome},
			"b::contact": {sketch: sketchFromValues(5, 6, 7, 9), pageType: models.PageContact},
		},
		templateOf: map[string]string{
			"b::home":    "b",
			"b::contact": "b",
		},
	}

	pagesA := []models.Page{
		{PageID: "a::home", TemplateID: "a", PageType: models.PageHome},
		{PageID: "a::contact", TemplateID: "a", PageType: models.PageContact},
	}

	alignment, err := AlignPages(context.Background(), store, 2, 2, 0.1, pagesA, "b")
	if err != nil {
		t.Fatalf("AlignPages returned error: %v", err)
	}
	if len(alignment.SuspiciousPages) != 2 {
		t.Fatalf("expected both pages aligned, got %d", len(alignment.SuspiciousPages))
	}
	var sum float64
	for _, p := range alignment.SuspiciousPages {
		sum += p.Jaccard
	}
	want := sum / float64(len(alignment.SuspiciousPages))
	if alignment.OverallSimilarity != want {
		t.Fatalf("expected overall similarity to be the mean of aligned pairs, got %v want %v", alignment.OverallSimilarity, want)
	}
}

func TestAlignPagesSkipsPageWithNoStoredSketch(t *testing.T) {
	store := &fakePageStore{
		pages:      map[string]fakePage{},
		templateOf: map[string]string{},
	}

	pagesA := []models.Page{
		{PageID: "a::missing", TemplateID: "a", PageType: models.PageHome},
	}

	alignment, err := AlignPages(context.Background(), store, 16, 8, 0.1, pagesA, "b")
	if err != nil {
		t.Fatalf("AlignPages returned error: %v", err)
	}
	if len(alignment.SuspiciousPages) != 0 {
		t.Fatalf("expected no aligned pairs when the page's own sketch is missing, got %+v", alignment.SuspiciousPages)
	}
}
