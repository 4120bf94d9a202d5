package indexing

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/templateguard/simengine/internal/analyzer"
	"github.com/templateguard/simengine/internal/config"
	"github.com/templateguard/simengine/internal/fetch"
	"github.com/templateguard/simengine/pkg/models"
)

type fakeRescanLookup struct {
	sketches           models.TemplateSketches
	latestSimilarity   float64
	latestSimilarityOK bool
}

func (f *fakeRescanLookup) GetTemplateSketches(ctx context.Context, templateID string) (models.TemplateSketches, error) {
	return f.sketches, nil
}

func (f *fakeRescanLookup) LatestRescanSimilarity(ctx context.Context, caseID string, baselineSimilarity float64) (float64, error) {
	if f.latestSimilarityOK {
		return f.latestSimilarity, nil
	}
	return baselineSimilarity, nil
}

func thresholds() analyzer.DriftThresholds {
	return analyzer.DriftThresholds{
		ResolvedSimilarity:   0.35,
		ResolvedMinimumDrift: 0.20,
		InsufficientMax:      0.10,
	}
}

func TestRescanInsufficientChangesWhenPageUnchanged(t *testing.T) {
	srv := newFixtureServer(t)
	defer srv.Close()

	cfg := config.Defaults()
	engine := NewEngine(fetch.NewClient(zap.NewNop()), nil, cfg, zap.NewNop())

	fp, err := engine.FingerprintPage(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("unexpected fingerprint error: %v", err)
	}

	lookup := &fakeRescanLookup{sketches: models.TemplateSketches{Combined: fp.Combined}}
	baseline := models.CaseBaseline{
		CaseID:              "case-1",
		OriginalTemplateID:  "tmpl-original",
		AllegedCopyURL:      srv.URL + "/",
		AllegedCopyBaseline: fp.Combined,
		BaselineSimilarity:  0.9,
		CapturedAt:          time.Now().Add(-24 * time.Hour),
	}

	record, err := Rescan(context.Background(), engine, lookup, thresholds(), baseline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.DriftFromBaseline != 0 {
		t.Errorf("expected zero drift for an unchanged page, got %v", record.DriftFromBaseline)
	}
	if record.Verdict != models.RescanInsufficientChanges {
		t.Errorf("expected insufficient_changes verdict for a page with zero drift, got %s", record.Verdict)
	}
	if record.CaseID != "case-1" {
		t.Errorf("expected case id to round-trip, got %s", record.CaseID)
	}
}

func TestRescanDriftsWhenPageContentDiverges(t *testing.T) {
	cfg := config.Defaults()
	engine := NewEngine(fetch.NewClient(zap.NewNop()), nil, cfg, zap.NewNop())

	staleSrv := newFixtureServer(t)
	defer staleSrv.Close()
	staleBaselineFP, err := engine.FingerprintPage(context.Background(), staleSrv.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error fingerprinting baseline fixture: %v", err)
	}

	freshSrv := newDivergentFixtureServer(t)
	defer freshSrv.Close()

	lookup := &fakeRescanLookup{sketches: models.TemplateSketches{Combined: staleBaselineFP.Combined}}
	baseline := models.CaseBaseline{
		CaseID:              "case-2",
		OriginalTemplateID:  "tmpl-original",
		AllegedCopyURL:      freshSrv.URL + "/",
		AllegedCopyBaseline: staleBaselineFP.Combined,
		BaselineSimilarity:  0.9,
		CapturedAt:          time.Now().Add(-24 * time.Hour),
	}

	record, err := Rescan(context.Background(), engine, lookup, thresholds(), baseline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.DriftFromBaseline <= thresholds().ResolvedMinimumDrift {
		t.Errorf("expected drift above the resolved threshold for wholly different content, got %v", record.DriftFromBaseline)
	}
}
