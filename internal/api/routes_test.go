package api

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/templateguard/simengine/internal/retriever"
	"github.com/templateguard/simengine/pkg/models"
)

func TestIsURL(t *testing.T) {
	cases := map[string]bool{
		"http://example.com/page":  true,
		"https://example.com/page": true,
		"tmpl-abc123":              false,
		"":                         false,
	}
	for input, want := range cases {
		if got := isURL(input); got != want {
			t.Errorf("isURL(%q) = %v, want %v", input, got, want)
		}
	}
}

func TestScanRecommendation(t *testing.T) {
	tests := []struct {
		name       string
		candidates []retriever.Candidate
		want       string
	}{
		{"no candidates", nil, "no_action"},
		{"high similarity", []retriever.Candidate{{TemplateID: "t1", Jaccard: 0.9}}, "likely_copy"},
		{"moderate similarity", []retriever.Candidate{{TemplateID: "t1", Jaccard: 0.5}}, "review"},
		{"low similarity", []retriever.Candidate{{TemplateID: "t1", Jaccard: 0.05}}, "no_action"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scanRecommendation(tt.candidates); got != tt.want {
				t.Errorf("scanRecommendation() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExplanationForVerdictCoversEveryVerdict(t *testing.T) {
	verdicts := []models.RescanVerdict{
		models.RescanResolved, models.RescanInsufficientChanges,
		models.RescanStillSimilar, models.RescanNoBaseline,
	}
	seen := make(map[string]bool)
	for _, v := range verdicts {
		explanation := explanationForVerdict(v)
		if explanation == "" {
			t.Errorf("empty explanation for verdict %s", v)
		}
		if seen[explanation] {
			t.Errorf("duplicate explanation text for verdict %s", v)
		}
		seen[explanation] = true
	}
}

func TestClassifyErrorMapsSentinelsToStatusCodes(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{models.ErrFetchFailed, http.StatusBadGateway, "fetch_failed"},
		{models.ErrFetchTimeout, http.StatusGatewayTimeout, "timeout"},
		{models.ErrTimeout, http.StatusGatewayTimeout, "timeout"},
		{models.ErrDimensionMismatch, http.StatusUnprocessableEntity, "dimension_mismatch"},
		{models.ErrNotFound, http.StatusNotFound, "not_found"},
		{models.ErrStorageConflict, http.StatusConflict, "storage_conflict"},
		{models.ErrConfigInvalid, http.StatusInternalServerError, "config_invalid"},
		{errors.New("unrecognized failure"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		status, code := classifyError(tt.err)
		if status != tt.wantStatus || code != tt.wantCode {
			t.Errorf("classifyError(%v) = (%d, %q), want (%d, %q)", tt.err, status, code, tt.wantStatus, tt.wantCode)
		}
	}
}

func TestClassifyErrorUnwrapsFmtErrorf(t *testing.T) {
	wrapped := fmt.Errorf("fetching page: %w", models.ErrFetchFailed)
	status, code := classifyError(wrapped)
	if status != http.StatusBadGateway || code != "fetch_failed" {
		t.Errorf("classifyError(wrapped) = (%d, %q), want (%d, fetch_failed)", status, code, http.StatusBadGateway)
	}
}

func TestSketchSummaryReportsVariantAndConfidence(t *testing.T) {
	s := models.Sketch{
		Dimension:     128,
		Variant:       models.VariantCombined,
		ShingleCount:  50,
		FormatVersion: models.FormatVersion,
	}
	summary := sketchSummary(s)
	if summary["variant"] != "combined" {
		t.Errorf("expected variant combined, got %v", summary["variant"])
	}
	if summary["shingle_count"] != 50 {
		t.Errorf("expected shingle_count 50, got %v", summary["shingle_count"])
	}
	if summary["confidence"] != models.ConfidenceMedium {
		t.Errorf("expected confidence medium, got %v", summary["confidence"])
	}
}
