// Package retriever implements the Retriever: turning a freshly
// computed sketch into a short, ranked list of candidate templates/pages
// worth a full Analyzer pass, using the LSH band index instead of a
// pairwise scan over the whole corpus.
package retriever

import (
	"context"
	"sort"

	"github.com/templateguard/simengine/internal/fingerprint"
	"github.com/templateguard/simengine/pkg/models"
)

// TemplateLookup is the subset of the Sketch Store the Retriever needs for
// template-level candidate lookup, named as an interface so the Retriever
// can be tested against a fake store.
type TemplateLookup interface {
	LookupCandidateTemplates(ctx context.Context, variant models.Variant, bandRows []models.BandRow, selfID, excludeCreator string) ([]string, error)
	GetTemplateSketches(ctx context.Context, templateID string) (models.TemplateSketches, error)
}

// PageLookup is the page-level analog, used for cross-template page
// alignment.
type PageLookup interface {
	LookupCandidatePages(ctx context.Context, bandRows []models.BandRow, excludeTemplateID string) ([]string, error)
	GetPageSketch(ctx context.Context, pageID string) (models.PageSketch, error)
}

// Candidate is one retrieved template ranked by its combined-variant
// Jaccard estimate against the query sketch.
type Candidate struct {
	TemplateID string
	Jaccard    float64
}

// Retriever bands a query sketch, pulls every co-banded owner from the
// store, re-estimates Jaccard against each to rank them, and drops anything
// under the candidate threshold.
type Retriever struct {
	store       TemplateLookup
	bands       int
	rowsPerBand int
	threshold   float64
}

// New builds a Retriever against a TemplateLookup (normally internal/store.Store).
func New(store TemplateLookup, bands, rowsPerBand int, candidateThreshold float64) *Retriever {
	return &Retriever{store: store, bands: bands, rowsPerBand: rowsPerBand, threshold: candidateThreshold}
}

// FindCandidates bands the query sketch, looks up co-banded templates, and
// returns them ranked descending by re-estimated Jaccard, filtered to those
// at or above the configured candidate threshold.
func (r *Retriever) FindCandidates(ctx context.Context, selfID string, query models.Sketch, excludeCreator string) ([]Candidate, error) {
	if query.IsEmpty() {
		return nil, nil
	}

	bandRows := fingerprint.BandRows(query, r.bands, r.rowsPerBand, selfID)
	ownerIDs, err := r.store.LookupCandidateTemplates(ctx, query.Variant, bandRows, selfID, excludeCreator)
	if err != nil {
		return nil, err
	}

	candidates := make([]Candidate, 0, len(ownerIDs))
	for _, ownerID := range ownerIDs {
		sketches, err := r.store.GetTemplateSketches(ctx, ownerID)
		if err != nil {
			continue
		}
		var candidateSketch models.Sketch
		switch query.Variant {
		case models.VariantCSS:
			candidateSketch = sketches.CSS
		case models.VariantHTML:
			candidateSketch = sketches.HTML
		default:
			candidateSketch = sketches.Combined
		}

		jaccard, err := fingerprint.EstimateJaccard(query, candidateSketch)
		if err != nil {
			continue
		}
		if jaccard < r.threshold {
			continue
		}
		candidates = append(candidates, Candidate{TemplateID: ownerID, Jaccard: jaccard})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Jaccard > candidates[j].Jaccard
	})
	return candidates, nil
}

// PageCandidate is one retrieved page for cross-template alignment.
type PageCandidate struct {
	PageID  string
	Jaccard float64
}

// FindPageCandidates is the page-level analog of FindCandidates, used while
// building a PageAlignment.
func FindPageCandidates(ctx context.Context, store PageLookup, bands, rowsPerBand int, threshold float64, selfPageID, excludeTemplateID string, query models.Sketch) ([]PageCandidate, error) {
	if query.IsEmpty() {
		return nil, nil
	}
	bandRows := fingerprint.BandRows(query, bands, rowsPerBand, selfPageID)
	pageIDs, err := store.LookupCandidatePages(ctx, bandRows, excludeTemplateID)
	if err != nil {
		return nil, err
	}

	candidates := make([]PageCandidate, 0, len(pageIDs))
	for _, pageID := range pageIDs {
		sketch, err := store.GetPageSketch(ctx, pageID)
		if err != nil {
			continue
		}
		jaccard, err := fingerprint.EstimateJaccard(query, sketch.Sketch)
		if err != nil {
			continue
		}
		if jaccard < threshold {
			continue
		}
		candidates = append(candidates, PageCandidate{PageID: pageID, Jaccard: jaccard})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Jaccard > candidates[j].Jaccard
	})
	return candidates, nil
}
