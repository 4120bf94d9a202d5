package analyzer

import (
	"context"
	"sort"
	"strings"

	"github.com/templateguard/simengine/internal/retriever"
	"github.com/templateguard/simengine/pkg/models"
)

// PageLookup is the subset of the store this package needs to resolve a
// page candidate's own metadata once the retriever has returned candidate
// page ids.
type PageLookup interface {
	retriever.PageLookup
	GetPageType(ctx context.Context, pageID string) (models.PageType, error)
}

// AlignPages runs the page-type-aware decomposition: for every page
// of template A, retrieve page-level candidates from template B's corpus
// (already filtered to other templates by the store), restrict to pages of
// the same PageType, and keep the best match. Pages of A with no qualifying
// match are simply absent from the alignment, not scored as zero — a
// template with more pages than its imitator still gets credit for the
// pages that do line up.
func AlignPages(ctx context.Context, store PageLookup, bands, rowsPerBand int, threshold float64, pagesA []models.Page, templateBID string) (models.PageAlignment, error) {
	var pairs []models.PagePair
	var sum float64

	for _, pageA := range pagesA {
		sketchA, err := store.GetPageSketch(ctx, pageA.PageID)
		if err != nil {
			continue
		}

		candidates, err := retriever.FindPageCandidates(ctx, store, bands, rowsPerBand, threshold, pageA.PageID, pageA.TemplateID, sketchA.Sketch)
		if err != nil {
			return models.PageAlignment{}, err
		}

		best, found := bestMatchingType(ctx, store, candidates, templateBID, pageA.PageType)
		if !found {
			continue
		}

		pairs = append(pairs, models.PagePair{
			PageA:    pageA.PageID,
			PageB:    best.PageID,
			PageType: pageA.PageType,
			Jaccard:  best.Jaccard,
		})
		sum += best.Jaccard
	}

	overall := 0.0
	if len(pairs) > 0 {
		overall = sum / float64(len(pairs))
	}

	suspicious := suspiciousPairs(pairs)
	return models.PageAlignment{OverallSimilarity: overall, SuspiciousPages: suspicious}, nil
}

func bestMatchingType(ctx context.Context, store PageLookup, candidates []retriever.PageCandidate, templateBID string, wantType models.PageType) (retriever.PageCandidate, bool) {
	for _, c := range candidates {
		if !strings.HasPrefix(c.PageID, templateBID+"::") {
			continue
		}
		pageType, err := store.GetPageType(ctx, c.PageID)
		if err != nil || pageType != wantType {
			continue
		}
		return c, true
	}
	return retriever.PageCandidate{}, false
}

// suspiciousPageThreshold is the Jaccard floor a cross-template page pair
// must clear to count as suspicious on its own, independent of how the
// template-level comparison came out.
const suspiciousPageThreshold = 0.50

// suspiciousPairs returns, of the pairs clearing suspiciousPageThreshold,
// the top 10 by Jaccard — the pages driving the match rather than merely
// going along with it.
func suspiciousPairs(pairs []models.PagePair) []models.PagePair {
	var qualifying []models.PagePair
	for _, p := range pairs {
		if p.Jaccard >= suspiciousPageThreshold {
			qualifying = append(qualifying, p)
		}
	}
	sort.Slice(qualifying, func(i, j int) bool { return qualifying[i].Jaccard > qualifying[j].Jaccard })
	if len(qualifying) > 10 {
		qualifying = qualifying[:10]
	}
	return qualifying
}
