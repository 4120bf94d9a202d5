package fingerprint

import (
	"strings"

	"github.com/templateguard/simengine/pkg/models"
)

// Page-Type Classification
//
// Multi-page templates need their pages aligned by purpose before a
// cross-template comparison means anything: a home page always differs
// structurally from a blog index, so comparing every page of template A
// against every page of template B would bury genuine page-pair matches in
// noise. Classification here is
// path-based rather than content-based: cheap, deterministic, and good
// enough since template page paths are conventional by nature (/about,
// /pricing, /blog/:slug...).

type pathRule struct {
	pageType models.PageType
	segments []string // any one of these segments matching classifies the page
	isPost   bool     // path has more segments after the matched one (detail/post page)
}

var pathRules = []pathRule{
	{pageType: models.PageAbout, segments: []string{"about", "about-us", "our-story"}},
	{pageType: models.PageContact, segments: []string{"contact", "contact-us", "get-in-touch"}},
	{pageType: models.PagePricing, segments: []string{"pricing", "plans", "plans-pricing"}},
	{pageType: models.PageBlogPost, segments: []string{"blog", "post", "articles", "news"}, isPost: true},
	{pageType: models.PageBlog, segments: []string{"blog", "articles", "news"}},
	{pageType: models.PagePortfolioItem, segments: []string{"work", "portfolio", "projects", "case-studies"}, isPost: true},
	{pageType: models.PagePortfolio, segments: []string{"work", "portfolio", "projects"}},
	{pageType: models.PageServiceDetail, segments: []string{"services", "service"}, isPost: true},
	{pageType: models.PageServices, segments: []string{"services", "service", "what-we-do"}},
	{pageType: models.PageTeam, segments: []string{"team", "our-team", "people", "staff"}},
	{pageType: models.PageFAQ, segments: []string{"faq", "faqs", "help"}},
	{pageType: models.PageLegal, segments: []string{"privacy", "privacy-policy", "terms", "terms-of-service", "legal"}},
	{pageType: models.PageProduct, segments: []string{"product", "products", "shop"}, isPost: true},
	{pageType: models.PageShop, segments: []string{"shop", "store", "products"}},
}

// ClassifyPage maps a page's URL path to a PageType with a confidence score.
// The home page and the unclassified fallback each get fixed confidences
// since there is no competing evidence to weigh them against.
func ClassifyPage(path string) (models.PageType, float64) {
	segments := splitPath(path)
	if len(segments) == 0 {
		return models.PageHome, 1.0
	}

	for _, rule := range pathRules {
		for i, seg := range segments {
			if !matchesAny(seg, rule.segments) {
				continue
			}
			hasMore := i < len(segments)-1
			if rule.isPost && hasMore {
				return rule.pageType, 0.85
			}
			if !rule.isPost && !hasMore {
				return rule.pageType, 0.9
			}
		}
	}

	return models.PageUnknown, 0.3
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	parts := strings.Split(trimmed, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}

func matchesAny(segment string, candidates []string) bool {
	for _, c := range candidates {
		if segment == c {
			return true
		}
	}
	return false
}
