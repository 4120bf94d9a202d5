package models

import "time"

// PageType is a coarse functional label for a page within a template,
// used to align same-purpose pages across templates.
type PageType string

const (
	PageHome           PageType = "home"
	PageAbout          PageType = "about"
	PageContact        PageType = "contact"
	PagePricing        PageType = "pricing"
	PageBlog           PageType = "blog"
	PageBlogPost       PageType = "blog_post"
	PagePortfolio      PageType = "portfolio"
	PagePortfolioItem  PageType = "portfolio_item"
	PageServices       PageType = "services"
	PageServiceDetail  PageType = "service_detail"
	PageTeam           PageType = "team"
	PageFAQ            PageType = "faq"
	PageLegal          PageType = "legal"
	PageShop           PageType = "shop"
	PageProduct        PageType = "product"
	PageUnknown        PageType = "unknown"
)

// Template is a named unit with a canonical URL, owning a sequence of Pages
// and an aggregate Template Sketch.
type Template struct {
	ID      string
	URL     string
	Creator string

	CreatedAt time.Time
	UpdatedAt time.Time

	// LastFullIndexAt is stored and loaded with the template, but no
	// indexing path in this engine sets it: IndexTemplate indexes only the
	// template's own URL and leaves it nil, so it does not distinguish a
	// partial multi-page index from a full one.
	LastFullIndexAt *time.Time
}

// TemplateSketches bundles the three sketch variants stored per template.
type TemplateSketches struct {
	TemplateID string
	CSS        Sketch
	HTML       Sketch
	Combined   Sketch
	UpdatedAt  time.Time
}

// Page is a single URL within a template.
type Page struct {
	PageID         string // template_id :: path
	TemplateID     string
	URL            string
	Path           string
	PageType       PageType
	TypeConfidence float64
	HTMLBytes      int
	UniqueClassCount int
	MaxDOMDepth    int
	IndexedAt      time.Time
}

// PageSketch is the single sketch a page owns.
type PageSketch struct {
	PageID       string
	Sketch       Sketch
	ShingleCount int
}
