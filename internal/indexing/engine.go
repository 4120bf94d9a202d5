// Package indexing is the composition root tying the Fetcher, Fingerprinter,
// and Sketch Store together into the single operation every entry point
// needs: turn a URL into stored sketches. The API handlers and simctl hold
// one *Engine directly as a field, and the backfill runner reaches it through
// its one-method Indexer interface, rather than threading
// fetch/fingerprint/store calls through yet another layer of indirection.
package indexing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/templateguard/simengine/internal/config"
	"github.com/templateguard/simengine/internal/fetch"
	"github.com/templateguard/simengine/internal/fingerprint"
	"github.com/templateguard/simengine/pkg/models"
)

// Store is the subset of *store.Store the engine needs, named so tests can
// supply a fake instead of a real Postgres pool.
type Store interface {
	PutTemplate(ctx context.Context, tmpl models.Template, sketches models.TemplateSketches, bandRows map[models.Variant][]models.BandRow) error
	PutPage(ctx context.Context, page models.Page, sketch models.PageSketch, bandRows []models.BandRow) error
	GetTemplateSketches(ctx context.Context, templateID string) (models.TemplateSketches, error)
	GetTemplate(ctx context.Context, templateID string) (models.Template, error)
	ListPages(ctx context.Context, templateID string) ([]models.Page, error)
}

// Engine computes sketches for a URL and, when given a Store, persists them.
type Engine struct {
	fetcher *fetch.Client
	store   Store
	cfg     config.Config
	hasher  *fingerprint.MinHasher
	logger  *zap.Logger
}

// NewEngine builds an indexing Engine. store may be nil for a dry-run
// fingerprint-only Engine: FingerprintPage never touches the store, and
// IndexTemplate returns an error without one.
func NewEngine(fetcher *fetch.Client, st Store, cfg config.Config, logger *zap.Logger) *Engine {
	return &Engine{
		fetcher: fetcher,
		store:   st,
		cfg:     cfg,
		hasher:  fingerprint.NewMinHasher(cfg.SketchDimension),
		logger:  logger,
	}
}

// PageFingerprint is everything the Fingerprinter extracts from one fetched
// page, before any persistence decision is made.
type PageFingerprint struct {
	URL               string
	Path              string
	PageType          models.PageType
	TypeConfidence    float64
	CSS               models.Sketch
	HTML              models.Sketch
	Combined          models.Sketch
	Rules             models.RuleMap
	StructuralPatterns []models.StructuralPattern
	UniqueClassCount  int
	HTMLBytes         int
}

// FingerprintPage fetches pageURL and computes its three sketch variants,
// CSS rule map, and structural patterns, without touching the store. Reset
// selectors and framework-prefixed class selectors are dropped from the
// returned rule map after the CSS shingles are built.
func (e *Engine) FingerprintPage(ctx context.Context, pageURL string) (PageFingerprint, error) {
	normalized, err := fetch.NormalizeURL(pageURL)
	if err != nil {
		return PageFingerprint{}, fmt.Errorf("%w: %v", models.ErrFetchFailed, err)
	}

	page, err := e.fetcher.FetchStatic(ctx, normalized)
	if err != nil {
		return PageFingerprint{}, err
	}

	cssText := strings.Join(page.Stylesheets, "\n")
	rules := fingerprint.ParseCSSRules(cssText)

	patterns, classAttrs, inlineCSS, err := fingerprint.ExtractStructuralPatterns(
		strings.NewReader(page.HTML), e.cfg.StructuralArityCap, e.cfg.Patterns.GenericStructuralPatterns)
	if err != nil {
		return PageFingerprint{}, fmt.Errorf("structural extraction: %w", err)
	}
	if len(inlineCSS) > 0 {
		cssText = cssText + "\n" + strings.Join(inlineCSS, "\n")
		rules = fingerprint.ParseCSSRules(cssText)
	}

	classAttrs = fingerprint.FilterFrameworkClasses(classAttrs, e.cfg.Patterns.FrameworkClassPrefixes)

	cssShingles := fingerprint.Union(
		fingerprint.CSSClassShingles(classAttrs),
		fingerprint.CSSDeclarationShingles(rules),
		fingerprint.CharacterKGramShingles(cssText, e.cfg.CSSShingleK),
	)
	htmlShingles := fingerprint.CharacterKGramShingles(page.HTML, e.cfg.HTMLShingleK)
	combinedShingles := fingerprint.Union(cssShingles, htmlShingles)

	for sel := range rules {
		if fingerprint.IsResetSelector(sel, e.cfg.Patterns.ResetSelectors) ||
			(strings.HasPrefix(sel, ".") && fingerprint.IsFrameworkClass(sel[1:], e.cfg.Patterns.FrameworkClassPrefixes)) {
			delete(rules, sel)
		}
	}

	patternVer := e.cfg.Patterns.Version
	cssSketch := e.hasher.Sketch(cssShingles, models.VariantCSS, patternVer)
	htmlSketch := e.hasher.Sketch(htmlShingles, models.VariantHTML, patternVer)
	combinedSketch := e.hasher.Sketch(combinedShingles, models.VariantCombined, patternVer)

	pageType, confidence := fingerprint.ClassifyPage(page.Path)

	return PageFingerprint{
		URL:                normalized,
		Path:               page.Path,
		PageType:           pageType,
		TypeConfidence:     confidence,
		CSS:                cssSketch,
		HTML:               htmlSketch,
		Combined:           combinedSketch,
		Rules:              rules,
		StructuralPatterns: patterns,
		UniqueClassCount:   cssClassCardinality(classAttrs),
		HTMLBytes:          len(page.HTML),
	}, nil
}

func cssClassCardinality(classAttrs []string) int {
	set := fingerprint.CSSClassShingles(classAttrs)
	return set.Len()
}

// IndexTemplate fingerprints templateURL, builds band rows for every
// variant, and persists the template plus a single page (the template's own
// URL) to the store. It does not discover or index any other pages of the
// template, and it leaves the template's LastFullIndexAt unset.
func (e *Engine) IndexTemplate(ctx context.Context, id, templateURL, creator string) (models.Template, error) {
	if e.store == nil {
		return models.Template{}, fmt.Errorf("indexing: IndexTemplate requires a store")
	}
	if id == "" {
		id = uuid.NewString()
	}

	fp, err := e.FingerprintPage(ctx, templateURL)
	if err != nil {
		return models.Template{}, err
	}

	now := time.Now()
	tmpl := models.Template{ID: id, URL: fp.URL, Creator: creator, CreatedAt: now, UpdatedAt: now}
	sketches := models.TemplateSketches{TemplateID: id, CSS: fp.CSS, HTML: fp.HTML, Combined: fp.Combined, UpdatedAt: now}

	bandRows := map[models.Variant][]models.BandRow{
		models.VariantCSS:      fingerprint.BandRows(fp.CSS, e.cfg.Bands, e.cfg.RowsPerBand, id),
		models.VariantHTML:     fingerprint.BandRows(fp.HTML, e.cfg.Bands, e.cfg.RowsPerBand, id),
		models.VariantCombined: fingerprint.BandRows(fp.Combined, e.cfg.Bands, e.cfg.RowsPerBand, id),
	}

	if err := e.store.PutTemplate(ctx, tmpl, sketches, bandRows); err != nil {
		return models.Template{}, err
	}

	pageID := id + "::" + fp.Path
	page := models.Page{
		PageID: pageID, TemplateID: id, URL: fp.URL, Path: fp.Path,
		PageType: fp.PageType, TypeConfidence: fp.TypeConfidence,
		HTMLBytes: fp.HTMLBytes, UniqueClassCount: fp.UniqueClassCount,
		IndexedAt: now,
	}
	pageSketch := models.PageSketch{PageID: pageID, Sketch: fp.Combined, ShingleCount: fp.Combined.ShingleCount}
	pageBandRows := fingerprint.BandRows(fp.Combined, e.cfg.Bands, e.cfg.RowsPerBand, pageID)

	if err := e.store.PutPage(ctx, page, pageSketch, pageBandRows); err != nil {
		return models.Template{}, err
	}

	return tmpl, nil
}

// ReindexTemplate recomputes and overwrites an already-stored template's
// sketches under the engine's current config, satisfying
// internal/backfill.Indexer.
func (e *Engine) ReindexTemplate(ctx context.Context, tmpl models.Template) error {
	_, err := e.IndexTemplate(ctx, tmpl.ID, tmpl.URL, tmpl.Creator)
	return err
}
