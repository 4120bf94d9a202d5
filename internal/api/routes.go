package api

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/templateguard/simengine/internal/analyzer"
	"github.com/templateguard/simengine/internal/backfill"
	"github.com/templateguard/simengine/internal/config"
	"github.com/templateguard/simengine/internal/indexing"
	"github.com/templateguard/simengine/internal/retriever"
	"github.com/templateguard/simengine/internal/store"
	"github.com/templateguard/simengine/pkg/models"
)

// APIHandler holds the collaborators every handler needs, the same way the
// engine's original request handlers held their db/RPC/websocket
// collaborators directly rather than through another indirection layer.
type APIHandler struct {
	engine         *indexing.Engine
	store          *store.Store
	wsHub          *Hub
	backfillRunner *backfill.Runner
	cfg            config.Config
	logger         *zap.Logger
}

// SetupRouter builds the Gin router for the Similarity API.
func SetupRouter(engine *indexing.Engine, st *store.Store, wsHub *Hub, backfillRunner *backfill.Runner, cfg config.Config, logger *zap.Logger) *gin.Engine {
	r := gin.Default()

	allowedOrigins := cfg.AllowedOrigins
	if allowedOrigins == "" {
		allowedOrigins = os.Getenv("ALLOWED_ORIGINS")
	}
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if allowedOrigins == "" || allowedOrigins == "*" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		} else {
			for _, allowed := range strings.Split(allowedOrigins, ",") {
				if strings.TrimSpace(allowed) == origin {
					c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
					break
				}
			}
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	handler := &APIHandler{engine: engine, store: st, wsHub: wsHub, backfillRunner: backfillRunner, cfg: cfg, logger: logger}

	pub := r.Group("/api/v1")
	{
		pub.GET("/health", handler.handleHealth)
		pub.GET("/stream", wsHub.Subscribe)
	}

	auth := r.Group("/api/v1")
	auth.Use(AuthMiddleware(cfg.APIAuthToken, cfg.GinMode, logger))
	auth.Use(NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst, logger).Middleware())
	{
		auth.POST("/fingerprint", handler.handleFingerprint)
		auth.POST("/compare", handler.handleCompare)
		auth.POST("/scan", handler.handleScan)
		auth.POST("/rescan", handler.handleRescan)
		auth.POST("/index", handler.handleIndex)

		auth.POST("/cases", handler.handleCreateCase)
		auth.GET("/cases/:id/rescans", handler.handleListCaseRescans)
	}

	return r
}

// isURL reports whether a /compare or /scan party identifier should be
// treated as a live URL rather than a stored owner_id.
func isURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

func sketchSummary(s models.Sketch) gin.H {
	return gin.H{
		"dimension":     s.Dimension,
		"variant":       s.Variant.String(),
		"shingle_count": s.ShingleCount,
		"confidence":    s.Confidence(),
	}
}

// handleFingerprint is POST /fingerprint { url }.
func (h *APIHandler) handleFingerprint(c *gin.Context) {
	var req struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	fp, err := h.engine.FingerprintPage(c.Request.Context(), req.URL)
	if err != nil {
		writeError(c, err)
		return
	}

	topPatterns := fp.StructuralPatterns
	if len(topPatterns) > 20 {
		topPatterns = topPatterns[:20]
	}

	c.JSON(http.StatusOK, gin.H{
		"template_sketch": sketchSummary(fp.Combined),
		// Only one page per call: the Fetcher's static path fetches a single
		// URL. Multi-page fingerprinting needs a PageDiscoverer, which this engine does not implement.
		"page_sketches": []gin.H{{
			"url":             fp.URL,
			"path":            fp.Path,
			"page_type":       fp.PageType,
			"type_confidence": fp.TypeConfidence,
			"sketch":          sketchSummary(fp.Combined),
		}},
		"rule_map_handle": uuid.NewString(),
		"structural_summary": gin.H{
			"pattern_count": len(fp.StructuralPatterns),
			"top_patterns":  topPatterns,
		},
	})
}

type compareSide struct {
	Combined   models.Sketch
	Rules      models.RuleMap
	Structural []models.StructuralPattern
	TemplateID string // empty when resolved from a raw URL rather than a stored template
}

func (h *APIHandler) resolveCompareSide(ctx context.Context, idOrURL string) (compareSide, error) {
	if isURL(idOrURL) {
		fp, err := h.engine.FingerprintPage(ctx, idOrURL)
		if err != nil {
			return compareSide{}, err
		}
		return compareSide{Combined: fp.Combined, Rules: fp.Rules, Structural: fp.StructuralPatterns}, nil
	}

	sketches, err := h.store.GetTemplateSketches(ctx, idOrURL)
	if err != nil {
		return compareSide{}, err
	}
	return compareSide{Combined: sketches.Combined, TemplateID: idOrURL}, nil
}

// handleCompare is POST /compare { a, b }.
func (h *APIHandler) handleCompare(c *gin.Context) {
	var req struct {
		A string `json:"a" binding:"required"`
		B string `json:"b" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	sideA, err := h.resolveCompareSide(ctx, req.A)
	if err != nil {
		writeError(c, err)
		return
	}
	sideB, err := h.resolveCompareSide(ctx, req.B)
	if err != nil {
		writeError(c, err)
		return
	}

	result, evidence := analyzer.Compare(analyzer.Input{
		SketchA: sideA.Combined, SketchB: sideB.Combined,
		RulesA: sideA.Rules, RulesB: sideB.Rules,
		StructuralA: sideA.Structural, StructuralB: sideB.Structural,
		RuleOverlapFloor: h.cfg.RuleOverlapFloor, RuleMinCommonDecls: h.cfg.RuleMinCommonDecls,
	})

	if sideA.TemplateID != "" && sideB.TemplateID != "" {
		pagesA, err := h.store.ListPages(ctx, sideA.TemplateID)
		if err == nil && len(pagesA) > 0 {
			alignment, err := analyzer.AlignPages(ctx, h.store, h.cfg.Bands, h.cfg.RowsPerBand, h.cfg.CandidateThreshold, pagesA, sideB.TemplateID)
			if err == nil {
				evidence.PageAlignment = &alignment
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"jaccard":               result.Jaccard,
		"confidence":            result.Confidence,
		"indeterminate":         result.Indeterminate,
		"identical_rules":       evidence.IdenticalRules,
		"property_combinations": evidence.PropertyCombinations,
		"structural_matches":    evidence.Structural.Matches,
		"page_alignment":        evidence.PageAlignment,
	})
}

// handleScan is POST /scan { url, threshold }.
func (h *APIHandler) handleScan(c *gin.Context) {
	var req struct {
		URL       string  `json:"url" binding:"required"`
		Threshold float64 `json:"threshold"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	threshold := req.Threshold
	if threshold <= 0 {
		threshold = h.cfg.CandidateThreshold
	}

	ctx := c.Request.Context()
	fp, err := h.engine.FingerprintPage(ctx, req.URL)
	if err != nil {
		writeError(c, err)
		return
	}

	retr := retriever.New(h.store, h.cfg.Bands, h.cfg.RowsPerBand, threshold)
	candidates, err := retr.FindCandidates(ctx, "", fp.Combined, "")
	if err != nil {
		writeError(c, err)
		return
	}

	matches := make([]gin.H, 0, len(candidates))
	for _, cand := range candidates {
		matches = append(matches, gin.H{
			"owner_id": cand.TemplateID,
			"jaccard":  cand.Jaccard,
			"verdict":  models.VerdictForJaccard(cand.Jaccard),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"matches":        matches,
		"recommendation": scanRecommendation(candidates),
	})
}

func scanRecommendation(candidates []retriever.Candidate) string {
	if len(candidates) == 0 {
		return "no_action"
	}
	switch models.VerdictForJaccard(candidates[0].Jaccard) {
	case models.VerdictHigh:
		return "likely_copy"
	case models.VerdictModerate:
		return "review"
	default:
		return "no_action"
	}
}

// handleRescan is POST /rescan { case_id }.
func (h *APIHandler) handleRescan(c *gin.Context) {
	var req struct {
		CaseID string `json:"case_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	record, err := h.rescanCase(ctx, req.CaseID)
	if err != nil {
		if err == errNoBaseline {
			c.JSON(http.StatusOK, gin.H{
				"drift":              0,
				"current_similarity": 0,
				"verdict":            models.RescanNoBaseline,
				"explanation":        "no case baseline exists for this case_id",
			})
			return
		}
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"drift":              record.DriftFromBaseline,
		"current_similarity": record.CurrentSimilarity,
		"verdict":            record.Verdict,
		"explanation":        explanationForVerdict(record.Verdict),
	})
}

// handleIndex is POST /index { id, url, metadata }.
func (h *APIHandler) handleIndex(c *gin.Context) {
	var req struct {
		ID       string            `json:"id"`
		URL      string            `json:"url" binding:"required"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	tmpl, err := h.engine.IndexTemplate(c.Request.Context(), req.ID, req.URL, req.Metadata["creator"])
	if err != nil {
		writeError(c, err)
		return
	}

	sketches, err := h.store.GetTemplateSketches(c.Request.Context(), tmpl.ID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok": true,
		"shingle_counts": gin.H{
			"css":      sketches.CSS.ShingleCount,
			"html":     sketches.HTML.ShingleCount,
			"combined": sketches.Combined.ShingleCount,
		},
		"band_count": h.cfg.Bands,
	})
}

// handleHealth is GET /health.
func (h *APIHandler) handleHealth(c *gin.Context) {
	templatesIndexed, err := h.store.CountTemplates(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	body := gin.H{
		"templates_indexed": templatesIndexed,
		"band_rows":         h.cfg.Bands,
		"version":           gin.H{"sketch_format": models.FormatVersion, "pattern_table": h.cfg.Patterns.Version},
	}
	if h.backfillRunner != nil {
		body["backfill"] = h.backfillRunner.Progress()
	}
	c.JSON(http.StatusOK, body)
}

func explanationForVerdict(v models.RescanVerdict) string {
	switch v {
	case models.RescanResolved:
		return "the alleged copy has drifted enough from its baseline and no longer resembles the original"
	case models.RescanInsufficientChanges:
		return "the alleged copy has barely changed since the baseline was captured"
	case models.RescanStillSimilar:
		return "the alleged copy has changed but still resembles the original closely"
	default:
		return "no case baseline exists for this case_id"
	}
}

