package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/templateguard/simengine/internal/analyzer"
	"github.com/templateguard/simengine/internal/fingerprint"
	"github.com/templateguard/simengine/internal/indexing"
	"github.com/templateguard/simengine/pkg/models"
)

// errNoBaseline marks the "no case baseline exists" branch of the rescan
// decision tree. It never reaches writeError: the caller translates it to a
// 200 response carrying models.RescanNoBaseline, since a missing baseline
// is a valid rescan outcome, not a request error.
var errNoBaseline = errors.New("no case baseline for this case_id")

// handleCreateCase is POST /cases { case_id, original_template_id, alleged_copy_url }.
// It captures the alleged copy's current fingerprint as the case's immutable
// baseline; every future rescan measures drift against this snapshot.
func (h *APIHandler) handleCreateCase(c *gin.Context) {
	var req struct {
		CaseID             string `json:"case_id" binding:"required"`
		OriginalTemplateID string `json:"original_template_id" binding:"required"`
		AllegedCopyURL     string `json:"alleged_copy_url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()
	original, err := h.store.GetTemplateSketches(ctx, req.OriginalTemplateID)
	if err != nil {
		writeError(c, err)
		return
	}

	fp, err := h.engine.FingerprintPage(ctx, req.AllegedCopyURL)
	if err != nil {
		writeError(c, err)
		return
	}

	similarity, err := fingerprint.EstimateJaccard(original.Combined, fp.Combined)
	if err != nil {
		writeError(c, err)
		return
	}

	baseline := models.CaseBaseline{
		CaseID:              req.CaseID,
		OriginalTemplateID:  req.OriginalTemplateID,
		AllegedCopyURL:      fp.URL,
		AllegedCopyBaseline: fp.Combined,
		BaselineSimilarity:  similarity,
		CapturedAt:          time.Now(),
	}
	if err := h.store.PutCaseBaseline(ctx, baseline); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"case_id":             baseline.CaseID,
		"baseline_similarity": baseline.BaselineSimilarity,
		"captured_at":         baseline.CapturedAt,
	})
}

// handleListCaseRescans is GET /cases/:id/rescans.
func (h *APIHandler) handleListCaseRescans(c *gin.Context) {
	caseID := c.Param("id")
	records, err := h.store.ListRescans(c.Request.Context(), caseID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"case_id": caseID, "rescans": records})
}

// rescanCase runs the drift decision tree for one case and appends
// the resulting record. Returns errNoBaseline, unwrapped, when the case has
// no captured baseline yet.
func (h *APIHandler) rescanCase(ctx context.Context, caseID string) (models.RescanRecord, error) {
	baseline, err := h.store.GetCaseBaseline(ctx, caseID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.RescanRecord{}, errNoBaseline
		}
		return models.RescanRecord{}, err
	}

	thresholds := analyzer.DriftThresholds{
		ResolvedSimilarity:   h.cfg.DriftResolvedSimilarity,
		ResolvedMinimumDrift: h.cfg.DriftResolvedMinimumDrift,
		InsufficientMax:      h.cfg.DriftInsufficientMax,
	}
	record, err := indexing.Rescan(ctx, h.engine, h.store, thresholds, baseline)
	if err != nil {
		return models.RescanRecord{}, err
	}
	if err := h.store.AppendRescan(ctx, record); err != nil {
		return models.RescanRecord{}, err
	}

	if h.wsHub != nil {
		if payload, err := json.Marshal(gin.H{
			"type":    "rescan",
			"case_id": caseID,
			"verdict": record.Verdict,
			"drift":   record.DriftFromBaseline,
		}); err == nil {
			h.wsHub.Broadcast(payload)
		}
	}

	return record, nil
}
