package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/templateguard/simengine/pkg/models"
)

// writeError translates a sentinel error into one
// HTTP status/body, instead of scattering string-typed error checks across
// every handler the way a catch-all gin.H{"error": err.Error()} would.
func writeError(c *gin.Context, err error) {
	status, code := classifyError(err)
	c.JSON(status, gin.H{"error": code, "details": err.Error()})
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrFetchFailed):
		return http.StatusBadGateway, "fetch_failed"
	case errors.Is(err, models.ErrFetchTimeout), errors.Is(err, models.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, models.ErrDimensionMismatch):
		return http.StatusUnprocessableEntity, "dimension_mismatch"
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, models.ErrStorageConflict):
		return http.StatusConflict, "storage_conflict"
	case errors.Is(err, models.ErrConfigInvalid):
		return http.StatusInternalServerError, "config_invalid"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
