package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gocausal/internal/errors"
)

const (
	defaultRunsLimit = 20
	maxRunsLimit     = 100
)

// GetRun returns one recorded run with its parameters and result
func (h *EstimationHandler) GetRun(c *gin.Context) {
	rec, err := h.service.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// ListRuns returns recent runs, newest first. ?limit caps the count.
func (h *EstimationHandler) ListRuns(c *gin.Context) {
	limit := defaultRunsLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer", "code": errors.CodeInvalidInput})
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := h.service.ListRuns(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}
