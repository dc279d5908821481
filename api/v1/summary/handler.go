package summary

import (
	"fleetdeploy/internal/httpx"
	"fleetdeploy/internal/service"

	"github.com/gin-gonic/gin"
)

// Handler handles the dashboard summary API
type Handler struct {
	summary *service.SummaryService
}

// NewHandler creates a new summary handler
func NewHandler(summary *service.SummaryService) *Handler {
	return &Handler{summary: summary}
}

// Get handles GET /api/v1/summary
func (h *Handler) Get(c *gin.Context) {
	sum, err := h.summary.Get(c.Request.Context())
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to compute summary", err))
		return
	}
	httpx.OK(c, sum)
}
