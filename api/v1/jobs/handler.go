package jobs

import (
	"errors"
	"strconv"

	"fleetdeploy/internal/httpx"
	"fleetdeploy/internal/service"

	"github.com/gin-gonic/gin"
)

// ListRequest represents list jobs request
type ListRequest struct {
	MachineID int    `form:"machine_id"`
	Status    string `form:"status"`
	Page      int    `form:"page"`
	PageSize  int    `form:"pageSize"`
}

// Handler handles jobs API
type Handler struct {
	jobs *service.JobService
}

// NewHandler creates a new jobs handler
func NewHandler(jobs *service.JobService) *Handler {
	return &Handler{jobs: jobs}
}

// List handles GET /api/v1/jobs
func (h *Handler) List(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	items, total, err := h.jobs.List(service.ListFilter{
		MachineID: req.MachineID,
		Status:    req.Status,
		Page:      req.Page,
		PageSize:  req.PageSize,
	})
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to fetch jobs", err))
		return
	}

	page := req.Page
	if page < 1 {
		page = 1
	}
	pageSize := req.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	httpx.OKItems(c, items, total, page, pageSize)
}

// Get handles GET /api/v1/jobs/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid job id"))
		return
	}

	job, err := h.jobs.Get(id)
	if err != nil {
		if errors.Is(err, service.ErrJobNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("job not found"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to fetch job", err))
		return
	}
	httpx.OK(c, job)
}
