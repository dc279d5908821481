package assignments

import (
	"errors"
	"strconv"

	"fleetdeploy/internal/httpx"
	"fleetdeploy/internal/model"
	"fleetdeploy/internal/service"

	"github.com/gin-gonic/gin"
)

// SetRequest represents set desired state request
type SetRequest struct {
	MachineID    int    `json:"machine_id" binding:"required"`
	PackageID    int    `json:"package_id" binding:"required"`
	DesiredState string `json:"desired_state" binding:"required"`
}

// SetResponse carries the stored assignment and the job scheduled by the
// change, if any.
type SetResponse struct {
	Assignment *model.Assignment `json:"assignment"`
	Job        *model.Job        `json:"job,omitempty"`
}

// Handler handles assignments API
type Handler struct {
	assignments *service.AssignmentService
}

// NewHandler creates a new assignments handler
func NewHandler(assignments *service.AssignmentService) *Handler {
	return &Handler{assignments: assignments}
}

// List handles GET /api/v1/assignments
func (h *Handler) List(c *gin.Context) {
	if raw := c.Query("machine_id"); raw != "" {
		machineID, err := strconv.Atoi(raw)
		if err != nil {
			httpx.FailErr(c, httpx.ErrParamInvalid("invalid machine_id"))
			return
		}
		items, err := h.assignments.ListForMachine(machineID)
		if err != nil {
			httpx.FailErr(c, httpx.ErrDatabaseError("failed to fetch assignments", err))
			return
		}
		httpx.OK(c, items)
		return
	}

	items, err := h.assignments.List()
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to fetch assignments", err))
		return
	}
	httpx.OK(c, items)
}

// Set handles POST /api/v1/assignments
func (h *Handler) Set(c *gin.Context) {
	var req SetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	assignment, job, err := h.assignments.SetAssignment(req.MachineID, req.PackageID, req.DesiredState)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidState):
			httpx.FailErr(c, httpx.ErrParamInvalid("desired_state must be install, uninstall or hold"))
		case errors.Is(err, service.ErrMachineNotFound):
			httpx.FailErr(c, httpx.ErrNotFound("machine not found"))
		case errors.Is(err, service.ErrPackageNotFound):
			httpx.FailErr(c, httpx.ErrNotFound("package not found"))
		default:
			httpx.FailErr(c, httpx.ErrDatabaseError("failed to set assignment", err))
		}
		return
	}

	httpx.OK(c, SetResponse{Assignment: assignment, Job: job})
}
