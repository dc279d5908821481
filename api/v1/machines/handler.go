package machines

import (
	"errors"
	"strconv"

	"fleetdeploy/internal/httpx"
	"fleetdeploy/internal/service"

	"github.com/gin-gonic/gin"
)

// UpdateRequest represents update machine request
type UpdateRequest struct {
	Hostname *string  `json:"hostname"`
	Tags     []string `json:"tags"`
}

// ListPackagesRequest represents the package listing filters
type ListPackagesRequest struct {
	Platform string `form:"platform"`
	Q        string `form:"q"`
}

// Handler handles machines API
type Handler struct {
	machines    *service.MachineService
	assignments *service.AssignmentService
}

// NewHandler creates a new machines handler
func NewHandler(machines *service.MachineService, assignments *service.AssignmentService) *Handler {
	return &Handler{machines: machines, assignments: assignments}
}

// List handles GET /api/v1/machines
func (h *Handler) List(c *gin.Context) {
	items, err := h.machines.List()
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to fetch machines", err))
		return
	}
	httpx.OK(c, items)
}

// Get handles GET /api/v1/machines/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid machine id"))
		return
	}

	machine, err := h.machines.Get(id)
	if err != nil {
		if errors.Is(err, service.ErrMachineNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("machine not found"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to fetch machine", err))
		return
	}
	httpx.OK(c, machine)
}

// Update handles PUT /api/v1/machines/:id
func (h *Handler) Update(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid machine id"))
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid request body"))
		return
	}

	machine, err := h.machines.Update(id, req.Hostname, req.Tags)
	if err != nil {
		if errors.Is(err, service.ErrMachineNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("machine not found"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to update machine", err))
		return
	}
	httpx.OK(c, machine)
}

// ListPackages handles GET /api/v1/machines/:id/packages
func (h *Handler) ListPackages(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid machine id"))
		return
	}

	var req ListPackagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	if _, err := h.machines.Get(id); err != nil {
		if errors.Is(err, service.ErrMachineNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("machine not found"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to fetch machine", err))
		return
	}

	items, err := h.assignments.ListPackagesForMachine(id, req.Platform, req.Q)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to fetch packages", err))
		return
	}
	httpx.OK(c, items)
}
