package clients

import (
	"errors"
	"strconv"

	"fleetdeploy/api/v1/middleware"
	"fleetdeploy/internal/httpx"
	"fleetdeploy/internal/protocol"
	"fleetdeploy/internal/service"

	"github.com/gin-gonic/gin"
)

// Handler handles the agent-facing API
type Handler struct {
	machines *service.MachineService
	plans    *service.PlanService
	jobs     *service.JobService
}

// NewHandler creates a new agent API handler
func NewHandler(machines *service.MachineService, plans *service.PlanService, jobs *service.JobService) *Handler {
	return &Handler{machines: machines, plans: plans, jobs: jobs}
}

// Enroll handles POST /api/v1/agent/enroll
func (h *Handler) Enroll(c *gin.Context) {
	var req protocol.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	machine, err := h.machines.Enroll(req)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to enroll machine", err))
		return
	}

	httpx.OK(c, protocol.EnrollResponse{
		MachineID:  machine.ID,
		Credential: machine.Credential,
	})
}

// Plan handles GET /api/v1/agent/plan
func (h *Handler) Plan(c *gin.Context) {
	machine := middleware.MachineFromContext(c)
	if machine == nil {
		httpx.FailErr(c, httpx.ErrUnauthorized("missing machine identity"))
		return
	}

	entries, err := h.plans.ComputePlan(machine.ID)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to compute plan", err))
		return
	}

	httpx.OK(c, protocol.PlanResponse{Entries: entries})
}

// JobEvent handles POST /api/v1/agent/jobs/:id/events
func (h *Handler) JobEvent(c *gin.Context) {
	machine := middleware.MachineFromContext(c)
	if machine == nil {
		httpx.FailErr(c, httpx.ErrUnauthorized("missing machine identity"))
		return
	}

	jobID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid job id"))
		return
	}

	var ev protocol.JobEvent
	if err := c.ShouldBindJSON(&ev); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	job, err := h.jobs.RecordEvent(jobID, machine.ID, ev)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobNotFound):
			httpx.FailErr(c, httpx.ErrNotFound("job not found"))
		case errors.Is(err, service.ErrWrongMachine):
			httpx.FailErr(c, httpx.ErrForbidden("job belongs to another machine"))
		case errors.Is(err, service.ErrJobTerminal):
			httpx.FailErr(c, httpx.ErrStateConflict("job already finished"))
		case errors.Is(err, service.ErrInvalidPhase):
			httpx.FailErr(c, httpx.ErrParamInvalid("phase must be start or completed"))
		default:
			httpx.FailErr(c, httpx.ErrDatabaseError("failed to record job event", err))
		}
		return
	}

	httpx.OK(c, job)
}
