package packages

import (
	"errors"
	"strconv"

	"fleetdeploy/internal/httpx"
	"fleetdeploy/internal/service"

	"github.com/gin-gonic/gin"
)

// Handler handles packages API
type Handler struct {
	packages *service.PackageService
}

// NewHandler creates a new packages handler
func NewHandler(packages *service.PackageService) *Handler {
	return &Handler{packages: packages}
}

// List handles GET /api/v1/packages
func (h *Handler) List(c *gin.Context) {
	items, err := h.packages.List()
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to fetch packages", err))
		return
	}
	httpx.OK(c, items)
}

// Get handles GET /api/v1/packages/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid("invalid package id"))
		return
	}

	pkg, err := h.packages.Get(id)
	if err != nil {
		if errors.Is(err, service.ErrPackageNotFound) {
			httpx.FailErr(c, httpx.ErrNotFound("package not found"))
			return
		}
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to fetch package", err))
		return
	}
	httpx.OK(c, pkg)
}

// Create handles POST /api/v1/packages
func (h *Handler) Create(c *gin.Context) {
	var req service.PackageInput
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.FailErr(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	pkg, err := h.packages.Create(req)
	if err != nil {
		httpx.FailErr(c, httpx.ErrDatabaseError("failed to create package", err))
		return
	}
	httpx.OK(c, pkg)
}
