package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	assignmentsapi "fleetdeploy/api/v1/assignments"
	authapi "fleetdeploy/api/v1/auth"
	clientsapi "fleetdeploy/api/v1/clients"
	jobsapi "fleetdeploy/api/v1/jobs"
	machinesapi "fleetdeploy/api/v1/machines"
	"fleetdeploy/api/v1/middleware"
	packagesapi "fleetdeploy/api/v1/packages"
	summaryapi "fleetdeploy/api/v1/summary"
	"fleetdeploy/internal/config"
	"fleetdeploy/internal/httpx"
	"fleetdeploy/internal/service"
)

// RegisterRoutes wires all API routes onto the engine
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cache *redis.Client, cfg *config.Config) {
	machineSvc := service.NewMachineService(db)
	jobSvc := service.NewJobService(db)
	assignmentSvc := service.NewAssignmentService(db, jobSvc)
	packageSvc := service.NewPackageService(db)
	planSvc := service.NewPlanService(db)
	summarySvc := service.NewSummaryService(db, cache)

	machinesHandler := machinesapi.NewHandler(machineSvc, assignmentSvc)
	packagesHandler := packagesapi.NewHandler(packageSvc)
	assignmentsHandler := assignmentsapi.NewHandler(assignmentSvc)
	jobsHandler := jobsapi.NewHandler(jobSvc)
	clientsHandler := clientsapi.NewHandler(machineSvc, planSvc, jobSvc)
	summaryHandler := summaryapi.NewHandler(summarySvc)

	api := r.Group("/api/v1")
	{
		api.GET("/ping", func(c *gin.Context) {
			httpx.OK(c, gin.H{"status": "ok"})
		})

		api.POST("/auth/login", authapi.LoginHandler(db, cfg))

		agent := api.Group("/agent")
		{
			agent.POST("/enroll", clientsHandler.Enroll)

			authed := agent.Group("")
			authed.Use(middleware.MachineAuth(machineSvc))
			{
				authed.GET("/plan", clientsHandler.Plan)
				authed.POST("/jobs/:id/events", clientsHandler.JobEvent)
			}
		}

		admin := api.Group("")
		admin.Use(middleware.AuthRequired())
		{
			admin.GET("/summary", summaryHandler.Get)

			admin.GET("/machines", machinesHandler.List)
			admin.GET("/machines/:id", machinesHandler.Get)
			admin.PUT("/machines/:id", machinesHandler.Update)
			admin.GET("/machines/:id/packages", machinesHandler.ListPackages)

			admin.GET("/packages", packagesHandler.List)
			admin.POST("/packages", packagesHandler.Create)
			admin.GET("/packages/:id", packagesHandler.Get)

			admin.GET("/assignments", assignmentsHandler.List)
			admin.POST("/assignments", assignmentsHandler.Set)

			admin.GET("/jobs", jobsHandler.List)
			admin.GET("/jobs/:id", jobsHandler.Get)
		}
	}
}
