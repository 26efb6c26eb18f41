package handlers

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter wires every /api/v1 route.
func NewRouter(jobs *JobHandler, bulk *BulkHandler) *gin.Engine {
	r := gin.Default()
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true // the dashboard is served from another origin
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(config))

	api := r.Group("/api/v1")
	{
		api.GET("/health", HealthCheck)

		// Job Routes
		api.POST("/jobs/extract", jobs.ParseJob)
		api.POST("/jobs", jobs.CreateJob)
		api.GET("/jobs", jobs.ListJobs)
		api.GET("/jobs/:id", jobs.GetJob)
		api.GET("/jobs/:id/events", jobs.GetJobEvents)
		api.PATCH("/jobs/:id/status", jobs.UpdateStatus)
		api.PATCH("/jobs/:id/apply-url", jobs.UpdateApplyURL)

		// Bulk Routes
		api.POST("/bulk/preview", bulk.Preview)
		api.POST("/bulk/approve", bulk.Approve)
		api.POST("/bulk/submit", bulk.Submit)
	}
	return r
}
