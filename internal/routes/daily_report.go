package routes

import (
	"github.com/gin-gonic/gin"

	"tankcontrol/internal/handlers"
)

// SetupDailyReportRoutes sets up bulletin lifecycle routes
func SetupDailyReportRoutes(r *gin.Engine) {
	reports := r.Group("/daily-reports")
	reports.Use(writeLimiter)
	{
		reports.GET("/tank/:tank_id", handlers.ListDailyReportsByTank)
		reports.GET("/containing", handlers.FindDailyReportContaining)
		reports.GET("/:id", handlers.GetDailyReport)
		reports.GET("/:id/operations", handlers.GetDailyReportOperations)
		reports.POST("/start", handlers.StartDailyReport)
		reports.POST("/:id/recompute", handlers.RecomputeDailyReport)
		reports.POST("/:id/close", handlers.CloseDailyReport)
	}
}
