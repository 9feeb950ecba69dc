package routes

import (
	"github.com/gin-gonic/gin"

	"tankcontrol/internal/handlers"
)

// SetupTankOperationRoutes sets up all routes related to gauged tank operations
func SetupTankOperationRoutes(r *gin.Engine) {
	ops := r.Group("/tank-operations")
	ops.Use(writeLimiter)
	{
		ops.GET("/:id", handlers.GetTankOperation)
		ops.POST("", handlers.CreateTankOperation)
		ops.PUT("/:id", handlers.UpdateTankOperation)
		ops.DELETE("/:id", handlers.DeleteTankOperation)
	}
}
