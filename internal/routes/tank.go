package routes

import (
	"github.com/gin-gonic/gin"

	"tankcontrol/internal/handlers"
)

// SetupTankRoutes sets up tank registration and calibration routes
func SetupTankRoutes(r *gin.Engine) {
	tanks := r.Group("/tanks")
	tanks.Use(writeLimiter)
	{
		tanks.GET("", handlers.ListTanks)
		tanks.GET("/:id", handlers.GetTank)
		tanks.POST("", handlers.CreateTank)
		tanks.GET("/:id/calibration", handlers.GetCalibration)
		tanks.PUT("/:id/calibration", handlers.ReplaceCalibration)
	}
}
