package routes

import (
	"github.com/gin-gonic/gin"

	"tankcontrol/internal/handlers"
)

// SetupLedgerRoutes exposes the per-tank consolidated ledger
func SetupLedgerRoutes(r *gin.Engine) {
	ledger := r.Group("/ledger")
	ledger.Use(writeLimiter)
	{
		ledger.GET("/:tank_id", handlers.ListLedgerRows)
		ledger.PUT("/:tank_id/:date", handlers.UpdateLedgerRow)
	}
}
