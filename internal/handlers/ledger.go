package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tankcontrol/internal/handlers/business"
	"tankcontrol/internal/models"
)

// ListLedgerRows returns the ledger of a tank ordered by period end, keyed by
// the lettered column names.
func ListLedgerRows(c *gin.Context) {
	tankID, ok := parseID(c, "tank_id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := lifecycle.Store().GetTank(ctx, tankID); err != nil {
		respondError(c, err)
		return
	}
	rows, err := lifecycle.Store().ListLedgerRows(ctx, tankID)
	if err != nil {
		respondError(c, err)
		return
	}
	if rows == nil {
		rows = []models.LedgerRow{}
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "total_count": len(rows)})
}

// UpdateLedgerRow applies manual cells (AB_FCV_Manual, AC_FE, BSW, comments)
// to one day and recomputes the rest of the ledger
func UpdateLedgerRow(c *gin.Context) {
	tankID, ok := parseID(c, "tank_id")
	if !ok {
		return
	}
	day, err := parseDate(c.Param("date"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
		return
	}
	var edit business.LedgerEdit
	if err := c.ShouldBindJSON(&edit); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	row, err := lifecycle.UpdateLedgerRow(c.Request.Context(), actorFrom(c), tankID, day, edit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}
