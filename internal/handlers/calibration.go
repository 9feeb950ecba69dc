package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tankcontrol/internal/models"
)

// GetCalibration returns the calibration table of a tank ordered by height
func GetCalibration(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if _, err := lifecycle.Store().GetTank(ctx, id); err != nil {
		respondError(c, err)
		return
	}
	rows, err := lifecycle.Store().ListCalibration(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, CalibrationResp{TankID: id, Count: len(rows), Rows: rows})
}

// ReplaceCalibration swaps the whole calibration table of a tank. Draft
// reports and the ledger are recomputed against the new table.
func ReplaceCalibration(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var request CalibrationRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows := make([]models.CalibrationRow, len(request.Rows))
	for i, r := range request.Rows {
		rows[i] = models.CalibrationRow{HeightMm: r.HeightMm, VolumeM3: r.VolumeM3, Fcv: r.Fcv}
	}
	stored, err := lifecycle.ReplaceCalibration(c.Request.Context(), actorFrom(c), id, rows)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, CalibrationResp{TankID: id, Count: len(stored), Rows: stored})
}
