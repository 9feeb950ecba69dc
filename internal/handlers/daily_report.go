package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tankcontrol/internal/models"
	"tankcontrol/internal/repository"
)

// ListDailyReportsByTank returns a tank's reports, newest first, with pagination
func ListDailyReportsByTank(c *gin.Context) {
	tankID, ok := parseID(c, "tank_id")
	if !ok {
		return
	}
	page, pageSize := pageParams(c)

	filter := repository.ReportFilter{
		TankID: tankID,
		Offset: (page - 1) * pageSize,
		Limit:  pageSize,
	}
	switch status := models.ReportStatus(c.Query("status")); status {
	case "":
	case models.ReportDraft, models.ReportClosed:
		filter.Status = status
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be draft or closed"})
		return
	}

	reports, total, err := lifecycle.Store().ListReports(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	// Calculate pagination info
	totalPages := (total + int64(pageSize) - 1) / int64(pageSize)

	response := gin.H{
		"data": reports,
		"pagination": gin.H{
			"current_page": page,
			"page_size":    pageSize,
			"total_pages":  totalPages,
			"total_count":  total,
			"has_next":     page < int(totalPages),
			"has_prev":     page > 1,
		},
	}

	c.JSON(http.StatusOK, response)
}

// GetDailyReport returns a report by ID
func GetDailyReport(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	report, err := lifecycle.Store().GetReport(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetDailyReportOperations lists the operations whose end time falls in the report window
func GetDailyReportOperations(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	report, err := lifecycle.Store().GetReport(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	ops, err := lifecycle.Store().ListOperationsInWindow(ctx, report.TankID, report.StartDatetime, report.EndDatetime)
	if err != nil {
		respondError(c, err)
		return
	}
	if ops == nil {
		ops = []models.TankOperation{}
	}
	c.JSON(http.StatusOK, ReportOperationsResp{Report: report, Operations: ops})
}

// FindDailyReportContaining resolves ?tank_id=&timestamp= (RFC3339) to the report whose window holds it
func FindDailyReportContaining(c *gin.Context) {
	tankID, err := strconv.Atoi(c.Query("tank_id"))
	if err != nil || tankID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tank_id is required"})
		return
	}
	ts, err := time.Parse(time.RFC3339, c.Query("timestamp"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp must be RFC3339"})
		return
	}

	report, err := lifecycle.FindReportContaining(c.Request.Context(), uint(tankID), ts)
	if err != nil {
		respondError(c, err)
		return
	}
	if report == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No report contains this timestamp"})
		return
	}
	c.JSON(http.StatusOK, report)
}

// StartDailyReport opens the draft bulletin of a tank day. Returns 201 when
// created and 200 when the report already existed.
func StartDailyReport(c *gin.Context) {
	var request StartReportRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	day, err := parseDate(request.ReportDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "report_date must be YYYY-MM-DD"})
		return
	}

	report, created, err := lifecycle.StartBulletin(c.Request.Context(), actorFrom(c), request.TankID, day)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, report)
}

// RecomputeDailyReport re-aggregates a draft from its operations
func RecomputeDailyReport(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	report, err := lifecycle.RecomputeReport(c.Request.Context(), actorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// CloseDailyReport closes a draft; with open_next the next day's draft is opened
func CloseDailyReport(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var request CloseReportRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	closed, next, err := lifecycle.CloseReport(c.Request.Context(), actorFrom(c), id, request.OpenNext)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": closed, "next": next})
}
