package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"tankcontrol/internal/handlers/business"
	"tankcontrol/internal/models"
	"tankcontrol/internal/repository"
)

const dateLayout = "2006-01-02"

var lifecycle *business.ReportLifecycle

// SetLifecycle installs the engine every handler works through. Called once from main.
func SetLifecycle(l *business.ReportLifecycle) {
	lifecycle = l
}

// TankRequest 罐体创建请求
type TankRequest struct {
	Code        string  `json:"code" binding:"required"`
	Name        string  `json:"name"`
	MaxHeightMm float64 `json:"max_height_mm" binding:"min=0"`
	IsActive    *bool   `json:"is_active"`
}

// CalibrationRowRequest 一行标定数据
type CalibrationRowRequest struct {
	HeightMm float64  `json:"height_mm"`
	VolumeM3 float64  `json:"volume_m3"`
	Fcv      *float64 `json:"fcv"`
}

// CalibrationRequest replaces the whole table of a tank.
type CalibrationRequest struct {
	Rows []CalibrationRowRequest `json:"rows" binding:"required,min=1,dive"`
}

// TankOperationRequest carries the raw, uncorrected fields of an operation.
type TankOperationRequest struct {
	TankID              uint                 `json:"tank_id" binding:"required"`
	Type                models.OperationType `json:"type" binding:"required"`
	StartTime           time.Time            `json:"start_time" binding:"required"`
	EndTime             time.Time            `json:"end_time" binding:"required"`
	InitialLevelMm      float64              `json:"initial_level_mm"`
	FinalLevelMm        float64              `json:"final_level_mm"`
	TempFluidC          *float64             `json:"temp_fluid_c"`
	TempAmbientC        *float64             `json:"temp_ambient_c"`
	DensityObservedGcm3 *float64             `json:"density_observed_gcm3"`
	BswPercent          *float64             `json:"bsw_percent"`
	TransferDestination *string              `json:"transfer_destination"`
	Comments            *string              `json:"comments"`
	Fcv                 *float64             `json:"fcv"`
	Fe                  *float64             `json:"fe"`
}

// ToModel maps the request onto a TankOperation without engine-owned fields.
func (r TankOperationRequest) ToModel() models.TankOperation {
	return models.TankOperation{
		TankID:              r.TankID,
		Type:                r.Type,
		StartTime:           r.StartTime,
		EndTime:             r.EndTime,
		InitialLevelMm:      r.InitialLevelMm,
		FinalLevelMm:        r.FinalLevelMm,
		TempFluidC:          r.TempFluidC,
		TempAmbientC:        r.TempAmbientC,
		DensityObservedGcm3: r.DensityObservedGcm3,
		BswPercent:          r.BswPercent,
		TransferDestination: r.TransferDestination,
		Comments:            r.Comments,
		Fcv:                 r.Fcv,
		Fe:                  r.Fe,
	}
}

// StartReportRequest opens a bulletin explicitly.
type StartReportRequest struct {
	TankID     uint   `json:"tank_id" binding:"required"`
	ReportDate string `json:"report_date" binding:"required"`
}

// CloseReportRequest 关闭日报请求
type CloseReportRequest struct {
	OpenNext bool `json:"open_next"`
}

// CalibrationResp 标定表响应
type CalibrationResp struct {
	TankID uint                    `json:"tank_id"`
	Count  int                     `json:"count"`
	Rows   []models.CalibrationRow `json:"rows"`
}

// ReportOperationsResp lists the operations inside a report window.
type ReportOperationsResp struct {
	Report     *models.DailyProductionReport `json:"report"`
	Operations []models.TankOperation        `json:"operations"`
}

// actorFrom reads who is calling and why. Authentication happens upstream.
func actorFrom(c *gin.Context) business.Actor {
	return business.Actor{
		UserID: c.GetHeader("X-User-ID"),
		Reason: c.GetHeader("X-Audit-Reason"),
	}
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID format"})
		return 0, false
	}
	return uint(id), true
}

func parseDate(value string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, value, lifecycle.Location())
}

// respondError maps engine errors to status codes.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, business.ErrReportClosed):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, business.ErrConflict), errors.Is(err, repository.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, business.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Record not found"})
	default:
		log.WithError(err).WithField("path", c.FullPath()).Error("> request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func pageParams(c *gin.Context) (page, pageSize int) {
	page = 1
	if p := c.Query("page"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil && parsed > 0 {
			page = parsed
		}
	}

	pageSize = 10
	if ps := c.Query("page_size"); ps != "" {
		if parsed, err := strconv.Atoi(ps); err == nil && parsed > 0 && parsed <= 100 {
			pageSize = parsed
		}
	}
	return page, pageSize
}
