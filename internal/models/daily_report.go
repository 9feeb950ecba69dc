package models

import (
	"time"

	"github.com/lib/pq"
)

// ReportStatus 日报状态
type ReportStatus string

const (
	ReportDraft  ReportStatus = "draft"
	ReportClosed ReportStatus = "closed"
)

// DailyProductionReport is the consolidated bulletin of one tank for one production day.
// Exactly one exists per (tank_id, report_date); once closed it is never written again.
type DailyProductionReport struct {
	ID            uint         `gorm:"primarykey" json:"id"`
	TankID        uint         `gorm:"not null;uniqueIndex:idx_daily_report_tank_date" json:"tank_id"`
	ReportDate    time.Time    `gorm:"type:date;not null;uniqueIndex:idx_daily_report_tank_date" json:"report_date"`
	StartDatetime time.Time    `gorm:"not null" json:"start_datetime"`
	EndDatetime   time.Time    `gorm:"not null" json:"end_datetime"`
	Status        ReportStatus `gorm:"size:16;not null;default:'draft'" json:"status"`

	OpeningLevelMm float64 `json:"opening_level_mm"`
	ClosingLevelMm float64 `json:"closing_level_mm"`

	StockVariation              float64        `json:"stock_variation"`
	DrainedVolumeM3             float64        `json:"drained_volume_m3"`
	TransferredVolumeM3         float64        `json:"transferred_volume_m3"`
	TransferWaterVolumeM3       float64        `json:"transfer_water_volume_m3"`
	TransferOilCorrectedM3      float64        `json:"transfer_oil_corrected_m3"`
	TransferDestinations        pq.StringArray `gorm:"type:text[]" json:"transfer_destinations"`
	CalculatedWellProductionM3  float64        `json:"calculated_well_production_m3"`
	TotalBswPercent             float64        `json:"total_bsw_percent"`
	EmulsionBswPercent          float64        `json:"emulsion_bsw_percent"`
	UncorrectedOilVolumeM3      float64        `json:"uncorrected_oil_volume_m3"`
	EmulsionWaterVolumeM3       float64        `json:"emulsion_water_volume_m3"`
	CorrectedOilVolumeM3        float64        `json:"corrected_oil_volume_m3"`
	TempCorrectionFactorY       float64        `json:"temp_correction_factor_y"`
	Fcv                         float64        `json:"fcv"`
	Fe                          float64        `json:"fe"`
	FluidTempC                  *float64       `json:"fluid_temp_c,omitempty"`
	DensityObservedGcm3         *float64       `json:"density_observed_gcm3,omitempty"`
	DensityAt20cGcm3            *float64       `json:"density_at_20c_gcm3,omitempty"`
	TransferObservedDensityGcm3 *float64       `json:"transfer_observed_density_gcm3,omitempty"`
	OperationCount              int            `json:"operation_count"`

	ClosedAt  *time.Time `json:"closed_at,omitempty"`
	ClosedBy  *string    `gorm:"size:64" json:"closed_by,omitempty"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

func (DailyProductionReport) TableName() string {
	return "daily_production_reports"
}

// IsClosed reports whether the bulletin reached its terminal state.
func (r *DailyProductionReport) IsClosed() bool {
	return r != nil && r.Status == ReportClosed
}

// Contains reports whether ts falls inside the report's production-day window.
func (r *DailyProductionReport) Contains(ts time.Time) bool {
	return !ts.Before(r.StartDatetime) && !ts.After(r.EndDatetime)
}
