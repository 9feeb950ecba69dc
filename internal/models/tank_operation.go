package models

import "time"

// OperationType 罐操作类型
type OperationType string

const (
	OperationProduction     OperationType = "production"
	OperationStockVariation OperationType = "stock_variation" // legacy name, same semantics as production
	OperationDrainage       OperationType = "drainage"
	OperationTransfer       OperationType = "transfer"
)

// Valid reports whether t is one of the known operation types.
func (t OperationType) Valid() bool {
	switch t {
	case OperationProduction, OperationStockVariation, OperationDrainage, OperationTransfer:
		return true
	}
	return false
}

// IsProduction is true for production and its legacy alias stock_variation.
func (t OperationType) IsProduction() bool {
	return t == OperationProduction || t == OperationStockVariation
}

// TankOperation is one gauged movement. The fields after Comments are owned by
// the correction engine and are recomputed before every save.
type TankOperation struct {
	ID                  uint          `gorm:"primarykey" json:"id"`
	TankID              uint          `gorm:"not null;index:idx_tank_operation_window" json:"tank_id"`
	Type                OperationType `gorm:"size:32;not null" json:"type"`
	StartTime           time.Time     `gorm:"not null" json:"start_time"`
	EndTime             time.Time     `gorm:"not null;index:idx_tank_operation_window" json:"end_time"`
	InitialLevelMm      float64       `gorm:"not null" json:"initial_level_mm"`
	FinalLevelMm        float64       `gorm:"not null" json:"final_level_mm"`
	TempFluidC          *float64      `json:"temp_fluid_c,omitempty"`
	TempAmbientC        *float64      `json:"temp_ambient_c,omitempty"`
	DensityObservedGcm3 *float64      `json:"density_observed_gcm3,omitempty"`
	BswPercent          *float64      `json:"bsw_percent,omitempty"`
	TransferDestination *string       `gorm:"size:128" json:"transfer_destination,omitempty"`
	DailyReportID       *uint         `gorm:"index" json:"daily_report_id,omitempty"`
	Comments            *string       `gorm:"type:text" json:"comments,omitempty"`

	// Fcv and Fe are operator inputs for transfers and engine output otherwise.
	Fcv *float64 `json:"fcv,omitempty"`
	Fe  *float64 `json:"fe,omitempty"`

	InitialVolumeM3   float64 `json:"initial_volume_m3"`
	FinalVolumeM3     float64 `json:"final_volume_m3"`
	VolumeM3          float64 `json:"volume_m3"`
	Ctl               float64 `json:"ctl"`
	VolumeCorrectedM3 float64 `json:"volume_corrected_m3"`
	WaterVolumeM3     float64 `json:"water_volume_m3"`
	OilVolumeM3       float64 `json:"oil_volume_m3"`
	NeedsReview       bool    `gorm:"default:false" json:"needs_review"` // thermal correction fell back to FCV=1.0

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (TankOperation) TableName() string {
	return "tank_operations"
}
