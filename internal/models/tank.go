package models

import "time"

// Tank is a gauged storage tank. It owns its calibration table, operations and reports.
type Tank struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Code        string    `gorm:"size:32;not null;uniqueIndex" json:"code"`
	Name        string    `gorm:"size:128;not null" json:"name"`
	MaxHeightMm float64   `gorm:"default:0" json:"max_height_mm"` // 0 = no physical bound configured
	IsActive    bool      `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Tank) TableName() string {
	return "tanks"
}

// CalibrationRow is one height→volume point of a tank strapping table.
type CalibrationRow struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	TankID    uint      `gorm:"not null;uniqueIndex:idx_calibration_tank_height" json:"tank_id"`
	HeightMm  float64   `gorm:"not null;uniqueIndex:idx_calibration_tank_height" json:"height_mm"`
	VolumeM3  float64   `gorm:"not null" json:"volume_m3"`
	Fcv       *float64  `json:"fcv,omitempty"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (CalibrationRow) TableName() string {
	return "calibration_rows"
}
