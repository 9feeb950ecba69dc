package business

import (
	"sort"

	"tankcontrol/internal/models"
	"tankcontrol/pkg/volumetric"
)

// Representative holds the non-summed inputs of a day, taken from the
// chronologically last operation of the relevant type. Nil means the op was
// absent or did not carry the value.
type Representative struct {
	TotalBswPercent     *float64 `json:"total_bsw_percent,omitempty"`
	FluidTempC          *float64 `json:"fluid_temp_c,omitempty"`
	DensityObservedGcm3 *float64 `json:"density_observed_gcm3,omitempty"`

	EmulsionBswPercent  *float64 `json:"emulsion_bsw_percent,omitempty"`
	TransferTempC       *float64 `json:"transfer_temp_c,omitempty"`
	TransferDensityGcm3 *float64 `json:"transfer_density_gcm3,omitempty"`
	Fcv                 *float64 `json:"fcv,omitempty"`
	Fe                  *float64 `json:"fe,omitempty"`
}

// DailyMetrics is the aggregate of one production day.
type DailyMetrics struct {
	OperationCount int `json:"operation_count"`

	StockVariation         float64  `json:"stock_variation"`
	DrainedVolumeM3        float64  `json:"drained_volume_m3"`
	TransferredVolumeM3    float64  `json:"transferred_volume_m3"`
	TransferWaterVolumeM3  float64  `json:"transfer_water_volume_m3"`
	TransferOilCorrectedM3 float64  `json:"transfer_oil_corrected_m3"`
	TransferDestinations   []string `json:"transfer_destinations"`
	WellProductionM3       float64  `json:"well_production_m3"`

	TotalBswPercent       float64  `json:"total_bsw_percent"`
	EmulsionBswPercent    float64  `json:"emulsion_bsw_percent"`
	TempCorrectionFactorY float64  `json:"temp_correction_factor_y"`
	Fcv                   float64  `json:"fcv"`
	Fe                    float64  `json:"fe"`
	DensityAt20cGcm3      *float64 `json:"density_at_20c_gcm3,omitempty"`

	UncorrectedOilVolumeM3 float64 `json:"uncorrected_oil_volume_m3"`
	EmulsionWaterVolumeM3  float64 `json:"emulsion_water_volume_m3"`
	CorrectedOilVolumeM3   float64 `json:"corrected_oil_volume_m3"`

	OpeningLevelMm *float64 `json:"opening_level_mm,omitempty"`
	ClosingLevelMm *float64 `json:"closing_level_mm,omitempty"`

	Representative  Representative `json:"representative"`
	ThermalFallback bool           `json:"thermal_fallback"`
}

// AggregateDay folds the corrected operations of one production day. The input
// order does not matter; operations are ordered by EndTime then ID.
func AggregateDay(ops []models.TankOperation, opts volumetric.ThermalOptions) DailyMetrics {
	sorted := sortedByEnd(ops)

	m := DailyMetrics{OperationCount: len(sorted), TransferDestinations: []string{}}
	destinations := make(map[string]struct{})

	var lastProduction, lastTransfer *models.TankOperation
	for i := range sorted {
		op := &sorted[i]
		switch {
		case op.Type == models.OperationDrainage:
			m.DrainedVolumeM3 += op.VolumeM3
		case op.Type == models.OperationTransfer:
			m.TransferredVolumeM3 += op.VolumeM3
			m.TransferWaterVolumeM3 += op.WaterVolumeM3
			m.TransferOilCorrectedM3 += op.VolumeCorrectedM3
			if op.TransferDestination != nil && *op.TransferDestination != "" {
				destinations[*op.TransferDestination] = struct{}{}
			}
			lastTransfer = op
		case op.Type.IsProduction():
			m.StockVariation += op.VolumeM3
			lastProduction = op
		}
	}

	m.StockVariation = volumetric.RoundVolume(m.StockVariation)
	m.DrainedVolumeM3 = volumetric.RoundVolume(m.DrainedVolumeM3)
	m.TransferredVolumeM3 = volumetric.RoundVolume(m.TransferredVolumeM3)
	m.TransferWaterVolumeM3 = volumetric.RoundVolume(m.TransferWaterVolumeM3)
	m.TransferOilCorrectedM3 = volumetric.RoundVolume(m.TransferOilCorrectedM3)
	m.WellProductionM3 = volumetric.RoundVolume(m.StockVariation + m.DrainedVolumeM3 + m.TransferredVolumeM3)

	for d := range destinations {
		m.TransferDestinations = append(m.TransferDestinations, d)
	}
	sort.Strings(m.TransferDestinations)

	if lastProduction != nil {
		m.Representative.TotalBswPercent = lastProduction.BswPercent
		m.Representative.DensityObservedGcm3 = lastProduction.DensityObservedGcm3
		if hasTemp(*lastProduction) {
			m.Representative.FluidTempC = ptr(operationTemp(*lastProduction, 20))
		}
	}
	if lastTransfer != nil {
		m.Representative.EmulsionBswPercent = lastTransfer.BswPercent
		m.Representative.TransferDensityGcm3 = lastTransfer.DensityObservedGcm3
		m.Representative.Fcv = lastTransfer.Fcv
		m.Representative.Fe = lastTransfer.Fe
		if hasTemp(*lastTransfer) {
			m.Representative.TransferTempC = ptr(operationTemp(*lastTransfer, 20))
		}
	}

	rep := m.Representative
	m.TotalBswPercent = valueOr(rep.TotalBswPercent, 0)
	m.EmulsionBswPercent = valueOr(rep.EmulsionBswPercent, 0)
	m.Fcv = volumetric.RoundFactor(positiveOr(rep.Fcv, 1.0))
	m.Fe = volumetric.RoundFactor(positiveOr(rep.Fe, 1.0))
	m.TempCorrectionFactorY = volumetric.ThermalExpansionY(valueOr(rep.TransferTempC, 20))

	if rep.DensityObservedGcm3 != nil && rep.FluidTempC != nil {
		if res, err := opts.Correct(*rep.DensityObservedGcm3, *rep.FluidTempC); err == nil {
			m.DensityAt20cGcm3 = ptr(res.Density20Gcm3)
		} else {
			m.ThermalFallback = true
		}
	}

	uncorrected := m.WellProductionM3 * (1 - m.TotalBswPercent/100)
	m.UncorrectedOilVolumeM3 = volumetric.RoundVolume(uncorrected)
	m.EmulsionWaterVolumeM3 = volumetric.RoundVolume(m.WellProductionM3 * m.TotalBswPercent / 100)
	m.CorrectedOilVolumeM3 = volumetric.RoundVolume(uncorrected * m.TempCorrectionFactorY * m.Fcv * m.Fe)

	if len(sorted) > 0 {
		first := sorted[0]
		for _, op := range sorted[1:] {
			if op.StartTime.Before(first.StartTime) {
				first = op
			}
		}
		m.OpeningLevelMm = ptr(first.InitialLevelMm)
		m.ClosingLevelMm = ptr(sorted[len(sorted)-1].FinalLevelMm)
	}
	return m
}

// ApplyMetrics overwrites the report's computed fields with m.
func ApplyMetrics(report *models.DailyProductionReport, m DailyMetrics) {
	report.OperationCount = m.OperationCount
	report.StockVariation = m.StockVariation
	report.DrainedVolumeM3 = m.DrainedVolumeM3
	report.TransferredVolumeM3 = m.TransferredVolumeM3
	report.TransferWaterVolumeM3 = m.TransferWaterVolumeM3
	report.TransferOilCorrectedM3 = m.TransferOilCorrectedM3
	report.TransferDestinations = append([]string{}, m.TransferDestinations...)
	report.CalculatedWellProductionM3 = m.WellProductionM3
	report.TotalBswPercent = m.TotalBswPercent
	report.EmulsionBswPercent = m.EmulsionBswPercent
	report.UncorrectedOilVolumeM3 = m.UncorrectedOilVolumeM3
	report.EmulsionWaterVolumeM3 = m.EmulsionWaterVolumeM3
	report.CorrectedOilVolumeM3 = m.CorrectedOilVolumeM3
	report.TempCorrectionFactorY = m.TempCorrectionFactorY
	report.Fcv = m.Fcv
	report.Fe = m.Fe
	report.FluidTempC = m.Representative.FluidTempC
	report.DensityObservedGcm3 = m.Representative.DensityObservedGcm3
	report.DensityAt20cGcm3 = m.DensityAt20cGcm3
	report.TransferObservedDensityGcm3 = m.Representative.TransferDensityGcm3

	if m.OpeningLevelMm != nil {
		report.OpeningLevelMm = *m.OpeningLevelMm
	}
	if m.ClosingLevelMm != nil {
		report.ClosingLevelMm = *m.ClosingLevelMm
	} else {
		report.ClosingLevelMm = report.OpeningLevelMm
	}
}

func sortedByEnd(ops []models.TankOperation) []models.TankOperation {
	sorted := make([]models.TankOperation, len(ops))
	copy(sorted, ops)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].EndTime.Equal(sorted[j].EndTime) {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].EndTime.Before(sorted[j].EndTime)
	})
	return sorted
}
