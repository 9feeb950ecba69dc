package business

import (
	"math"

	"tankcontrol/internal/models"
	"tankcontrol/pkg/volumetric"
)

// CorrectionNotes reports the numeric degradations hit while correcting one operation.
type CorrectionNotes struct {
	ThermalFallback  bool
	FallbackReason   error
	EmptyCalibration bool
}

// CalibrationFromRows builds the lookup table of a tank. A malformed table
// (duplicate heights) degrades to an empty one so lookups return neutral defaults.
func CalibrationFromRows(rows []models.CalibrationRow) (volumetric.CalibrationTable, error) {
	points := make([]volumetric.CalibrationPoint, len(rows))
	for i, r := range rows {
		points[i] = volumetric.CalibrationPoint{HeightMm: r.HeightMm, VolumeM3: r.VolumeM3, FCV: r.Fcv}
	}
	return volumetric.NewCalibrationTable(points)
}

// CorrectOperation fills the engine-owned fields of op from its levels and
// measurements. It never fails: thermal problems fall back to FCV=1.0 and are
// reported in the notes.
func CorrectOperation(op models.TankOperation, table volumetric.CalibrationTable, opts volumetric.ThermalOptions) (models.TankOperation, CorrectionNotes) {
	var notes CorrectionNotes
	notes.EmptyCalibration = table.Len() == 0

	op.InitialVolumeM3 = volumetric.RoundVolume(table.Volume(op.InitialLevelMm))
	op.FinalVolumeM3 = volumetric.RoundVolume(table.Volume(op.FinalLevelMm))

	net := op.FinalVolumeM3 - op.InitialVolumeM3
	if !op.Type.IsProduction() {
		net = math.Abs(net)
	}
	op.VolumeM3 = volumetric.RoundVolume(net)

	bsw := valueOr(op.BswPercent, 0)

	switch op.Type {
	case models.OperationTransfer:
		y := volumetric.ThermalExpansionY(operationTemp(op, 20))
		fcv := volumetric.RoundFactor(positiveOr(op.Fcv, 1.0))
		fe := volumetric.RoundFactor(positiveOr(op.Fe, 1.0))

		water := op.VolumeM3 * bsw / 100
		oilUncorrected := op.VolumeM3 - water
		corrected := volumetric.RoundVolume(oilUncorrected * y * fcv * fe)

		op.Ctl = y
		op.Fcv = &fcv
		op.Fe = &fe
		op.WaterVolumeM3 = volumetric.RoundVolume(water)
		op.VolumeCorrectedM3 = corrected
		op.OilVolumeM3 = corrected

	case models.OperationDrainage:
		one, fe := 1.0, 1.0
		op.Ctl = 1.0
		op.Fcv = &one
		op.Fe = &fe
		op.VolumeCorrectedM3 = op.VolumeM3
		op.WaterVolumeM3 = op.VolumeM3
		op.OilVolumeM3 = 0

	default: // production, stock_variation
		ctl := 1.0
		if op.DensityObservedGcm3 != nil && hasTemp(op) {
			res, err := opts.Correct(*op.DensityObservedGcm3, operationTemp(op, 20))
			if err != nil {
				notes.ThermalFallback = true
				notes.FallbackReason = err
			} else {
				ctl = res.FCV20
			}
		}
		fe := 1.0
		corrected := volumetric.RoundVolume(op.VolumeM3 * ctl)

		op.Ctl = ctl
		op.Fcv = &ctl
		op.Fe = &fe
		op.VolumeCorrectedM3 = corrected
		op.WaterVolumeM3 = volumetric.RoundVolume(corrected * bsw / 100)
		op.OilVolumeM3 = volumetric.RoundVolume(corrected * (1 - bsw/100))
	}

	op.NeedsReview = notes.ThermalFallback
	return op, notes
}

func hasTemp(op models.TankOperation) bool {
	return op.TempFluidC != nil || op.TempAmbientC != nil
}

// operationTemp is fluid temperature, then ambient, then def.
func operationTemp(op models.TankOperation, def float64) float64 {
	if op.TempFluidC != nil {
		return *op.TempFluidC
	}
	if op.TempAmbientC != nil {
		return *op.TempAmbientC
	}
	return def
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func positiveOr(p *float64, def float64) float64 {
	if p == nil || *p <= 0 {
		return def
	}
	return *p
}

func ptr[T any](v T) *T {
	return &v
}
