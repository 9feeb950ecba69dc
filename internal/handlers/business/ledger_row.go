package business

import (
	"reflect"
	"time"

	"tankcontrol/internal/models"
	"tankcontrol/pkg/volumetric"
)

// FcvSource says where a ledger row's FCV comes from: a manually entered value
// or the thermal corrector applied to the row's density and temperature.
type FcvSource struct {
	kind  models.FcvSourceKind
	value float64
}

func ManualFcv(v float64) FcvSource {
	return FcvSource{kind: models.FcvSourceManual, value: v}
}

func ComputedFcv() FcvSource {
	return FcvSource{kind: models.FcvSourceComputed}
}

// FcvSourceFor picks Manual when the row carries a positive manual FCV.
func FcvSourceFor(in models.LedgerInputs) FcvSource {
	if in.FcvManual != nil && *in.FcvManual > 0 {
		return ManualFcv(*in.FcvManual)
	}
	return ComputedFcv()
}

func (s FcvSource) Kind() models.FcvSourceKind {
	return s.kind
}

// Resolve returns the FCV of the row. A computed FCV whose thermal correction
// fails (or whose inputs are missing) is 1.0 with fallback=true only for the
// failure case.
func (s FcvSource) Resolve(thermal *volumetric.ThermalResult, thermalErr error) (fcv float64, fallback bool) {
	if s.kind == models.FcvSourceManual {
		return volumetric.RoundFactor(s.value), false
	}
	if thermalErr != nil {
		return 1.0, true
	}
	if thermal == nil {
		return 1.0, false
	}
	return volumetric.RoundFactor(thermal.FCV20), false
}

// CalculateLedgerRow resolves every computed column of row from its raw inputs,
// the previous computed row (nil for the first row of a tank) and the tank's
// calibration table. It does not modify prev.
func CalculateLedgerRow(row models.LedgerRow, prev *models.LedgerRow, table volumetric.CalibrationTable, opts volumetric.ThermalOptions) models.LedgerRow {
	in := row.Inputs

	// E
	row.PeriodHours = 0
	if row.PeriodEnd.After(row.PeriodStart) {
		row.PeriodHours = volumetric.RoundFactor(row.PeriodEnd.Sub(row.PeriodStart).Hours())
	}

	// F, G
	switch {
	case in.InitialLevelMm != nil:
		row.InitialLevelMm = *in.InitialLevelMm
	case prev != nil:
		row.InitialLevelMm = prev.FinalLevelMm
	default:
		row.InitialLevelMm = 0
	}
	row.FinalLevelMm = valueOr(in.FinalLevelMm, row.InitialLevelMm)

	// H..K
	row.InitialVolumeM3 = volumetric.RoundVolume(table.Volume(row.InitialLevelMm))
	row.FinalVolumeM3 = volumetric.RoundVolume(table.Volume(row.FinalLevelMm))
	row.GrossDiffM3 = volumetric.RoundVolume(row.FinalVolumeM3 - row.InitialVolumeM3)
	row.Volume24hM3 = 0
	if row.PeriodHours > 0 {
		row.Volume24hM3 = volumetric.RoundVolume(row.GrossDiffM3 * 24 / row.PeriodHours)
	}

	// L..P
	row.DrainedM3 = volumetric.RoundVolume(in.DrainedM3)
	row.TransferredM3 = volumetric.RoundVolume(in.TransferredM3)
	if prev != nil {
		row.OpeningStockM3 = prev.ClosingStockM3
	} else {
		row.OpeningStockM3 = volumetric.RoundVolume(valueOr(in.InitialStockM3, 0))
	}
	row.ClosingStockM3 = volumetric.RoundVolume(row.GrossDiffM3 - row.DrainedM3 - row.TransferredM3 + row.OpeningStockM3)
	row.WellProductionM3 = volumetric.RoundVolume(row.GrossDiffM3 + row.DrainedM3 + row.TransferredM3)

	// Q..V
	row.TotalBswPct = carry(in.TotalBswPct, prev, func(p *models.LedgerRow) float64 { return p.TotalBswPct }, 0)
	row.EmulsionBswPct = carry(in.EmulsionBswPct, prev, func(p *models.LedgerRow) float64 { return p.EmulsionBswPct }, 0)
	row.WaterVolumeM3 = volumetric.RoundVolume(row.WellProductionM3 * row.TotalBswPct / 100)
	row.UncorrectedOilM3 = volumetric.RoundVolume(row.WellProductionM3 - row.WaterVolumeM3)
	row.EmulsionWaterM3 = volumetric.RoundVolume(row.TransferredM3 * row.EmulsionBswPct / 100)
	row.TransferredOilM3 = volumetric.RoundVolume(row.TransferredM3 - row.EmulsionWaterM3)

	// W..Z
	row.FluidTempC = carry(in.FluidTempC, prev, func(p *models.LedgerRow) float64 { return p.FluidTempC }, 20)
	row.DensityObservedGcm3 = in.DensityObservedGcm3
	if row.DensityObservedGcm3 == nil && prev != nil && prev.DensityObservedGcm3 != nil {
		row.DensityObservedGcm3 = ptr(*prev.DensityObservedGcm3)
	}
	row.FactorY = volumetric.ThermalExpansionY(row.FluidTempC)

	var thermal *volumetric.ThermalResult
	var thermalErr error
	row.Density20Gcm3 = nil
	if row.DensityObservedGcm3 != nil {
		res, err := opts.Correct(*row.DensityObservedGcm3, row.FluidTempC)
		if err != nil {
			thermalErr = err
		} else {
			thermal = &res
			row.Density20Gcm3 = ptr(res.Density20Gcm3)
		}
	}

	// AA..AC
	source := FcvSourceFor(in)
	row.FcvSource = source.Kind()
	fcv, fallback := source.Resolve(thermal, thermalErr)
	row.Fcv = fcv
	row.NeedsReview = fallback
	row.Fe = volumetric.RoundFactor(carry(positivePtr(in.Fe), prev, func(p *models.LedgerRow) float64 { return p.Fe }, 1.0))
	if row.Fe <= 0 {
		row.Fe = 1.0
	}

	// AD..AF
	factor := row.FactorY * row.Fcv * row.Fe
	row.CorrectedOilM3 = volumetric.RoundVolume(row.UncorrectedOilM3 * factor)
	row.TransferredOilCorrectedM3 = volumetric.RoundVolume(row.TransferredOilM3 * factor)
	row.AccumulatedCorrectedOilM3 = row.CorrectedOilM3
	if prev != nil {
		row.AccumulatedCorrectedOilM3 = volumetric.RoundVolume(prev.AccumulatedCorrectedOilM3 + row.CorrectedOilM3)
	}

	// AG
	row.Comments = ""
	if in.Comments != nil {
		row.Comments = *in.Comments
	}
	return row
}

// RecalculateLedger folds CalculateLedgerRow over rows from index from to the
// end, using rows[from-1] as the starting previous row. rows must be ordered by
// PeriodEnd. It returns the recomputed sequence and the indexes whose computed
// values differ from what was passed in; rows before from are never touched.
func RecalculateLedger(rows []models.LedgerRow, from int, table volumetric.CalibrationTable, opts volumetric.ThermalOptions) ([]models.LedgerRow, []int) {
	out := make([]models.LedgerRow, len(rows))
	copy(out, rows)
	if from < 0 {
		from = 0
	}

	var changed []int
	for i := from; i < len(out); i++ {
		var prev *models.LedgerRow
		if i > 0 {
			prev = &out[i-1]
		}
		next := CalculateLedgerRow(out[i], prev, table, opts)
		if !sameLedgerRow(out[i], next) {
			changed = append(changed, i)
		}
		out[i] = next
	}
	return out, changed
}

// LedgerInputsFromMetrics maps a day's aggregate onto the raw ledger cells.
// Cells that only a ledger edit can set (manual FCV, initial stock, comments)
// are kept from existing; BSW and FE fall back to existing when the day's
// operations do not carry them.
func LedgerInputsFromMetrics(m DailyMetrics, existing *models.LedgerInputs) models.LedgerInputs {
	in := models.LedgerInputs{
		DrainedM3:           m.DrainedVolumeM3,
		TransferredM3:       m.TransferredVolumeM3,
		TotalBswPct:         m.Representative.TotalBswPercent,
		EmulsionBswPct:      m.Representative.EmulsionBswPercent,
		FluidTempC:          m.Representative.FluidTempC,
		DensityObservedGcm3: m.Representative.DensityObservedGcm3,
		Fe:                  m.Representative.Fe,
	}
	if m.OpeningLevelMm != nil {
		in.InitialLevelMm = ptr(*m.OpeningLevelMm)
	}
	if m.ClosingLevelMm != nil {
		in.FinalLevelMm = ptr(*m.ClosingLevelMm)
	}
	if existing != nil {
		in.InitialStockM3 = existing.InitialStockM3
		in.FcvManual = existing.FcvManual
		in.Comments = existing.Comments
		// 当天操作没有给出的值沿用已有录入
		if existing.Fe != nil && in.Fe == nil {
			in.Fe = existing.Fe
		}
		if existing.TotalBswPct != nil && in.TotalBswPct == nil {
			in.TotalBswPct = existing.TotalBswPct
		}
		if existing.EmulsionBswPct != nil && in.EmulsionBswPct == nil {
			in.EmulsionBswPct = existing.EmulsionBswPct
		}
	}
	return in
}

// LedgerPosition returns the index of the row dated date, or -1.
func LedgerPosition(rows []models.LedgerRow, date time.Time) int {
	key := date.Format("2006-01-02")
	for i, r := range rows {
		if r.Date.Format("2006-01-02") == key {
			return i
		}
	}
	return -1
}

func carry(v *float64, prev *models.LedgerRow, get func(*models.LedgerRow) float64, def float64) float64 {
	if v != nil {
		return *v
	}
	if prev != nil {
		return get(prev)
	}
	return def
}

func positivePtr(p *float64) *float64 {
	if p == nil || *p <= 0 {
		return nil
	}
	return p
}

func sameLedgerRow(a, b models.LedgerRow) bool {
	a.CreatedAt, b.CreatedAt = time.Time{}, time.Time{}
	a.UpdatedAt, b.UpdatedAt = time.Time{}, time.Time{}
	return reflect.DeepEqual(a, b)
}
