package business

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tankcontrol/internal/models"
	"tankcontrol/pkg/volumetric"
)

func ledgerDay(day int, in models.LedgerInputs) models.LedgerRow {
	start := time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC)
	return models.LedgerRow{
		TankID:      1,
		Date:        start,
		TankCode:    "TQ-01",
		PeriodStart: start,
		PeriodEnd:   start.Add(24 * time.Hour),
		Inputs:      in,
	}
}

func sampleLedger() []models.LedgerRow {
	return []models.LedgerRow{
		ledgerDay(1, models.LedgerInputs{
			InitialLevelMm: f64(100), FinalLevelMm: f64(300),
			DrainedM3: 0.5, TransferredM3: 1, InitialStockM3: f64(10),
			TotalBswPct: f64(10), EmulsionBswPct: f64(5),
		}),
		ledgerDay(2, models.LedgerInputs{FinalLevelMm: f64(500)}),
		ledgerDay(3, models.LedgerInputs{FinalLevelMm: f64(450), TransferredM3: 0.2}),
	}
}

func TestCalculateLedgerRowFirstRow(t *testing.T) {
	rows := sampleLedger()
	row := CalculateLedgerRow(rows[0], nil, linearTable(t), volumetric.DefaultThermalOptions())

	assert.Equal(t, 24.0, row.PeriodHours)
	assert.Equal(t, 100.0, row.InitialLevelMm)
	assert.Equal(t, 300.0, row.FinalLevelMm)
	assert.Equal(t, 1.0, row.InitialVolumeM3)
	assert.Equal(t, 3.0, row.FinalVolumeM3)
	assert.Equal(t, 2.0, row.GrossDiffM3)
	assert.Equal(t, 2.0, row.Volume24hM3)
	assert.Equal(t, 10.0, row.OpeningStockM3)
	assert.Equal(t, 10.5, row.ClosingStockM3)
	assert.Equal(t, 3.5, row.WellProductionM3)
	assert.Equal(t, 0.35, row.WaterVolumeM3)
	assert.Equal(t, 3.15, row.UncorrectedOilM3)
	assert.Equal(t, 0.05, row.EmulsionWaterM3)
	assert.Equal(t, 0.95, row.TransferredOilM3)
	assert.Equal(t, 20.0, row.FluidTempC)
	assert.Equal(t, 1.0, row.FactorY)
	assert.Nil(t, row.Density20Gcm3)
	assert.Equal(t, models.FcvSourceComputed, row.FcvSource)
	assert.Equal(t, 1.0, row.Fcv)
	assert.Equal(t, 1.0, row.Fe)
	assert.Equal(t, 3.15, row.CorrectedOilM3)
	assert.Equal(t, 0.95, row.TransferredOilCorrectedM3)
	assert.Equal(t, 3.15, row.AccumulatedCorrectedOilM3)
	assert.False(t, row.NeedsReview)
}

func TestCalculateLedgerRowCarryForward(t *testing.T) {
	table := linearTable(t)
	opts := volumetric.DefaultThermalOptions()
	rows := sampleLedger()

	first := CalculateLedgerRow(rows[0], nil, table, opts)
	snapshot := first
	second := CalculateLedgerRow(rows[1], &first, table, opts)

	assert.Equal(t, snapshot, first, "previous row must not be modified")
	assert.Equal(t, first.FinalLevelMm, second.InitialLevelMm)
	assert.Equal(t, first.ClosingStockM3, second.OpeningStockM3)
	assert.Equal(t, 12.5, second.ClosingStockM3)
	assert.Equal(t, 10.0, second.TotalBswPct)
	assert.Equal(t, 5.0, second.EmulsionBswPct)
	assert.Equal(t, 1.8, second.CorrectedOilM3)
	assert.Equal(t, 4.95, second.AccumulatedCorrectedOilM3)

	t.Run("Blank Final Level Keeps Initial", func(t *testing.T) {
		row := CalculateLedgerRow(ledgerDay(4, models.LedgerInputs{}), &second, table, opts)
		assert.Equal(t, 500.0, row.InitialLevelMm)
		assert.Equal(t, 500.0, row.FinalLevelMm)
		assert.Equal(t, 0.0, row.GrossDiffM3)
		assert.Equal(t, second.ClosingStockM3, row.ClosingStockM3)
	})
}

func TestCalculateLedgerRowFcvSource(t *testing.T) {
	table := linearTable(t)
	opts := volumetric.DefaultThermalOptions()
	rows := sampleLedger()
	first := CalculateLedgerRow(rows[0], nil, table, opts)

	t.Run("Manual Overrides Computed", func(t *testing.T) {
		in := rows[1]
		in.Inputs.FcvManual = f64(0.99)
		in.Inputs.DensityObservedGcm3 = f64(0.87)
		in.Inputs.FluidTempC = f64(40)

		row := CalculateLedgerRow(in, &first, table, opts)
		assert.Equal(t, models.FcvSourceManual, row.FcvSource)
		assert.Equal(t, 0.99, row.Fcv)
		assert.NotNil(t, row.Density20Gcm3)
		assert.Equal(t, volumetric.RoundVolume(1.8*row.FactorY*0.99), row.CorrectedOilM3)
	})

	t.Run("Computed From Density", func(t *testing.T) {
		in := rows[1]
		in.Inputs.DensityObservedGcm3 = f64(0.85)
		in.Inputs.FluidTempC = f64(20)

		row := CalculateLedgerRow(in, &first, table, opts)
		assert.Equal(t, models.FcvSourceComputed, row.FcvSource)
		assert.InDelta(t, 1.0, row.Fcv, 1e-6)
		if assert.NotNil(t, row.Density20Gcm3) {
			assert.InDelta(t, 0.85, *row.Density20Gcm3, 1e-6)
		}
	})

	t.Run("Bad Density Falls Back And Flags", func(t *testing.T) {
		in := rows[1]
		in.Inputs.DensityObservedGcm3 = f64(0)

		row := CalculateLedgerRow(in, &first, table, opts)
		assert.Equal(t, 1.0, row.Fcv)
		assert.True(t, row.NeedsReview)
		assert.Nil(t, row.Density20Gcm3)
	})

	t.Run("Source Helpers", func(t *testing.T) {
		assert.Equal(t, models.FcvSourceComputed, FcvSourceFor(models.LedgerInputs{FcvManual: f64(0)}).Kind())
		fcv, fallback := ManualFcv(0.9876543).Resolve(nil, volumetric.ErrNoConvergence)
		assert.Equal(t, 0.987654, fcv)
		assert.False(t, fallback)
		fcv, fallback = ComputedFcv().Resolve(nil, nil)
		assert.Equal(t, 1.0, fcv)
		assert.False(t, fallback)
	})
}

func TestRecalculateLedger(t *testing.T) {
	table := linearTable(t)
	opts := volumetric.DefaultThermalOptions()

	base, changed := RecalculateLedger(sampleLedger(), 0, table, opts)
	require.Equal(t, []int{0, 1, 2}, changed)
	for i := 1; i < len(base); i++ {
		assert.Equal(t, base[i-1].ClosingStockM3, base[i].OpeningStockM3)
		assert.Equal(t, base[i-1].FinalLevelMm, base[i].InitialLevelMm)
	}

	t.Run("Unchanged Inputs Change Nothing", func(t *testing.T) {
		again, changed := RecalculateLedger(base, 0, table, opts)
		assert.Empty(t, changed)
		assert.Equal(t, base, again)
	})

	t.Run("Edit Propagates Forward Only", func(t *testing.T) {
		edited := append([]models.LedgerRow(nil), base...)
		edited[1].Inputs.DrainedM3 = 0.3

		out, changed := RecalculateLedger(edited, 1, table, opts)
		assert.Equal(t, []int{1, 2}, changed)
		assert.Equal(t, base[0], out[0])
		assert.InDelta(t, base[1].ClosingStockM3-0.3, out[1].ClosingStockM3, 1e-9)
		assert.Equal(t, out[1].ClosingStockM3, out[2].OpeningStockM3)
	})

	t.Run("Comment Edit Touches One Row", func(t *testing.T) {
		edited := append([]models.LedgerRow(nil), base...)
		edited[1].Inputs.Comments = str("gauge replaced")

		out, changed := RecalculateLedger(edited, 1, table, opts)
		assert.Equal(t, []int{1}, changed)
		assert.Equal(t, "gauge replaced", out[1].Comments)
		assert.Equal(t, base[2], out[2])
	})
}

func TestLedgerInputsFromMetrics(t *testing.T) {
	m := DailyMetrics{
		DrainedVolumeM3:     1.5,
		TransferredVolumeM3: 2,
		OpeningLevelMm:      f64(100),
		ClosingLevelMm:      f64(250),
		Representative:      Representative{TotalBswPercent: f64(12)},
	}
	existing := &models.LedgerInputs{
		FcvManual:      f64(0.97),
		Comments:       str("ok"),
		TotalBswPct:    f64(3),
		EmulsionBswPct: f64(4),
		Fe:             f64(0.99),
	}

	in := LedgerInputsFromMetrics(m, existing)
	assert.Equal(t, 100.0, *in.InitialLevelMm)
	assert.Equal(t, 250.0, *in.FinalLevelMm)
	assert.Equal(t, 1.5, in.DrainedM3)
	assert.Equal(t, 12.0, *in.TotalBswPct)
	assert.Equal(t, 4.0, *in.EmulsionBswPct)
	assert.Equal(t, 0.97, *in.FcvManual)
	assert.Equal(t, 0.99, *in.Fe)
	assert.Equal(t, "ok", *in.Comments)

	assert.Nil(t, LedgerInputsFromMetrics(DailyMetrics{}, nil).FcvManual)
}
