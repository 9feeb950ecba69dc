package business

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tankcontrol/internal/models"
	"tankcontrol/pkg/volumetric"
)

func f64(v float64) *float64 { return &v }

func str(v string) *string { return &v }

// linearTable maps 100 mm to 1 m3 between 0 and 1000 mm.
func linearTable(t *testing.T) volumetric.CalibrationTable {
	t.Helper()
	table, err := CalibrationFromRows([]models.CalibrationRow{
		{HeightMm: 0, VolumeM3: 0},
		{HeightMm: 1000, VolumeM3: 10},
	})
	require.NoError(t, err)
	return table
}

func gaugingTable(t *testing.T) volumetric.CalibrationTable {
	t.Helper()
	table, err := CalibrationFromRows([]models.CalibrationRow{
		{HeightMm: 0, VolumeM3: 0},
		{HeightMm: 500, VolumeM3: 10},
		{HeightMm: 600, VolumeM3: 12},
	})
	require.NoError(t, err)
	return table
}

func TestCorrectOperationSignConvention(t *testing.T) {
	table := gaugingTable(t)
	opts := volumetric.DefaultThermalOptions()

	t.Run("Stock Variation Is Signed", func(t *testing.T) {
		up, _ := CorrectOperation(models.TankOperation{Type: models.OperationStockVariation, InitialLevelMm: 500, FinalLevelMm: 600}, table, opts)
		assert.Equal(t, 10.0, up.InitialVolumeM3)
		assert.Equal(t, 12.0, up.FinalVolumeM3)
		assert.Equal(t, 2.0, up.VolumeM3)

		down, _ := CorrectOperation(models.TankOperation{Type: models.OperationProduction, InitialLevelMm: 600, FinalLevelMm: 500}, table, opts)
		assert.Equal(t, -2.0, down.VolumeM3)
	})

	t.Run("Transfer And Drainage Are Absolute", func(t *testing.T) {
		for _, typ := range []models.OperationType{models.OperationTransfer, models.OperationDrainage} {
			op, _ := CorrectOperation(models.TankOperation{Type: typ, InitialLevelMm: 600, FinalLevelMm: 500}, table, opts)
			assert.Equal(t, 2.0, op.VolumeM3, string(typ))

			op, _ = CorrectOperation(models.TankOperation{Type: typ, InitialLevelMm: 500, FinalLevelMm: 600}, table, opts)
			assert.Equal(t, 2.0, op.VolumeM3, string(typ))
		}
	})
}

func TestCorrectOperationByType(t *testing.T) {
	table := gaugingTable(t)
	opts := volumetric.DefaultThermalOptions()

	t.Run("Transfer Uses Manual Factors", func(t *testing.T) {
		op, notes := CorrectOperation(models.TankOperation{
			Type:           models.OperationTransfer,
			InitialLevelMm: 600,
			FinalLevelMm:   500,
			TempFluidC:     f64(30),
			BswPercent:     f64(10),
			Fcv:            f64(0.99),
			Fe:             f64(0.98),
		}, table, opts)

		y := 1 + 10*0.000012
		assert.False(t, notes.ThermalFallback)
		assert.InDelta(t, y, op.Ctl, 1e-12)
		assert.Equal(t, 0.2, op.WaterVolumeM3)
		assert.InDelta(t, volumetric.RoundVolume(1.8*y*0.99*0.98), op.VolumeCorrectedM3, 1e-12)
		assert.Equal(t, op.VolumeCorrectedM3, op.OilVolumeM3)
		assert.Equal(t, 0.99, *op.Fcv)
		assert.Equal(t, 0.98, *op.Fe)
	})

	t.Run("Transfer Falls Back To Ambient Then Twenty", func(t *testing.T) {
		op, _ := CorrectOperation(models.TankOperation{
			Type: models.OperationTransfer, InitialLevelMm: 500, FinalLevelMm: 600, TempAmbientC: f64(10),
		}, table, opts)
		assert.InDelta(t, 1-10*0.000012, op.Ctl, 1e-12)
		assert.Equal(t, 1.0, *op.Fcv)
		assert.Equal(t, 1.0, *op.Fe)

		op, _ = CorrectOperation(models.TankOperation{Type: models.OperationTransfer, InitialLevelMm: 500, FinalLevelMm: 600}, table, opts)
		assert.Equal(t, 1.0, op.Ctl)
		assert.Equal(t, 2.0, op.VolumeCorrectedM3)
	})

	t.Run("Drainage Is Pure Water", func(t *testing.T) {
		op, _ := CorrectOperation(models.TankOperation{
			Type: models.OperationDrainage, InitialLevelMm: 600, FinalLevelMm: 500, BswPercent: f64(40),
		}, table, opts)
		assert.Equal(t, 2.0, op.VolumeCorrectedM3)
		assert.Equal(t, 2.0, op.WaterVolumeM3)
		assert.Equal(t, 0.0, op.OilVolumeM3)
		assert.Equal(t, 1.0, op.Ctl)
	})

	t.Run("Production At Reference Temperature", func(t *testing.T) {
		op, notes := CorrectOperation(models.TankOperation{
			Type:                models.OperationProduction,
			InitialLevelMm:      500,
			FinalLevelMm:        600,
			TempFluidC:          f64(20),
			DensityObservedGcm3: f64(0.85),
			BswPercent:          f64(25),
		}, table, opts)
		assert.False(t, notes.ThermalFallback)
		assert.InDelta(t, 1.0, op.Ctl, 1e-6)
		assert.InDelta(t, 2.0, op.VolumeCorrectedM3, 1e-4)
		assert.InDelta(t, 0.5, op.WaterVolumeM3, 1e-4)
		assert.InDelta(t, 1.5, op.OilVolumeM3, 1e-4)
		assert.False(t, op.NeedsReview)
	})

	t.Run("Production Without Temperature Is Uncorrected", func(t *testing.T) {
		op, notes := CorrectOperation(models.TankOperation{
			Type: models.OperationProduction, InitialLevelMm: 500, FinalLevelMm: 600, DensityObservedGcm3: f64(0.85),
		}, table, opts)
		assert.False(t, notes.ThermalFallback)
		assert.Equal(t, 1.0, op.Ctl)
		assert.Equal(t, 2.0, op.VolumeCorrectedM3)
	})

	t.Run("Production Falls Back On Bad Density", func(t *testing.T) {
		op, notes := CorrectOperation(models.TankOperation{
			Type:                models.OperationProduction,
			InitialLevelMm:      500,
			FinalLevelMm:        600,
			TempFluidC:          f64(35),
			DensityObservedGcm3: f64(0),
		}, table, opts)
		assert.True(t, notes.ThermalFallback)
		assert.ErrorIs(t, notes.FallbackReason, volumetric.ErrNonPositiveDensity)
		assert.Equal(t, 1.0, op.Ctl)
		assert.Equal(t, 2.0, op.VolumeCorrectedM3)
		assert.True(t, op.NeedsReview)
	})
}

func TestCorrectOperationEdgeCases(t *testing.T) {
	opts := volumetric.DefaultThermalOptions()

	t.Run("Empty Calibration Degrades To Zero", func(t *testing.T) {
		op, notes := CorrectOperation(models.TankOperation{Type: models.OperationProduction, InitialLevelMm: 100, FinalLevelMm: 900}, volumetric.CalibrationTable{}, opts)
		assert.True(t, notes.EmptyCalibration)
		assert.Equal(t, 0.0, op.VolumeM3)
		assert.Equal(t, 0.0, op.VolumeCorrectedM3)
	})

	t.Run("Idempotent", func(t *testing.T) {
		in := models.TankOperation{
			Type:                models.OperationProduction,
			InitialLevelMm:      123.4,
			FinalLevelMm:        567.8,
			TempFluidC:          f64(41.3),
			DensityObservedGcm3: f64(0.8712),
			BswPercent:          f64(3.5),
			StartTime:           time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC),
			EndTime:             time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC),
		}
		first, _ := CorrectOperation(in, linearTable(t), opts)
		second, _ := CorrectOperation(first, linearTable(t), opts)
		assert.Equal(t, first, second)
	})
	t.Run("Overflowing Factors Do Not Panic", func(t *testing.T) {
		var op models.TankOperation
		assert.NotPanics(t, func() {
			op, _ = CorrectOperation(models.TankOperation{
				Type:           models.OperationTransfer,
				InitialLevelMm: 900,
				FinalLevelMm:   100,
				Fcv:            f64(1e308),
				Fe:             f64(1e308),
			}, linearTable(t), opts)
		})
		assert.Zero(t, op.VolumeCorrectedM3)
	})
}
