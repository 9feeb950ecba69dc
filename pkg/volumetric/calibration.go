package volumetric

import (
	"errors"
	"fmt"
	"sort"
)

// ErrCalibrationOrder is returned when calibration heights are not strictly increasing.
var ErrCalibrationOrder = errors.New("calibration heights must be strictly increasing")

// Field selects which calibrated value a lookup returns.
type Field string

const (
	FieldVolume Field = "volume"
	FieldFCV    Field = "fcv"
)

// CalibrationPoint is one row of a tank strapping table.
type CalibrationPoint struct {
	HeightMm float64
	VolumeM3 float64
	FCV      *float64
}

// CalibrationTable is a height-ordered strapping table. The zero value is an
// empty table and answers every lookup with the neutral default.
type CalibrationTable struct {
	points []CalibrationPoint
}

// NewCalibrationTable sorts the points by height and rejects duplicate heights.
func NewCalibrationTable(points []CalibrationPoint) (CalibrationTable, error) {
	sorted := make([]CalibrationPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].HeightMm < sorted[j].HeightMm })

	for i := 1; i < len(sorted); i++ {
		if sorted[i].HeightMm <= sorted[i-1].HeightMm {
			return CalibrationTable{}, fmt.Errorf("%w: duplicate height %.3f mm", ErrCalibrationOrder, sorted[i].HeightMm)
		}
	}
	return CalibrationTable{points: sorted}, nil
}

// Len returns the number of rows in the table.
func (t CalibrationTable) Len() int {
	return len(t.points)
}

// Lookup returns the calibrated value at heightMm.
//
// Below the first row the first value is returned (no extrapolation). Above the
// last row the value is linearly extrapolated from the last two rows, or clamped
// when the table has a single row. Results are rounded to 6 decimal places.
func (t CalibrationTable) Lookup(heightMm float64, field Field) float64 {
	n := len(t.points)
	if n == 0 {
		return defaultFor(field)
	}

	first := t.points[0]
	if heightMm <= first.HeightMm {
		return RoundFactor(valueOf(first, field))
	}

	last := t.points[n-1]
	if heightMm > last.HeightMm {
		if n == 1 {
			return RoundFactor(valueOf(last, field))
		}
		prev := t.points[n-2]
		slope := (valueOf(last, field) - valueOf(prev, field)) / (last.HeightMm - prev.HeightMm)
		return RoundFactor(valueOf(last, field) + (heightMm-last.HeightMm)*slope)
	}

	// first index with height >= heightMm; guaranteed in (0, n-1]
	idx := sort.Search(n, func(i int) bool { return t.points[i].HeightMm >= heightMm })
	upper := t.points[idx]
	if upper.HeightMm == heightMm {
		return RoundFactor(valueOf(upper, field))
	}
	lower := t.points[idx-1]
	ratio := (heightMm - lower.HeightMm) / (upper.HeightMm - lower.HeightMm)
	lv, uv := valueOf(lower, field), valueOf(upper, field)
	return RoundFactor(lv + ratio*(uv-lv))
}

// Volume is shorthand for Lookup(heightMm, FieldVolume).
func (t CalibrationTable) Volume(heightMm float64) float64 {
	return t.Lookup(heightMm, FieldVolume)
}

func valueOf(p CalibrationPoint, field Field) float64 {
	if field == FieldFCV {
		if p.FCV == nil {
			return 1.0
		}
		return *p.FCV
	}
	return p.VolumeM3
}

func defaultFor(field Field) float64 {
	if field == FieldFCV {
		return 1.0
	}
	return 0
}
