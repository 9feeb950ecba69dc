package volumetric

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	VolumePlaces = 4 // m³ outputs
	FactorPlaces = 6 // CTL, FCV, FE, Y and lookup results
)

// Round rounds half away from zero to the given number of decimal places.
// NaN and ±Inf have no decimal form and round to 0.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// RoundVolume 体积保留 4 位小数
func RoundVolume(v float64) float64 {
	return Round(v, VolumePlaces)
}

// RoundFactor 系数保留 6 位小数
func RoundFactor(v float64) float64 {
	return Round(v, FactorPlaces)
}
