package volumetric

import (
	"errors"
	"fmt"
	"math"
)

// API MPMS Chapter 11.1, Group A (crude oil), atmospheric pressure.
const (
	K0 = 341.0957
	K1 = 0.0
	K2 = 0.0

	CT       = 9.0 / 5.0
	T60C     = 15.56 // 60 °F
	TBaseC   = 20.0
	deltaT   = 2 * (TBaseC - T60C)
	kgPerGcm = 1000.0

	DefaultTolerance     = 1e-9
	DefaultMaxIterations = 50
)

var (
	ErrNonPositiveDensity = errors.New("observed density must be greater than zero")
	ErrNoConvergence      = errors.New("density at 60F did not converge")
)

// ThermalOptions bounds the fixed-point solve for ρ60.
type ThermalOptions struct {
	// Tolerance is relative: iteration stops when |Δρ60| < Tolerance·ρ60.
	Tolerance     float64
	MaxIterations int
}

// DefaultThermalOptions returns the tolerance and iteration cap used when none are configured.
func DefaultThermalOptions() ThermalOptions {
	return ThermalOptions{Tolerance: DefaultTolerance, MaxIterations: DefaultMaxIterations}
}

// ThermalResult holds the density correction for one observation.
type ThermalResult struct {
	Density20Gcm3 float64 `json:"density20_gcm3"`
	FCV20         float64 `json:"fcv20"`
	Rho60Kgm3     float64 `json:"rho60_kgm3"`
	Alpha60       float64 `json:"alpha60"`
	Iterations    int     `json:"iterations"`
}

// CorrectDensity converts an observed density/temperature pair to density at
// 20 °C and the volume correction factor FCV20 = ρobs/ρ20.
func CorrectDensity(observedDensityGcm3, observedTempC float64) (ThermalResult, error) {
	return DefaultThermalOptions().Correct(observedDensityGcm3, observedTempC)
}

// Correct runs the solve with these options. Callers fall back to FCV=1.0 on error.
func (o ThermalOptions) Correct(observedDensityGcm3, observedTempC float64) (ThermalResult, error) {
	if o.Tolerance <= 0 {
		o.Tolerance = DefaultTolerance
	}
	if o.MaxIterations <= 0 {
		o.MaxIterations = DefaultMaxIterations
	}

	if !(observedDensityGcm3 > 0) || math.IsInf(observedDensityGcm3, 0) || math.IsNaN(observedTempC) {
		return ThermalResult{}, fmt.Errorf("%w: %v g/cm3", ErrNonPositiveDensity, observedDensityGcm3)
	}

	rhoObs := observedDensityGcm3 * kgPerGcm
	rho60 := rhoObs
	var alpha float64

	for i := 1; i <= o.MaxIterations; i++ {
		alpha = Alpha60(rho60)
		next := rhoObs / CTL(alpha, observedTempC)
		if math.IsNaN(next) || math.IsInf(next, 0) || next <= 0 {
			break
		}
		if math.Abs(next-rho60) < o.Tolerance*next {
			rho60 = next
			alpha = Alpha60(rho60)
			rho20 := rho60 * CTL(alpha, TBaseC)
			return ThermalResult{
				Density20Gcm3: RoundFactor(rho20 / kgPerGcm),
				FCV20:         RoundFactor(rhoObs / rho20),
				Rho60Kgm3:     RoundFactor(rho60),
				Alpha60:       alpha,
				Iterations:    i,
			}, nil
		}
		rho60 = next
	}

	return ThermalResult{}, fmt.Errorf("%w after %d iterations (rho=%v, t=%v)", ErrNoConvergence, o.MaxIterations, observedDensityGcm3, observedTempC)
}

// Alpha60 is the thermal expansion coefficient at 60 °F for a density in kg/m³.
func Alpha60(rho60Kgm3 float64) float64 {
	return (K0 + K1*rho60Kgm3 + K2*rho60Kgm3*rho60Kgm3) / (rho60Kgm3 * rho60Kgm3)
}

// CTL is the temperature correction factor exp(-x·(1+0.8x+y)).
func CTL(alpha60, tempC float64) float64 {
	x := CT * alpha60 * (tempC - TBaseC)
	y := CT * alpha60 * deltaT
	return math.Exp(-x * (1 + 0.8*x + y))
}

// ThermalExpansionY is the linear factor 1 + (T−20)·0.000012 applied to transfers.
func ThermalExpansionY(tempC float64) float64 {
	return RoundFactor(1 + (tempC-TBaseC)*0.000012)
}
