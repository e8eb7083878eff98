// Package convert turns raw instrument signal into per-well library concentration.
package convert

import (
	"fmt"
	"math"

	"github.com/labpool/metapool/pool/plate"
)

// StandardCurve is a qPCR standard curve: Cp = Slope·log10(conc) + Intercept.
type StandardCurve struct {
	Slope     float64
	Intercept float64
}

// DefaultCurve is the KAPA library-quant curve used on the 384-well qPCR.
var DefaultCurve = StandardCurve{Slope: -3.231, Intercept: 12.059}

// DefaultDilution is the sample dilution going into the qPCR.
const DefaultDilution = 25000.0

// QPCR converts a matrix of Cp values into nanomolar library concentration:
//
//	conc = 10^((Cp − Intercept)/Slope) × dilution / 1000
//
// Missing Cp values stay NaN.
func QPCR(cp *plate.Matrix, curve StandardCurve, dilution float64) (*plate.Matrix, error) {
	if err := cp.RequireUnit(plate.Cycles, plate.Unitless); err != nil {
		return nil, fmt.Errorf("qpcr: %w", err)
	}
	if curve.Slope == 0 || math.IsNaN(curve.Slope) || math.IsNaN(curve.Intercept) {
		return nil, fmt.Errorf("qpcr: invalid standard curve slope=%v intercept=%v", curve.Slope, curve.Intercept)
	}
	if !(dilution > 0) {
		return nil, fmt.Errorf("qpcr: dilution factor must be positive, got %v", dilution)
	}
	return cp.Map(plate.Nanomolar, func(_ plate.Well, v float64) float64 {
		return math.Pow(10, (v-curve.Intercept)/curve.Slope) * dilution / 1000
	}), nil
}

// Calibration is a linear fluorometric standard curve: signal = Slope·conc + Intercept.
// Max caps the reported concentration; Max <= 0 leaves it uncapped.
type Calibration struct {
	Slope     float64
	Intercept float64
	Max       float64
}

// DefaultCalibration matches the PicoGreen curve of the plate reader, capped at
// the top standard.
var DefaultCalibration = Calibration{Slope: 1530, Intercept: 0, Max: 60}

// Fluorometric converts blanked fluorescence into ng/µL. Results below zero,
// which arise from assay noise around the blank, clip to zero.
func Fluorometric(signal *plate.Matrix, cal Calibration) (*plate.Matrix, error) {
	if cal.Slope == 0 || math.IsNaN(cal.Slope) {
		return nil, fmt.Errorf("fluorometric: invalid calibration slope %v", cal.Slope)
	}
	return signal.Map(plate.NanogramsPerMicroliter, func(_ plate.Well, v float64) float64 {
		if math.IsNaN(v) {
			return v
		}
		c := (v - cal.Intercept) / cal.Slope
		if c < 0 {
			return 0
		}
		if cal.Max > 0 && c > cal.Max {
			return cal.Max
		}
		return c
	}), nil
}

// DefaultLibrarySize is the mean library fragment length in bp.
const DefaultLibrarySize = 400.0

// averageBasePairMass is the mean mass of one base pair in g/mol.
const averageBasePairMass = 660.0

// MassToMolar converts ng/µL into nM for libraries of the given mean size (bp).
func MassToMolar(conc *plate.Matrix, librarySize float64) (*plate.Matrix, error) {
	if err := conc.RequireUnit(plate.NanogramsPerMicroliter, plate.Unitless); err != nil {
		return nil, fmt.Errorf("mass to molar: %w", err)
	}
	if !(librarySize > 0) {
		return nil, fmt.Errorf("mass to molar: library size must be positive, got %v", librarySize)
	}
	return conc.Map(plate.Nanomolar, func(_ plate.Well, v float64) float64 {
		return v / (averageBasePairMass * librarySize) * 1e6
	}), nil
}
