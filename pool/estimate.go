package pool

import (
	"fmt"
	"math"

	"github.com/labpool/metapool/pool/plate"
)

// Summary describes the realized pool.
type Summary struct {
	// Concentration is the volume-weighted mean concentration, in the unit of
	// the input concentrations (nM for qPCR). NaN when Volume is zero.
	Concentration float64
	// Volume is the total pooled volume in nL.
	Volume float64
}

// EstimatePool estimates the concentration and volume of a pool built from
// vols (nL) drawn from wells at concs.
//
// Missing volumes count as zero. A well with a missing concentration still adds
// its volume but no material. An empty pool has an undefined concentration,
// reported as NaN rather than zero.
func EstimatePool(vols, concs *plate.Matrix) (Summary, error) {
	if err := plate.SameShape(vols, concs); err != nil {
		return Summary{}, fmt.Errorf("estimate pool: %w", err)
	}
	if err := vols.RequireUnit(plate.Nanoliters, plate.Unitless); err != nil {
		return Summary{}, fmt.Errorf("estimate pool: %w", err)
	}

	cs := concs.Values()
	var volume, quantity float64
	for i, v := range vols.Values() {
		if math.IsNaN(v) {
			continue
		}
		volume += v
		if !math.IsNaN(cs[i]) {
			// nL × nM; the 1e-9 L/nL factors cancel against the volume below
			quantity += v * cs[i]
		}
	}
	if volume == 0 {
		return Summary{Concentration: math.NaN(), Volume: 0}, nil
	}
	return Summary{Concentration: quantity / volume, Volume: volume}, nil
}
