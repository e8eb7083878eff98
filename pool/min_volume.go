package pool

import (
	"fmt"
	"math"

	"github.com/labpool/metapool/pool/plate"
)

// Min-volume defaults.
const (
	DefaultFloorVolume   = 100.0 // nL
	DefaultMinVolumeConc = 40.0  // nM
)

// MinVolume pools every measured well. Wells below FloorConc get a fixed
// FloorVolume so that weak samples still reach the pool without swamping it;
// the rest receive TotalNmol × fraction / conc. Fractions are not renormalized.
type MinVolume struct {
	FloorVolume float64 // nL
	FloorConc   float64 // nM
	TotalNmol   float64
	Fractions   *plate.Matrix
}

func (p *MinVolume) Name() string { return PolicyMinVolume }

func (p *MinVolume) validate() error {
	if err := requireNonNegative("floor_vol", p.FloorVolume); err != nil {
		return err
	}
	if err := requireNonNegative("floor_conc", p.FloorConc); err != nil {
		return err
	}
	return requirePositive("total_nmol", p.TotalNmol)
}

// Allocate returns volumes in nL. Unmeasured wells receive zero.
func (p *MinVolume) Allocate(conc *plate.Matrix) (*Allocation, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if err := conc.RequireUnit(plate.Nanomolar, plate.Unitless); err != nil {
		return nil, fmt.Errorf("min-volume: %w", err)
	}
	shape := conc.Shape()
	fracs, err := targetFractions(shape, p.Fractions)
	if err != nil {
		return nil, fmt.Errorf("min-volume: %w", err)
	}

	values := conc.Values()
	vols := make([]float64, len(values))
	passing := 0
	for i, c := range values {
		switch {
		case math.IsNaN(c):
			continue
		case c < p.FloorConc || c <= 0:
			vols[i] = p.FloorVolume
		default:
			vols[i] = p.TotalNmol * fracs[i] / c * nlPerLiter
		}
		if vols[i] > 0 {
			passing++
		}
	}

	volMatrix, err := plate.NewMatrix(shape, plate.Nanoliters, vols)
	if err != nil {
		return nil, err
	}
	return &Allocation{Volumes: volMatrix, Passing: passing}, nil
}
