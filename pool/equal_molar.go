package pool

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"github.com/labpool/metapool/pool/plate"
)

// Equal-molar defaults, in nM and nmol.
const (
	DefaultMinConc   = 10.0
	DefaultFloorConc = 50.0
	DefaultTotalNmol = 0.01
)

// nlPerLiter converts liters to nanoliters.
const nlPerLiter = 1e9

// EqualMolar pools passing wells toward target molar fractions.
//
// Wells at or below MinConc (and unmeasured wells) are excluded and the remaining
// fractions are renormalized to sum to one. Passing wells below FloorConc are
// pooled as if they were at FloorConc, which caps the volume any weak sample can
// claim. For a 384-well plate with every sample at 400 nM and a 60 µL target,
// TotalNmol would be 0.024.
type EqualMolar struct {
	MinConc   float64 // nM
	FloorConc float64 // nM
	TotalNmol float64 // nmol in the finished pool
	// Fractions optionally sets per-well target fractions; nil means 1/N.
	Fractions *plate.Matrix
}

func (p *EqualMolar) Name() string { return PolicyEqualMolar }

func (p *EqualMolar) validate() error {
	if err := requireNonNegative("min_conc", p.MinConc); err != nil {
		return err
	}
	if err := requireNonNegative("floor_conc", p.FloorConc); err != nil {
		return err
	}
	return requirePositive("total_nmol", p.TotalNmol)
}

// Allocate computes volumes = TotalNmol × fraction / max(conc, FloorConc), in nL.
// When no well passes, every volume is zero and a warning is logged.
func (p *EqualMolar) Allocate(conc *plate.Matrix) (*Allocation, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if err := conc.RequireUnit(plate.Nanomolar, plate.Unitless); err != nil {
		return nil, fmt.Errorf("equal-molar: %w", err)
	}
	shape := conc.Shape()
	fracs, err := targetFractions(shape, p.Fractions)
	if err != nil {
		return nil, fmt.Errorf("equal-molar: %w", err)
	}

	values := conc.Values()
	for i, c := range values {
		if !(c > p.MinConc) {
			fracs[i] = 0
		}
	}

	vols := make([]float64, len(values))
	passing := 0
	if total := floats.Sum(fracs); total > 0 {
		floats.Scale(1/total, fracs)
		for i, c := range values {
			if fracs[i] == 0 {
				continue
			}
			passing++
			vols[i] = p.TotalNmol * fracs[i] / math.Max(c, p.FloorConc) * nlPerLiter
		}
	} else {
		logrus.Warnf("equal-molar: no well above min_conc %g nM; returning an empty pool", p.MinConc)
	}
	logrus.Debugf("equal-molar: %d of %d wells pass min_conc %g nM", passing, len(values), p.MinConc)

	volMatrix, err := plate.NewMatrix(shape, plate.Nanoliters, vols)
	if err != nil {
		return nil, err
	}
	fracMatrix, err := plate.NewMatrix(shape, plate.Fraction, fracs)
	if err != nil {
		return nil, err
	}
	return &Allocation{Volumes: volMatrix, Fractions: fracMatrix, Passing: passing}, nil
}
