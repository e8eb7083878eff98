package pool

import (
	"fmt"
	"math"

	"github.com/labpool/metapool/pool/plate"
)

// DNA normalization defaults.
const (
	DefaultTargetMass   = 5.0    // ng
	DefaultTargetVolume = 3500.0 // nL
	DefaultMinTransfer  = 2.5    // nL
	DefaultResolution   = 2.5    // nL, acoustic droplet size
)

// DNANormalization brings every well to the same input mass in a fixed total
// volume: sample = TargetMass / conc, topped up with water to TargetVolume.
// Wells with zero, negative or missing concentration take the whole
// TargetVolume as sample and no water.
type DNANormalization struct {
	TargetMass   float64 // ng
	TargetVolume float64 // nL
	MinVolume    float64 // nL, smallest sample transfer
	Resolution   float64 // nL; 0 disables rounding
}

func (p *DNANormalization) Name() string { return PolicyDNANormalization }

func (p *DNANormalization) validate() error {
	if err := requireNonNegative("target_mass", p.TargetMass); err != nil {
		return err
	}
	if err := requirePositive("target_volume", p.TargetVolume); err != nil {
		return err
	}
	if err := requireNonNegative("min_volume", p.MinVolume); err != nil {
		return err
	}
	if p.MinVolume > p.TargetVolume {
		return fmt.Errorf("%w: min_volume %v exceeds target_volume %v", ErrInvalidConfig, p.MinVolume, p.TargetVolume)
	}
	return requireNonNegative("resolution", p.Resolution)
}

// Allocate expects ng/µL concentrations and returns sample and water volumes in nL.
func (p *DNANormalization) Allocate(conc *plate.Matrix) (*Allocation, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if err := conc.RequireUnit(plate.NanogramsPerMicroliter, plate.Unitless); err != nil {
		return nil, fmt.Errorf("dna-normalization: %w", err)
	}

	sample := conc.Map(plate.Nanoliters, func(_ plate.Well, c float64) float64 {
		return p.sampleVolume(c)
	})
	water := sample.Map(plate.Nanoliters, func(_ plate.Well, v float64) float64 {
		return p.TargetVolume - v
	})
	return &Allocation{Volumes: sample, Water: water, Passing: sample.Len()}, nil
}

func (p *DNANormalization) sampleVolume(c float64) float64 {
	v := p.TargetVolume
	if c > 0 {
		// ng / (ng/µL) = µL
		v = p.TargetMass / c * 1000
	}
	v = clamp(v, p.MinVolume, p.TargetVolume)
	if p.Resolution > 0 {
		v = math.RoundToEven(v/p.Resolution) * p.Resolution
		v = clamp(v, p.MinVolume, p.TargetVolume)
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
