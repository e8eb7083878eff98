package pool

import (
	"github.com/labpool/metapool/pool/plate"
)

// DefaultTotalVolume is the equal-volume pool size in µL.
const DefaultTotalVolume = 60.0

// EqualVolume gives every well the same share of TotalVolume (µL),
// irrespective of concentration.
type EqualVolume struct {
	TotalVolume float64
}

func (p *EqualVolume) Name() string { return PolicyEqualVolume }

// Allocate returns TotalVolume/N µL per well, in nanoliters. Concentration
// values, missing or not, are ignored.
func (p *EqualVolume) Allocate(conc *plate.Matrix) (*Allocation, error) {
	if err := requirePositive("total_vol", p.TotalVolume); err != nil {
		return nil, err
	}
	shape := conc.Shape()
	perWell := (p.TotalVolume / float64(shape.Size())) * 1000.0
	vols, err := plate.Filled(shape, plate.Nanoliters, perWell)
	if err != nil {
		return nil, err
	}
	return &Allocation{Volumes: vols, Passing: shape.Size()}, nil
}
