// Package picklist turns volume matrices into liquid-handler transfer tables.
//
// Three picklists are supported: pooling (many source wells into a few
// destination wells, rolling over to the next destination when a well would
// overflow), DNA normalization (water then sample into the same destination
// well), and index addition (i5 then i7 adapters into each sample well).
//
// Building entries is separate from rendering them; see write.go.
package picklist

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/labpool/metapool/pool/plate"
)

// ErrDestinationOverflow reports a pooling run that needs more destination
// wells than the destination plate has.
var ErrDestinationOverflow = errors.New("destination plate overflow")

// Plate names and types written when nothing else is configured.
const (
	DefaultSourcePlateName     = "1"
	DefaultSourcePlateType     = "384LDV_AQ_B2_HT"
	DefaultDestPlateName       = "NormalizedDNA"
	DefaultNormSourcePlateType = "384PP_AQ_BP2_HT"
	DefaultWaterPlateName      = "Water"
	DefaultSamplePlateName     = "Sample"
	DefaultIndexDestPlateName  = "IndexPCRPlate"
)

// DefaultMaxVolumePerWell is the pooling destination well capacity in nL.
const DefaultMaxVolumePerWell = 60000.0

// DefaultIndexVolume is the per-adapter transfer volume in nL.
const DefaultIndexVolume = 250.0

// Entry is one transfer. Concentration is NaN when unknown.
type Entry struct {
	Sample          string
	SourcePlate     string
	SourcePlateType string
	SourceWell      plate.Well
	Concentration   float64
	Volume          float64 // nL
	DestPlate       string
	DestWell        plate.Well
}

// PoolingOptions configure Pooling.
type PoolingOptions struct {
	MaxVolumePerWell float64 // nL
	DestShape        plate.Shape
	SourcePlateName  string
	SourcePlateType  string
	DestPlateName    string
}

// DefaultPoolingOptions returns a 60 µL-per-well, 384-well destination setup.
func DefaultPoolingOptions() PoolingOptions {
	return PoolingOptions{
		MaxVolumePerWell: DefaultMaxVolumePerWell,
		DestShape:        plate.DefaultShape,
		SourcePlateName:  DefaultSourcePlateName,
		SourcePlateType:  DefaultSourcePlateType,
		DestPlateName:    DefaultDestPlateName,
	}
}

// Validate checks capacity and destination shape.
func (o PoolingOptions) Validate() error {
	if !(o.MaxVolumePerWell > 0) || math.IsInf(o.MaxVolumePerWell, 0) {
		return fmt.Errorf("max_vol_per_well must be positive, got %v", o.MaxVolumePerWell)
	}
	return o.DestShape.Validate()
}

// Pooling walks vols row-major and emits one transfer per source well.
//
// Destination wells are taken in row-major order starting at A1. A transfer
// that would push the current destination past MaxVolumePerWell moves to the
// next destination well, which starts with that transfer's volume. Missing
// volumes are transferred as 0 and never trigger a rollover.
//
// concs may be nil; otherwise it must match vols and fills the Concentration
// column.
func Pooling(vols, concs *plate.Matrix, opts PoolingOptions) ([]Entry, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("pooling picklist: %w", err)
	}
	if err := vols.RequireUnit(plate.Nanoliters, plate.Unitless); err != nil {
		return nil, fmt.Errorf("pooling picklist: %w", err)
	}
	if concs != nil {
		if err := plate.SameShape(vols, concs); err != nil {
			return nil, fmt.Errorf("pooling picklist: %w", err)
		}
	}

	dests := opts.DestShape.Wells()
	d := 0
	running := 0.0
	out := make([]Entry, 0, vols.Len())
	for _, w := range vols.Shape().Wells() {
		v := vols.At(w)
		if math.IsNaN(v) {
			v = 0
		}
		if v < 0 {
			return nil, fmt.Errorf("pooling picklist: negative volume %v at %s", v, w)
		}
		if running+v > opts.MaxVolumePerWell {
			d++
			running = v
			logrus.Debugf("pooling picklist: %s starts destination %d", w, d)
		} else {
			running += v
		}
		if d >= len(dests) {
			return nil, fmt.Errorf("%w: %s needs destination %d of %d", ErrDestinationOverflow, w, d+1, len(dests))
		}
		c := math.NaN()
		if concs != nil {
			c = concs.At(w)
		}
		out = append(out, Entry{
			SourcePlate:     opts.SourcePlateName,
			SourcePlateType: opts.SourcePlateType,
			SourceWell:      w,
			Concentration:   c,
			Volume:          v,
			DestPlate:       opts.DestPlateName,
			DestWell:        dests[d],
		})
	}
	return out, nil
}

// NormalizationOptions configure DNANormalization. The per-well maps are
// optional; a missing entry falls back to the plate-wide default.
type NormalizationOptions struct {
	SourcePlateType string
	DestPlateName   string
	WaterPlateName  string
	SamplePlateName string
	Names           map[plate.Well]string
	SourcePlates    map[plate.Well]string
	// DestWells maps a source well to its destination; unmapped wells keep
	// their own position.
	DestWells map[plate.Well]plate.Well
}

// DefaultNormalizationOptions returns the Echo 384PP source setup.
func DefaultNormalizationOptions() NormalizationOptions {
	return NormalizationOptions{
		SourcePlateType: DefaultNormSourcePlateType,
		DestPlateName:   DefaultDestPlateName,
		WaterPlateName:  DefaultWaterPlateName,
		SamplePlateName: DefaultSamplePlateName,
	}
}

// DNANormalization emits every water transfer followed by every sample
// transfer, both row-major, so water lands before DNA in each destination.
// concs may be nil.
func DNANormalization(sample, water, concs *plate.Matrix, opts NormalizationOptions) ([]Entry, error) {
	if err := plate.SameShape(sample, water, concs); err != nil {
		return nil, fmt.Errorf("normalization picklist: %w", err)
	}
	wells := sample.Shape().Wells()
	out := make([]Entry, 0, 2*len(wells))
	for _, src := range []struct {
		vols  *plate.Matrix
		water bool
	}{{water, true}, {sample, false}} {
		for _, w := range wells {
			v := src.vols.At(w)
			if math.IsNaN(v) {
				v = 0
			}
			if v < 0 {
				return nil, fmt.Errorf("normalization picklist: negative volume %v at %s", v, w)
			}
			e := Entry{
				Sample:          opts.Names[w],
				SourcePlate:     opts.WaterPlateName,
				SourcePlateType: opts.SourcePlateType,
				SourceWell:      w,
				Concentration:   math.NaN(),
				Volume:          v,
				DestPlate:       opts.DestPlateName,
				DestWell:        w,
			}
			if !src.water {
				e.SourcePlate = opts.SamplePlateName
				if p, ok := opts.SourcePlates[w]; ok {
					e.SourcePlate = p
				}
			}
			if concs != nil {
				e.Concentration = concs.At(w)
			}
			if dw, ok := opts.DestWells[w]; ok {
				e.DestWell = dw
			}
			out = append(out, e)
		}
	}
	return out, nil
}

// Target is a sample well receiving an index pair.
type Target struct {
	Sample string
	Well   plate.Well
}

// IndexPair is one i5/i7 adapter combination and where each adapter sits.
type IndexPair struct {
	Combo      int
	I5Name     string
	I5Plate    string
	I5Sequence string
	I5Well     plate.Well
	I7Name     string
	I7Plate    string
	I7Sequence string
	I7Well     plate.Well
}

// IndexEntry is one adapter transfer.
type IndexEntry struct {
	Sample          string
	SourcePlate     string
	SourcePlateType string
	SourceWell      plate.Well
	Volume          float64 // nL
	IndexName       string
	IndexSequence   string
	IndexCombo      int
	DestPlate       string
	DestWell        plate.Well
}

// IndexOptions configure IndexAddition.
type IndexOptions struct {
	Volume          float64 // nL per adapter
	SourcePlateType string
	DestPlateName   string
}

// DefaultIndexOptions returns 250 nL transfers from 384LDV plates.
func DefaultIndexOptions() IndexOptions {
	return IndexOptions{
		Volume:          DefaultIndexVolume,
		SourcePlateType: DefaultSourcePlateType,
		DestPlateName:   DefaultIndexDestPlateName,
	}
}

// IndexAddition pairs targets[i] with indices[i] and emits all i5 transfers
// followed by all i7 transfers.
func IndexAddition(targets []Target, indices []IndexPair, opts IndexOptions) ([]IndexEntry, error) {
	if len(indices) < len(targets) {
		return nil, fmt.Errorf("index picklist: %d samples but only %d index combinations", len(targets), len(indices))
	}
	if !(opts.Volume >= 0) || math.IsInf(opts.Volume, 0) {
		return nil, fmt.Errorf("index picklist: volume must be non-negative, got %v", opts.Volume)
	}
	out := make([]IndexEntry, 0, 2*len(targets))
	for _, i7 := range []bool{false, true} {
		for i, t := range targets {
			idx := indices[i]
			e := IndexEntry{
				Sample:          t.Sample,
				SourcePlate:     idx.I5Plate,
				SourcePlateType: opts.SourcePlateType,
				SourceWell:      idx.I5Well,
				Volume:          opts.Volume,
				IndexName:       idx.I5Name,
				IndexSequence:   idx.I5Sequence,
				IndexCombo:      idx.Combo,
				DestPlate:       opts.DestPlateName,
				DestWell:        t.Well,
			}
			if i7 {
				e.SourcePlate = idx.I7Plate
				e.SourceWell = idx.I7Well
				e.IndexName = idx.I7Name
				e.IndexSequence = idx.I7Sequence
			}
			out = append(out, e)
		}
	}
	return out, nil
}
