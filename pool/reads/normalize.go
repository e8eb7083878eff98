// Package reads normalizes pooling volumes from observed sequencing read counts
// (typically a shallow iSeq run) and projects the read depth a deeper run will
// deliver.
package reads

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// ErrInvalidTable reports a read-count table that cannot be normalized.
var ErrInvalidTable = errors.New("invalid read-count table")

// Sample is one row of a read-count table.
type Sample struct {
	ID    string
	Well  string
	Blank bool
	// Reads is the on-target (filtered) read count. NaN when unmeasured.
	Reads float64
	// RawReads is the total read count before filtering. NaN or 0 when unknown.
	RawReads float64
}

// Normalization modes.
const (
	ModeProportional = "proportional"
	ModeLinear       = "linear"
)

// ValidModes is the set of recognized normalization modes. Empty selects
// proportional.
var ValidModes = map[string]bool{"": true, ModeProportional: true, ModeLinear: true}

// Defaults, volumes in nL.
const (
	DefaultTargetVolume = 100.0
	DefaultMinVolume    = 40.0
	DefaultMaxVolume    = 500.0
	DefaultDynamicRange = 100.0
)

// Options parameterize Normalize.
type Options struct {
	Mode string
	// TargetReads is the per-sample depth to aim for; 0 uses the mean of the
	// non-blank samples.
	TargetReads  float64
	TargetVolume float64 // volume for a sample exactly at target depth
	MinVolume    float64
	MaxVolume    float64
	BlankVolume  float64 // volume every blank receives
	DynamicRange float64 // largest loading factor in linear mode
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Mode:         ModeProportional,
		TargetVolume: DefaultTargetVolume,
		MinVolume:    DefaultMinVolume,
		MaxVolume:    DefaultMaxVolume,
		BlankVolume:  DefaultMinVolume,
		DynamicRange: DefaultDynamicRange,
	}
}

// Validate checks modes and ranges.
func (o Options) Validate() error {
	if !ValidModes[o.Mode] {
		return fmt.Errorf("unknown normalization mode %q", o.Mode)
	}
	for _, kv := range []struct {
		name string
		v    float64
	}{
		{"target_reads", o.TargetReads},
		{"target_volume", o.TargetVolume},
		{"min_volume", o.MinVolume},
		{"max_volume", o.MaxVolume},
		{"blank_volume", o.BlankVolume},
	} {
		if !(kv.v >= 0) || math.IsInf(kv.v, 0) {
			return fmt.Errorf("%s must be non-negative, got %v", kv.name, kv.v)
		}
	}
	if o.MinVolume > o.MaxVolume {
		return fmt.Errorf("min_volume %v exceeds max_volume %v", o.MinVolume, o.MaxVolume)
	}
	if o.Mode == ModeLinear && !(o.DynamicRange > 1) {
		return fmt.Errorf("dynamic_range must exceed 1, got %v", o.DynamicRange)
	}
	return nil
}

// Pooled is a sample with its normalized pooling volume.
type Pooled struct {
	Sample
	// Proportion is the sample's share of all non-blank reads; 0 for blanks.
	Proportion float64
	// LoadingFactor is the relative loading after clamping; 0 for blanks and
	// unmeasured samples.
	LoadingFactor float64
	// Volume is the pooling volume in nL.
	Volume float64
}

func hasReads(v float64) bool { return v > 0 && !math.IsInf(v, 0) }

func unmeasured(v float64) bool { return math.IsNaN(v) }

// Normalize assigns pooling volumes that even out sequencing depth:
// under-represented samples get more volume and over-represented samples less,
// clamped to [MinVolume, MaxVolume]. Samples measured at zero reads get
// MaxVolume. Unmeasured samples (NaN reads) get zero volume and zero weight.
//
// Blanks do not count toward the target depth or proportions but always receive
// BlankVolume so the controls stay visible in the final pool. A plate without
// blanks is logged as a warning and otherwise processed normally.
func Normalize(samples []Sample, opts Options) ([]Pooled, error) {
	if err := validateTable(samples); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("normalize: %w", err)
	}

	var counts []float64
	blanks := 0
	for _, s := range samples {
		if s.Blank {
			blanks++
			continue
		}
		if hasReads(s.Reads) {
			counts = append(counts, s.Reads)
		}
	}
	if blanks == 0 {
		logrus.Warn("There are no BLANKS in this plate")
	}

	total := floats.Sum(counts)
	out := make([]Pooled, len(samples))
	for i, s := range samples {
		out[i].Sample = s
		if !s.Blank && hasReads(s.Reads) && total > 0 {
			out[i].Proportion = s.Reads / total
		}
	}

	switch opts.Mode {
	case ModeLinear:
		normalizeLinear(out, opts)
	default:
		normalizeProportional(out, counts, opts)
	}

	for i := range out {
		if out[i].Blank {
			out[i].LoadingFactor = 0
			out[i].Volume = opts.BlankVolume
		}
	}
	return out, nil
}

func normalizeProportional(out []Pooled, counts []float64, opts Options) {
	target := opts.TargetReads
	if target == 0 && len(counts) > 0 {
		target = stat.Mean(counts, nil)
	}
	if target == 0 {
		logrus.Warn("normalize: no non-blank sample has reads; every sample gets the maximum volume")
	}
	for i := range out {
		if out[i].Blank || unmeasured(out[i].Reads) {
			continue
		}
		vol := opts.MaxVolume
		if hasReads(out[i].Reads) && target > 0 {
			vol = clamp(opts.TargetVolume*target/out[i].Reads, opts.MinVolume, opts.MaxVolume)
		}
		out[i].Volume = vol
		if opts.TargetVolume > 0 {
			out[i].LoadingFactor = vol / opts.TargetVolume
		}
	}
}

// normalizeLinear scales each sample by max(proportion)/proportion, clips the
// factor to [1, DynamicRange] and maps the factors linearly onto
// [MinVolume, MaxVolume]. Unmeasured samples stay out of the mapping.
func normalizeLinear(out []Pooled, opts Options) {
	maxP := 0.0
	for _, p := range out {
		if !p.Blank {
			maxP = math.Max(maxP, p.Proportion)
		}
	}
	var idx []int
	var factors []float64
	for i := range out {
		if out[i].Blank || unmeasured(out[i].Reads) {
			continue
		}
		lf := opts.DynamicRange
		if out[i].Proportion > 0 {
			lf = clamp(maxP/out[i].Proportion, 1, opts.DynamicRange)
		}
		out[i].LoadingFactor = lf
		idx = append(idx, i)
		factors = append(factors, lf)
	}
	for k, v := range LinearTransform(factors, opts.MinVolume, opts.MaxVolume) {
		out[idx[k]].Volume = v
	}
}

func validateTable(samples []Sample) error {
	if len(samples) == 0 {
		return fmt.Errorf("%w: no samples", ErrInvalidTable)
	}
	seen := make(map[string]bool, len(samples))
	for i, s := range samples {
		if s.ID == "" {
			return fmt.Errorf("%w: row %d has no sample id", ErrInvalidTable, i)
		}
		if seen[s.ID] {
			return fmt.Errorf("%w: sample id %q repeated", ErrInvalidTable, s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
