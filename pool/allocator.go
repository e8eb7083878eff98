package pool

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/labpool/metapool/pool/plate"
)

// ErrInvalidConfig reports a policy knob outside its valid range.
var ErrInvalidConfig = errors.New("invalid pooling configuration")

// Allocator turns a concentration matrix into per-well transfer volumes.
type Allocator interface {
	Name() string
	Allocate(conc *plate.Matrix) (*Allocation, error)
}

// Allocation is the result of one allocation run. Volumes are in nanoliters and
// never NaN.
type Allocation struct {
	Volumes *plate.Matrix
	// Water is the diluent volume per well; set only by DNANormalization.
	Water *plate.Matrix
	// Fractions is the renormalized target fraction per well; set only by
	// fraction-driven policies.
	Fractions *plate.Matrix
	// Passing counts wells that received sample.
	Passing int
}

// Policy names accepted by NewAllocator.
const (
	PolicyEqualVolume      = "equal-volume"
	PolicyEqualMolar       = "equal-molar"
	PolicyMinVolume        = "min-volume"
	PolicyDNANormalization = "dna-normalization"
)

// ValidAllocators is the set of recognized allocator names. The empty string
// selects equal-molar pooling.
var ValidAllocators = map[string]bool{
	"":                     true,
	PolicyEqualVolume:      true,
	PolicyEqualMolar:       true,
	PolicyMinVolume:        true,
	PolicyDNANormalization: true,
}

// IsValidAllocator reports whether name is a recognized allocator.
func IsValidAllocator(name string) bool { return ValidAllocators[name] }

// ValidAllocatorNames returns the sorted non-empty allocator names, for help
// text and error messages.
func ValidAllocatorNames() []string {
	names := make([]string, 0, len(ValidAllocators))
	for name := range ValidAllocators {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// NewAllocator creates an allocator by name, parameterized from the bundle.
// A nil bundle means all defaults. Panics on unrecognized names; callers are
// expected to have run PolicyBundle.Validate first.
func NewAllocator(name string, b *PolicyBundle) Allocator {
	if !IsValidAllocator(name) {
		panic(fmt.Sprintf("unknown allocator %q", name))
	}
	if b == nil {
		b = &PolicyBundle{}
	}
	switch name {
	case "", PolicyEqualMolar:
		p := b.EqualMolar()
		return &p
	case PolicyEqualVolume:
		p := b.EqualVolume()
		return &p
	case PolicyMinVolume:
		p := b.MinVolume()
		return &p
	case PolicyDNANormalization:
		p := b.DNANormalization()
		return &p
	default:
		panic(fmt.Sprintf("unhandled allocator %q", name))
	}
}

// targetFractions resolves the per-well target fractions. A nil matrix means
// uniform 1/N. NaN fractions count as zero; negative fractions are rejected.
func targetFractions(shape plate.Shape, fracs *plate.Matrix) ([]float64, error) {
	n := shape.Size()
	out := make([]float64, n)
	if fracs == nil {
		for i := range out {
			out[i] = 1 / float64(n)
		}
		return out, nil
	}
	if fracs.Shape() != shape {
		return nil, fmt.Errorf("%w: fractions %s vs concentrations %s", plate.ErrShapeMismatch, fracs.Shape(), shape)
	}
	for i, f := range fracs.Values() {
		switch {
		case math.IsNaN(f):
			out[i] = 0
		case f < 0:
			w := shape.Wells()[i]
			return nil, fmt.Errorf("negative target fraction %v at %s", f, w)
		default:
			out[i] = f
		}
	}
	return out, nil
}

func requirePositive(name string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidConfig, name, v)
	}
	return nil
}

func requireNonNegative(name string, v float64) error {
	if !(v >= 0) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be non-negative, got %v", ErrInvalidConfig, name, v)
	}
	return nil
}
