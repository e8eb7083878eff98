package pool

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/labpool/metapool/pool/convert"
	"github.com/labpool/metapool/pool/picklist"
	"github.com/labpool/metapool/pool/plate"
	"github.com/labpool/metapool/pool/reads"
)

// PolicyBundle holds every pooling knob, loadable from a YAML file.
// Nil pointer fields mean "not set in YAML" and fall back to the package
// defaults. String fields use empty string for "not set".
type PolicyBundle struct {
	Plate         PlateConfig         `yaml:"plate"`
	QPCR          QPCRConfig          `yaml:"qpcr"`
	Fluorometric  FluorometricConfig  `yaml:"fluorometric"`
	Pooling       PoolingConfig       `yaml:"pooling"`
	Normalization NormalizationConfig `yaml:"normalization"`
	Reads         ReadsConfig         `yaml:"reads"`
	Picklist      PicklistConfig      `yaml:"picklist"`
}

// PlateConfig selects the plate geometry. Rows and Cols override the named
// format when set.
type PlateConfig struct {
	Format string `yaml:"format"`
	Rows   *int   `yaml:"rows"`
	Cols   *int   `yaml:"cols"`
}

// QPCRConfig holds the qPCR standard curve.
type QPCRConfig struct {
	Slope          *float64 `yaml:"slope"`
	Intercept      *float64 `yaml:"intercept"`
	DilutionFactor *float64 `yaml:"dilution_factor"`
}

// FluorometricConfig holds the fluorometric calibration.
type FluorometricConfig struct {
	Slope       *float64 `yaml:"slope"`
	Intercept   *float64 `yaml:"intercept"`
	MaxConc     *float64 `yaml:"max_conc"`
	LibrarySize *float64 `yaml:"library_size"`
}

// PoolingConfig holds allocator selection and the pooling knobs.
type PoolingConfig struct {
	Policy        string   `yaml:"policy"`
	MinConc       *float64 `yaml:"min_conc"`
	FloorConc     *float64 `yaml:"floor_conc"`
	TotalNmol     *float64 `yaml:"total_nmol"`
	TotalVol      *float64 `yaml:"total_vol"`
	FloorVol      *float64 `yaml:"floor_vol"`
	MaxVolPerWell *float64 `yaml:"max_vol_per_well"`
	// DestFormat names the pooling destination plate ("96", "384", "1536").
	DestFormat string `yaml:"dest_format"`
}

// NormalizationConfig holds the DNA normalization knobs.
type NormalizationConfig struct {
	TargetMass   *float64 `yaml:"target_mass"`
	TargetVolume *float64 `yaml:"target_volume"`
	MinVolume    *float64 `yaml:"min_volume"`
	Resolution   *float64 `yaml:"resolution"`
}

// ReadsConfig holds the read-count normalization knobs.
type ReadsConfig struct {
	Mode         string   `yaml:"mode"`
	TargetReads  *float64 `yaml:"target_reads"`
	TargetVolume *float64 `yaml:"target_volume"`
	MinVolume    *float64 `yaml:"min_volume"`
	MaxVolume    *float64 `yaml:"max_volume"`
	BlankVolume  *float64 `yaml:"blank_volume"`
	DynamicRange *float64 `yaml:"dynamic_range"`
}

// PicklistConfig holds picklist rendering and plate naming.
type PicklistConfig struct {
	Delimiter       string `yaml:"delimiter"`
	Decimals        *int   `yaml:"decimals"`
	SourcePlateName string `yaml:"source_plate_name"`
	SourcePlateType string `yaml:"source_plate_type"`
	DestPlateName   string `yaml:"dest_plate_name"`
}

// LoadPolicyBundle reads and parses a YAML policy configuration file.
// Unknown keys are rejected so typos do not silently fall back to defaults.
func LoadPolicyBundle(path string) (*PolicyBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy config: %w", err)
	}
	return ParsePolicyBundle(data)
}

// ParsePolicyBundle parses YAML policy configuration. Empty input yields an
// all-defaults bundle.
func ParsePolicyBundle(data []byte) (*PolicyBundle, error) {
	var bundle PolicyBundle
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&bundle); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing policy config: %w", err)
	}
	return &bundle, nil
}

// Validate checks that all names and parameter ranges in the bundle are valid.
// Every error wraps ErrInvalidConfig.
func (b *PolicyBundle) Validate() error {
	if err := b.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

func (b *PolicyBundle) validate() error {
	if b.Plate.Format != "" {
		if _, err := plate.ShapeByName(b.Plate.Format); err != nil {
			return err
		}
	}
	if err := b.Shape().Validate(); err != nil {
		return err
	}
	if b.Pooling.DestFormat != "" {
		if _, err := plate.ShapeByName(b.Pooling.DestFormat); err != nil {
			return fmt.Errorf("pooling.dest_format: %w", err)
		}
	}
	if !IsValidAllocator(b.Pooling.Policy) {
		return fmt.Errorf("unknown pooling policy %q", b.Pooling.Policy)
	}
	if !reads.ValidModes[b.Reads.Mode] {
		return fmt.Errorf("unknown reads mode %q", b.Reads.Mode)
	}
	if !picklist.ValidDelimiters[b.Picklist.Delimiter] {
		return fmt.Errorf("unknown picklist delimiter %q", b.Picklist.Delimiter)
	}
	if d := b.Picklist.Decimals; d != nil && (*d < 0 || *d > 9) {
		return fmt.Errorf("picklist.decimals must be in [0, 9], got %d", *d)
	}

	// Parameter range validation
	for _, c := range []struct {
		name     string
		v        *float64
		positive bool
	}{
		{"qpcr.dilution_factor", b.QPCR.DilutionFactor, true},
		{"fluorometric.library_size", b.Fluorometric.LibrarySize, true},
		{"pooling.min_conc", b.Pooling.MinConc, false},
		{"pooling.floor_conc", b.Pooling.FloorConc, false},
		{"pooling.total_nmol", b.Pooling.TotalNmol, true},
		{"pooling.total_vol", b.Pooling.TotalVol, true},
		{"pooling.floor_vol", b.Pooling.FloorVol, false},
		{"pooling.max_vol_per_well", b.Pooling.MaxVolPerWell, true},
		{"normalization.target_mass", b.Normalization.TargetMass, false},
		{"normalization.target_volume", b.Normalization.TargetVolume, true},
		{"normalization.min_volume", b.Normalization.MinVolume, false},
		{"normalization.resolution", b.Normalization.Resolution, false},
	} {
		if c.v == nil {
			continue
		}
		v := *c.v
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 || (c.positive && v == 0) {
			qualifier := "non-negative"
			if c.positive {
				qualifier = "positive"
			}
			return fmt.Errorf("%s must be %s, got %v", c.name, qualifier, v)
		}
	}
	if b.QPCR.Slope != nil && *b.QPCR.Slope == 0 {
		return fmt.Errorf("qpcr.slope must be non-zero")
	}
	if b.Fluorometric.Slope != nil && *b.Fluorometric.Slope == 0 {
		return fmt.Errorf("fluorometric.slope must be non-zero")
	}
	norm := b.DNANormalization()
	if norm.MinVolume > norm.TargetVolume {
		return fmt.Errorf("normalization.min_volume %v exceeds target_volume %v", norm.MinVolume, norm.TargetVolume)
	}
	if err := b.NormalizeOptions().Validate(); err != nil {
		return fmt.Errorf("reads: %w", err)
	}
	if err := b.Format().Validate(); err != nil {
		return fmt.Errorf("picklist: %w", err)
	}
	return nil
}

func orDefault(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

// Shape returns the configured plate geometry, 384 wells when unset.
func (b *PolicyBundle) Shape() plate.Shape {
	shape := plate.DefaultShape
	if s, err := plate.ShapeByName(b.Plate.Format); err == nil && b.Plate.Format != "" {
		shape = s
	}
	if b.Plate.Rows != nil {
		shape.Rows = *b.Plate.Rows
	}
	if b.Plate.Cols != nil {
		shape.Cols = *b.Plate.Cols
	}
	return shape
}

// Curve returns the qPCR standard curve.
func (b *PolicyBundle) Curve() convert.StandardCurve {
	return convert.StandardCurve{
		Slope:     orDefault(b.QPCR.Slope, convert.DefaultCurve.Slope),
		Intercept: orDefault(b.QPCR.Intercept, convert.DefaultCurve.Intercept),
	}
}

// Dilution returns the qPCR dilution factor.
func (b *PolicyBundle) Dilution() float64 {
	return orDefault(b.QPCR.DilutionFactor, convert.DefaultDilution)
}

// Calibration returns the fluorometric calibration.
func (b *PolicyBundle) Calibration() convert.Calibration {
	return convert.Calibration{
		Slope:     orDefault(b.Fluorometric.Slope, convert.DefaultCalibration.Slope),
		Intercept: orDefault(b.Fluorometric.Intercept, convert.DefaultCalibration.Intercept),
		Max:       orDefault(b.Fluorometric.MaxConc, convert.DefaultCalibration.Max),
	}
}

// LibrarySize returns the mean library fragment length in bp.
func (b *PolicyBundle) LibrarySize() float64 {
	return orDefault(b.Fluorometric.LibrarySize, convert.DefaultLibrarySize)
}

// EqualVolume returns the configured equal-volume allocator.
func (b *PolicyBundle) EqualVolume() EqualVolume {
	return EqualVolume{TotalVolume: orDefault(b.Pooling.TotalVol, DefaultTotalVolume)}
}

// EqualMolar returns the configured equal-molar allocator with uniform fractions.
func (b *PolicyBundle) EqualMolar() EqualMolar {
	return EqualMolar{
		MinConc:   orDefault(b.Pooling.MinConc, DefaultMinConc),
		FloorConc: orDefault(b.Pooling.FloorConc, DefaultFloorConc),
		TotalNmol: orDefault(b.Pooling.TotalNmol, DefaultTotalNmol),
	}
}

// MinVolume returns the configured min-volume allocator. floor_conc is shared
// with equal-molar pooling but defaults to DefaultMinVolumeConc here.
func (b *PolicyBundle) MinVolume() MinVolume {
	return MinVolume{
		FloorVolume: orDefault(b.Pooling.FloorVol, DefaultFloorVolume),
		FloorConc:   orDefault(b.Pooling.FloorConc, DefaultMinVolumeConc),
		TotalNmol:   orDefault(b.Pooling.TotalNmol, DefaultTotalNmol),
	}
}

// DNANormalization returns the configured DNA normalization allocator.
func (b *PolicyBundle) DNANormalization() DNANormalization {
	return DNANormalization{
		TargetMass:   orDefault(b.Normalization.TargetMass, DefaultTargetMass),
		TargetVolume: orDefault(b.Normalization.TargetVolume, DefaultTargetVolume),
		MinVolume:    orDefault(b.Normalization.MinVolume, DefaultMinTransfer),
		Resolution:   orDefault(b.Normalization.Resolution, DefaultResolution),
	}
}

// Allocator returns the allocator named by pooling.policy.
func (b *PolicyBundle) Allocator() Allocator {
	return NewAllocator(b.Pooling.Policy, b)
}

// NormalizeOptions returns the read-count normalization options. The blank
// volume follows min_volume unless set explicitly.
func (b *PolicyBundle) NormalizeOptions() reads.Options {
	opts := reads.DefaultOptions()
	if b.Reads.Mode != "" {
		opts.Mode = b.Reads.Mode
	}
	opts.TargetReads = orDefault(b.Reads.TargetReads, opts.TargetReads)
	opts.TargetVolume = orDefault(b.Reads.TargetVolume, opts.TargetVolume)
	opts.MinVolume = orDefault(b.Reads.MinVolume, opts.MinVolume)
	opts.MaxVolume = orDefault(b.Reads.MaxVolume, opts.MaxVolume)
	opts.BlankVolume = orDefault(b.Reads.BlankVolume, opts.MinVolume)
	opts.DynamicRange = orDefault(b.Reads.DynamicRange, opts.DynamicRange)
	return opts
}

// PoolingOptions returns the pooling picklist options.
func (b *PolicyBundle) PoolingOptions() picklist.PoolingOptions {
	opts := picklist.DefaultPoolingOptions()
	opts.MaxVolumePerWell = orDefault(b.Pooling.MaxVolPerWell, opts.MaxVolumePerWell)
	if s, err := plate.ShapeByName(b.Pooling.DestFormat); err == nil && b.Pooling.DestFormat != "" {
		opts.DestShape = s
	}
	if b.Picklist.SourcePlateName != "" {
		opts.SourcePlateName = b.Picklist.SourcePlateName
	}
	if b.Picklist.SourcePlateType != "" {
		opts.SourcePlateType = b.Picklist.SourcePlateType
	}
	if b.Picklist.DestPlateName != "" {
		opts.DestPlateName = b.Picklist.DestPlateName
	}
	return opts
}

// Format returns the picklist rendering format.
func (b *PolicyBundle) Format() picklist.Format {
	f := picklist.DefaultFormat()
	if r, err := picklist.ParseDelimiter(b.Picklist.Delimiter); err == nil {
		f.Delimiter = r
	}
	if b.Picklist.Decimals != nil {
		f.Decimals = int32(*b.Picklist.Decimals)
	}
	return f
}
