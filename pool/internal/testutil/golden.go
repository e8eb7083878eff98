// Package testutil provides shared test infrastructure for the pooling packages.
// It holds the golden reference dataset and float assertion helpers used across
// pool/ and its sub-package tests.
package testutil

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/labpool/metapool/pool/plate"
)

// Grid is a JSON matrix where null stands for a missing well.
type Grid [][]*float64

// Rows converts the grid to float rows, mapping null to NaN.
func (g Grid) Rows() [][]float64 {
	out := make([][]float64, len(g))
	for i, row := range g {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			if v == nil {
				out[i][j] = math.NaN()
			} else {
				out[i][j] = *v
			}
		}
	}
	return out
}

// Matrix builds a plate matrix from the grid.
func (g Grid) Matrix(t *testing.T, unit plate.Unit) *plate.Matrix {
	t.Helper()
	m, err := plate.FromRows(unit, g.Rows())
	if err != nil {
		t.Fatalf("golden grid: %v", err)
	}
	return m
}

// ConversionCase pairs an input grid with its expected conversion.
type ConversionCase struct {
	CP            Grid `json:"cp"`
	Concentration Grid `json:"concentration"`
	Molar         Grid `json:"molar"`
}

// AllocationCase pairs a concentration grid with expected volumes.
type AllocationCase struct {
	Concentration Grid `json:"concentration"`
	Volumes       Grid `json:"volumes"`
	Water         Grid `json:"water"`
}

// PoolEstimateCase describes an equal-volume pool over the qPCR concentrations.
type PoolEstimateCase struct {
	TotalVolumeUL     float64 `json:"total_volume_ul"`
	PoolConcentration float64 `json:"pool_concentration"`
	PoolVolume        float64 `json:"pool_volume"`
}

// GoldenDataset represents the structure of testdata/goldendataset.json.
type GoldenDataset struct {
	QPCR             ConversionCase   `json:"qpcr"`
	MassToMolar      ConversionCase   `json:"mass_to_molar"`
	EqualMolar       AllocationCase   `json:"equal_molar"`
	MinVolume        AllocationCase   `json:"min_volume"`
	DNANormalization AllocationCase   `json:"dna_normalization"`
	PoolEstimate     PoolEstimateCase `json:"pool_estimate"`
}

// LoadGoldenDataset loads the golden dataset from the testdata directory.
// The path is resolved relative to this source file: pool/internal/testutil/ → testdata/.
func LoadGoldenDataset(t *testing.T) *GoldenDataset {
	t.Helper()

	_, thisFile, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("Failed to get current file path")
	}
	path := filepath.Join(filepath.Dir(thisFile), "..", "..", "..", "testdata", "goldendataset.json")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read golden dataset: %v", err)
	}

	var dataset GoldenDataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		t.Fatalf("Failed to parse golden dataset: %v", err)
	}

	return &dataset
}

// AssertFloat64Equal compares two float64 values with relative tolerance.
// Two NaNs compare equal.
func AssertFloat64Equal(t *testing.T, name string, want, got, relTol float64) {
	t.Helper()
	if math.IsNaN(want) || math.IsNaN(got) {
		if math.IsNaN(want) != math.IsNaN(got) {
			t.Errorf("%s: got %v, want %v", name, got, want)
		}
		return
	}
	if want == 0 && got == 0 {
		return
	}
	diff := math.Abs(want - got)
	maxVal := math.Max(math.Abs(want), math.Abs(got))
	if diff/maxVal > relTol {
		t.Errorf("%s: got %v, want %v (diff=%v, relDiff=%v)", name, got, want, diff, diff/maxVal)
	}
}

// AssertRowsEqual compares a matrix against expected rows cell by cell.
func AssertRowsEqual(t *testing.T, name string, want [][]float64, got *plate.Matrix, relTol float64) {
	t.Helper()
	rows := got.Rows()
	if len(rows) != len(want) {
		t.Fatalf("%s: got %d rows, want %d", name, len(rows), len(want))
	}
	for i := range want {
		if len(rows[i]) != len(want[i]) {
			t.Fatalf("%s: row %d has %d columns, want %d", name, i, len(rows[i]), len(want[i]))
		}
		for j := range want[i] {
			w := plate.Well{Row: i, Col: j}
			AssertFloat64Equal(t, name+"["+w.String()+"]", want[i][j], rows[i][j], relTol)
		}
	}
}
