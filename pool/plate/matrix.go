package plate

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrShapeMismatch reports matrices whose dimensions disagree. Never broadcast.
	ErrShapeMismatch = errors.New("plate shape mismatch")
	// ErrUnitMismatch reports a matrix carrying the wrong unit for an operation.
	ErrUnitMismatch = errors.New("plate unit mismatch")
)

// Unit tags the physical meaning of matrix values.
type Unit int

const (
	Unitless Unit = iota
	Cycles
	Nanomolar
	NanogramsPerMicroliter
	Nanoliters
	Fraction
	Reads
)

func (u Unit) String() string {
	switch u {
	case Unitless:
		return "unitless"
	case Cycles:
		return "Cp"
	case Nanomolar:
		return "nM"
	case NanogramsPerMicroliter:
		return "ng/uL"
	case Nanoliters:
		return "nL"
	case Fraction:
		return "fraction"
	case Reads:
		return "reads"
	default:
		return fmt.Sprintf("Unit(%d)", int(u))
	}
}

// Matrix is an immutable, unit-tagged grid of per-well values.
// NaN marks an empty or failed well.
type Matrix struct {
	unit Unit
	data *mat.Dense
}

// NewMatrix builds a matrix from row-major values. The slice is copied.
func NewMatrix(shape Shape, unit Unit, values []float64) (*Matrix, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	if len(values) != shape.Size() {
		return nil, fmt.Errorf("%w: %d values for %s plate", ErrShapeMismatch, len(values), shape)
	}
	data := make([]float64, len(values))
	copy(data, values)
	return &Matrix{unit: unit, data: mat.NewDense(shape.Rows, shape.Cols, data)}, nil
}

// FromRows builds a matrix from a rectangular slice of rows.
func FromRows(unit Unit, rows [][]float64) (*Matrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: empty matrix", ErrInvalidShape)
	}
	shape := Shape{Rows: len(rows), Cols: len(rows[0])}
	values := make([]float64, 0, shape.Size())
	for i, row := range rows {
		if len(row) != shape.Cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShapeMismatch, i, len(row), shape.Cols)
		}
		values = append(values, row...)
	}
	return NewMatrix(shape, unit, values)
}

// MustFromRows is FromRows for literals; it panics on ragged input.
func MustFromRows(unit Unit, rows [][]float64) *Matrix {
	m, err := FromRows(unit, rows)
	if err != nil {
		panic(err)
	}
	return m
}

// Filled returns a matrix with every well set to v.
func Filled(shape Shape, unit Unit, v float64) (*Matrix, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	values := make([]float64, shape.Size())
	for i := range values {
		values[i] = v
	}
	return NewMatrix(shape, unit, values)
}

// WellValue pairs a well with a measurement.
type WellValue struct {
	Well  Well
	Value float64
}

// FromWells lays well-keyed values onto a plate. Wells not listed are NaN.
// Wells outside the shape and repeated wells are rejected.
func FromWells(shape Shape, unit Unit, values []WellValue) (*Matrix, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	data := make([]float64, shape.Size())
	for i := range data {
		data[i] = math.NaN()
	}
	seen := make(map[Well]bool, len(values))
	for _, wv := range values {
		if !shape.Contains(wv.Well) {
			return nil, fmt.Errorf("well %s outside %s plate", wv.Well, shape)
		}
		if seen[wv.Well] {
			return nil, fmt.Errorf("well %s listed more than once", wv.Well)
		}
		seen[wv.Well] = true
		data[shape.Index(wv.Well)] = wv.Value
	}
	return &Matrix{unit: unit, data: mat.NewDense(shape.Rows, shape.Cols, data)}, nil
}

// Shape returns the plate geometry.
func (m *Matrix) Shape() Shape {
	r, c := m.data.Dims()
	return Shape{Rows: r, Cols: c}
}

// Unit returns the unit tag.
func (m *Matrix) Unit() Unit { return m.unit }

// At returns the value at well w.
func (m *Matrix) At(w Well) float64 { return m.data.At(w.Row, w.Col) }

// Len is the number of wells.
func (m *Matrix) Len() int { return m.Shape().Size() }

// Values returns a row-major copy of the data.
func (m *Matrix) Values() []float64 {
	shape := m.Shape()
	out := make([]float64, 0, shape.Size())
	for r := 0; r < shape.Rows; r++ {
		out = append(out, mat.Row(nil, r, m.data)...)
	}
	return out
}

// Rows returns a copy of the data as a slice of rows.
func (m *Matrix) Rows() [][]float64 {
	shape := m.Shape()
	out := make([][]float64, shape.Rows)
	for r := range out {
		out[r] = mat.Row(nil, r, m.data)
	}
	return out
}

// Map applies fn to every well and returns a new matrix tagged with unit.
// The receiver is left untouched.
func (m *Matrix) Map(unit Unit, fn func(w Well, v float64) float64) *Matrix {
	var out mat.Dense
	out.Apply(func(i, j int, v float64) float64 {
		return fn(Well{Row: i, Col: j}, v)
	}, m.data)
	return &Matrix{unit: unit, data: &out}
}

// WithUnit returns a copy of m re-tagged with unit.
func (m *Matrix) WithUnit(unit Unit) *Matrix {
	var out mat.Dense
	out.CloneFrom(m.data)
	return &Matrix{unit: unit, data: &out}
}

// RequireUnit fails unless m carries one of the allowed units.
func (m *Matrix) RequireUnit(allowed ...Unit) error {
	for _, u := range allowed {
		if m.unit == u {
			return nil
		}
	}
	return fmt.Errorf("%w: got %s, want one of %v", ErrUnitMismatch, m.unit, allowed)
}

// SameShape returns ErrShapeMismatch unless every matrix has the shape of the first.
// Nil matrices are skipped.
func SameShape(ms ...*Matrix) error {
	var ref *Matrix
	for _, m := range ms {
		if m == nil {
			continue
		}
		if ref == nil {
			ref = m
			continue
		}
		if m.Shape() != ref.Shape() {
			return fmt.Errorf("%w: %s vs %s", ErrShapeMismatch, ref.Shape(), m.Shape())
		}
	}
	return nil
}
