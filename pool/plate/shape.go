package plate

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrInvalidShape reports a plate shape that cannot describe a real plate.
var ErrInvalidShape = errors.New("invalid plate shape")

// Shape is the row × column geometry of a plate.
type Shape struct {
	Rows int
	Cols int
}

var (
	Plate96   = Shape{Rows: 8, Cols: 12}
	Plate384  = Shape{Rows: 16, Cols: 24}
	Plate1536 = Shape{Rows: 32, Cols: 48}
)

// DefaultShape is the 384-well plate used by the acoustic handler.
var DefaultShape = Plate384

// namedShapes maps plate-format keywords to shapes.
var namedShapes = map[string]Shape{
	"96":   Plate96,
	"384":  Plate384,
	"1536": Plate1536,
}

// ShapeByName resolves a plate-format keyword ("96", "384", "1536").
func ShapeByName(name string) (Shape, error) {
	s, ok := namedShapes[strings.TrimSpace(name)]
	if !ok {
		names := make([]string, 0, len(namedShapes))
		for k := range namedShapes {
			names = append(names, k)
		}
		sort.Strings(names)
		return Shape{}, fmt.Errorf("%w: unknown plate format %q; valid formats: %v", ErrInvalidShape, name, names)
	}
	return s, nil
}

// Validate reports whether both dimensions are positive.
func (s Shape) Validate() error {
	if s.Rows <= 0 || s.Cols <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidShape, s.Rows, s.Cols)
	}
	return nil
}

// Size is the number of wells.
func (s Shape) Size() int { return s.Rows * s.Cols }

func (s Shape) String() string { return fmt.Sprintf("%dx%d", s.Rows, s.Cols) }

// Contains reports whether w lies on the plate.
func (s Shape) Contains(w Well) bool {
	return w.Row >= 0 && w.Row < s.Rows && w.Col >= 0 && w.Col < s.Cols
}

// Wells enumerates every position in row-major order (A1, A2, ..., B1, ...).
func (s Shape) Wells() []Well {
	if s.Rows <= 0 || s.Cols <= 0 {
		return nil
	}
	out := make([]Well, 0, s.Size())
	for r := 0; r < s.Rows; r++ {
		for c := 0; c < s.Cols; c++ {
			out = append(out, Well{Row: r, Col: c})
		}
	}
	return out
}

// Index returns the row-major position of w.
func (s Shape) Index(w Well) int { return w.Row*s.Cols + w.Col }
