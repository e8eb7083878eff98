package plate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowLabel_KnownValues(t *testing.T) {
	tests := []struct {
		row  int
		want string
	}{
		{0, "A"},
		{7, "H"},
		{15, "P"},
		{25, "Z"},
		{26, "AA"},
		{27, "AB"},
		{31, "AF"},
		{51, "AZ"},
		{52, "BA"},
		{701, "ZZ"},
		{702, "AAA"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, RowLabel(tt.row))
			got, err := ParseRowLabel(tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.row, got)
		})
	}
}

func TestWellLabel_RoundTripsForSupportedPlates(t *testing.T) {
	for _, shape := range []Shape{Plate96, Plate384, Plate1536, {Rows: 60, Cols: 3}} {
		t.Run(shape.String(), func(t *testing.T) {
			seen := make(map[string]bool, shape.Size())
			for _, w := range shape.Wells() {
				label := w.String()
				if seen[label] {
					t.Fatalf("label %q produced twice", label)
				}
				seen[label] = true

				parsed, err := ParseWell(label)
				require.NoError(t, err)
				if parsed != w {
					t.Fatalf("ParseWell(%q) = %+v, want %+v", label, parsed, w)
				}
			}
		})
	}
}

func TestParseWell_AcceptsLowerCaseAndPaddedColumns(t *testing.T) {
	w, err := ParseWell("p24")
	require.NoError(t, err)
	assert.Equal(t, Well{Row: 15, Col: 23}, w)

	w, err = ParseWell(" A01 ")
	require.NoError(t, err)
	assert.Equal(t, Well{Row: 0, Col: 0}, w)
	assert.Equal(t, "A1", w.String())
}

func TestParseWell_Invalid(t *testing.T) {
	for _, label := range []string{"", "1", "A", "A0", "A-1", "Ä1", "A1x", "12B"} {
		t.Run(label, func(t *testing.T) {
			_, err := ParseWell(label)
			assert.Error(t, err)
		})
	}
}

func TestShapeByName(t *testing.T) {
	s, err := ShapeByName("384")
	require.NoError(t, err)
	assert.Equal(t, Plate384, s)

	s, err = ShapeByName("96")
	require.NoError(t, err)
	assert.Equal(t, 96, s.Size())

	_, err = ShapeByName("48")
	assert.ErrorIs(t, err, ErrInvalidShape)
}

func TestShape_WellsAreRowMajor(t *testing.T) {
	wells := Shape{Rows: 2, Cols: 3}.Wells()
	labels := make([]string, len(wells))
	for i, w := range wells {
		labels[i] = w.String()
	}
	assert.Equal(t, []string{"A1", "A2", "A3", "B1", "B2", "B3"}, labels)
}

func TestShape_Validate(t *testing.T) {
	assert.NoError(t, Plate96.Validate())
	assert.ErrorIs(t, Shape{Rows: 0, Cols: 24}.Validate(), ErrInvalidShape)
	assert.ErrorIs(t, Shape{Rows: 16, Cols: -1}.Validate(), ErrInvalidShape)
}
