package picklist

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

// Format controls how picklists are rendered.
type Format struct {
	Delimiter rune
	// Decimals is the number of fractional digits for transfer volumes.
	Decimals int32
}

// Delimiter names accepted by ParseDelimiter.
const (
	DelimiterComma = "comma"
	DelimiterTab   = "tab"
)

// ValidDelimiters is the set of recognized delimiter names. Empty selects comma.
var ValidDelimiters = map[string]bool{"": true, DelimiterComma: true, DelimiterTab: true}

// ParseDelimiter maps a delimiter name to its rune.
func ParseDelimiter(name string) (rune, error) {
	switch name {
	case "", DelimiterComma:
		return ',', nil
	case DelimiterTab:
		return '\t', nil
	}
	return 0, fmt.Errorf("unknown delimiter %q (want comma or tab)", name)
}

// DefaultFormat is comma-delimited with two-decimal volumes.
func DefaultFormat() Format { return Format{Delimiter: ',', Decimals: 2} }

// Validate rejects delimiters the CSV writer cannot use.
func (f Format) Validate() error {
	switch f.Delimiter {
	case 0, '"', '\r', '\n', utf8.RuneError:
		return fmt.Errorf("invalid delimiter %q", f.Delimiter)
	}
	if f.Decimals < 0 || f.Decimals > 9 {
		return fmt.Errorf("decimals must be in [0, 9], got %d", f.Decimals)
	}
	return nil
}

// volume rounds the exact binary value half-to-even, as printf's %.Nf does.
func (f Format) volume(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', int(f.Decimals), 64)
}

func concentration(c float64) string {
	if math.IsNaN(c) || math.IsInf(c, 0) {
		return ""
	}
	return decimal.NewFromFloat(c).String()
}

type poolingRow struct {
	SourcePlate     string `csv:"Source Plate Name"`
	SourcePlateType string `csv:"Source Plate Type"`
	SourceWell      string `csv:"Source Well"`
	Concentration   string `csv:"Concentration"`
	Volume          string `csv:"Transfer Volume"`
	DestPlate       string `csv:"Destination Plate Name"`
	DestWell        string `csv:"Destination Well"`
}

type normalizationRow struct {
	Sample          string `csv:"Sample"`
	SourcePlate     string `csv:"Source Plate Name"`
	SourcePlateType string `csv:"Source Plate Type"`
	SourceWell      string `csv:"Source Well"`
	Concentration   string `csv:"Concentration"`
	Volume          string `csv:"Transfer Volume"`
	DestPlate       string `csv:"Destination Plate Name"`
	DestWell        string `csv:"Destination Well"`
}

type indexRow struct {
	Sample          string `csv:"Sample"`
	SourcePlate     string `csv:"Source Plate Name"`
	SourcePlateType string `csv:"Source Plate Type"`
	SourceWell      string `csv:"Source Well"`
	Volume          string `csv:"Transfer Volume"`
	IndexName       string `csv:"Index Name"`
	IndexSequence   string `csv:"Index Sequence"`
	IndexCombo      string `csv:"Index Combo"`
	DestPlate       string `csv:"Destination Plate Name"`
	DestWell        string `csv:"Destination Well"`
}

// WritePooling renders a pooling picklist (no Sample column).
func WritePooling(w io.Writer, entries []Entry, f Format) error {
	rows := make([]poolingRow, len(entries))
	for i, e := range entries {
		rows[i] = poolingRow{
			SourcePlate:     e.SourcePlate,
			SourcePlateType: e.SourcePlateType,
			SourceWell:      e.SourceWell.String(),
			Concentration:   concentration(e.Concentration),
			Volume:          f.volume(e.Volume),
			DestPlate:       e.DestPlate,
			DestWell:        e.DestWell.String(),
		}
	}
	return marshal(w, &rows, f)
}

// WriteNormalization renders a DNA-normalization picklist.
func WriteNormalization(w io.Writer, entries []Entry, f Format) error {
	rows := make([]normalizationRow, len(entries))
	for i, e := range entries {
		rows[i] = normalizationRow{
			Sample:          e.Sample,
			SourcePlate:     e.SourcePlate,
			SourcePlateType: e.SourcePlateType,
			SourceWell:      e.SourceWell.String(),
			Concentration:   concentration(e.Concentration),
			Volume:          f.volume(e.Volume),
			DestPlate:       e.DestPlate,
			DestWell:        e.DestWell.String(),
		}
	}
	return marshal(w, &rows, f)
}

// WriteIndex renders an index-addition picklist.
func WriteIndex(w io.Writer, entries []IndexEntry, f Format) error {
	rows := make([]indexRow, len(entries))
	for i, e := range entries {
		rows[i] = indexRow{
			Sample:          e.Sample,
			SourcePlate:     e.SourcePlate,
			SourcePlateType: e.SourcePlateType,
			SourceWell:      e.SourceWell.String(),
			Volume:          f.volume(e.Volume),
			IndexName:       e.IndexName,
			IndexSequence:   e.IndexSequence,
			IndexCombo:      strconv.Itoa(e.IndexCombo),
			DestPlate:       e.DestPlate,
			DestWell:        e.DestWell.String(),
		}
	}
	return marshal(w, &rows, f)
}

func marshal(w io.Writer, rows interface{}, f Format) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("write picklist: %w", err)
	}
	cw := csv.NewWriter(w)
	cw.Comma = f.Delimiter
	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(cw)); err != nil {
		return fmt.Errorf("write picklist: %w", err)
	}
	cw.Flush()
	return cw.Error()
}
