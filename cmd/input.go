package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/gocarina/gocsv"

	"github.com/labpool/metapool/pool/picklist"
	"github.com/labpool/metapool/pool/plate"
	"github.com/labpool/metapool/pool/reads"
)

// wellRecord is one row of a plate reading: Well,Value[,Sample[,Plate]].
type wellRecord struct {
	Well   string `csv:"Well"`
	Value  string `csv:"Value"`
	Sample string `csv:"Sample"`
	Plate  string `csv:"Plate"`
}

// readRecord is one row of a read-count table.
type readRecord struct {
	Sample   string `csv:"Sample"`
	Well     string `csv:"Well"`
	Blank    string `csv:"Blank"`
	Reads    string `csv:"Reads"`
	RawReads string `csv:"RawReads"`
}

// indexRecord is one row of an index combination table.
type indexRecord struct {
	Combo      int    `csv:"Combo"`
	I5Name     string `csv:"I5Name"`
	I5Plate    string `csv:"I5Plate"`
	I5Sequence string `csv:"I5Sequence"`
	I5Well     string `csv:"I5Well"`
	I7Name     string `csv:"I7Name"`
	I7Plate    string `csv:"I7Plate"`
	I7Sequence string `csv:"I7Sequence"`
	I7Well     string `csv:"I7Well"`
}

// plateReading is a parsed plate table.
type plateReading struct {
	Values  *plate.Matrix
	Names   map[plate.Well]string
	Sources map[plate.Well]string
}

// delimiterFor picks tab for .tsv/.txt files and comma otherwise.
func delimiterFor(path string) rune {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".tsv", ".txt":
		return '\t'
	}
	return ','
}

// unmarshalTable decodes a delimited file with a header row into out.
func unmarshalTable(path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return unmarshalReader(f, delimiterFor(path), out)
}

func unmarshalReader(in io.Reader, delim rune, out interface{}) error {
	r := csv.NewReader(in)
	r.Comma = delim
	// A whitespace delimiter would be swallowed along with the padding.
	r.TrimLeadingSpace = !unicode.IsSpace(delim)
	r.FieldsPerRecord = -1
	return gocsv.UnmarshalCSV(r, out)
}

// parseValue maps blank and unparseable-as-missing cells to NaN.
func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseBlank(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "0", "f", "false", "n", "no":
		return false, nil
	case "1", "t", "true", "y", "yes":
		return true, nil
	}
	return false, fmt.Errorf("cannot parse blank flag %q", s)
}

// readPlateTable loads a Well,Value[,Sample[,Plate]] table onto a plate of
// the given shape. Wells absent from the table are NaN.
func readPlateTable(path string, shape plate.Shape, unit plate.Unit) (*plateReading, error) {
	var records []wellRecord
	if err := unmarshalTable(path, &records); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return plateFromRecords(records, shape, unit)
}

func plateFromRecords(records []wellRecord, shape plate.Shape, unit plate.Unit) (*plateReading, error) {
	values := make([]plate.WellValue, 0, len(records))
	out := &plateReading{Names: map[plate.Well]string{}, Sources: map[plate.Well]string{}}
	for i, rec := range records {
		w, err := plate.ParseWell(rec.Well)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		v, err := parseValue(rec.Value)
		if err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", i+1, w, err)
		}
		values = append(values, plate.WellValue{Well: w, Value: v})
		if rec.Sample != "" {
			out.Names[w] = rec.Sample
		}
		if rec.Plate != "" {
			out.Sources[w] = rec.Plate
		}
	}
	m, err := plate.FromWells(shape, unit, values)
	if err != nil {
		return nil, err
	}
	out.Values = m
	return out, nil
}

// readSampleTable loads a read-count table.
func readSampleTable(path string) ([]reads.Sample, error) {
	var records []readRecord
	if err := unmarshalTable(path, &records); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return samplesFromRecords(records)
}

func samplesFromRecords(records []readRecord) ([]reads.Sample, error) {
	out := make([]reads.Sample, len(records))
	for i, rec := range records {
		blank, err := parseBlank(rec.Blank)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		n, err := parseValue(rec.Reads)
		if err != nil {
			return nil, fmt.Errorf("row %d reads: %w", i+1, err)
		}
		raw, err := parseValue(rec.RawReads)
		if err != nil {
			return nil, fmt.Errorf("row %d raw reads: %w", i+1, err)
		}
		out[i] = reads.Sample{
			ID:       strings.TrimSpace(rec.Sample),
			Well:     strings.TrimSpace(rec.Well),
			Blank:    blank,
			Reads:    n,
			RawReads: raw,
		}
	}
	return out, nil
}

// readTargets loads Sample,Well rows as index-addition targets.
func readTargets(path string) ([]picklist.Target, error) {
	var records []wellRecord
	if err := unmarshalTable(path, &records); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	out := make([]picklist.Target, len(records))
	for i, rec := range records {
		w, err := plate.ParseWell(rec.Well)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		out[i] = picklist.Target{Sample: rec.Sample, Well: w}
	}
	return out, nil
}

// readIndexPairs loads an index combination table.
func readIndexPairs(path string) ([]picklist.IndexPair, error) {
	var records []indexRecord
	if err := unmarshalTable(path, &records); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	out := make([]picklist.IndexPair, len(records))
	for i, rec := range records {
		i5, err := plate.ParseWell(rec.I5Well)
		if err != nil {
			return nil, fmt.Errorf("row %d i5: %w", i+1, err)
		}
		i7, err := plate.ParseWell(rec.I7Well)
		if err != nil {
			return nil, fmt.Errorf("row %d i7: %w", i+1, err)
		}
		out[i] = picklist.IndexPair{
			Combo:      rec.Combo,
			I5Name:     rec.I5Name,
			I5Plate:    rec.I5Plate,
			I5Sequence: rec.I5Sequence,
			I5Well:     i5,
			I7Name:     rec.I7Name,
			I7Plate:    rec.I7Plate,
			I7Sequence: rec.I7Sequence,
			I7Well:     i7,
		}
	}
	return out, nil
}

// openOutput returns stdout for "" or "-", otherwise a created file.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
