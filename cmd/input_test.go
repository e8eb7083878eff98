package cmd

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labpool/metapool/pool/plate"
)

func TestDelimiterFor(t *testing.T) {
	assert.Equal(t, '\t', delimiterFor("reads.tsv"))
	assert.Equal(t, '\t', delimiterFor("READS.TXT"))
	assert.Equal(t, ',', delimiterFor("reads.csv"))
	assert.Equal(t, ',', delimiterFor("reads"))
}

func TestReadPlateTable_TabDelimited_BlanksAreNaN(t *testing.T) {
	// GIVEN a tab-delimited reading with one empty value and one unlisted well
	path := writeTempFile(t, "cp.tsv", "Well\tValue\tSample\tPlate\nA1\t20.5\ts1\tP1\nA2\t\ts2\tP1\nB1\t22\ts3\t\n")
	shape := plate.Shape{Rows: 2, Cols: 2}

	// WHEN the table is read
	got, err := readPlateTable(path, shape, plate.Cycles)
	require.NoError(t, err)

	// THEN listed values land on their wells and everything else is NaN
	assert.Equal(t, plate.Cycles, got.Values.Unit())
	assert.Equal(t, 20.5, got.Values.At(plate.MustParseWell("A1")))
	assert.True(t, math.IsNaN(got.Values.At(plate.MustParseWell("A2"))))
	assert.Equal(t, 22.0, got.Values.At(plate.MustParseWell("B1")))
	assert.True(t, math.IsNaN(got.Values.At(plate.MustParseWell("B2"))))

	// AND sample names and source plates are kept per well
	assert.Equal(t, "s2", got.Names[plate.MustParseWell("A2")])
	assert.Equal(t, "P1", got.Sources[plate.MustParseWell("A1")])
	_, ok := got.Sources[plate.MustParseWell("B1")]
	assert.False(t, ok, "empty Plate cell must not register a source")
}

func TestPlateFromRecords_Errors(t *testing.T) {
	shape := plate.Shape{Rows: 2, Cols: 2}
	tests := []struct {
		name    string
		records []wellRecord
	}{
		{"bad label", []wellRecord{{Well: "1A", Value: "1"}}},
		{"bad value", []wellRecord{{Well: "A1", Value: "high"}}},
		{"outside plate", []wellRecord{{Well: "C1", Value: "1"}}},
		{"duplicate well", []wellRecord{{Well: "A1", Value: "1"}, {Well: "A01", Value: "2"}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := plateFromRecords(tc.records, shape, plate.Nanomolar)
			assert.Error(t, err)
		})
	}
}

func TestUnmarshalReader_SampleTable(t *testing.T) {
	// GIVEN a read-count table with a blank flag and a missing raw-read column value
	in := "Sample,Well,Blank,Reads,RawReads\ns1,A1,false,100,200\nblank1,A2,TRUE,5,\ns2,A3,,,\n"

	var records []readRecord
	require.NoError(t, unmarshalReader(strings.NewReader(in), ',', &records))
	samples, err := samplesFromRecords(records)
	require.NoError(t, err)

	// THEN every row is parsed in order
	require.Len(t, samples, 3)
	assert.Equal(t, "s1", samples[0].ID)
	assert.Equal(t, 100.0, samples[0].Reads)
	assert.Equal(t, 200.0, samples[0].RawReads)
	assert.True(t, samples[1].Blank)
	assert.True(t, math.IsNaN(samples[1].RawReads))
	assert.False(t, samples[2].Blank)
	assert.True(t, math.IsNaN(samples[2].Reads))
}

func TestSamplesFromRecords_BadBlankFlag(t *testing.T) {
	_, err := samplesFromRecords([]readRecord{{Sample: "s1", Well: "A1", Blank: "maybe", Reads: "1"}})
	assert.ErrorContains(t, err, "blank flag")
}

func TestReadIndexPairs_BadWell(t *testing.T) {
	path := writeTempFile(t, "idx.csv", "Combo,I5Name,I5Plate,I5Sequence,I5Well,I7Name,I7Plate,I7Sequence,I7Well\n1,a,p5,AC,A1,b,p7,GT,??\n")
	_, err := readIndexPairs(path)
	assert.ErrorContains(t, err, "i7")
}

func TestOpenOutput_DashIsStdout(t *testing.T) {
	w, err := openOutput("-")
	require.NoError(t, err)
	_, ok := w.(nopCloser)
	assert.True(t, ok)
	assert.NoError(t, w.Close())
}
