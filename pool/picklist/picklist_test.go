package picklist

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labpool/metapool/pool/plate"
)

func destLabels(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.DestWell.String()
	}
	return out
}

func TestPooling_RollsOverWhenNextTransferWouldOverflow(t *testing.T) {
	// GIVEN six source wells and a 26 nL destination capacity
	vols := plate.MustFromRows(plate.Nanoliters, [][]float64{{10, 10, 5, 5, 10, 10}})
	opts := DefaultPoolingOptions()
	opts.MaxVolumePerWell = 26

	// WHEN the pooling picklist is built
	entries, err := Pooling(vols, nil, opts)
	require.NoError(t, err)

	// THEN the fourth transfer (25+5 > 26) starts the second destination
	assert.Equal(t, []string{"A1", "A1", "A1", "A2", "A2", "A2"}, destLabels(entries))
}

func TestPooling_MissingVolumeCountsAsZero(t *testing.T) {
	vols := plate.MustFromRows(plate.Nanoliters, [][]float64{{10, 10, math.NaN(), 5, 10, 10}})
	opts := DefaultPoolingOptions()
	opts.MaxVolumePerWell = 26

	entries, err := Pooling(vols, nil, opts)
	require.NoError(t, err)

	assert.Equal(t, []string{"A1", "A1", "A1", "A1", "A2", "A2"}, destLabels(entries))
	assert.Equal(t, 0.0, entries[2].Volume)

	var buf bytes.Buffer
	require.NoError(t, WritePooling(&buf, entries, DefaultFormat()))
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	assert.Equal(t, "1,384LDV_AQ_B2_HT,A3,,0.00,NormalizedDNA,A1", lines[3])
	assert.NotContains(t, buf.String(), "NaN")
}

func TestPooling_DestinationWrapsRowMajor(t *testing.T) {
	// GIVEN a 2x3 destination plate and transfers that each fill a well
	vols := plate.MustFromRows(plate.Nanoliters, [][]float64{{10, 10, 10, 10}})
	opts := DefaultPoolingOptions()
	opts.MaxVolumePerWell = 10
	opts.DestShape = plate.Shape{Rows: 2, Cols: 3}

	entries, err := Pooling(vols, nil, opts)
	require.NoError(t, err)

	// THEN destination crosses from the end of row A to B1
	assert.Equal(t, []string{"A1", "A2", "A3", "B1"}, destLabels(entries))
}

func TestPooling_DestinationOverflow(t *testing.T) {
	vols := plate.MustFromRows(plate.Nanoliters, [][]float64{{10, 10, 10}})
	opts := DefaultPoolingOptions()
	opts.MaxVolumePerWell = 10
	opts.DestShape = plate.Shape{Rows: 1, Cols: 2}

	_, err := Pooling(vols, nil, opts)
	assert.ErrorIs(t, err, ErrDestinationOverflow)
}

func TestPooling_InvalidInput(t *testing.T) {
	vols := plate.MustFromRows(plate.Nanoliters, [][]float64{{10, 10}})

	opts := DefaultPoolingOptions()
	opts.MaxVolumePerWell = 0
	_, err := Pooling(vols, nil, opts)
	assert.Error(t, err)

	concs := plate.MustFromRows(plate.Nanomolar, [][]float64{{1, 2, 3}})
	_, err = Pooling(vols, concs, DefaultPoolingOptions())
	assert.ErrorIs(t, err, plate.ErrShapeMismatch)

	_, err = Pooling(concs, nil, DefaultPoolingOptions())
	assert.ErrorIs(t, err, plate.ErrUnitMismatch)

	neg := plate.MustFromRows(plate.Nanoliters, [][]float64{{10, -1}})
	_, err = Pooling(neg, nil, DefaultPoolingOptions())
	assert.Error(t, err)
}

func TestWritePooling_ExactText(t *testing.T) {
	vols := plate.MustFromRows(plate.Nanoliters, [][]float64{{10, 10, 5, 5, 10, 10}})
	opts := DefaultPoolingOptions()
	opts.MaxVolumePerWell = 26
	entries, err := Pooling(vols, nil, opts)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WritePooling(&buf, entries, DefaultFormat()))

	want := "Source Plate Name,Source Plate Type,Source Well,Concentration,Transfer Volume,Destination Plate Name,Destination Well\n" +
		"1,384LDV_AQ_B2_HT,A1,,10.00,NormalizedDNA,A1\n" +
		"1,384LDV_AQ_B2_HT,A2,,10.00,NormalizedDNA,A1\n" +
		"1,384LDV_AQ_B2_HT,A3,,5.00,NormalizedDNA,A1\n" +
		"1,384LDV_AQ_B2_HT,A4,,5.00,NormalizedDNA,A2\n" +
		"1,384LDV_AQ_B2_HT,A5,,10.00,NormalizedDNA,A2\n" +
		"1,384LDV_AQ_B2_HT,A6,,10.00,NormalizedDNA,A2\n"
	assert.Equal(t, want, buf.String())
}

func TestWritePooling_ConcentrationColumn(t *testing.T) {
	vols := plate.MustFromRows(plate.Nanoliters, [][]float64{{1234.5678, 0}})
	concs := plate.MustFromRows(plate.Nanomolar, [][]float64{{7.89, math.NaN()}})
	entries, err := Pooling(vols, concs, DefaultPoolingOptions())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WritePooling(&buf, entries, Format{Delimiter: '\t', Decimals: 1}))
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "1\t384LDV_AQ_B2_HT\tA1\t7.89\t1234.6\tNormalizedDNA\tA1", lines[1])
	assert.Equal(t, "1\t384LDV_AQ_B2_HT\tA2\t\t0.0\tNormalizedDNA\tA1", lines[2])
}

func TestFormat_VolumeRoundsLikePrintf(t *testing.T) {
	// GIVEN volumes whose shortest decimal form sits on a rounding boundary
	f := DefaultFormat()

	// THEN rounding follows the exact binary value, half to even
	assert.Equal(t, "0.12", f.volume(0.125))
	assert.Equal(t, "1.00", f.volume(1.005))
	assert.Equal(t, "2.67", f.volume(2.675))
	assert.Equal(t, "0.00", f.volume(math.NaN()))
	assert.Equal(t, "250", Format{Delimiter: ',', Decimals: 0}.volume(250))
}

func normalizationFixture() (sample, water, concs *plate.Matrix, opts NormalizationOptions) {
	sample = plate.MustFromRows(plate.Nanoliters, [][]float64{{2500, 632.5}, {3500, 3500}})
	water = plate.MustFromRows(plate.Nanoliters, [][]float64{{1000, 2867.5}, {0, 0}})
	concs = plate.MustFromRows(plate.NanogramsPerMicroliter, [][]float64{{2, 7.89}, {math.NaN(), 0}})
	opts = DefaultNormalizationOptions()
	opts.Names = map[plate.Well]string{
		plate.MustParseWell("A1"): "sam1",
		plate.MustParseWell("A2"): "sam2",
		plate.MustParseWell("B1"): "blank1",
		plate.MustParseWell("B2"): "sam3",
	}
	return sample, water, concs, opts
}

func TestWriteNormalization_WaterThenSample(t *testing.T) {
	sample, water, concs, opts := normalizationFixture()

	entries, err := DNANormalization(sample, water, concs, opts)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteNormalization(&buf, entries, Format{Delimiter: '\t', Decimals: 2}))

	want := "Sample\tSource Plate Name\tSource Plate Type\tSource Well\tConcentration\tTransfer Volume\tDestination Plate Name\tDestination Well\n" +
		"sam1\tWater\t384PP_AQ_BP2_HT\tA1\t2\t1000.00\tNormalizedDNA\tA1\n" +
		"sam2\tWater\t384PP_AQ_BP2_HT\tA2\t7.89\t2867.50\tNormalizedDNA\tA2\n" +
		"blank1\tWater\t384PP_AQ_BP2_HT\tB1\t\t0.00\tNormalizedDNA\tB1\n" +
		"sam3\tWater\t384PP_AQ_BP2_HT\tB2\t0\t0.00\tNormalizedDNA\tB2\n" +
		"sam1\tSample\t384PP_AQ_BP2_HT\tA1\t2\t2500.00\tNormalizedDNA\tA1\n" +
		"sam2\tSample\t384PP_AQ_BP2_HT\tA2\t7.89\t632.50\tNormalizedDNA\tA2\n" +
		"blank1\tSample\t384PP_AQ_BP2_HT\tB1\t\t3500.00\tNormalizedDNA\tB1\n" +
		"sam3\tSample\t384PP_AQ_BP2_HT\tB2\t0\t3500.00\tNormalizedDNA\tB2\n"
	assert.Equal(t, want, buf.String())
}

func TestDNANormalization_DestinationWellsAndSourcePlates(t *testing.T) {
	sample, water, concs, opts := normalizationFixture()
	opts.DestWells = map[plate.Well]plate.Well{
		plate.MustParseWell("A1"): plate.MustParseWell("D1"),
		plate.MustParseWell("A2"): plate.MustParseWell("D2"),
		plate.MustParseWell("B1"): plate.MustParseWell("E1"),
		plate.MustParseWell("B2"): plate.MustParseWell("E2"),
	}
	opts.SourcePlates = map[plate.Well]string{
		plate.MustParseWell("A1"): "Sample_Plate1",
		plate.MustParseWell("A2"): "Sample_Plate1",
		plate.MustParseWell("B1"): "Sample_Plate2",
		plate.MustParseWell("B2"): "Sample_Plate2",
	}

	entries, err := DNANormalization(sample, water, concs, opts)
	require.NoError(t, err)
	require.Len(t, entries, 8)

	dests := destLabels(entries)
	assert.Equal(t, []string{"D1", "D2", "E1", "E2", "D1", "D2", "E1", "E2"}, dests)

	// water always comes from the water plate
	for _, e := range entries[:4] {
		assert.Equal(t, DefaultWaterPlateName, e.SourcePlate)
	}
	assert.Equal(t, "Sample_Plate1", entries[4].SourcePlate)
	assert.Equal(t, "Sample_Plate2", entries[7].SourcePlate)
}

func TestDNANormalization_ShapeMismatch(t *testing.T) {
	sample, _, concs, opts := normalizationFixture()
	water := plate.MustFromRows(plate.Nanoliters, [][]float64{{0, 0, 0}})
	_, err := DNANormalization(sample, water, concs, opts)
	assert.ErrorIs(t, err, plate.ErrShapeMismatch)
}

func indexFixture() ([]Target, []IndexPair) {
	targets := []Target{
		{Sample: "sam1", Well: plate.MustParseWell("A1")},
		{Sample: "sam2", Well: plate.MustParseWell("A2")},
		{Sample: "blank1", Well: plate.MustParseWell("B1")},
		{Sample: "sam3", Well: plate.MustParseWell("B2")},
	}
	i5 := []struct{ name, seq, well string }{
		{"iTru5_01_A", "ACCGACAA", "A1"},
		{"iTru5_01_B", "AGTGGCAA", "B1"},
		{"iTru5_01_C", "CACAGACT", "C1"},
		{"iTru5_01_D", "CGACACTT", "D1"},
	}
	i7 := []struct{ name, seq, well string }{
		{"iTru7_101_01", "ACGTTACC", "A1"},
		{"iTru7_101_02", "CTGTGTTG", "A2"},
		{"iTru7_101_03", "TGAGGTGT", "A3"},
		{"iTru7_101_04", "GATCCATG", "A4"},
	}
	pairs := make([]IndexPair, len(i5))
	for i := range pairs {
		pairs[i] = IndexPair{
			Combo:      i,
			I5Name:     i5[i].name,
			I5Plate:    "iTru5_plate",
			I5Sequence: i5[i].seq,
			I5Well:     plate.MustParseWell(i5[i].well),
			I7Name:     i7[i].name,
			I7Plate:    "iTru7_plate",
			I7Sequence: i7[i].seq,
			I7Well:     plate.MustParseWell(i7[i].well),
		}
	}
	return targets, pairs
}

func TestWriteIndex_I5ThenI7(t *testing.T) {
	targets, pairs := indexFixture()

	entries, err := IndexAddition(targets, pairs, DefaultIndexOptions())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteIndex(&buf, entries, Format{Delimiter: '\t', Decimals: 0}))

	want := "Sample\tSource Plate Name\tSource Plate Type\tSource Well\tTransfer Volume\tIndex Name\tIndex Sequence\tIndex Combo\tDestination Plate Name\tDestination Well\n" +
		"sam1\tiTru5_plate\t384LDV_AQ_B2_HT\tA1\t250\tiTru5_01_A\tACCGACAA\t0\tIndexPCRPlate\tA1\n" +
		"sam2\tiTru5_plate\t384LDV_AQ_B2_HT\tB1\t250\tiTru5_01_B\tAGTGGCAA\t1\tIndexPCRPlate\tA2\n" +
		"blank1\tiTru5_plate\t384LDV_AQ_B2_HT\tC1\t250\tiTru5_01_C\tCACAGACT\t2\tIndexPCRPlate\tB1\n" +
		"sam3\tiTru5_plate\t384LDV_AQ_B2_HT\tD1\t250\tiTru5_01_D\tCGACACTT\t3\tIndexPCRPlate\tB2\n" +
		"sam1\tiTru7_plate\t384LDV_AQ_B2_HT\tA1\t250\tiTru7_101_01\tACGTTACC\t0\tIndexPCRPlate\tA1\n" +
		"sam2\tiTru7_plate\t384LDV_AQ_B2_HT\tA2\t250\tiTru7_101_02\tCTGTGTTG\t1\tIndexPCRPlate\tA2\n" +
		"blank1\tiTru7_plate\t384LDV_AQ_B2_HT\tA3\t250\tiTru7_101_03\tTGAGGTGT\t2\tIndexPCRPlate\tB1\n" +
		"sam3\tiTru7_plate\t384LDV_AQ_B2_HT\tA4\t250\tiTru7_101_04\tGATCCATG\t3\tIndexPCRPlate\tB2\n"
	assert.Equal(t, want, buf.String())
}

func TestIndexAddition_TooFewIndices(t *testing.T) {
	targets, pairs := indexFixture()
	_, err := IndexAddition(targets, pairs[:2], DefaultIndexOptions())
	assert.Error(t, err)
}

func TestParseDelimiter(t *testing.T) {
	r, err := ParseDelimiter("tab")
	require.NoError(t, err)
	assert.Equal(t, '\t', r)

	r, err = ParseDelimiter("")
	require.NoError(t, err)
	assert.Equal(t, ',', r)

	_, err = ParseDelimiter("pipe")
	assert.Error(t, err)
}

func TestFormat_Validate(t *testing.T) {
	assert.NoError(t, DefaultFormat().Validate())
	assert.Error(t, Format{Delimiter: '"', Decimals: 2}.Validate())
	assert.Error(t, Format{Delimiter: ',', Decimals: -1}.Validate())

	var buf bytes.Buffer
	assert.Error(t, WritePooling(&buf, nil, Format{}))
}
