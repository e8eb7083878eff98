package reads

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"github.com/sirupsen/logrus"
)

// Depth is the projected sequencing yield of one sample.
type Depth struct {
	ID             string
	Blank          bool
	Fraction       float64 // share of the pooled volume
	ProjectedReads float64
	// ProjectedOnTarget scales ProjectedReads by the observed on-target rate;
	// NaN when raw reads are unknown.
	ProjectedOnTarget float64
}

// EstimateDepth spreads totalOutput reads over samples in proportion to their
// pooling volume. An empty pool projects zero reads everywhere.
func EstimateDepth(pooled []Pooled, totalOutput float64) ([]Depth, error) {
	if !(totalOutput >= 0) || math.IsInf(totalOutput, 0) {
		return nil, fmt.Errorf("estimated total output must be non-negative, got %v", totalOutput)
	}
	var totalVol float64
	for _, p := range pooled {
		if p.Volume > 0 {
			totalVol += p.Volume
		}
	}
	if totalVol == 0 && len(pooled) > 0 {
		logrus.Warn("estimate depth: pooled volume is zero; projecting no reads")
	}

	out := make([]Depth, len(pooled))
	for i, p := range pooled {
		d := Depth{ID: p.ID, Blank: p.Blank, ProjectedOnTarget: math.NaN()}
		if totalVol > 0 && p.Volume > 0 {
			d.Fraction = p.Volume / totalVol
		}
		d.ProjectedReads = d.Fraction * totalOutput
		if hasReads(p.RawReads) && !math.IsNaN(p.Reads) {
			d.ProjectedOnTarget = d.ProjectedReads * p.Reads / p.RawReads
		}
		out[i] = d
	}
	return out, nil
}

// DepthSummary describes projected reads over non-blank samples.
type DepthSummary struct {
	Samples int
	Min     float64
	Median  float64
	Mean    float64
	Max     float64
}

// Summarize computes DepthSummary over the non-blank samples.
func Summarize(depths []Depth) (DepthSummary, error) {
	var data stats.Float64Data
	for _, d := range depths {
		if !d.Blank {
			data = append(data, d.ProjectedReads)
		}
	}
	if len(data) == 0 {
		return DepthSummary{}, fmt.Errorf("%w: no non-blank samples", ErrInvalidTable)
	}
	summary := DepthSummary{Samples: len(data)}
	var err error
	if summary.Min, err = stats.Min(data); err != nil {
		return DepthSummary{}, err
	}
	if summary.Median, err = stats.Median(data); err != nil {
		return DepthSummary{}, err
	}
	if summary.Mean, err = stats.Mean(data); err != nil {
		return DepthSummary{}, err
	}
	if summary.Max, err = stats.Max(data); err != nil {
		return DepthSummary{}, err
	}
	return summary, nil
}

// SurvivalPoint counts the samples still at or above Threshold reads.
type SurvivalPoint struct {
	Threshold float64
	Remaining int
}

// Survival counts, for steps evenly spaced thresholds starting at lo and
// stepping (hi−lo)/steps, how many samples have at least that many reads.
func Survival(counts []float64, lo, hi float64, steps int) ([]SurvivalPoint, error) {
	if steps <= 0 {
		return nil, fmt.Errorf("steps must be positive, got %d", steps)
	}
	if !(hi > lo) {
		return nil, fmt.Errorf("upper bound %v must exceed lower bound %v", hi, lo)
	}
	step := (hi - lo) / float64(steps)
	out := make([]SurvivalPoint, steps)
	for k := range out {
		threshold := lo + float64(k)*step
		remaining := 0
		for _, c := range counts {
			if c >= threshold {
				remaining++
			}
		}
		out[k] = SurvivalPoint{Threshold: threshold, Remaining: remaining}
	}
	return out, nil
}

// LinearTransform maps values linearly from their own [min, max] onto
// [outMin, outMax]. If all values are equal every output is outMin.
func LinearTransform(values []float64, outMin, outMax float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	inMin, inMax := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		inMin = math.Min(inMin, v)
		inMax = math.Max(inMax, v)
	}
	inRange := inMax - inMin
	for i, v := range values {
		if inRange == 0 {
			out[i] = outMin
			continue
		}
		out[i] = (v-inMin)*(outMax-outMin)/inRange + outMin
	}
	return out
}
