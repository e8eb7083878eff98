package cmd

import (
	"fmt"
	"io"
	"math"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/labpool/metapool/pool"
	"github.com/labpool/metapool/pool/picklist"
	"github.com/labpool/metapool/pool/plate"
	"github.com/labpool/metapool/pool/reads"
)

// iseqRow is one line of the normalized pooling table. Numeric columns are
// pre-rendered so missing values come out as empty fields.
type iseqRow struct {
	Sample            string `csv:"Sample"`
	Well              string `csv:"Well"`
	Blank             bool   `csv:"Blank"`
	Reads             string `csv:"Reads"`
	Proportion        string `csv:"Proportion"`
	LoadingFactor     string `csv:"LoadingFactor"`
	Volume            string `csv:"Volume"`
	ProjectedReads    string `csv:"ProjectedReads"`
	ProjectedOnTarget string `csv:"ProjectedOnTarget"`
}

// cell renders v in its shortest exact decimal form, empty when missing.
func cell(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return decimal.NewFromFloat(v).String()
}

// iseqRun holds the inputs of one read-count normalization.
type iseqRun struct {
	Input         string
	Options       reads.Options
	TotalOutput   float64 // projected reads of the next run; 0 skips projection
	SurvivalSteps int     // 0 skips the read-survival table
}

// runISeq normalizes pooling volumes from observed read counts and writes the
// table to out. When pick is non-nil a pooling picklist is written there too.
func runISeq(r iseqRun, b *pool.PolicyBundle, out, pick io.Writer) error {
	samples, err := readSampleTable(r.Input)
	if err != nil {
		return err
	}
	pooled, err := reads.Normalize(samples, r.Options)
	if err != nil {
		return err
	}
	depths, err := reads.EstimateDepth(pooled, r.TotalOutput)
	if err != nil {
		return err
	}
	if r.TotalOutput > 0 {
		if summary, err := reads.Summarize(depths); err == nil {
			logrus.Infof("projected depth over %d samples: min %.0f, median %.0f, mean %.0f, max %.0f",
				summary.Samples, summary.Min, summary.Median, summary.Mean, summary.Max)
		}
	}
	if r.SurvivalSteps > 0 {
		if err := logSurvival(samples, r.SurvivalSteps); err != nil {
			return err
		}
	}

	rows := make([]iseqRow, len(pooled))
	for i, p := range pooled {
		rows[i] = iseqRow{
			Sample:            p.ID,
			Well:              p.Well,
			Blank:             p.Blank,
			Reads:             cell(p.Reads),
			Proportion:        cell(p.Proportion),
			LoadingFactor:     cell(p.LoadingFactor),
			Volume:            cell(p.Volume),
			ProjectedReads:    cell(depths[i].ProjectedReads),
			ProjectedOnTarget: cell(depths[i].ProjectedOnTarget),
		}
	}
	if err := gocsv.Marshal(&rows, out); err != nil {
		return fmt.Errorf("writing pooling table: %w", err)
	}

	if pick == nil {
		return nil
	}
	vols, err := volumesOnPlate(pooled, b.Shape())
	if err != nil {
		return err
	}
	entries, err := picklist.Pooling(vols, nil, b.PoolingOptions())
	if err != nil {
		return err
	}
	return picklist.WritePooling(pick, entries, b.Format())
}

// volumesOnPlate lays normalized volumes onto the plate by well label.
func volumesOnPlate(pooled []reads.Pooled, shape plate.Shape) (*plate.Matrix, error) {
	values := make([]plate.WellValue, 0, len(pooled))
	for _, p := range pooled {
		w, err := plate.ParseWell(p.Well)
		if err != nil {
			return nil, fmt.Errorf("sample %s: %w", p.ID, err)
		}
		values = append(values, plate.WellValue{Well: w, Value: p.Volume})
	}
	return plate.FromWells(shape, plate.Nanoliters, values)
}

// logSurvival reports how many non-blank samples keep at least each of steps
// evenly spaced read thresholds up to the largest observed count.
func logSurvival(samples []reads.Sample, steps int) error {
	var counts []float64
	hi := 0.0
	for _, s := range samples {
		if s.Blank || !(s.Reads >= 0) {
			continue
		}
		counts = append(counts, s.Reads)
		if s.Reads > hi {
			hi = s.Reads
		}
	}
	if hi == 0 {
		logrus.Warn("read survival: no reads observed")
		return nil
	}
	points, err := reads.Survival(counts, 0, hi, steps)
	if err != nil {
		return err
	}
	for _, p := range points {
		logrus.Infof("read survival: %d of %d samples with >= %.0f reads", p.Remaining, len(counts), p.Threshold)
	}
	return nil
}

var (
	iseqInput         string
	iseqOutput        string
	iseqPicklist      string
	iseqMode          string
	iseqTargetReads   float64
	iseqTotalOutput   float64
	iseqSurvivalSteps int
)

var iseqCmd = &cobra.Command{
	Use:   "iseq",
	Short: "Rebalance pooling volumes from shallow-run read counts",
	Run: func(cmd *cobra.Command, args []string) {
		opts := bundle.NormalizeOptions()
		if cmd.Flags().Changed("mode") {
			opts.Mode = iseqMode
		}
		if cmd.Flags().Changed("target-reads") {
			opts.TargetReads = iseqTargetReads
		}
		if err := opts.Validate(); err != nil {
			logrus.Fatalf("Invalid read normalization options: %v", err)
		}

		out, err := openOutput(iseqOutput)
		if err != nil {
			logrus.Fatalf("Failed to open output: %v", err)
		}
		defer out.Close()

		var pick io.WriteCloser
		if iseqPicklist != "" {
			if pick, err = openOutput(iseqPicklist); err != nil {
				logrus.Fatalf("Failed to open picklist output: %v", err)
			}
			defer pick.Close()
		}

		r := iseqRun{Input: iseqInput, Options: opts, TotalOutput: iseqTotalOutput, SurvivalSteps: iseqSurvivalSteps}
		var pickWriter io.Writer
		if pick != nil {
			pickWriter = pick
		}
		if err := runISeq(r, bundle, out, pickWriter); err != nil {
			logrus.Fatalf("Read normalization failed: %v", err)
		}
	},
}

func init() {
	iseqCmd.Flags().StringVar(&iseqInput, "input", "", "Read-count table with Sample,Well,Blank,Reads[,RawReads] columns")
	iseqCmd.Flags().StringVar(&iseqOutput, "output", "-", "Pooling table destination (- for stdout)")
	iseqCmd.Flags().StringVar(&iseqPicklist, "picklist", "", "Also write a pooling picklist here")
	iseqCmd.Flags().StringVar(&iseqMode, "mode", reads.ModeProportional, "Normalization mode (proportional or linear), overrides reads.mode")
	iseqCmd.Flags().Float64Var(&iseqTargetReads, "target-reads", 0, "Target reads per sample (0 = mean of non-blank samples), overrides reads.target_reads")
	iseqCmd.Flags().Float64Var(&iseqTotalOutput, "total-output", 0, "Projected reads of the full run, for per-sample depth estimates")
	iseqCmd.Flags().IntVar(&iseqSurvivalSteps, "survival-steps", 0, "Log a read-survival table with this many thresholds")
	_ = iseqCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(iseqCmd)
}
