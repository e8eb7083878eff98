package cmd

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/labpool/metapool/pool"
	"github.com/labpool/metapool/pool/picklist"
)

// runNormalize computes DNA normalization volumes for the plate in input and
// writes the water-then-sample picklist to out.
func runNormalize(input, signal string, b *pool.PolicyBundle, f picklist.Format, out io.Writer) error {
	unit, ok := signalUnits[signal]
	if !ok || (signal != signalRFU && signal != signalNgUL) {
		return fmt.Errorf("normalization needs a mass signal (%s or %s), got %q", signalRFU, signalNgUL, signal)
	}
	reading, err := readPlateTable(input, b.Shape(), unit)
	if err != nil {
		return err
	}
	conc, err := massConcentrations(reading.Values, signal, b)
	if err != nil {
		return err
	}

	norm := b.DNANormalization()
	alloc, err := norm.Allocate(conc)
	if err != nil {
		return err
	}
	logrus.Infof("dna-normalization: %d wells to %.1f ng in %.0f nL", alloc.Passing, norm.TargetMass, norm.TargetVolume)

	opts := picklist.DefaultNormalizationOptions()
	opts.Names = reading.Names
	opts.SourcePlates = reading.Sources
	if b.Picklist.DestPlateName != "" {
		opts.DestPlateName = b.Picklist.DestPlateName
	}
	entries, err := picklist.DNANormalization(alloc.Volumes, alloc.Water, conc, opts)
	if err != nil {
		return err
	}
	return picklist.WriteNormalization(out, entries, f)
}

var (
	normalizeInput     string
	normalizeSignal    string
	normalizeOutput    string
	normalizeDelimiter string
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Write a DNA normalization picklist (water plus sample to a fixed mass and volume)",
	Run: func(cmd *cobra.Command, args []string) {
		f := bundle.Format()
		if cmd.Flags().Changed("delimiter") || bundle.Picklist.Delimiter == "" {
			r, err := picklist.ParseDelimiter(normalizeDelimiter)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
			f.Delimiter = r
		}

		out, err := openOutput(normalizeOutput)
		if err != nil {
			logrus.Fatalf("Failed to open output: %v", err)
		}
		defer out.Close()

		if err := runNormalize(normalizeInput, normalizeSignal, bundle, f, out); err != nil {
			logrus.Fatalf("Normalization failed: %v", err)
		}
	},
}

func init() {
	normalizeCmd.Flags().StringVar(&normalizeInput, "input", "", "Plate table with Well,Value[,Sample[,Plate]] columns")
	normalizeCmd.Flags().StringVar(&normalizeSignal, "signal", signalNgUL, "What the Value column holds: rfu or ngul")
	normalizeCmd.Flags().StringVar(&normalizeOutput, "output", "-", "Picklist destination (- for stdout)")
	normalizeCmd.Flags().StringVar(&normalizeDelimiter, "delimiter", picklist.DelimiterTab, "Picklist delimiter (comma or tab), overrides picklist.delimiter")
	_ = normalizeCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(normalizeCmd)
}
