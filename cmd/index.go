package cmd

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/labpool/metapool/pool/picklist"
)

func runIndex(samplesPath, indicesPath string, opts picklist.IndexOptions, f picklist.Format, out io.Writer) error {
	targets, err := readTargets(samplesPath)
	if err != nil {
		return err
	}
	pairs, err := readIndexPairs(indicesPath)
	if err != nil {
		return err
	}
	entries, err := picklist.IndexAddition(targets, pairs, opts)
	if err != nil {
		return err
	}
	logrus.Infof("index addition: %d samples, %d transfers", len(targets), len(entries))
	return picklist.WriteIndex(out, entries, f)
}

var (
	indexSamples   string
	indexPairs     string
	indexOutput    string
	indexVolume    float64
	indexDelimiter string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Write an index-addition picklist (i5 then i7 adapters per sample)",
	Run: func(cmd *cobra.Command, args []string) {
		opts := picklist.DefaultIndexOptions()
		opts.Volume = indexVolume

		f := bundle.Format()
		if cmd.Flags().Changed("delimiter") || bundle.Picklist.Delimiter == "" {
			r, err := picklist.ParseDelimiter(indexDelimiter)
			if err != nil {
				logrus.Fatalf("%v", err)
			}
			f.Delimiter = r
		}

		out, err := openOutput(indexOutput)
		if err != nil {
			logrus.Fatalf("Failed to open output: %v", err)
		}
		defer out.Close()

		if err := runIndex(indexSamples, indexPairs, opts, f, out); err != nil {
			logrus.Fatalf("Index picklist failed: %v", err)
		}
	},
}

func init() {
	indexCmd.Flags().StringVar(&indexSamples, "samples", "", "Table with Sample,Well columns in destination order")
	indexCmd.Flags().StringVar(&indexPairs, "indices", "", "Table with Combo,I5Name,I5Plate,I5Sequence,I5Well,I7Name,I7Plate,I7Sequence,I7Well columns")
	indexCmd.Flags().StringVar(&indexOutput, "output", "-", "Picklist destination (- for stdout)")
	indexCmd.Flags().Float64Var(&indexVolume, "volume", picklist.DefaultIndexVolume, "Adapter transfer volume in nL")
	indexCmd.Flags().StringVar(&indexDelimiter, "delimiter", picklist.DelimiterTab, "Picklist delimiter (comma or tab), overrides picklist.delimiter")
	_ = indexCmd.MarkFlagRequired("samples")
	_ = indexCmd.MarkFlagRequired("indices")

	rootCmd.AddCommand(indexCmd)
}
