package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/labpool/metapool/pool"
	"github.com/labpool/metapool/pool/convert"
	"github.com/labpool/metapool/pool/picklist"
	"github.com/labpool/metapool/pool/plate"
)

// Input signal kinds accepted by --signal.
const (
	signalCp   = "cp"   // qPCR crossing point
	signalRFU  = "rfu"  // blanked fluorescence
	signalNgUL = "ngul" // mass concentration, ng/µL
	signalNM   = "nm"   // molar concentration, nM
)

// signalUnits maps each --signal value to the unit its Value column carries.
var signalUnits = map[string]plate.Unit{
	signalCp:   plate.Cycles,
	signalRFU:  plate.Unitless,
	signalNgUL: plate.NanogramsPerMicroliter,
	signalNM:   plate.Nanomolar,
}

func validSignalNames() []string {
	names := make([]string, 0, len(signalUnits))
	for k := range signalUnits {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// molarConcentrations turns a raw reading into nM.
func molarConcentrations(raw *plate.Matrix, signal string, b *pool.PolicyBundle) (*plate.Matrix, error) {
	switch signal {
	case signalCp:
		return convert.QPCR(raw, b.Curve(), b.Dilution())
	case signalNM:
		return raw, nil
	}
	mass, err := massConcentrations(raw, signal, b)
	if err != nil {
		return nil, err
	}
	return convert.MassToMolar(mass, b.LibrarySize())
}

// massConcentrations turns a raw reading into ng/µL.
func massConcentrations(raw *plate.Matrix, signal string, b *pool.PolicyBundle) (*plate.Matrix, error) {
	switch signal {
	case signalRFU:
		return convert.Fluorometric(raw, b.Calibration())
	case signalNgUL:
		return raw, nil
	}
	return nil, fmt.Errorf("signal %q cannot be converted to a mass concentration", signal)
}

// poolRun holds the inputs of one pooling run.
type poolRun struct {
	Input  string
	Signal string
	Policy string
}

// runPool allocates volumes for the plate in r.Input and writes the pooling
// picklist to out.
func runPool(r poolRun, b *pool.PolicyBundle, out io.Writer) (pool.Summary, error) {
	unit, ok := signalUnits[r.Signal]
	if !ok {
		return pool.Summary{}, fmt.Errorf("unknown signal %q; valid signals: %v", r.Signal, validSignalNames())
	}
	if !pool.IsValidAllocator(r.Policy) {
		return pool.Summary{}, fmt.Errorf("unknown pooling policy %q; valid policies: %v", r.Policy, pool.ValidAllocatorNames())
	}
	if r.Policy == pool.PolicyDNANormalization {
		return pool.Summary{}, fmt.Errorf("policy %q writes a normalization picklist; use the normalize command", r.Policy)
	}

	reading, err := readPlateTable(r.Input, b.Shape(), unit)
	if err != nil {
		return pool.Summary{}, err
	}
	conc, err := molarConcentrations(reading.Values, r.Signal, b)
	if err != nil {
		return pool.Summary{}, err
	}

	allocator := pool.NewAllocator(r.Policy, b)
	alloc, err := allocator.Allocate(conc)
	if err != nil {
		return pool.Summary{}, err
	}
	summary, err := pool.EstimatePool(alloc.Volumes, conc)
	if err != nil {
		return pool.Summary{}, err
	}
	logrus.Infof("%s: %d of %d wells pooled; pool %.3f nM in %.2f µL",
		allocator.Name(), alloc.Passing, alloc.Volumes.Len(), summary.Concentration, summary.Volume/1000)

	entries, err := picklist.Pooling(alloc.Volumes, conc, b.PoolingOptions())
	if err != nil {
		return pool.Summary{}, err
	}
	return summary, picklist.WritePooling(out, entries, b.Format())
}

var (
	poolInput  string
	poolSignal string
	poolPolicy string
	poolOutput string
	poolMaxVol float64
	poolDest   string
)

var poolCmd = &cobra.Command{
	Use:   "pool",
	Short: "Compute pooling volumes and write an Echo pooling picklist",
	Run: func(cmd *cobra.Command, args []string) {
		policy := bundle.Pooling.Policy
		if cmd.Flags().Changed("policy") {
			policy = poolPolicy
		}
		if cmd.Flags().Changed("max-vol-per-well") {
			bundle.Pooling.MaxVolPerWell = &poolMaxVol
		}
		if cmd.Flags().Changed("dest-format") {
			bundle.Pooling.DestFormat = poolDest
		}
		if err := bundle.Validate(); err != nil {
			logrus.Fatalf("%v", err)
		}

		out, err := openOutput(poolOutput)
		if err != nil {
			logrus.Fatalf("Failed to open output: %v", err)
		}
		defer out.Close()

		if _, err := runPool(poolRun{Input: poolInput, Signal: poolSignal, Policy: policy}, bundle, out); err != nil {
			logrus.Fatalf("Pooling failed: %v", err)
		}
	},
}

func init() {
	poolCmd.Flags().StringVar(&poolInput, "input", "", "Plate table with Well,Value[,Sample] columns (.tsv is tab-delimited)")
	poolCmd.Flags().StringVar(&poolSignal, "signal", signalCp, fmt.Sprintf("What the Value column holds: %v", validSignalNames()))
	poolCmd.Flags().StringVar(&poolPolicy, "policy", pool.PolicyEqualMolar, fmt.Sprintf("Pooling policy, overrides pooling.policy: %v", pool.ValidAllocatorNames()))
	poolCmd.Flags().StringVar(&poolOutput, "output", "-", "Picklist destination (- for stdout)")
	poolCmd.Flags().Float64Var(&poolMaxVol, "max-vol-per-well", picklist.DefaultMaxVolumePerWell, "Destination well capacity in nL, overrides pooling.max_vol_per_well")
	poolCmd.Flags().StringVar(&poolDest, "dest-format", "384", "Destination plate format (96, 384, 1536), overrides pooling.dest_format")
	_ = poolCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(poolCmd)
}
