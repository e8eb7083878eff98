package cmd

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/labpool/metapool/pool/plate"
)

// runWells prints row, column and row-major index for each label, or every
// well of shape when labels is empty.
func runWells(shape plate.Shape, labels []string, out io.Writer) error {
	wells := shape.Wells()
	if len(labels) > 0 {
		wells = make([]plate.Well, len(labels))
		for i, l := range labels {
			w, err := plate.ParseWell(l)
			if err != nil {
				return err
			}
			if !shape.Contains(w) {
				return fmt.Errorf("well %s is outside a %s plate", w, shape)
			}
			wells[i] = w
		}
	}
	for _, w := range wells {
		if _, err := fmt.Fprintf(out, "%s\t%d\t%d\t%d\n", w, w.Row, w.Col, shape.Index(w)); err != nil {
			return err
		}
	}
	return nil
}

var wellsCmd = &cobra.Command{
	Use:   "wells [LABEL...]",
	Short: "List the configured plate's wells in row-major order, or locate the given labels",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runWells(bundle.Shape(), args, cmd.OutOrStdout()); err != nil {
			logrus.Fatalf("%v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(wellsCmd)
}
