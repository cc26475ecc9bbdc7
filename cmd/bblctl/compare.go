package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"example.com/bblgate/internal/compare"
	"example.com/bblgate/internal/export"
)

var errMismatch = errors.New("decoded rows differ from the reference")

func newCompareCmd(a *app) *cobra.Command {
	var (
		refPath string
		opts    compare.Options
	)
	cmd := &cobra.Command{
		Use:   "compare <log>",
		Short: "Compare decoded rows with a reference CSV",
		Long: `Decode the selected log into merged CSV rows and compare them, column by
column, with a reference CSV such as the output of blackbox_decode.
Columns are matched by name. Numeric cells may differ by --tolerance.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, err := os.Open(refPath)
			if err != nil {
				return fmt.Errorf("open reference: %w", err)
			}
			defer ref.Close()

			p, err := a.open(args[0], nil)
			if err != nil {
				return err
			}
			var decoded bytes.Buffer
			w, err := export.NewMergedCSV(&decoded, p.Header())
			if err != nil {
				return err
			}
			if _, err := export.Run(p, w, false); err != nil {
				return err
			}
			if err := w.Close(); err != nil {
				return err
			}

			res, err := compare.CSV(&decoded, ref, opts)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res)
			if !res.OK() {
				return errMismatch
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&refPath, "ref", "", "reference CSV")
	cmd.Flags().Float64Var(&opts.Tolerance, "tolerance", 0, "largest accepted difference between numeric cells")
	cmd.Flags().IntVar(&opts.MaxReport, "max-report", 20, "mismatches to print (negative prints all)")
	_ = cmd.MarkFlagRequired("ref")
	return cmd
}
