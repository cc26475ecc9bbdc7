package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"example.com/bblgate/internal/report"
)

func newReportCmd(a *app) *cobra.Command {
	var pdfPath, jsonPath string
	cmd := &cobra.Command{
		Use:   "report <log>",
		Short: "Write a PDF and/or JSON flight log report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pdfPath == "" && jsonPath == "" {
				return errors.New("report needs --pdf or --json")
			}
			sum, err := buildSummary(a, args[0])
			if err != nil {
				return err
			}
			if jsonPath != "" {
				if err := report.SaveJSON(sum, jsonPath); err != nil {
					return fmt.Errorf("write summary: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Wrote summary:", jsonPath)
			}
			if pdfPath != "" {
				opts := report.PDFOptions{Title: a.cfg.Report.Title, QRSize: a.cfg.Report.QRSize}
				if err := report.SavePDF(sum, pdfPath, opts); err != nil {
					return fmt.Errorf("write pdf: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Wrote PDF:", pdfPath)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&pdfPath, "pdf", "", "output PDF report")
	cmd.Flags().StringVar(&jsonPath, "json", "", "output JSON summary")
	return cmd
}
