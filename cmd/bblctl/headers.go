package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"example.com/bblgate/internal/blackbox"
)

func newHeadersCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "headers <log>",
		Short: "Print the header of a log and its frame schemas",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open(args[0], nil)
			if err != nil {
				return err
			}
			return printHeaders(cmd.OutOrStdout(), p)
		},
	}
}

func printHeaders(out io.Writer, p *blackbox.Parser) error {
	meta := p.Metadata()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "File:\t%s\n", p.Path())
	fmt.Fprintf(tw, "Log:\t%d of %d\n", p.LogIndex(), p.LogCount())
	for _, c := range p.Comments() {
		fmt.Fprintf(tw, "Comment:\t%s\n", c)
	}
	fmt.Fprintln(tw)
	for _, key := range meta.Keys() {
		value, _ := meta.Header(key)
		fmt.Fprintf(tw, "%s:\t%s\n", key, value)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, ft := range blackbox.FrameTypes {
		schema, ok := p.Schema(ft)
		if !ok {
			continue
		}
		fmt.Fprintf(out, "\nFrame %c (%s), %d fields\n", byte(ft), ft, len(schema.Fields))
		tw = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  #\tname\tsigned\tpredictor\tencoding")
		for i, f := range schema.Fields {
			fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\t%s\n", i, f.Name, yesNo(f.Signed), f.Predictor, f.Encoding)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
