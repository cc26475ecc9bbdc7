package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"example.com/bblgate/internal/blackbox"
	"example.com/bblgate/internal/common"
	"example.com/bblgate/internal/export"
	"example.com/bblgate/internal/manifest"
	"example.com/bblgate/internal/observability"
)

type decodeFlags struct {
	format          string
	out             string
	events          string
	manifest        string
	metricsTextfile string
	progress        bool
}

func newDecodeCmd(a *app) *cobra.Command {
	var f decodeFlags
	cmd := &cobra.Command{
		Use:   "decode <log>",
		Short: "Decode a log and export its frames",
		Long: `Decode every frame of the selected log and write them out.

CSV output holds one row per main frame, merged with the latest slow and GPS
frames. NDJSON and CBOR output hold every frame followed by the events.
Events can also be written to a separate NDJSON file with --events.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("format") {
				f.format = a.cfg.Export.Format
			}
			if f.metricsTextfile == "" {
				f.metricsTextfile = a.cfg.Metrics.Textfile
			}
			return runDecode(cmd, a, args[0], f)
		},
	}
	cmd.Flags().StringVar(&f.format, "format", export.FormatCSV, "output format: csv, ndjson or cbor")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&f.events, "events", "", "write events as NDJSON to this file")
	cmd.Flags().StringVar(&f.manifest, "manifest", "", "write a SHA-256 manifest of the log and outputs")
	cmd.Flags().StringVar(&f.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file")
	cmd.Flags().BoolVar(&f.progress, "progress", false, "print decoding progress to stderr")
	return cmd
}

func runDecode(cmd *cobra.Command, a *app, path string, f decodeFlags) error {
	var metrics *common.Metrics
	if f.progress {
		metrics = common.NewMetrics()
	}
	p, err := a.open(path, metrics)
	if err != nil {
		return err
	}

	var dst io.Writer = cmd.OutOrStdout()
	if f.out != "" {
		file, err := os.Create(f.out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer file.Close()
		dst = file
	}
	hashed := common.NewHashingWriter(dst)
	buffered := bufio.NewWriter(hashed)

	w, err := export.New(f.format, buffered, p.Header())
	if err != nil {
		return err
	}
	// CSV rows carry no events; everything else embeds them unless disabled.
	includeEvents := a.cfg.EventsIncluded() && f.format != export.FormatCSV

	var stopProgress func()
	if metrics != nil {
		stopProgress = common.StartProgressPrinter(cmd.ErrOrStderr(), metrics, 500*time.Millisecond)
	}
	start := time.Now()
	res, err := export.Run(p, w, includeEvents)
	if stopProgress != nil {
		stopProgress()
	}
	if err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	if err := buffered.Flush(); err != nil {
		return err
	}
	common.Logf("%s: decoded %d frames in %s", path, res.Frames, time.Since(start).Round(time.Millisecond))
	fmt.Fprintln(cmd.ErrOrStderr(), res.Stats)

	var outputs []manifest.Item
	if f.out != "" {
		outputs = append(outputs, manifest.Item{Path: f.out, Size: hashed.Size(), Sha256: hashed.Sum()})
	}
	events, err := p.Events()
	if err != nil {
		return err
	}
	if f.events != "" {
		if err := writeEvents(events, f.events); err != nil {
			return err
		}
		outputs = append(outputs, manifest.Item{Path: f.events})
	}
	if f.metricsTextfile != "" {
		dm := observability.NewDecodeMetrics()
		dm.Record(res.Stats, events)
		dm.ObserveDecode(start)
		if err := dm.WriteTextfile(f.metricsTextfile); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		outputs = append(outputs, manifest.Item{Path: f.metricsTextfile})
	}
	if f.manifest != "" {
		return writeManifest(f.manifest, path, p.LogIndex(), outputs)
	}
	return nil
}

func writeEvents(events []blackbox.Event, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create events file: %w", err)
	}
	defer file.Close()
	buffered := bufio.NewWriter(file)
	w := export.NewNDJSONWriter(buffered)
	for _, ev := range events {
		if err := w.WriteEvent(ev); err != nil {
			return err
		}
	}
	if err := buffered.Flush(); err != nil {
		return err
	}
	return file.Close()
}

// writeManifest hashes the source log and every output. Outputs whose digest
// was taken while writing are added as is.
func writeManifest(out, source string, logIndex int, outputs []manifest.Item) error {
	var toHash []string
	for _, it := range outputs {
		if it.Sha256 == "" {
			toHash = append(toHash, it.Path)
		}
	}
	m, err := manifest.Build(source, logIndex, toHash)
	if err != nil {
		return err
	}
	for _, it := range outputs {
		if it.Sha256 != "" {
			m.Add(it.Path, it.Size, it.Sha256)
		}
	}
	return manifest.Save(m, out)
}
