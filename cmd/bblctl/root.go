package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"example.com/bblgate/internal/blackbox"
	"example.com/bblgate/internal/common"
	"example.com/bblgate/internal/config"
)

// app carries the global flags and the configuration they resolve to.
type app struct {
	configPath   string
	logIndex     int
	resyncWindow int
	debug        bool

	cfg config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "bblctl",
		Short: "Blackbox flight log decoder",
		Long: `bblctl decodes Betaflight and Cleanflight blackbox flight logs.

It reads the text header of each log in a file, decodes the binary frame
stream that follows, resynchronises over corrupted regions and exports the
result as CSV, NDJSON or CBOR.`,
		Version:       fmt.Sprintf("%s (built %s)", version, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().IntVar(&a.logIndex, "log-index", 1, "log to decode (1-based) in files holding several")
	root.PersistentFlags().IntVar(&a.resyncWindow, "resync-window", 0, "bytes that may be skipped in a row before decoding stops")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "log per-frame decoding detail")

	root.AddCommand(
		newHeadersCmd(a),
		newDecodeCmd(a),
		newSummaryCmd(a),
		newReportCmd(a),
		newCompareCmd(a),
	)
	return root
}

// load resolves the configuration: defaults, then the config file, then
// flags given on the command line.
func (a *app) load(cmd *cobra.Command) error {
	cfg := config.Default()
	if a.configPath != "" {
		loaded, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("log-index") {
		cfg.Decode.LogIndex = a.logIndex
	}
	if flags.Changed("resync-window") {
		cfg.Decode.ResyncWindow = a.resyncWindow
	}
	if a.debug {
		cfg.Logs.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	return common.SetupLogging(cfg.LogConfig())
}

func (a *app) open(path string, metrics *common.Metrics) (*blackbox.Parser, error) {
	opts := a.cfg.DecodeOptions()
	opts.Metrics = metrics
	p, err := blackbox.OpenWithOptions(path, opts)
	if err != nil {
		return nil, err
	}
	common.Debugf("%s: log %d of %d selected", path, p.LogIndex(), p.LogCount())
	return p, nil
}
