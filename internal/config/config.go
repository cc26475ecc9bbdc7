// Package config loads the bblctl YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"example.com/bblgate/internal/blackbox"
	"example.com/bblgate/internal/common"
)

type Config struct {
	Decode  DecodeConfig  `yaml:"decode"`
	Export  ExportConfig  `yaml:"export"`
	Report  ReportConfig  `yaml:"report"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logs    LogsConfig    `yaml:"logs"`
}

type DecodeConfig struct {
	ResyncWindow     int   `yaml:"resyncWindow"`
	MaxIterationJump int64 `yaml:"maxIterationJump"`
	MaxTimeJumpUs    int64 `yaml:"maxTimeJumpUs"`
	LogIndex         int   `yaml:"logIndex"`
}

type ExportConfig struct {
	Format        string `yaml:"format"`
	IncludeEvents *bool  `yaml:"includeEvents"`
}

type ReportConfig struct {
	QRSize int    `yaml:"qrSize"`
	Title  string `yaml:"title"`
}

type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

type LogsConfig struct {
	Directory  string `yaml:"directory"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	MaxBackups int    `yaml:"maxBackups"`
	Compress   bool   `yaml:"compress"`
	Debug      bool   `yaml:"debug"`
}

// Formats lists the accepted export formats.
var Formats = []string{"csv", "ndjson", "cbor"}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

// Load reads the YAML file at path. Missing keys take their defaults and
// relative paths are resolved against the file's directory.
func Load(path string) (Config, error) {
	var cfg Config
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("decode %s: %w", path, err)
	}
	baseDir := filepath.Dir(path)
	resolvePath := func(p string) string {
		p = strings.TrimSpace(p)
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Clean(filepath.Join(baseDir, p))
	}
	cfg.Metrics.Textfile = resolvePath(cfg.Metrics.Textfile)
	cfg.Logs.Directory = resolvePath(cfg.Logs.Directory)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Decode.ResyncWindow == 0 {
		c.Decode.ResyncWindow = 64 * 1024
	}
	if c.Decode.MaxIterationJump == 0 {
		c.Decode.MaxIterationJump = 5000
	}
	if c.Decode.MaxTimeJumpUs == 0 {
		c.Decode.MaxTimeJumpUs = 10_000_000
	}
	if c.Decode.LogIndex == 0 {
		c.Decode.LogIndex = 1
	}
	if c.Export.Format == "" {
		c.Export.Format = "csv"
	}
	c.Export.Format = strings.ToLower(c.Export.Format)
	if c.Export.IncludeEvents == nil {
		on := true
		c.Export.IncludeEvents = &on
	}
	if c.Report.QRSize <= 0 {
		c.Report.QRSize = 128
	}
	if c.Report.Title == "" {
		c.Report.Title = "Flight Log Report"
	}
	if c.Logs.MaxSizeMB <= 0 {
		c.Logs.MaxSizeMB = 25
	}
	if c.Logs.MaxAgeDays <= 0 {
		c.Logs.MaxAgeDays = 7
	}
	if c.Logs.MaxBackups <= 0 {
		c.Logs.MaxBackups = 5
	}
}

func (c Config) Validate() error {
	if c.Decode.ResyncWindow < 0 {
		return errors.New("decode.resyncWindow must not be negative")
	}
	if c.Decode.LogIndex < 1 {
		return fmt.Errorf("decode.logIndex %d must be 1 or greater", c.Decode.LogIndex)
	}
	known := false
	for _, f := range Formats {
		if c.Export.Format == f {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("export.format %q is not one of %s", c.Export.Format, strings.Join(Formats, ", "))
	}
	if c.Report.QRSize < 64 || c.Report.QRSize > 1024 {
		return fmt.Errorf("report.qrSize %d outside 64..1024", c.Report.QRSize)
	}
	return nil
}

// DecodeOptions converts the decode section into parser options.
func (c Config) DecodeOptions() blackbox.Options {
	return blackbox.Options{
		ResyncWindow:     c.Decode.ResyncWindow,
		MaxIterationJump: c.Decode.MaxIterationJump,
		MaxTimeJump:      c.Decode.MaxTimeJumpUs,
		LogIndex:         c.Decode.LogIndex,
	}
}

func (c Config) LogConfig() common.LogConfig {
	return common.LogConfig{
		Directory:  c.Logs.Directory,
		FileName:   "bblctl.log",
		MaxSizeMB:  c.Logs.MaxSizeMB,
		MaxAgeDays: c.Logs.MaxAgeDays,
		MaxBackups: c.Logs.MaxBackups,
		Compress:   c.Logs.Compress,
		Debug:      c.Logs.Debug,
	}
}

func (c Config) EventsIncluded() bool {
	return c.Export.IncludeEvents == nil || *c.Export.IncludeEvents
}
